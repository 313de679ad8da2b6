// Package fanout turns newly added messages into topic notifications for
// everyone subscribed to the room.
package fanout

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/metrics"
)

// Sender publishes a prepared message; *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// BuildMessage renders the topic notification for msg. The topic is the
// room id.
func BuildMessage(msg domain.Message) *messaging.Message {
	title := msg.SenderName
	if title == "" {
		title = "New Message"
	}

	var body string
	switch {
	case msg.HasText():
		body = msg.SenderName + ": " + msg.Text
	case msg.HasImage():
		body = msg.SenderName + " sent a photo 📷"
	default:
		body = msg.SenderName + " sent a message"
	}

	imageURL := ""
	if msg.ImageURL != nil {
		imageURL = *msg.ImageURL
	}

	return &messaging.Message{
		Topic: msg.RoomID,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"roomId":     msg.RoomID,
			"messageId":  msg.ID,
			"senderId":   msg.SenderID,
			"senderName": msg.SenderName,
			"imageUrl":   imageURL,
		},
	}
}

type Trigger struct {
	bus    live.Bus
	sender Sender
	logger zerolog.Logger
}

func New(bus live.Bus, sender Sender, logger zerolog.Logger) *Trigger {
	return &Trigger{bus: bus, sender: sender, logger: logger}
}

// Run handles added events from every room until ctx is done or the bus
// closes. Send failures are logged and do not stop the loop.
func (t *Trigger) Run(ctx context.Context) error {
	events, stop, err := t.bus.SubscribeAll(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to message events: %w", err)
	}
	defer stop()

	t.logger.Info().Msg("fanout: listening for new messages")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return live.ErrBusClosed
			}
			if ev.Type != live.EventAdded || ev.Message == nil {
				continue
			}
			t.Handle(ctx, *ev.Message)
		}
	}
}

// Handle sends the notification for one added message.
func (t *Trigger) Handle(ctx context.Context, msg domain.Message) {
	id, err := t.sender.Send(ctx, BuildMessage(msg))
	if err != nil {
		metrics.FanoutSends.WithLabelValues("failed").Inc()
		t.logger.Error().Err(err).
			Str(log.FieldRoomID, msg.RoomID).
			Str(log.FieldMessageID, msg.ID).
			Msg("fanout: sending notification failed")
		return
	}
	metrics.FanoutSends.WithLabelValues("sent").Inc()
	t.logger.Info().
		Str(log.FieldRoomID, msg.RoomID).
		Str(log.FieldMessageID, msg.ID).
		Str("fcm_id", id).
		Msg("fanout: notification sent")
}

// Package push is the device side of push delivery: topic subscription for
// the device token and the foreground, opened and initial notification
// streams.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"firebase.google.com/go/v4/messaging"

	"github.com/pentia/chatcore/internal/listeners"
)

var (
	ErrNoToken      = errors.New("device has no push token")
	ErrTopicPartial = errors.New("topic operation failed for device")
)

// Payload is a received push message.
type Payload struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// TopicClient is the topic management part of *messaging.Client.
type TopicClient interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Device is one app instance's push registration.
type Device struct {
	token  string
	topics TopicClient

	foreground listeners.Set[Payload]
	opened     listeners.Set[Payload]

	mu      sync.Mutex
	initial *Payload
}

func NewDevice(token string, topics TopicClient) *Device {
	return &Device{token: token, topics: topics}
}

func (d *Device) Token() string { return d.token }

func (d *Device) SubscribeTopic(ctx context.Context, topic string) error {
	return d.topicOp(ctx, topic, true)
}

func (d *Device) UnsubscribeTopic(ctx context.Context, topic string) error {
	return d.topicOp(ctx, topic, false)
}

func (d *Device) topicOp(ctx context.Context, topic string, subscribe bool) error {
	if d.token == "" || d.topics == nil {
		return ErrNoToken
	}

	tokens := []string{d.token}
	var (
		resp *messaging.TopicManagementResponse
		err  error
	)
	if subscribe {
		resp, err = d.topics.SubscribeToTopic(ctx, tokens, topic)
	} else {
		resp, err = d.topics.UnsubscribeFromTopic(ctx, tokens, topic)
	}
	if err != nil {
		return fmt.Errorf("topic %s: %w", topic, err)
	}
	if resp != nil && resp.FailureCount > 0 {
		reason := "unknown"
		if len(resp.Errors) > 0 && resp.Errors[0] != nil {
			reason = resp.Errors[0].Reason
		}
		return fmt.Errorf("%w: topic %s: %s", ErrTopicPartial, topic, reason)
	}
	return nil
}

// OnForegroundMessage registers fn for messages received while the app is
// in the foreground and returns its remover.
func (d *Device) OnForegroundMessage(fn func(Payload)) func() {
	return d.foreground.Add(fn)
}

// OnNotificationOpened registers fn for notifications tapped while the app
// is running and returns its remover.
func (d *Device) OnNotificationOpened(fn func(Payload)) func() {
	return d.opened.Add(fn)
}

// SetInitialNotification records the notification that launched the app.
func (d *Device) SetInitialNotification(p Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initial = &p
}

// InitialNotification returns the launching notification once; later calls
// report false.
func (d *Device) InitialNotification() (Payload, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initial == nil {
		return Payload{}, false
	}
	p := *d.initial
	d.initial = nil
	return p, true
}

// DeliverForeground hands p to the foreground listeners and reports how
// many received it.
func (d *Device) DeliverForeground(p Payload) int {
	return d.foreground.Emit(p)
}

func (d *Device) DeliverOpened(p Payload) int {
	return d.opened.Emit(p)
}

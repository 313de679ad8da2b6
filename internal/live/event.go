// Package live carries message change events between the store and the
// room subscriptions that watch it.
package live

import (
	"context"
	"fmt"

	"github.com/pentia/chatcore/internal/domain"
)

// Event types.
const (
	EventAdded   = "added"
	EventChanged = "changed"
	EventRemoved = "removed"
)

const channelPattern = "chat:room:%s:messages"

// Event is a single change to a room's message list. Message is set for
// added and changed events; removed events carry only MessageID.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	MessageID string          `json:"message_id"`
	Message   *domain.Message `json:"message,omitempty"`
	Timestamp int64           `json:"ts"`
}

// Added builds an added event for msg.
func Added(msg domain.Message) Event {
	return Event{Type: EventAdded, RoomID: msg.RoomID, MessageID: msg.ID, Message: &msg, Timestamp: msg.Timestamp}
}

// Changed builds a changed event for msg.
func Changed(msg domain.Message) Event {
	return Event{Type: EventChanged, RoomID: msg.RoomID, MessageID: msg.ID, Message: &msg, Timestamp: msg.Timestamp}
}

// Removed builds a removed event.
func Removed(roomID, messageID string, ts int64) Event {
	return Event{Type: EventRemoved, RoomID: roomID, MessageID: messageID, Timestamp: ts}
}

// Channel returns the bus channel name for a room.
func Channel(roomID string) string {
	return fmt.Sprintf(channelPattern, roomID)
}

// Bus publishes room events and fans them out to subscribers. Subscribe
// returns a channel that is closed after cancel is called or ctx ends.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, roomID string) (events <-chan Event, cancel func(), err error)
	// SubscribeAll receives events for every room.
	SubscribeAll(ctx context.Context) (events <-chan Event, cancel func(), err error)
	Close() error
}

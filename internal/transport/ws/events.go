package ws

import (
	"encoding/json"
	"time"

	"github.com/pentia/chatcore/internal/deeplink"
	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/push"
)

// Event types - Client → Server
const (
	EventTypeHello                  = "hello"
	EventTypeRoomOpen               = "room.open"
	EventTypeRoomClose              = "room.close"
	EventTypeRoomLoadOlder          = "room.load_older"
	EventTypeMessageSend            = "message.send"
	EventTypeNotificationsSet       = "notifications.set"
	EventTypeNotificationsToggle    = "notifications.toggle"
	EventTypeLinkOpen               = "link.open"
	EventTypeNotificationOpened     = "notification.opened"
	EventTypeNotificationForeground = "notification.foreground"
	EventTypeNotificationBackground = "notification.background"
	EventTypePing                   = "ping"
)

// Event types - Server → Client
const (
	EventTypeFeedView            = "feed.view"
	EventTypeNotificationsState  = "notifications.state"
	EventTypeNotificationsPrompt = "notifications.prompt"
	EventTypeMessageSent         = "message.sent"
	EventTypeNavigateReset       = "navigate.reset"
	EventTypeNavigateURL         = "navigate.url"
	EventTypeNotificationLocal   = "notification.local"
	EventTypePong                = "pong"
	EventTypeError               = "error"
)

const promptText = "Do you want to be notified when new messages arrive in this room?"

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

// HelloPayload registers the app instance: its push token and how it was
// launched.
type HelloPayload struct {
	PushToken           string        `json:"push_token,omitempty"`
	InitialURL          string        `json:"initial_url,omitempty"`
	InitialNotification *push.Payload `json:"initial_notification,omitempty"`
}

type MessageSendPayload struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
	Nonce    string  `json:"nonce,omitempty"`
}

type NotificationsSetPayload struct {
	Enabled bool `json:"enabled"`
}

type LinkOpenPayload struct {
	URL string `json:"url"`
}

// --- Server → Client payloads ---

type NotificationsStatePayload struct {
	Enabled bool `json:"enabled"`
	// Warning is set when the flag was saved but the device subscription
	// could not be updated.
	Warning string `json:"warning,omitempty"`
}

type PromptPayload struct {
	Message string `json:"message"`
}

type MessageSentPayload struct {
	Nonce   string         `json:"nonce,omitempty"`
	Message domain.Message `json:"message"`
}

type NavigateResetPayload struct {
	Routes []deeplink.Route `json:"routes"`
}

type NavigateURLPayload struct {
	URL string `json:"url"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, roomID string, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

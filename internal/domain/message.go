package domain

import "strings"

// Message is a single chat entry inside a room. ID is assigned by the store
// on append; Timestamp is milliseconds since epoch, set by the sender.
type Message struct {
	ID             string  `json:"id"`
	RoomID         string  `json:"room_id"`
	Text           string  `json:"text"`
	ImageURL       *string `json:"image_url,omitempty"`
	Timestamp      int64   `json:"timestamp"`
	SenderID       string  `json:"sender_id"`
	SenderName     string  `json:"sender_name"`
	SenderPhotoURL *string `json:"sender_photo_url,omitempty"`
}

// HasText reports whether the message carries non-blank text.
func (m *Message) HasText() bool {
	return strings.TrimSpace(m.Text) != ""
}

// HasImage reports whether the message references an image.
func (m *Message) HasImage() bool {
	return m.ImageURL != nil && *m.ImageURL != ""
}

// Before orders messages by timestamp, breaking ties by id so that two
// messages sent in the same millisecond still have a stable position.
func (m *Message) Before(other *Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}

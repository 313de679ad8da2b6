package domain

// Room is a named chat channel. LastMessageTimestamp is denormalized on every
// send so room lists can be sorted without reading messages.
type Room struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Description          *string `json:"description,omitempty"`
	LastMessageTimestamp int64   `json:"last_message_timestamp"`
}

package push

const (
	DefaultTitle     = "New Message"
	DefaultSender    = "Unknown"
	DefaultChannelID = "default"
)

// LocalNotification is what the app displays for a message received in the
// background.
type LocalNotification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	RoomID    string `json:"room_id,omitempty"`
	ChannelID string `json:"channel_id"`
}

// Background builds the local notification for a background delivery,
// falling back to generic text when the payload lacks a title or body.
func Background(p Payload) LocalNotification {
	n := LocalNotification{
		Title:     p.Title,
		Body:      p.Body,
		RoomID:    p.Data["roomId"],
		ChannelID: DefaultChannelID,
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		sender := p.Data["senderName"]
		if sender == "" {
			sender = DefaultSender
		}
		n.Body = sender + " sent a message"
	}
	return n
}

package domain

// RoomSetting is the per-user-per-room state. FirstMessageSent never goes
// back to false once set.
type RoomSetting struct {
	UserID               string `json:"user_id"`
	RoomID               string `json:"room_id"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	FirstMessageSent     bool   `json:"first_message_sent"`
}

// SettingPatch is a partial update; nil fields are left untouched.
type SettingPatch struct {
	NotificationsEnabled *bool
	FirstMessageSent     *bool
}

// Apply merges the patch into s. A patch can never clear FirstMessageSent.
func (p SettingPatch) Apply(s *RoomSetting) {
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.FirstMessageSent != nil && *p.FirstMessageSent {
		s.FirstMessageSent = true
	}
}

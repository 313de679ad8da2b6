// Package notify manages per-user, per-room notification enablement and the
// one-time first-message opt-in prompt.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/metrics"
)

var (
	ErrMissingID = errors.New("user id and room id are required")
	ErrPersist   = errors.New("persisting notification setting failed")
	ErrTopic     = errors.New("updating topic subscription failed")
	ErrNoDevice  = errors.New("no push device registered")
)

type SettingStore interface {
	GetSetting(ctx context.Context, userID, roomID string) (domain.RoomSetting, error)
	SetSetting(ctx context.Context, userID, roomID string, patch domain.SettingPatch) error
}

// Topics subscribes the current device to a room's topic. Topic names are
// room ids.
type Topics interface {
	SubscribeTopic(ctx context.Context, topic string) error
	UnsubscribeTopic(ctx context.Context, topic string) error
}

type Manager struct {
	settings SettingStore
	topics   Topics
}

// NewManager returns a manager. topics may be nil when no device is
// attached; SetEnabled then persists and reports ErrNoDevice.
func NewManager(settings SettingStore, topics Topics) *Manager {
	return &Manager{settings: settings, topics: topics}
}

// Enabled returns the persisted flag; a missing setting reads as false.
func (m *Manager) Enabled(ctx context.Context, userID, roomID string) (bool, error) {
	if userID == "" || roomID == "" {
		return false, ErrMissingID
	}
	s, err := m.settings.GetSetting(ctx, userID, roomID)
	if err != nil {
		return false, fmt.Errorf("reading notification setting: %w", err)
	}
	return s.NotificationsEnabled, nil
}

// SetEnabled persists the flag first and only then changes the topic
// subscription. A topic failure leaves the persisted flag in place.
func (m *Manager) SetEnabled(ctx context.Context, userID, roomID string, enabled bool) error {
	if userID == "" || roomID == "" {
		return ErrMissingID
	}

	if err := m.settings.SetSetting(ctx, userID, roomID, domain.SettingPatch{NotificationsEnabled: &enabled}); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if m.topics == nil {
		return ErrNoDevice
	}

	op := "subscribe"
	topicFn := m.topics.SubscribeTopic
	if !enabled {
		op = "unsubscribe"
		topicFn = m.topics.UnsubscribeTopic
	}
	if err := topicFn(ctx, roomID); err != nil {
		metrics.TopicFailures.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: %w", ErrTopic, err)
	}
	return nil
}

// Toggle flips the persisted flag and returns the new value. The returned
// value is meaningful even when the error is ErrTopic or ErrNoDevice.
func (m *Manager) Toggle(ctx context.Context, userID, roomID string) (bool, error) {
	current, err := m.Enabled(ctx, userID, roomID)
	if err != nil {
		return false, err
	}
	next := !current
	return next, m.SetEnabled(ctx, userID, roomID, next)
}

// MarkFirstMessage reports whether this is the user's first message in the
// room, recording it when so. The read and write are not atomic; two near
// simultaneous first sends may both report true.
func (m *Manager) MarkFirstMessage(ctx context.Context, userID, roomID string) (bool, error) {
	if userID == "" || roomID == "" {
		return false, ErrMissingID
	}

	s, err := m.settings.GetSetting(ctx, userID, roomID)
	if err != nil {
		return false, fmt.Errorf("reading first-message flag: %w", err)
	}
	if s.FirstMessageSent {
		return false, nil
	}

	sent := true
	if err := m.settings.SetSetting(ctx, userID, roomID, domain.SettingPatch{FirstMessageSent: &sent}); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return true, nil
}

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pentia/chatcore/internal/domain"
)

type memSettings struct {
	mu      sync.Mutex
	rows    map[string]domain.RoomSetting
	failSet bool
}

func newMemSettings() *memSettings {
	return &memSettings{rows: make(map[string]domain.RoomSetting)}
}

func (m *memSettings) GetSetting(_ context.Context, userID, roomID string) (domain.RoomSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[userID+"/"+roomID]
	if !ok {
		return domain.RoomSetting{UserID: userID, RoomID: roomID}, nil
	}
	return s, nil
}

func (m *memSettings) SetSetting(_ context.Context, userID, roomID string, patch domain.SettingPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("write rejected")
	}
	s := m.rows[userID+"/"+roomID]
	s.UserID, s.RoomID = userID, roomID
	patch.Apply(&s)
	m.rows[userID+"/"+roomID] = s
	return nil
}

type recordingTopics struct {
	calls []string
	err   error
}

func (r *recordingTopics) SubscribeTopic(_ context.Context, topic string) error {
	r.calls = append(r.calls, "sub:"+topic)
	return r.err
}

func (r *recordingTopics) UnsubscribeTopic(_ context.Context, topic string) error {
	r.calls = append(r.calls, "unsub:"+topic)
	return r.err
}

func TestSetEnabledSubscribesAfterPersist(t *testing.T) {
	settings := newMemSettings()
	topics := &recordingTopics{}
	m := NewManager(settings, topics)
	ctx := context.Background()

	if err := m.SetEnabled(ctx, "u1", "r1", true); err != nil {
		t.Fatal(err)
	}
	if err := m.SetEnabled(ctx, "u1", "r1", false); err != nil {
		t.Fatal(err)
	}
	if len(topics.calls) != 2 || topics.calls[0] != "sub:r1" || topics.calls[1] != "unsub:r1" {
		t.Fatalf("topic calls = %v", topics.calls)
	}
}

func TestTopicFailureKeepsPersistedFlag(t *testing.T) {
	settings := newMemSettings()
	topics := &recordingTopics{err: errors.New("unavailable")}
	m := NewManager(settings, topics)
	ctx := context.Background()

	next, err := m.Toggle(ctx, "u1", "r1")
	if !errors.Is(err, ErrTopic) {
		t.Fatalf("err = %v, want ErrTopic", err)
	}
	if !next {
		t.Fatal("toggle should report the new value")
	}
	enabled, err := m.Enabled(ctx, "u1", "r1")
	if err != nil || !enabled {
		t.Fatalf("enabled = %v, err = %v; flag must stay persisted", enabled, err)
	}
}

func TestPersistFailureSkipsTopic(t *testing.T) {
	settings := newMemSettings()
	settings.failSet = true
	topics := &recordingTopics{}
	m := NewManager(settings, topics)

	err := m.SetEnabled(context.Background(), "u1", "r1", true)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if len(topics.calls) != 0 {
		t.Fatalf("topic calls = %v, want none", topics.calls)
	}
}

func TestNoDevicePersistsAnyway(t *testing.T) {
	settings := newMemSettings()
	m := NewManager(settings, nil)
	ctx := context.Background()

	if err := m.SetEnabled(ctx, "u1", "r1", true); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
	enabled, _ := m.Enabled(ctx, "u1", "r1")
	if !enabled {
		t.Fatal("flag not persisted")
	}
}

func TestFirstMessageOnce(t *testing.T) {
	m := NewManager(newMemSettings(), nil)
	ctx := context.Background()

	first, err := m.MarkFirstMessage(ctx, "u1", "r1")
	if err != nil || !first {
		t.Fatalf("first = %v, err = %v", first, err)
	}
	for i := 0; i < 3; i++ {
		again, err := m.MarkFirstMessage(ctx, "u1", "r1")
		if err != nil || again {
			t.Fatalf("call %d: first = %v, err = %v", i, again, err)
		}
	}

	other, _ := m.MarkFirstMessage(ctx, "u1", "r2")
	if !other {
		t.Fatal("first message is tracked per room")
	}
}

func TestMissingIDs(t *testing.T) {
	m := NewManager(newMemSettings(), nil)
	ctx := context.Background()
	if _, err := m.Enabled(ctx, "", "r1"); !errors.Is(err, ErrMissingID) {
		t.Fatalf("Enabled err = %v", err)
	}
	if err := m.SetEnabled(ctx, "u1", "", true); !errors.Is(err, ErrMissingID) {
		t.Fatalf("SetEnabled err = %v", err)
	}
	if _, err := m.MarkFirstMessage(ctx, "", ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("MarkFirstMessage err = %v", err)
	}
}

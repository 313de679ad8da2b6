package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/repository/kv"
	"github.com/pentia/chatcore/internal/store"
)

type fakeLive struct {
	mu         sync.Mutex
	released   int
	failRemove bool
}

func (f *fakeLive) stop() func() {
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}
}

func (f *fakeLive) SubscribeAdded(context.Context, string, int, func(domain.Message)) (func(), error) {
	return f.stop(), nil
}

func (f *fakeLive) SubscribeChanged(context.Context, string, int, func(domain.Message)) (func(), error) {
	return f.stop(), nil
}

func (f *fakeLive) SubscribeRemoved(context.Context, string, int, func(string)) (func(), error) {
	if f.failRemove {
		return nil, errors.New("permission denied")
	}
	return f.stop(), nil
}

type staticSetting bool

func (s staticSetting) Enabled(context.Context, string, string) (bool, error) {
	return bool(s), nil
}

func TestSessionOpenAndClose(t *testing.T) {
	lv := &fakeLive{}
	s, err := Open(context.Background(), Deps{
		Pages:         &memReader{history: []domain.Message{msg("a", 10)}},
		Live:          lv,
		Notifications: staticSetting(true),
		Logger:        zerolog.Nop(),
	}, "r1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !s.NotificationsEnabled() {
		t.Fatal("notification flag not loaded")
	}
	assertStamps(t, s.View(), 10)

	s.Close()
	s.Close()
	if lv.released != 3 {
		t.Fatalf("released %d subscriptions, want 3", lv.released)
	}
}

func TestSessionOpenFailureReleasesAcquired(t *testing.T) {
	lv := &fakeLive{failRemove: true}
	_, err := Open(context.Background(), Deps{
		Pages:         &memReader{},
		Live:          lv,
		Notifications: staticSetting(false),
		Logger:        zerolog.Nop(),
	}, "r1", "u1")
	if err == nil {
		t.Fatal("expected open to fail")
	}
	if lv.released != 2 {
		t.Fatalf("released %d subscriptions, want 2", lv.released)
	}
}

func TestSessionSeesOwnSendWithoutRefetch(t *testing.T) {
	kvs, err := kv.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	bus := live.NewLocalBus(zerolog.Nop())
	defer kvs.Close()
	defer bus.Close()

	adapter := store.New(kv.NewRoomRepo(kvs), kv.NewMessageRepo(kvs), kv.NewSettingRepo(kvs), bus, zerolog.Nop())
	ctx := context.Background()
	if err := adapter.CreateRoom(ctx, &domain.Room{ID: "r1", Name: "General"}); err != nil {
		t.Fatal(err)
	}

	views := make(chan View, 64)
	s, err := Open(ctx, Deps{
		Pages:         adapter,
		Live:          adapter,
		Notifications: staticSetting(false),
		Listener:      func(v View) { views <- v },
		Logger:        zerolog.Nop(),
	}, "r1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	id, err := adapter.AppendMessage(ctx, "r1", domain.Message{Text: "hello", Timestamp: 42, SenderID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case v := <-views:
			for _, m := range v.Messages {
				if m.ID == id {
					return
				}
			}
		case <-deadline:
			t.Fatal("sent message never reached the view")
		}
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/repository"
	"github.com/pentia/chatcore/internal/repository/kv"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	kvs, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	bus := live.NewLocalBus(zerolog.Nop())
	t.Cleanup(func() {
		bus.Close()
		kvs.Close()
	})
	a := New(kv.NewRoomRepo(kvs), kv.NewMessageRepo(kvs), kv.NewSettingRepo(kvs), bus, zerolog.Nop())
	if err := a.CreateRoom(context.Background(), &domain.Room{ID: "r1", Name: "General"}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return a
}

// collector records callback deliveries for assertions.
type collector struct {
	mu  sync.Mutex
	ids []string
	ch  chan struct{}
}

func newCollector() *collector { return &collector{ch: make(chan struct{}, 64)} }

func (c *collector) add(id string) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d deliveries", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func (c *collector) quiet(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
		t.Fatal("unexpected delivery")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAppendAssignsIDAndTouchesRoom(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.AppendMessage(ctx, "r1", domain.Message{Text: "hi", Timestamp: 500, SenderID: "u1"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	room, err := a.GetRoom(ctx, "r1")
	if err != nil || room == nil {
		t.Fatalf("get room: %v", err)
	}
	if room.LastMessageTimestamp != 500 {
		t.Fatalf("last message timestamp = %d, want 500", room.LastMessageTimestamp)
	}

	page, err := a.ReadMessagePage(ctx, "r1", 10, nil)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if len(page) != 1 || page[0].ID != id || page[0].RoomID != "r1" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestAppendToMissingRoom(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.AppendMessage(context.Background(), "nope", domain.Message{Text: "hi", Timestamp: 1, SenderID: "u1"})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

// failingTouchRooms is a room repository whose timestamp updates fail.
type failingTouchRooms struct {
	repository.RoomRepository
}

func (failingTouchRooms) TouchLastMessage(context.Context, string, int64) error {
	return errors.New("boom")
}

func TestAppendSurvivesRoomTouchFailure(t *testing.T) {
	kvs, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	bus := live.NewLocalBus(zerolog.Nop())
	t.Cleanup(func() {
		bus.Close()
		kvs.Close()
	})
	rooms := failingTouchRooms{RoomRepository: kv.NewRoomRepo(kvs)}
	a := New(rooms, kv.NewMessageRepo(kvs), kv.NewSettingRepo(kvs), bus, zerolog.Nop())
	ctx := context.Background()
	if err := a.CreateRoom(ctx, &domain.Room{ID: "r1", Name: "General"}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	events, stop, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	id, err := a.AppendMessage(ctx, "r1", domain.Message{Text: "hi", Timestamp: 500, SenderID: "u1"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != live.EventAdded || ev.Message == nil || ev.Message.ID != id {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("added event not published")
	}

	page, err := a.ReadMessagePage(ctx, "r1", 10, nil)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if len(page) != 1 || page[0].ID != id {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestSubscribeAddedReplaysNewestThenLive(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	for _, ts := range []int64{100, 200, 300} {
		if _, err := a.AppendMessage(ctx, "r1", domain.Message{Text: "m", Timestamp: ts, SenderID: "u1"}); err != nil {
			t.Fatal(err)
		}
	}

	got := newCollector()
	var mu sync.Mutex
	var stamps []int64
	stop, err := a.SubscribeAdded(ctx, "r1", 2, func(m domain.Message) {
		mu.Lock()
		stamps = append(stamps, m.Timestamp)
		mu.Unlock()
		got.add(m.ID)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	got.wait(t, 2)
	if _, err := a.AppendMessage(ctx, "r1", domain.Message{Text: "m", Timestamp: 400, SenderID: "u1"}); err != nil {
		t.Fatal(err)
	}
	got.wait(t, 1)
	got.quiet(t)

	mu.Lock()
	defer mu.Unlock()
	want := []int64{200, 300, 400}
	if len(stamps) != len(want) {
		t.Fatalf("stamps = %v, want %v", stamps, want)
	}
	for i := range want {
		if stamps[i] != want[i] {
			t.Fatalf("stamps = %v, want %v", stamps, want)
		}
	}
}

func TestSubscribeChangedOnlyInsideWindow(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	oldID, _ := a.AppendMessage(ctx, "r1", domain.Message{Text: "old", Timestamp: 10, SenderID: "u1"})
	newID, _ := a.AppendMessage(ctx, "r1", domain.Message{Text: "new", Timestamp: 20, SenderID: "u1"})

	got := newCollector()
	stop, err := a.SubscribeChanged(ctx, "r1", 1, func(m domain.Message) { got.add(m.ID) })
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	if err := a.UpdateMessage(ctx, domain.Message{ID: oldID, RoomID: "r1", Text: "edited", SenderID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := a.UpdateMessage(ctx, domain.Message{ID: newID, RoomID: "r1", Text: "edited", SenderID: "u1"}); err != nil {
		t.Fatal(err)
	}

	ids := got.wait(t, 1)
	got.quiet(t)
	if ids[0] != newID {
		t.Fatalf("changed delivered for %s, want %s", ids[0], newID)
	}
}

func TestEvictionIsNotARemoval(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	firstID, _ := a.AppendMessage(ctx, "r1", domain.Message{Text: "a", Timestamp: 10, SenderID: "u1"})

	got := newCollector()
	stop, err := a.SubscribeRemoved(ctx, "r1", 1, func(id string) { got.add(id) })
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	// Pushes firstID out of the one-message window.
	secondID, _ := a.AppendMessage(ctx, "r1", domain.Message{Text: "b", Timestamp: 20, SenderID: "u1"})
	if err := a.RemoveMessage(ctx, "r1", firstID); err != nil {
		t.Fatal(err)
	}
	got.quiet(t)

	if err := a.RemoveMessage(ctx, "r1", secondID); err != nil {
		t.Fatal(err)
	}
	ids := got.wait(t, 1)
	if ids[0] != secondID {
		t.Fatalf("removed delivered for %s, want %s", ids[0], secondID)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	got := newCollector()
	stop, err := a.SubscribeAdded(ctx, "r1", 10, func(m domain.Message) { got.add(m.ID) })
	if err != nil {
		t.Fatal(err)
	}
	stop()
	stop()

	if _, err := a.AppendMessage(ctx, "r1", domain.Message{Text: "late", Timestamp: 1, SenderID: "u1"}); err != nil {
		t.Fatal(err)
	}
	got.quiet(t)
}

func TestSettingsRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	s, err := a.GetSetting(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if s.NotificationsEnabled || s.FirstMessageSent {
		t.Fatalf("missing setting should read as zero, got %+v", s)
	}

	on := true
	if err := a.SetSetting(ctx, "u1", "r1", domain.SettingPatch{NotificationsEnabled: &on}); err != nil {
		t.Fatal(err)
	}
	s, _ = a.GetSetting(ctx, "u1", "r1")
	if !s.NotificationsEnabled {
		t.Fatal("flag did not persist")
	}
}

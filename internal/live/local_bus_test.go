package live

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestLocalBusRoutesByRoom(t *testing.T) {
	bus := NewLocalBus(zerolog.Nop())
	defer bus.Close()
	ctx := context.Background()

	r1, cancel1, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel1()
	all, cancelAll, err := bus.SubscribeAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer cancelAll()

	if err := bus.Publish(ctx, Added(msg("x", 5))); err != nil {
		t.Fatal(err)
	}
	other := msg("y", 6)
	other.RoomID = "r2"
	if err := bus.Publish(ctx, Added(other)); err != nil {
		t.Fatal(err)
	}

	if ev := receive(t, r1); ev.MessageID != "x" {
		t.Fatalf("r1 got %q", ev.MessageID)
	}
	select {
	case ev := <-r1:
		t.Fatalf("r1 received event for another room: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}

	if ev := receive(t, all); ev.MessageID != "x" {
		t.Fatalf("all got %q first", ev.MessageID)
	}
	if ev := receive(t, all); ev.MessageID != "y" {
		t.Fatalf("all got %q second", ev.MessageID)
	}
}

func TestLocalBusCancelClosesChannel(t *testing.T) {
	bus := NewLocalBus(zerolog.Nop())
	defer bus.Close()

	ch, cancel, err := bus.Subscribe(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if err := bus.Publish(context.Background(), Removed("r1", "x", 1)); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestLocalBusLogsDroppedEvent(t *testing.T) {
	var buf bytes.Buffer
	bus := NewLocalBus(zerolog.New(&buf))
	defer bus.Close()
	ctx := context.Background()

	_, cancel, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	for i := 0; i <= subscriberBuffer; i++ {
		if err := bus.Publish(ctx, Removed("r1", "x", int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	line := buf.String()
	if !strings.Contains(line, `"room_id":"r1"`) || !strings.Contains(line, `"event":"removed"`) {
		t.Fatalf("drop not logged with room and event fields: %q", line)
	}
}

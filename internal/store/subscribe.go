package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/log"
)

// SubscribeAdded first replays the newest limit messages, then delivers each
// new message entering the watched range. The returned function stops the
// subscription and waits for in-flight callbacks.
func (a *Adapter) SubscribeAdded(ctx context.Context, roomID string, limit int, fn func(domain.Message)) (func(), error) {
	return a.watch(ctx, roomID, limit, live.EventAdded, func(ev live.Event) {
		fn(*ev.Message)
	})
}

// SubscribeChanged delivers changes to messages inside the watched range.
func (a *Adapter) SubscribeChanged(ctx context.Context, roomID string, limit int, fn func(domain.Message)) (func(), error) {
	return a.watch(ctx, roomID, limit, live.EventChanged, func(ev live.Event) {
		fn(*ev.Message)
	})
}

// SubscribeRemoved delivers ids of messages removed from the watched range.
// Messages that merely age out of the range are not reported.
func (a *Adapter) SubscribeRemoved(ctx context.Context, roomID string, limit int, fn func(string)) (func(), error) {
	return a.watch(ctx, roomID, limit, live.EventRemoved, func(ev live.Event) {
		fn(ev.MessageID)
	})
}

func (a *Adapter) watch(ctx context.Context, roomID string, limit int, kind string, deliver func(live.Event)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Subscribe before reading the seed so nothing falls between the two.
	events, stopBus, err := a.bus.Subscribe(subCtx, roomID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to %s: %w", roomID, err)
	}

	seed, err := a.messages.ListPage(subCtx, roomID, limit, nil)
	if err != nil {
		stopBus()
		cancel()
		return nil, fmt.Errorf("reading watched range of %s: %w", roomID, err)
	}

	window := live.NewWindow(limit)
	for _, m := range seed {
		window.Admit(m)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		if kind == live.EventAdded {
			for _, m := range seed {
				if subCtx.Err() != nil {
					return
				}
				deliver(live.Added(m))
			}
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if route(window, kind, ev) {
					deliver(ev)
				}
			}
		}
	}()

	a.logger.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldEvent, kind).Int("limit", limit).Msg("store: subscription opened")

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			stopBus()
			<-done
		})
	}, nil
}

// route keeps the window current and reports whether ev is one the
// subscription of the given kind should see.
func route(w *live.Window, kind string, ev live.Event) bool {
	switch ev.Type {
	case live.EventAdded:
		if ev.Message == nil {
			return false
		}
		known := w.Contains(ev.MessageID)
		admitted := w.Admit(*ev.Message)
		return kind == live.EventAdded && admitted && !known

	case live.EventChanged:
		if ev.Message == nil || kind != live.EventChanged {
			return false
		}
		return w.Contains(ev.MessageID) || w.Admit(*ev.Message)

	case live.EventRemoved:
		known := w.Contains(ev.MessageID)
		w.Remove(ev.MessageID)
		return kind == live.EventRemoved && known
	}
	return false
}

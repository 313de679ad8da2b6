package live

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/log"
)

const subscriberBuffer = 256

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// LocalBus is an in-process Bus for single-node deployments and tests.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	closed bool
	logger zerolog.Logger
}

type localSub struct {
	roomID string // empty for all rooms
	ch     chan Event
	stop   chan struct{}
	once   sync.Once
}

func NewLocalBus(logger zerolog.Logger) *LocalBus {
	return &LocalBus{
		subs:   make(map[*localSub]struct{}),
		logger: logger,
	}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.subs {
		if sub.roomID != "" && sub.roomID != ev.RoomID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber: drop instead of stalling the publisher.
			b.logger.Warn().Str(log.FieldRoomID, ev.RoomID).Str(log.FieldEvent, ev.Type).Msg("live: subscriber buffer full, event dropped")
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error) {
	return b.subscribe(ctx, roomID)
}

func (b *LocalBus) SubscribeAll(ctx context.Context) (<-chan Event, func(), error) {
	return b.subscribe(ctx, "")
}

func (b *LocalBus) subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBusClosed
	}
	sub := &localSub{roomID: roomID, ch: make(chan Event, subscriberBuffer), stop: make(chan struct{})}
	b.subs[sub] = struct{}{}

	cancel := func() { b.remove(sub) }
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-sub.stop:
			}
		}()
	}
	return sub.ch, cancel, nil
}

func (b *LocalBus) remove(sub *localSub) {
	sub.once.Do(func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.stop)
		close(sub.ch)
	})
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*localSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.remove(sub)
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions.
func (b *LocalBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/log"
)

// RedisConfig holds the connection settings for RedisBus.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisBus implements Bus on Redis pub/sub, so several server processes and
// the fan-out worker observe the same stream.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// NewRedisBus connects and verifies the connection with a PING.
func NewRedisBus(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBus{
		client: client,
		logger: logger,
		subs:   make(map[*redis.PubSub]struct{}),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, Channel(ev.RoomID), data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error) {
	return b.listen(ctx, b.client.Subscribe(ctx, Channel(roomID)))
}

func (b *RedisBus) SubscribeAll(ctx context.Context) (<-chan Event, func(), error) {
	return b.listen(ctx, b.client.PSubscribe(ctx, Channel("*")))
}

// listen waits for the subscription confirmation so that events published
// after Subscribe returns are not missed.
func (b *RedisBus) listen(ctx context.Context, ps *redis.PubSub) (<-chan Event, func(), error) {
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribing: %w", err)
	}

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(events)
		b.process(subCtx, ps, events)
	}()

	stop := func() {
		cancel()
		b.mu.Lock()
		delete(b.subs, ps)
		b.mu.Unlock()
		ps.Close()
		<-done
	}
	var once sync.Once
	return events, func() { once.Do(stop) }, nil
}

func (b *RedisBus) process(ctx context.Context, ps *redis.PubSub, events chan<- Event) {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("live: undecodable event")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			default:
				b.logger.Warn().Str(log.FieldRoomID, ev.RoomID).Str(log.FieldEvent, ev.Type).Msg("live: subscriber buffer full, event dropped")
			}
		}
	}
}

// Close closes all subscriptions and the client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	for ps := range b.subs {
		ps.Close()
	}
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	return b.client.Close()
}

package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/config"
	"github.com/pentia/chatcore/internal/database"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/repository/kv"
	"github.com/pentia/chatcore/internal/repository/postgres"
)

// Backend is an opened adapter plus the resources behind it.
type Backend struct {
	*Adapter
	Bus     live.Bus
	closers []func() error
}

// Close releases the bus and the storage backend, in that order.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open builds the adapter selected by cfg.Store.Driver and cfg.Bus.Driver.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{}
	var adapterFor func(live.Bus) *Adapter

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			b.Close()
			return nil, err
		}
		adapterFor = func(bus live.Bus) *Adapter {
			return New(postgres.NewRoomRepo(pool), postgres.NewMessageRepo(pool), postgres.NewSettingRepo(pool), bus, logger)
		}
		logger.Info().Str("host", cfg.DB.Host).Msg("connected to postgres")

	case "pebble":
		kvs, err := kv.Open(cfg.Store.PebblePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, kvs.Close)
		adapterFor = func(bus live.Bus) *Adapter {
			return New(kv.NewRoomRepo(kvs), kv.NewMessageRepo(kvs), kv.NewSettingRepo(kvs), bus, logger)
		}
		logger.Info().Str("path", cfg.Store.PebblePath).Msg("opened pebble store")

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	bus, err := OpenBus(ctx, cfg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Bus = bus
	b.closers = append(b.closers, b.Bus.Close)

	b.Adapter = adapterFor(b.Bus)
	return b, nil
}

// OpenBus connects the live event bus selected by cfg.Bus.Driver.
func OpenBus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (live.Bus, error) {
	switch cfg.Bus.Driver {
	case "redis":
		bus, err := live.NewRedisBus(ctx, live.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
		return bus, nil
	case "local":
		return live.NewLocalBus(logger), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}
}

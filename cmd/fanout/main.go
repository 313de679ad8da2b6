package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pentia/chatcore/internal/config"
	"github.com/pentia/chatcore/internal/fanout"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/push"
	"github.com/pentia/chatcore/internal/store"
)

// The fan-out worker follows the shared bus, so it needs the redis driver
// to see messages written by server processes.
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "chat-fanout"
	}
	log.Init(cfg.Log)
	logger := log.L()

	if cfg.Bus.Driver != "redis" {
		logger.Fatal().Str("bus", cfg.Bus.Driver).Msg("fanout worker requires bus.driver=redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := store.OpenBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting bus")
	}
	defer bus.Close()

	client, err := push.NewMessagingClient(ctx, cfg.Push.CredentialsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating messaging client")
	}

	if err := fanout.New(bus, client, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("fanout stopped")
	}
	logger.Info().Msg("fanout worker exiting")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"

	"github.com/pentia/chatcore/internal/config"
	"github.com/pentia/chatcore/internal/fanout"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/metrics"
	"github.com/pentia/chatcore/internal/notify"
	"github.com/pentia/chatcore/internal/push"
	"github.com/pentia/chatcore/internal/service"
	"github.com/pentia/chatcore/internal/store"
	"github.com/pentia/chatcore/internal/transport/http/handlers"
	"github.com/pentia/chatcore/internal/transport/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "chat-server"
	}
	log.Init(cfg.Log)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage + live bus
	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening store")
	}
	defer backend.Close()

	// Push (optional)
	var topics push.TopicClient
	var messagingClient *messaging.Client
	if client, err := push.NewMessagingClient(ctx, cfg.Push.CredentialsFile); err != nil {
		logger.Warn().Err(err).Msg("push disabled: messaging client unavailable")
	} else {
		messagingClient = client
		topics = client
	}

	if cfg.Push.EmbeddedFanout && messagingClient != nil {
		trigger := fanout.New(backend.Bus, messagingClient, logger)
		go func() {
			if err := trigger.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("embedded fanout stopped")
			}
		}()
	}

	// Services
	chatService := service.NewChatService(backend, notify.NewManager(backend, nil), logger)

	// WebSocket
	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	wsDeps := &ws.Deps{
		Store:      backend,
		Chat:       chatService,
		Topics:     topics,
		PageSize:   cfg.Feed.PageSize,
		LinkPrefix: cfg.Links.Prefix,
		SendRate:   rate.Limit(cfg.WS.SendRate),
		SendBurst:  cfg.WS.SendBurst,
		JWTSecret:  cfg.JWT.Secret,
		Logger:     logger,
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Chat:      chatService,
		Settings:  backend,
		JWTSecret: cfg.JWT.Secret,
		WS:        ws.ServeWS(hub, wsDeps),
		Metrics:   metrics.Handler(),
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Str("bus", cfg.Bus.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/service"
	"github.com/pentia/chatcore/internal/transport/http/middleware"
)

type RouterConfig struct {
	Chat      *service.ChatService
	Settings  SettingReader
	JWTSecret string
	// WS and Metrics are mounted when set.
	WS      http.Handler
	Metrics http.Handler
	Logger  zerolog.Logger
}

// NewRouter mounts every HTTP route behind request logging and CORS.
func NewRouter(cfg RouterConfig) http.Handler {
	roomHandler := NewRoomHandler(cfg.Chat, cfg.Settings)
	messageHandler := NewMessageHandler(cfg.Chat)

	auth := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", Health)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	// The socket authenticates with its token query parameter.
	if cfg.WS != nil {
		mux.Handle("GET /ws", cfg.WS)
	}

	// Protected - Rooms
	mux.Handle("GET /api/v1/rooms", auth(http.HandlerFunc(roomHandler.List)))
	mux.Handle("GET /api/v1/rooms/{id}", auth(http.HandlerFunc(roomHandler.Get)))
	mux.Handle("GET /api/v1/rooms/{id}/settings", auth(http.HandlerFunc(roomHandler.Settings)))

	// Protected - Messages
	mux.Handle("GET /api/v1/rooms/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/v1/rooms/{id}/messages", auth(http.HandlerFunc(messageHandler.Send)))

	return log.HTTPMiddleware(cfg.Logger)(middleware.CORS(mux))
}

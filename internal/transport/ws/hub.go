package ws

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pentia/chatcore/internal/feed"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/metrics"
	"github.com/pentia/chatcore/internal/notify"
	"github.com/pentia/chatcore/internal/push"
	"github.com/pentia/chatcore/internal/service"
)

// Store is what a connection needs from the message store adapter.
type Store interface {
	feed.PageReader
	feed.LiveSource
	notify.SettingStore
}

// Deps are shared by every connection.
type Deps struct {
	Store Store
	Chat  *service.ChatService
	// Topics manages device topic subscriptions; nil disables them.
	Topics     push.TopicClient
	PageSize   int
	LinkPrefix string
	SendRate   rate.Limit
	SendBurst  int
	JWTSecret  string
	Logger     zerolog.Logger
}

// Hub tracks live connections.
type Hub struct {
	clients map[string]*Client
	logger  zerolog.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine. When ctx
// is done every connection is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			metrics.Connections.Inc()
			h.logger.Info().Str(log.FieldConnID, client.id).Str(log.FieldUserID, client.user.ID).Int("total", len(h.clients)).Msg("ws hub: client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				metrics.Connections.Dec()
				client.close()
				h.logger.Info().Str(log.FieldConnID, client.id).Int("total", len(h.clients)).Msg("ws hub: client disconnected")
			}

		case <-ctx.Done():
			for id, client := range h.clients {
				delete(h.clients, id)
				metrics.Connections.Dec()
				client.close()
			}
			h.logger.Info().Msg("ws hub: stopped")
			return
		}
	}
}

// add hands a new client to the loop; it reports false once the hub stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove hands a finished client to the loop, or closes it directly when
// the hub already stopped.
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pentia/chatcore/internal/deeplink"
	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/feed"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/notify"
	"github.com/pentia/chatcore/internal/push"
	"github.com/pentia/chatcore/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBufSize    = 256
)

// Client is one connected app instance. It owns the instance's open rooms,
// its push device and its deep-link router.
type Client struct {
	id     string
	hub    *Hub
	deps   *Deps
	conn   *websocket.Conn
	user   domain.User
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	limiter *rate.Limiter

	mu       sync.Mutex
	sessions map[string]*feed.Session
	device   *push.Device
	links    *deeplink.LinkSource
	stops    []func()

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, deps *Deps, conn *websocket.Conn, user domain.User) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Client{
		id:       id,
		hub:      hub,
		deps:     deps,
		conn:     conn,
		user:     user,
		logger:   deps.Logger.With().Str(log.FieldConnID, id).Str(log.FieldUserID, user.ID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		limiter:  rate.NewLimiter(deps.SendRate, deps.SendBurst),
		sessions: make(map[string]*feed.Session),
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}
}

// ReadPump reads messages from the WebSocket and handles them in order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var event Event
		err := wsjson.Read(c.ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.logger.Debug().Msg("ws: client disconnected")
			} else {
				c.logger.Warn().Err(err).Msg("ws: read error")
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("ws: write error")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("ws: ping error")
				return
			}

		case <-c.done:
			return
		}
	}
}

// close releases everything the connection owns. Safe to call repeatedly.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		sessions := c.sessions
		c.sessions = make(map[string]*feed.Session)
		stops := c.stops
		c.stops = nil
		c.mu.Unlock()

		for _, s := range sessions {
			s.Close()
		}
		for _, stop := range stops {
			stop()
		}
	})
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeHello:
		var p HelloPayload
		if !c.decode(event, &p) {
			return
		}
		c.hello(p)

	case EventTypeRoomOpen:
		if c.requireRoom(event) {
			c.openRoom(event.RoomID)
		}

	case EventTypeRoomClose:
		if c.requireRoom(event) {
			c.closeRoom(event.RoomID)
		}

	case EventTypeRoomLoadOlder:
		if c.requireRoom(event) {
			c.loadOlder(event.RoomID)
		}

	case EventTypeMessageSend:
		var p MessageSendPayload
		if !c.requireRoom(event) || !c.decode(event, &p) {
			return
		}
		c.sendMessage(event.RoomID, p)

	case EventTypeNotificationsSet:
		var p NotificationsSetPayload
		if !c.requireRoom(event) || !c.decode(event, &p) {
			return
		}
		err := c.notifications().SetEnabled(c.ctx, c.user.ID, event.RoomID, p.Enabled)
		c.reportNotifications(event.RoomID, p.Enabled, err)

	case EventTypeNotificationsToggle:
		if !c.requireRoom(event) {
			return
		}
		enabled, err := c.notifications().Toggle(c.ctx, c.user.ID, event.RoomID)
		c.reportNotifications(event.RoomID, enabled, err)

	case EventTypeLinkOpen:
		var p LinkOpenPayload
		if !c.decode(event, &p) {
			return
		}
		links, _ := c.app()
		if links == nil {
			c.sendError("HELLO_REQUIRED", "send hello before link events")
			return
		}
		links.Open(p.URL)

	case EventTypeNotificationOpened, EventTypeNotificationForeground:
		var p push.Payload
		if !c.decode(event, &p) {
			return
		}
		_, device := c.app()
		if device == nil {
			c.sendError("HELLO_REQUIRED", "send hello before notification events")
			return
		}
		if event.Type == EventTypeNotificationOpened {
			device.DeliverOpened(p)
		} else {
			device.DeliverForeground(p)
		}

	case EventTypeNotificationBackground:
		var p push.Payload
		if !c.decode(event, &p) {
			return
		}
		n := push.Background(p)
		c.sendEvent(EventTypeNotificationLocal, n.RoomID, n)

	case EventTypePing:
		c.sendEvent(EventTypePong, "", nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// hello attaches the push device and deep-link router and resolves the
// launch target.
func (c *Client) hello(p HelloPayload) {
	c.mu.Lock()
	if c.device != nil {
		c.mu.Unlock()
		c.sendError("ALREADY_GREETED", "hello already received")
		return
	}

	device := push.NewDevice(p.PushToken, c.deps.Topics)
	if p.InitialNotification != nil {
		device.SetInitialNotification(*p.InitialNotification)
	}
	links := deeplink.NewLinkSource(p.InitialURL)
	router := deeplink.NewRouter(c.deps.LinkPrefix, links, device, &navigator{client: c}, c.logger)

	stopForeground := device.OnForegroundMessage(func(msg push.Payload) {
		n := push.Background(msg)
		c.sendEvent(EventTypeNotificationLocal, n.RoomID, n)
	})
	stopRouter := router.Listen()

	c.device = device
	c.links = links
	c.stops = append(c.stops, stopForeground, stopRouter)
	c.mu.Unlock()

	if u := router.ColdStart(c.ctx); u != "" {
		c.sendEvent(EventTypeNavigateURL, "", NavigateURLPayload{URL: u})
	}
}

func (c *Client) app() (*deeplink.LinkSource, *push.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links, c.device
}

// notifications returns a manager bound to this connection's device, or a
// device-less one before hello.
func (c *Client) notifications() *notify.Manager {
	_, device := c.app()
	if device == nil {
		return notify.NewManager(c.deps.Store, nil)
	}
	return notify.NewManager(c.deps.Store, device)
}

func (c *Client) openRoom(roomID string) {
	c.mu.Lock()
	existing := c.sessions[roomID]
	c.mu.Unlock()
	if existing != nil {
		c.sendEvent(EventTypeFeedView, roomID, existing.View())
		c.sendEvent(EventTypeNotificationsState, roomID, NotificationsStatePayload{Enabled: existing.NotificationsEnabled()})
		return
	}

	if _, err := c.deps.Chat.GetRoom(c.ctx, roomID); err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			c.sendRoomError(roomID, "VALIDATION_ERROR", "Invalid room id")
			return
		}
		if errors.Is(err, service.ErrRoomNotFound) {
			c.sendRoomError(roomID, "ROOM_NOT_FOUND", "Room not found")
			return
		}
		c.logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: get room failed")
		c.sendRoomError(roomID, "INTERNAL", "Something went wrong")
		return
	}

	session, err := feed.Open(c.ctx, feed.Deps{
		Pages:         c.deps.Store,
		Live:          c.deps.Store,
		Notifications: c.notifications(),
		PageSize:      c.deps.PageSize,
		Listener: func(v feed.View) {
			c.sendEvent(EventTypeFeedView, roomID, v)
		},
		Logger: c.logger,
	}, roomID, c.user.ID)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: open room failed")
		c.sendRoomError(roomID, "ROOM_OPEN_FAILED", "Could not load messages")
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil || c.sessions[roomID] != nil {
		// Closed or opened concurrently meanwhile.
		c.mu.Unlock()
		session.Close()
		return
	}
	c.sessions[roomID] = session
	c.mu.Unlock()

	c.sendEvent(EventTypeFeedView, roomID, session.View())
	c.sendEvent(EventTypeNotificationsState, roomID, NotificationsStatePayload{Enabled: session.NotificationsEnabled()})
}

func (c *Client) closeRoom(roomID string) {
	c.mu.Lock()
	session := c.sessions[roomID]
	delete(c.sessions, roomID)
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

func (c *Client) loadOlder(roomID string) {
	c.mu.Lock()
	session := c.sessions[roomID]
	c.mu.Unlock()
	if session == nil {
		c.sendRoomError(roomID, "ROOM_NOT_OPEN", "Open the room first")
		return
	}

	// Views are pushed by the session listener; only failures are reported here.
	go func() {
		if _, err := session.LoadOlder(c.ctx); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: load older failed")
			c.sendRoomError(roomID, "FETCH_FAILED", "Could not load older messages")
		}
	}()
}

func (c *Client) sendMessage(roomID string, p MessageSendPayload) {
	if !c.limiter.Allow() {
		c.sendRoomError(roomID, "RATE_LIMITED", "Too many messages, slow down")
		return
	}

	res, err := c.deps.Chat.Send(c.ctx, c.user, roomID, service.SendMessageInput{Text: p.Text, ImageURL: p.ImageURL})
	if err != nil {
		var inputErr *service.InputError
		switch {
		case errors.As(err, &inputErr):
			c.sendRoomError(roomID, "VALIDATION_ERROR", "Message text or image is required")
		case errors.Is(err, service.ErrRoomNotFound):
			c.sendRoomError(roomID, "ROOM_NOT_FOUND", "Room not found")
		default:
			c.logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: send message failed")
			c.sendRoomError(roomID, "INTERNAL", "Something went wrong")
		}
		return
	}

	if res.FirstMessage {
		c.sendEvent(EventTypeNotificationsPrompt, roomID, PromptPayload{Message: promptText})
	}
	c.sendEvent(EventTypeMessageSent, roomID, MessageSentPayload{Nonce: p.Nonce, Message: res.Message})
}

func (c *Client) reportNotifications(roomID string, enabled bool, err error) {
	state := NotificationsStatePayload{Enabled: enabled}
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrTopic), errors.Is(err, notify.ErrNoDevice):
		c.logger.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: topic subscription not updated")
		state.Warning = err.Error()
	case errors.Is(err, notify.ErrMissingID):
		c.sendRoomError(roomID, "INVALID_PAYLOAD", "room id required")
		return
	default:
		c.logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("ws: notification setting failed")
		c.sendRoomError(roomID, "SETTING_FAILED", "Could not save notification setting")
		return
	}
	c.sendEvent(EventTypeNotificationsState, roomID, state)
}

func (c *Client) requireRoom(event *Event) bool {
	if event.RoomID == "" {
		c.sendError("INVALID_PAYLOAD", "room_id required for "+event.Type)
		return false
	}
	return true
}

func (c *Client) decode(event *Event, v any) bool {
	if len(event.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(event.Payload, v); err != nil {
		c.sendError("INVALID_PAYLOAD", "invalid "+event.Type+" payload")
		return false
	}
	return true
}

// sendEvent queues an event for the write pump. A full buffer drops the
// event; the next feed view supersedes a dropped one.
func (c *Client) sendEvent(eventType, roomID string, payload any) {
	evt, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, eventType).Msg("ws: marshal error")
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn().Str(log.FieldEvent, eventType).Msg("ws: send buffer full, event dropped")
	}
}

func (c *Client) sendError(code, message string) {
	c.sendRoomError("", code, message)
}

func (c *Client) sendRoomError(roomID, code, message string) {
	c.sendEvent(EventTypeError, roomID, ErrorPayload{Code: code, Message: message})
}

// navigator drives the app's navigation through navigate.* events.
type navigator struct {
	client *Client
}

func (n *navigator) Reset(_ context.Context, routes []deeplink.Route) error {
	n.client.sendEvent(EventTypeNavigateReset, "", NavigateResetPayload{Routes: routes})
	return nil
}

func (n *navigator) OpenURL(_ context.Context, url string) error {
	n.client.sendEvent(EventTypeNavigateURL, "", NavigateURLPayload{URL: url})
	return nil
}

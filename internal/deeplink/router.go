package deeplink

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/push"
)

const (
	RouteRooms = "ChatRooms"
	RouteChat  = "Chat"
)

// Route is one entry of the navigation stack.
type Route struct {
	Name   string `json:"name"`
	RoomID string `json:"room_id,omitempty"`
}

type Navigator interface {
	Reset(ctx context.Context, routes []Route) error
	OpenURL(ctx context.Context, url string) error
}

// Notifications is the device-side notification stream the router reads.
type Notifications interface {
	InitialNotification() (push.Payload, bool)
	OnNotificationOpened(fn func(push.Payload)) func()
}

type Router struct {
	prefix string
	links  *LinkSource
	notes  Notifications
	nav    Navigator
	logger zerolog.Logger
}

func NewRouter(prefix string, links *LinkSource, notes Notifications, nav Navigator, logger zerolog.Logger) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Router{prefix: prefix, links: links, notes: notes, nav: nav, logger: logger}
}

// ColdStart returns the URL the app should open at launch, or "" when
// nothing should be opened. An explicit launch URL wins. A launching
// notification for a room resets the stack directly and yields "".
func (r *Router) ColdStart(ctx context.Context) string {
	if u := r.links.InitialURL(); u != "" {
		return u
	}

	p, ok := r.notes.InitialNotification()
	if !ok {
		return ""
	}
	return r.follow(ctx, p)
}

// Listen forwards URL opens to the navigator and resolves tapped
// notifications the same way as at cold start. The returned function stops
// both listeners.
func (r *Router) Listen() func() {
	stopURLs := r.links.OnURL(func(u string) {
		if err := r.nav.OpenURL(context.Background(), u); err != nil {
			r.logger.Warn().Err(err).Str("url", u).Msg("deeplink: open url failed")
		}
	})
	stopNotes := r.notes.OnNotificationOpened(func(p push.Payload) {
		ctx := context.Background()
		if u := r.follow(ctx, p); u != "" {
			if err := r.nav.OpenURL(ctx, u); err != nil {
				r.logger.Warn().Err(err).Str("url", u).Msg("deeplink: open url failed")
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stopURLs()
			stopNotes()
		})
	}
}

// follow resets the stack for room targets and returns the URL for list
// targets.
func (r *Router) follow(ctx context.Context, p push.Payload) string {
	t := FromPayload(p.Data)
	switch t.Kind {
	case KindRoom:
		routes := []Route{{Name: RouteRooms}, {Name: RouteChat, RoomID: t.RoomID}}
		if err := r.nav.Reset(ctx, routes); err != nil {
			r.logger.Warn().Err(err).Str(log.FieldRoomID, t.RoomID).Msg("deeplink: navigation reset failed")
		}
		return ""
	case KindList:
		return t.URL(r.prefix)
	default:
		r.logger.Warn().Interface("data", p.Data).Msg("deeplink: notification has no navigation target")
		return ""
	}
}

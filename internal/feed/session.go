package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/log"
)

// LiveSource delivers bounded live streams for a room. Each call returns a
// function that ends the stream.
type LiveSource interface {
	SubscribeAdded(ctx context.Context, roomID string, limit int, fn func(domain.Message)) (func(), error)
	SubscribeChanged(ctx context.Context, roomID string, limit int, fn func(domain.Message)) (func(), error)
	SubscribeRemoved(ctx context.Context, roomID string, limit int, fn func(string)) (func(), error)
}

// SettingSource reports whether notifications are enabled for a user in a room.
type SettingSource interface {
	Enabled(ctx context.Context, userID, roomID string) (bool, error)
}

type Deps struct {
	Pages         PageReader
	Live          LiveSource
	Notifications SettingSource
	PageSize      int
	Listener      func(View)
	Logger        zerolog.Logger
}

// Session is an open room: the merger, its three live subscriptions and the
// user's notification flag at open time.
type Session struct {
	merger  *Merger
	userID  string
	enabled bool
	logger  zerolog.Logger

	cancel   context.CancelFunc
	mu       sync.Mutex
	releases []func()
	once     sync.Once
}

// Open subscribes to the room's streams, loads the initial page and the
// notification setting concurrently, and returns the running session. If
// any step fails everything acquired so far is released.
func Open(ctx context.Context, deps Deps, roomID, userID string) (*Session, error) {
	sessCtx, cancel := context.WithCancel(ctx)

	m := NewMerger(roomID, deps.Pages, WithPageSize(deps.PageSize), WithListener(deps.Listener))
	s := &Session{
		merger: m,
		userID: userID,
		logger: deps.Logger.With().Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Logger(),
		cancel: cancel,
	}
	limit := m.PageSize()

	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error {
		stop, err := deps.Live.SubscribeAdded(sessCtx, roomID, limit, m.Added)
		return s.hold(stop, err)
	})
	g.Go(func() error {
		stop, err := deps.Live.SubscribeChanged(sessCtx, roomID, limit, m.Changed)
		return s.hold(stop, err)
	})
	g.Go(func() error {
		stop, err := deps.Live.SubscribeRemoved(sessCtx, roomID, limit, m.Removed)
		return s.hold(stop, err)
	})
	g.Go(func() error {
		return m.LoadInitial(gctx)
	})
	g.Go(func() error {
		enabled, err := deps.Notifications.Enabled(gctx, userID, roomID)
		if err != nil {
			return fmt.Errorf("reading notification setting: %w", err)
		}
		s.enabled = enabled
		return nil
	})

	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug().Int("messages", len(m.Snapshot().Messages)).Msg("room session opened")
	return s, nil
}

func (s *Session) hold(stop func(), err error) error {
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.releases = append(s.releases, stop)
	s.mu.Unlock()
	return nil
}

// Close ends all live subscriptions. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		releases := s.releases
		s.releases = nil
		s.mu.Unlock()
		for _, release := range releases {
			release()
		}
	})
}

func (s *Session) RoomID() string { return s.merger.RoomID() }

func (s *Session) View() View { return s.merger.Snapshot() }

func (s *Session) LoadOlder(ctx context.Context) (int, error) {
	return s.merger.LoadOlder(ctx)
}

// NotificationsEnabled is the flag as read when the session opened.
func (s *Session) NotificationsEnabled() bool { return s.enabled }

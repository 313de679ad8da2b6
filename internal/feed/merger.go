// Package feed keeps the ordered, de-duplicated message view of one room,
// merging an initial page, live add/change/remove events and backward
// pagination.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/metrics"
)

const DefaultPageSize = 50

var ErrFetch = errors.New("fetching messages failed")

// PageReader reads a page of messages ascending by timestamp, strictly older
// than olderThan when set.
type PageReader interface {
	ReadMessagePage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error)
}

// View is a copy of the feed state. Messages are ascending by timestamp and
// unique by id.
type View struct {
	RoomID          string           `json:"room_id"`
	Messages        []domain.Message `json:"messages"`
	OldestTimestamp *int64           `json:"oldest_timestamp,omitempty"`
	LoadingOlder    bool             `json:"loading_older"`
}

type Option func(*Merger)

func WithPageSize(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithListener registers fn to receive a snapshot after every visible
// change, in the order the changes were applied. fn runs with the merger
// locked and must not call back into it.
func WithListener(fn func(View)) Option {
	return func(m *Merger) { m.listener = fn }
}

// Merger owns the feed view of a single room. It is safe for concurrent use.
type Merger struct {
	roomID   string
	reader   PageReader
	pageSize int
	listener func(View)

	mu    sync.Mutex
	msgs  []domain.Message
	known map[string]struct{}

	// removed holds ids deleted by a live event. Ids are never reused, so a
	// later page or replay carrying one of them is stale.
	removed map[string]struct{}
	loading bool
}

func NewMerger(roomID string, reader PageReader, opts ...Option) *Merger {
	m := &Merger{
		roomID:   roomID,
		reader:   reader,
		pageSize: DefaultPageSize,
		known:    make(map[string]struct{}),
		removed:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Merger) RoomID() string { return m.roomID }

func (m *Merger) PageSize() int { return m.pageSize }

// LoadInitial reads the newest page and merges it into whatever live events
// have already been applied. Live state wins: messages already shown are
// kept as they are and removed ones stay removed. On failure the view is
// left untouched.
func (m *Merger) LoadInitial(ctx context.Context) error {
	page, err := m.reader.ReadMessagePage(ctx, m.roomID, m.pageSize, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergePageLocked(page)
	m.emitLocked()
	return nil
}

// Added inserts msg unless a message with the same id is already present.
func (m *Merger) Added(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRemovedLocked(msg.ID) || !m.insertLocked(msg) {
		metrics.FeedEvents.WithLabelValues("added", "ignored").Inc()
		return
	}
	metrics.FeedEvents.WithLabelValues("added", "applied").Inc()
	m.emitLocked()
}

// Changed replaces the stored message with the same id, moving it when its
// timestamp changed. Unknown ids are inserted unless they were removed.
func (m *Merger) Changed(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRemovedLocked(msg.ID) {
		metrics.FeedEvents.WithLabelValues("changed", "ignored").Inc()
		return
	}
	m.upsertLocked(msg)
	metrics.FeedEvents.WithLabelValues("changed", "applied").Inc()
	m.emitLocked()
}

// Removed drops the message with the given id, if present.
func (m *Merger) Removed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed[id] = struct{}{}
	if !m.deleteLocked(id) {
		metrics.FeedEvents.WithLabelValues("removed", "ignored").Inc()
		return
	}
	metrics.FeedEvents.WithLabelValues("removed", "applied").Inc()
	m.emitLocked()
}

// LoadOlder fetches one page of messages older than the oldest one shown.
// It does nothing when the view is empty or a page is already being
// fetched; overlapping requests are dropped, not queued. It returns the
// number of messages added.
func (m *Merger) LoadOlder(ctx context.Context) (int, error) {
	m.mu.Lock()
	if len(m.msgs) == 0 {
		m.mu.Unlock()
		return 0, nil
	}
	if m.loading {
		m.mu.Unlock()
		metrics.PageFetches.WithLabelValues("dropped").Inc()
		return 0, nil
	}
	m.loading = true
	oldest := m.msgs[0].Timestamp
	m.emitLocked()
	m.mu.Unlock()

	page, err := m.reader.ReadMessagePage(ctx, m.roomID, m.pageSize, &oldest)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false

	if err != nil {
		metrics.PageFetches.WithLabelValues("failed").Inc()
		m.emitLocked()
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	added := m.mergePageLocked(page)
	metrics.PageFetches.WithLabelValues("fetched").Inc()
	m.emitLocked()
	return added, nil
}

// Snapshot returns a copy of the current view.
func (m *Merger) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Merger) viewLocked() View {
	v := View{
		RoomID:       m.roomID,
		Messages:     make([]domain.Message, len(m.msgs)),
		LoadingOlder: m.loading,
	}
	copy(v.Messages, m.msgs)
	if len(m.msgs) > 0 {
		ts := m.msgs[0].Timestamp
		v.OldestTimestamp = &ts
	}
	return v
}

func (m *Merger) emitLocked() {
	if m.listener != nil {
		m.listener(m.viewLocked())
	}
}

func (m *Merger) insertLocked(msg domain.Message) bool {
	if _, ok := m.known[msg.ID]; ok {
		return false
	}
	i := sort.Search(len(m.msgs), func(i int) bool {
		return !m.msgs[i].Before(&msg)
	})
	m.msgs = append(m.msgs, domain.Message{})
	copy(m.msgs[i+1:], m.msgs[i:])
	m.msgs[i] = msg
	m.known[msg.ID] = struct{}{}
	return true
}

// mergePageLocked inserts the page entries not yet known and not removed.
func (m *Merger) mergePageLocked(page []domain.Message) int {
	added := 0
	for i := range page {
		if m.isRemovedLocked(page[i].ID) {
			continue
		}
		if m.insertLocked(page[i]) {
			added++
		}
	}
	return added
}

func (m *Merger) isRemovedLocked(id string) bool {
	_, ok := m.removed[id]
	return ok
}

func (m *Merger) upsertLocked(msg domain.Message) {
	if _, ok := m.known[msg.ID]; ok {
		i := m.indexLocked(msg.ID)
		if m.msgs[i].Timestamp == msg.Timestamp {
			m.msgs[i] = msg
			return
		}
		m.deleteLocked(msg.ID)
	}
	m.insertLocked(msg)
}

func (m *Merger) deleteLocked(id string) bool {
	if _, ok := m.known[id]; !ok {
		return false
	}
	i := m.indexLocked(id)
	m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
	delete(m.known, id)
	return true
}

func (m *Merger) indexLocked(id string) int {
	for i := range m.msgs {
		if m.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

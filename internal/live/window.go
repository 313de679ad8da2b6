package live

import (
	"sort"

	"github.com/pentia/chatcore/internal/domain"
)

// Window tracks the newest limit messages of a room, the range a bounded
// subscription watches. Eviction only narrows the watched range; it is not a
// removal of the message.
type Window struct {
	limit   int
	entries []windowEntry
	ids     map[string]int64
}

type windowEntry struct {
	ts int64
	id string
}

func (e windowEntry) less(o windowEntry) bool {
	if e.ts != o.ts {
		return e.ts < o.ts
	}
	return e.id < o.id
}

func NewWindow(limit int) *Window {
	return &Window{limit: limit, ids: make(map[string]int64)}
}

// Admit adds msg to the window and reports whether it falls inside it. A
// message older than a full window is not admitted.
func (w *Window) Admit(msg domain.Message) bool {
	if _, ok := w.ids[msg.ID]; ok {
		return true
	}
	e := windowEntry{ts: msg.Timestamp, id: msg.ID}
	if w.limit > 0 && len(w.entries) >= w.limit && e.less(w.entries[0]) {
		return false
	}

	i := sort.Search(len(w.entries), func(i int) bool { return e.less(w.entries[i]) })
	w.entries = append(w.entries, windowEntry{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = e
	w.ids[e.id] = e.ts

	if w.limit > 0 && len(w.entries) > w.limit {
		evicted := w.entries[0]
		w.entries = w.entries[1:]
		delete(w.ids, evicted.id)
	}
	return true
}

// Contains reports whether id is inside the window.
func (w *Window) Contains(id string) bool {
	_, ok := w.ids[id]
	return ok
}

// Remove drops id from the window, freeing a slot.
func (w *Window) Remove(id string) {
	ts, ok := w.ids[id]
	if !ok {
		return
	}
	delete(w.ids, id)
	e := windowEntry{ts: ts, id: id}
	i := sort.Search(len(w.entries), func(i int) bool { return !w.entries[i].less(e) })
	if i < len(w.entries) && w.entries[i] == e {
		w.entries = append(w.entries[:i], w.entries[i+1:]...)
	}
}

// Len returns the number of watched messages.
func (w *Window) Len() int {
	return len(w.entries)
}

package live

import (
	"testing"

	"github.com/pentia/chatcore/internal/domain"
)

func msg(id string, ts int64) domain.Message {
	return domain.Message{ID: id, RoomID: "r1", Timestamp: ts, SenderID: "u1"}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(2)
	w.Admit(msg("a", 10))
	w.Admit(msg("b", 20))
	if !w.Admit(msg("c", 30)) {
		t.Fatal("newest message must be admitted")
	}
	if w.Contains("a") {
		t.Fatal("oldest entry should have been evicted")
	}
	if !w.Contains("b") || !w.Contains("c") || w.Len() != 2 {
		t.Fatalf("unexpected window contents, len %d", w.Len())
	}
}

func TestWindowRejectsOlderThanFullWindow(t *testing.T) {
	w := NewWindow(2)
	w.Admit(msg("b", 20))
	w.Admit(msg("c", 30))
	if w.Admit(msg("a", 10)) {
		t.Fatal("message older than a full window must not be admitted")
	}
	if w.Contains("a") {
		t.Fatal("rejected message must not be tracked")
	}
}

func TestWindowRemoveFreesSlot(t *testing.T) {
	w := NewWindow(2)
	w.Admit(msg("b", 20))
	w.Admit(msg("c", 30))
	w.Remove("c")
	w.Remove("missing")
	if !w.Admit(msg("a", 10)) {
		t.Fatal("slot freed by removal should accept an older message")
	}
	if w.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", w.Len())
	}
}

func TestWindowAdmitIsIdempotent(t *testing.T) {
	w := NewWindow(3)
	w.Admit(msg("a", 10))
	w.Admit(msg("a", 10))
	if w.Len() != 1 {
		t.Fatalf("duplicate admit grew the window to %d", w.Len())
	}
}

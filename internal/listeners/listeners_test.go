package listeners

import "testing"

func TestAddEmitRemove(t *testing.T) {
	var s Set[string]
	var got []string

	remove := s.Add(func(v string) { got = append(got, v) })
	if n := s.Emit("a"); n != 1 {
		t.Fatalf("expected 1 listener, got %d", n)
	}

	remove()
	remove()
	if n := s.Emit("b"); n != 0 {
		t.Fatalf("expected 0 listeners after remove, got %d", n)
	}
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestEmitRunsInRegistrationOrder(t *testing.T) {
	var s Set[int]
	var order []int

	var removers []func()
	for i := 0; i < 8; i++ {
		i := i
		removers = append(removers, s.Add(func(int) { order = append(order, i) }))
	}
	removers[3]()
	removers[0]()

	if n := s.Emit(0); n != 6 {
		t.Fatalf("expected 6 listeners, got %d", n)
	}
	want := []int{1, 2, 4, 5, 6, 7}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

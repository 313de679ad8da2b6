package deeplink

import (
	"sync"

	"github.com/pentia/chatcore/internal/listeners"
)

// LinkSource is the app's URL event source: the URL it was launched with and
// the URLs opened while it runs.
type LinkSource struct {
	mu      sync.RWMutex
	initial string
	opened  listeners.Set[string]
}

func NewLinkSource(initial string) *LinkSource {
	return &LinkSource{initial: initial}
}

func (s *LinkSource) InitialURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initial
}

func (s *LinkSource) SetInitialURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial = u
}

// Open announces a URL opened while running and reports how many listeners
// received it.
func (s *LinkSource) Open(u string) int {
	return s.opened.Emit(u)
}

func (s *LinkSource) OnURL(fn func(string)) func() {
	return s.opened.Add(fn)
}

package naming

import (
	"strings"
	"sync"
)

// UsedSet records the output names taken during one batch run. It is safe
// for concurrent use and the zero value is empty. Each run owns its own set.
type UsedSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewUsedSet returns a set seeded with existing names, e.g. files already in
// the output directory.
func NewUsedSet(existing ...string) *UsedSet {
	s := &UsedSet{names: make(map[string]struct{}, len(existing))}
	for _, n := range existing {
		s.add(n)
	}
	return s
}

// Contains reports whether name is taken.
func (s *UsedSet) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.has(name)
}

// Len returns the number of taken names.
func (s *UsedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Names are compared case-insensitively so two teams cannot collide on
// case-insensitive filesystems.
func (s *UsedSet) has(name string) bool {
	_, ok := s.names[strings.ToLower(name)]
	return ok
}

func (s *UsedSet) add(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[strings.ToLower(name)] = struct{}{}
}

// Package dedup tracks recently applied event identifiers so that
// at-least-once delivered events are applied at most once.
package dedup

import "sync"

const DefaultCapacity = 512

// Set is a bounded set of recently seen keys. When capacity is exceeded the
// oldest keys are evicted; the practical replay window is short, so a small
// bound is enough.
type Set struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldApply reports true exactly once per key within the retention window
// and marks the key as seen. An empty key is never tracked and always
// applies.
func (s *Set) ShouldApply(key string) bool {
	if key == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{}, s.capacity)
	s.order = nil
}

package command

import (
	"sort"
	"sync"
)

// UserSet is a set of user ids safe for concurrent use. Writers do not
// coordinate with readers beyond memory safety: the last write wins.
type UserSet struct {
	ids map[string]struct{}
	mu  sync.RWMutex
}

// NewUserSet creates a set holding ids.
func NewUserSet(ids ...string) *UserSet {
	s := &UserSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *UserSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *UserSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *UserSet) Has(id string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Replace swaps the whole content of the set.
func (s *UserSet) Replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.mu.Lock()
	s.ids = next
	s.mu.Unlock()
}

// Members returns the ids in sorted order.
func (s *UserSet) Members() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

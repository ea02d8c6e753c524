package session

import (
	"sync"
	"time"

	"github.com/davoli/bussola/internal/profile"
)

// MemoryStore keeps sessions in a mutex-guarded map. Profiles are cloned
// on the way in and out, so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*profile.Profile
	ttl      time.Duration
}

// NewMemoryStore creates an in-memory store. ttl > 0 makes Get treat
// sessions older than ttl as absent; ttl == 0 disables expiry on read
// (sessions then only leave via Delete or SweepOlderThan).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*profile.Profile),
		ttl:      ttl,
	}
}

func (s *MemoryStore) Create() (*profile.Profile, error) {
	p := profile.New()
	s.mu.Lock()
	s.sessions[p.SessionID] = p.Clone()
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) Get(id string) (*profile.Profile, error) {
	s.mu.RLock()
	p, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && time.Since(p.CreatedAt) > s.ttl {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Put(id string, p *profile.Profile) error {
	s.mu.Lock()
	s.sessions[id] = p.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(id string) bool {
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	return ok
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SweepOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.sessions {
		if p.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

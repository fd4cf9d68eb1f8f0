package session

import (
	"context"
	"sync"

	"github.com/MrEthical07/goAuthClient/api"
)

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]api.Member
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]api.Member)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (api.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.profiles[key]
	if !ok {
		return api.Member{}, ErrNoProfile
	}
	return m, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, m api.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[key] = m
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, key)
	return nil
}

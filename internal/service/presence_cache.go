package service

import (
	"context"
	"sync"
	"time"
)

// PresenceCacheStore caches the "does this host hold a live session"
// lookup so list endpoints do not hit the sessions table once per
// host. Entries are short-lived; the session table stays the source
// of truth.
type PresenceCacheStore interface {
	Get(ctx context.Context, userID uint) (online, found bool, err error)
	Set(ctx context.Context, userID uint, online bool, ttl time.Duration) error
}

type NoopPresenceCacheStore struct{}

func NewNoopPresenceCacheStore() *NoopPresenceCacheStore { return &NoopPresenceCacheStore{} }

func (s *NoopPresenceCacheStore) Get(context.Context, uint) (bool, bool, error) {
	return false, false, nil
}

func (s *NoopPresenceCacheStore) Set(context.Context, uint, bool, time.Duration) error {
	return nil
}

type presenceEntry struct {
	online    bool
	expiresAt time.Time
}

type InMemoryPresenceCacheStore struct {
	mu    sync.RWMutex
	store map[uint]presenceEntry
}

func NewInMemoryPresenceCacheStore() *InMemoryPresenceCacheStore {
	return &InMemoryPresenceCacheStore{store: make(map[uint]presenceEntry)}
}

func (s *InMemoryPresenceCacheStore) Get(_ context.Context, userID uint) (bool, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[userID]
	s.mu.RUnlock()
	if !ok {
		return false, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if e2, ok2 := s.store[userID]; ok2 && now.After(e2.expiresAt) {
			delete(s.store, userID)
		}
		s.mu.Unlock()
		return false, false, nil
	}
	return entry.online, true, nil
}

func (s *InMemoryPresenceCacheStore) Set(_ context.Context, userID uint, online bool, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[userID] = presenceEntry{online: online, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

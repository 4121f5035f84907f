package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

type sessionRecord struct {
	session   playground.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are dropped
// lazily on read.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]sessionRecord
	now   func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]sessionRecord), now: time.Now}
}

// Save stores the session with a TTL; zero means no expiry.
func (s *MemoryStore) Save(_ context.Context, session playground.Session, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	session.Config = session.Config.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.ID] = sessionRecord{session: session, expiresAt: exp}
	return nil
}

// Get returns the session unless it is missing or expired.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (playground.Session, bool, error) {
	s.mu.RLock()
	record, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return playground.Session{}, false, nil
	}
	if s.hasExpired(record.expiresAt) {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
		return playground.Session{}, false, nil
	}
	session := record.session
	session.Config = session.Config.Clone()
	return session, true, nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return !ts.After(s.now())
}

var _ playground.SessionStore = (*MemoryStore)(nil)

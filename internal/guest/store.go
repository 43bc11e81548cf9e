package guest

import (
	"context"
	"sync"
	"time"
)

// Store persists guest sessions keyed by (session id, persona id). Entries
// are TTL-scoped: like browser session storage they disappear on their own,
// so callers must tolerate a nil session where one existed before.
//
// Get returns (nil, nil) when no session exists.
type Store interface {
	Get(ctx context.Context, sessionID, characterID string) (*Session, error)
	Put(ctx context.Context, sessionID, characterID string, s *Session) error
	Delete(ctx context.Context, sessionID, characterID string) error
}

func storeKey(sessionID, characterID string) string {
	return sessionID + ":" + characterID
}

// memEntry holds a session and its expiry deadline.
type memEntry struct {
	session  Session
	deadline time.Time
}

// MemoryStore is a process-local Store with TTL eviction. Expired entries
// are collected opportunistically during lookups, so memory stays bounded
// without a background sweeper.
//
// This type is safe for concurrent use. For horizontally scaled deployments
// use RedisStore so all instances observe the same guest state.
type MemoryStore struct {
	ttl time.Duration

	mu       sync.Mutex
	entries  map[string]*memEntry
	cleanupN uint64
}

// NewMemoryStore constructs a MemoryStore whose entries expire after ttl.
// A ttl <= 0 is coerced to one hour.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memEntry),
	}
}

// Get returns a copy of the stored session, or (nil, nil) when absent or
// expired.
func (m *MemoryStore) Get(_ context.Context, sessionID, characterID string) (*Session, error) {
	now := time.Now()
	key := storeKey(sessionID, characterID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collect(now)

	e, ok := m.entries[key]
	if !ok || now.After(e.deadline) {
		return nil, nil
	}
	s := e.session
	s.Entries = append([]Entry(nil), e.session.Entries...)
	return &s, nil
}

// Put stores s and refreshes its expiry deadline.
func (m *MemoryStore) Put(_ context.Context, sessionID, characterID string, s *Session) error {
	now := time.Now()
	cp := *s
	cp.Entries = append([]Entry(nil), s.Entries...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collect(now)
	m.entries[storeKey(sessionID, characterID)] = &memEntry{session: cp, deadline: now.Add(m.ttl)}
	return nil
}

// Delete removes the session if present.
func (m *MemoryStore) Delete(_ context.Context, sessionID, characterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, storeKey(sessionID, characterID))
	return nil
}

// collect drops expired entries after a threshold of operations. Caller must
// hold m.mu.
func (m *MemoryStore) collect(now time.Time) {
	m.cleanupN++
	if m.cleanupN < 1000 {
		return
	}
	for k, e := range m.entries {
		if now.After(e.deadline) {
			delete(m.entries, k)
		}
	}
	m.cleanupN = 0
}

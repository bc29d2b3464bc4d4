package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	drawings map[string]StoredDrawing
	users    map[string]User
	revoked  map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drawings: make(map[string]StoredDrawing),
		users:    make(map[string]User),
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *MemoryStore) GetDrawing(_ context.Context, username string) (StoredDrawing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drawings[username]
	if !ok {
		return StoredDrawing{}, errNoDrawing(username)
	}
	return d, nil
}

func (m *MemoryStore) PutDrawing(_ context.Context, username string, d StoredDrawing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawings[username] = d
	return nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return errUserExists(u.Username)
	}
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return User{}, errNoUser(username)
	}
	return u, nil
}

func (m *MemoryStore) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.revoked[tokenID]
	return ok && !m.now().After(exp), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

var _ Repository = (*MemoryStore)(nil)

// Package session keeps in-progress widget snapshots between requests for
// the lifetime of a page view.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"discoverycall/internal/widget"
)

var ErrNotFound = errors.New("session not found")

// Session is one visitor's widget snapshot.
type Session struct {
	ID        string       `json:"id"`
	State     widget.State `json:"state"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// New creates a session with a random ID.
func New(state widget.State) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		State:     state,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// IsExpired checks if session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.UpdatedAt) > timeout
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	sessions map[string]Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewMemoryStore creates a store whose sessions expire after timeout idle.
func NewMemoryStore(timeout time.Duration) *MemoryStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		timeout:  timeout,
	}
}

// Get returns a copy of the session.
func (ms *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.sessions[id]
	if !ok || s.IsExpired(ms.timeout) {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Save stores a copy of s and refreshes its UpdatedAt.
func (ms *MemoryStore) Save(_ context.Context, s *Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s.UpdatedAt = time.Now()
	ms.sessions[s.ID] = *s
	return nil
}

// Delete removes a session.
func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, id)
	return nil
}

func (ms *MemoryStore) Ping(context.Context) error { return nil }

// Cleanup removes expired sessions.
func (ms *MemoryStore) Cleanup() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for id, s := range ms.sessions {
		if s.IsExpired(ms.timeout) {
			delete(ms.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.sessions)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (ms *MemoryStore) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ms.Cleanup()
		}
	}
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/mkrupp/csrf-target/internal/domain"
)

type memoryEntry struct {
	data      domain.SessionData
	expiresAt time.Time
}

// MemorySessionRepository keeps sessions in process memory.
type MemorySessionRepository struct {
	sessions map[string]memoryEntry
	now      func() time.Time
	m        *sync.RWMutex
}

var _ Repository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates an empty in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
		m:        new(sync.RWMutex),
	}
}

// WithClock replaces the time source, for tests.
func (r *MemorySessionRepository) WithClock(now func() time.Time) *MemorySessionRepository {
	r.now = now

	return r
}

// Fetch implements Repository.Fetch.
func (r *MemorySessionRepository) Fetch(_ context.Context, id string) (domain.SessionData, bool, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	entry, ok := r.sessions[id]
	if !ok || !r.now().Before(entry.expiresAt) {
		return domain.SessionData{}, false, nil
	}

	return entry.data, true, nil
}

// Store implements Repository.Store.
func (r *MemorySessionRepository) Store(
	_ context.Context,
	id string,
	data domain.SessionData,
	expiresAt time.Time,
) error {
	r.m.Lock()
	defer r.m.Unlock()

	r.sessions[id] = memoryEntry{data: data, expiresAt: expiresAt}

	return nil
}

// Delete implements Repository.Delete.
func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.m.Lock()
	defer r.m.Unlock()

	delete(r.sessions, id)

	return nil
}

// Close implements Repository.Close.
func (r *MemorySessionRepository) Close() error {
	return nil
}

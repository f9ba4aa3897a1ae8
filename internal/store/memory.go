package store

import (
	"context"
	"sync"
	"time"

	"github.com/resqlink/backend/internal/models"
)

// MemorySessionStore is the in-process SessionStore. State is sharded by
// session id behind a single RWMutex; unrelated logins only contend on
// the map itself, never on each other's records.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionRecord
	clock    Clock
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore(clock Clock) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.SessionRecord),
		clock:    clock,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[record.SessionID]; exists {
		return models.ErrConflict
	}
	clone := *record
	s.sessions[record.SessionID] = &clone
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	record, ok := s.sessions[sessionID]
	if !ok {
		s.mu.RUnlock()
		return nil, models.ErrNotFound
	}
	// Read expiry and clone while still holding the read lock; writers
	// mutate these records in place under the write lock.
	expired := s.clock.Now().After(record.ExpiresAt)
	clone := *record
	s.mu.RUnlock()

	// Expired records are cleaned up lazily
	if expired {
		s.mu.Lock()
		if current, ok := s.sessions[sessionID]; ok && s.clock.Now().After(current.ExpiresAt) {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return nil, models.ErrNotFound
	}

	return &clone, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.sessions[sessionID]; ok {
		record.Revoked = true
	}
	return nil
}

func (s *MemorySessionStore) SetElevated(_ context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	record.Elevated = true
	record.ElevatedUntil = &until
	record.MFAVerified = true
	return nil
}

func (s *MemorySessionStore) TouchActivity(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	record.LastActivityAt = at
	return nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.sessions {
		if !record.ExpiresAt.After(cutoff) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ensure MemorySessionStore implements SessionStore
var _ SessionStore = (*MemorySessionStore)(nil)

// MemoryAttemptStore is the in-process AttemptStore. The mutex makes
// IncrementFailure linearizable: concurrent wrong-password attempts
// against the same identifier serialize, so the threshold cannot be
// skipped past.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*models.LoginAttemptRecord
	clock    Clock
}

// NewMemoryAttemptStore creates an empty in-memory attempt store.
func NewMemoryAttemptStore(clock Clock) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]*models.LoginAttemptRecord),
		clock:    clock,
	}
}

func (s *MemoryAttemptStore) IncrementFailure(_ context.Context, identifier string, policy LockoutPolicy) (*models.LoginAttemptRecord, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.attempts[identifier]
	if !ok {
		record = &models.LoginAttemptRecord{Identifier: identifier}
		s.attempts[identifier] = record
	}

	// Failures outside the window restart the count
	if policy.Window > 0 && !record.LastFailureAt.IsZero() && now.Sub(record.LastFailureAt) > policy.Window {
		record.FailureCount = 0
		record.LockedUntil = nil
	}

	record.FailureCount++
	record.LastFailureAt = now

	if record.FailureCount >= policy.MaxAttempts {
		lockedUntil := now.Add(policy.LockoutDuration)
		record.LockedUntil = &lockedUntil
	}

	clone := *record
	return &clone, nil
}

func (s *MemoryAttemptStore) Get(_ context.Context, identifier string) (*models.LoginAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.attempts[identifier]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryAttemptStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, identifier)
	return nil
}

func (s *MemoryAttemptStore) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.attempts {
		if !record.LastFailureAt.After(cutoff) && !record.IsLocked(now) {
			delete(s.attempts, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ensure MemoryAttemptStore implements AttemptStore
var _ AttemptStore = (*MemoryAttemptStore)(nil)

// Package memory provides an in-process [authcore.CredentialStore] for tests,
// demos and local runs. Data is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
)

// Store is a mutex-guarded credential store. Emails are expected normalized;
// the engine does that before every call.
type Store struct {
	mu      sync.RWMutex
	users   map[string]authcore.UserRecord
	byEmail map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   make(map[string]authcore.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (s *Store) CreateUser(_ context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return authcore.UserRecord{}, authcore.ErrDuplicateEmail
	}

	rec := authcore.UserRecord{
		ID:           input.ID,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    input.CreatedAt,
	}
	s.users[rec.ID] = rec
	s.byEmail[rec.Email] = rec.ID
	return clone(rec), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (authcore.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return clone(s.users[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (authcore.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userID]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return clone(rec), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	return s.update(userID, func(rec *authcore.UserRecord) {
		rec.PasswordHash = passwordHash
	})
}

func (s *Store) UpdateRole(_ context.Context, userID string, role permission.Role) (authcore.UserRecord, error) {
	var out authcore.UserRecord
	err := s.update(userID, func(rec *authcore.UserRecord) {
		rec.Role = role
		out = clone(*rec)
	})
	return out, err
}

func (s *Store) SetActive(_ context.Context, userID string, active bool) (authcore.UserRecord, error) {
	var out authcore.UserRecord
	err := s.update(userID, func(rec *authcore.UserRecord) {
		rec.Active = active
		out = clone(*rec)
	})
	return out, err
}

func (s *Store) RecordLogin(_ context.Context, userID string, at time.Time) error {
	return s.update(userID, func(rec *authcore.UserRecord) {
		t := at
		rec.LastLoginAt = &t
	})
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) update(userID string, fn func(*authcore.UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	fn(&rec)
	s.users[userID] = rec
	return nil
}

func clone(rec authcore.UserRecord) authcore.UserRecord {
	if rec.LastLoginAt != nil {
		t := *rec.LastLoginAt
		rec.LastLoginAt = &t
	}
	return rec
}

package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/iam/pkg/auth"
)

// MemoryStore is an in-process UserStore for tests and local runs
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*auth.User
	byEmail map[string]uuid.UUID
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*auth.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

// GetUserByID returns the user with the given id
func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail returns the user registered with email (case-insensitive)
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

// CreateUser inserts user. Emails are unique.
func (s *MemoryStore) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	if _, exists := s.byID[user.ID]; exists {
		return ErrDuplicateEmail
	}

	s.byID[user.ID] = cloneUser(user)
	s.byEmail[email] = user.ID
	return nil
}

// UpdateLastLogin records a successful login
func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	user.LastLoginAt = &at
	user.UpdatedAt = at
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.JobTitle != nil {
		title := *u.JobTitle
		c.JobTitle = &title
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		c.LastLoginAt = &at
	}
	return &c
}

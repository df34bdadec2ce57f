package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/iam/pkg/auth"
)

var (
	// ErrNotFound is returned when no user matches a lookup
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("user already exists")
)

// UserStore persists user accounts. Implementations must be safe for
// concurrent use and must return copies the caller may modify.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Config holds storage configuration
type Config struct {
	// Database
	Driver      string // "sqlite3" or "postgres"
	DatabaseURL string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Redis
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int // Entries
	L1CacheTTL   time.Duration
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite3",
		DatabaseURL:     "file:iam.db?_foreign_keys=on",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		MaxLifetime:     time.Hour,
		MaxIdleTime:     10 * time.Minute,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    false,
		CacheTTL:        30 * time.Second,
		L1CacheSize:     1024,
		L1CacheTTL:      5 * time.Second,
	}
}

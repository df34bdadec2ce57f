package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/storage"
)

// cachedUser is the cache representation of a user. The password hash is
// never cached; lookups that need it go to the backing store.
type cachedUser struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	DateOfBirth time.Time  `json:"date_of_birth"`
	JobTitle    *string    `json:"job_title,omitempty"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// CachedUserStore caches id lookups in a local LRU (L1) and Redis (L2).
// Users returned from GetUserByID carry no password hash. Email lookups
// always reach the backing store.
type CachedUserStore struct {
	store storage.UserStore
	redis *redis.Client
	local *lru.LRU[uuid.UUID, *auth.User]
	ttl   time.Duration
}

var _ storage.UserStore = (*CachedUserStore)(nil)

// NewCachedUserStore wraps store. A nil client disables L2; a zero
// L1CacheSize disables L1.
func NewCachedUserStore(store storage.UserStore, client *redis.Client, cfg storage.Config) *CachedUserStore {
	c := &CachedUserStore{
		store: store,
		redis: client,
		ttl:   cfg.CacheTTL,
	}
	if c.ttl <= 0 {
		c.ttl = 30 * time.Second
	}
	if cfg.L1CacheSize > 0 {
		c.local = lru.NewLRU[uuid.UUID, *auth.User](cfg.L1CacheSize, nil, cfg.L1CacheTTL)
	}
	return c
}

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("iam:user:%s", id)
}

// GetUserByID returns the user, consulting L1 then L2 before the store
func (c *CachedUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if c.local != nil {
		if user, ok := c.local.Get(id); ok {
			return copyUser(user), nil
		}
	}

	key := userCacheKey(id)
	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var cu cachedUser
			if err := json.Unmarshal([]byte(data), &cu); err == nil {
				user := cu.toUser()
				c.addLocal(user)
				return copyUser(user), nil
			}
			// Corrupt entry
			c.redis.Del(ctx, key)
		}
	}

	user, err := c.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cached := fromUser(user)
	if c.redis != nil {
		if data, err := json.Marshal(cached); err == nil {
			c.redis.Set(ctx, key, data, c.ttl)
		}
	}
	c.addLocal(copyUser(cached.toUser()))

	return cached.toUser(), nil
}

// GetUserByEmail always reads through to the backing store
func (c *CachedUserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return c.store.GetUserByEmail(ctx, email)
}

// CreateUser inserts into the backing store
func (c *CachedUserStore) CreateUser(ctx context.Context, user *auth.User) error {
	return c.store.CreateUser(ctx, user)
}

// UpdateLastLogin updates the backing store and invalidates the cached entry
func (c *CachedUserStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := c.store.UpdateLastLogin(ctx, id, at); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

// Invalidate drops id from both cache levels
func (c *CachedUserStore) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.local != nil {
		c.local.Remove(id)
	}
	if c.redis != nil {
		c.redis.Del(ctx, userCacheKey(id))
	}
}

func (c *CachedUserStore) addLocal(user *auth.User) {
	if c.local != nil {
		c.local.Add(user.ID, user)
	}
}

func fromUser(u *auth.User) cachedUser {
	return cachedUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth,
		JobTitle:    u.JobTitle,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func (cu cachedUser) toUser() *auth.User {
	return &auth.User{
		ID:          cu.ID,
		Name:        cu.Name,
		Email:       cu.Email,
		DateOfBirth: cu.DateOfBirth,
		JobTitle:    cu.JobTitle,
		Role:        cu.Role,
		CreatedAt:   cu.CreatedAt,
		UpdatedAt:   cu.UpdatedAt,
		LastLoginAt: cu.LastLoginAt,
	}
}

func copyUser(u *auth.User) *auth.User {
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

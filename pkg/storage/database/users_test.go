package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/storage"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := storage.DefaultConfig()
	cfg.DatabaseURL = ":memory:"

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	// Migrate is idempotent
	require.NoError(t, Migrate(context.Background(), db))

	return db
}

func newTestUser(email string) *auth.User {
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	return &auth.User{
		ID:           uuid.New(),
		Name:         "Bob",
		Email:        email,
		DateOfBirth:  time.Date(1985, 7, 4, 0, 0, 0, 0, time.UTC),
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuv",
		Role:         auth.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	user := newTestUser("Bob@Example.com")
	title := "Analyst"
	user.JobTitle = &title
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, "bob@example.com", got.Email)
	assert.Equal(t, "1985-07-04", got.DateOfBirth.Format("2006-01-02"))
	require.NotNil(t, got.JobTitle)
	assert.Equal(t, "Analyst", *got.JobTitle)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	assert.Equal(t, auth.RoleUser, got.Role)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.LastLoginAt)

	byEmail, err := store.GetUserByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestUserStore_NullJobTitle(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	user := newTestUser("nojob@example.com")
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.JobTitle)
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.CreateUser(ctx, newTestUser("bob@example.com")))

	err := store.CreateUser(ctx, newTestUser("BOB@example.com"))
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
}

func TestUserStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	_, err := store.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.UpdateLastLogin(ctx, uuid.New(), time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStore_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	user := newTestUser("bob@example.com")
	require.NoError(t, store.CreateUser(ctx, user))

	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateLastLogin(ctx, user.ID, at))

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, at.Equal(*got.LastLoginAt))
	assert.True(t, at.Equal(got.UpdatedAt))
}

func TestUserStore_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WillReturnError(errors.New("connection reset"))

	store := NewUserStore(db)
	_, err = store.GetUserByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_CorruptRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "date_of_birth", "job_title", "password_hash",
		"role", "created_at", "updated_at", "last_login_at",
	}).AddRow("not-a-uuid", "Eve", "eve@example.com", "1990-01-01", nil, "hash", "user", now, now, nil)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("eve@example.com").
		WillReturnRows(rows)

	store := NewUserStore(db)
	_, err = store.GetUserByEmail(context.Background(), "Eve@example.com")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("disk full"))

	store := NewUserStore(db)
	err = store.CreateUser(context.Background(), newTestUser("a@example.com"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.Driver = "mysql"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

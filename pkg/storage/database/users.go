package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/storage"
)

var tracer = otel.Tracer("iam/storage/database")

const dateLayout = "2006-01-02"

const userColumns = `id, name, email, date_of_birth, job_title, password_hash, role, created_at, updated_at, last_login_at`

// UserStore is a storage.UserStore backed by database/sql
type UserStore struct {
	db *sql.DB
}

var _ storage.UserStore = (*UserStore)(nil)

// NewUserStore creates a store over db. The schema must already exist.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// GetUserByID returns the user with the given id
func (s *UserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	ctx, span := tracer.Start(ctx, "UserStore.GetUserByID",
		trace.WithAttributes(attribute.String("user.id", id.String())),
	)
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
	}
	return user, err
}

// GetUserByEmail returns the user registered with email. Emails are
// stored lower-cased so the lookup is case-insensitive.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	ctx, span := tracer.Start(ctx, "UserStore.GetUserByEmail")
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
	}
	return user, err
}

// CreateUser inserts user. A duplicate email yields storage.ErrDuplicateEmail.
func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	ctx, span := tracer.Start(ctx, "UserStore.CreateUser",
		trace.WithAttributes(attribute.String("user.id", user.ID.String())),
	)
	defer span.End()

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var jobTitle sql.NullString
	if user.JobTitle != nil {
		jobTitle = sql.NullString{String: *user.JobTitle, Valid: true}
	}
	var lastLogin sql.NullTime
	if user.LastLoginAt != nil {
		lastLogin = sql.NullTime{Time: user.LastLoginAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Name,
		strings.ToLower(user.Email),
		user.DateOfBirth.Format(dateLayout),
		jobTitle,
		user.PasswordHash,
		user.Role,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
		lastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateEmail
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateLastLogin records a successful login
func (s *UserStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, span := tracer.Start(ctx, "UserStore.UpdateLastLogin",
		trace.WithAttributes(attribute.String("user.id", id.String())),
	)
	defer span.End()

	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, at.UTC(), at.UTC(), id.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		user      auth.User
		id        string
		dob       string
		jobTitle  sql.NullString
		lastLogin sql.NullTime
	)

	err := row.Scan(
		&id,
		&user.Name,
		&user.Email,
		&dob,
		&jobTitle,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}
	if user.DateOfBirth, err = time.Parse(dateLayout, dob); err != nil {
		return nil, fmt.Errorf("corrupt date of birth for user %s: %w", id, err)
	}
	if jobTitle.Valid {
		user.JobTitle = &jobTitle.String
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLoginAt = &at
	}

	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

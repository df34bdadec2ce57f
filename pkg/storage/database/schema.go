package database

import (
	"context"
	"database/sql"
	"fmt"
)

// usersSchema is portable between PostgreSQL and SQLite
const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            VARCHAR(36)  PRIMARY KEY,
	name          VARCHAR(200) NOT NULL,
	email         VARCHAR(320) NOT NULL UNIQUE,
	date_of_birth VARCHAR(10)  NOT NULL,
	job_title     VARCHAR(200),
	password_hash VARCHAR(255) NOT NULL,
	role          VARCHAR(20)  NOT NULL DEFAULT 'user',
	created_at    TIMESTAMP    NOT NULL,
	updated_at    TIMESTAMP    NOT NULL,
	last_login_at TIMESTAMP
)`

// Migrate creates the tables the service needs if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

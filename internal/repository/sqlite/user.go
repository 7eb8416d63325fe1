package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/model"
	"github.com/sakif/qr-genius/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new account. The duplicate-email check happens
// twice: a friendly pre-check so the common case gets a clean conflict
// error, and the unique index on lower(email) as the authoritative backstop
// for the race where two registrations interleave.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	email := strings.ToLower(strings.TrimSpace(user.Email))

	var existingID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE lower(email) = ?`, email,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: checking email %s: %w", email, err)
	}
	if err == nil {
		return apperror.Conflict("user", "email already registered")
	}

	now := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		email,
		user.PasswordHash,
		user.GitHubID,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user insert id: %w", err)
	}

	user.ID = id
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByEmail looks an account up case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, github_id, created_at, updated_at
		 FROM users WHERE lower(email) = ?`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.GitHubID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}

	return &u, nil
}

// GetUserByID retrieves a user by their numeric ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, github_id, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.GitHubID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}

	return &u, nil
}

// UpdatePassword replaces the stored password hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// UpsertGitHubUser creates or refreshes the account matching user.GitHubID.
// On first sign-in a new row is inserted with an empty password hash; on
// subsequent sign-ins the email is refreshed in case it changed on GitHub,
// and the existing internal ID is kept.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting github user: github id is nil")
	}

	var existing model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, github_id, created_at, updated_at
		 FROM users WHERE github_id = ?`,
		*user.GitHubID,
	).Scan(&existing.ID, &existing.Email, &existing.PasswordHash,
		&existing.GitHubID, &existing.CreatedAt, &existing.UpdatedAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up github user %d: %w", *user.GitHubID, err)
	}

	if err == nil {
		// Existing account — refresh the email if GitHub reports one.
		now := time.Now()
		email := existing.Email
		if e := strings.ToLower(strings.TrimSpace(user.Email)); e != "" {
			email = e
		}
		if _, err := db.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
			email, now, existing.ID,
		); err != nil {
			return fmt.Errorf("sqlite: updating github user %d: %w", existing.ID, err)
		}
		user.ID = existing.ID
		user.Email = email
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now
		return nil
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return db.CreateUser(ctx, user)
}

// isUniqueViolation reports whether the driver error is a UNIQUE
// constraint failure. modernc.org/sqlite exposes this only through the
// message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

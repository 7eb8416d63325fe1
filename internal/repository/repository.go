package repository

import (
	"context"

	"github.com/sakif/qr-genius/internal/model"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// CreateUser inserts a new account and fills in ID and timestamps.
	// Returns apperror.ErrConflict if the email is already registered
	// (case-insensitive).
	CreateUser(ctx context.Context, user *model.User) error

	// GetUserByEmail looks an account up by email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// GetUserByID looks an account up by its numeric ID.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// UpsertGitHubUser creates or refreshes the account matching
	// user.GitHubID and fills in the record's ID and timestamps.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
}

// QRCodeRepository persists QR code records. Rows are immutable after
// creation — there is no Update.
type QRCodeRepository interface {
	// Create inserts a new record and fills in ID and CreatedAt.
	Create(ctx context.Context, code *model.QRCode) error

	// GetByID returns the record regardless of owner; the service layer
	// performs the ownership check so "not found" and "forbidden" can be
	// told apart.
	GetByID(ctx context.Context, id int64) (*model.QRCode, error)

	// ListByUser returns all records owned by userID, newest first
	// (created_at DESC, id DESC as the tiebreak).
	ListByUser(ctx context.Context, userID int64) ([]model.QRCode, error)

	// Delete removes the record. Returns apperror.ErrNotFound if no row
	// matched.
	Delete(ctx context.Context, id int64) error
}

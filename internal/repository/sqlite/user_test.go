package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/model"
)

// newTestDB opens a fresh in-memory database per test. t.Cleanup closes it
// when the test (or subtest) finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "$2a$04$fakehashfortests"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "a@x.com", PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == 0 {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
}

func TestCreateUser_DuplicateEmailCaseInsensitive(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "a@x.com")

	dup := &model.User{Email: "A@X.COM", PasswordHash: "hash"}
	err := db.CreateUser(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() with duplicate email error = %v, want ErrConflict", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "a@x.com")

	tests := []struct {
		name  string
		email string
	}{
		{"exact match", "a@x.com"},
		{"uppercase match", "A@X.COM"},
		{"surrounding whitespace", "  a@x.com  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := db.GetUserByEmail(context.Background(), tt.email)
			if err != nil {
				t.Fatalf("GetUserByEmail() error = %v", err)
			}
			if found.ID != created.ID {
				t.Errorf("ID = %d, want %d", found.ID, created.ID)
			}
		})
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "a@x.com")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", found.Email, "a@x.com")
	}

	if _, err := db.GetUserByID(context.Background(), 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(9999) error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "a@x.com")

	if err := db.UpdatePassword(context.Background(), user.ID, "newhash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.PasswordHash != "newhash" {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, "newhash")
	}

	if err := db.UpdatePassword(context.Background(), 9999, "x"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePassword(9999) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertGitHubUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ghID := int64(1234567)

	// First sign-in inserts a fresh account.
	first := &model.User{Email: "gh@x.com", GitHubID: &ghID}
	if err := db.UpsertGitHubUser(ctx, first); err != nil {
		t.Fatalf("UpsertGitHubUser() error = %v", err)
	}
	if first.ID == 0 {
		t.Fatal("UpsertGitHubUser() did not set ID on insert")
	}

	// Second sign-in with a changed email keeps the internal ID.
	second := &model.User{Email: "new@x.com", GitHubID: &ghID}
	if err := db.UpsertGitHubUser(ctx, second); err != nil {
		t.Fatalf("UpsertGitHubUser() second call error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second upsert ID = %d, want %d", second.ID, first.ID)
	}

	found, err := db.GetUserByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "new@x.com" {
		t.Errorf("Email after upsert = %q, want %q", found.Email, "new@x.com")
	}
}

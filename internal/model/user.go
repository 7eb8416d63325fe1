// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is the primary login identifier. It is stored lowercased and the
// database enforces case-insensitive uniqueness, so "A@x.com" and "a@x.com"
// are the same account.
//
// PasswordHash holds the bcrypt hash of the password and is never
// serialized to JSON. Accounts created through GitHub sign-in have an empty
// hash and a non-nil GitHubID; such accounts cannot log in with a password
// until one is set via the reset flow.
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	GitHubID     *int64    `json:"-"          db:"github_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and write responses; services validate input and
// enforce the business rules; repositories read and write rows. Services
// receive repository interfaces (never concrete types) so tests can inject
// in-memory mocks, and they return apperror domain errors rather than HTTP
// status codes — the handler layer does that translation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/auth"
	"github.com/sakif/qr-genius/internal/mail"
	"github.com/sakif/qr-genius/internal/model"
	"github.com/sakif/qr-genius/internal/repository"
)

// MinPasswordLength is the floor for new passwords, matching the product's
// registration rule.
const MinPasswordLength = 8

// emailPattern is deliberately loose — one @, a dot in the domain. Real
// validation is "the reset mail arrives"; this only rejects obvious typos.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AuthService handles registration, login, and the password-reset flow.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    mail.Mailer
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer mail.Mailer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		logger:    logger,
	}
}

func validateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if !emailPattern.MatchString(email) {
		return "", apperror.ValidationFailed("email", "invalid email format")
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	}
	return nil
}

// Register creates a new account. The email is normalized to lower case;
// a duplicate (case-insensitive) yields apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password is too long")
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login verifies credentials and returns the user plus a signed session
// token. A missing account and a wrong password both return the same
// Unauthorized error — callers must not learn which half was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	invalid := apperror.Unauthorized("invalid email or password")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apperror.ValidationFailed("credentials", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", invalid
	}

	if user.PasswordHash == "" {
		// GitHub-only account with no password set.
		return nil, "", invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, "", invalid
	}

	token, err := s.tokens.GenerateSession(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: generating session for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return user, token, nil
}

// LoginOrRegisterGitHub upserts the account matching the GitHub identity
// and issues a session token, the same one a password login gets.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, string, error) {
	if ghUser == nil {
		return nil, "", fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	ghID := ghUser.ID
	user := &model.User{Email: ghUser.Email, GitHubID: &ghID}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("service/auth: upserting github user %d: %w", ghID, err)
	}

	token, err := s.tokens.GenerateSession(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: generating session for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.Int64("githubID", ghID),
	)

	return user, token, nil
}

// GetUserByID returns the account for the given ID. Used by /api/me after
// the middleware has validated the session.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// RequestPasswordReset starts the reset flow. It never reports whether the
// account exists — the handler returns the same generic message either way,
// which keeps the endpoint useless for email enumeration. Internal
// failures are logged, not surfaced.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := validateEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		// Unknown account: silently succeed.
		return nil
	}

	token, err := s.tokens.GenerateReset(user.ID)
	if err != nil {
		s.logger.Error("failed to generate reset token",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.logger.Error("failed to send reset mail",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ResetPassword completes the reset flow: validates the token, enforces
// the password rules, and stores the new hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		return apperror.ValidationFailed("token", "the password reset link is invalid or has expired")
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("password", "password is too long")
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password reset completed", slog.Int64("userID", userID))
	return nil
}

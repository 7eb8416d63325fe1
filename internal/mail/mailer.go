// Package mail delivers account mail (currently only password resets).
//
// Delivery transport is deliberately behind an interface: development and
// tests use LogMailer, which writes the reset link to the log the same way
// the product behaves without an SMTP relay configured.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Mailer sends account mail. Implementations must not block on slow
// transports without honoring ctx.
type Mailer interface {
	// SendPasswordReset delivers a reset link built from the given token
	// to the account's email address.
	SendPasswordReset(ctx context.Context, email, token string) error
}

var _ Mailer = (*LogMailer)(nil)

// LogMailer writes mail to the structured log instead of sending it.
type LogMailer struct {
	logger    *slog.Logger
	publicURL string
}

// NewLogMailer creates a LogMailer. publicURL prefixes the reset link; it
// may be empty, in which case the link is a bare path.
func NewLogMailer(logger *slog.Logger, publicURL string) *LogMailer {
	return &LogMailer{logger: logger, publicURL: strings.TrimRight(publicURL, "/")}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	link := fmt.Sprintf("%s/api/reset_password/%s", m.publicURL, token)
	m.logger.Info("password reset link generated",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}

package auth

import (
	"context"

	"go.uber.org/zap"

	"komikverse/internal/logging"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	logging.OrNop(m.Logger).Info("password reset requested", zap.String("email", email), zap.String("link", link))
	return nil
}

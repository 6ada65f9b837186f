// Package notification defines the outbound notification port. Delivery of
// confirmation emails is owned by a separate mailer service; this process
// only hands over the address and the exchange token.
package notification

import (
	"context"
	"log/slog"
)

// Notifier delivers credential-exchange notifications to end users.
type Notifier interface {
	// SendEmailConfirmation asks the mailer to deliver a confirmation link
	// carrying the exchange token to the given address.
	SendEmailConfirmation(ctx context.Context, email, exchangeToken string) error
}

// LogNotifier records notifications instead of delivering them. It stands in
// for the mailer in tests and local runs.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendEmailConfirmation(ctx context.Context, email, exchangeToken string) error {
	n.logger.InfoContext(ctx, "email confirmation requested",
		slog.String("email", email),
	)
	return nil
}

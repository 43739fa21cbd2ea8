// Package notification renders and delivers registrant mail.
package notification

import (
	"context"
	"log/slog"

	"onboarding/internal/provisioning/outputs"
)

// Credentials are default admin credentials handed to the registrant.
type Credentials struct {
	User     string
	Password string
}

// InstanceReady is sent once, after provisioning fully succeeds.
type InstanceReady struct {
	To                string
	Name              string
	RegistrationID    string
	Endpoints         outputs.Endpoints
	UICredentials     Credentials
	WorkerCredentials Credentials
}

// TrialReminder is sent for each configured days-before-expiry value.
type TrialReminder struct {
	To       string
	Name     string
	DaysLeft int
}

// Notifier delivers registrant mail. Failures carry CodeNotification.
type Notifier interface {
	SendInstanceReady(ctx context.Context, msg InstanceReady) error
	SendTrialReminder(ctx context.Context, msg TrialReminder) error
}

// LogNotifier renders messages and logs them instead of sending. Used when no
// mail transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendInstanceReady(ctx context.Context, msg InstanceReady) error {
	m, err := RenderInstanceReady(msg)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "mail not sent: no transport configured",
		"to", msg.To,
		"subject", m.Subject,
		"registration_id", msg.RegistrationID,
	)
	return nil
}

func (n *LogNotifier) SendTrialReminder(ctx context.Context, msg TrialReminder) error {
	m, err := RenderTrialReminder(msg)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "mail not sent: no transport configured",
		"to", msg.To,
		"subject", m.Subject,
		"days_left", msg.DaysLeft,
	)
	return nil
}

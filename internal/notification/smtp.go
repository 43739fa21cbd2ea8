package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"onboarding/internal/platform/config"
	dErrors "onboarding/pkg/domain-errors"
)

// SMTPNotifier delivers mail through an SMTP relay. A go-mail Client holds
// one connection, so every send dials its own client.
type SMTPNotifier struct {
	host     string
	mailOpts []mail.Option
	from     string
	logger   *slog.Logger
	breaker  *CircuitBreaker
}

type SMTPOption func(*SMTPNotifier)

func WithLogger(logger *slog.Logger) SMTPOption {
	return func(n *SMTPNotifier) {
		n.logger = logger
	}
}

// WithCircuitBreaker stops dialing the relay after repeated failures.
func WithCircuitBreaker(cb *CircuitBreaker) SMTPOption {
	return func(n *SMTPNotifier) {
		n.breaker = cb
	}
}

// NewSMTPNotifier configures the relay client. Authentication is only
// negotiated when a user is configured.
func NewSMTPNotifier(cfg config.SMTPConfig, opts ...SMTPOption) (*SMTPNotifier, error) {
	mailOpts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.User != "" {
		mailOpts = append(mailOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	if _, err := mail.NewClient(cfg.Host, mailOpts...); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotification, "configure smtp client")
	}

	n := &SMTPNotifier{host: cfg.Host, mailOpts: mailOpts, from: cfg.From, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *SMTPNotifier) SendInstanceReady(ctx context.Context, msg InstanceReady) error {
	m, err := RenderInstanceReady(msg)
	if err != nil {
		return err
	}
	return n.send(ctx, m)
}

func (n *SMTPNotifier) SendTrialReminder(ctx context.Context, msg TrialReminder) error {
	m, err := RenderTrialReminder(msg)
	if err != nil {
		return err
	}
	return n.send(ctx, m)
}

func (n *SMTPNotifier) send(ctx context.Context, m Message) error {
	if n.breaker != nil && !n.breaker.Allow() {
		return dErrors.New(dErrors.CodeNotification, "mail relay circuit open")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotification, "invalid sender")
	}
	if err := msg.To(m.To); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotification, "invalid recipient")
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)

	client, err := mail.NewClient(n.host, n.mailOpts...)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotification, "configure smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if n.breaker != nil {
			n.breaker.RecordFailure()
		}
		return dErrors.Wrap(err, dErrors.CodeNotification, "deliver mail")
	}
	if n.breaker != nil {
		n.breaker.RecordSuccess()
	}
	n.logger.InfoContext(ctx, "mail sent", "to", m.To, "subject", m.Subject)
	return nil
}

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"onboarding/internal/events"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/registration/models"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Registration) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	FindByEmail(ctx context.Context, email string) (*models.Registration, error)
	ListFailed(ctx context.Context) ([]*models.Registration, error)
	DeleteByEmails(ctx context.Context, emails []string) (int, error)
}

// Provisioner accepts a registration for background provisioning.
type Provisioner interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}

// Service owns the registration intake flow. Provisioning is handed off and
// never awaited.
type Service struct {
	store       Store
	provisioner Provisioner
	logger      *slog.Logger
	events      events.Emitter
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(emitter events.Emitter) Option {
	return func(s *Service) {
		s.events = emitter
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, provisioner Provisioner, opts ...Option) *Service {
	s := &Service{store: store, provisioner: provisioner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register persists a new registration and queues its provisioning.
// The request must already be normalised and validated.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Registration, error) {
	if _, err := s.store.FindByEmail(ctx, req.Email); err == nil {
		s.rejected("duplicate_email")
		return nil, dErrors.New(dErrors.CodeConflict, "Email already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}

	r := models.New(req.OrganisationName, req.Name, req.Designation, req.Email, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.rejected("duplicate_email")
			return nil, dErrors.New(dErrors.CodeConflict, "Email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
	}
	if s.metrics != nil {
		s.metrics.IncrementRegistrationsCreated()
	}
	s.logger.InfoContext(ctx, "registration created",
		"registration_id", r.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, events.Event{
		Type:           events.TypeRegistrationCreated,
		RegistrationID: r.ID.String(),
		Attributes:     events.SignupAttributes(requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx)),
	})

	// Provisioning runs detached from the request; a failed hand-off leaves
	// the registration in the failed list for an operator.
	if err := s.provisioner.Enqueue(context.WithoutCancel(ctx), r.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue provisioning",
			"registration_id", r.ID,
			"error", err,
		)
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	return r, nil
}

// ListFailed returns registrations whose infrastructure never completed.
func (s *Service) ListFailed(ctx context.Context) ([]*models.Registration, error) {
	list, err := s.store.ListFailed(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return list, nil
}

// DeleteByEmails is the administrative removal path.
func (s *Service) DeleteByEmails(ctx context.Context, emails []string) (int, error) {
	n, err := s.store.DeleteByEmails(ctx, emails)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete registrations")
	}
	s.logger.InfoContext(ctx, "registrations deleted",
		"count", n,
		"request_id", requestcontext.RequestID(ctx),
	)
	return n, nil
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to emit lifecycle event",
			"type", string(e.Type),
			"error", err,
		)
	}
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}

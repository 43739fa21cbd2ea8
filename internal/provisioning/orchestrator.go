// Package provisioning drives a registration from signup to a ready tenant:
// workspace preparation, the infrastructure tool workflow, output parsing,
// bootstrap, persistence, notification and reminder scheduling.
package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboarding/internal/events"
	"onboarding/internal/notification"
	"onboarding/internal/provisioning/metrics"
	"onboarding/internal/provisioning/outputs"
	"onboarding/internal/provisioning/runner"
	"onboarding/internal/provisioning/workspace"
	"onboarding/internal/registration/models"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
)

//go:generate mockgen -source=orchestrator.go -destination=mocks/mocks.go -package=mocks Bootstrapper,ReminderTrigger
//go:generate mockgen -source=../notification/notification.go -destination=mocks/notifier.go -package=mocks Notifier

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	MarkInfraSetupDone(ctx context.Context, id uuid.UUID, now time.Time) error
}

type Workspace interface {
	PrepareWorkspace(ctx context.Context, id uuid.UUID) (string, error)
	GenerateControlFile(dir string, id uuid.UUID, moduleSource string) error
	ModuleSource() string
}

type Bootstrapper interface {
	Bootstrap(ctx context.Context, e outputs.Endpoints) error
}

// ReminderTrigger arms the trial reminders of one registration.
type ReminderTrigger interface {
	ScheduleRegistration(ctx context.Context, id uuid.UUID) error
}

var tracer = otel.Tracer("onboarding/provisioning")

// Orchestrator runs one provisioning attempt per call. Side effects are
// ordered and never rolled back: a failed attempt leaves the workspace and
// any applied infrastructure for inspection.
type Orchestrator struct {
	store        Store
	workspace    Workspace
	tool         runner.Tool
	bootstrapper Bootstrapper
	notifier     notification.Notifier
	reminders    ReminderTrigger

	uiCreds     notification.Credentials
	workerCreds notification.Credentials

	logger  *slog.Logger
	metrics *metrics.Metrics
	events  events.Emitter
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithEvents(emitter events.Emitter) Option {
	return func(o *Orchestrator) {
		o.events = emitter
	}
}

func WithReminders(trigger ReminderTrigger) Option {
	return func(o *Orchestrator) {
		o.reminders = trigger
	}
}

// WithCredentials sets the default admin credentials mailed to the registrant.
func WithCredentials(ui, worker notification.Credentials) Option {
	return func(o *Orchestrator) {
		o.uiCreds = ui
		o.workerCreds = worker
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(
	store Store,
	ws Workspace,
	tool runner.Tool,
	bootstrapper Bootstrapper,
	notifier notification.Notifier,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		workspace:    ws,
		tool:         tool,
		bootstrapper: bootstrapper,
		notifier:     notifier,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provision stands up the tenant for id and returns its management UI URL.
// Any failure is a provisioning error wrapping the first failing step.
func (o *Orchestrator) Provision(ctx context.Context, id uuid.UUID) (string, error) {
	ctx, span := tracer.Start(ctx, "provisioning.provision",
		trace.WithAttributes(attribute.String("registration.id", id.String())))
	defer span.End()

	start := o.now()
	url, err := o.provision(ctx, id)
	if o.metrics != nil {
		o.metrics.ObserveProvision(o.now().Sub(start), err)
	}
	if err != nil {
		cause := dErrors.Cause(err)
		causeCode := string(dErrors.CodeInternal)
		if cause != nil {
			causeCode = string(cause.Code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, causeCode)
		o.logger.ErrorContext(ctx, "provisioning failed",
			"registration_id", id,
			"cause", causeCode,
			"error", err,
		)
		o.emit(ctx, events.Event{
			Type:           events.TypeProvisioningFailed,
			RegistrationID: id.String(),
			Attributes:     map[string]string{"cause": causeCode},
		})
		return "", err
	}

	o.logger.InfoContext(ctx, "provisioning succeeded",
		"registration_id", id,
		"ui_url", url,
	)
	o.emit(ctx, events.Event{
		Type:           events.TypeProvisioningSucceeded,
		RegistrationID: id.String(),
		Attributes:     map[string]string{"ui_url": url},
	})
	return url, nil
}

func (o *Orchestrator) provision(ctx context.Context, id uuid.UUID) (string, error) {
	reg, err := o.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", fail(dErrors.Wrap(err, dErrors.CodeNotFound, "registration not found"), "load registration")
		}
		return "", fail(err, "load registration")
	}
	if reg.InfraSetupDone {
		return "", fail(dErrors.New(dErrors.CodeState, "infrastructure already provisioned"), "load registration")
	}

	tenant := workspace.DeriveTenantIdentifier(reg.Name, id)
	dir, err := o.workspace.PrepareWorkspace(ctx, id)
	if err != nil {
		return "", fail(err, "prepare workspace")
	}
	if err := o.workspace.GenerateControlFile(dir, id, o.workspace.ModuleSource()); err != nil {
		return "", fail(err, "generate control file")
	}
	o.logger.InfoContext(ctx, "workspace ready",
		"registration_id", id,
		"tenant", tenant,
		"dir", dir,
	)

	raw, err := runner.RunWorkflow(ctx, o.tool, dir, tenant)
	if err != nil {
		return "", fail(err, "run infrastructure workflow")
	}

	endpoints, parseErr := outputs.Parse(raw, id)
	if parseErr != nil {
		o.logger.WarnContext(ctx, "tool outputs unusable, using placeholder",
			"registration_id", id,
			"ui_url", endpoints.UIURL,
			"error", parseErr,
		)
	}

	if endpoints.Placeholder {
		o.logger.WarnContext(ctx, "bootstrap skipped: management UI address unknown",
			"registration_id", id,
		)
		if o.metrics != nil {
			o.metrics.IncrementBootstrapSkipped()
		}
	} else if err := o.bootstrap(ctx, endpoints); err != nil {
		return "", fail(err, "bootstrap tenant")
	}

	if err := o.store.MarkInfraSetupDone(ctx, id, o.now()); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			err = dErrors.Wrap(err, dErrors.CodeState, "infrastructure already marked done")
		}
		return "", fail(err, "persist infra setup")
	}

	o.notifyReady(ctx, reg, endpoints)
	if o.reminders != nil {
		if err := o.reminders.ScheduleRegistration(ctx, id); err != nil {
			o.logger.WarnContext(ctx, "failed to schedule trial reminders",
				"registration_id", id,
				"error", err,
			)
		}
	}
	return endpoints.UIURL, nil
}

func (o *Orchestrator) bootstrap(ctx context.Context, e outputs.Endpoints) error {
	ctx, span := tracer.Start(ctx, "provisioning.bootstrap",
		trace.WithAttributes(attribute.Int("bootstrap.workers", len(e.WorkerURLs))))
	defer span.End()
	if err := o.bootstrapper.Bootstrap(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap failed")
		return err
	}
	return nil
}

// notifyReady never fails the attempt: infrastructure is already committed.
func (o *Orchestrator) notifyReady(ctx context.Context, reg *models.Registration, e outputs.Endpoints) {
	err := o.notifier.SendInstanceReady(ctx, notification.InstanceReady{
		To:                reg.Email,
		Name:              reg.Name,
		RegistrationID:    reg.ID.String(),
		Endpoints:         e,
		UICredentials:     o.uiCreds,
		WorkerCredentials: o.workerCreds,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to send instance ready mail",
			"registration_id", reg.ID,
			"error", err,
		)
	}
}

func (o *Orchestrator) emit(ctx context.Context, e events.Event) {
	if o.events == nil {
		return
	}
	if err := o.events.Emit(ctx, e); err != nil {
		o.logger.WarnContext(ctx, "failed to emit lifecycle event",
			"type", string(e.Type),
			"error", err,
		)
	}
}

func fail(err error, step string) error {
	return dErrors.Wrap(err, dErrors.CodeProvisioning, "provisioning failed: "+step)
}

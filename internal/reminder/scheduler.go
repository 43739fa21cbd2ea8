// Package reminder sends trial-expiry reminders. Schedules are never stored:
// every cycle re-derives the pending (registration, day) pairs from creation
// time and persisted marks, fires the ones already due and arms timers for
// the rest.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"onboarding/internal/events"
	"onboarding/internal/notification"
	"onboarding/internal/platform/config"
	"onboarding/internal/registration/models"
	"onboarding/internal/reminder/metrics"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
)

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ListInfraReady(ctx context.Context, createdBefore time.Time) ([]*models.Registration, error)
	AppendReminderMark(ctx context.Context, id uuid.UUID, day int, now time.Time) (bool, error)
}

// Pair is one armed reminder.
type Pair struct {
	RegistrationID uuid.UUID
	Day            int
	FireAt         time.Time
}

type pairKey struct {
	id  uuid.UUID
	day int
}

type armed struct {
	timer  *time.Timer
	fireAt time.Time
}

const numLockShards = 64

// Scheduler owns its timer registry; nothing is shared between instances
// except the store.
type Scheduler struct {
	store    Store
	notifier notification.Notifier
	claims   Claims
	trial    config.TrialConfig

	logger  *slog.Logger
	metrics *metrics.Metrics
	events  events.Emitter
	now     func() time.Time

	mu      sync.Mutex
	timers  map[pairKey]armed
	stopped bool
	firing  sync.WaitGroup
	cron    *cron.Cron

	shards [numLockShards]sync.Mutex
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithEvents(emitter events.Emitter) Option {
	return func(s *Scheduler) {
		s.events = emitter
	}
}

// WithClaims replaces the in-process claims, typically with RedisClaims when
// several replicas share the store.
func WithClaims(claims Claims) Option {
	return func(s *Scheduler) {
		s.claims = claims
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(store Store, notifier notification.Notifier, trial config.TrialConfig, opts ...Option) *Scheduler {
	if trial.Location == nil {
		trial.Location = time.Local
	}
	s := &Scheduler{
		store:    store,
		notifier: notifier,
		trial:    trial,
		logger:   slog.Default(),
		now:      time.Now,
		timers:   make(map[pairKey]armed),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.claims == nil {
		s.claims = NewInMemoryClaims(0)
	}
	return s
}

// FireTime is created + (trialDays - day) calendar days, pinned to
// hour:minute in loc.
func FireTime(created time.Time, trialDays, day, hour, minute int, loc *time.Location) time.Time {
	d := created.In(loc).AddDate(0, 0, trialDays-day)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

// Start runs one cycle immediately and then on the configured cron trigger
// until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.trial.Location))
	spec := s.trial.CycleCron
	if spec == "" {
		spec = "0 14 * * *"
	}
	_, err := c.AddFunc(spec, func() {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.ErrorContext(ctx, "reminder cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reminder cycle schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("start reminder scheduler: %w", sentinel.ErrUnavailable)
	}
	s.cron = c
	s.mu.Unlock()

	if err := s.RunCycle(ctx); err != nil {
		s.logger.ErrorContext(ctx, "initial reminder cycle failed", "error", err)
	}
	c.Start()
	s.logger.InfoContext(ctx, "reminder scheduler started",
		"cycle", spec,
		"trial_days", s.trial.Days,
		"reminder_days", s.trial.ReminderDays,
	)
	return nil
}

// Stop halts the cron trigger, disarms every timer and waits for reminders
// already being delivered.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	c := s.cron
	for key, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.observeArmed()

	if c != nil {
		<-c.Stop().Done()
	}
	s.firing.Wait()
}

// RunCycle scans every provisioned registration older than the grace window.
// Past-due reminders are delivered before RunCycle returns.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	start := s.now()
	regs, err := s.store.ListInfraReady(ctx, start.Add(-s.trial.Grace))
	if err != nil {
		return fmt.Errorf("list provisioned registrations: %w", err)
	}
	for _, reg := range regs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.schedule(ctx, reg)
	}
	if s.metrics != nil {
		s.metrics.ObserveCycle(s.now().Sub(start))
	}
	s.logger.InfoContext(ctx, "reminder cycle complete",
		"registrations", len(regs),
		"armed", s.armedCount(),
	)
	return nil
}

// ScheduleRegistration arms the reminders of one freshly provisioned
// registration without waiting for the next cycle.
func (s *Scheduler) ScheduleRegistration(ctx context.Context, id uuid.UUID) error {
	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "registration not found")
		}
		return err
	}
	if !reg.InfraSetupDone {
		return dErrors.New(dErrors.CodeState, "registration has no provisioned infrastructure")
	}
	s.schedule(ctx, reg)
	return nil
}

// Pending lists the armed pairs ordered by fire time.
func (s *Scheduler) Pending() []Pair {
	s.mu.Lock()
	out := make([]Pair, 0, len(s.timers))
	for key, a := range s.timers {
		out = append(out, Pair{RegistrationID: key.id, Day: key.day, FireAt: a.fireAt})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].RegistrationID.String() < out[j].RegistrationID.String()
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

func (s *Scheduler) schedule(ctx context.Context, reg *models.Registration) {
	now := s.now()
	for _, day := range reg.PendingDays(s.trial.ReminderDays) {
		fireAt := FireTime(reg.CreatedAt, s.trial.Days, day, s.trial.FireHour, s.trial.FireMinute, s.trial.Location)
		if !fireAt.After(now) {
			s.fire(ctx, reg.ID, day)
			continue
		}
		s.arm(reg.ID, day, fireAt, fireAt.Sub(now))
	}
}

func (s *Scheduler) arm(id uuid.UUID, day int, fireAt time.Time, wait time.Duration) {
	key := pairKey{id: id, day: day}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, ok := s.timers[key]; ok {
		s.mu.Unlock()
		return
	}
	s.timers[key] = armed{
		fireAt: fireAt,
		timer: time.AfterFunc(wait, func() {
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			delete(s.timers, key)
			s.firing.Add(1)
			s.mu.Unlock()
			defer s.firing.Done()
			s.observeArmed()
			s.fire(context.Background(), id, day)
		}),
	}
	s.mu.Unlock()
	s.observeArmed()

	s.logger.Debug("reminder armed",
		"registration_id", id,
		"days_left", day,
		"fire_at", fireAt,
	)
}

// fire delivers one reminder. The registration is re-read under its shard
// lock so a mark persisted since the schedule was derived is honoured.
func (s *Scheduler) fire(ctx context.Context, id uuid.UUID, day int) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "reminder skipped: registration unavailable",
			"registration_id", id,
			"days_left", day,
			"error", err,
		)
		s.count(metrics.OutcomeSkipped)
		return
	}
	if reg.HasMark(day) {
		s.count(metrics.OutcomeSkipped)
		return
	}

	claimed, err := s.claims.Claim(ctx, id, day)
	if err != nil {
		s.logger.WarnContext(ctx, "reminder deferred: claim unavailable",
			"registration_id", id,
			"days_left", day,
			"error", err,
		)
		s.count(metrics.OutcomeSkipped)
		return
	}
	if !claimed {
		s.logger.DebugContext(ctx, "reminder claimed by another instance",
			"registration_id", id,
			"days_left", day,
		)
		s.count(metrics.OutcomeSkipped)
		return
	}

	err = s.notifier.SendTrialReminder(ctx, notification.TrialReminder{
		To:       reg.Email,
		Name:     reg.Name,
		DaysLeft: day,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "trial reminder delivery failed",
			"registration_id", id,
			"days_left", day,
			"error", err,
		)
		if relErr := s.claims.Release(ctx, id, day); relErr != nil {
			s.logger.WarnContext(ctx, "failed to release reminder claim",
				"registration_id", id,
				"days_left", day,
				"error", relErr,
			)
		}
		s.count(metrics.OutcomeFailed)
		return
	}

	appended, err := s.store.AppendReminderMark(ctx, id, day, s.now())
	if err != nil {
		// The claim stays held so the mail is not repeated before it expires.
		s.logger.ErrorContext(ctx, "trial reminder sent but mark not persisted",
			"registration_id", id,
			"days_left", day,
			"error", err,
		)
	} else if !appended {
		s.logger.WarnContext(ctx, "trial reminder mark already present",
			"registration_id", id,
			"days_left", day,
		)
	}

	s.count(metrics.OutcomeSent)
	s.logger.InfoContext(ctx, "trial reminder sent",
		"registration_id", id,
		"days_left", day,
	)
	if s.events != nil {
		err := s.events.Emit(ctx, events.Event{
			Type:           events.TypeReminderSent,
			RegistrationID: id.String(),
			Attributes:     map[string]string{"days_left": strconv.Itoa(day)},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to emit lifecycle event",
				"type", string(events.TypeReminderSent),
				"error", err,
			)
		}
	}
}

func (s *Scheduler) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return &s.shards[h.Sum32()%numLockShards]
}

func (s *Scheduler) armedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) observeArmed() {
	if s.metrics != nil {
		s.metrics.SetArmed(s.armedCount())
	}
}

func (s *Scheduler) count(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementReminder(outcome)
	}
}

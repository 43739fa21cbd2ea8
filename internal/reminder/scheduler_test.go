package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"onboarding/internal/events"
	"onboarding/internal/notification"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/logger"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/store"
	"onboarding/internal/reminder/metrics"
	dErrors "onboarding/pkg/domain-errors"
)

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []notification.TrialReminder
	failing bool
}

func (n *recordingNotifier) SendInstanceReady(context.Context, notification.InstanceReady) error {
	return nil
}

func (n *recordingNotifier) SendTrialReminder(_ context.Context, msg notification.TrialReminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing {
		return dErrors.New(dErrors.CodeNotification, "relay refused message")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) days() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.DaysLeft)
	}
	return out
}

func (n *recordingNotifier) setFailing(v bool) {
	n.mu.Lock()
	n.failing = v
	n.mu.Unlock()
}

type SchedulerSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	notifier *recordingNotifier
	trial    config.TrialConfig
	now      time.Time
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.now = time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)
	s.trial = config.TrialConfig{
		Days:         15,
		ReminderDays: []int{5, 3, 1},
		FireHour:     13,
		FireMinute:   59,
		Grace:        15 * time.Minute,
		Location:     time.UTC,
	}
}

func (s *SchedulerSuite) scheduler(opts ...Option) *Scheduler {
	opts = append([]Option{
		WithLogger(logger.Discard()),
		WithClock(func() time.Time { return s.now }),
	}, opts...)
	sched := New(s.store, s.notifier, s.trial, opts...)
	s.T().Cleanup(sched.Stop)
	return sched
}

// provisioned stores a registration created age ago with infrastructure done
// and the given marks already delivered.
func (s *SchedulerSuite) provisioned(email string, age time.Duration, marks ...int) *models.Registration {
	reg := models.New("Acme", "Jane Doe", "", email, s.now.Add(-age))
	s.Require().NoError(s.store.Create(s.ctx, reg))
	s.Require().NoError(s.store.MarkInfraSetupDone(s.ctx, reg.ID, s.now))
	for _, d := range marks {
		ok, err := s.store.AppendReminderMark(s.ctx, reg.ID, d, s.now)
		s.Require().NoError(err)
		s.Require().True(ok)
	}
	return reg
}

func (s *SchedulerSuite) marks(id uuid.UUID) []int {
	reg, err := s.store.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return reg.TrialReminderSentMarks
}

// TestPastDueFiresFutureArms: at day 13 with day 5 already sent, day 3 is
// delivered immediately, day 1 is armed and day 5 never repeats.
func (s *SchedulerSuite) TestPastDueFiresFutureArms() {
	reg := s.provisioned("jane@acme.io", 13*24*time.Hour, 5)
	m := metrics.New(prometheus.NewRegistry())
	publisher := events.NewPublisher(8)
	sched := s.scheduler(WithMetrics(m), WithEvents(publisher))

	s.Require().NoError(sched.RunCycle(s.ctx))

	s.Equal([]int{3}, s.notifier.days())
	s.Equal([]int{5, 3}, s.marks(reg.ID))
	s.Equal([]Pair{{
		RegistrationID: reg.ID,
		Day:            1,
		FireAt:         time.Date(2026, time.March, 21, 13, 59, 0, 0, time.UTC),
	}}, sched.Pending())
	s.Equal(float64(1), testutil.ToFloat64(m.Reminders.WithLabelValues(metrics.OutcomeSent)))
	s.Equal(float64(1), testutil.ToFloat64(m.Armed))

	e := <-publisher.Inbox()
	s.Equal(events.TypeReminderSent, e.Type)
	s.Equal("3", e.Attributes["days_left"])

	s.Run("second cycle neither resends nor re-arms", func() {
		s.Require().NoError(sched.RunCycle(s.ctx))
		s.Equal([]int{3}, s.notifier.days())
		s.Len(sched.Pending(), 1)
	})
}

// TestRestartResumesFromPersistedState: a fresh instance over the same store
// re-arms only the days still pending.
func (s *SchedulerSuite) TestRestartResumesFromPersistedState() {
	reg := s.provisioned("jane@acme.io", 13*24*time.Hour, 5)

	first := s.scheduler()
	s.Require().NoError(first.RunCycle(s.ctx))
	first.Stop()
	s.Empty(first.Pending())

	second := s.scheduler()
	s.Require().NoError(second.RunCycle(s.ctx))

	s.Equal([]int{3}, s.notifier.days())
	s.Equal([]int{5, 3}, s.marks(reg.ID))
	pending := second.Pending()
	s.Require().Len(pending, 1)
	s.Equal(1, pending[0].Day)
}

func (s *SchedulerSuite) TestDeliveryFailureIsRetriedNextCycle() {
	reg := s.provisioned("jane@acme.io", 13*24*time.Hour, 5)
	sched := s.scheduler()

	s.notifier.setFailing(true)
	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Equal([]int{5}, s.marks(reg.ID))

	s.notifier.setFailing(false)
	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Equal([]int{3}, s.notifier.days())
	s.Equal([]int{5, 3}, s.marks(reg.ID))
}

func (s *SchedulerSuite) TestGraceWindowAppliesOnlyToCycles() {
	reg := s.provisioned("fresh@acme.io", 5*time.Minute)
	sched := s.scheduler()

	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Empty(sched.Pending())

	s.Require().NoError(sched.ScheduleRegistration(s.ctx, reg.ID))
	pending := sched.Pending()
	s.Require().Len(pending, 3)
	s.Equal([]int{5, 3, 1}, []int{pending[0].Day, pending[1].Day, pending[2].Day})
	s.Empty(s.notifier.days())
}

func (s *SchedulerSuite) TestScheduleRegistrationPreconditions() {
	sched := s.scheduler()

	err := sched.ScheduleRegistration(s.ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	pending := models.New("Acme", "Jane", "", "pending@acme.io", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, pending))
	err = sched.ScheduleRegistration(s.ctx, pending.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeState))
}

func (s *SchedulerSuite) TestClaimHeldElsewhereSkipsDelivery() {
	reg := s.provisioned("jane@acme.io", 13*24*time.Hour, 5)
	claims := NewInMemoryClaims(time.Hour)
	ok, err := claims.Claim(s.ctx, reg.ID, 3)
	s.Require().NoError(err)
	s.Require().True(ok)

	sched := s.scheduler(WithClaims(claims))
	s.Require().NoError(sched.RunCycle(s.ctx))

	s.Empty(s.notifier.days())
	s.Equal([]int{5}, s.marks(reg.ID))
}

func (s *SchedulerSuite) TestArmedTimerDelivers() {
	reg := s.provisioned("jane@acme.io", 13*24*time.Hour, 5, 3)
	dayOne := FireTime(reg.CreatedAt, s.trial.Days, 1, s.trial.FireHour, s.trial.FireMinute, time.UTC)
	s.now = dayOne.Add(-50 * time.Millisecond)

	sched := s.scheduler()
	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Require().Len(sched.Pending(), 1)

	s.Eventually(func() bool {
		return len(s.notifier.days()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool {
		return len(s.marks(reg.ID)) == 3
	}, 2*time.Second, 10*time.Millisecond)
	s.Empty(sched.Pending())
}

func (s *SchedulerSuite) TestStopDisarms() {
	s.provisioned("fresh@acme.io", time.Hour)
	sched := s.scheduler()
	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Len(sched.Pending(), 3)

	sched.Stop()
	s.Empty(sched.Pending())

	s.Require().NoError(sched.RunCycle(s.ctx))
	s.Empty(sched.Pending(), "a stopped scheduler arms nothing")
}

func TestFireTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	created := time.Date(2026, time.January, 1, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		day  int
		loc  *time.Location
		want time.Time
	}{
		{"five days left", 5, time.UTC, time.Date(2026, time.January, 11, 13, 59, 0, 0, time.UTC)},
		{"one day left", 1, time.UTC, time.Date(2026, time.January, 15, 13, 59, 0, 0, time.UTC)},
		{"calendar day taken in location", 5, berlin, time.Date(2026, time.January, 12, 13, 59, 0, 0, berlin)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FireTime(created, 15, tc.day, 13, 59, tc.loc)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestInMemoryClaimsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	claims := NewInMemoryClaims(time.Minute)
	claims.now = func() time.Time { return now }
	id := uuid.New()

	ok, err := claims.Claim(ctx, id, 3)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = claims.Claim(ctx, id, 3)
	assert.False(t, ok)

	ok, _ = claims.Claim(ctx, id, 1)
	assert.True(t, ok, "claims are per day")

	now = now.Add(2 * time.Minute)
	ok, _ = claims.Claim(ctx, id, 3)
	assert.True(t, ok, "expired claim can be taken again")

	assert.NoError(t, claims.Release(ctx, id, 3))
	ok, _ = claims.Claim(ctx, id, 3)
	assert.True(t, ok)
}

func TestInMemoryClaimsPruneExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	claims := NewInMemoryClaims(time.Minute)
	claims.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		ok, err := claims.Claim(ctx, uuid.New(), 3)
		assert.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, claims.held, 50)

	now = now.Add(2 * time.Minute)
	ok, err := claims.Claim(ctx, uuid.New(), 1)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, claims.held, 1)
}

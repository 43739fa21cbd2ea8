package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"onboarding/internal/provisioning/metrics"
	"onboarding/pkg/platform/sentinel"
)

// Provisioner runs one provisioning attempt.
type Provisioner interface {
	Provision(ctx context.Context, id uuid.UUID) (string, error)
}

// Queue hands registrations to a bounded pool of provisioning workers so the
// request path never waits on the infrastructure tool. Attempts are not
// retried; failures stay visible through the failed-registrations listing.
type Queue struct {
	provisioner Provisioner
	jobs        chan uuid.UUID
	workers     int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	closed   bool
}

type QueueOption func(*Queue)

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

func NewQueue(p Provisioner, workers, size int, opts ...QueueOption) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		provisioner: p,
		jobs:        make(chan uuid.UUID, size),
		workers:     workers,
		logger:      slog.Default(),
		inflight:    make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue schedules id for provisioning. An id already queued or running is
// accepted without a second attempt.
func (q *Queue) Enqueue(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("enqueue provisioning: %w", sentinel.ErrUnavailable)
	}
	if _, ok := q.inflight[id]; ok {
		return nil
	}
	select {
	case q.jobs <- id:
		q.inflight[id] = struct{}{}
		if q.metrics != nil {
			q.metrics.QueueDepth.Inc()
		}
		return nil
	default:
		return fmt.Errorf("enqueue provisioning: queue full: %w", sentinel.ErrUnavailable)
	}
}

// Run starts the workers and consumes the queue until ctx is cancelled, then
// stops accepting work and waits for running attempts. Attempts are detached
// from ctx so a shutdown never kills the tool halfway through an apply. Ids
// still queued at shutdown are dropped and logged; they remain visible in the
// failed-registrations listing.
func (q *Queue) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}

	<-ctx.Done()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	_ = g.Wait()
	q.dropPending(ctx)
	return ctx.Err()
}

func (q *Queue) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case id := <-q.jobs:
			if q.metrics != nil {
				q.metrics.QueueDepth.Dec()
			}
			q.process(context.WithoutCancel(ctx), id)
		}
	}
}

// dropPending empties the buffer once no worker or producer can touch it.
func (q *Queue) dropPending(ctx context.Context) {
	for {
		select {
		case id := <-q.jobs:
			if q.metrics != nil {
				q.metrics.QueueDepth.Dec()
			}
			q.mu.Lock()
			delete(q.inflight, id)
			q.mu.Unlock()
			q.logger.WarnContext(ctx, "provisioning dropped at shutdown", "registration_id", id)
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, id uuid.UUID) {
	defer func() {
		q.mu.Lock()
		delete(q.inflight, id)
		q.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			q.logger.ErrorContext(ctx, "provisioning panicked",
				"registration_id", id,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	q.logger.InfoContext(ctx, "provisioning started", "registration_id", id)
	if _, err := q.provisioner.Provision(ctx, id); err != nil {
		q.logger.WarnContext(ctx, "provisioning attempt ended with error",
			"registration_id", id,
			"error", err,
		)
	}
}

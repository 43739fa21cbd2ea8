package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"onboarding/internal/bootstrap"
	"onboarding/internal/events"
	"onboarding/internal/notification"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/httpserver"
	"onboarding/internal/platform/logger"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/middleware"
	"onboarding/internal/platform/postgres"
	"onboarding/internal/platform/redis"
	"onboarding/internal/provisioning"
	provmetrics "onboarding/internal/provisioning/metrics"
	"onboarding/internal/provisioning/runner"
	"onboarding/internal/provisioning/workspace"
	"onboarding/internal/registration/handler"
	"onboarding/internal/registration/service"
	"onboarding/internal/registration/store"
	"onboarding/internal/reminder"
	remindermetrics "onboarding/internal/reminder/metrics"
	"onboarding/pkg/platform/httputil"
)

// registrationStore is the union of what the intake service, the orchestrator
// and the reminder scheduler need from persistence.
type registrationStore interface {
	service.Store
	provisioning.Store
	reminder.Store
}

const eventBuffer = 256

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "onboarding: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	intakeMetrics := metrics.New(registry)
	provisionMetrics := provmetrics.New(registry)
	reminderMetrics := remindermetrics.New(registry)

	regStore, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink, closeSink, err := eventSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()
	publisher := events.NewPublisher(eventBuffer)

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	schedulerOpts := []reminder.Option{
		reminder.WithLogger(log),
		reminder.WithMetrics(reminderMetrics),
		reminder.WithEvents(publisher),
	}
	if redisClient != nil {
		schedulerOpts = append(schedulerOpts, reminder.WithClaims(reminder.NewRedisClaims(redisClient.Client, 0)))
	}
	scheduler := reminder.New(regStore, notifier, cfg.Trial, schedulerOpts...)

	orchestrator := provisioning.NewOrchestrator(
		regStore,
		workspace.New(cfg.Terraform.TemplateDir, cfg.Terraform.WorkspaceRoot, workspace.WithLogger(log)),
		runner.New(cfg.Terraform.Binary,
			runner.WithLogger(log),
			runner.WithMetrics(provisionMetrics),
			runner.WithStepTimeout(cfg.Terraform.StepTimeout),
		),
		bootstrap.New(
			bootstrap.Credentials{Email: cfg.DFM.AdminUser, Password: cfg.DFM.AdminPassword},
			bootstrap.WithLogger(log),
			bootstrap.WithWarmup(cfg.DFM.Warmup),
			bootstrap.WithTimeout(cfg.DFM.Timeout),
			bootstrap.WithBaseURL(cfg.DFM.BaseURL),
		),
		notifier,
		provisioning.WithLogger(log),
		provisioning.WithMetrics(provisionMetrics),
		provisioning.WithEvents(publisher),
		provisioning.WithReminders(scheduler),
		provisioning.WithCredentials(
			notification.Credentials{User: cfg.DFM.AdminUser, Password: cfg.DFM.AdminPassword},
			notification.Credentials{User: cfg.Worker.User, Password: cfg.Worker.Password},
		),
	)
	queue := provisioning.NewQueue(orchestrator, cfg.Provisioning.Workers, cfg.Provisioning.QueueSize,
		provisioning.WithQueueLogger(log),
		provisioning.WithQueueMetrics(provisionMetrics),
	)

	svc := service.New(regStore, queue,
		service.WithLogger(log),
		service.WithEvents(publisher),
		service.WithMetrics(intakeMetrics),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.AccessLog(log))
	r.Get("/api/v1/health", healthHandler(db, redisClient))
	r.Handle("/metrics", metrics.Handler(registry))
	handler.New(svc, log, cfg.AdminAPIToken).Register(r)

	if cfg.AdminAPIToken == "" {
		log.Warn("ADMIN_API_TOKEN not set, admin routes are disabled")
	}

	// Events outlive the rest so lifecycle records emitted during shutdown
	// still reach the sink.
	eventsCtx, cancelEvents := context.WithCancel(context.Background())
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		_ = events.NewWorker(sink, publisher.Inbox(), log).Run(eventsCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(queue.Run(gctx))
	})
	if err := scheduler.Start(gctx); err != nil {
		stop()
		_ = g.Wait()
		cancelEvents()
		<-eventsDone
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, r), log)
	})

	log.Info("onboarding started",
		"addr", cfg.Addr,
		"postgres", db != nil,
		"redis", redisClient != nil,
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"smtp", cfg.SMTP.Host != "",
	)

	err = g.Wait()
	cancelEvents()
	<-eventsDone
	log.Info("onboarding stopped")
	return err
}

func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (registrationStore, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory registration store")
		return store.NewInMemory(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(db), db, nil
}

func eventSink(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogSink(log), func() {}, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	sink, err := events.NewKafkaSink(connectCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}

func newNotifier(cfg config.Server, log *slog.Logger) (notification.Notifier, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, mail is logged instead of sent")
		return notification.NewLogNotifier(log), nil
	}
	return notification.NewSMTPNotifier(cfg.SMTP,
		notification.WithLogger(log),
		notification.WithCircuitBreaker(notification.NewCircuitBreaker(5, time.Minute)),
	)
}

func healthHandler(db *sql.DB, rc *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status["postgres"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if rc != nil {
			if err := rc.Health(ctx); err != nil {
				status["redis"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

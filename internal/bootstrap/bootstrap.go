package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"onboarding/internal/provisioning/outputs"
	dErrors "onboarding/pkg/domain-errors"
)

var clusterNames = []string{"Development", "Staging"}

// ClusterName names the i-th worker cluster.
func ClusterName(i int) string {
	if i < len(clusterNames) {
		return clusterNames[i]
	}
	return fmt.Sprintf("Cluster %d", i+1)
}

// Bootstrapper runs the fixed setup sequence against a provisioned tenant:
// login, one registry, then one cluster per worker, strictly in that order.
type Bootstrapper struct {
	creds    Credentials
	timeout  time.Duration
	warmup   time.Duration
	override string
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Bootstrapper)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logger
	}
}

// WithWarmup waits d before the first call so the UI has time to boot.
func WithWarmup(d time.Duration) Option {
	return func(b *Bootstrapper) {
		b.warmup = d
	}
}

// WithTimeout sets the per-call network timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bootstrapper) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithBaseURL targets a fixed management API instead of the provisioned UI.
func WithBaseURL(url string) Option {
	return func(b *Bootstrapper) {
		b.override = url
	}
}

func New(creds Credentials, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		creds:   creds,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bootstrap configures the tenant described by e.
func (b *Bootstrapper) Bootstrap(ctx context.Context, e outputs.Endpoints) error {
	baseURL := e.UIURL
	if b.override != "" {
		baseURL = b.override
	}
	if baseURL == "" {
		return dErrors.New(dErrors.CodeState, "no management API address")
	}

	if b.warmup > 0 {
		b.logger.InfoContext(ctx, "waiting for management UI to boot", "warmup", b.warmup.String())
		if err := b.sleep(ctx, b.warmup); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "bootstrap cancelled during warmup")
		}
	}

	client := NewClient(baseURL, b.creds,
		WithHTTPClient(&http.Client{Timeout: b.timeout}),
		WithClientLogger(b.logger),
	)
	if err := client.Login(ctx); err != nil {
		return err
	}

	var registryID string
	if e.RegistryURL != "" {
		id, err := client.CreateRegistry(ctx, e.RegistryURL)
		if err != nil {
			return err
		}
		registryID = id
		b.logger.InfoContext(ctx, "registry created", "registry_id", registryID)
	}

	for i, worker := range e.WorkerURLs {
		cluster, err := client.CreateCluster(ctx, worker, ClusterName(i), registryID)
		if err != nil {
			return err
		}
		b.logger.InfoContext(ctx, "cluster created",
			"cluster", cluster.Name,
			"cluster_id", cluster.ID,
			"worker_url", worker,
		)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

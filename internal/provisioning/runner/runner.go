// Package runner executes the infrastructure-as-code tool as a subprocess.
//
// Only a non-zero exit status, a launch failure, a step timeout or an
// oversized output is fatal. Text on stderr alone is logged as a warning.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"onboarding/internal/provisioning/metrics"
	dErrors "onboarding/pkg/domain-errors"
)

// MaxOutputBytes caps captured stdout and stderr per step.
const MaxOutputBytes = 1 << 20

// Step names a tool subcommand.
type Step string

const (
	StepInit   Step = "init"
	StepPlan   Step = "plan"
	StepApply  Step = "apply"
	StepOutput Step = "output"
)

// Runner invokes one binary inside a workspace directory.
type Runner struct {
	binary      string
	stepTimeout time.Duration
	maxOutput   int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithStepTimeout bounds the runtime of each subcommand. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stepTimeout = d
	}
}

// WithMaxOutput overrides MaxOutputBytes.
func WithMaxOutput(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

func New(binary string, opts ...Option) *Runner {
	r := &Runner{binary: binary, maxOutput: MaxOutputBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes `<binary> <step> args...` with dir as working directory and
// the process environment inherited. It returns captured stdout.
func (r *Runner) Run(ctx context.Context, dir string, step Step, args ...string) (string, error) {
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	stdout := newLimitedBuffer(r.maxOutput)
	stderr := newLimitedBuffer(r.maxOutput)
	cmd := exec.CommandContext(ctx, r.binary, append([]string{string(step)}, args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TF_IN_AUTOMATION=1")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := r.classify(ctx, step, cmd.Run(), stdout, stderr)
	if r.metrics != nil {
		r.metrics.ObserveStep(string(step), time.Since(start), err)
	}
	if err != nil {
		return "", err
	}

	if warn := strings.TrimSpace(stderr.String()); warn != "" {
		r.logger.WarnContext(ctx, "tool wrote to stderr",
			"step", string(step),
			"dir", dir,
			"stderr", warn,
		)
	}
	return stdout.String(), nil
}

func (r *Runner) classify(ctx context.Context, step Step, runErr error, stdout, stderr *limitedBuffer) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(ctx.Err(), dErrors.CodeToolExecution, string(step)+" timed out")
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := string(step) + " exited with status " + strconv.Itoa(exitErr.ExitCode())
			if tail := tail(stderr.String(), 2048); tail != "" {
				msg += ": " + tail
			}
			return dErrors.Wrap(runErr, dErrors.CodeToolExecution, msg)
		}
		return dErrors.Wrap(runErr, dErrors.CodeToolExecution, "failed to launch "+string(step))
	}
	if stdout.Overflowed() || stderr.Overflowed() {
		return dErrors.New(dErrors.CodeToolExecution, string(step)+" output exceeded buffer limit")
	}
	return nil
}

// limitedBuffer keeps at most limit bytes and records overflow. It never
// returns a write error, so the child is not blocked on a full pipe.
type limitedBuffer struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if len(p) > room {
		b.overflowed = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

func (b *limitedBuffer) Overflowed() bool {
	return b.overflowed
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

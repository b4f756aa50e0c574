// Package install runs the ordered, idempotent steps that bring a repository
// up to date: base workflows, index repair, hidden actions, workflow patches
// and demo data. The whole sequence runs under an exclusive lock.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/seed"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
)

// LockKey is the lock held while the install sequence runs.
const LockKey = "install"

// DefaultLockTTL bounds how long a crashed installer keeps the lock.
const DefaultLockTTL = 5 * time.Minute

// ErrStepFailed wraps the error of a step that aborted the sequence.
var ErrStepFailed = errors.New("install step failed")

// Env is the shared state handed to every step.
type Env struct {
	Repo    ports.Repository
	Storage *storage.Service
	Patcher *workflow.Patcher
	// Patches are applied in order by the workflows step.
	Patches []*domain.WorkflowPatch
	Seed    seed.Config
	Logger  *slog.Logger
}

// Step is one unit of the install sequence. Steps must be idempotent.
type Step interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// StepFunc adapts a function to Step.
type StepFunc struct {
	ID string
	Fn func(ctx context.Context, env *Env) error
}

func (s StepFunc) Name() string { return s.ID }

func (s StepFunc) Run(ctx context.Context, env *Env) error { return s.Fn(ctx, env) }

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Observer receives every StepResult as it completes.
type Observer func(StepResult)

// Runner executes steps in order under a DistributedLocker.
type Runner struct {
	locker   ports.DistributedLocker
	steps    []Step
	logger   *slog.Logger
	observer Observer
	ttl      time.Duration
	key      string
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger configures a logger for the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSteps replaces the default step list.
func WithSteps(steps ...Step) Option {
	return func(r *Runner) {
		r.steps = steps
	}
}

// WithObserver registers a callback for step results.
func WithObserver(fn Observer) Option {
	return func(r *Runner) {
		r.observer = fn
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		r.ttl = ttl
	}
}

// NewRunner creates a Runner running DefaultSteps.
func NewRunner(locker ports.DistributedLocker, opts ...Option) *Runner {
	r := &Runner{
		locker: locker,
		steps:  DefaultSteps(),
		logger: logging.NewNop(),
		ttl:    DefaultLockTTL,
		key:    LockKey,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps returns the names of the configured steps in execution order.
func (r *Runner) Steps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name()
	}
	return names
}

// Run acquires the install lock and executes every step. The first failing
// step aborts the sequence; its error wraps ErrStepFailed.
func (r *Runner) Run(ctx context.Context, env *Env) ([]StepResult, error) {
	if env.Logger == nil {
		env.Logger = r.logger
	}
	if env.Patcher == nil {
		env.Patcher = workflow.NewPatcher(workflow.WithLogger(env.Logger))
	}
	if env.Storage == nil {
		env.Storage = storage.NewService(env.Repo, storage.WithLogger(env.Logger))
	}

	unlock, err := r.locker.Lock(ctx, r.key, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire install lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("Failed to release install lock", "error", err)
		}
	}()

	r.logger.Info("Running install steps", "steps", len(r.steps))
	results := make([]StepResult, 0, len(r.steps))
	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		err := step.Run(ctx, env)
		res := StepResult{Name: step.Name(), Duration: time.Since(start), Err: err}
		results = append(results, res)
		if r.observer != nil {
			r.observer(res)
		}
		if err != nil {
			r.logger.Error("Install step failed", "step", step.Name(), "error", err)
			return results, fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name(), err)
		}
		r.logger.Info("Install step done", "step", step.Name(), "duration", res.Duration)
	}
	return results, nil
}

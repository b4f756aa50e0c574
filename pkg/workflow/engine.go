package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
)

// Actor is the subject firing a transition.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasAnyRole reports whether the actor holds one of roles.
func (a Actor) HasAnyRole(roles []string) bool {
	return slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(a.Roles, r) })
}

// ExpressionEvaluator decides guard expressions.
type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, expr string, actor Actor, stateID string) (bool, error)
}

// EvaluatorFunc adapts a function to ExpressionEvaluator.
type EvaluatorFunc func(ctx context.Context, expr string, actor Actor, stateID string) (bool, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, expr string, actor Actor, stateID string) (bool, error) {
	return f(ctx, expr, actor, stateID)
}

// denyExpressions is the default evaluator: no expression language is built in.
var denyExpressions = EvaluatorFunc(func(_ context.Context, expr string, _ Actor, _ string) (bool, error) {
	return false, fmt.Errorf("unsupported guard expression %q", expr)
})

// Engine fires transitions of workflow definitions.
type Engine struct {
	evaluator ExpressionEvaluator
	logger    *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEvaluator sets the guard expression evaluator.
func WithEvaluator(ev ExpressionEvaluator) EngineOption {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithEngineLogger configures a logger for the Engine.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine that denies every guard expression unless an
// evaluator is configured.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{evaluator: denyExpressions, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fire checks that transitionID leaves current and that its guard admits
// actor, and returns the id of the new state.
func (e *Engine) Fire(ctx context.Context, def *domain.Definition, current, transitionID string, actor Actor) (string, error) {
	state, ok := def.State(current)
	if !ok {
		return "", fmt.Errorf("%w: state %q in workflow %s", domain.ErrNotFound, current, def.ID)
	}
	if !state.HasTransition(transitionID) {
		return "", fmt.Errorf("%w: %q from %q", domain.ErrTransitionNotAllowed, transitionID, current)
	}
	t, ok := def.Transition(transitionID)
	if !ok {
		return "", fmt.Errorf("%w: transition %q in workflow %s", domain.ErrNotFound, transitionID, def.ID)
	}
	if err := e.checkGuard(ctx, state, t, actor); err != nil {
		e.logger.Info("Guard denied transition", "workflow", def.ID, "transition", transitionID, "actor", actor.ID, "error", err)
		return "", err
	}
	e.logger.Debug("Transition fired", "workflow", def.ID, "transition", transitionID, "from", current, "to", t.NewStateID)
	return t.NewStateID, nil
}

// Available returns the transitions of current that actor may fire, sorted.
func (e *Engine) Available(ctx context.Context, def *domain.Definition, current string, actor Actor) []string {
	state, ok := def.State(current)
	if !ok {
		return []string{}
	}
	out := []string{}
	for _, id := range domain.NormalizeSet(state.Transitions) {
		t, ok := def.Transition(id)
		if ok && e.checkGuard(ctx, state, t, actor) == nil {
			out = append(out, id)
		}
	}
	return out
}

// checkGuard applies the guard conditions together: a listed role must be
// held, a listed permission must be granted to one of the actor's roles in
// the current state, and the expression must evaluate to true.
func (e *Engine) checkGuard(ctx context.Context, state *domain.State, t *domain.Transition, actor Actor) error {
	g := t.Guard
	if roles := g.RoleList(); len(roles) > 0 && !actor.HasAnyRole(roles) {
		return fmt.Errorf("%w: %s requires one of roles %v", domain.ErrGuardDenied, t.ID, roles)
	}
	if perms := g.PermissionList(); len(perms) > 0 {
		granted := slices.ContainsFunc(perms, func(p string) bool {
			return actor.HasAnyRole(state.PermissionRoles[p])
		})
		if !granted {
			return fmt.Errorf("%w: %s requires one of permissions %v", domain.ErrGuardDenied, t.ID, perms)
		}
	}
	if g.Expression != "" {
		ok, err := e.evaluator.Evaluate(ctx, g.Expression, actor, state.ID)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrGuardDenied, t.ID, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s expression %q is false", domain.ErrGuardDenied, t.ID, g.Expression)
		}
	}
	return nil
}

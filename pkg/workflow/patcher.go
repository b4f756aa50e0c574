package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Report describes the outcome of applying one patch.
type Report struct {
	WorkflowID string
	// Applied is false when the workflow was missing or the patch was rejected.
	Applied bool
	// Diff lists what changed; nil when the patch was a no-op.
	Diff *domain.DefinitionDiff
	// Warnings collects non-fatal problems such as domain.ErrSourceStateMissing.
	Warnings []error
}

// Changed reports whether the patch modified the definition.
func (r Report) Changed() bool {
	return r.Applied && !r.Diff.Empty()
}

// Patcher merges WorkflowPatch values into workflow definitions.
type Patcher struct {
	logger   *slog.Logger
	observer func(Report)
}

// Option configures the Patcher.
type Option func(*Patcher)

// WithLogger configures a logger for the Patcher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		p.logger = logger
	}
}

// WithObserver registers a callback invoked with every Report produced.
func WithObserver(fn func(Report)) Option {
	return func(p *Patcher) {
		p.observer = fn
	}
}

// NewPatcher creates a Patcher.
func NewPatcher(opts ...Option) *Patcher {
	p := &Patcher{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply merges patch into a copy of def and returns the copy.
// A nil definition or one whose id differs from the patch target is returned
// unchanged with domain.ErrWorkflowNotFound recorded as a warning.
func (p *Patcher) Apply(def *domain.Definition, patch *domain.WorkflowPatch) (*domain.Definition, Report) {
	report := Report{WorkflowID: patch.WorkflowID}
	defer p.observe(&report)

	log := p.logger.With("workflow", patch.WorkflowID)
	if def == nil || def.ID != patch.WorkflowID {
		log.Warn("Workflow not found [SKIP]")
		report.Warnings = append(report.Warnings, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, patch.WorkflowID))
		return def, report
	}

	log.Info("Updating workflow")
	order, cycles := patch.StateOrder()
	for _, cycle := range cycles {
		log.Warn("permissions_copy_from cycle, copying in state order", "cycle", cycle)
		report.Warnings = append(report.Warnings, fmt.Errorf("permissions_copy_from cycle %v applied in state order", cycle))
	}

	out := def.Clone()
	out.Permissions = domain.NormalizeSet(append(out.Permissions, patch.Permissions...))

	for _, id := range order {
		if err := p.applyState(log, out, id, patch.States[id]); err != nil {
			report.Warnings = append(report.Warnings, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(patch.Transitions)) {
		p.applyTransition(log, out, id, patch.Transitions[id])
	}

	if err := out.Validate(); err != nil {
		log.Warn("Patched workflow has dangling references", "error", err)
		report.Warnings = append(report.Warnings, err)
	}

	report.Applied = true
	report.Diff = domain.Diff(def, out)
	return out, report
}

func (p *Patcher) applyState(log *slog.Logger, def *domain.Definition, id string, sp domain.StatePatch) error {
	log = log.With("state", id)

	st, exists := def.State(id)
	if !exists {
		log.Info("Creating state")
		st = def.AddState(id)
	}
	if sp.Title != nil {
		st.Title = *sp.Title
	}
	if sp.Description != nil {
		st.Description = *sp.Description
	}

	transitions := sp.Transitions
	if sp.PreserveTransitions {
		transitions = append(slices.Clone(st.Transitions), transitions...)
	}
	st.Transitions = domain.NormalizeSet(transitions)

	var warning error
	if src := sp.PermissionsCopyFrom; src != "" && src != id {
		source, ok := def.State(src)
		if !ok {
			warning = fmt.Errorf("%w: %q (copying into %q)", domain.ErrSourceStateMissing, src, id)
			log.Warn("Permission source state not found [SKIP]", "source", src)
		} else {
			log.Info("Copying permissions", "source", src)
			for _, perm := range slices.Sorted(maps.Keys(source.PermissionRoles)) {
				st.SetPermission(perm, source.PermissionRoles[perm])
			}
		}
	}

	if len(sp.Permissions) == 0 {
		log.Debug("No permissions set [SKIP]")
		return warning
	}
	for _, perm := range slices.Sorted(maps.Keys(sp.Permissions)) {
		roles := sp.Permissions[perm]
		log.Debug("Setting permission", "permission", perm, "roles", strings.Join(roles, ", "))
		st.SetPermission(perm, roles)
	}
	return warning
}

func (p *Patcher) applyTransition(log *slog.Logger, def *domain.Definition, id string, tp domain.TransitionPatch) {
	log.Info("Updating transition", "transition", id)
	t := def.AddTransition(id)
	t.Title = tp.Title
	t.NewStateID = tp.NewState
	t.ActionLabel = tp.Action
	t.AfterScript = tp.AfterScript
	t.Guard = domain.Guard{}
	if tp.Guard != nil {
		t.Guard = *tp.Guard
	}
}

func (p *Patcher) observe(r *Report) {
	if p.observer != nil {
		p.observer(*r)
	}
}

// Plan computes the report of applying patch to the stored workflow without saving.
func (p *Patcher) Plan(ctx context.Context, store ports.WorkflowStore, patch *domain.WorkflowPatch) (Report, error) {
	def, err := p.load(ctx, store, patch)
	if err != nil || def == nil {
		return Report{WorkflowID: patch.WorkflowID}, err
	}
	_, report := p.Apply(def, patch)
	return report, nil
}

// ApplyStored loads the target workflow from store, applies patch and saves
// the result when it changed. A missing workflow is logged and reported as
// (false, nil) so that install sequences keep going.
func (p *Patcher) ApplyStored(ctx context.Context, store ports.WorkflowStore, patch *domain.WorkflowPatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	def, err := p.load(ctx, store, patch)
	if err != nil || def == nil {
		return false, err
	}

	out, report := p.Apply(def, patch)
	if !report.Applied {
		return false, nil
	}
	if !report.Changed() {
		p.logger.Info("Workflow already up to date [SKIP]", "workflow", patch.WorkflowID)
		return true, nil
	}
	if err := store.SaveWorkflow(ctx, out); err != nil {
		return false, fmt.Errorf("failed to save workflow %s: %w", patch.WorkflowID, err)
	}
	return true, nil
}

// load returns nil without error when the workflow does not exist.
func (p *Patcher) load(ctx context.Context, store ports.WorkflowStore, patch *domain.WorkflowPatch) (*domain.Definition, error) {
	def, err := store.GetWorkflow(ctx, patch.WorkflowID)
	if errors.Is(err, domain.ErrWorkflowNotFound) {
		p.logger.Warn("Workflow not found [SKIP]", "workflow", patch.WorkflowID)
		p.observe(&Report{WorkflowID: patch.WorkflowID, Warnings: []error{err}})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", patch.WorkflowID, err)
	}
	return def, nil
}

package install

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/seed"
	"github.com/aretw0/strata/pkg/workflow"
)

// Step names.
const (
	StepBootstrapWorkflows = "bootstrap-workflows"
	StepReindex            = "reindex"
	StepHideActions        = "hide-actions"
	StepWorkflows          = "workflows"
	StepDemoData           = "demo-data"
)

// HiddenActions are navigation actions hidden once storage is installed.
var HiddenActions = []string{"bika_setup/bika_storagelocations"}

// DefaultSteps returns the install sequence in order.
func DefaultSteps() []Step {
	return []Step{
		StepFunc{ID: StepBootstrapWorkflows, Fn: bootstrapWorkflows},
		StepFunc{ID: StepReindex, Fn: reindex},
		StepFunc{ID: StepHideActions, Fn: hideActions},
		StepFunc{ID: StepWorkflows, Fn: applyPatches},
		StepFunc{ID: StepDemoData, Fn: demoData},
	}
}

// DefaultPatches returns the built-in storage patches.
func DefaultPatches() ([]*domain.WorkflowPatch, error) {
	return workflow.StoragePatches()
}

// LibraryPatches loads and parses every document of a patch library.
// Each document id is used as the target of bare (single workflow) documents.
func LibraryPatches(ctx context.Context, loader ports.PatchLoader) ([]*domain.WorkflowPatch, error) {
	ids, err := loader.ListPatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	var out []*domain.WorkflowPatch
	for _, id := range ids {
		raw, err := loader.GetPatch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load patch %s: %w", id, err)
		}
		patches, err := workflow.ParsePatches(raw, id)
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", id, err)
		}
		out = append(out, patches...)
	}
	return out, nil
}

func bootstrapWorkflows(ctx context.Context, env *Env) error {
	defs, err := workflow.BaseDefinitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		_, err := env.Repo.GetWorkflow(ctx, def.ID)
		switch {
		case err == nil:
			env.Logger.Debug("Workflow already present [SKIP]", "workflow", def.ID)
		case errors.Is(err, domain.ErrWorkflowNotFound):
			if err := env.Repo.SaveWorkflow(ctx, def); err != nil {
				return fmt.Errorf("failed to import workflow %s: %w", def.ID, err)
			}
			env.Logger.Info("Workflow imported", "workflow", def.ID)
		default:
			return err
		}
	}
	return nil
}

// reindex drops child references to missing items or samples and repairs
// parent pointers so that they agree with the holder listing the child.
func reindex(ctx context.Context, env *Env) error {
	items, err := env.Repo.ListItems(ctx, "")
	if err != nil {
		return err
	}
	samples, err := env.Repo.ListSamples(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	sampleByID := make(map[string]*domain.Sample, len(samples))
	for _, s := range samples {
		sampleByID[s.ID] = s
	}

	var dropped, repaired int
	for _, holder := range items {
		before := len(holder.Children)
		holder.Children = slices.DeleteFunc(holder.Children, func(ref domain.ChildRef) bool {
			if ref.Kind == domain.KindSample {
				_, ok := sampleByID[ref.ID]
				return !ok
			}
			_, ok := byID[ref.ID]
			return !ok
		})
		if n := before - len(holder.Children); n > 0 {
			dropped += n
			if err := env.Repo.SaveItem(ctx, holder); err != nil {
				return err
			}
		}

		for _, ref := range holder.Children {
			if ref.Kind == domain.KindSample {
				s := sampleByID[ref.ID]
				if s.ContainerID != holder.ID {
					s.ContainerID = holder.ID
					repaired++
					if err := env.Repo.SaveSample(ctx, s); err != nil {
						return err
					}
				}
				continue
			}
			child := byID[ref.ID]
			if child.ParentID != holder.ID {
				child.ParentID = holder.ID
				repaired++
				if err := env.Repo.SaveItem(ctx, child); err != nil {
					return err
				}
			}
		}
	}
	env.Logger.Info("Reindexed storage", "items", len(items), "samples", len(samples), "dropped", dropped, "repaired", repaired)
	return nil
}

func hideActions(ctx context.Context, env *Env) error {
	current, err := env.Repo.GetSetting(ctx, domain.SettingHiddenActions)
	if err != nil {
		return err
	}
	next := domain.NormalizeSet(append(slices.Clone(current), HiddenActions...))
	if slices.Equal(domain.NormalizeSet(current), next) {
		env.Logger.Info("Actions already hidden [SKIP]")
		return nil
	}
	return env.Repo.SetSetting(ctx, domain.SettingHiddenActions, next)
}

func applyPatches(ctx context.Context, env *Env) error {
	for _, patch := range env.Patches {
		applied, err := env.Patcher.ApplyStored(ctx, env.Repo, patch)
		if err != nil {
			return err
		}
		if !applied {
			env.Logger.Warn("Workflow patch not applied", "workflow", patch.WorkflowID)
		}
	}
	return nil
}

func demoData(ctx context.Context, env *Env) error {
	if !env.Seed.Enabled {
		env.Logger.Info("Demo data disabled [SKIP]")
		return nil
	}
	_, err := seed.New(env.Seed, seed.WithLogger(env.Logger)).Run(ctx, env.Storage)
	return err
}

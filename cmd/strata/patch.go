package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/spf13/cobra"
)

func newPatchCmd(o *rootOptions) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Validate, inspect and apply workflow patch documents",
	}
	cmd.PersistentFlags().StringVar(&target, "workflow", "", "Target of bare patch documents (default: file name)")

	load := func(path string) ([]*domain.WorkflowPatch, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		id := target
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return workflow.ParsePatches(raw, id)
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a patch document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patches, err := load(args[0])
			if err != nil {
				return err
			}
			for _, p := range patches {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d states, %d transitions\n", p.WorkflowID, len(p.States), len(p.Transitions))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a patch document in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patches, err := load(args[0])
			if err != nil {
				return err
			}
			out, err := workflow.MarshalPatch(patches...)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	var dryRun bool
	apply := &cobra.Command{
		Use:   "apply <file>",
		Short: "Merge a patch document into the stored workflows",
		Long: `Applies every patch of the document to its stored workflow. Missing
workflows are skipped with a warning. --dry-run prints the changes without
saving them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patches, err := load(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *strata.App) error {
				ctx := cmd.Context()
				unlock, err := app.Locker.Lock(ctx, install.LockKey, install.DefaultLockTTL)
				if err != nil {
					return err
				}
				defer func() { _ = unlock(ctx) }()

				out := cmd.OutOrStdout()
				for _, p := range patches {
					report, err := app.Patcher.Plan(ctx, app.Repo, p)
					if err != nil {
						return err
					}
					writeReport(out, report)
					if dryRun || !report.Changed() {
						continue
					}
					if _, err := app.Patcher.ApplyStored(ctx, app.Repo, p); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	apply.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes without saving")

	cmd.AddCommand(validate, show, apply)
	return cmd
}

func writeReport(w io.Writer, r workflow.Report) {
	switch {
	case !r.Applied:
		fmt.Fprintf(w, "%s: skipped\n", r.WorkflowID)
	case !r.Changed():
		fmt.Fprintf(w, "%s: up to date\n", r.WorkflowID)
	default:
		d := r.Diff
		fmt.Fprintf(w, "%s: changed\n", r.WorkflowID)
		line := func(label string, ids []string) {
			if len(ids) > 0 {
				fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(ids, ", "))
			}
		}
		line("added states", d.AddedStates)
		line("changed states", d.ChangedStates)
		line("removed states", d.RemovedStates)
		line("added transitions", d.AddedTransitions)
		line("changed transitions", d.ChangedTransitions)
		line("removed transitions", d.RemovedTransitions)
		line("added permissions", d.AddedPermissions)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %v\n", warn)
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/spf13/cobra"
)

func newWorkflowCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect and import workflow definitions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				ids, err := app.Repo.ListWorkflows(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}

	var force bool
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a workflow definition document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			def, err := workflow.ParseDefinition(raw)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *strata.App) error {
				_, err := app.Repo.GetWorkflow(cmd.Context(), def.ID)
				switch {
				case err == nil && !force:
					return fmt.Errorf("workflow %s already exists (use --force to replace it)", def.ID)
				case err != nil && !errors.Is(err, domain.ErrWorkflowNotFound):
					return err
				}
				if err := app.Repo.SaveWorkflow(cmd.Context(), def); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d states, %d transitions)\n", def.ID, len(def.States), len(def.Transitions))
				return nil
			})
		},
	}
	importCmd.Flags().BoolVar(&force, "force", false, "Replace an existing definition")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				def, err := app.Repo.GetWorkflow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out, err := workflow.MarshalDefinition(def)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}

	var (
		patchFile string
		current   string
	)
	graphCmd := &cobra.Command{
		Use:   "graph <id>",
		Short: "Export the workflow as a Mermaid diagram",
		Long: `Outputs a Mermaid diagram (graph TD) of the stored workflow. With --patch the
patch is merged in memory first and the states it adds are highlighted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				def, err := app.Repo.GetWorkflow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var overlay *graph.GraphOverlay
				if patchFile != "" || current != "" {
					overlay = &graph.GraphOverlay{CurrentState: current}
				}
				if patchFile != "" {
					raw, err := os.ReadFile(patchFile)
					if err != nil {
						return err
					}
					patches, err := workflow.ParsePatches(raw, def.ID)
					if err != nil {
						return err
					}
					for _, p := range patches {
						if p.WorkflowID != def.ID {
							continue
						}
						var report workflow.Report
						def, report = app.Patcher.Apply(def, p)
						if report.Diff != nil {
							overlay.Added = append(overlay.Added, report.Diff.AddedStates...)
						}
					}
				}
				if orphans := graph.Orphans(def); len(orphans) > 0 {
					o.logger.Warn("Transitions not used by any state", "workflow", def.ID, "transitions", orphans)
				}
				fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
				return nil
			})
		},
	}
	graphCmd.Flags().StringVar(&patchFile, "patch", "", "Patch document to preview")
	graphCmd.Flags().StringVar(&current, "state", "", "State to highlight")

	validate := &cobra.Command{
		Use:   "validate <id>",
		Short: "Check that every state of a workflow is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				def, err := app.Repo.GetWorkflow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				res := validator.ValidateWorkflow(def)
				if len(res.Orphans) > 0 {
					o.logger.Warn("Transitions not used by any state", "workflow", def.ID, "transitions", res.Orphans)
				}
				if err := res.Err(); err != nil {
					return fmt.Errorf("%s: %w", def.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d states reachable from %s)\n", def.ID, len(def.States), def.Initial)
				return nil
			})
		},
	}

	cmd.AddCommand(list, importCmd, show, graphCmd, validate)
	return cmd
}

package main

import (
	"fmt"
	"io"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/spf13/cobra"
)

func newSampleCmd(o *rootOptions) *cobra.Command {
	var actor workflow.Actor
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Register samples and move them through the sample workflow",
	}
	cmd.PersistentFlags().StringVar(&actor.ID, "actor", "cli", "Acting user")
	cmd.PersistentFlags().StringSliceVar(&actor.Roles, "roles", nil, "Roles of the acting user")

	// run opens the app and prints the sample returned by fn.
	run := func(fn func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				sample, err := fn(cmd, app, args)
				if err != nil {
					return err
				}
				writeSample(cmd.OutOrStdout(), sample)
				return nil
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <title>",
			Short: "Register a sample in the initial workflow state",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error) {
				return app.Storage.RegisterSample(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a sample",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error) {
				return app.Storage.GetSample(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "fire <id> <transition>",
			Short: "Fire a workflow transition on a sample",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error) {
				return app.Storage.FireSample(cmd.Context(), args[0], args[1], actor)
			}),
		},
		&cobra.Command{
			Use:   "store <id> <box-id>",
			Short: "Store a received sample in a free slot of a box",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error) {
				return app.Storage.StoreSample(cmd.Context(), args[0], args[1], actor)
			}),
		},
		&cobra.Command{
			Use:   "recover <id>",
			Short: "Take a stored sample out of its box",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, app *strata.App, args []string) (*domain.Sample, error) {
				return app.Storage.RecoverSample(cmd.Context(), args[0], actor)
			}),
		},
	)
	return cmd
}

func writeSample(w io.Writer, s *domain.Sample) {
	fmt.Fprintf(w, "%s\t%s\t%s", s.ID, s.Title, s.ReviewState)
	if s.Stored() {
		fmt.Fprintf(w, "\tin %s", s.ContainerID)
	}
	fmt.Fprintln(w)
}

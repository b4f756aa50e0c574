package main

import (
	"fmt"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd(o *rootOptions) *cobra.Command {
	var (
		random bool
		value  uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo facilities, containers and sample boxes",
		Long: `Populates an empty repository with a demo hierarchy. Deterministic mode
uses the lower bound of every range; --random draws each count from its range.
A repository that already has facilities is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg.Seed
			cfg.Enabled = true
			if random {
				cfg.Deterministic = false
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = value
			}
			return o.withApp(cmd, func(app *strata.App) error {
				sum, err := seed.New(cfg, seed.WithLogger(o.logger)).Run(cmd.Context(), app.Storage)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if sum.Skipped {
					fmt.Fprintln(out, "Repository already has facilities, nothing generated.")
					return nil
				}
				fmt.Fprintf(out, "Generated %d facilities, %d fridges, %d racks, %d boxes\n",
					sum.Facilities, sum.Fridges, sum.Racks, sum.Boxes)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&random, "random", false, "Draw counts at random within the configured bounds")
	cmd.Flags().Uint64Var(&value, "seed", 0, "Random seed (with --random)")
	return cmd
}

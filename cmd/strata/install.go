package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/strata"
	"github.com/spf13/cobra"
)

func newInstallCmd(o *rootOptions) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Bring the repository up to date",
		Long: `Imports the base workflows, repairs the storage index, hides legacy
navigation actions, applies the workflow patches and optionally seeds demo
data. Every step is idempotent and the sequence runs under an exclusive lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("demo") {
				o.cfg.Seed.Enabled = demo
			}
			return o.withApp(cmd, func(app *strata.App) error {
				results, err := app.Install(cmd.Context())
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, r := range results {
					status := "ok"
					if r.Err != nil {
						status = "failed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, status, r.Duration.Round(time.Microsecond))
				}
				if ferr := tw.Flush(); ferr != nil && err == nil {
					err = ferr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "Seed demo data (overrides seed.enabled)")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/export"
	"github.com/spf13/cobra"
)

func newExportCmd(o *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of the repository",
		Long: `Uploads a snapshot of items, samples, workflows and settings to S3 when
export.s3.bucket is set, or writes it below export.dir otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("dir") {
				o.cfg.Export.Dir = dir
				o.cfg.Export.S3.Bucket = ""
			}
			return o.withApp(cmd, func(app *strata.App) error {
				exp, err := app.Exporter(cmd.Context())
				if err != nil {
					return err
				}
				key, err := exp.Export(cmd.Context(), app.Repo)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Write to this directory instead of the configured destination")
	return cmd
}

func newRestoreCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot.json>",
		Short: "Load a snapshot written by export into the repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *strata.App) error {
				snap, err := app.DecodeSnapshot(raw)
				if err != nil {
					return err
				}
				if err := export.Restore(cmd.Context(), app.Repo, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d items, %d samples, %d workflows\n",
					len(snap.Items), len(snap.Samples), len(snap.Workflows))
				return nil
			})
		},
	}
}

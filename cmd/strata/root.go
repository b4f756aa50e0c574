package main

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/logging"
	"github.com/spf13/cobra"
)

// rootOptions carries the persistent flags and the state they resolve to.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    strata.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata manages laboratory sample storage",
		Long: `Strata tracks facilities, containers and sample boxes with fixed grids,
stores samples in them, and patches the sample workflow with storage states.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "Config file (default: ./strata.yaml when present)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newVersionCmd(),
		newInstallCmd(o),
		newSeedCmd(o),
		newPatchCmd(o),
		newWorkflowCmd(o),
		newFacilityCmd(o),
		newContainerCmd(o),
		newTreeCmd(o),
		newSampleCmd(o),
		newServeCmd(o),
		newMCPCmd(o),
		newExportCmd(o),
		newRestoreCmd(o),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := strata.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logging.New(level,
		logging.WithWriter(cmd.ErrOrStderr()),
		logging.WithFormat(logging.Format(cfg.LogFormat)),
	)
	return nil
}

// open builds the application for one command. The caller closes it.
func (o *rootOptions) open(cmd *cobra.Command) (*strata.App, error) {
	app, err := strata.Open(cmd.Context(), o.cfg, strata.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return app, nil
}

// withApp opens the application, runs fn and closes it.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(app *strata.App) error) error {
	app, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			o.logger.Warn("Failed to close repository", "error", err)
		}
	}()
	return fn(app)
}

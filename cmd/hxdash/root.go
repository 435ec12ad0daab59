package main

import (
	"fmt"
	"log/slog"

	"github.com/pthm/hxdash/internal/config"
	"github.com/spf13/cobra"
)

// app carries what PersistentPreRunE loads for every subcommand.
type app struct {
	cfgPath string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "hxdash",
		Short: "Serve and export model explainer dashboards",
		Long: `hxdash builds an explainer dashboard around the demo model.

In live mode the dashboard is served over HTTP and updates as controls
change. In batch mode a flat state snapshot is rendered to static HTML.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Log.Logger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $HXDASH_CONFIG or ./hxdash.yaml)")

	root.AddCommand(
		a.serveCmd(),
		a.exportCmd(),
		a.schemaCmd(),
		a.permalinkCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "hxdash version %s\n", version)
			},
		},
	)
	return root
}

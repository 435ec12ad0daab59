package main

import (
	"fmt"
	"os"

	"github.com/pthm/hxdash"
	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [state.yaml]",
		Short: "Render a state snapshot to static HTML",
		Long: `Render the dashboard for a state snapshot without a server.

Keys missing from the snapshot take the dashboard defaults. With no
argument the default state is rendered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDashboard(a.cfg, a.logger)
			if err != nil {
				return err
			}
			if err := d.SetMode(hxdash.ModeBatch); err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			state, err := snapshot(d, path)
			if err != nil {
				return err
			}

			var html string
			if a.cfg.Export.Header {
				html, err = d.ToHTML(cmd.Context(), state)
			} else {
				html, err = d.ExportFragment(cmd.Context(), state)
			}
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
				return err
			}
			if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("exported dashboard", "path", out, "keys", len(state))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) permalinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permalink",
		Short: "Encode and decode permalink tokens",
		Long: `Permalink tokens carry a full state snapshot. They are signed, or
encrypted when server.encrypted is set, with server.key. Tokens only
decode under the key that produced them.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode [state.yaml]",
			Short: "Print the token for a state snapshot",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := buildDashboard(a.cfg, a.logger)
				if err != nil {
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
				token, err := d.Permalink(state)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			},
		},
		&cobra.Command{
			Use:   "decode <token>",
			Short: "Print the state snapshot carried by a token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := buildDashboard(a.cfg, a.logger)
				if err != nil {
					return err
				}
				state, err := d.ParsePermalink(args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(map[string]any(state))
			},
		},
	)
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// schemaEntry is one state key as listed by `hxdash schema`.
type schemaEntry struct {
	Key       string `yaml:"key"`
	Component string `yaml:"component"`
	Field     string `yaml:"field"`
	Kind      string `yaml:"kind"`
	Optional  bool   `yaml:"optional,omitempty"`
}

func (a *app) schemaCmd() *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List the state keys of the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDashboard(a.cfg, a.logger)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			if defaults {
				return enc.Encode(map[string]any(d.DefaultState()))
			}
			fields := d.Fields()
			entries := make([]schemaEntry, 0, len(fields))
			for _, f := range fields {
				entries = append(entries, schemaEntry{
					Key:       f.Ch.Key(),
					Component: f.Component,
					Field:     f.Name,
					Kind:      f.Kind.String(),
					Optional:  f.Optional,
				})
			}
			return enc.Encode(entries)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print the default state snapshot instead")
	return cmd
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/components"
	"github.com/pthm/hxdash/internal/config"
	"github.com/pthm/hxdash/model"
	"gopkg.in/yaml.v3"
)

// buildDashboard assembles the demo dashboard. Components get fixed names so
// snapshots and permalinks stay valid across restarts.
func buildDashboard(cfg config.Config, logger *slog.Logger) (d *hxdash.Dashboard, err error) {
	defer func() {
		// components.Must panics on wiring mistakes.
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("build dashboard: %w", e)
		}
	}()

	var m *model.Explainer
	if cfg.Dashboard.Model == "regressor" {
		m = model.DemoRegressor(cfg.Dashboard.Seed)
	} else {
		m = model.DemoClassifier(cfg.Dashboard.Seed)
	}

	opts := []hxdash.DashboardOption{
		hxdash.WithDashboardTitle(cfg.Dashboard.Title),
		hxdash.WithLogger(logger),
		hxdash.WithBasePath(cfg.Server.BasePath),
	}
	if key := cfg.Server.KeyBytes(); key != nil {
		opts = append(opts, hxdash.WithKey(key))
	}
	if cfg.Server.Encrypted {
		opts = append(opts, hxdash.WithEncryptedPermalinks())
	}
	d = hxdash.New(m, opts...)

	records := components.Must(components.NewIndexSelector(d, components.IndexSelectorConfig{}, hxdash.WithName("records")))
	summary := components.Must(components.NewPredictionSummary(d, components.PredictionSummaryConfig{}, hxdash.WithName("summary")))
	importances := components.Must(components.NewImportances(d, components.ImportancesConfig{Depth: 5}, hxdash.WithName("importances")))
	shapSummary := components.Must(components.NewShapSummary(d, components.ShapSummaryConfig{Depth: 5}, hxdash.WithName("shap")))
	dependence := components.Must(components.NewShapDependence(d, components.ShapDependenceConfig{}, hxdash.WithName("dependence")))
	contributions := components.Must(components.NewShapContributionsTable(d, components.ShapContributionsTableConfig{Depth: 5}, hxdash.WithName("contributions")))
	interactions := components.Must(components.NewInteractionSummary(d, components.InteractionSummaryConfig{}, hxdash.WithName("interactions")))

	d.Add(records, summary, importances, shapSummary, dependence, contributions)
	d.Connect(
		hxdash.MustConnector(hxdash.NewIndexConnector(
			hxdash.Ref(records, hxdash.PropIndex),
			hxdash.Refs(
				hxdash.RefsOf(hxdash.PropIndex, summary, shapSummary, contributions),
				hxdash.Ref(dependence, hxdash.PropHighlight),
			),
			m,
		)),
		hxdash.MustConnector(components.NewShapSummaryDependenceConnector(shapSummary, dependence)),
	)

	labelled := []hxdash.Component{summary, importances, shapSummary, dependence, contributions, interactions}
	if hxdash.IsClassifier(m) {
		cutoff := components.Must(components.NewCutoffPercentile(d, components.CutoffPercentileConfig{}, hxdash.WithName("cutoff")))
		metrics := components.Must(components.NewClassificationSummary(d, components.ClassificationSummaryConfig{}, hxdash.WithName("metrics")))
		d.Add(cutoff, metrics)
		d.Connect(
			hxdash.MustConnector(hxdash.NewCutoffConnector(hxdash.Ref(cutoff, hxdash.PropCutoff), hxdash.Ref(metrics, hxdash.PropCutoff))),
			hxdash.MustConnector(hxdash.NewPosLabelConnector(
				hxdash.Ref(cutoff, hxdash.PropPosLabel),
				hxdash.RefsOf(hxdash.PropPosLabel, append(labelled, metrics)...),
			)),
		)
	} else {
		d.Add(components.Must(components.NewRegressionSummary(d, components.RegressionSummaryConfig{}, hxdash.WithName("metrics"))))
	}
	d.Add(interactions)
	return d, nil
}

// readState loads a YAML snapshot.
func readState(path string) (hxdash.StateDict, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state hxdash.StateDict
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	if state == nil {
		state = hxdash.StateDict{}
	}
	return state, nil
}

// snapshot merges the snapshot at path (if any) over the dashboard defaults
// and coerces it to the declared field kinds.
func snapshot(d *hxdash.Dashboard, path string) (hxdash.StateDict, error) {
	state := d.DefaultState()
	if path != "" {
		loaded, err := readState(path)
		if err != nil {
			return nil, err
		}
		state = state.Merge(loaded)
	}
	return d.Normalize(state)
}

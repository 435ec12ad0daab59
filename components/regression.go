package components

import (
	"context"
	"strconv"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
)

// RegressionSummaryConfig configures a RegressionSummary.
type RegressionSummaryConfig struct {
	// Round is the number of decimals shown; zero means 3.
	Round int
}

// maxRound bounds the decimals selector.
const maxRound = 6

// RegressionSummary tabulates regressor performance. For classifiers it
// renders a placeholder.
type RegressionSummary struct {
	*hxdash.Base
	cfg RegressionSummaryConfig
	out hxdash.Channel
}

// NewRegressionSummary builds a performance table.
func NewRegressionSummary(d *hxdash.Dashboard, cfg RegressionSummaryConfig, opts ...hxdash.Option) (*RegressionSummary, error) {
	if cfg.Round <= 0 || cfg.Round > maxRound {
		cfg.Round = 3
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "regression-summary",
		Title:    "Model summary",
		Subtitle: "Quantitative metrics for model performance",
		Description: "Regression performance metrics that describe how well the model " +
			"is able to predict the target.",
		Schema: hxdash.Schema{
			hxdash.Field("round", "reg-model-summary-round-", hxdash.KindInt),
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &RegressionSummary{Base: base, cfg: cfg}
	c.RequireDependencies(hxdash.DepPredictions, hxdash.DepTargets)
	c.out = c.Surface("reg-model-summary-table-", render.AttrChildren)
	return c, nil
}

// Layout renders the decimals selector and the metrics area.
func (c *RegressionSummary) Layout() *render.Node {
	return card(c.Base,
		render.Row(
			labelled(3, "Decimals", render.Select(c.ID("round"), depthOptions(maxRound), c.cfg.Round), c.Hidden(HideRound)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks rebuilds the metrics when the rounding changes.
func (c *RegressionSummary) Callbacks(rt hxdash.Runtime) error {
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{c.Ch("round")},
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

func (c *RegressionSummary) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	m := c.Model()
	if m == nil || hxdash.IsClassifier(m) {
		id := "<none>"
		if m != nil {
			id = m.ID()
		}
		return nil, &hxdash.CapabilityMissingError{Model: id, Dependency: "regression metrics"}
	}
	places := args.Int("round")
	if places <= 0 || places > maxRound {
		return nil, errNoSelection
	}
	preds, err := hxdash.ArtifactAs[*model.Predictions](ctx, c.Base, hxdash.DepPredictions, "")
	if err != nil {
		return nil, err
	}
	y, err := hxdash.ArtifactAs[[]float64](ctx, c.Base, hxdash.DepTargets, "")
	if err != nil {
		return nil, err
	}
	r := model.RegressionOf(preds, y)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', places, 64) }
	return render.TableBlock("", &render.Table{
		Columns: []string{"Metric", "Score"},
		Rows: [][]string{
			{"Root mean squared error", f(r.RMSE)},
			{"Mean absolute error", f(r.MAE)},
			{"R-squared", f(r.R2)},
			{"Records", strconv.Itoa(r.N)},
		},
	}), nil
}

// ToHTML renders the metrics for a snapshot.
func (c *RegressionSummary) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, c.Base, state, addHeader, c.content, render.DisabledInput("Decimals", args.Int("round")))
}

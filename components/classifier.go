package components

import (
	"context"
	"strconv"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
)

// CutoffPercentileConfig configures a CutoffPercentile.
type CutoffPercentileConfig struct {
	// Cutoff is the initial probability cutoff; zero means 0.5.
	Cutoff float64
	// Percentile, when set, initially derives the cutoff from that
	// percentile (0..1) of predictions.
	Percentile float64
	PosLabel   string
}

// CutoffPercentile holds a classifier cutoff. Moving the percentile slider
// sets the cutoff so that share of records falls below it. The cutoff is
// published under hxdash.PropCutoff for a cutoff connector to broadcast.
type CutoffPercentile struct {
	*hxdash.Base
	cfg      CutoffPercentileConfig
	selector *PosLabelSelector
}

// NewCutoffPercentile builds a cutoff control.
func NewCutoffPercentile(d *hxdash.Dashboard, cfg CutoffPercentileConfig, opts ...hxdash.Option) (*CutoffPercentile, error) {
	if cfg.Cutoff == 0 {
		cfg.Cutoff = 0.5
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:  "cutoff-percentile",
		Title: "Global cutoff",
		Description: "Select a model cutoff such that all predicted probabilities higher than " +
			"the cutoff are labelled positive, or set it through the percentile of records below it.",
		Schema: hxdash.Schema{
			hxdash.Field("cutoff", "cutoffconnector-cutoff-", hxdash.KindFloat),
			hxdash.Field("percentile", "cutoffconnector-percentile-", hxdash.KindFloat).Opt(),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &CutoffPercentile{Base: base, cfg: cfg}
	if _, c.selector, err = selectors(base.Dashboard(), c, "", "", cfg.PosLabel); err != nil {
		return nil, err
	}
	c.Compose(c.selector)
	c.RequireDependencies(hxdash.DepPredictions)
	c.Publish(hxdash.PropCutoff, c.Ch("cutoff"))
	return c, nil
}

// Layout renders both sliders and the label selector.
func (c *CutoffPercentile) Layout() *render.Node {
	var pct any
	if c.cfg.Percentile > 0 {
		pct = c.cfg.Percentile
	}
	return card(c.Base,
		render.Row(
			labelled(5, "Cutoff prediction probability", render.Slider(c.ID("cutoff"), 0.01, 0.99, 0.01, c.cfg.Cutoff), c.Hidden(HideCutoff)),
			labelled(5, "Cutoff percentile of records", render.Slider(c.ID("percentile"), 0.01, 0.99, 0.01, pct), c.Hidden(HidePercentile)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
	)
}

// Callbacks sets the cutoff from the percentile.
func (c *CutoffPercentile) Callbacks(rt hxdash.Runtime) error {
	pct, cutoff := c.Ch("percentile"), c.Ch("cutoff")
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{pct, c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{cutoff},
		Func: func(cc *hxdash.CallbackContext, in hxdash.Values) hxdash.Result {
			if in.IsNone(pct) {
				return hxdash.NoUpdate()
			}
			v, err := c.CutoffAt(cc.Context(), in.Float(pct), in.String(c.Ch("pos_label")))
			if err != nil {
				return hxdash.Fail(err)
			}
			return hxdash.Update().Set(cutoff, v)
		},
	})
}

// CutoffAt returns the cutoff below which the given share of predictions
// for label falls, rounded to two decimals.
func (c *CutoffPercentile) CutoffAt(ctx context.Context, percentile float64, label string) (float64, error) {
	preds, err := hxdash.ArtifactAs[*model.Predictions](ctx, c.Base, hxdash.DepPredictions, c.LabelOr(label))
	if err != nil {
		return 0, err
	}
	return round(preds.CutoffAtPercentile(percentile), 2), nil
}

// ToHTML renders the cutoff and percentile as read-only inputs.
func (c *CutoffPercentile) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	inputs := []*render.Node{render.DisabledInput("Cutoff", args.Float("cutoff"))}
	if args.Has("percentile") {
		inputs = append(inputs, render.DisabledInput("Percentile", args.Float("percentile")))
	}
	return export(ctx, c.Base, state, addHeader, nil, inputs...)
}

// ClassificationSummaryConfig configures a ClassificationSummary.
type ClassificationSummaryConfig struct {
	Cutoff   float64
	PosLabel string
}

// ClassificationSummary tabulates classifier performance at a cutoff. For
// regressors it renders a placeholder.
type ClassificationSummary struct {
	*hxdash.Base
	cfg      ClassificationSummaryConfig
	selector *PosLabelSelector
	out      hxdash.Channel
}

// NewClassificationSummary builds a performance table.
func NewClassificationSummary(d *hxdash.Dashboard, cfg ClassificationSummaryConfig, opts ...hxdash.Option) (*ClassificationSummary, error) {
	if cfg.Cutoff == 0 {
		cfg.Cutoff = 0.5
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "classification-summary",
		Title:    "Model performance metrics",
		Subtitle: "How well does the model classify at this cutoff?",
		Description: "Accuracy, precision, recall and F1 of the model when every prediction " +
			"at or above the cutoff is labelled positive.",
		Schema: hxdash.Schema{
			hxdash.Field("cutoff", "clas-model-summary-cutoff-", hxdash.KindFloat),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &ClassificationSummary{Base: base, cfg: cfg}
	if _, c.selector, err = selectors(base.Dashboard(), c, "", "", cfg.PosLabel); err != nil {
		return nil, err
	}
	c.Compose(c.selector)
	c.RequireDependencies(hxdash.DepPredictions, hxdash.DepTargets)
	c.Publish(hxdash.PropCutoff, c.Ch("cutoff"))
	c.out = c.Surface("clas-model-summary-table-", render.AttrChildren)
	return c, nil
}

// Layout renders the cutoff slider and the metrics area.
func (c *ClassificationSummary) Layout() *render.Node {
	return card(c.Base,
		render.Row(
			labelled(8, "Cutoff prediction probability", render.Slider(c.ID("cutoff"), 0.01, 0.99, 0.01, c.cfg.Cutoff), c.Hidden(HideCutoff)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks rebuilds the metrics when cutoff or label changes.
func (c *ClassificationSummary) Callbacks(rt hxdash.Runtime) error {
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{c.Ch("cutoff"), c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

func (c *ClassificationSummary) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	m := c.Model()
	if !hxdash.IsClassifier(m) {
		id := "<none>"
		if m != nil {
			id = m.ID()
		}
		return nil, &hxdash.CapabilityMissingError{Model: id, Dependency: "classification metrics"}
	}
	label := c.LabelOr(args.String("pos_label"))
	preds, err := hxdash.ArtifactAs[*model.Predictions](ctx, c.Base, hxdash.DepPredictions, label)
	if err != nil {
		return nil, err
	}
	y, err := hxdash.ArtifactAs[[]float64](ctx, c.Base, hxdash.DepTargets, label)
	if err != nil {
		return nil, err
	}
	cm := model.ConfusionAt(preds, y, args.Float("cutoff"))
	return render.TableBlock("", &render.Table{
		Columns: []string{"Metric", "Score"},
		Rows: [][]string{
			{"Accuracy", fmtFloat(cm.Accuracy())},
			{"Precision", fmtFloat(cm.Precision())},
			{"Recall", fmtFloat(cm.Recall())},
			{"F1", fmtFloat(cm.F1())},
			{"True positives", strconv.Itoa(cm.TP)},
			{"False positives", strconv.Itoa(cm.FP)},
			{"True negatives", strconv.Itoa(cm.TN)},
			{"False negatives", strconv.Itoa(cm.FN)},
		},
	}), nil
}

// ToHTML renders the metrics for a snapshot.
func (c *ClassificationSummary) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, c.Base, state, addHeader, c.content, render.DisabledInput("Cutoff", args.Float("cutoff")))
}

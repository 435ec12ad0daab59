package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
)

// PredictionSummaryConfig configures a PredictionSummary.
type PredictionSummaryConfig struct {
	Index    string
	PosLabel string
}

// PredictionSummary shows the prediction, its percentile and the observed
// outcome of the selected record.
type PredictionSummary struct {
	*hxdash.Base
	index    *IndexSelector
	selector *PosLabelSelector
	out      hxdash.Channel
}

// NewPredictionSummary builds a prediction summary.
func NewPredictionSummary(d *hxdash.Dashboard, cfg PredictionSummaryConfig, opts ...hxdash.Option) (*PredictionSummary, error) {
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "prediction-summary",
		Title:    "Prediction",
		Subtitle: "What did the model predict for this record?",
		Description: "Shows the predicted outcome for the selected record, where that prediction " +
			"ranks among all records, and what was actually observed.",
		Schema: hxdash.Schema{
			hxdash.Field("index", "modelprediction-index-", hxdash.KindString),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &PredictionSummary{Base: base}
	c.index, c.selector, err = selectors(base.Dashboard(), c, "modelprediction-index-", cfg.Index, cfg.PosLabel)
	if err != nil {
		return nil, err
	}
	c.Compose(c.index, c.selector)
	c.RequireDependencies(hxdash.DepPredictions, hxdash.DepPercentiles, hxdash.DepTargets)
	c.out = c.Surface("modelprediction-", render.AttrChildren)
	return c, nil
}

// Layout renders the selectors and the summary area.
func (c *PredictionSummary) Layout() *render.Node {
	return card(c.Base,
		render.Row(
			labelled(6, "Index", c.index.Layout(), c.Hidden(HideIndex)),
			render.Hideable(render.Col(3, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks recomputes the summary when the record or label changes.
func (c *PredictionSummary) Callbacks(rt hxdash.Runtime) error {
	triggers := []hxdash.Channel{c.Ch("index"), c.Ch("pos_label")}
	return c.Register(rt, hxdash.Handler{
		Triggers: triggers,
		Context:  contextOf(c.Base, triggers...),
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

func (c *PredictionSummary) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	idx, err := validIndex(c.Model(), args)
	if err != nil {
		return nil, err
	}
	label := c.LabelOr(args.String("pos_label"))
	preds, err := hxdash.ArtifactAs[*model.Predictions](ctx, c.Base, hxdash.DepPredictions, label)
	if err != nil {
		return nil, err
	}
	pct, err := hxdash.ArtifactAs[*model.Percentiles](ctx, c.Base, hxdash.DepPercentiles, label)
	if err != nil {
		return nil, err
	}
	p, _ := preds.Of(idx)
	rank, _ := pct.Of(idx)

	var md strings.Builder
	fmt.Fprintf(&md, "##### Index: %s\n\n", idx)
	classifier := hxdash.IsClassifier(c.Model())
	if classifier {
		fmt.Fprintf(&md, "Predicted probability of *%s*: **%s**\n\n", label, fmtPct(p))
	} else {
		fmt.Fprintf(&md, "Predicted value: **%s**\n\n", fmtFloat(p))
	}
	fmt.Fprintf(&md, "Percentile: **%.1f**\n\n", rank)

	// Observed outcomes are optional; models without targets just omit them.
	y, err := hxdash.ArtifactAs[[]float64](ctx, c.Base, hxdash.DepTargets, label)
	if err == nil {
		i := indexPos(c.Model(), idx)
		switch {
		case i < 0 || i >= len(y):
		case classifier && y[i] >= 0.5:
			fmt.Fprintf(&md, "Observed: **%s**\n", label)
		case classifier:
			fmt.Fprintf(&md, "Observed: **not %s**\n", label)
		default:
			fmt.Fprintf(&md, "Observed value: **%s**\n", fmtFloat(y[i]))
		}
	} else if !hxdash.IsCapabilityMissing(err) {
		return nil, err
	}
	return render.MarkdownBlock("", md.String()), nil
}

// ToHTML renders the summary for a snapshot.
func (c *PredictionSummary) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, c.Base, state, addHeader, c.content,
		render.DisabledInput("Index", args.String("index")))
}

func indexPos(m hxdash.Model, idx string) int {
	for i, v := range m.Indexes() {
		if v == idx {
			return i
		}
	}
	return -1
}

// ImportancesConfig configures an Importances component.
type ImportancesConfig struct {
	// Depth is the number of features shown; zero shows all.
	Depth    int
	PosLabel string
}

// Importances ranks features by mean absolute SHAP value.
type Importances struct {
	*hxdash.Base
	cfg      ImportancesConfig
	selector *PosLabelSelector
	out      hxdash.Channel
}

// NewImportances builds a feature importance plot.
func NewImportances(d *hxdash.Dashboard, cfg ImportancesConfig, opts ...hxdash.Option) (*Importances, error) {
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "importances",
		Title:    "Feature Importances",
		Subtitle: "Which features had the biggest impact?",
		Description: "Features are ranked by the mean absolute SHAP value: on average, how much " +
			"did knowing this feature move the prediction away from the population average?",
		Schema: hxdash.Schema{
			hxdash.Field("depth", "importances-depth-", hxdash.KindInt),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &Importances{Base: base, cfg: cfg}
	if _, c.selector, err = selectors(base.Dashboard(), c, "", "", cfg.PosLabel); err != nil {
		return nil, err
	}
	c.Compose(c.selector)
	c.RequireDependencies(hxdash.DepImportances)
	c.out = c.Surface("importances-graph-", render.AttrChildren)
	return c, nil
}

func (c *Importances) features() int {
	if c.Model() == nil {
		return 0
	}
	return len(c.Model().Columns())
}

// Layout renders the depth selector and the graph area.
func (c *Importances) Layout() *render.Node {
	n := c.features()
	return card(c.Base,
		render.Row(
			labelled(3, "Depth", render.Select(c.ID("depth"), depthOptions(n), clampDepth(c.cfg.Depth, n)), c.Hidden(HideDepth)),
			render.Hideable(render.Col(3, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks redraws the plot when depth or label changes.
func (c *Importances) Callbacks(rt hxdash.Runtime) error {
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{c.Ch("depth"), c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

func (c *Importances) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	im, err := hxdash.ArtifactAs[*model.Importances](ctx, c.Base, hxdash.DepImportances, c.LabelOr(args.String("pos_label")))
	if err != nil {
		return nil, err
	}
	top := im.Top(clampDepth(args.Int("depth"), len(im.Features)))
	fig := &render.Figure{Title: "Mean |SHAP value|"}
	for i, f := range top.Features {
		fig.Bars = append(fig.Bars, render.Bar{Label: f, Value: top.Values[i]})
	}
	return render.Graph("", fig), nil
}

// ToHTML renders the plot for a snapshot.
func (c *Importances) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	return export(ctx, c.Base, state, addHeader, c.content)
}

// FeatureInputConfig configures a FeatureInput.
type FeatureInputConfig struct {
	Index string
}

// FeatureInput lets the user edit the feature values of a hypothetical
// record. Selecting an index fills the inputs with that record's values.
// Components that explain the inputs compose it and usually exclude its
// callbacks, leaving the inputs entirely user driven.
type FeatureInput struct {
	*hxdash.Base
	index   *IndexSelector
	columns []hxdash.Column
}

// NewFeatureInput builds one input per model feature.
func NewFeatureInput(d *hxdash.Dashboard, cfg FeatureInputConfig, opts ...hxdash.Option) (*FeatureInput, error) {
	if d == nil {
		d = hxdash.New(nil)
	}
	var cols []hxdash.Column
	if m := d.Model(); m != nil {
		cols = m.Columns()
	}
	schema := hxdash.Schema{hxdash.Field("index", "feature-input-index-", hxdash.KindString)}
	for _, col := range cols {
		kind := hxdash.KindFloat
		if col.Categorical {
			kind = hxdash.KindString
		}
		schema = append(schema, hxdash.Field(col.Name, "feature-input-"+slug(col.Name)+"-input-", kind).Opt())
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "feature-input",
		Title:    "Feature Input",
		Subtitle: "Adjust the feature values to change the prediction",
		Description: "Edit the feature values of a hypothetical record. Selecting an index " +
			"first fills in the values of that record.",
		Schema: schema,
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &FeatureInput{Base: base, columns: cols}
	c.index, err = NewIndexSelector(d, IndexSelectorConfig{Prefix: "feature-input-index-", Index: cfg.Index}, hxdash.NestedIn(c))
	if err != nil {
		return nil, err
	}
	c.Compose(c.index)
	c.RequireDependencies(hxdash.DepFeatures)
	return c, nil
}

// Columns returns the features the component has inputs for.
func (c *FeatureInput) Columns() []hxdash.Column { return c.columns }

// Inputs returns the channels of the feature inputs, in column order.
func (c *FeatureInput) Inputs() []hxdash.Channel {
	out := make([]hxdash.Channel, len(c.columns))
	for i, col := range c.columns {
		out[i] = c.Ch(col.Name)
	}
	return out
}

// Row reads the feature values out of a snapshot. Empty inputs are left
// out so the model can fill them.
func (c *FeatureInput) Row(state hxdash.StateDict) (map[string]any, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	row := make(map[string]any, len(c.columns))
	for _, col := range c.columns {
		if args.Has(col.Name) {
			row[col.Name] = args[col.Name]
		}
	}
	return row, nil
}

// Layout renders the index selector and one input per feature.
func (c *FeatureInput) Layout() *render.Node {
	var inputs []*render.Node
	for _, col := range c.columns {
		id := c.ID(col.Name)
		var ctl *render.Node
		if col.Categorical {
			ctl = render.Select(id, render.Options(col.Categories...), col.FillValue)
		} else {
			ctl = render.Input(id, col.FillValue)
		}
		inputs = append(inputs, render.Col(3, render.Label(col.Name), ctl))
	}
	return card(c.Base,
		render.Row(labelled(6, "Index", c.index.Layout(), c.Hidden(HideIndex))),
		render.Row(inputs...),
	)
}

// Callbacks fills the inputs from the selected record.
func (c *FeatureInput) Callbacks(rt hxdash.Runtime) error {
	if len(c.columns) == 0 {
		return nil
	}
	return c.Register(rt, hxdash.Handler{
		Triggers:    []hxdash.Channel{c.Ch("index")},
		Outputs:     c.Inputs(),
		Func:        c.fill,
		SkipInitial: true,
	})
}

func (c *FeatureInput) fill(cc *hxdash.CallbackContext, in hxdash.Values) hxdash.Result {
	idx := in.String(c.Ch("index"))
	m := c.Model()
	if idx == "" || m == nil || !m.IndexExists(idx) {
		return hxdash.NoUpdate()
	}
	feats, err := hxdash.ArtifactAs[*model.Features](cc.Context(), c.Base, hxdash.DepFeatures, "")
	if err != nil {
		return hxdash.Fail(err)
	}
	x, ok := feats.Row(idx)
	if !ok {
		return hxdash.NoUpdate()
	}
	res := hxdash.Update()
	for j, col := range c.columns {
		var v any = x[j]
		if col.Categorical {
			if k := int(x[j]); k >= 0 && k < len(col.Categories) {
				v = col.Categories[k]
			}
		}
		res = res.Set(c.Ch(col.Name), v)
	}
	return res
}

// ToHTML renders the feature values as read-only inputs.
func (c *FeatureInput) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	inputs := make([]*render.Node, 0, len(c.columns))
	for _, col := range c.columns {
		inputs = append(inputs, render.DisabledInput(col.Name, args[col.Name]))
	}
	return export(ctx, c.Base, state, addHeader, nil, inputs...)
}

// slug makes a feature name safe for use in an element id.
func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

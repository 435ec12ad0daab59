package components

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
)

// Summary types of a ShapSummary.
const (
	SummaryAggregate = "aggregate"
	SummaryDetailed  = "detailed"
)

// ShapSummaryConfig configures a ShapSummary.
type ShapSummaryConfig struct {
	// SummaryType is SummaryAggregate (the default) or SummaryDetailed.
	SummaryType string
	Depth       int
	Index       string
	PosLabel    string
}

// ShapSummary ranks features by SHAP value, either aggregated over all
// records or for the selected record. Its index selector is only shown for
// the detailed view. Choosing a feature below the plot publishes it under
// hxdash.PropClick.
type ShapSummary struct {
	*hxdash.Base
	cfg      ShapSummaryConfig
	index    *IndexSelector
	selector *PosLabelSelector
	out      hxdash.Channel
	indexCol hxdash.Channel
	click    hxdash.Channel
	features hxdash.Channel
}

// NewShapSummary builds a SHAP summary.
func NewShapSummary(d *hxdash.Dashboard, cfg ShapSummaryConfig, opts ...hxdash.Option) (*ShapSummary, error) {
	if cfg.SummaryType == "" {
		cfg.SummaryType = SummaryAggregate
	}
	if cfg.SummaryType != SummaryAggregate && cfg.SummaryType != SummaryDetailed {
		return nil, fmt.Errorf("components: unknown summary type %q: %w", cfg.SummaryType, hxdash.ErrConfiguration)
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "shap-summary",
		Title:    "Shap Summary",
		Subtitle: "Ordering features by shap value",
		Description: "The aggregate view shows the mean absolute SHAP value per feature. The " +
			"detailed view shows how each feature moved the prediction of the selected record.",
		Schema: hxdash.Schema{
			hxdash.Field("summary_type", "shap-summary-type-", hxdash.KindString),
			hxdash.Field("depth", "shap-summary-depth-", hxdash.KindInt),
			hxdash.Field("index", "shap-summary-index-", hxdash.KindString),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &ShapSummary{Base: base, cfg: cfg}
	c.index, c.selector, err = selectors(base.Dashboard(), c, "shap-summary-index-", cfg.Index, cfg.PosLabel)
	if err != nil {
		return nil, err
	}
	c.Compose(c.index, c.selector)
	c.RequireDependencies(hxdash.DepShapValues, hxdash.DepImportances)
	c.out = c.Surface("shap-summary-graph-", render.AttrChildren)
	c.indexCol = c.Surface("shap-summary-index-col-", render.AttrStyle)
	c.click = c.Surface("shap-summary-click-", render.AttrValue)
	c.features = c.Surface("shap-summary-click-", render.AttrOptions)
	c.Publish(hxdash.PropClick, c.click)
	return c, nil
}

func (c *ShapSummary) columns() []string {
	if c.Model() == nil {
		return nil
	}
	return hxdash.ColumnNames(c.Model())
}

// Layout renders the type, depth, index and label selectors, the plot and
// the feature picker.
func (c *ShapSummary) Layout() *render.Node {
	cols := c.columns()
	indexCol := render.Col(3, render.Label("Index"), c.index.Layout())
	indexCol.ID = c.indexCol.ID
	indexCol.Hidden = c.cfg.SummaryType != SummaryDetailed
	return card(c.Base,
		render.Row(
			labelled(3, "Summary type", render.Select(c.ID("summary_type"),
				[]render.Option{{Label: "Aggregate", Value: SummaryAggregate}, {Label: "Detailed", Value: SummaryDetailed}},
				c.cfg.SummaryType), c.Hidden(HideType)),
			labelled(2, "Depth", render.Select(c.ID("depth"), depthOptions(len(cols)), clampDepth(c.cfg.Depth, len(cols))), c.Hidden(HideDepth)),
			render.Hideable(indexCol, c.Hidden(HideIndex)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
		render.Row(render.Col(0, render.Label("Inspect feature"), render.Radio(c.click.ID, render.Options(cols...), nil))),
	)
}

// Callbacks redraws the plot on any selector change. The index column is
// only shown or hidden when the summary type itself changed, so depth or
// index changes leave its visibility as the user last saw it.
func (c *ShapSummary) Callbacks(rt hxdash.Runtime) error {
	typ := c.Ch("summary_type")
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{typ, c.Ch("depth"), c.Ch("index"), c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{c.out, c.features, c.indexCol},
		Func: func(cc *hxdash.CallbackContext, in hxdash.Values) hxdash.Result {
			state := in.State()
			n, names, err := c.plot(cc.Context(), state)
			switch {
			case errors.Is(err, errNoSelection):
				return skip(err)
			case err != nil:
				return degrade(c.Base, c.out, err)
			}
			res := hxdash.Update().Set(c.out, n).Set(c.features, render.Options(names...))
			if cc.IsInitial() || cc.TriggeredBy(typ) {
				style := render.Hidden
				if in.String(typ) == SummaryDetailed {
					style = render.Shown
				}
				res = res.Set(c.indexCol, style)
			}
			return res
		},
	})
}

// plot builds the summary figure and returns the features it shows.
func (c *ShapSummary) plot(ctx context.Context, state hxdash.StateDict) (*render.Node, []string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, nil, err
	}
	typ := args.String("summary_type")
	if typ != SummaryAggregate && typ != SummaryDetailed {
		return nil, nil, errNoSelection
	}
	idx := args.String("index")
	if err := checkIndex(c.Model(), idx); err != nil {
		return nil, nil, err
	}
	label := c.LabelOr(args.String("pos_label"))
	im, err := hxdash.ArtifactAs[*model.Importances](ctx, c.Base, hxdash.DepImportances, label)
	if err != nil {
		return nil, nil, err
	}
	top := im.Top(clampDepth(args.Int("depth"), len(im.Features)))

	fig := &render.Figure{Title: "Mean |SHAP value|"}
	if typ == SummaryAggregate || idx == "" {
		if typ == SummaryDetailed {
			fig.Title = "Select a record to see its SHAP values"
		}
		for i, f := range top.Features {
			fig.Bars = append(fig.Bars, render.Bar{Label: f, Value: top.Values[i]})
		}
		return render.Graph("", fig), top.Features, nil
	}

	shap, err := hxdash.ArtifactAs[*model.ShapValues](ctx, c.Base, hxdash.DepShapValues, label)
	if err != nil {
		return nil, nil, err
	}
	row, _ := shap.Row(idx)
	fig = &render.Figure{Title: "SHAP values for index " + idx, Signed: true, PositiveIsGood: true}
	for _, f := range top.Features {
		j := columnIndex(shap.Columns, f)
		fig.Bars = append(fig.Bars, render.Bar{Label: f, Value: row[j]})
	}
	return render.Graph("", fig), top.Features, nil
}

func (c *ShapSummary) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	n, _, err := c.plot(ctx, state)
	return n, err
}

// ToHTML renders the summary for a snapshot.
func (c *ShapSummary) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	inputs := []*render.Node{render.DisabledInput("Summary type", args.String("summary_type"))}
	if args.String("summary_type") == SummaryDetailed {
		inputs = append(inputs, render.DisabledInput("Index", args.String("index")))
	}
	return export(ctx, c.Base, state, addHeader, c.content, inputs...)
}

// ShapDependenceConfig configures a ShapDependence.
type ShapDependenceConfig struct {
	// Col is the initially shown feature; empty picks the first column.
	Col      string
	Index    string
	PosLabel string
}

// ShapDependence shows how a feature's SHAP value varies with its value.
// Records are grouped by category, or by value range for numeric features,
// and each group's mean SHAP value is drawn. The group of the selected
// record is highlighted. The feature is published under hxdash.PropColumn
// and the record under hxdash.PropIndex and hxdash.PropHighlight.
type ShapDependence struct {
	*hxdash.Base
	cfg      ShapDependenceConfig
	index    *IndexSelector
	selector *PosLabelSelector
	out      hxdash.Channel
}

// dependenceBins is the number of value ranges numeric features are split
// into.
const dependenceBins = 8

// NewShapDependence builds a SHAP dependence plot.
func NewShapDependence(d *hxdash.Dashboard, cfg ShapDependenceConfig, opts ...hxdash.Option) (*ShapDependence, error) {
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "shap-dependence",
		Title:    "Shap Dependence",
		Subtitle: "Relationship between feature value and SHAP value",
		Description: "Shows how the SHAP value of a feature changes with the value of that " +
			"feature. The group containing the selected record is highlighted.",
		Schema: hxdash.Schema{
			hxdash.Field("col", "shap-dependence-col-", hxdash.KindString),
			hxdash.Field("index", "shap-dependence-index-", hxdash.KindString),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &ShapDependence{Base: base, cfg: cfg}
	if cfg.Col == "" && base.Model() != nil {
		if names := hxdash.ColumnNames(base.Model()); len(names) > 0 {
			c.cfg.Col = names[0]
		}
	}
	c.index, c.selector, err = selectors(base.Dashboard(), c, "shap-dependence-index-", cfg.Index, cfg.PosLabel)
	if err != nil {
		return nil, err
	}
	c.Compose(c.index, c.selector)
	c.RequireDependencies(hxdash.DepShapValues, hxdash.DepFeatures)
	c.out = c.Surface("shap-dependence-graph-", render.AttrChildren)
	c.Publish(hxdash.PropColumn, c.Ch("col"))
	c.Publish(hxdash.PropHighlight, c.Ch("index"))
	return c, nil
}

// Layout renders the feature, index and label selectors and the plot.
func (c *ShapDependence) Layout() *render.Node {
	var cols []string
	if c.Model() != nil {
		cols = hxdash.ColumnNames(c.Model())
	}
	return card(c.Base,
		render.Row(
			labelled(4, "Feature", render.Select(c.ID("col"), render.Options(cols...), c.cfg.Col), false),
			labelled(4, "Highlight index", c.index.Layout(), c.Hidden(HideIndex)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks redraws the plot when the feature, record or label changes.
func (c *ShapDependence) Callbacks(rt hxdash.Runtime) error {
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{c.Ch("col"), c.Ch("index"), c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

func (c *ShapDependence) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	m := c.Model()
	colName := args.String("col")
	col, ok := hxdash.Column{}, false
	if m != nil {
		col, ok = hxdash.ColumnByName(m, colName)
	}
	if !ok {
		return nil, errNoSelection
	}
	idx := args.String("index")
	if err := checkIndex(m, idx); err != nil {
		return nil, err
	}
	label := c.LabelOr(args.String("pos_label"))
	shap, err := hxdash.ArtifactAs[*model.ShapValues](ctx, c.Base, hxdash.DepShapValues, label)
	if err != nil {
		return nil, err
	}
	feats, err := hxdash.ArtifactAs[*model.Features](ctx, c.Base, hxdash.DepFeatures, "")
	if err != nil {
		return nil, err
	}
	xs, _ := feats.Column(colName)
	ys, _ := shap.Column(colName)

	groups := groupValues(col, xs)
	sums := make([]float64, len(groups.labels))
	counts := make([]int, len(groups.labels))
	for i, x := range xs {
		g := groups.of(x)
		sums[g] += ys[i]
		counts[g]++
	}
	fig := &render.Figure{Title: "Mean SHAP value by " + colName, Signed: true, PositiveIsGood: true}
	for g, l := range groups.labels {
		if counts[g] == 0 {
			continue
		}
		fig.Bars = append(fig.Bars, render.Bar{Label: l, Value: sums[g] / float64(counts[g])})
	}
	if idx != "" {
		if x, ok := feats.Row(idx); ok {
			fig.Highlight = groups.labels[groups.of(x[columnIndex(feats.Columns, colName)])]
		}
	}
	return render.Graph("", fig), nil
}

// ToHTML renders the plot for a snapshot.
func (c *ShapDependence) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, c.Base, state, addHeader, c.content,
		render.DisabledInput("Feature", args.String("col")),
		render.DisabledInput("Highlight index", args.String("index")))
}

// grouping assigns feature values to labelled groups: one per category, or
// equal-width ranges for numeric values.
type grouping struct {
	labels []string
	edges  []float64
	cats   bool
}

func groupValues(col hxdash.Column, xs []float64) grouping {
	if col.Categorical {
		return grouping{labels: col.Categories, cats: true}
	}
	uniq := uniqueSorted(xs)
	if len(uniq) <= dependenceBins {
		g := grouping{edges: uniq}
		for _, v := range uniq {
			g.labels = append(g.labels, fmtShort(v))
		}
		return g
	}
	lo, hi := uniq[0], uniq[len(uniq)-1]
	step := (hi - lo) / dependenceBins
	g := grouping{}
	for i := 0; i < dependenceBins; i++ {
		a := lo + float64(i)*step
		g.edges = append(g.edges, a)
		g.labels = append(g.labels, fmtShort(a)+" to "+fmtShort(a+step))
	}
	return g
}

func (g grouping) of(x float64) int {
	if g.cats {
		k := int(x)
		if k < 0 || k >= len(g.labels) {
			return len(g.labels) - 1
		}
		return k
	}
	i := sort.SearchFloat64s(g.edges, x)
	if i < len(g.edges) && g.edges[i] == x {
		return i
	}
	return max(i-1, 0)
}

func uniqueSorted(xs []float64) []float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func fmtShort(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}

func columnIndex(cols []string, name string) int {
	for j, c := range cols {
		if c == name {
			return j
		}
	}
	return -1
}

// NewShapSummaryDependenceConnector shows the feature picked under a
// summary plot in a dependence plot.
func NewShapSummaryDependenceConnector(summary *ShapSummary, dependence *ShapDependence) (*hxdash.Connector, error) {
	return hxdash.NewConnector(
		hxdash.Ref(summary, hxdash.PropClick),
		hxdash.Ref(dependence, hxdash.PropColumn),
		hxdash.WithKind("shap-summary-dependence-connector"),
		hxdash.WithAccept(func(v any) bool {
			s, ok := v.(string)
			return ok && s != ""
		}),
	)
}

// InteractionSummaryConfig configures an InteractionSummary.
type InteractionSummaryConfig struct {
	Col      string
	Depth    int
	PosLabel string
}

// InteractionSummary ranks the interactions of one feature with all others.
// It needs SHAP interaction values; for models that cannot compute them it
// renders an explanatory placeholder.
type InteractionSummary struct {
	*hxdash.Base
	cfg      InteractionSummaryConfig
	selector *PosLabelSelector
	out      hxdash.Channel
}

// NewInteractionSummary builds an interaction summary.
func NewInteractionSummary(d *hxdash.Dashboard, cfg InteractionSummaryConfig, opts ...hxdash.Option) (*InteractionSummary, error) {
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "interaction-summary",
		Title:    "Interactions Summary",
		Subtitle: "Ordering features by shap interaction value",
		Description: "Shows which features interact most with the selected feature, by mean " +
			"absolute SHAP interaction value.",
		Schema: hxdash.Schema{
			hxdash.Field("col", "interaction-summary-col-", hxdash.KindString),
			hxdash.Field("depth", "interaction-summary-depth-", hxdash.KindInt),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &InteractionSummary{Base: base, cfg: cfg}
	if cfg.Col == "" && base.Model() != nil {
		if names := hxdash.ColumnNames(base.Model()); len(names) > 0 {
			c.cfg.Col = names[0]
		}
	}
	if _, c.selector, err = selectors(base.Dashboard(), c, "", "", cfg.PosLabel); err != nil {
		return nil, err
	}
	c.Compose(c.selector)
	c.RequireDependencies(hxdash.DepInteractionValues)
	c.out = c.Surface("interaction-summary-graph-", render.AttrChildren)
	c.Publish(hxdash.PropColumn, c.Ch("col"))
	return c, nil
}

// Layout renders the feature and depth selectors and the plot area.
func (c *InteractionSummary) Layout() *render.Node {
	var cols []string
	if c.Model() != nil {
		cols = hxdash.ColumnNames(c.Model())
	}
	return card(c.Base,
		render.Row(
			labelled(4, "Feature", render.Select(c.ID("col"), render.Options(cols...), c.cfg.Col), false),
			labelled(2, "Depth", render.Select(c.ID("depth"), depthOptions(max(len(cols)-1, 0)), clampDepth(c.cfg.Depth, max(len(cols)-1, 0))), c.Hidden(HideDepth)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks redraws the plot when any selector changes.
func (c *InteractionSummary) Callbacks(rt hxdash.Runtime) error {
	return c.Register(rt, hxdash.Handler{
		Triggers: []hxdash.Channel{c.Ch("col"), c.Ch("depth"), c.Ch("pos_label")},
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

// content expects interaction values as a [record][feature][feature] table
// in column order.
func (c *InteractionSummary) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	inter, err := hxdash.ArtifactAs[[][][]float64](ctx, c.Base, hxdash.DepInteractionValues, c.LabelOr(args.String("pos_label")))
	if err != nil {
		return nil, err
	}
	cols := hxdash.ColumnNames(c.Model())
	j := columnIndex(cols, args.String("col"))
	if j < 0 {
		return nil, errNoSelection
	}
	means := make([]float64, len(cols))
	for _, rec := range inter {
		for k := range cols {
			means[k] += math.Abs(rec[j][k])
		}
	}
	var contrib []model.Contribution
	for k, name := range cols {
		if k == j || len(inter) == 0 {
			continue
		}
		contrib = append(contrib, model.Contribution{Feature: name, Contribution: means[k] / float64(len(inter))})
	}
	sort.SliceStable(contrib, func(a, b int) bool { return contrib[a].Contribution > contrib[b].Contribution })
	if d := clampDepth(args.Int("depth"), len(contrib)); d < len(contrib) {
		contrib = contrib[:d]
	}
	fig := &render.Figure{Title: "Interactions with " + cols[j]}
	for _, ct := range contrib {
		fig.Bars = append(fig.Bars, render.Bar{Label: ct.Feature, Value: ct.Contribution})
	}
	return render.Graph("", fig), nil
}

// ToHTML renders the summary for a snapshot.
func (c *InteractionSummary) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, c.Base, state, addHeader, c.content, render.DisabledInput("Feature", args.String("col")))
}

package components

import (
	"context"
	"errors"
	"sort"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
)

// Orderings of a ShapContributionsTable.
const (
	SortAbs       = "abs"
	SortHighToLow = "high-to-low"
	SortLowToHigh = "low-to-high"
)

// ShapContributionsTableConfig configures a ShapContributionsTable.
type ShapContributionsTableConfig struct {
	Index string
	// Depth is the number of features listed individually; the rest are
	// summed into one row. Zero lists all.
	Depth    int
	Sort     string
	PosLabel string
	// FeatureInput, when set, supplies the explained row instead of the
	// index selector. Its own callbacks are excluded so the inputs stay
	// under the user's control, and its fields become part of this
	// component's state.
	FeatureInput *FeatureInput
}

// ShapContributionsTable lists how each feature moved one prediction away
// from the population average.
type ShapContributionsTable struct {
	*hxdash.Base
	cfg      ShapContributionsTableConfig
	index    *IndexSelector
	selector *PosLabelSelector
	input    *FeatureInput
	out      hxdash.Channel
}

// NewShapContributionsTable builds a contributions table.
func NewShapContributionsTable(d *hxdash.Dashboard, cfg ShapContributionsTableConfig, opts ...hxdash.Option) (*ShapContributionsTable, error) {
	if cfg.Sort == "" {
		cfg.Sort = SortAbs
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:     "contributions-table",
		Title:    "Contributions Table",
		Subtitle: "How has each feature contributed to the prediction?",
		Description: "Starting from the population average, every feature adds its contribution " +
			"until the final prediction is reached. This explains exactly how an individual " +
			"prediction was built from all the ingredients of the model.",
		Schema: hxdash.Schema{
			hxdash.Field("index", "contributions-table-index-", hxdash.KindString),
			hxdash.Field("depth", "contributions-table-depth-", hxdash.KindInt),
			hxdash.Field("sort", "contributions-table-sorting-", hxdash.KindString),
			posLabelField,
		},
	}, opts...)
	if err != nil {
		return nil, err
	}
	c := &ShapContributionsTable{Base: base, cfg: cfg, input: cfg.FeatureInput}
	c.index, c.selector, err = selectors(base.Dashboard(), c, "contributions-table-index-", cfg.Index, cfg.PosLabel)
	if err != nil {
		return nil, err
	}
	c.Compose(c.index, c.selector)
	if c.input != nil {
		c.Compose(c.input)
		c.ExcludeCallbacks(c.input)
		c.Hide(HideIndex, true)
	}
	c.RequireDependencies(hxdash.DepShapValues, hxdash.DepFeatures)
	c.out = c.Surface("contributions-table-", render.AttrChildren)
	return c, nil
}

// Layout renders the selectors and the table area, preceded by the feature
// input when one supplies the row.
func (c *ShapContributionsTable) Layout() *render.Node {
	n := 0
	if c.Model() != nil {
		n = len(c.Model().Columns())
	}
	var input *render.Node
	if c.input != nil {
		input = c.input.Layout()
	}
	return card(c.Base,
		input,
		render.Row(
			labelled(4, "Index", c.index.Layout(), c.Hidden(HideIndex)),
			labelled(2, "Depth", render.Select(c.ID("depth"), depthOptions(n), clampDepth(c.cfg.Depth, n)), c.Hidden(HideDepth)),
			labelled(3, "Sorting", render.Select(c.ID("sort"), []render.Option{
				{Label: "Absolute", Value: SortAbs},
				{Label: "High to Low", Value: SortHighToLow},
				{Label: "Low to High", Value: SortLowToHigh},
			}, c.cfg.Sort), c.Hidden(HideSort)),
			render.Hideable(render.Col(2, c.selector.Layout()), c.Hidden(HideSelector)),
		),
		render.Div(c.out.ID),
	)
}

// Callbacks rebuilds the table when the explained row, depth, ordering or
// label changes.
func (c *ShapContributionsTable) Callbacks(rt hxdash.Runtime) error {
	triggers := []hxdash.Channel{c.Ch("depth"), c.Ch("sort"), c.Ch("pos_label")}
	if c.input != nil {
		triggers = append(triggers, c.input.Inputs()...)
	} else {
		triggers = append(triggers, c.Ch("index"))
	}
	reads := contextOf(c.Base, triggers...)
	if c.input != nil {
		reads = append(reads, c.input.Ch("index"))
	}
	return c.Register(rt, hxdash.Handler{
		Triggers: triggers,
		Context:  reads,
		Outputs:  []hxdash.Channel{c.out},
		Func:     refresh(c.Base, c.out, c.content),
	})
}

// explained is one row's contributions with the values they were computed
// for.
type explained struct {
	base    float64
	contrib []model.Contribution
	values  map[string]string
}

func (c *ShapContributionsTable) explain(ctx context.Context, state hxdash.StateDict, args hxdash.StateArgs) (explained, error) {
	label := c.LabelOr(args.String("pos_label"))
	m := c.Model()
	if c.input != nil {
		row, err := c.input.Row(state)
		if err != nil {
			return explained{}, err
		}
		rx, ok := m.(hxdash.RowExplainer)
		if m == nil || !ok {
			id := "<none>"
			if m != nil {
				id = m.ID()
			}
			return explained{}, &hxdash.CapabilityMissingError{Model: id, Dependency: "row explanations"}
		}
		ex, err := rx.ExplainRow(ctx, row, label)
		if err != nil {
			return explained{}, err
		}
		names := hxdash.ColumnNames(m)
		values := make([]float64, len(names))
		shown := make(map[string]string, len(names))
		for j, n := range names {
			values[j] = ex.Contributions[n]
			if v, ok := row[n]; ok {
				shown[n] = valueText(v)
			}
		}
		return explained{base: ex.Base, contrib: model.SortContributions(names, values), values: shown}, nil
	}

	idx, err := validIndex(m, args)
	if err != nil {
		return explained{}, err
	}
	shap, err := hxdash.ArtifactAs[*model.ShapValues](ctx, c.Base, hxdash.DepShapValues, label)
	if err != nil {
		return explained{}, err
	}
	feats, err := hxdash.ArtifactAs[*model.Features](ctx, c.Base, hxdash.DepFeatures, "")
	if err != nil {
		return explained{}, err
	}
	contrib, _ := shap.Contributions(idx)
	x, _ := feats.Row(idx)
	shown := make(map[string]string, len(x))
	for j, col := range m.Columns() {
		v := x[j]
		if col.Categorical && int(v) >= 0 && int(v) < len(col.Categories) {
			shown[col.Name] = col.Categories[int(v)]
		} else {
			shown[col.Name] = fmtShort(v)
		}
	}
	return explained{base: shap.Base, contrib: contrib, values: shown}, nil
}

func (c *ShapContributionsTable) content(ctx context.Context, state hxdash.StateDict) (*render.Node, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return nil, err
	}
	ex, err := c.explain(ctx, state, args)
	if err != nil {
		return nil, err
	}
	t, err := contributionsTable(ex, args.String("sort"), args.Int("depth"))
	if err != nil {
		return nil, err
	}
	if hxdash.IsClassifier(c.Model()) {
		t.Columns[2] = "Effect (log-odds)"
	}
	return render.TableBlock("", t), nil
}

func contributionsTable(ex explained, order string, depth int) (*render.Table, error) {
	contrib := append([]model.Contribution(nil), ex.contrib...)
	switch order {
	case SortAbs:
	case SortHighToLow:
		sort.SliceStable(contrib, func(a, b int) bool { return contrib[a].Contribution > contrib[b].Contribution })
	case SortLowToHigh:
		sort.SliceStable(contrib, func(a, b int) bool { return contrib[a].Contribution < contrib[b].Contribution })
	default:
		return nil, errNoSelection
	}

	t := &render.Table{Columns: []string{"Reason", "Value", "Effect"}}
	t.Rows = append(t.Rows, []string{"Average of population", "", fmtFloat(ex.base)})
	total := ex.base
	shown := clampDepth(depth, len(contrib))
	var rest float64
	for i, ct := range contrib {
		total += ct.Contribution
		if i >= shown {
			rest += ct.Contribution
			continue
		}
		t.Rows = append(t.Rows, []string{ct.Feature, ex.values[ct.Feature], signed(ct.Contribution)})
	}
	if shown < len(contrib) {
		t.Rows = append(t.Rows, []string{"Other features combined", "", signed(rest)})
	}
	t.Rows = append(t.Rows, []string{"Final prediction", "", fmtFloat(total)})
	return t, nil
}

// ToHTML renders the table for a snapshot.
func (c *ShapContributionsTable) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := c.StateArgs(state)
	if err != nil {
		return "", err
	}
	var inputs []*render.Node
	if c.input == nil {
		inputs = append(inputs, render.DisabledInput("Index", args.String("index")))
	}
	return export(ctx, c.Base, state, addHeader, c.content, inputs...)
}

func signed(f float64) string {
	if f >= 0 {
		return "+" + fmtFloat(f)
	}
	return fmtFloat(f)
}

func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmtShort(t)
	case nil:
		return ""
	}
	s, err := hxdash.Coerce(hxdash.KindString, v)
	if err != nil {
		return ""
	}
	str, _ := s.(string)
	return str
}

// IsNoSelection reports whether err means the component's state selects
// nothing the model knows about.
func IsNoSelection(err error) bool { return errors.Is(err, errNoSelection) }

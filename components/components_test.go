package components

import (
	"context"
	"strconv"
	"testing"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/model"
	"github.com/pthm/hxdash/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoDashboard(t *testing.T) (*hxdash.Dashboard, *model.Explainer) {
	t.Helper()
	m := model.DemoClassifier(1)
	return hxdash.New(m), m
}

func html(t *testing.T, v any) string {
	t.Helper()
	n, ok := v.(*render.Node)
	require.True(t, ok, "value is %T, want *render.Node", v)
	out, err := render.String(context.Background(), n)
	require.NoError(t, err)
	return out
}

func TestIndexConnectorSyncsSelection(t *testing.T) {
	d, m := demoDashboard(t)
	sel := Must(NewIndexSelector(d, IndexSelectorConfig{}))
	sum := Must(NewPredictionSummary(d, PredictionSummaryConfig{}))
	conn := hxdash.MustConnector(hxdash.NewIndexConnector(
		hxdash.Ref(sel, hxdash.PropIndex),
		hxdash.Ref(sum, hxdash.PropIndex),
		m,
	))
	d.Add(sel, sum).Connect(conn)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)

	delta, err := s.Set(context.Background(), sel.Ch("index"), "5")
	require.NoError(t, err)
	v, ok := delta.Value(sum.Ch("index"))
	require.True(t, ok)
	assert.Equal(t, "5", v)
	out, ok := delta.Value(sum.out)
	require.True(t, ok)
	assert.Contains(t, html(t, out), "Index: 5")

	// Unknown records are not broadcast.
	delta, err = s.Set(context.Background(), sel.Ch("index"), "nope")
	require.NoError(t, err)
	assert.False(t, delta.Has(sum.Ch("index")))
	got, _ := s.Get(sum.Ch("index"))
	assert.Equal(t, "5", got)
}

func TestSharedDependencyComputedOnce(t *testing.T) {
	d, m := demoDashboard(t)
	sum := Must(NewShapSummary(d, ShapSummaryConfig{SummaryType: SummaryDetailed, Index: "3"}))
	tbl := Must(NewShapContributionsTable(d, ShapContributionsTableConfig{Index: "3"}))
	d.Add(sum, tbl)

	assert.Equal(t, []string{hxdash.DepFeatures, hxdash.DepImportances, hxdash.DepShapValues}, d.Dependencies())

	s, delta, err := hxdash.TestSession(d)
	require.NoError(t, err)
	assert.True(t, delta.Has(sum.out))
	assert.True(t, delta.Has(tbl.out))
	assert.Equal(t, 1, m.Computations(hxdash.DepShapValues))
	assert.Equal(t, 1, m.Computations(hxdash.DepImportances))

	_, err = s.Set(context.Background(), tbl.Ch("index"), "8")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Computations(hxdash.DepShapValues))
}

func TestStateArgsProjection(t *testing.T) {
	d, _ := demoDashboard(t)
	tbl := Must(NewShapContributionsTable(d, ShapContributionsTableConfig{}))

	state := hxdash.StateDict{}
	state.Set(tbl.Ch("index"), "17")
	state.Set(tbl.Ch("depth"), "5")
	state.Set(tbl.Ch("sort"), SortAbs)
	state.Set(tbl.Ch("pos_label"), "Survived")
	state.Set(hxdash.Channel{ID: "unrelated-x"}, 1)

	args, err := tbl.StateArgs(state)
	require.NoError(t, err)
	assert.Equal(t, 5, args["depth"])
	assert.Equal(t, "17", args["index"])
	assert.Len(t, args, 4)

	delete(state, tbl.Ch("depth").Key())
	_, err = tbl.StateArgs(state)
	require.Error(t, err)
	assert.True(t, hxdash.IsMissingState(err))
	assert.Contains(t, err.Error(), tbl.Ch("depth").Key())
}

func TestSnapshotRoundTrip(t *testing.T) {
	d, _ := demoDashboard(t)
	sum := Must(NewPredictionSummary(d, PredictionSummaryConfig{Index: "4"}))
	tbl := Must(NewShapContributionsTable(d, ShapContributionsTableConfig{Index: "4", Depth: 3}))
	cls := Must(NewClassificationSummary(d, ClassificationSummaryConfig{Cutoff: 0.4}))
	d.Add(sum, tbl, cls)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	_, err = s.Set(context.Background(), tbl.Ch("sort"), SortHighToLow)
	require.NoError(t, err)

	snapshot := s.Snapshot(d.StateTuples())
	for _, tc := range []struct {
		name string
		c    hxdash.Component
		out  hxdash.Channel
	}{
		{"prediction summary", sum, sum.out},
		{"contributions table", tbl, tbl.out},
		{"classification summary", cls, cls.out},
	} {
		t.Run(tc.name, func(t *testing.T) {
			live, ok := s.Get(tc.out)
			require.True(t, ok)
			res, err := hxdash.TestExport(tc.c, snapshot)
			require.NoError(t, err)
			assert.Contains(t, res.HTML, html(t, live))
		})
	}

	// A snapshot read back from text compares equal after normalization.
	token, err := d.Permalink(snapshot)
	require.NoError(t, err)
	back, err := d.ParsePermalink(token)
	require.NoError(t, err)
	norm, err := d.Normalize(snapshot)
	require.NoError(t, err)
	assert.Equal(t, norm, back)
}

func TestNothingComputedBeforeRender(t *testing.T) {
	d, m := demoDashboard(t)
	d.Add(
		Must(NewShapSummary(d, ShapSummaryConfig{})),
		Must(NewPredictionSummary(d, PredictionSummaryConfig{Index: "1"})),
		Must(NewCutoffPercentile(d, CutoffPercentileConfig{})),
	)
	d.Layout()
	d.DefaultState()
	d.StateTuples()

	for _, dep := range []string{hxdash.DepShapValues, hxdash.DepImportances, hxdash.DepPredictions, hxdash.DepPercentiles} {
		assert.Zero(t, m.Computations(dep), dep)
	}
	assert.Zero(t, d.Registrar().Len())
}

func TestInvalidIndexIsNoop(t *testing.T) {
	d, _ := demoDashboard(t)
	sum := Must(NewPredictionSummary(d, PredictionSummaryConfig{Index: "2"}))
	d.Add(sum)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	before, _ := s.Get(sum.out)

	delta, err := s.Set(context.Background(), sum.Ch("index"), "no-such-record")
	require.NoError(t, err)
	assert.False(t, delta.Has(sum.out))
	after, _ := s.Get(sum.out)
	assert.Same(t, before, after)
	require.Len(t, delta.Notices, 1)
	assert.Equal(t, hxdash.NoticeWarning, delta.Notices[0].Level)
	assert.Equal(t, "Unknown index no-such-record", delta.Notices[0].Message)

	// Clearing the selection is a silent no-op.
	delta, err = s.Set(context.Background(), sum.Ch("index"), "")
	require.NoError(t, err)
	assert.False(t, delta.Has(sum.out))
	assert.Empty(t, delta.Notices)

	state := d.DefaultState()
	state.Set(sum.Ch("index"), "no-such-record")
	res, err := hxdash.TestExport(sum, state)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Nothing selected."))
}

func TestShapSummaryIndexColumnVisibility(t *testing.T) {
	d, _ := demoDashboard(t)
	sum := Must(NewShapSummary(d, ShapSummaryConfig{}))
	d.Add(sum)

	s, delta, err := hxdash.TestSession(d)
	require.NoError(t, err)
	v, ok := delta.Value(sum.indexCol)
	require.True(t, ok)
	assert.Equal(t, render.Hidden, v)

	delta, err = s.Set(context.Background(), sum.Ch("summary_type"), SummaryDetailed)
	require.NoError(t, err)
	v, ok = delta.Value(sum.indexCol)
	require.True(t, ok)
	assert.Equal(t, render.Shown, v)

	delta, err = s.Set(context.Background(), sum.Ch("depth"), 2)
	require.NoError(t, err)
	assert.True(t, delta.Has(sum.out))
	assert.False(t, delta.Has(sum.indexCol))
	opts, ok := delta.Value(sum.features)
	require.True(t, ok)
	assert.Len(t, opts, 2)
}

func TestInteractionSummaryPlaceholder(t *testing.T) {
	d, _ := demoDashboard(t)
	inter := Must(NewInteractionSummary(d, InteractionSummaryConfig{}))
	d.Add(inter)

	_, delta, err := hxdash.TestSession(d)
	require.NoError(t, err)
	out, ok := delta.Value(inter.out)
	require.True(t, ok)
	assert.Contains(t, html(t, out), "Interactions Summary is not available for this model.")

	res, err := hxdash.TestExport(inter, d.DefaultState())
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Interactions Summary is not available for this model."))
}

func TestSummaryDependenceConnector(t *testing.T) {
	d, _ := demoDashboard(t)
	sum := Must(NewShapSummary(d, ShapSummaryConfig{}))
	dep := Must(NewShapDependence(d, ShapDependenceConfig{}))
	conn := Must(NewShapSummaryDependenceConnector(sum, dep))
	d.Add(sum, dep).Connect(conn)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	col, _ := s.Get(dep.Ch("col"))
	assert.Equal(t, "Sex", col)

	delta, err := s.Set(context.Background(), sum.click, "Fare")
	require.NoError(t, err)
	col, ok := delta.Value(dep.Ch("col"))
	require.True(t, ok)
	assert.Equal(t, "Fare", col)
	assert.True(t, delta.Has(dep.out))
}

func TestFeatureInputCallbacksExcluded(t *testing.T) {
	d, _ := demoDashboard(t)
	fi := Must(NewFeatureInput(d, FeatureInputConfig{}))
	tbl := Must(NewShapContributionsTable(d, ShapContributionsTableConfig{FeatureInput: fi}))
	d.Add(tbl)

	g, err := d.Graph()
	require.NoError(t, err)
	for _, h := range g.Handlers() {
		for _, out := range h.Outputs {
			for _, in := range fi.Inputs() {
				assert.NotEqual(t, in, out, "handler %s writes a feature input", h.Name)
			}
		}
	}
	assert.True(t, tbl.Hidden(HideIndex))
	assert.Subset(t, tbl.StateTuples(), fi.Inputs())

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	_, err = s.Set(context.Background(), fi.Ch("index"), "3")
	require.NoError(t, err)
	v, _ := s.Get(fi.Ch("Age"))
	assert.NotEqual(t, 3, v, "index selection must not fill excluded inputs")

	delta, err := s.Set(context.Background(), fi.Ch("Age"), 30.0)
	require.NoError(t, err)
	out, ok := delta.Value(tbl.out)
	require.True(t, ok)
	assert.Contains(t, html(t, out), "Final prediction")
}

func TestFeatureInputRejectsCollidingColumns(t *testing.T) {
	m, err := model.New(model.Config{
		Columns: []hxdash.Column{{Name: "a b"}, {Name: "a_b"}},
		Weights: []float64{1, 1},
		X:       [][]float64{{1, 2}},
		Index:   []string{"0"},
	})
	require.NoError(t, err)
	_, err = NewFeatureInput(hxdash.New(m), FeatureInputConfig{})
	assert.True(t, hxdash.IsConfiguration(err), "error = %v", err)
}

func TestFeatureInputFillsFromIndex(t *testing.T) {
	d, _ := demoDashboard(t)
	fi := Must(NewFeatureInput(d, FeatureInputConfig{}))
	d.Add(fi)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	delta, err := s.Set(context.Background(), fi.Ch("index"), "3")
	require.NoError(t, err)
	for _, col := range fi.Columns() {
		v, ok := s.Get(fi.Ch(col.Name))
		require.True(t, ok, col.Name)
		if col.Categorical {
			assert.Contains(t, col.Categories, v, col.Name)
			continue
		}
		assert.True(t, delta.Has(fi.Ch(col.Name)), col.Name)
		assert.IsType(t, float64(0), v, col.Name)
	}
}

func TestCutoffFromPercentile(t *testing.T) {
	d, m := demoDashboard(t)
	cut := Must(NewCutoffPercentile(d, CutoffPercentileConfig{Cutoff: 0.01}))
	cls := Must(NewClassificationSummary(d, ClassificationSummaryConfig{Cutoff: 0.01}))
	conn := hxdash.MustConnector(hxdash.NewCutoffConnector(
		hxdash.Ref(cut, hxdash.PropCutoff),
		hxdash.Ref(cls, hxdash.PropCutoff),
	))
	d.Add(cut, cls).Connect(conn)

	s, _, err := hxdash.TestSession(d)
	require.NoError(t, err)
	delta, err := s.Set(context.Background(), cut.Ch("percentile"), 0.8)
	require.NoError(t, err)

	acc, _ := m.Accessor(hxdash.DepPredictions)
	raw, err := acc(context.Background(), "Survived")
	require.NoError(t, err)
	want := round(raw.(*model.Predictions).CutoffAtPercentile(0.8), 2)

	v, ok := delta.Value(cut.Ch("cutoff"))
	require.True(t, ok)
	assert.Equal(t, want, v)
	v, ok = delta.Value(cls.Ch("cutoff"))
	require.True(t, ok)
	assert.Equal(t, want, v)
	assert.True(t, delta.Has(cls.out))
}

func TestClassificationSummaryOnRegressor(t *testing.T) {
	d := hxdash.New(model.DemoRegressor(2))
	cls := Must(NewClassificationSummary(d, ClassificationSummaryConfig{}))
	d.Add(cls)

	res, err := hxdash.TestExport(cls, d.DefaultState())
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Model performance metrics is not available for this model."))
}

func TestRegressionSummary(t *testing.T) {
	m := model.DemoRegressor(2)
	d := hxdash.New(m)
	reg := Must(NewRegressionSummary(d, RegressionSummaryConfig{Round: 2}))
	d.Add(reg)

	s, delta, err := hxdash.TestSession(d)
	require.NoError(t, err)
	out, ok := delta.Value(reg.out)
	require.True(t, ok)
	live := html(t, out)
	assert.Contains(t, live, "Root mean squared error")
	assert.Contains(t, live, "R-squared")

	acc, _ := m.Accessor(hxdash.DepPredictions)
	preds, err := acc(context.Background(), "")
	require.NoError(t, err)
	acc, _ = m.Accessor(hxdash.DepTargets)
	y, err := acc(context.Background(), "")
	require.NoError(t, err)
	want := model.RegressionOf(preds.(*model.Predictions), y.([]float64))
	assert.Contains(t, live, strconv.FormatFloat(want.MAE, 'f', 2, 64))

	delta, err = s.Set(context.Background(), reg.Ch("round"), 4)
	require.NoError(t, err)
	out, ok = delta.Value(reg.out)
	require.True(t, ok)
	assert.Contains(t, html(t, out), strconv.FormatFloat(want.MAE, 'f', 4, 64))

	res, err := hxdash.TestExport(reg, s.Snapshot(d.StateTuples()))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, html(t, out))
}

func TestRegressionSummaryOnClassifier(t *testing.T) {
	d, _ := demoDashboard(t)
	reg := Must(NewRegressionSummary(d, RegressionSummaryConfig{}))
	d.Add(reg)

	res, err := hxdash.TestExport(reg, d.DefaultState())
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Model summary is not available for this model."))
}

func TestContributionsTableRows(t *testing.T) {
	ex := explained{
		base: 1,
		contrib: model.SortContributions(
			[]string{"a", "b", "c"},
			[]float64{0.5, -2, 0.25},
		),
		values: map[string]string{"a": "x", "b": "y", "c": "z"},
	}

	tests := []struct {
		name  string
		order string
		depth int
		want  []string
	}{
		{"abs", SortAbs, 0, []string{"Average of population", "b", "a", "c", "Final prediction"}},
		{"high to low", SortHighToLow, 0, []string{"Average of population", "a", "c", "b", "Final prediction"}},
		{"low to high depth", SortLowToHigh, 1, []string{"Average of population", "b", "Other features combined", "Final prediction"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := contributionsTable(ex, tt.order, tt.depth)
			require.NoError(t, err)
			var got []string
			for _, r := range tbl.Rows {
				got = append(got, r[0])
			}
			assert.Equal(t, tt.want, got)
			last := tbl.Rows[len(tbl.Rows)-1]
			assert.Equal(t, fmtFloat(-0.25), last[2])
		})
	}

	_, err := contributionsTable(ex, "sideways", 0)
	assert.True(t, IsNoSelection(err))
}

func TestExportMissingState(t *testing.T) {
	d, _ := demoDashboard(t)
	imp := Must(NewImportances(d, ImportancesConfig{Depth: 3}))
	d.Add(imp)

	state := d.DefaultState()
	delete(state, imp.Ch("depth").Key())
	_, err := d.ToHTML(context.Background(), state)
	require.Error(t, err)
	assert.True(t, hxdash.IsMissingState(err))
}

func TestNewShapSummaryRejectsUnknownType(t *testing.T) {
	d, _ := demoDashboard(t)
	_, err := NewShapSummary(d, ShapSummaryConfig{SummaryType: "sideways"})
	assert.True(t, hxdash.IsConfiguration(err))
}

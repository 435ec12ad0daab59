package model

import (
	"math"
	"sort"
)

// Features is the input matrix, one row per record. Categorical columns
// hold category codes.
type Features struct {
	Columns []string
	Index   []string
	Values  [][]float64
	pos     map[string]int
}

// Row returns the feature values of a record.
func (f *Features) Row(index string) ([]float64, bool) {
	i, ok := f.pos[index]
	if !ok {
		return nil, false
	}
	return f.Values[i], true
}

// Column returns every record's value for a feature.
func (f *Features) Column(name string) ([]float64, bool) {
	j := indexOf(f.Columns, name)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(f.Values))
	for i, row := range f.Values {
		out[i] = row[j]
	}
	return out, true
}

// Predictions holds one prediction per record: a probability for the label
// context of a classifier, the predicted value of a regressor.
type Predictions struct {
	Index  []string
	Values []float64
	pos    map[string]int
	sorted []float64
}

func newPredictions(index []string, values []float64, pos map[string]int) *Predictions {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return &Predictions{Index: index, Values: values, pos: pos, sorted: sorted}
}

// Of returns the prediction for a record.
func (p *Predictions) Of(index string) (float64, bool) {
	i, ok := p.pos[index]
	if !ok {
		return 0, false
	}
	return p.Values[i], true
}

// CutoffAtPercentile returns the prediction value below which pct (0..1) of
// records fall.
func (p *Predictions) CutoffAtPercentile(pct float64) float64 {
	if len(p.sorted) == 0 {
		return 0
	}
	pct = math.Max(0, math.Min(1, pct))
	i := int(math.Round(pct * float64(len(p.sorted)-1)))
	return p.sorted[i]
}

// Above counts records whose prediction is at or above cutoff.
func (p *Predictions) Above(cutoff float64) int {
	i := sort.SearchFloat64s(p.sorted, cutoff)
	return len(p.sorted) - i
}

// Percentiles is the percentile rank (0..100) of every record's prediction.
type Percentiles struct {
	Index  []string
	Values []float64
	pos    map[string]int
}

// Of returns the percentile rank of a record.
func (p *Percentiles) Of(index string) (float64, bool) {
	i, ok := p.pos[index]
	if !ok {
		return 0, false
	}
	return p.Values[i], true
}

// ShapValues holds additive feature contributions for every record. For
// each record Base plus the sum of its row equals the model output on the
// explained scale.
type ShapValues struct {
	Columns []string
	Index   []string
	Values  [][]float64
	Base    float64
	pos     map[string]int
}

// Row returns the contributions of a record.
func (s *ShapValues) Row(index string) ([]float64, bool) {
	i, ok := s.pos[index]
	if !ok {
		return nil, false
	}
	return s.Values[i], true
}

// Column returns every record's contribution for a feature.
func (s *ShapValues) Column(name string) ([]float64, bool) {
	j := indexOf(s.Columns, name)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(s.Values))
	for i, row := range s.Values {
		out[i] = row[j]
	}
	return out, true
}

// Contribution is one feature's share of a single prediction.
type Contribution struct {
	Feature      string
	Contribution float64
}

// Contributions returns a record's contributions, largest magnitude first.
func (s *ShapValues) Contributions(index string) ([]Contribution, bool) {
	row, ok := s.Row(index)
	if !ok {
		return nil, false
	}
	return SortContributions(s.Columns, row), true
}

// SortContributions pairs features with values and sorts them by
// decreasing magnitude, ties broken by name.
func SortContributions(cols []string, values []float64) []Contribution {
	out := make([]Contribution, len(cols))
	for j, c := range cols {
		out[j] = Contribution{Feature: c, Contribution: values[j]}
	}
	sort.SliceStable(out, func(a, b int) bool {
		da, db := math.Abs(out[a].Contribution), math.Abs(out[b].Contribution)
		if da != db {
			return da > db
		}
		return out[a].Feature < out[b].Feature
	})
	return out
}

// Importances is mean absolute SHAP per feature, most important first.
type Importances struct {
	Features []string
	Values   []float64
}

// Top returns the n most important features (all if n <= 0 or too large).
func (im *Importances) Top(n int) *Importances {
	if n <= 0 || n >= len(im.Features) {
		return im
	}
	return &Importances{Features: im.Features[:n], Values: im.Values[:n]}
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

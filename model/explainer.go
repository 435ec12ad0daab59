// Package model provides an immutable in-memory explainer for linear and
// logistic models: predictions, additive feature contributions, importances
// and prediction percentiles, exposed through the hxdash model boundary.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/pthm/hxdash"
)

// Config describes the data and fitted coefficients of a model.
type Config struct {
	Name      string
	Columns   []hxdash.Column
	Index     []string
	X         [][]float64
	Y         []float64
	Weights   []float64
	Intercept float64
	// Labels is nil for a regressor and holds exactly two labels, negative
	// first, for a binary classifier.
	Labels []string
}

// Explainer implements hxdash.Model and hxdash.RowExplainer. All artifacts
// are derived from the configuration on demand; nothing is mutated after
// New returns except the computation counters.
type Explainer struct {
	id     string
	name   string
	cols   []hxdash.Column
	names  []string
	index  []string
	pos    map[string]int
	x      [][]float64
	y      []float64
	w      []float64
	b      float64
	labels []string
	means  []float64

	mu           sync.Mutex
	computations map[string]int
}

var _ hxdash.Model = (*Explainer)(nil)
var _ hxdash.RowExplainer = (*Explainer)(nil)

// New validates cfg and builds an Explainer.
func New(cfg Config) (*Explainer, error) {
	nc := len(cfg.Columns)
	if nc == 0 {
		return nil, errors.New("model: no columns")
	}
	if len(cfg.Weights) != nc {
		return nil, fmt.Errorf("model: %d weights for %d columns", len(cfg.Weights), nc)
	}
	if len(cfg.X) == 0 {
		return nil, errors.New("model: no rows")
	}
	if len(cfg.Index) != len(cfg.X) {
		return nil, fmt.Errorf("model: %d index entries for %d rows", len(cfg.Index), len(cfg.X))
	}
	if cfg.Y != nil && len(cfg.Y) != len(cfg.X) {
		return nil, fmt.Errorf("model: %d targets for %d rows", len(cfg.Y), len(cfg.X))
	}
	if cfg.Labels != nil && len(cfg.Labels) != 2 {
		return nil, fmt.Errorf("model: classifier needs 2 labels, got %d", len(cfg.Labels))
	}

	e := &Explainer{
		id:           uuid.NewString(),
		name:         cfg.Name,
		cols:         cfg.Columns,
		index:        cfg.Index,
		pos:          make(map[string]int, len(cfg.Index)),
		x:            cfg.X,
		y:            cfg.Y,
		w:            cfg.Weights,
		b:            cfg.Intercept,
		labels:       cfg.Labels,
		means:        make([]float64, nc),
		computations: make(map[string]int),
	}
	for _, c := range cfg.Columns {
		e.names = append(e.names, c.Name)
	}
	for i, idx := range cfg.Index {
		if _, dup := e.pos[idx]; dup {
			return nil, fmt.Errorf("model: duplicate index %q", idx)
		}
		e.pos[idx] = i
	}
	for i, row := range cfg.X {
		if len(row) != nc {
			return nil, fmt.Errorf("model: row %d has %d values, want %d", i, len(row), nc)
		}
		for j, v := range row {
			e.means[j] += v
		}
	}
	for j := range e.means {
		e.means[j] /= float64(len(cfg.X))
	}
	return e, nil
}

// ID identifies this instance in registrar keys.
func (e *Explainer) ID() string { return e.id }

// Name returns the display name.
func (e *Explainer) Name() string { return e.name }

// Labels returns the class labels, nil for a regressor.
func (e *Explainer) Labels() []string { return e.labels }

// DefaultLabel is the positive class of a classifier.
func (e *Explainer) DefaultLabel() string {
	if len(e.labels) == 0 {
		return ""
	}
	return e.labels[1]
}

// Indexes returns the record identifiers in row order.
func (e *Explainer) Indexes() []string { return e.index }

// IndexExists reports whether a record identifier is known.
func (e *Explainer) IndexExists(index string) bool {
	_, ok := e.pos[index]
	return ok
}

// Columns returns the feature metadata.
func (e *Explainer) Columns() []hxdash.Column { return e.cols }

// Computations returns how often the accessor behind dep actually ran.
func (e *Explainer) Computations(dep string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computations[dep]
}

// Accessor returns the computation behind a dependency name. Interaction
// values are not available for additive models.
func (e *Explainer) Accessor(dep string) (hxdash.Accessor, bool) {
	var fn func(label string) any
	switch dep {
	case hxdash.DepFeatures:
		fn = func(string) any { return e.features() }
	case hxdash.DepTargets:
		if e.y == nil {
			return nil, false
		}
		fn = e.targets
	case hxdash.DepPredictions:
		fn = func(label string) any { return e.predictions(label) }
	case hxdash.DepPercentiles:
		fn = func(label string) any { return e.percentiles(label) }
	case hxdash.DepShapValues:
		fn = func(label string) any { return e.shapValues(label) }
	case hxdash.DepImportances:
		fn = func(label string) any { return e.importances(label) }
	default:
		return nil, false
	}
	return func(ctx context.Context, label string) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.checkLabel(label); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.computations[dep]++
		e.mu.Unlock()
		return fn(label), nil
	}, true
}

func (e *Explainer) checkLabel(label string) error {
	if len(e.labels) == 0 || label == "" {
		return nil
	}
	for _, l := range e.labels {
		if l == label {
			return nil
		}
	}
	return fmt.Errorf("model: unknown label %q", label)
}

// positive reports whether label selects the positive class. An empty label
// means the default, positive class.
func (e *Explainer) positive(label string) bool {
	return len(e.labels) == 0 || label == "" || label == e.labels[1]
}

func (e *Explainer) raw(row []float64) float64 {
	s := e.b
	for j, v := range row {
		s += e.w[j] * v
	}
	return s
}

func (e *Explainer) output(raw float64, label string) float64 {
	if len(e.labels) == 0 {
		return raw
	}
	p := sigmoid(raw)
	if e.positive(label) {
		return p
	}
	return 1 - p
}

func (e *Explainer) features() *Features {
	return &Features{Columns: e.names, Index: e.index, Values: e.x, pos: e.pos}
}

func (e *Explainer) targets(label string) any {
	if e.positive(label) {
		return e.y
	}
	out := make([]float64, len(e.y))
	for i, v := range e.y {
		out[i] = 1 - v
	}
	return out
}

func (e *Explainer) predictions(label string) *Predictions {
	vals := make([]float64, len(e.x))
	for i, row := range e.x {
		vals[i] = e.output(e.raw(row), label)
	}
	return newPredictions(e.index, vals, e.pos)
}

func (e *Explainer) percentiles(label string) *Percentiles {
	preds := e.predictions(label)
	n := float64(len(preds.sorted))
	vals := make([]float64, len(preds.Values))
	for i, v := range preds.Values {
		below := sort.Search(len(preds.sorted), func(k int) bool { return preds.sorted[k] > v })
		vals[i] = math.Round(100*float64(below)/n*10) / 10
	}
	return &Percentiles{Index: e.index, Values: vals, pos: e.pos}
}

// base is the expected output on the explained scale (log-odds for a
// classifier).
func (e *Explainer) base(label string) float64 {
	s := e.b
	for j, m := range e.means {
		s += e.w[j] * m
	}
	if !e.positive(label) {
		return -s
	}
	return s
}

func (e *Explainer) contributions(row []float64, label string) []float64 {
	out := make([]float64, len(row))
	sign := 1.0
	if !e.positive(label) {
		sign = -1
	}
	for j, v := range row {
		out[j] = sign * e.w[j] * (v - e.means[j])
	}
	return out
}

func (e *Explainer) shapValues(label string) *ShapValues {
	vals := make([][]float64, len(e.x))
	for i, row := range e.x {
		vals[i] = e.contributions(row, label)
	}
	return &ShapValues{Columns: e.names, Index: e.index, Values: vals, Base: e.base(label), pos: e.pos}
}

func (e *Explainer) importances(label string) *Importances {
	shap := e.shapValues(label)
	type pair struct {
		name string
		v    float64
	}
	pairs := make([]pair, len(e.names))
	for j, name := range e.names {
		var s float64
		for _, row := range shap.Values {
			s += math.Abs(row[j])
		}
		pairs[j] = pair{name, s / float64(len(shap.Values))}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].v != pairs[b].v {
			return pairs[a].v > pairs[b].v
		}
		return pairs[a].name < pairs[b].name
	})
	im := &Importances{}
	for _, p := range pairs {
		im.Features = append(im.Features, p.name)
		im.Values = append(im.Values, p.v)
	}
	return im
}

// ExplainRow explains an arbitrary input row. Missing features take the
// column's FillValue, or the training mean when none is set. Categorical
// features accept a category name or its code.
func (e *Explainer) ExplainRow(ctx context.Context, row map[string]any, label string) (hxdash.RowExplanation, error) {
	if err := ctx.Err(); err != nil {
		return hxdash.RowExplanation{}, err
	}
	if err := e.checkLabel(label); err != nil {
		return hxdash.RowExplanation{}, err
	}
	x := make([]float64, len(e.cols))
	for j, c := range e.cols {
		raw, ok := row[c.Name]
		if !ok || raw == nil || raw == "" {
			raw = c.FillValue
		}
		if raw == nil {
			x[j] = e.means[j]
			continue
		}
		v, err := encode(c, raw)
		if err != nil {
			return hxdash.RowExplanation{}, err
		}
		x[j] = v
	}
	contrib := e.contributions(x, label)
	out := hxdash.RowExplanation{
		Prediction:    e.output(e.raw(x), label),
		Base:          e.base(label),
		Contributions: make(map[string]float64, len(contrib)),
	}
	for j, name := range e.names {
		out.Contributions[name] = contrib[j]
	}
	return out, nil
}

// encode converts an input value to the numeric representation the model
// was fitted on.
func encode(c hxdash.Column, v any) (float64, error) {
	if c.Categorical {
		if s, ok := v.(string); ok {
			for k, cat := range c.Categories {
				if cat == s {
					return float64(k), nil
				}
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return 0, fmt.Errorf("model: unknown category %q for %s", s, c.Name)
			}
		}
	}
	f, err := hxdash.Coerce(hxdash.KindFloat, v)
	if err != nil {
		return 0, fmt.Errorf("model: feature %s: %w", c.Name, err)
	}
	fv, ok := f.(float64)
	if !ok {
		return 0, fmt.Errorf("model: feature %s: empty value", c.Name)
	}
	return fv, nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

package hxdash

import "context"

// Dependency names components declare and models provide accessors for.
const (
	DepFeatures          = "X"
	DepTargets           = "y"
	DepPredictions       = "preds"
	DepPercentiles       = "pred_percentiles"
	DepShapValues        = "shap_values"
	DepImportances       = "importances"
	DepInteractionValues = "shap_interaction_values"
)

// Accessor computes one analytical artifact for a label context. label is
// empty for models without class labels.
type Accessor func(ctx context.Context, label string) (any, error)

// Column describes one input feature.
type Column struct {
	Name        string
	Categorical bool
	Categories  []string
	FillValue   any
}

// Model is the analytical model a dashboard explains. Implementations are
// immutable after construction: the registrar caches artifacts for the
// model's lifetime and never invalidates them.
type Model interface {
	// ID identifies the model instance in registrar keys.
	ID() string

	// Labels returns the class labels, or nil for regressors.
	Labels() []string
	DefaultLabel() string

	Indexes() []string
	IndexExists(index string) bool

	Columns() []Column

	// Accessor returns the computation behind a dependency name, or false
	// when the model cannot provide it.
	Accessor(dep string) (Accessor, bool)
}

// ColumnByName looks up a column's metadata.
func ColumnByName(m Model, name string) (Column, bool) {
	for _, c := range m.Columns() {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the model's feature names in order.
func ColumnNames(m Model) []string {
	cols := m.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// IsClassifier reports whether the model has class labels.
func IsClassifier(m Model) bool {
	return m != nil && len(m.Labels()) > 0
}

// RowExplanation is the prediction and per-feature contributions for one
// input row.
type RowExplanation struct {
	Prediction    float64
	Base          float64
	Contributions map[string]float64
}

// RowExplainer is implemented by models that can explain an arbitrary input
// row, not just the records they were built with. Components use it for
// what-if inputs.
type RowExplainer interface {
	ExplainRow(ctx context.Context, row map[string]any, label string) (RowExplanation, error)
}

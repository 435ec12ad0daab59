package components

import (
	"context"

	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/render"
)

// Must panics if err is not nil. It is meant for dashboard-build code.
//
//	imp := components.Must(components.NewImportances(d, components.ImportancesConfig{Depth: 5}))
func Must[T any](c T, err error) T {
	if err != nil {
		panic(err)
	}
	return c
}

// IndexSelectorConfig configures an IndexSelector.
type IndexSelectorConfig struct {
	// Prefix is the channel prefix of the selected index. Components that
	// nest a selector pass their own index prefix so both address the same
	// channel.
	Prefix string
	// Index is the initially selected record.
	Index string
	// FreeText renders a text input instead of a dropdown of all records.
	FreeText bool
}

// IndexSelector picks one record of the model.
type IndexSelector struct {
	*hxdash.Base
	cfg IndexSelectorConfig
}

// NewIndexSelector builds a record selector. It publishes its channel under
// hxdash.PropIndex.
func NewIndexSelector(d *hxdash.Dashboard, cfg IndexSelectorConfig, opts ...hxdash.Option) (*IndexSelector, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "index-selector-"
	}
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:   "index-selector",
		Title:  "Index",
		Schema: hxdash.Schema{hxdash.Field("index", cfg.Prefix, hxdash.KindString)},
	}, opts...)
	if err != nil {
		return nil, err
	}
	base.Publish(hxdash.PropIndex, base.Ch("index"))
	return &IndexSelector{Base: base, cfg: cfg}, nil
}

// Layout renders the selector control.
func (s *IndexSelector) Layout() *render.Node {
	id := s.ID("index")
	m := s.Model()
	if m == nil || s.cfg.FreeText {
		return render.Input(id, s.cfg.Index)
	}
	opts := []render.Option{{Label: "Select a record", Value: ""}}
	opts = append(opts, render.Options(m.Indexes()...)...)
	return render.Select(id, opts, s.cfg.Index)
}

// ToHTML renders the selected record as a read-only input.
func (s *IndexSelector) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := s.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, s.Base, state, addHeader, nil, render.DisabledInput("Index", args.String("index")))
}

// PosLabelSelector picks the class label a classifier's outputs are shown
// for. For a regressor it renders a hidden, empty control so the channel
// still exists.
type PosLabelSelector struct {
	*hxdash.Base
	label string
}

// NewPosLabelSelector builds a label selector. Components nest it with
// hxdash.NestedIn so it shares their pos_label channel. It publishes under
// hxdash.PropPosLabel.
func NewPosLabelSelector(d *hxdash.Dashboard, label string, opts ...hxdash.Option) (*PosLabelSelector, error) {
	base, err := hxdash.NewBase(d, hxdash.Class{
		Kind:   "pos-label-selector",
		Title:  "Positive class",
		Schema: hxdash.Schema{posLabelField},
	}, opts...)
	if err != nil {
		return nil, err
	}
	base.Publish(hxdash.PropPosLabel, base.Ch("pos_label"))
	return &PosLabelSelector{Base: base, label: label}, nil
}

// Layout renders the selector.
func (s *PosLabelSelector) Layout() *render.Node {
	id := s.ID("pos_label")
	m := s.Model()
	if !hxdash.IsClassifier(m) {
		return render.Hideable(render.Select(id, nil, ""), true)
	}
	label := s.LabelOr(s.label)
	return render.Div("", render.Label("Positive class"), render.Select(id, render.Options(m.Labels()...), label))
}

// ToHTML renders the selected label as a read-only input.
func (s *PosLabelSelector) ToHTML(ctx context.Context, state hxdash.StateDict, addHeader bool) (string, error) {
	args, err := s.StateArgs(state)
	if err != nil {
		return "", err
	}
	return export(ctx, s.Base, state, addHeader, nil, render.DisabledInput("Positive class", args.String("pos_label")))
}

// selectors builds the index and label selectors a component nests. An
// empty indexPrefix skips the index selector.
func selectors(d *hxdash.Dashboard, parent hxdash.Component, indexPrefix, index, label string) (*IndexSelector, *PosLabelSelector, error) {
	var idx *IndexSelector
	if indexPrefix != "" {
		var err error
		idx, err = NewIndexSelector(d, IndexSelectorConfig{Prefix: indexPrefix, Index: index}, hxdash.NestedIn(parent))
		if err != nil {
			return nil, nil, err
		}
	}
	sel, err := NewPosLabelSelector(d, label, hxdash.NestedIn(parent))
	if err != nil {
		return nil, nil, err
	}
	return idx, sel, nil
}

// validIndex returns the record named by the index field, or errNoSelection
// when it is empty or unknown to the model.
func validIndex(m hxdash.Model, args hxdash.StateArgs) (string, error) {
	idx := args.String("index")
	if idx == "" {
		return "", errNoSelection
	}
	if err := checkIndex(m, idx); err != nil {
		return "", err
	}
	return idx, nil
}

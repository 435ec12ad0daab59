package hxdash

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pthm/hxdash/render"
)

// fakeModel serves string artifacts and counts how often each dependency
// was computed.
type fakeModel struct {
	id      string
	labels  []string
	index   []string
	cols    []Column
	missing map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func newFakeModel(labels ...string) *fakeModel {
	return &fakeModel{
		id:     "fake",
		labels: labels,
		index:  []string{"a", "b", "c"},
		cols:   []Column{{Name: "age"}, {Name: "sex", Categorical: true, Categories: []string{"f", "m"}}},
		calls:  make(map[string]int),
	}
}

func (m *fakeModel) ID() string       { return m.id }
func (m *fakeModel) Labels() []string { return m.labels }
func (m *fakeModel) DefaultLabel() string {
	if len(m.labels) == 0 {
		return ""
	}
	return m.labels[len(m.labels)-1]
}
func (m *fakeModel) Indexes() []string { return m.index }
func (m *fakeModel) IndexExists(index string) bool {
	for _, i := range m.index {
		if i == index {
			return true
		}
	}
	return false
}
func (m *fakeModel) Columns() []Column { return m.cols }

func (m *fakeModel) Accessor(dep string) (Accessor, bool) {
	if m.missing[dep] {
		return nil, false
	}
	return func(ctx context.Context, label string) (any, error) {
		m.mu.Lock()
		m.calls[dep]++
		m.mu.Unlock()
		return dep + "[" + label + "]", nil
	}, true
}

func (m *fakeModel) computations(dep string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[dep]
}

// widget is a minimal component: a depth select and an index input feed a
// text output.
type widget struct {
	*Base
	out Channel
}

var widgetClass = Class{
	Kind:  "widget",
	Title: "Widget",
	Schema: Schema{
		Field("depth", "widget-depth-", KindInt),
		Field("index", "widget-index-", KindString),
	},
}

func newWidget(d *Dashboard, opts ...Option) (*widget, error) {
	b, err := NewBase(d, widgetClass, opts...)
	if err != nil {
		return nil, err
	}
	b.RequireDependencies(DepShapValues)
	w := &widget{Base: b}
	w.out = b.Surface("widget-out-", render.AttrChildren)
	b.Publish(PropIndex, b.Ch("index"))
	return w, nil
}

func mustWidget(d *Dashboard, opts ...Option) *widget {
	w, err := newWidget(d, opts...)
	if err != nil {
		panic(err)
	}
	return w
}

func (w *widget) Layout() *render.Node {
	return render.Card(
		render.Select(w.ID("depth"), render.Options("1", "2", "3"), 3),
		render.Input(w.ID("index"), ""),
		render.Div(w.out.ID),
	)
}

func (w *widget) text(ctx context.Context, args StateArgs) (string, error) {
	shap, err := w.Artifact(ctx, DepShapValues, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v depth=%d index=%s", shap, args.Int("depth"), args.String("index")), nil
}

func (w *widget) Callbacks(rt Runtime) error {
	return w.Register(rt, Handler{
		Triggers: []Channel{w.Ch("depth"), w.Ch("index")},
		Outputs:  []Channel{w.out},
		Func: func(cc *CallbackContext, in Values) Result {
			if in.IsNone(w.Ch("index")) {
				return NoUpdate()
			}
			if idx := in.String(w.Ch("index")); !w.Model().IndexExists(idx) {
				return NoUpdate().Notice(NoticeWarning, "Unknown index "+idx)
			}
			args, err := w.StateArgs(in.State())
			if err != nil {
				return Fail(err)
			}
			s, err := w.text(cc.Context(), args)
			if err != nil {
				return Fail(err)
			}
			return Update().Set(w.out, s)
		},
	})
}

func (w *widget) ToHTML(ctx context.Context, state StateDict, addHeader bool) (string, error) {
	args, err := w.StateArgs(state)
	if err != nil {
		return "", err
	}
	s, err := w.text(ctx, args)
	if err != nil {
		return "", err
	}
	return w.Export(ctx, addHeader, render.Text(s))
}

func renderString(t *testing.T, n *render.Node) string {
	t.Helper()
	s, err := render.String(context.Background(), n)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return s
}

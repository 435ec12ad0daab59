// Package components provides the concrete explainer visualizations:
// selectors, prediction summaries, importance and SHAP plots, contribution
// tables, feature inputs and classifier cutoff controls.
//
// Every component renders from the same projection of its state in both
// modes. Live handlers turn their input values into a snapshot and project
// it through the component schema, exactly as ToHTML does for an exported
// snapshot, so a captured live state re-renders identically.
package components

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/a-h/templ"
	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/render"
)

// Sub-element names accepted by hxdash.WithHide.
const (
	HideTitle      = "title"
	HideSubtitle   = "subtitle"
	HideSelector   = "selector"
	HideIndex      = "index"
	HideDepth      = "depth"
	HideType       = "type"
	HideSort       = "sort"
	HideCutoff     = "cutoff"
	HidePercentile = "percentile"
	HideFooter     = "footer"
	HideRound      = "round"
)

// posLabelField is shared by every component with a label selector; the
// nested PosLabelSelector declares the same channel.
var posLabelField = hxdash.Field("pos_label", "pos-label-", hxdash.KindString)

// errNoSelection marks a state whose selection is empty or not recognized
// by the model. Handlers turn it into a no-op; exports into a message.
var errNoSelection = errors.New("components: no valid selection")

// unknownIndexError is a no-selection caused by an index the model does not
// know. Live handlers report it to the user.
type unknownIndexError struct {
	index string
}

func (e *unknownIndexError) Error() string {
	return fmt.Sprintf("components: unknown index %q", e.index)
}

func (e *unknownIndexError) Is(target error) bool { return target == errNoSelection }

// checkIndex returns an unknownIndexError when idx is set but not a record of
// m. An empty idx passes.
func checkIndex(m hxdash.Model, idx string) error {
	if idx != "" && (m == nil || !m.IndexExists(idx)) {
		return &unknownIndexError{index: idx}
	}
	return nil
}

// skip is the handler result for a no-selection error: outputs stay as they
// are, with a warning when the index was not recognized.
func skip(err error) hxdash.Result {
	var unknown *unknownIndexError
	if errors.As(err, &unknown) {
		return hxdash.NoUpdate().Notice(hxdash.NoticeWarning, "Unknown index "+unknown.index)
	}
	return hxdash.NoUpdate()
}

// contentFunc renders a component's output area from a snapshot. Live
// handlers call it with their input values, ToHTML with the exported
// snapshot.
type contentFunc func(ctx context.Context, state hxdash.StateDict) (*render.Node, error)

// refresh is the handler body of components with a single output area.
func refresh(b *hxdash.Base, out hxdash.Channel, content contentFunc) hxdash.HandlerFunc {
	return func(cc *hxdash.CallbackContext, in hxdash.Values) hxdash.Result {
		n, err := content(cc.Context(), in.State())
		switch {
		case errors.Is(err, errNoSelection):
			return skip(err)
		case err != nil:
			return degrade(b, out, err)
		}
		return hxdash.Update().Set(out, n)
	}
}

// export renders the static card: the control values as read-only inputs,
// then the output area.
func export(ctx context.Context, b *hxdash.Base, state hxdash.StateDict, addHeader bool, content contentFunc, inputs ...*render.Node) (string, error) {
	var body []*render.Node
	if len(inputs) > 0 {
		cols := make([]*render.Node, len(inputs))
		for i, in := range inputs {
			cols[i] = render.Col(0, in)
		}
		body = append(body, render.Row(cols...))
	}
	if content != nil {
		n, err := content(ctx, state)
		switch {
		case errors.Is(err, errNoSelection):
			n = render.Placeholder("", "Nothing selected.")
		case err != nil:
			if n, err = b.Degrade("", err); err != nil {
				return "", err
			}
		}
		body = append(body, n)
	}
	return b.Export(ctx, addHeader, body...)
}

// contextOf returns every schema channel of b that is not a trigger, for use
// as a handler's context-only reads.
func contextOf(b *hxdash.Base, triggers ...hxdash.Channel) []hxdash.Channel {
	skip := make(map[hxdash.Channel]bool, len(triggers))
	for _, t := range triggers {
		skip[t] = true
	}
	var out []hxdash.Channel
	for _, f := range b.Fields() {
		if !skip[f.Ch] {
			out = append(out, f.Ch)
		}
	}
	return out
}

func heading(b *hxdash.Base) *render.Node {
	title := render.Heading(3, b.Title())
	if d := b.Description(); d != "" {
		title.Attrs = templ.Attributes{"title": d}
	}
	head := []*render.Node{render.Hideable(title, b.Hidden(HideTitle))}
	if s := b.Subtitle(); s != "" {
		sub := &render.Node{Kind: render.KindDiv, Class: "card-subtitle text-muted", Text: s}
		head = append(head, render.Hideable(sub, b.Hidden(HideSubtitle)))
	}
	return render.Header(head...)
}

func card(b *hxdash.Base, body ...*render.Node) *render.Node {
	return render.Card(heading(b), render.Body(body...))
}

// labelled puts a label above a control in a grid column.
func labelled(width int, label string, control *render.Node, hide bool) *render.Node {
	return render.Hideable(render.Col(width, render.Label(label), control), hide)
}

// degrade writes a capability placeholder into out. Other errors fail the
// handler, which leaves its outputs as rendered.
func degrade(b *hxdash.Base, out hxdash.Channel, err error) hxdash.Result {
	n, derr := b.Degrade(out.ID+"-unavailable", err)
	if derr != nil {
		return hxdash.Fail(derr)
	}
	return hxdash.Update().Set(out, n)
}

func depthOptions(n int) []render.Option {
	opts := make([]render.Option, n)
	for i := range opts {
		s := strconv.Itoa(i + 1)
		opts[i] = render.Option{Label: s, Value: s}
	}
	return opts
}

// clampDepth limits depth to [1, n]; zero or negative means all.
func clampDepth(depth, n int) int {
	if depth <= 0 || depth > n {
		return n
	}
	return depth
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func fmtPct(f float64) string {
	return fmt.Sprintf("%.1f%%", 100*f)
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

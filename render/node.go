// Package render is the tree-construction vocabulary components use to build
// their layouts: cards, rows, columns, selects, sliders, graphs, markdown and
// tables. Every leaf control carries an identifier, and any subtree can be
// hidden without removing it from the document, so channel ids stay
// addressable even when the element is not shown.
//
// Nodes implement templ.Component and render to plain HTML. The same tree is
// used for the live page (decorated with htmx attributes by the dashboard
// server) and for static export.
package render

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Kind identifies the element a Node renders as.
type Kind string

const (
	KindCard      Kind = "card"
	KindHeader    Kind = "header"
	KindBody      Kind = "body"
	KindFooter    Kind = "footer"
	KindRow       Kind = "row"
	KindCol       Kind = "col"
	KindDiv       Kind = "div"
	KindHeading   Kind = "heading"
	KindText      Kind = "text"
	KindLabel     Kind = "label"
	KindSelect    Kind = "select"
	KindSlider    Kind = "slider"
	KindChecklist Kind = "checklist"
	KindRadio     Kind = "radio"
	KindInput     Kind = "input"
	KindGraph     Kind = "graph"
	KindMarkdown  Kind = "markdown"
	KindTable     Kind = "table"
	KindRaw       Kind = "raw"
)

// Attributes a live update can target.
const (
	AttrValue    = "value"
	AttrOptions  = "options"
	AttrFigure   = "figure"
	AttrChildren = "children"
	AttrStyle    = "style"
	AttrData     = "data"
)

// Option is a single choice of a select, radio or checklist control.
type Option struct {
	Label string
	Value string
}

// Options builds options whose label equals their value.
func Options(values ...string) []Option {
	opts := make([]Option, len(values))
	for i, v := range values {
		opts[i] = Option{Label: v, Value: v}
	}
	return opts
}

// Node is one element of a layout tree.
type Node struct {
	Kind     Kind
	ID       string
	Class    string
	Text     string
	Level    int
	Value    any
	Options  []Option
	Min      float64
	Max      float64
	Step     float64
	Hidden   bool
	Disabled bool
	Figure   *Figure
	Table    *Table
	Attrs    templ.Attributes
	Children []*Node
}

// IsControl reports whether the node is an interactive control whose value
// the user can change.
func (n *Node) IsControl() bool {
	switch n.Kind {
	case KindSelect, KindSlider, KindChecklist, KindRadio, KindInput:
		return n.ID != "" && !n.Disabled
	}
	return false
}

// Clone returns a deep copy of the subtree. Figures and tables are shared;
// they are treated as immutable values.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attrs != nil {
		c.Attrs = make(templ.Attributes, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	if n.Options != nil {
		c.Options = append([]Option(nil), n.Options...)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return &c
}

// Apply sets one addressable attribute on the node. It returns false when
// the attribute does not make sense for the node's kind or the value has the
// wrong type.
func (n *Node) Apply(attr string, v any) bool {
	switch attr {
	case AttrValue:
		if n.Kind == KindMarkdown || n.Kind == KindText {
			s, ok := v.(string)
			if !ok {
				return false
			}
			n.Text = s
			return true
		}
		n.Value = v
		return true
	case AttrOptions:
		opts, ok := v.([]Option)
		if !ok {
			return false
		}
		n.Options = opts
		return true
	case AttrFigure:
		switch f := v.(type) {
		case *Figure:
			n.Figure = f
			return true
		case nil:
			n.Figure = nil
			return true
		}
		return false
	case AttrData:
		switch t := v.(type) {
		case *Table:
			n.Table = t
			return true
		case nil:
			n.Table = nil
			return true
		}
		return false
	case AttrChildren:
		switch c := v.(type) {
		case string:
			n.Text = c
			n.Children = nil
			return true
		case *Node:
			n.Text = ""
			n.Children = []*Node{c}
			return true
		case []*Node:
			n.Text = ""
			n.Children = c
			return true
		}
		return false
	case AttrStyle:
		switch s := v.(type) {
		case Style:
			n.Hidden = s.Hidden
			return true
		case bool:
			n.Hidden = !s
			return true
		}
		return false
	}
	return false
}

// Style is the visual property a handler toggles to show or hide a subtree.
type Style struct {
	Hidden bool
}

// Shown and Hidden are the two Style values handlers emit.
var (
	Shown  = Style{}
	Hidden = Style{Hidden: true}
)

// Render writes the node as HTML. A nil node renders nothing.
func (n *Node) Render(ctx context.Context, w io.Writer) error {
	if n == nil {
		return nil
	}
	var sb strings.Builder
	if err := n.write(ctx, &sb); err != nil {
		return err
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

var _ templ.Component = (*Node)(nil)

func (n *Node) write(ctx context.Context, sb *strings.Builder) error {
	switch n.Kind {
	case KindSelect:
		n.open(sb, "select", "form-select", `name="value"`)
		for _, o := range n.Options {
			sel := ""
			if valueString(n.Value) == o.Value {
				sel = " selected"
			}
			fmt.Fprintf(sb, `<option value="%s"%s>%s</option>`, esc(o.Value), sel, esc(o.Label))
		}
		sb.WriteString(`</select>`)
		return nil
	case KindSlider:
		n.open(sb, "input", "form-range", fmt.Sprintf(`type="range" name="value" min="%s" max="%s" step="%s" value="%s"`,
			num(n.Min), num(n.Max), num(n.Step), esc(valueString(n.Value))))
		return nil
	case KindInput:
		n.open(sb, "input", "form-control", fmt.Sprintf(`type="text" name="value" value="%s"`, esc(valueString(n.Value))))
		return nil
	case KindChecklist, KindRadio:
		typ := "checkbox"
		if n.Kind == KindRadio {
			typ = "radio"
		}
		n.open(sb, "div", "form-check")
		checked := checkedSet(n.Value)
		for _, o := range n.Options {
			c := ""
			if checked[o.Value] {
				c = " checked"
			}
			fmt.Fprintf(sb, `<label class="form-check-label"><input class="form-check-input" type="%s" name="value" value="%s"%s> %s</label>`,
				typ, esc(o.Value), c, esc(o.Label))
		}
		sb.WriteString(`</div>`)
		return nil
	case KindGraph:
		n.open(sb, "div", "graph")
		if n.Figure != nil {
			svg, err := n.Figure.SVG()
			if err != nil {
				return err
			}
			sb.WriteString(svg)
		}
		sb.WriteString(`</div>`)
		return nil
	case KindMarkdown:
		n.open(sb, "div", "markdown")
		sb.WriteString(Markdown(n.Text))
		sb.WriteString(`</div>`)
		return nil
	case KindTable:
		n.open(sb, "div", "table-responsive")
		if n.Table != nil {
			n.Table.write(sb)
		}
		sb.WriteString(`</div>`)
		return nil
	case KindRaw:
		sb.WriteString(n.Text)
		return nil
	case KindText:
		if n.ID == "" && n.Class == "" && !n.Hidden {
			sb.WriteString(esc(n.Text))
			return nil
		}
		n.open(sb, "span", "")
		sb.WriteString(esc(n.Text))
		sb.WriteString(`</span>`)
		return nil
	case KindHeading:
		level := n.Level
		if level < 1 || level > 6 {
			level = 3
		}
		tag := "h" + strconv.Itoa(level)
		n.open(sb, tag, "")
		sb.WriteString(esc(n.Text))
		return n.close(ctx, sb, tag)
	case KindLabel:
		n.open(sb, "label", "form-label")
		sb.WriteString(esc(n.Text))
		return n.close(ctx, sb, "label")
	}

	tag, class := "div", ""
	switch n.Kind {
	case KindCard:
		class = "card h-100"
	case KindHeader:
		class = "card-header"
	case KindBody:
		class = "card-body"
	case KindFooter:
		class = "card-footer"
	case KindRow:
		class = "row"
	case KindCol:
		class = "col"
	}
	n.open(sb, tag, class)
	if n.Text != "" {
		sb.WriteString(esc(n.Text))
	}
	return n.close(ctx, sb, tag)
}

func (n *Node) open(sb *strings.Builder, tag, class string, extra ...string) {
	sb.WriteString("<" + tag)
	if n.ID != "" {
		fmt.Fprintf(sb, ` id="%s"`, esc(n.ID))
	}
	cls := strings.TrimSpace(class + " " + n.Class)
	if cls != "" {
		fmt.Fprintf(sb, ` class="%s"`, esc(cls))
	}
	if n.Hidden {
		sb.WriteString(` style="display:none"`)
	}
	if n.Disabled {
		sb.WriteString(` disabled`)
	}
	for _, e := range extra {
		sb.WriteString(" " + e)
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := n.Attrs[k].(type) {
		case bool:
			if v {
				sb.WriteString(" " + esc(k))
			}
		default:
			fmt.Fprintf(sb, ` %s="%s"`, esc(k), esc(fmt.Sprint(v)))
		}
	}
	sb.WriteString(">")
}

func (n *Node) close(ctx context.Context, sb *strings.Builder, tag string) error {
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if err := c.write(ctx, sb); err != nil {
			return err
		}
	}
	sb.WriteString("</" + tag + ">")
	return nil
}

func esc(s string) string { return html.EscapeString(s) }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return num(t)
	case float32:
		return num(float64(t))
	}
	return fmt.Sprint(v)
}

func checkedSet(v any) map[string]bool {
	out := map[string]bool{}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			out[s] = true
		}
	case []any:
		for _, s := range t {
			out[valueString(s)] = true
		}
	case bool:
		if t {
			out["true"] = true
		}
	case nil:
	default:
		out[valueString(t)] = true
	}
	return out
}

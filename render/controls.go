package render

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// Card is the outer frame of a component.
func Card(children ...*Node) *Node { return &Node{Kind: KindCard, Children: children} }

// Header is a card header.
func Header(children ...*Node) *Node { return &Node{Kind: KindHeader, Children: children} }

// Body is a card body.
func Body(children ...*Node) *Node { return &Node{Kind: KindBody, Children: children} }

// Footer is a card footer.
func Footer(children ...*Node) *Node { return &Node{Kind: KindFooter, Children: children} }

// Row lays out columns horizontally.
func Row(children ...*Node) *Node { return &Node{Kind: KindRow, Children: children} }

// Col is a grid column. width is the bootstrap md width; 0 means auto.
func Col(width int, children ...*Node) *Node {
	n := &Node{Kind: KindCol, Children: children}
	if width > 0 {
		n.Class = "col-md-" + itoa(width)
	}
	return n
}

// Div is a plain container, optionally addressable.
func Div(id string, children ...*Node) *Node {
	return &Node{Kind: KindDiv, ID: id, Children: children}
}

// Heading is an h1..h6 title.
func Heading(level int, text string) *Node {
	return &Node{Kind: KindHeading, Level: level, Text: text}
}

// Text is an escaped text run.
func Text(s string) *Node { return &Node{Kind: KindText, Text: s} }

// Label is a form label.
func Label(s string) *Node { return &Node{Kind: KindLabel, Text: s} }

// Raw inserts trusted HTML.
func Raw(s string) *Node { return &Node{Kind: KindRaw, Text: s} }

// Select is a dropdown bound to id.
func Select(id string, options []Option, value any) *Node {
	return &Node{Kind: KindSelect, ID: id, Options: options, Value: value}
}

// Slider is a numeric range control bound to id.
func Slider(id string, min, max, step float64, value any) *Node {
	return &Node{Kind: KindSlider, ID: id, Min: min, Max: max, Step: step, Value: value}
}

// Checklist is a set of checkboxes bound to id. value is the list of checked
// option values.
func Checklist(id string, options []Option, value []string) *Node {
	return &Node{Kind: KindChecklist, ID: id, Options: options, Value: value}
}

// Switch is a single-option checklist used as a boolean toggle.
func Switch(id, label string, on bool) *Node {
	var v []string
	if on {
		v = []string{"true"}
	}
	return Checklist(id, []Option{{Label: label, Value: "true"}}, v)
}

// Radio is a group of radio buttons bound to id.
func Radio(id string, options []Option, value any) *Node {
	return &Node{Kind: KindRadio, ID: id, Options: options, Value: value}
}

// Input is a free text input bound to id.
func Input(id string, value any) *Node {
	return &Node{Kind: KindInput, ID: id, Value: value}
}

// DisabledInput renders a read-only input, used by static exports.
func DisabledInput(label string, value any) *Node {
	return Div("", Label(label), &Node{Kind: KindInput, Value: value, Disabled: true})
}

// Graph is an output surface that displays a Figure.
func Graph(id string, fig *Figure) *Node {
	return &Node{Kind: KindGraph, ID: id, Figure: fig}
}

// MarkdownBlock is an output surface that displays markdown text.
func MarkdownBlock(id, text string) *Node {
	return &Node{Kind: KindMarkdown, ID: id, Text: text}
}

// TableBlock is an output surface that displays a Table.
func TableBlock(id string, t *Table) *Node {
	return &Node{Kind: KindTable, ID: id, Table: t}
}

// Hideable wraps node in a container hidden when hide is set. The subtree
// is still emitted so its identifiers stay addressable.
func Hideable(node *Node, hide bool) *Node {
	if !hide {
		return node
	}
	return &Node{Kind: KindDiv, Hidden: true, Children: []*Node{node}}
}

// Markdown converts markdown source to HTML. Conversion failures fall back
// to escaped text.
func Markdown(src string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return esc(src)
	}
	return buf.String()
}

func itoa(i int) string { return num(float64(i)) }

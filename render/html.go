package render

import (
	"context"
	"fmt"
	"strings"
)

// Table is a simple header + rows grid used by contribution and description
// tables.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t *Table) write(sb *strings.Builder) {
	sb.WriteString(`<table class="table table-sm table-striped"><thead><tr>`)
	for _, c := range t.Columns {
		fmt.Fprintf(sb, `<th>%s</th>`, esc(c))
	}
	sb.WriteString(`</tr></thead><tbody>`)
	for _, r := range t.Rows {
		sb.WriteString(`<tr>`)
		for _, cell := range r {
			fmt.Fprintf(sb, `<td>%s</td>`, esc(cell))
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)
}

// String renders a node to a string.
func String(ctx context.Context, n *Node) (string, error) {
	var sb strings.Builder
	if err := n.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// StaticCard builds the card used by static exports: a title, an optional
// subtitle and the content.
func StaticCard(title, subtitle string, content ...*Node) *Node {
	head := []*Node{Heading(3, title)}
	if subtitle != "" {
		head = append(head, &Node{Kind: KindDiv, Class: "card-subtitle text-muted", Text: subtitle})
	}
	return Card(Header(head...), Body(content...))
}

// Placeholder is the in-place explanatory message a component renders when
// it cannot produce its normal output.
func Placeholder(id, message string) *Node {
	return &Node{Kind: KindDiv, ID: id, Class: "alert alert-secondary placeholder-message", Text: message}
}

// Document wraps an HTML fragment in a standalone page with the stylesheet
// header. extraHead is inserted verbatim inside <head>.
func Document(title, body string, extraHead ...string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString(`<meta charset="utf-8">` + "\n")
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", esc(title))
	sb.WriteString(`<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">` + "\n")
	for _, h := range extraHead {
		sb.WriteString(h + "\n")
	}
	sb.WriteString("</head>\n<body>\n<div class=\"container-fluid\">\n")
	sb.WriteString(body)
	sb.WriteString("\n</div>\n</body>\n</html>\n")
	return sb.String()
}

// Walk visits n and all descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Index maps element ids to the nodes of a layout tree so live updates can
// re-render a single element.
type Index map[string]*Node

// NewIndex indexes every node with an id in the given trees. Later trees win
// on duplicate ids.
func NewIndex(trees ...*Node) Index {
	idx := Index{}
	for _, t := range trees {
		Walk(t, func(n *Node) bool {
			if n.ID != "" {
				idx[n.ID] = n
			}
			return true
		})
	}
	return idx
}

// Controls returns the ids of all interactive controls in the index.
func (idx Index) Controls() []string {
	var out []string
	for id, n := range idx {
		if n.IsControl() {
			out = append(out, id)
		}
	}
	return out
}

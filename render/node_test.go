package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRendersSelectedOption(t *testing.T) {
	n := Select("index-abc", Options("1", "2", "3"), "2")
	out, err := String(context.Background(), n)
	require.NoError(t, err)

	assert.Contains(t, out, `id="index-abc"`)
	assert.Contains(t, out, `<option value="2" selected>2</option>`)
	assert.NotContains(t, out, `<option value="1" selected>`)
}

func TestHideableKeepsIDs(t *testing.T) {
	n := Hideable(Slider("depth-x", 1, 10, 1, 5), true)
	out, err := String(context.Background(), n)
	require.NoError(t, err)

	assert.Contains(t, out, `style="display:none"`)
	assert.Contains(t, out, `id="depth-x"`)

	shown := Hideable(Slider("depth-x", 1, 10, 1, 5), false)
	out, err = String(context.Background(), shown)
	require.NoError(t, err)
	assert.NotContains(t, out, "display:none")
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		attr string
		val  any
		ok   bool
	}{
		{"select value", Select("s", nil, "a"), AttrValue, "b", true},
		{"markdown text", MarkdownBlock("m", ""), AttrValue, "**x**", true},
		{"markdown non-string", MarkdownBlock("m", ""), AttrValue, 3, false},
		{"graph figure", Graph("g", nil), AttrFigure, &Figure{}, true},
		{"graph wrong type", Graph("g", nil), AttrFigure, "nope", false},
		{"style hide", Div("d"), AttrStyle, Hidden, true},
		{"options", Select("s", nil, nil), AttrOptions, Options("x"), true},
		{"unknown attr", Div("d"), "clickData", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.node.Apply(tt.attr, tt.val))
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Card(Body(Select("s", Options("a", "b"), "a")))
	c := orig.Clone()
	idx := NewIndex(c)
	require.Contains(t, idx, "s")
	idx["s"].Apply(AttrValue, "b")

	assert.Equal(t, "a", NewIndex(orig)["s"].Value)
	assert.Equal(t, "b", NewIndex(c)["s"].Value)
}

func TestIndexControls(t *testing.T) {
	tree := Card(
		Body(
			Select("a", nil, nil),
			Graph("g", nil),
			Hideable(Input("b", ""), true),
			DisabledInput("c", "1"),
		),
	)
	ids := NewIndex(tree).Controls()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMarkdownBlock(t *testing.T) {
	out, err := String(context.Background(), MarkdownBlock("m", "**bold**"))
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>bold</strong>")
}

func TestTableEscapes(t *testing.T) {
	tb := TableBlock("t", &Table{Columns: []string{"Feature"}, Rows: [][]string{{"<x>"}}})
	out, err := String(context.Background(), tb)
	require.NoError(t, err)
	assert.Contains(t, out, "&lt;x&gt;")
}

func TestFigureSVG(t *testing.T) {
	fig := &Figure{Title: "Importances", Bars: []Bar{{"age", 0.4}, {"fare", -0.2}}, Signed: true, PositiveIsGood: true}
	svg, err := fig.SVG()
	require.NoError(t, err)
	assert.Contains(t, svg, "<svg")

	empty, err := (&Figure{}).SVG()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDocumentWrapsBody(t *testing.T) {
	doc := Document("Report", "<p>hi</p>")
	assert.Contains(t, doc, "<title>Report</title>")
	assert.Contains(t, doc, "<p>hi</p>")
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
}

package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Bar is one labelled value of a bar figure.
type Bar struct {
	Label string
	Value float64
}

// Figure is a renderer-independent bar chart description. Components build
// figures from analytical artifacts; the renderer turns them into SVG.
type Figure struct {
	Title     string
	Bars      []Bar
	Highlight string // label of the bar drawn in the accent colour
	// PositiveIsGood colours positive bars green and negative bars red.
	// When false the colours are swapped.
	PositiveIsGood bool
	Signed         bool
}

var (
	barColor       = drawing.ColorFromHex("1f77b4")
	highlightColor = drawing.ColorFromHex("ff7f0e")
	goodColor      = drawing.ColorFromHex("2ca02c")
	badColor       = drawing.ColorFromHex("d62728")
)

const (
	figureHeight  = 400
	barWidth      = 36
	barSpacing    = 12
	minFigureSize = 480
)

// Labels returns the bar labels in display order.
func (f *Figure) Labels() []string {
	out := make([]string, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Label
	}
	return out
}

// SVG renders the figure. An empty figure renders to an empty string.
func (f *Figure) SVG() (string, error) {
	if f == nil || len(f.Bars) == 0 {
		return "", nil
	}
	bars := make([]chart.Value, len(f.Bars))
	hasNegative := false
	for i, b := range f.Bars {
		v := b.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v < 0 {
			hasNegative = true
		}
		bars[i] = chart.Value{Label: b.Label, Value: v, Style: f.barStyle(b)}
	}
	// go-chart refuses a zero-height range; pad flat charts with an
	// invisible bar.
	if flat(bars) {
		pad := bars[0].Value + 1
		if pad <= 0 {
			pad = bars[0].Value - 1
		}
		bars = append(bars, chart.Value{Label: " ", Value: pad, Style: chart.Style{FillColor: drawing.ColorTransparent, StrokeColor: drawing.ColorTransparent}})
	}

	width := len(bars)*(barWidth+barSpacing) + 120
	if width < minFigureSize {
		width = minFigureSize
	}
	bc := chart.BarChart{
		Title:      f.Title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      width,
		Height:     figureHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Bars:       bars,
	}
	if hasNegative || f.Signed {
		bc.UseBaseValue = true
		bc.BaseValue = 0
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("render figure %q: %w", f.Title, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (f *Figure) barStyle(b Bar) chart.Style {
	col := barColor
	switch {
	case f.Highlight != "" && b.Label == f.Highlight:
		col = highlightColor
	case f.Signed:
		good := b.Value >= 0
		if !f.PositiveIsGood {
			good = !good
		}
		if good {
			col = goodColor
		} else {
			col = badColor
		}
	}
	return chart.Style{FillColor: col, StrokeColor: col}
}

func flat(bars []chart.Value) bool {
	for _, b := range bars[1:] {
		if b.Value != bars[0].Value {
			return false
		}
	}
	return true
}

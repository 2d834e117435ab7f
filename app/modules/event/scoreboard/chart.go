package scoreboard

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette colors the final results chart.
type Palette struct {
	Background drawing.Color
	Bar        drawing.Color
	Text       drawing.Color
}

// DefaultPalette matches Discord's dark theme.
var DefaultPalette = Palette{
	Background: drawing.ColorFromHex("313338"),
	Bar:        drawing.ColorFromHex("c8aa6e"),
	Text:       drawing.ColorFromHex("f2f3f5"),
}

// RenderChart draws a PNG bar chart of team scores in rank order.
func RenderChart(b Board, palette Palette) ([]byte, error) {
	if len(b.Teams) == 0 {
		return renderEmptyChart(palette)
	}

	bars := make([]chart.Value, len(b.Teams))
	lo, hi := 0.0, 0.0
	for i, t := range b.Teams {
		v := float64(t.Score)
		lo, hi = min(lo, v), max(hi, v)
		bars[i] = chart.Value{
			Label: t.Name,
			Value: v,
			Style: chart.Style{FillColor: palette.Bar, StrokeColor: palette.Bar},
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	graph := chart.BarChart{
		Title:      b.EventName,
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      max(400, 120*len(bars)),
		Height:     400,
		BarWidth:   60,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40},
		},
		Canvas: chart.Style{FillColor: palette.Background},
		XAxis:  chart.Style{FontColor: palette.Text},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: palette.Text},
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render scoreboard chart: %w", err)
	}
	return buf.Bytes(), nil
}

func renderEmptyChart(palette Palette) ([]byte, error) {
	const msg = "No teams took part"

	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render empty chart: %w", err)
	}
	return buf.Bytes(), nil
}

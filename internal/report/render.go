package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"guild-metrics/internal/domain"
)

// Renderer turns a dataset into picture bytes. Image rendering lives outside this
// module; TextRenderer is the terminal stand-in.
type Renderer interface {
	Render(ctx context.Context, ds Dataset) ([]byte, error)
}

// TextRenderer draws line charts with asciigraph and bar charts as one row per label.
type TextRenderer struct {
	Columns int
	Rows    int
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{Columns: 60, Rows: 12}
}

func (r *TextRenderer) Render(ctx context.Context, ds Dataset) ([]byte, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.RenderError{Reason: "cancelled", Err: err}
	}

	if len(ds.Values) == 0 {
		return []byte(ds.Title + "\nNo data available\n"), nil
	}

	switch ds.Chart {
	case ChartLine:
		return []byte(r.line(ds) + "\n"), nil
	case ChartBar:
		return []byte(r.bars(ds)), nil
	}
	return nil, &domain.RenderError{Reason: fmt.Sprintf("unsupported chart kind %q", ds.Chart)}
}

func (r *TextRenderer) line(ds Dataset) string {
	data := make([]float64, len(ds.Values))
	for i, v := range ds.Values {
		data[i] = float64(v)
	}

	columns := r.Columns
	if columns < 20 {
		columns = 20
	}
	rows := r.Rows
	if rows < 3 {
		rows = 3
	}

	caption := ds.Title
	if n := len(ds.Labels); n > 0 {
		caption = fmt.Sprintf("%s (%s - %s)", ds.Title, ds.Labels[0], ds.Labels[n-1])
	}

	opts := []asciigraph.Option{
		asciigraph.Height(rows),
		asciigraph.Width(columns),
		asciigraph.Precision(0),
		asciigraph.Caption(caption),
	}
	if ds.Style.BeginAtZero {
		opts = append(opts, asciigraph.LowerBound(0))
	}
	return asciigraph.Plot(data, opts...)
}

func (r *TextRenderer) bars(ds Dataset) string {
	var max int64
	labelWidth := 0
	for i, v := range ds.Values {
		if v > max {
			max = v
		}
		if l := len([]rune(ds.Labels[i])); l > labelWidth {
			labelWidth = l
		}
	}

	columns := r.Columns
	if columns < 10 {
		columns = 10
	}

	var sb strings.Builder
	sb.WriteString(ds.Title)
	sb.WriteByte('\n')
	for i, v := range ds.Values {
		width := 0
		if max > 0 {
			width = int(v * int64(columns) / max)
		}
		fmt.Fprintf(&sb, "%-*s | %s %d\n", labelWidth, ds.Labels[i], strings.Repeat("█", width), v)
	}
	return sb.String()
}

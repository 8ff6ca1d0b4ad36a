package chart

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/storage"
)

//go:embed templates/chart.html
var templateFS embed.FS

const (
	plotWidth  = 900
	plotHeight = 240
	marginLeft = 70
	marginTop  = 20
	marginBot  = 40
)

// Renderer writes a visual artifact for a history series.
type Renderer interface {
	Render(series *history.Series, title, outputPath string) error
}

// RenderError is returned when a chart cannot be produced or written.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering chart %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// HTMLRenderer draws three stacked line charts (hits, kudos, comments against
// days since publish) as inline SVG in a standalone HTML page.
type HTMLRenderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

// NewHTMLRenderer parses the embedded page template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/chart.html")
	if err != nil {
		return nil, fmt.Errorf("parsing chart template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, md: goldmark.New()}, nil
}

// Render writes the chart page to outputPath atomically.
func (r *HTMLRenderer) Render(series *history.Series, title, outputPath string) error {
	var buf bytes.Buffer
	if err := r.WriteTo(&buf, series, title); err != nil {
		return &RenderError{Path: outputPath, Err: err}
	}
	if err := storage.WriteFileAtomic(outputPath, buf.Bytes(), 0o644); err != nil {
		return &RenderError{Path: outputPath, Err: err}
	}
	return nil
}

// WriteTo renders the chart page to w.
func (r *HTMLRenderer) WriteTo(w io.Writer, series *history.Series, title string) error {
	if series == nil || len(series.Samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	summary, err := r.summary(series.Latest())
	if err != nil {
		return err
	}

	data := map[string]any{
		"Title":   title,
		"Summary": summary,
		"Panels": []panel{
			buildPanel("Hits", series.Samples, func(s history.Sample) int { return s.Hits }),
			buildPanel("Kudos", series.Samples, func(s history.Sample) int { return s.Kudos }),
			buildPanel("Comments", series.Samples, func(s history.Sample) int { return s.Comments }),
		},
	}
	return r.tmpl.Execute(w, data)
}

func (r *HTMLRenderer) summary(latest history.Sample) (template.HTML, error) {
	src := fmt.Sprintf("**Hits:** %s  \n**Chapters:** %d  \n**Words:** %s\n",
		humanize.Comma(int64(latest.Hits)),
		latest.Chapters,
		humanize.Comma(int64(latest.Words)),
	)
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return template.HTML(buf.String()), nil
}

type annotation struct {
	X, Y float64
	Text string
}

type tick struct {
	Pos   float64
	Label string
}

type panel struct {
	Label       string
	Width       int
	Height      int
	Left        int
	Top         int
	Bottom      float64
	Right       float64
	Points      string
	Annotations []annotation
	XTicks      []tick
	YTicks      []tick
}

func buildPanel(label string, samples []history.Sample, value func(history.Sample) int) panel {
	minDay, maxDay := samples[0].DaysSincePublish, samples[len(samples)-1].DaysSincePublish
	maxVal := 0
	for _, s := range samples {
		if v := value(s); v > maxVal {
			maxVal = v
		}
	}
	daySpan := maxDay - minDay
	if daySpan == 0 {
		daySpan = 1
	}
	if maxVal == 0 {
		maxVal = 1
	}

	innerW := float64(plotWidth - marginLeft - 20)
	innerH := float64(plotHeight - marginTop - marginBot)
	x := func(day int) float64 {
		return float64(marginLeft) + innerW*float64(day-minDay)/float64(daySpan)
	}
	y := func(v int) float64 {
		return float64(marginTop) + innerH - innerH*float64(v)/float64(maxVal)
	}

	p := panel{
		Label:  label,
		Width:  plotWidth,
		Height: plotHeight,
		Left:   marginLeft,
		Top:    marginTop,
		Bottom: float64(marginTop) + innerH,
		Right:  float64(marginLeft) + innerW,
	}

	coords := make([]string, 0, len(samples))
	for _, s := range samples {
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", x(s.DaysSincePublish), y(value(s))))
		if s.ChapterAdded {
			p.Annotations = append(p.Annotations, annotation{
				X:    x(s.DaysSincePublish),
				Y:    y(value(s)) - 6,
				Text: strconv.Itoa(s.Chapters),
			})
		}
	}
	p.Points = strings.Join(coords, " ")

	for i := 0; i <= 4; i++ {
		day := minDay + (maxDay-minDay)*i/4
		p.XTicks = append(p.XTicks, tick{Pos: x(day), Label: strconv.Itoa(day)})
		v := maxVal * i / 4
		p.YTicks = append(p.YTicks, tick{Pos: y(v), Label: humanize.Comma(int64(v))})
	}
	return p
}

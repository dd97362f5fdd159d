package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/autovol/internal/model"
)

// LineFormatter writes one adjustment per line, suitable for piping.
type LineFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewLineFormatter creates a new line formatter.
func NewLineFormatter(opts FormatterOptions) *LineFormatter {
	f := &LineFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("line").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes adjustments one per line.
func (f *LineFormatter) Format(w io.Writer, adjustments []model.Adjustment) error {
	for i := range adjustments {
		line := f.formatLine(i+1, &adjustments[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single adjustment line.
func (f *LineFormatter) formatLine(index int, a *model.Adjustment) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, a)); err == nil {
			return buf.String()
		}
	}

	// Default format: [index] [time] [run] from -> to (target) score
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(a.Time()))
	}
	if f.opts.ShowRun && a.RunID != "" {
		parts = append(parts, shortID(a.RunID))
	}

	parts = append(parts,
		fmt.Sprintf("%s %d -> %d (target %d)", directionArrow(a.Direction()), a.From, a.To, a.Target),
		fmt.Sprintf("%.1f dB", a.Score))

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Adjustment   *model.Adjustment
	Direction    string
	RelativeTime string
}

func newTemplateData(index int, a *model.Adjustment) templateData {
	return templateData{
		Index:        index,
		Adjustment:   a,
		Direction:    a.Direction(),
		RelativeTime: relativeTime(a.Time()),
	}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"reltime": relativeTime,
		"arrow":   directionArrow,
		"short":   shortID,
		"db": func(score float64) string {
			return fmt.Sprintf("%.1f dB", score)
		},
	}
}

func directionArrow(direction string) string {
	if direction == model.DirectionUp {
		return "▲"
	}
	return "▼"
}

// shortID returns the random tail of a ULID, which is what differs between
// IDs created close together.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// relativeTime returns a compact relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return "unknown"
	}

	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}

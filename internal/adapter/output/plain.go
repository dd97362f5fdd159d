package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/autovol/internal/model"
)

// PlainFormatter formats adjustments as an aligned table.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes adjustments as a table with a header row.
func (f *PlainFormatter) Format(w io.Writer, adjustments []model.Adjustment) error {
	if f.template != nil {
		for i := range adjustments {
			if err := f.template.Execute(w, newTemplateData(i+1, &adjustments[i])); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	header := []string{"WHEN", "DIR", "FROM", "TO", "TARGET", "SCORE"}
	if f.opts.ShowIndex {
		header = append([]string{"#"}, header...)
	}
	if f.opts.ShowRun {
		header = append(header, "RUN")
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	for i := range adjustments {
		a := &adjustments[i]
		row := []string{
			humanize.Time(a.Time()),
			a.Direction(),
			fmt.Sprintf("%d", a.From),
			fmt.Sprintf("%d", a.To),
			fmt.Sprintf("%d", a.Target),
			fmt.Sprintf("%.1f", a.Score),
		}
		if f.opts.ShowIndex {
			row = append([]string{fmt.Sprintf("%d", i+1)}, row...)
		}
		if f.opts.ShowRun {
			row = append(row, shortID(a.RunID))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// FormatField outputs a specific field from an adjustment.
func FormatField(a *model.Adjustment, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return a.ID
	case "run", "run_id":
		return a.RunID
	case "time", "timestamp":
		return a.Time().Format("2006-01-02T15:04:05.000Z07:00")
	case "score":
		return fmt.Sprintf("%.2f", a.Score)
	case "from":
		return fmt.Sprintf("%d", a.From)
	case "to":
		return fmt.Sprintf("%d", a.To)
	case "target":
		return fmt.Sprintf("%d", a.Target)
	case "direction", "dir":
		return a.Direction()
	case "player":
		return a.Player
	default:
		return fmt.Sprintf("%d -> %d", a.From, a.To)
	}
}

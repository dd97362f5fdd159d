package output

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/autovol/internal/core"
)

// FormatSummary writes history statistics. JSON and YAML formats emit the
// summary as a document, every other format prints a short text report.
func FormatSummary(w io.Writer, format FormatType, s core.Summary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	}

	if s.Count == 0 {
		_, err := fmt.Fprintln(w, "No adjustments")
		return err
	}

	lines := []string{
		fmt.Sprintf("Adjustments: %s (%s up, %s down)",
			humanize.Comma(int64(s.Count)), humanize.Comma(int64(s.Up)), humanize.Comma(int64(s.Down))),
		fmt.Sprintf("Runs:        %d", s.Runs),
		fmt.Sprintf("Volume:      %d to %d", s.MinVolume, s.MaxVolume),
		fmt.Sprintf("Mean score:  %.1f dB", s.MeanScore),
		fmt.Sprintf("First:       %s", humanize.Time(s.First)),
		fmt.Sprintf("Last:        %s", humanize.Time(s.Last)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

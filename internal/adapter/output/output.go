// Package output provides output formatters for volume adjustments and
// daemon status.
package output

import (
	"io"

	"github.com/jmylchreest/autovol/internal/model"
)

// Formatter formats adjustments for output.
type Formatter interface {
	// Format writes formatted adjustments to the writer.
	Format(w io.Writer, adjustments []model.Adjustment) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatLine  FormatType = "line"
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatPlain:
		return NewPlainFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatLine:
		fallthrough
	default:
		return NewLineFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom template for line/plain format
	ShowIndex bool   // Show 1-based index prefix
	ShowTime  bool   // Show relative time
	ShowRun   bool   // Show the daemon run ID
	Separator string // Field separator for line format
}

// DefaultFormatterOptions returns sensible defaults for line output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		ShowTime:  true,
		ShowRun:   false,
		Separator: " | ",
	}
}

package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/autovol/internal/model"
)

// JSONFormatter formats adjustments as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes adjustments as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, adjustments []model.Adjustment) error {
	if adjustments == nil {
		adjustments = []model.Adjustment{}
	}
	return writeJSON(w, adjustments)
}

// FormatSingle writes a single adjustment as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, a *model.Adjustment) error {
	return writeJSON(w, a)
}

// YAMLFormatter formats adjustments as YAML.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes adjustments as a YAML sequence.
func (f *YAMLFormatter) Format(w io.Writer, adjustments []model.Adjustment) error {
	if adjustments == nil {
		adjustments = []model.Adjustment{}
	}
	return writeYAML(w, adjustments)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// Encode writes v as a JSON or YAML document.
func Encode(w io.Writer, format FormatType, v any) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatYAML:
		return writeYAML(w, v)
	default:
		return fmt.Errorf("format %q cannot encode documents (use json or yaml)", format)
	}
}

package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/autovol/internal/model"
)

// IDsFormatter outputs just the adjustment IDs, one per line.
// Useful for piping to other commands (e.g., autovol history show).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes adjustment IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, adjustments []model.Adjustment) error {
	for _, a := range adjustments {
		if _, err := fmt.Fprintln(w, a.ID); err != nil {
			return err
		}
	}
	return nil
}

// Package input provides sample sources for offline runs of the control
// pipeline, such as replaying a recording or raw PCM piped on stdin.
package input

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/autovol/internal/audio"
	"github.com/jmylchreest/autovol/internal/control"
)

// Stdin is the path that selects raw PCM on standard input.
const Stdin = "-"

// SourceOptions configures NewSource.
type SourceOptions struct {
	SampleRate int  // Rate decoded recordings are resampled to
	BlockSize  int  // Samples per block
	Loop       bool // Restart recordings at end of file
}

// NewSource returns a SampleSource for path.
// "-" reads raw S16LE mono PCM from stdin, .raw and .pcm files are read the
// same way, and anything else is decoded as a recording.
func NewSource(path string, opts SourceOptions, logger *slog.Logger) (control.SampleSource, error) {
	if opts.BlockSize <= 0 {
		return nil, &AdapterError{Source: path, Message: "block size must be positive"}
	}

	if path == Stdin {
		return NewPCMSource("stdin", io.NopCloser(os.Stdin), opts.BlockSize), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".raw", ".pcm":
		f, err := os.Open(path)
		if err != nil {
			return nil, &AdapterError{Source: path, Message: "failed to open PCM file", Err: err}
		}
		return NewPCMSource(path, f, opts.BlockSize), nil
	case ".wav", ".mp3", ".flac", ".ogg":
		return audio.NewFileSource(audio.FileSourceConfig{
			Path:       path,
			SampleRate: opts.SampleRate,
			BlockSize:  opts.BlockSize,
			Loop:       opts.Loop,
		}, logger), nil
	default:
		return nil, &AdapterError{
			Source:  path,
			Message: "unsupported file type (use .wav, .mp3, .flac, .ogg, .raw or -)",
		}
	}
}

// AdapterError represents an input-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	msg := e.Source + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

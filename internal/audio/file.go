package audio

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// FileSourceConfig configures a recording replay.
type FileSourceConfig struct {
	Path       string
	SampleRate int  // Rate the recording is resampled to
	BlockSize  int  // Samples returned per ReadBlock
	Loop       bool // Restart from the beginning at end of file
}

// FileSource is a control.SampleSource that replays a recording as
// consecutive mono int16 blocks.
//
// Without Loop the final block may be short, and every read after the end
// of the recording returns io.EOF.
type FileSource struct {
	cfg    FileSourceConfig
	logger *slog.Logger

	mu       sync.Mutex
	decoded  beep.StreamSeekCloser
	streamer beep.Streamer
	format   beep.Format
	buf      [][2]float64
	eof      bool
}

// NewFileSource creates a closed FileSource.
func NewFileSource(cfg FileSourceConfig, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{cfg: cfg, logger: logger}
}

// Open decodes the recording header and prepares resampling.
func (f *FileSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.decoded != nil {
		return nil
	}
	if f.cfg.SampleRate <= 0 || f.cfg.BlockSize <= 0 {
		return fmt.Errorf("invalid replay format: %d Hz, %d samples", f.cfg.SampleRate, f.cfg.BlockSize)
	}

	decoded, format, err := decodeFile(f.cfg.Path)
	if err != nil {
		return err
	}

	f.decoded = decoded
	f.format = format
	f.streamer = f.resampled()
	f.buf = make([][2]float64, f.cfg.BlockSize)
	f.eof = false

	f.logger.Debug("replaying recording",
		"path", f.cfg.Path,
		"source_rate", int(format.SampleRate),
		"channels", format.NumChannels,
		"sample_rate", f.cfg.SampleRate,
		"loop", f.cfg.Loop)
	return nil
}

// Format returns the format of the recording as decoded, before resampling.
func (f *FileSource) Format() beep.Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// ReadBlock returns the next block of samples, with stereo mixed to mono.
func (f *FileSource) ReadBlock() ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.decoded == nil {
		return nil, ErrClosed
	}
	if f.eof {
		return nil, io.EOF
	}

	n, err := f.fill()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		f.eof = true
		return nil, io.EOF
	}

	block := make([]int16, n)
	for i := range block {
		block[i] = toInt16((f.buf[i][0] + f.buf[i][1]) / 2)
	}
	return block, nil
}

// fill streams up to one block into f.buf, rewinding at end of file when
// looping. Returns the number of frames filled.
func (f *FileSource) fill() (int, error) {
	filled := 0
	rewound := false
	for filled < len(f.buf) {
		n, ok := f.streamer.Stream(f.buf[filled:])
		filled += n
		if ok {
			if n == 0 {
				break
			}
			continue
		}

		if err := f.streamer.Err(); err != nil {
			return 0, fmt.Errorf("failed to decode %s: %w", f.cfg.Path, err)
		}
		// A second rewind without progress means an empty recording
		if !f.cfg.Loop || (rewound && filled == 0) {
			break
		}
		if err := f.decoded.Seek(0); err != nil {
			return 0, fmt.Errorf("failed to rewind %s: %w", f.cfg.Path, err)
		}
		// The resampler latches the end of its input, so it is rebuilt
		f.streamer = f.resampled()
		rewound = true
	}
	return filled, nil
}

// resampled wraps the decoder in a resampler when the recording rate differs
// from the configured one.
func (f *FileSource) resampled() beep.Streamer {
	target := beep.SampleRate(f.cfg.SampleRate)
	if f.format.SampleRate == target {
		return f.decoded
	}
	return beep.Resample(4, f.format.SampleRate, target, f.decoded)
}

// Close releases the decoder and the underlying file.
func (f *FileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.decoded == nil {
		return nil
	}
	err := f.decoded.Close()
	f.decoded = nil
	f.streamer = nil
	f.buf = nil
	return err
}

// decodeFile opens path and picks a decoder by extension.
// Supports WAV, OGG, and MP3 formats.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open recording: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(file)
	case ".ogg":
		streamer, format, err = vorbis.Decode(file)
	case ".mp3":
		streamer, format, err = mp3.Decode(file)
	default:
		_ = file.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format: %s", ext)
	}
	if err != nil {
		_ = file.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return streamer, format, nil
}

// toInt16 converts a [-1, 1] sample to int16, clipping out-of-range values.
func toInt16(v float64) int16 {
	v = math.Round(v * 32767)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BlockReader is the read side of a sample source.
type BlockReader interface {
	ReadBlock() ([]int16, error)
}

// RecordConfig configures Record.
type RecordConfig struct {
	SampleRate int
	Samples    int           // Stop after this many samples (0 = until ctx is done or EOF)
	Poll       time.Duration // Wait after an empty block
}

// wavPCM is the WAVE format tag for integer PCM.
const wavPCM = 1

// Record copies blocks from src into a 16-bit mono WAV file written to w,
// until cfg.Samples have been written, src reports io.EOF, or ctx is done.
// The source must already be open. Returns the number of samples written.
func Record(ctx context.Context, src BlockReader, w io.WriteSeeker, cfg RecordConfig) (int, error) {
	if cfg.SampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}

	enc := wav.NewEncoder(w, cfg.SampleRate, 16, 1, wavPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: cfg.SampleRate},
		SourceBitDepth: 16,
	}

	written, err := recordLoop(ctx, src, enc, buf, cfg)
	if cerr := enc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to finish WAV file: %w", cerr)
	}
	return written, err
}

func recordLoop(ctx context.Context, src BlockReader, enc *wav.Encoder, buf *goaudio.IntBuffer, cfg RecordConfig) (int, error) {
	written := 0
	for cfg.Samples == 0 || written < cfg.Samples {
		block, err := src.ReadBlock()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("failed to read samples: %w", err)
		}

		if len(block) == 0 {
			select {
			case <-ctx.Done():
				return written, nil
			case <-time.After(cfg.Poll):
			}
			continue
		}

		if cfg.Samples > 0 {
			block = block[:min(len(block), cfg.Samples-written)]
		}
		buf.Data = buf.Data[:0]
		for _, s := range block {
			buf.Data = append(buf.Data, int(s))
		}
		if err := enc.Write(buf); err != nil {
			return written, fmt.Errorf("failed to write WAV data: %w", err)
		}
		written += len(block)

		if ctx.Err() != nil {
			return written, nil
		}
	}
	return written, nil
}

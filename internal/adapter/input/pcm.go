package input

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// PCMSource is a control.SampleSource reading raw little-endian signed
// 16-bit mono PCM from a stream.
//
// The final block may be short. Reads after the stream ends return io.EOF.
type PCMSource struct {
	name      string
	reader    io.Reader
	blockSize int

	mu     sync.Mutex
	buf    *bufio.Reader
	raw    []byte
	opened bool
	eof    bool
}

// NewPCMSource creates a PCMSource over r. If r is an io.Closer it is closed
// by Close.
func NewPCMSource(name string, r io.Reader, blockSize int) *PCMSource {
	return &PCMSource{
		name:      name,
		reader:    r,
		blockSize: blockSize,
	}
}

// Name returns the source identifier.
func (p *PCMSource) Name() string {
	return p.name
}

// Open prepares the stream for reading. It is idempotent.
func (p *PCMSource) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opened {
		return nil
	}
	if p.blockSize <= 0 {
		return &AdapterError{Source: p.name, Message: "block size must be positive"}
	}
	p.buf = bufio.NewReaderSize(p.reader, p.blockSize*2)
	p.raw = make([]byte, p.blockSize*2)
	p.opened = true
	return nil
}

// ReadBlock returns the next block of samples.
func (p *PCMSource) ReadBlock() ([]int16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return nil, &AdapterError{Source: p.name, Message: "source not open"}
	}
	if p.eof {
		return nil, io.EOF
	}

	n, err := io.ReadFull(p.buf, p.raw)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		p.eof = true
	case errors.Is(err, io.EOF):
		p.eof = true
		return nil, io.EOF
	default:
		return nil, &AdapterError{Source: p.name, Message: "failed to read PCM", Err: err}
	}

	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(p.raw[i*2:]))
	}
	return samples, nil
}

// Close releases the underlying reader.
func (p *PCMSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opened = false
	if c, ok := p.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

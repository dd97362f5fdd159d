package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/autovol/internal/audio"
)

func encodePCM(samples ...int16) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestPCMSource_Blocks(t *testing.T) {
	src := NewPCMSource("test", bytes.NewReader(encodePCM(1, -2, 3, -4, 5)), 2)
	require.NoError(t, src.Open())

	block, err := src.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -2}, block)

	block, err = src.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []int16{3, -4}, block)

	// Short final block
	block, err = src.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []int16{5}, block)

	_, err = src.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
	_, err = src.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPCMSource_ExactMultipleEndsWithEOF(t *testing.T) {
	src := NewPCMSource("test", bytes.NewReader(encodePCM(100, 200)), 2)
	require.NoError(t, src.Open())

	block, err := src.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []int16{100, 200}, block)

	_, err = src.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPCMSource_NotOpen(t *testing.T) {
	src := NewPCMSource("test", bytes.NewReader(nil), 4)

	_, err := src.ReadBlock()
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Contains(t, err.Error(), "not open")
}

func TestPCMSource_InvalidBlockSize(t *testing.T) {
	assert.Error(t, NewPCMSource("test", bytes.NewReader(nil), 0).Open())
}

func TestPCMSource_ReadError(t *testing.T) {
	boom := errors.New("boom")
	src := NewPCMSource("test", io.MultiReader(bytes.NewReader(encodePCM(1)), errReader{boom}), 4)
	require.NoError(t, src.Open())

	_, err := src.ReadBlock()
	assert.ErrorIs(t, err, boom)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestPCMSource_CloseClosesReader(t *testing.T) {
	r := &closeRecorder{Reader: bytes.NewReader(nil)}
	src := NewPCMSource("test", r, 4)
	require.NoError(t, src.Open())
	require.NoError(t, src.Close())
	assert.True(t, r.closed)
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "noise.raw")
	require.NoError(t, os.WriteFile(rawPath, encodePCM(7, 8, 9), 0o600))

	opts := SourceOptions{SampleRate: 16000, BlockSize: 2}

	t.Run("stdin", func(t *testing.T) {
		src, err := NewSource(Stdin, opts, nil)
		require.NoError(t, err)
		assert.IsType(t, &PCMSource{}, src)
	})

	t.Run("raw file", func(t *testing.T) {
		src, err := NewSource(rawPath, opts, nil)
		require.NoError(t, err)
		require.NoError(t, src.Open())
		defer func() { _ = src.Close() }()

		block, err := src.ReadBlock()
		require.NoError(t, err)
		assert.Equal(t, []int16{7, 8}, block)
	})

	t.Run("missing raw file", func(t *testing.T) {
		_, err := NewSource(filepath.Join(dir, "missing.pcm"), opts, nil)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("recording", func(t *testing.T) {
		src, err := NewSource(filepath.Join(dir, "street.WAV"), opts, nil)
		require.NoError(t, err)
		assert.IsType(t, &audio.FileSource{}, src)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewSource(filepath.Join(dir, "notes.txt"), opts, nil)
		var adapterErr *AdapterError
		require.ErrorAs(t, err, &adapterErr)
		assert.Contains(t, err.Error(), "unsupported file type")
	})

	t.Run("bad block size", func(t *testing.T) {
		_, err := NewSource(Stdin, SourceOptions{}, nil)
		assert.Error(t, err)
	})
}

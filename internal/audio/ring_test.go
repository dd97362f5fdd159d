package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_ReadLatest(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write([]int16{1, 2, 3})

	assert.Equal(t, []int16{2, 3}, rb.ReadLatest(2))
	assert.Nil(t, rb.ReadLatest(2), "a read drains the buffer")
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]int16{1, 2, 3})
	rb.Write([]int16{4, 5, 6})

	assert.Equal(t, []int16{3, 4, 5, 6}, rb.ReadLatest(10))
}

func TestRingBuffer_WriteLargerThanCapacity(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Write([]int16{1, 2, 3, 4, 5})
	assert.Equal(t, []int16{3, 4, 5}, rb.ReadLatest(3))
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]int16{1, 2})
	rb.Reset()
	assert.Nil(t, rb.ReadLatest(4))

	rb.Write([]int16{7})
	assert.Equal(t, []int16{7}, rb.ReadLatest(4), "writes resume from the start after a reset")
}

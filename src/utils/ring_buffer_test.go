package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferKeepsNewest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Empty(t, rb.GetAll())

	for i := 1; i <= 5; i++ {
		rb.Append(i)
	}
	assert.Equal(t, 3, rb.Size())
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, []int{4, 5}, rb.GetLatest(2))
	assert.Equal(t, []int{3, 4, 5}, rb.GetLatest(10))

	rb.Clear()
	assert.Zero(t, rb.Size())
	assert.Empty(t, rb.GetLatest(1))
}

func TestRingBufferPartiallyFilled(t *testing.T) {
	rb := NewRingBuffer[string](4)
	rb.Append("a")
	rb.Append("b")
	assert.Equal(t, []string{"a", "b"}, rb.GetAll())
	assert.Equal(t, 4, rb.Capacity())
}

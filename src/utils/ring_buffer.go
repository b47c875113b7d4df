package utils

import "sync"

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer safe for concurrent use.
// Once full, each Append overwrites the oldest element.
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	data     []T
	capacity int
	index    int // Next write position
	size     int // Current number of elements
	mu       sync.RWMutex
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 256
	}
	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer[T]) Append(v T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.index] = v
	rb.index = (rb.index + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns up to n newest elements, oldest first.
func (rb *RingBuffer[T]) GetLatest(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 || n <= 0 {
		return []T{}
	}
	count := n
	if count > rb.size {
		count = rb.size
	}

	result := make([]T, count)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}
	return result
}

// GetAll returns all elements in insertion order (oldest to newest)
func (rb *RingBuffer[T]) GetAll() []T {
	return rb.GetLatest(rb.capacity)
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// Clear resets the buffer
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.index = 0
	rb.size = 0
}

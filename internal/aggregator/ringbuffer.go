package aggregator

import "github.com/vburojevic/nginv/internal/domain"

// RingBuffer is a fixed-capacity FIFO of recent errors; the oldest entry is
// evicted first. It is not safe for concurrent use: the owning site's lock
// guards it.
type RingBuffer struct {
	buffer []domain.RecentError
	size   int
	head   int
	count  int
}

// NewRingBuffer creates a ring buffer with the specified capacity
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = domain.MaxRecentErrors
	}
	return &RingBuffer{
		buffer: make([]domain.RecentError, size),
		size:   size,
	}
}

// Push adds an entry, evicting the oldest when full
func (rb *RingBuffer) Push(entry domain.RecentError) {
	rb.buffer[rb.head] = entry
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// GetAll returns a copy of all entries, oldest first
func (rb *RingBuffer) GetAll() []domain.RecentError {
	result := make([]domain.RecentError, rb.count)

	if rb.count < rb.size {
		copy(result, rb.buffer[:rb.count])
	} else {
		copy(result, rb.buffer[rb.head:])
		copy(result[rb.size-rb.head:], rb.buffer[:rb.head])
	}

	return result
}

// Clear empties the buffer
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.count = 0
	clear(rb.buffer)
}

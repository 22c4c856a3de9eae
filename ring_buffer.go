package ringpipe

// RingBuffer is a fixed power-of-two array of event slots.
// It has no synchronization of its own: a slot is owned for writing by
// the producer whose claimed range covers it, and for reading by every
// consumer stage until all gating sequences have passed it.
type RingBuffer[T any] struct {
	capacity int64
	mask     int64 // capacity - 1 for quick modulo operations.
	buffer   []T
}

// NewRingBuffer returns a RingBuffer with the given capacity.
// capacity must be a positive power of two.
func NewRingBuffer[T any](capacity int64) (*RingBuffer[T], error) {
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}
	return &RingBuffer[T]{
		capacity: capacity,
		mask:     capacity - 1,
		buffer:   make([]T, capacity),
	}, nil
}

// Capacity returns the number of slots.
func (r *RingBuffer[T]) Capacity() int64 {
	return r.capacity
}

// Get returns the slot for sequence.
func (r *RingBuffer[T]) Get(sequence int64) *T {
	return &r.buffer[sequence&r.mask]
}

// Slices returns the slots for [lo, hi] as at most two sub-slices of the
// underlying buffer:
//
// 1. First sub-slice is up to the end of the ring buffer,
// 2. Second sub-slice is from the beginning of the ring buffer.
//
// second is empty if the range does not wrap around.
// hi-lo+1 must not exceed the capacity.
func (r *RingBuffer[T]) Slices(lo, hi int64) (first, second []T) {
	if hi < lo {
		return nil, nil
	}
	start := lo & r.mask
	end := start + hi - lo + 1
	if end <= r.capacity {
		return r.buffer[start:end], nil
	}
	return r.buffer[start:], r.buffer[:end-r.capacity]
}

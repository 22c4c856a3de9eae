// Package bitmap provides a fixed-size bit array safe for concurrent use.
//
// It records, per ring buffer slot, whether a multi-producer write has
// completed.
package bitmap

import "sync/atomic"

const wordBits = 64

// Bitmap is a fixed-capacity array of bits.
// All methods may be called concurrently.
type Bitmap struct {
	words []atomic.Uint64
	size  int
}

// New returns a Bitmap holding size bits, all unset.
func New(size int) *Bitmap {
	return &Bitmap{
		words: make([]atomic.Uint64, (size+wordBits-1)/wordBits),
		size:  size,
	}
}

// Len returns the number of bits.
func (b *Bitmap) Len() int {
	return b.size
}

// Set sets bit i.
func (b *Bitmap) Set(i int) {
	b.words[i/wordBits].Or(1 << (uint(i) % wordBits))
}

// Unset clears bit i.
func (b *Bitmap) Unset(i int) {
	b.words[i/wordBits].And(^uint64(1 << (uint(i) % wordBits)))
}

// IsSet reports whether bit i is set.
func (b *Bitmap) IsSet(i int) bool {
	return b.words[i/wordBits].Load()&(1<<(uint(i)%wordBits)) != 0
}

// TestAndUnset clears bit i and reports whether it was set.
func (b *Bitmap) TestAndUnset(i int) bool {
	mask := uint64(1) << (uint(i) % wordBits)
	return b.words[i/wordBits].And(^mask)&mask != 0
}

package ringpipe

import (
	"math"
	"strconv"

	"github.com/five-vee/ringpipe/internal/pad"
)

// InitialSequence is the value of a sequence before anything
// was written to or read from the ring buffer.
const InitialSequence int64 = -1

// Sequence is a monotonically increasing counter identifying the last
// slot fully written (cursor) or fully processed (gating sequence)
// by its owner.
//
// A Sequence occupies its own cache lines so that the producer cursor
// and the consumer sequences never falsely share.
// Use NewSequence; the zero value starts at 0, not InitialSequence.
type Sequence struct {
	v pad.AtomicInt64
}

// NewSequence returns a Sequence starting at initial.
func NewSequence(initial int64) *Sequence {
	s := &Sequence{}
	s.v.Store(initial)
	return s
}

// Get returns the current value.
func (s *Sequence) Get() int64 {
	return s.v.Load()
}

// Set stores v.
func (s *Sequence) Set(v int64) {
	s.v.Store(v)
}

// CompareAndSwap sets the sequence to new if it currently holds old.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return s.v.CompareAndSwap(old, new)
}

// Increment adds one and returns the previous value.
func (s *Sequence) Increment() int64 {
	return s.v.Add(1) - 1
}

// Add adds delta and returns the new value.
func (s *Sequence) Add(delta int64) int64 {
	return s.v.Add(delta)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}

// minimumSequence loads the minimum from a set of sequences.
// Returns math.MaxInt64 if seqs is empty.
func minimumSequence(seqs []*Sequence) int64 {
	if len(seqs) == 0 {
		return math.MaxInt64
	}
	minimum := seqs[0].Get()
	for i := 1; i < len(seqs); i++ {
		seq := seqs[i].Get()
		diff := minimum - seq
		mask := diff >> 63 // arithmetic right shift: 0 if diff>=0, -1 if diff<0
		minimum = seq + (diff & mask)
	}
	return minimum
}

package ringpipe

import (
	"github.com/five-vee/ringpipe/internal/bitmap"
	"github.com/five-vee/ringpipe/internal/pad"
)

// MultiProducerSequencer is a Sequencer safe for any number of producer
// goroutines.
//
// Producers claim ranges with a CAS on the claim point, but may finish
// writing out of order. Publish marks each slot in an availability bitmap
// and the cursor only ever advances over a contiguous published prefix,
// so consumers never observe a gap.
type MultiProducerSequencer struct {
	*sequencer
	claimed      pad.AtomicInt64 // highest claimed sequence
	cachedGating pad.AtomicInt64 // cached version of the slowest gating sequence
	advancing    pad.Bool        // held by the goroutine moving the cursor
	available    *bitmap.Bitmap
}

// NewMultiProducerSequencer returns a MultiProducerSequencer.
// capacity must be a positive power of two.
func NewMultiProducerSequencer(capacity int64, opts ...SequencerOption) (*MultiProducerSequencer, error) {
	s, err := newSequencer(capacity, opts)
	if err != nil {
		return nil, err
	}
	mp := &MultiProducerSequencer{
		sequencer: s,
		available: bitmap.New(int(capacity)),
	}
	mp.claimed.Store(InitialSequence)
	mp.cachedGating.Store(InitialSequence)
	return mp, nil
}

// Next implements Sequencer.
// The range is claimed first and then waited on, so a producer blocked
// on backpressure already owns its place in the publish order.
func (mp *MultiProducerSequencer) Next(n int64) (lo, hi int64, err error) {
	if err := mp.validateClaim(n); err != nil {
		return 0, 0, err
	}
	for {
		current := mp.claimed.Load()
		hi = current + n
		if mp.claimed.CompareAndSwap(current, hi) {
			lo = current + 1
			break
		}
		mp.claimRetries.Add(1)
	}
	mp.claims.Add(1)
	if wrapPoint := hi - mp.capacity; wrapPoint > mp.cachedGating.Load() {
		minimum, err := mp.awaitCapacity(wrapPoint)
		if err != nil {
			return 0, 0, err
		}
		mp.cachedGating.Store(minimum)
	}
	return lo, hi, nil
}

// TryNext implements Sequencer.
func (mp *MultiProducerSequencer) TryNext(n int64) (lo, hi int64, err error) {
	if err := mp.validateClaim(n); err != nil {
		return 0, 0, err
	}
	for {
		current := mp.claimed.Load()
		hi = current + n
		if wrapPoint := hi - mp.capacity; wrapPoint > mp.cachedGating.Load() {
			minimum := mp.minimumGating(wrapPoint)
			mp.cachedGating.Store(minimum)
			if wrapPoint > minimum {
				return 0, 0, ErrInsufficientCapacity
			}
		}
		if mp.claimed.CompareAndSwap(current, hi) {
			mp.claims.Add(1)
			return current + 1, hi, nil
		}
		mp.claimRetries.Add(1)
	}
}

// Publish implements Sequencer.
func (mp *MultiProducerSequencer) Publish(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		mp.available.Set(int(seq & mp.mask))
	}
	mp.advanceCursor()
	mp.strategy.Signal()
}

// advanceCursor moves the cursor over every contiguous published slot.
//
// Only the goroutine holding the advancing flag touches the cursor, so
// while it holds the flag the bit at cursor+1 can only belong to
// sequence cursor+1: the next lap of that slot cannot be claimed before
// the cursor passes it. A publisher that fails to take the flag leaves
// its bits for the holder, which re-checks after letting go.
func (mp *MultiProducerSequencer) advanceCursor() {
	for mp.advancing.CompareAndSwap(false, true) {
		cursor := mp.cursor.Get()
		next := cursor + 1
		for mp.available.TestAndUnset(int(next & mp.mask)) {
			next++
		}
		if next-1 > cursor {
			mp.cursor.Set(next - 1)
		}
		mp.advancing.Store(false)
		if !mp.available.IsSet(int(next & mp.mask)) {
			return
		}
	}
}

// IsAvailable implements Sequencer.
func (mp *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	cursor := mp.cursor.Get()
	return sequence <= cursor && sequence > cursor-mp.capacity
}

// RemainingCapacity implements Sequencer.
func (mp *MultiProducerSequencer) RemainingCapacity() int64 {
	claimed := mp.claimed.Load()
	return remaining(mp.capacity, claimed, mp.minimumGating(claimed))
}

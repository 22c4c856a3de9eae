package ringpipe

import "github.com/five-vee/ringpipe/internal/pad"

// SingleProducerSequencer is a Sequencer for a single producer goroutine.
// Claims are a local counter increment; only backpressure can block.
// Next, TryNext and Publish must only be called from that goroutine.
type SingleProducerSequencer struct {
	*sequencer
	nextValue    pad.AtomicInt64 // highest claimed sequence, only stored by the producer
	cachedGating pad.Int64       // cached version of the slowest gating sequence
}

// NewSingleProducerSequencer returns a SingleProducerSequencer.
// capacity must be a positive power of two.
func NewSingleProducerSequencer(capacity int64, opts ...SequencerOption) (*SingleProducerSequencer, error) {
	s, err := newSequencer(capacity, opts)
	if err != nil {
		return nil, err
	}
	sp := &SingleProducerSequencer{sequencer: s}
	sp.nextValue.Store(InitialSequence)
	sp.cachedGating.Val = InitialSequence
	return sp, nil
}

// Next implements Sequencer.
func (sp *SingleProducerSequencer) Next(n int64) (lo, hi int64, err error) {
	if err := sp.validateClaim(n); err != nil {
		return 0, 0, err
	}
	claimed := sp.nextValue.Load()
	lo = claimed + 1
	hi = claimed + n
	if wrapPoint := hi - sp.capacity; wrapPoint > sp.cachedGating.Val {
		minimum, err := sp.awaitCapacity(wrapPoint)
		if err != nil {
			return 0, 0, err
		}
		sp.cachedGating.Val = minimum
	}
	sp.nextValue.Store(hi)
	sp.claims.Add(1)
	return lo, hi, nil
}

// TryNext implements Sequencer.
func (sp *SingleProducerSequencer) TryNext(n int64) (lo, hi int64, err error) {
	if err := sp.validateClaim(n); err != nil {
		return 0, 0, err
	}
	claimed := sp.nextValue.Load()
	lo = claimed + 1
	hi = claimed + n
	if wrapPoint := hi - sp.capacity; wrapPoint > sp.cachedGating.Val {
		minimum := sp.minimumGating(wrapPoint)
		sp.cachedGating.Val = minimum
		if wrapPoint > minimum {
			return 0, 0, ErrInsufficientCapacity
		}
	}
	sp.nextValue.Store(hi)
	sp.claims.Add(1)
	return lo, hi, nil
}

// Publish implements Sequencer.
// A single release of the cursor to hi publishes the whole range.
func (sp *SingleProducerSequencer) Publish(_, hi int64) {
	sp.cursor.Set(hi)
	sp.strategy.Signal()
}

// IsAvailable implements Sequencer.
func (sp *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	cursor := sp.cursor.Get()
	return sequence <= cursor && sequence > cursor-sp.capacity
}

// RemainingCapacity implements Sequencer.
// Claimed but unpublished slots are not free.
func (sp *SingleProducerSequencer) RemainingCapacity() int64 {
	claimed := sp.nextValue.Load()
	return remaining(sp.capacity, claimed, sp.minimumGating(claimed))
}

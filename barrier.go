package ringpipe

import "github.com/five-vee/ringpipe/internal/closer"

// SequenceBarrier is a read-only view over a set of dependency sequences
// plus the WaitStrategy used to wait on them.
// It has no mutable state of its own and is safe for concurrent use.
type SequenceBarrier struct {
	strategy WaitStrategy
	cursor   *Sequence
	deps     []*Sequence
	closer   *closer.Closer
}

func newSequenceBarrier(strategy WaitStrategy, cursor *Sequence, c *closer.Closer, upstream []*Sequence) *SequenceBarrier {
	deps := make([]*Sequence, 0, len(upstream)+1)
	deps = append(deps, cursor)
	deps = append(deps, upstream...)
	return &SequenceBarrier{
		strategy: strategy,
		cursor:   cursor,
		deps:     deps,
		closer:   c,
	}
}

// WaitFor blocks until sequence is available and returns the highest
// available sequence, which is at least sequence.
// It returns false if the ring buffer was halted, or drained and
// sequence is past the last published sequence.
func (b *SequenceBarrier) WaitFor(sequence int64) (int64, bool) {
	return b.strategy.WaitFor(sequence, b.deps, b)
}

// Alerted implements Alerter.
func (b *SequenceBarrier) Alerted(sequence int64) bool {
	if !b.closer.IsClosed() {
		return false
	}
	// Draining: keep handing out whatever was published before the drain.
	return b.closer.IsHalted() || sequence > b.cursor.Get()
}

// Signal wakes waiters after a dependent sequence was advanced.
func (b *SequenceBarrier) Signal() {
	b.strategy.Signal()
}

// Cursor returns the producer cursor this barrier observes.
func (b *SequenceBarrier) Cursor() *Sequence {
	return b.cursor
}

// Dependencies returns the sequences this barrier waits on,
// starting with the cursor.
func (b *SequenceBarrier) Dependencies() []*Sequence {
	return append([]*Sequence(nil), b.deps...)
}

// producerAlerter stops backpressure waits as soon as the ring buffer
// leaves the open state.
type producerAlerter struct {
	closer *closer.Closer
}

func (a producerAlerter) Alerted(int64) bool {
	return a.closer.IsClosed()
}

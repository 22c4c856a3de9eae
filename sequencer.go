package ringpipe

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/five-vee/ringpipe/internal/closer"
	"github.com/five-vee/ringpipe/internal/pad"
)

// ProducerMode selects the Sequencer variant.
type ProducerMode int

const (
	// SingleProducer is for rings written by exactly one goroutine.
	SingleProducer ProducerMode = iota
	// MultiProducer is for rings written by any number of goroutines.
	MultiProducer
)

func (m ProducerMode) String() string {
	switch m {
	case SingleProducer:
		return "single"
	case MultiProducer:
		return "multi"
	default:
		return fmt.Sprintf("ProducerMode(%d)", int(m))
	}
}

// Sequencer coordinates producers and consumers of a ring buffer.
// It owns the cursor and the set of gating sequences.
type Sequencer interface {
	// Capacity returns the ring buffer capacity.
	Capacity() int64

	// Cursor returns the highest published sequence.
	Cursor() *Sequence

	// Next claims n contiguous sequences, blocking until none of them
	// would overwrite a slot that a gating sequence has not yet passed.
	// Every successful claim must be followed by Publish(lo, hi).
	Next(n int64) (lo, hi int64, err error)

	// TryNext is like Next but returns ErrInsufficientCapacity instead
	// of blocking.
	TryNext(n int64) (lo, hi int64, err error)

	// Publish makes the claimed range [lo, hi] visible to consumers.
	Publish(lo, hi int64)

	// IsAvailable reports whether sequence is published and not yet
	// overwritten by a later lap.
	IsAvailable(sequence int64) bool

	// RemainingCapacity returns the number of slots that can be claimed
	// without blocking. Claimed slots count as used whether or not they
	// have been published. Never negative.
	RemainingCapacity() int64

	// NewBarrier returns a barrier over the cursor and the given
	// upstream sequences.
	NewBarrier(upstream ...*Sequence) *SequenceBarrier

	// NewGatingSequence registers and returns a sequence starting at the
	// current cursor. The caller advances it as it consumes.
	NewGatingSequence() *Sequence

	// AddGatingSequences registers existing sequences for backpressure.
	AddGatingSequences(seqs ...*Sequence)

	// Drain stops further claims. Consumers still receive everything
	// published before the drain. Idempotent.
	//
	// A stage waiting on an upstream stage that has stalled is waiting for
	// a published sequence, so Drain does not release it. Use Halt to tear
	// down a pipeline with a stalled stage.
	Drain()

	// Halt stops all waiting immediately. Idempotent.
	Halt()

	// Stats returns a snapshot of the sequencer counters.
	Stats() Stats
}

// Stats is a snapshot of sequencer counters.
type Stats struct {
	Claims            int64
	ClaimRetries      int64
	BackpressureWaits int64
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*sequencerConfig)

type sequencerConfig struct {
	waitStrategy WaitStrategy
	logger       logr.Logger
}

// WithWaitStrategy sets the WaitStrategy shared by the sequencer and
// its barriers. The default is a BlockingWaitStrategy.
func WithWaitStrategy(ws WaitStrategy) SequencerOption {
	return func(c *sequencerConfig) {
		c.waitStrategy = ws
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger logr.Logger) SequencerOption {
	return func(c *sequencerConfig) {
		c.logger = logger
	}
}

// NewSequencer returns a Sequencer for the given producer mode.
func NewSequencer(capacity int64, mode ProducerMode, opts ...SequencerOption) (Sequencer, error) {
	switch mode {
	case SingleProducer:
		return NewSingleProducerSequencer(capacity, opts...)
	case MultiProducer:
		return NewMultiProducerSequencer(capacity, opts...)
	default:
		return nil, fmt.Errorf("unknown producer mode %v", mode)
	}
}

// sequencer holds the state shared by both variants.
type sequencer struct {
	capacity int64
	mask     int64
	strategy WaitStrategy
	logger   logr.Logger
	cursor   *Sequence

	gatingMu sync.Mutex
	gating   atomic.Pointer[[]*Sequence] // copy-on-write

	closer closer.Closer

	claims            pad.AtomicInt64
	claimRetries      pad.AtomicInt64
	backpressureWaits pad.AtomicInt64
}

func newSequencer(capacity int64, opts []SequencerOption) (*sequencer, error) {
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}
	cfg := sequencerConfig{logger: logr.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.waitStrategy == nil {
		cfg.waitStrategy = NewBlockingWaitStrategy()
	}
	s := &sequencer{
		capacity: capacity,
		mask:     capacity - 1,
		strategy: cfg.waitStrategy,
		logger:   cfg.logger,
		cursor:   NewSequence(InitialSequence),
	}
	s.gating.Store(&[]*Sequence{})
	return s, nil
}

func (s *sequencer) Capacity() int64 {
	return s.capacity
}

func (s *sequencer) Cursor() *Sequence {
	return s.cursor
}

func (s *sequencer) NewBarrier(upstream ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s.strategy, s.cursor, &s.closer, upstream)
}

func (s *sequencer) NewGatingSequence() *Sequence {
	s.gatingMu.Lock()
	defer s.gatingMu.Unlock()
	seq := NewSequence(s.cursor.Get())
	s.appendGating(seq)
	return seq
}

func (s *sequencer) AddGatingSequences(seqs ...*Sequence) {
	s.gatingMu.Lock()
	defer s.gatingMu.Unlock()
	s.appendGating(seqs...)
}

// appendGating must be called with gatingMu held.
func (s *sequencer) appendGating(seqs ...*Sequence) {
	current := *s.gating.Load()
	next := make([]*Sequence, 0, len(current)+len(seqs))
	next = append(next, current...)
	next = append(next, seqs...)
	s.gating.Store(&next)
}

func (s *sequencer) gatingSequences() []*Sequence {
	return *s.gating.Load()
}

// minimumGating returns the slowest gating sequence, or fallback if
// there are none.
func (s *sequencer) minimumGating(fallback int64) int64 {
	minimum := minimumSequence(s.gatingSequences())
	if minimum == math.MaxInt64 {
		return fallback
	}
	return minimum
}

// awaitCapacity blocks until every gating sequence reaches wrapPoint.
// Returns a lower bound on the slowest gating sequence.
func (s *sequencer) awaitCapacity(wrapPoint int64) (int64, error) {
	s.backpressureWaits.Add(1)
	minimum, ok := s.strategy.WaitFor(wrapPoint, s.gatingSequences(), producerAlerter{&s.closer})
	if !ok {
		return 0, ErrDrained
	}
	if minimum == math.MaxInt64 {
		// No gating sequences registered yet.
		minimum = wrapPoint
	}
	return minimum, nil
}

// remaining returns the free slots given the highest claimed sequence.
// Producers blocked on backpressure have already claimed past the
// slowest gating sequence, so the result is clamped at zero.
func remaining(capacity, claimed, minimumGating int64) int64 {
	return max(0, capacity-(claimed-minimumGating))
}

func (s *sequencer) validateClaim(n int64) error {
	if n < 1 || n >= s.capacity {
		return fmt.Errorf("%w: claim of %d on capacity %d", ErrInvalidClaimSize, n, s.capacity)
	}
	if s.closer.IsClosed() {
		return ErrDrained
	}
	return nil
}

func (s *sequencer) Drain() {
	if s.closer.Drain() {
		s.logger.Info("Draining ring buffer", "cursor", s.cursor.Get())
	}
	s.strategy.Signal()
}

func (s *sequencer) Halt() {
	if s.closer.Halt() {
		s.logger.Info("Halting ring buffer", "cursor", s.cursor.Get())
	}
	s.strategy.Signal()
}

func (s *sequencer) Stats() Stats {
	return Stats{
		Claims:            s.claims.Load(),
		ClaimRetries:      s.claimRetries.Load(),
		BackpressureWaits: s.backpressureWaits.Load(),
	}
}

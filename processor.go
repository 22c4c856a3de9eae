package ringpipe

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/go-logr/logr"
)

// EventHandler handles events of a consumer stage.
type EventHandler[T any] interface {
	// OnEvent is called once per event, in sequence order.
	// endOfBatch is true on the last event currently available, so
	// handlers can amortize expensive work such as flushing.
	// A non-nil error stops the stage.
	OnEvent(event *T, sequence int64, endOfBatch bool) error
}

// HandlerFunc adapts a function to an EventHandler.
type HandlerFunc[T any] func(event *T, sequence int64, endOfBatch bool) error

// OnEvent implements EventHandler.
func (f HandlerFunc[T]) OnEvent(event *T, sequence int64, endOfBatch bool) error {
	return f(event, sequence, endOfBatch)
}

type batchHandler[T any] struct {
	f func(first, second []T, lo, hi int64) error
}

// OnEvent implements EventHandler for use outside an EventProcessor.
func (b batchHandler[T]) OnEvent(event *T, sequence int64, _ bool) error {
	return b.f(unsafe.Slice(event, 1), nil, sequence, sequence)
}

// BatchHandlerFunc returns an EventHandler that is called once per
// available batch [lo, hi] instead of once per event. The batch is passed
// as at most two sub-slices of the ring buffer, see RingBuffer.Slices.
//
// Use BatchHandlerFunc over HandlerFunc only if the overhead of
// sub-slicing is much smaller than the time saved by batching, e.g. when
// copying large numbers of events out of the ring buffer at once.
// The slices must not be retained after f returns.
func BatchHandlerFunc[T any](f func(first, second []T, lo, hi int64) error) EventHandler[T] {
	return batchHandler[T]{f}
}

// LifecycleAware is implemented by handlers that want to be notified
// when their processor starts and stops.
type LifecycleAware interface {
	OnStart()
	OnShutdown()
}

// ProcessorOption configures an EventProcessor.
type ProcessorOption func(*processorConfig)

type processorConfig struct {
	name   string
	logger logr.Logger
}

// WithProcessorName names the stage in logs and errors.
func WithProcessorName(name string) ProcessorOption {
	return func(c *processorConfig) {
		c.name = name
	}
}

// WithProcessorLogger sets the logger for lifecycle events.
func WithProcessorLogger(logger logr.Logger) ProcessorOption {
	return func(c *processorConfig) {
		c.logger = logger
	}
}

// EventProcessor runs one consumer stage: it waits on its barrier, hands
// each available batch to the handler and then advances its sequence.
type EventProcessor[T any] struct {
	ring     *RingBuffer[T]
	barrier  *SequenceBarrier
	handler  EventHandler[T]
	sequence *Sequence
	name     string
	logger   logr.Logger
	running  atomic.Bool
}

// NewEventProcessor returns a processor reading ring through barrier.
// sequence is the stage's gating sequence, typically obtained from
// Sequencer.NewGatingSequence; the processor is its only writer.
func NewEventProcessor[T any](ring *RingBuffer[T], barrier *SequenceBarrier, handler EventHandler[T], sequence *Sequence, opts ...ProcessorOption) *EventProcessor[T] {
	cfg := processorConfig{logger: logr.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &EventProcessor[T]{
		ring:     ring,
		barrier:  barrier,
		handler:  handler,
		sequence: sequence,
		name:     cfg.name,
		logger:   cfg.logger,
	}
}

// Sequence returns the processor's gating sequence.
func (p *EventProcessor[T]) Sequence() *Sequence {
	return p.sequence
}

// Name returns the stage name.
func (p *EventProcessor[T]) Name() string {
	return p.name
}

// Run processes events until the barrier reports shutdown.
// Returns nil on shutdown, or the first handler error. The sequence is
// left on the last event handled successfully.
func (p *EventProcessor[T]) Run() error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if la, ok := p.handler.(LifecycleAware); ok {
		la.OnStart()
		defer la.OnShutdown()
	}
	p.logger.V(1).Info("Event processor started", "stage", p.name, "sequence", p.sequence.Get())
	defer func() {
		p.logger.V(1).Info("Event processor stopped", "stage", p.name, "sequence", p.sequence.Get())
	}()

	next := p.sequence.Get() + 1
	for {
		available, ok := p.barrier.WaitFor(next)
		if !ok {
			return nil
		}
		if seq, err := p.handle(next, available); err != nil {
			p.sequence.Set(seq - 1)
			p.barrier.Signal()
			p.logger.Error(err, "Event handler failed", "stage", p.name, "sequence", seq)
			return fmt.Errorf("stage %q: sequence %d: %w", p.name, seq, err)
		}
		p.sequence.Set(available)
		p.barrier.Signal()
		next = available + 1
	}
}

// handle runs the handler over [lo, hi]. On error it returns the first
// sequence that was not handled.
func (p *EventProcessor[T]) handle(lo, hi int64) (int64, error) {
	if b, ok := p.handler.(batchHandler[T]); ok {
		first, second := p.ring.Slices(lo, hi)
		return lo, b.f(first, second, lo, hi)
	}
	for seq := lo; seq <= hi; seq++ {
		if err := p.handler.OnEvent(p.ring.Get(seq), seq, seq == hi); err != nil {
			return seq, err
		}
	}
	return hi, nil
}

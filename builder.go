package ringpipe

import (
	"fmt"

	"github.com/go-logr/logr"
)

// Builder builds a Disruptor.
type Builder[T any] struct {
	capacity     int64
	mode         ProducerMode
	waitStrategy WaitStrategy
	logger       logr.Logger
	stages       [][]EventHandler[T]
}

// NewBuilder returns a builder of a disruptor.
func NewBuilder[T any](capacity int64) *Builder[T] {
	return &Builder[T]{
		capacity: capacity,
		mode:     SingleProducer,
		logger:   logr.Discard(),
	}
}

// WithProducerMode selects single or multi producer. The default is
// SingleProducer.
func (b *Builder[T]) WithProducerMode(mode ProducerMode) *Builder[T] {
	b.mode = mode
	return b
}

// WithWaitStrategy overrides how producers and stages wait.
// The default is a BlockingWaitStrategy.
func (b *Builder[T]) WithWaitStrategy(ws WaitStrategy) *Builder[T] {
	b.waitStrategy = ws
	return b
}

// WithLogger sets the logger for lifecycle events.
func (b *Builder[T]) WithLogger(logger logr.Logger) *Builder[T] {
	b.logger = logger
	return b
}

// WithStage represents a stage of handlers that run in parallel.
// If this is the first time WithStage is called,
// the stage reads directly behind the producers.
// Otherwise, the stage reads behind every handler of the
// stage of the previously passed in WithStage().
func (b *Builder[T]) WithStage(handlers ...EventHandler[T]) *Builder[T] {
	b.stages = append(b.stages, handlers)
	return b
}

// Build builds the disruptor.
func (b *Builder[T]) Build() (*Disruptor[T], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	opts := []SequencerOption{WithLogger(b.logger)}
	if b.waitStrategy != nil {
		opts = append(opts, WithWaitStrategy(b.waitStrategy))
	}
	seq, err := NewSequencer(b.capacity, b.mode, opts...)
	if err != nil {
		return nil, err
	}
	ring, err := NewRingBuffer[T](b.capacity)
	if err != nil {
		return nil, err
	}
	d := &Disruptor[T]{
		ring:      ring,
		sequencer: seq,
		logger:    b.logger,
	}
	d.processors = b.wireStages(seq, ring)
	return d, nil
}

func (b *Builder[T]) validate() error {
	if err := validateCapacity(b.capacity); err != nil {
		return err
	}
	if len(b.stages) == 0 {
		return ErrMissingStage
	}
	for _, stage := range b.stages {
		if len(stage) == 0 {
			return ErrEmptyStage
		}
	}
	return nil
}

// wireStages wires up the stage dependency graph.
// Only the last stage gates the producers: every earlier stage is
// already ahead of it.
func (b *Builder[T]) wireStages(seq Sequencer, ring *RingBuffer[T]) []*EventProcessor[T] {
	var processors []*EventProcessor[T]
	var upstream []*Sequence
	for i, stage := range b.stages {
		barrier := seq.NewBarrier(upstream...)
		var group []*Sequence
		for j, h := range stage {
			s := NewSequence(InitialSequence)
			p := NewEventProcessor(ring, barrier, h, s,
				WithProcessorName(fmt.Sprintf("stage-%d/%d", i, j)),
				WithProcessorLogger(b.logger))
			processors = append(processors, p)
			group = append(group, s)
		}
		upstream = group
	}
	seq.AddGatingSequences(upstream...)
	return processors
}

package ringpipe

import (
	"context"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Disruptor is a ring buffer wired to a pipeline of consumer stages.
type Disruptor[T any] struct {
	ring       *RingBuffer[T]
	sequencer  Sequencer
	processors []*EventProcessor[T]
	logger     logr.Logger
}

// Next claims n slots. See Sequencer.Next.
func (d *Disruptor[T]) Next(n int64) (lo, hi int64, err error) {
	return d.sequencer.Next(n)
}

// TryNext claims n slots without blocking. See Sequencer.TryNext.
func (d *Disruptor[T]) TryNext(n int64) (lo, hi int64, err error) {
	return d.sequencer.TryNext(n)
}

// Get returns the slot for sequence.
func (d *Disruptor[T]) Get(sequence int64) *T {
	return d.ring.Get(sequence)
}

// Publish makes [lo, hi] visible to the first stage.
func (d *Disruptor[T]) Publish(lo, hi int64) {
	d.sequencer.Publish(lo, hi)
}

// Write claims one slot, lets f fill it and publishes it.
// Blocks while the ring buffer is full.
func (d *Disruptor[T]) Write(f func(item *T)) error {
	lo, hi, err := d.sequencer.Next(1)
	if err != nil {
		return err
	}
	defer d.sequencer.Publish(lo, hi)
	f(d.ring.Get(lo))
	return nil
}

// WriteBatch claims n slots, lets f fill each of them and publishes
// them at once.
func (d *Disruptor[T]) WriteBatch(n int64, f func(sequence int64, item *T)) error {
	lo, hi, err := d.sequencer.Next(n)
	if err != nil {
		return err
	}
	defer d.sequencer.Publish(lo, hi)
	for seq := lo; seq <= hi; seq++ {
		f(seq, d.ring.Get(seq))
	}
	return nil
}

// Run runs every stage on its own goroutine and blocks until all of them
// stop. Stages stop after Drain once they have handled everything
// published, or right away after Halt or ctx cancellation.
// A failing stage halts the disruptor and its error is returned.
func (d *Disruptor[T]) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, p := range d.processors {
		g.Go(func() error {
			if err := p.Run(); err != nil {
				d.Halt()
				return err
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.logger.Info("Context done, halting", "cause", context.Cause(ctx))
			d.Halt()
		case <-done:
		}
	}()

	err := g.Wait()
	close(done)
	return err
}

// Drain stops further writes; stages finish what was already published.
// Stages behind a stalled stage keep waiting; see Sequencer.Drain.
func (d *Disruptor[T]) Drain() {
	d.sequencer.Drain()
}

// Halt stops producers and stages immediately.
func (d *Disruptor[T]) Halt() {
	d.sequencer.Halt()
}

// Sequencer returns the underlying sequencer.
func (d *Disruptor[T]) Sequencer() Sequencer {
	return d.sequencer
}

// RingBuffer returns the underlying ring buffer.
func (d *Disruptor[T]) RingBuffer() *RingBuffer[T] {
	return d.ring
}

// Processors returns the stage processors in wiring order.
func (d *Disruptor[T]) Processors() []*EventProcessor[T] {
	return append([]*EventProcessor[T](nil), d.processors...)
}

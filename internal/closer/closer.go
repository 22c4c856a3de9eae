// Package closer tracks the shutdown state of a ring buffer.
package closer

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	open     = 0
	draining = 1
	halted   = 2
)

// Closer represents the open/draining/halted state of the ring buffer.
// Its zero-value represents the open state.
// State only moves forward: open -> draining -> halted.
type Closer struct {
	_ cpu.CacheLinePad
	x atomic.Int64
	_ cpu.CacheLinePad
}

// IsClosed returns true once Drain or Halt was called.
func (c *Closer) IsClosed() bool {
	return c.x.Load() != open
}

// IsHalted returns true once Halt was called.
func (c *Closer) IsHalted() bool {
	return c.x.Load() == halted
}

// Drain moves an open closer to the draining state.
// Returns false if the closer had already left the open state.
func (c *Closer) Drain() bool {
	return c.x.CompareAndSwap(open, draining)
}

// Halt moves the closer to the halted state.
// Returns false if it was already halted.
func (c *Closer) Halt() bool {
	for {
		cur := c.x.Load()
		if cur == halted {
			return false
		}
		if c.x.CompareAndSwap(cur, halted) {
			return true
		}
	}
}

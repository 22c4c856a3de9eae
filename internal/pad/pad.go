// Package pad provides counters that occupy their own cache lines.
package pad

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// AtomicInt64 is an atomic 64-bit int that is padded on both sides
// to prevent false sharing with neighbouring fields.
type AtomicInt64 struct {
	_ cpu.CacheLinePad
	atomic.Int64
	_ cpu.CacheLinePad
}

// Int64 is an int64 padded to prevent false sharing.
// It is only safe for use by a single goroutine.
type Int64 struct {
	_   cpu.CacheLinePad
	Val int64
	_   cpu.CacheLinePad
}

// Bool is an atomic flag padded to prevent false sharing.
type Bool struct {
	_ cpu.CacheLinePad
	atomic.Bool
	_ cpu.CacheLinePad
}

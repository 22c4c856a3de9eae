package ringpipe

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type alertFunc func(sequence int64) bool

func (f alertFunc) Alerted(sequence int64) bool { return f(sequence) }

var neverAlerted = alertFunc(func(int64) bool { return false })

type waitResult struct {
	available int64
	ok        bool
}

func waitStrategies() map[string]func() WaitStrategy {
	return map[string]func() WaitStrategy{
		"spin": func() WaitStrategy {
			return NewSpinWaitStrategy(WithSpinLimits(4, 8, time.Microsecond))
		},
		"blocking": func() WaitStrategy { return NewBlockingWaitStrategy() },
	}
}

func TestWaitStrategy_AlreadyAvailable(t *testing.T) {
	for name, newStrategy := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			ws := newStrategy()
			deps := []*Sequence{NewSequence(5), NewSequence(7)}
			available, ok := ws.WaitFor(3, deps, neverAlerted)
			if !ok || available != 5 {
				t.Fatalf("WaitFor(3) = (%d, %t), want (5, true)", available, ok)
			}
		})
	}
}

func TestWaitStrategy_NoDependencies(t *testing.T) {
	for name, newStrategy := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			available, ok := newStrategy().WaitFor(42, nil, neverAlerted)
			if !ok || available != math.MaxInt64 {
				t.Fatalf("WaitFor(42) = (%d, %t), want (%d, true)", available, ok, int64(math.MaxInt64))
			}
		})
	}
}

func TestWaitStrategy_WaitsUntilAdvanced(t *testing.T) {
	for name, newStrategy := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			ws := newStrategy()
			dep := NewSequence(InitialSequence)
			results := make(chan waitResult, 1)
			go func() {
				available, ok := ws.WaitFor(2, []*Sequence{dep}, neverAlerted)
				results <- waitResult{available, ok}
			}()

			select {
			case r := <-results:
				t.Fatalf("WaitFor(2) returned %+v before the dependency advanced", r)
			case <-time.After(20 * time.Millisecond):
			}

			dep.Set(4)
			ws.Signal()
			select {
			case r := <-results:
				if diff := cmp.Diff(waitResult{4, true}, r, cmp.AllowUnexported(waitResult{})); diff != "" {
					t.Errorf("WaitFor(2) (-want +got):\n%s", diff)
				}
			case <-time.After(time.Second):
				t.Fatal("WaitFor(2) did not return after the dependency advanced")
			}
		})
	}
}

func TestWaitStrategy_Alerted(t *testing.T) {
	for name, newStrategy := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			ws := newStrategy()
			var alerted atomic.Bool
			alerter := alertFunc(func(int64) bool { return alerted.Load() })
			results := make(chan waitResult, 1)
			go func() {
				available, ok := ws.WaitFor(10, []*Sequence{NewSequence(InitialSequence)}, alerter)
				results <- waitResult{available, ok}
			}()

			time.Sleep(10 * time.Millisecond)
			alerted.Store(true)
			ws.Signal()
			select {
			case r := <-results:
				if r.ok {
					t.Errorf("WaitFor(10) = %+v, want not ok", r)
				}
			case <-time.After(time.Second):
				t.Fatal("WaitFor(10) did not return after the alert")
			}
		})
	}
}

func TestWaitStrategy_AlertedBeforeAvailable(t *testing.T) {
	for name, newStrategy := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			alwaysAlerted := alertFunc(func(int64) bool { return true })
			if _, ok := newStrategy().WaitFor(0, []*Sequence{NewSequence(3)}, alwaysAlerted); ok {
				t.Error("WaitFor(0) = ok, want not ok when alerted")
			}
		})
	}
}

func TestSpinWaitStrategy_Yield(t *testing.T) {
	dep := NewSequence(InitialSequence)
	var spins []int
	ws := NewSpinWaitStrategy(WithSpinYield(func(n int) {
		spins = append(spins, n)
		if n == 3 {
			dep.Set(0)
		}
	}))

	available, ok := ws.WaitFor(0, []*Sequence{dep}, neverAlerted)
	if !ok || available != 0 {
		t.Fatalf("WaitFor(0) = (%d, %t), want (0, true)", available, ok)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, spins); diff != "" {
		t.Errorf("yield calls (-want +got):\n%s", diff)
	}
}

func TestBlockingWaitStrategy_SignalWithoutWaiters(t *testing.T) {
	ws := NewBlockingWaitStrategy()
	// Must not block or panic.
	ws.Signal()
	if got := ws.waiters.Load(); got != 0 {
		t.Errorf("waiters = %d, want 0", got)
	}
}

func TestSpinWaitStrategy_NegativeLimits(t *testing.T) {
	ws := NewSpinWaitStrategy(WithSpinLimits(-1, -2, -time.Second))
	if ws.spinTries != 0 || ws.yieldTries != 0 || ws.sleep != 0 {
		t.Fatalf("limits = (%d, %d, %v), want (0, 0, 0)", ws.spinTries, ws.yieldTries, ws.sleep)
	}
	// Sleeps straight away without blocking for long.
	dep := NewSequence(InitialSequence)
	go func() {
		time.Sleep(5 * time.Millisecond)
		dep.Set(0)
	}()
	if available, ok := ws.WaitFor(0, []*Sequence{dep}, neverAlerted); !ok || available != 0 {
		t.Errorf("WaitFor(0) = (%d, %t), want (0, true)", available, ok)
	}
}

func TestJitter(t *testing.T) {
	durations := []time.Duration{0, time.Nanosecond, 50 * time.Microsecond, 10 * time.Second, time.Hour, math.MaxInt64}
	for _, d := range durations {
		for range 100 {
			if got := jitter(d); got < d/2 || got > d {
				t.Fatalf("jitter(%v) = %v, want in [%v, %v]", d, got, d/2, d)
			}
		}
	}
}

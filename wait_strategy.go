package ringpipe

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fastrand"
)

// Alerter tells a WaitStrategy to give up waiting for a sequence.
type Alerter interface {
	// Alerted reports whether waiting for sequence should stop.
	Alerted(sequence int64) bool
}

// WaitStrategy is the policy used while a desired sequence is not yet
// available.
type WaitStrategy interface {
	// WaitFor blocks until the minimum of deps reaches sequence and returns
	// that minimum, which may be higher than sequence.
	// It returns false once alerter reports that waiting should stop.
	// An empty deps is never waited on.
	// deps are never modified.
	WaitFor(sequence int64, deps []*Sequence, alerter Alerter) (int64, bool)

	// Signal is called after a sequence has been advanced.
	Signal()
}

const (
	defaultSpinTries  = 1 << 7
	defaultYieldTries = 1 << 10
	defaultSpinSleep  = 50 * time.Microsecond
)

// SpinWaitStrategy re-reads the dependency sequences in a tight loop.
// After a number of unsuccessful iterations it yields the processor,
// then sleeps for short jittered periods.
// Minimal latency, high CPU usage.
type SpinWaitStrategy struct {
	spinTries  int
	yieldTries int
	sleep      time.Duration
	yield      func(spins int)
}

// SpinOption configures a SpinWaitStrategy.
type SpinOption func(*SpinWaitStrategy)

// WithSpinLimits sets how many iterations spin before yielding,
// how many iterations yield before sleeping, and the sleep period.
// Negative values are treated as zero.
func WithSpinLimits(spinTries, yieldTries int, sleep time.Duration) SpinOption {
	return func(s *SpinWaitStrategy) {
		s.spinTries = spinTries
		s.yieldTries = yieldTries
		s.sleep = sleep
	}
}

// WithSpinYield overrides how the strategy backs off after an unsuccessful
// iteration. yield receives the number of iterations so far in the current
// WaitFor call.
func WithSpinYield(yield func(spins int)) SpinOption {
	return func(s *SpinWaitStrategy) {
		s.yield = yield
	}
}

// NewSpinWaitStrategy returns a SpinWaitStrategy.
func NewSpinWaitStrategy(opts ...SpinOption) *SpinWaitStrategy {
	s := &SpinWaitStrategy{
		spinTries:  defaultSpinTries,
		yieldTries: defaultYieldTries,
		sleep:      defaultSpinSleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.spinTries = max(0, s.spinTries)
	s.yieldTries = max(0, s.yieldTries)
	s.sleep = max(0, s.sleep)
	if s.yield == nil {
		s.yield = s.backoff
	}
	return s
}

// WaitFor implements WaitStrategy.
func (s *SpinWaitStrategy) WaitFor(sequence int64, deps []*Sequence, alerter Alerter) (int64, bool) {
	for spins := 1; ; spins++ {
		if alerter.Alerted(sequence) {
			return 0, false
		}
		if available := minimumSequence(deps); available >= sequence {
			return available, true
		}
		s.yield(spins)
	}
}

// Signal implements WaitStrategy. It is a no-op.
func (*SpinWaitStrategy) Signal() {}

func (s *SpinWaitStrategy) backoff(spins int) {
	switch {
	case spins < s.spinTries:
	case spins < s.yieldTries:
		runtime.Gosched()
	default:
		time.Sleep(jitter(s.sleep))
	}
}

// jitter returns a duration in [d/2, d] so that waiting producers do not
// wake in lockstep.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half < math.MaxUint32 {
		return half + time.Duration(fastrand.Uint32n(uint32(half)+1))
	}
	const steps = 1 << 10
	return half + half/steps*time.Duration(fastrand.Uint32n(steps+1))
}

// BlockingWaitStrategy parks waiters on a condition variable until a
// Signal. Minimal CPU usage, higher latency.
type BlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiters atomic.Int64
}

// NewBlockingWaitStrategy returns a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	b := &BlockingWaitStrategy{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// WaitFor implements WaitStrategy.
func (b *BlockingWaitStrategy) WaitFor(sequence int64, deps []*Sequence, alerter Alerter) (int64, bool) {
	if alerter.Alerted(sequence) {
		return 0, false
	}
	if available := minimumSequence(deps); available >= sequence {
		return available, true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// waiters is raised before the predicate is re-checked so that a
	// concurrent Signal either sees the waiter or the waiter sees the
	// advanced sequence.
	b.waiters.Add(1)
	defer b.waiters.Add(-1)
	for {
		if alerter.Alerted(sequence) {
			return 0, false
		}
		if available := minimumSequence(deps); available >= sequence {
			return available, true
		}
		b.cond.Wait()
	}
}

// Signal implements WaitStrategy. It wakes all waiters.
func (b *BlockingWaitStrategy) Signal() {
	if b.waiters.Load() == 0 {
		return
	}
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

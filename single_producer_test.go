package ringpipe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSingleProducerSequencer_PublishMovesCursorOnce(t *testing.T) {
	sp, err := NewSingleProducerSequencer(8)
	if err != nil {
		t.Fatalf("NewSingleProducerSequencer(8) error = %v", err)
	}
	lo, hi, _ := sp.Next(5)
	sp.Publish(lo, hi)
	if got := sp.Cursor().Get(); got != 4 {
		t.Errorf("Cursor() = %d, want 4", got)
	}
	if got := sp.RemainingCapacity(); got != 8 {
		t.Errorf("RemainingCapacity() without gating sequences = %d, want 8", got)
	}
}

func TestSingleProducerSequencer_RemainingCapacityCountsClaims(t *testing.T) {
	sp, _ := NewSingleProducerSequencer(8)
	sp.NewGatingSequence()
	// Claimed but unpublished slots are not free.
	lo, hi, _ := sp.Next(3)
	if got := sp.RemainingCapacity(); got != 5 {
		t.Errorf("RemainingCapacity() after unpublished Next(3) = %d, want 5", got)
	}
	sp.Publish(lo, hi)
	if got := sp.RemainingCapacity(); got != 5 {
		t.Errorf("RemainingCapacity() after Publish = %d, want 5", got)
	}
}

// Smoke test to provide coverage of a concurrent producer and consumer.
func TestSingleProducerSequencer_SmokeTest(t *testing.T) {
	const n = 200_000
	const capacity = 1 << 10
	sp, _ := NewSingleProducerSequencer(capacity)
	ring, _ := NewRingBuffer[int64](capacity)

	const diffLimit = 10 // don't show too many diffs
	var (
		totalDiffs int
		wants      []int64
		gots       []int64
		count      int
	)
	wait := consume(t, sp, ring, func(event *int64, sequence int64) {
		count++
		if *event == sequence {
			return
		}
		totalDiffs++
		if len(gots) < diffLimit {
			gots = append(gots, *event)
			wants = append(wants, sequence)
		}
	})

	for i := 0; i < n; {
		batch := int64(1 + i%7)
		lo, hi, err := sp.Next(batch)
		if err != nil {
			t.Fatalf("Next(%d) error = %v", batch, err)
		}
		for seq := lo; seq <= hi; seq++ {
			*ring.Get(seq) = seq
		}
		sp.Publish(lo, hi)
		i += int(batch)
	}
	sp.Drain()
	wait()

	if count != int(sp.Cursor().Get()+1) {
		t.Errorf("consumed %d events, want %d", count, sp.Cursor().Get()+1)
	}
	diff := cmp.Diff(wants, gots)
	if diff == "" {
		return
	}
	if totalDiffs > diffLimit {
		t.Errorf("consumer received different data (-want +got, truncated to %d diffs):\n%s",
			diffLimit, diff)
	} else {
		t.Errorf("consumer received different data (-want +got):\n%s", diff)
	}
}

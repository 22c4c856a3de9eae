package ringpipe

import (
	"math"
	"testing"
	"unsafe"
)

func TestSequence(t *testing.T) {
	s := NewSequence(InitialSequence)
	if got := s.Get(); got != InitialSequence {
		t.Fatalf("Get() = %d, want %d", got, InitialSequence)
	}
	s.Set(5)
	if !s.CompareAndSwap(5, 7) {
		t.Fatal("CompareAndSwap(5, 7) = false, want true")
	}
	if s.CompareAndSwap(5, 8) {
		t.Fatal("CompareAndSwap(5, 8) = true, want false")
	}
	if got := s.Increment(); got != 7 {
		t.Fatalf("Increment() = %d, want 7", got)
	}
	if got := s.Add(2); got != 10 {
		t.Fatalf("Add(2) = %d, want 10", got)
	}
	if got := s.String(); got != "10" {
		t.Fatalf("String() = %q, want %q", got, "10")
	}
}

func TestSequence_Padding(t *testing.T) {
	const cacheLine = 64
	if got := unsafe.Sizeof(Sequence{}); got < 2*cacheLine {
		t.Errorf("unsafe.Sizeof(Sequence{}) = %d, want >= %d", got, 2*cacheLine)
	}
}

func TestMinimumSequence(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
		want   int64
	}{
		{name: "empty", values: nil, want: math.MaxInt64},
		{name: "single", values: []int64{-1}, want: -1},
		{name: "initial among others", values: []int64{3, -1, 7}, want: -1},
		{name: "minimum in the middle", values: []int64{5, 2, 9}, want: 2},
		{name: "minimum last", values: []int64{5, 9, 0}, want: 0},
		{name: "large values", values: []int64{math.MaxInt64 - 1, math.MaxInt64}, want: math.MaxInt64 - 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var seqs []*Sequence
			for _, v := range test.values {
				seqs = append(seqs, NewSequence(v))
			}
			if got := minimumSequence(seqs); got != test.want {
				t.Errorf("minimumSequence(%v) = %d, want %d", test.values, got, test.want)
			}
		})
	}
}

// Package ringpipe provides a Disruptor-style ring buffer.
//
// Producers claim slots from a Sequencer, write them in place and publish
// them. Consumer stages wait on a SequenceBarrier over the producer cursor
// or over the sequences of upstream stages, so stages can fan out from the
// producers, run as a pipeline, or join several upstream stages. Producers
// are held back by the slowest registered gating sequence and can never
// overwrite a slot that a stage has not yet processed.
//
// If for some reason you have Go code that needs to pass messages between
// goroutines at sub-microsecond latency, where shaving every nanosecond
// counts, then consider the disruptor pattern.
//
// A producer must always publish what it claimed, even if writing the slot
// fails; an unpublished claim stalls every stage behind it.
package ringpipe

package internal

import (
	"iter"
)

// IterSeqConcat concatenates multiple iterators into a single iterator
// sequence; debug.Debugger.ReadState uses it to walk a machine's standard
// register names and its general-purpose register names as one sequence.
func IterSeqConcat[T any](seqs ...iter.Seq[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, seq := range seqs {
			for val := range seq {
				if !yield(val) {
					return // Stop if the consumer stops
				}
			}
		}
	}
}

// Package backoff provides the relax step used by the spin loops in this module.
package backoff

import "runtime"

// MaxBackoff caps the number of yields performed by a single Relax call.
const MaxBackoff = 16

// Backoff is an exponential yield counter. The zero value is ready to use.
// A Backoff is owned by a single goroutine.
type Backoff struct {
	n int
}

// Relax yields the processor an exponentially growing number of times,
// capped at MaxBackoff. It stands in for a PAUSE instruction: a goroutine
// spinning on a flag must let the owner of that flag run when GOMAXPROCS is small.
func (b *Backoff) Relax() {
	if b.n == 0 {
		b.n = 1
	}
	for range b.n {
		runtime.Gosched()
	}
	if b.n < MaxBackoff {
		b.n <<= 1
	}
}

// Reset returns the counter to its initial state.
func (b *Backoff) Reset() { b.n = 0 }

// Pause yields once. Used where every iteration must be counted, such as a
// bounded wait on a queue node.
func Pause() { runtime.Gosched() }

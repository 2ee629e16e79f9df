// Package mcs implements the Mellor-Crummey Scott (MCS) lock, a scalable FIFO queue-based spin lock,
// extended with a timeout path that lets a waiter leave the queue before it is granted the lock.
//
// An MCS lock provides several advantages over traditional spin locks:
//   - FIFO ordering ensures fair lock acquisition
//   - Each goroutine spins on its own node, so a handoff touches only the successor's cache line
//   - Memory usage scales with the number of goroutines contending for the lock
//   - Predictable performance under high contention
//
// Example usage:
//
//	lock := mcs.NewLock()
//	node := &mcs.QNode{}
//
//	// Blocking acquisition
//	lock.Lock(node)
//	// ... critical section ...
//	lock.Unlock(node)
//
//	// Bounded acquisition: give up after 1000 polls and leave the queue
//	if lock.LockTimeout(node, 1000) {
//	    // ... critical section ...
//	    lock.Unlock(node)
//	}
//
// Each goroutine must own the QNode it passes in for a whole Lock/Unlock cycle. A node may
// be reused for the next cycle once Unlock returns, or once LockTimeout returns false.
package mcs

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/ahrav/go-qlock/internal/backoff"
)

// QNode represents a queue node in the MCS lock.
type QNode struct {
	next    atomic.Pointer[QNode] // successor; written by the successor, claimed by release or unqueue
	prev    atomic.Pointer[QNode] // predecessor; only read while unqueueing
	granted atomic.Bool           // set once by whoever hands the lock to this node
	_       cpu.CacheLinePad
}

func (n *QNode) reset() {
	n.next.Store(nil)
	n.prev.Store(nil)
	n.granted.Store(false)
}

// Lock represents the MCS lock. The zero value is an unlocked lock.
type Lock struct {
	tail atomic.Pointer[QNode]
	_    cpu.CacheLinePad
}

// NewLock creates a new MCS lock.
func NewLock() *Lock { return new(Lock) }

// TryLock attempts to acquire the lock without blocking.
// Returns true if lock was acquired, false otherwise.
func (l *Lock) TryLock(node *QNode) bool {
	node.reset()
	return l.tail.CompareAndSwap(nil, node)
}

// enqueue appends node to the queue and returns its predecessor, or nil if
// the caller now holds the lock.
func (l *Lock) enqueue(node *QNode) *QNode {
	node.reset()
	pred := l.tail.Swap(node) // Atomically put ourselves at the tail
	if pred == nil {
		return nil
	}

	// prev must be visible before the link: once pred.next names us, an
	// unqueueing predecessor may relink our prev.
	node.prev.Store(pred)
	pred.next.Store(node)
	return pred
}

// Lock acquires the lock, spinning on node until the predecessor hands off.
func (l *Lock) Lock(node *QNode) {
	if l.enqueue(node) == nil {
		return
	}
	for !node.granted.Load() {
		backoff.Pause()
	}
}

// LockTimeout acquires the lock like Lock, but gives up after polling node
// spins times. Giving up unlinks node from the queue. The result is true when
// the caller holds the lock, which can still happen after the timeout if a
// handoff raced with the unqueue. A false result means the caller left the
// queue without acquiring. spins <= 0 never times out.
func (l *Lock) LockTimeout(node *QNode, spins int) bool {
	pred := l.enqueue(node)
	if pred == nil {
		return true
	}

	for cnt := 0; !node.granted.Load(); {
		backoff.Pause()
		if spins <= 0 {
			continue
		}
		if cnt++; cnt >= spins {
			return l.unqueue(node, pred)
		}
	}
	return true
}

// unqueue removes a waiting node whose predecessor was prev.
func (l *Lock) unqueue(node, prev *QNode) bool {
	// Step 1: undo prev.next. This races with prev's Unlock, which claims
	// prev.next by exchange before granting, and with prev's own unqueue,
	// which rewrites node.prev when it relinks.
	for {
		if prev.next.Load() == node && prev.next.CompareAndSwap(node, nil) {
			break
		}
		if node.granted.Load() {
			return true
		}
		backoff.Pause()
		prev = node.prev.Load()
	}

	// Step 2: stabilize our successor, or roll the tail back to prev.
	next := l.waitNext(node, prev)
	if next == nil {
		return false
	}

	// Step 3: splice prev and next together.
	next.prev.Store(prev)
	prev.next.Store(next)
	return false
}

// waitNext claims node's successor. If node is still the tail it is removed
// instead by moving the tail back to prev, which is nil when called from
// Unlock, and nil is returned.
func (l *Lock) waitNext(node, prev *QNode) *QNode {
	for {
		if l.tail.Load() == node && l.tail.CompareAndSwap(node, prev) {
			return nil
		}

		// A nil next means either the successor has not linked yet or it is
		// undoing its link in unqueue step 1. Either way it will be fixed up.
		if node.next.Load() != nil {
			if next := node.next.Swap(nil); next != nil {
				return next
			}
		}
		backoff.Pause()
	}
}

// Unlock releases the lock held through node.
func (l *Lock) Unlock(node *QNode) {
	// Fast path for uncontended case.
	if l.tail.CompareAndSwap(node, nil) {
		return
	}

	// Claiming next by exchange blocks a concurrent unqueue of the successor
	// at its step 1; if the successor won, wait for it to finish.
	next := node.next.Swap(nil)
	if next == nil {
		next = l.waitNext(node, nil)
	}
	if next != nil {
		next.granted.Store(true) // Signal successor
	}
}

// IsFree returns true if the lock is currently free.
func (l *Lock) IsFree() bool { return l.tail.Load() == nil }

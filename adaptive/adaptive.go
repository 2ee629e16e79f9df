// Package adaptive provides Mutex, a sync.Locker built on the MCS queue lock
// from package mcs with an adaptive spin phase in front of it.
//
// Lock first probes the queue's tail with test-and-test-and-set for a bounded
// number of iterations. The bound is the smaller of the process-wide spin
// threshold (see package tunables) and a running estimate of how many probes
// recent acquisitions needed. A goroutine that wins a probe never touches the
// queue. Otherwise it enqueues and waits for a FIFO handoff, with no further
// attempts to skip the line.
//
// A queued goroutine polls its node at most as many times as the spin
// threshold allows (or the explicit queue timeout, see WithQueueTimeout).
// Past that it unlinks itself and parks on a Blocker until the lock is
// released, then starts over. StrictFIFO disables the timeout.
//
//	var mu adaptive.Mutex
//	mu.Lock()
//	defer mu.Unlock()
package adaptive

import (
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-qlock/internal/backoff"
	"github.com/ahrav/go-qlock/mcs"
	"github.com/ahrav/go-qlock/tunables"
)

// Mutex is a fair, adaptive mutual exclusion lock. The zero value is an
// unlocked Mutex that reads tunables.Default for both its probe and queue
// bounds. A Mutex must not be copied after first use.
type Mutex struct {
	queue mcs.Lock

	// owner is the node that acquired the lock. Only the holder touches it.
	owner *mcs.QNode
	nodes sync.Pool

	config       *tunables.Config
	queueTimeout int
	blocker      Blocker
	blockerOnce  sync.Once

	estimate atomic.Int32 // running average of probes per acquisition
	waiters  atomic.Int32 // goroutines parked on blocker

	stats stats
}

var _ sync.Locker = (*Mutex)(nil)

// New creates a Mutex configured by options.
func New(options ...Option) *Mutex {
	opts := loadOptions(options...)
	return &Mutex{
		config:       opts.Config,
		queueTimeout: opts.QueueTimeout,
		blocker:      opts.Blocker,
	}
}

// Lock acquires m, probing briefly before queueing.
func (m *Mutex) Lock() {
	node := m.getNode()
	for {
		if m.spin(node) {
			m.stats.fastPath.Add(1)
			break
		}
		if m.queue.LockTimeout(node, m.queueSpins()) {
			m.stats.queued.Add(1)
			break
		}
		m.stats.unqueued.Add(1)
		m.park()
	}
	m.owner = node
}

// TryLock acquires m only if it is free, without queueing.
func (m *Mutex) TryLock() bool {
	node := m.getNode()
	if m.queue.TryLock(node) {
		m.owner = node
		return true
	}
	m.nodes.Put(node)
	return false
}

// Unlock releases m and hands it to the next queued goroutine, if any.
// Unlocking an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	node := m.owner
	if node == nil {
		panic("adaptive: unlock of unlocked mutex")
	}
	m.owner = nil
	m.queue.Unlock(node)
	m.nodes.Put(node)

	if m.waiters.Load() > 0 {
		m.getBlocker().Wake()
	}
}

// spin probes for an uncontended lock and reports whether it acquired it.
func (m *Mutex) spin(node *mcs.QNode) bool {
	limit := m.spinCount()
	if limit <= 0 {
		return false
	}
	if bound := 2*int(m.estimate.Load()) + 10; bound < limit {
		limit = bound
	}

	var (
		bo       backoff.Backoff
		cnt      int
		acquired bool
	)
	for cnt < limit {
		cnt++
		m.stats.probes.Add(1)
		if m.queue.IsFree() && m.queue.TryLock(node) {
			acquired = true
			break
		}
		bo.Relax()
	}

	// Lossy under concurrent updates, like the value it approximates.
	est := m.estimate.Load()
	m.estimate.Store(est + (int32(cnt)-est)/8)
	return acquired
}

func (m *Mutex) park() {
	m.waiters.Add(1)
	m.stats.parked.Add(1)
	m.getBlocker().Wait(m.queue.IsFree)
	m.waiters.Add(-1)
}

// queueSpins returns the poll budget passed to mcs.LockTimeout, where 0
// means wait until granted.
func (m *Mutex) queueSpins() int {
	switch {
	case m.queueTimeout < 0:
		return 0
	case m.queueTimeout > 0:
		return m.queueTimeout
	}
	return max(m.spinCount(), 1)
}

func (m *Mutex) getBlocker() Blocker {
	m.blockerOnce.Do(func() {
		if m.blocker == nil {
			m.blocker = NewBlocker()
		}
	})
	return m.blocker
}

func (m *Mutex) spinCount() int {
	if m.config != nil {
		return m.config.SpinCount()
	}
	return tunables.Default.SpinCount()
}

func (m *Mutex) getNode() *mcs.QNode {
	if node, ok := m.nodes.Get().(*mcs.QNode); ok {
		return node
	}
	return new(mcs.QNode)
}

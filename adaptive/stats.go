package adaptive

import "sync/atomic"

// Stats is a snapshot of a Mutex's acquisition counters.
type Stats struct {
	FastPath uint64 // acquisitions won while probing
	Probes   uint64 // probe iterations, successful or not
	Queued   uint64 // acquisitions granted through the queue
	Unqueued uint64 // queue waits abandoned after the timeout
	Parked   uint64 // times a goroutine blocked on the Blocker
}

type stats struct {
	fastPath atomic.Uint64
	probes   atomic.Uint64
	queued   atomic.Uint64
	unqueued atomic.Uint64
	parked   atomic.Uint64
}

// Stats returns the current counters. Fields are read independently, so a
// snapshot taken under contention need not be consistent across fields.
func (m *Mutex) Stats() Stats {
	return Stats{
		FastPath: m.stats.fastPath.Load(),
		Probes:   m.stats.probes.Load(),
		Queued:   m.stats.queued.Load(),
		Unqueued: m.stats.unqueued.Load(),
		Parked:   m.stats.parked.Load(),
	}
}

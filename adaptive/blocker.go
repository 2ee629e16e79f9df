package adaptive

import "sync"

// Blocker is the fallback used once a goroutine gives up waiting in the
// queue. Wait blocks until ready reports true or Wake is called after Wait
// started. Wake releases every goroutine currently waiting.
type Blocker interface {
	Wait(ready func() bool)
	Wake()
}

// chanBlocker broadcasts by closing the channel waiters captured.
type chanBlocker struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewBlocker returns the default Blocker.
func NewBlocker() Blocker { return new(chanBlocker) }

func (b *chanBlocker) Wait(ready func() bool) {
	b.mu.Lock()
	if b.ch == nil {
		b.ch = make(chan struct{})
	}
	ch := b.ch
	b.mu.Unlock()

	// Checked after capturing ch so a Wake between the two is not missed.
	if ready() {
		return
	}
	<-ch
}

func (b *chanBlocker) Wake() {
	b.mu.Lock()
	if b.ch != nil {
		close(b.ch)
		b.ch = nil
	}
	b.mu.Unlock()
}

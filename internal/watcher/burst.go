package watcher

import (
	"sync"
	"time"
)

// burst coalesces the events of one snapshot path. fire runs once the path
// has been quiet for delay.
type burst struct {
	delay time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func newBurst(delay time.Duration, fire func()) *burst {
	return &burst{delay: delay, fire: fire}
}

// touch restarts the quiet period.
func (b *burst) touch() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.seq++
	seq := b.seq
	b.timer = time.AfterFunc(b.delay, func() {
		b.mu.Lock()
		// a later touch or stop owns the timer now
		current := seq == b.seq
		if current {
			b.timer = nil
		}
		b.mu.Unlock()

		if current {
			b.fire()
		}
	})
}

// stop drops a scheduled fire, including one whose timer already expired
// but has not taken the lock yet.
func (b *burst) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.seq++
}

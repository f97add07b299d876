package auction

import (
	"sync"
	"time"
)

// Countdown is a cancellable periodic task that reports the time remaining
// until a fixed end timestamp. It never mutates auction state; closing an
// auction is server-driven. After the end passes it keeps reporting zero
// until stopped, since only an auction_updated event closes the window.
type Countdown struct {
	endAt    time.Time
	interval time.Duration
	tick     func(remaining time.Duration)

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewCountdown(endAt time.Time, interval time.Duration, tick func(remaining time.Duration)) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		endAt:    endAt,
		interval: interval,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. The first tick fires immediately.
func (c *Countdown) Start() {
	c.startOnce.Do(func() { c.started = true; go c.run() })
}

func (c *Countdown) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.fire(time.Now())
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.fire(now)
		}
	}
}

func (c *Countdown) fire(now time.Time) {
	remaining := c.endAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	c.tick(remaining)
}

// Stop cancels the countdown and waits for the ticker goroutine to exit, so
// no tick can fire after Stop returns. Idempotent; a no-op if never started.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started {
		<-c.done
	}
}

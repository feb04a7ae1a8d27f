package channels

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedChats caps the limiter map so rotating chat IDs cannot
	// grow memory without bound.
	maxTrackedChats = 4096

	// sendBurst is how many messages a chat may receive back to back
	// before the per-second rate applies.
	sendBurst = 5
)

// SendLimiter throttles outbound delivery per chat so a runaway agent
// (or a burst of cron output) cannot flood a platform API. Safe for
// concurrent use.
type SendLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perChat  rate.Limit
}

// NewSendLimiter creates a limiter allowing one message per interval per
// chat, with a small burst.
func NewSendLimiter(interval time.Duration) *SendLimiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &SendLimiter{
		limiters: make(map[string]*rate.Limiter),
		perChat:  rate.Every(interval),
	}
}

// Reserve blocks until the chat's limiter admits another send. Returns
// false when the limiter map is saturated and the key had to be dropped;
// callers should deliver anyway rather than lose the message.
func (l *SendLimiter) Reserve(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedChats {
			// Evict an arbitrary entry. Map iteration order gives a
			// FIFO-ish eviction without tracking insertion times.
			for k := range l.limiters {
				delete(l.limiters, k)
				break
			}
		}
		lim = rate.NewLimiter(l.perChat, sendBurst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if !r.OK() {
		return false
	}
	if d := r.Delay(); d > 0 {
		time.Sleep(d)
	}
	return true
}

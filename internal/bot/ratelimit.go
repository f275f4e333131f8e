package bot

import (
	"sync"
	"time"
)

// Limiter is a per-user cooldown between handled messages. Admins are
// exempted by the caller.
type Limiter struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewLimiter(cooldown time.Duration) *Limiter {
	return &Limiter{
		last:     make(map[int64]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow reports whether the user may proceed and, if so, starts a new
// cooldown window.
func (l *Limiter) Allow(userID int64) bool {
	if l.cooldown <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if prev, ok := l.last[userID]; ok && now.Sub(prev) < l.cooldown {
		return false
	}
	l.last[userID] = now
	return true
}

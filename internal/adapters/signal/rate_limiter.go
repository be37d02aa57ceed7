package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/huddle/internal/domain"
)

// ChatRateLimiter throttles chat messages per user across all of the
// user's connections.
type ChatRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewChatRateLimiter(perSecond float64, burst int) *ChatRateLimiter {
	return &ChatRateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *ChatRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops the bucket of a user with no live connections.
func (rl *ChatRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, uid)
}

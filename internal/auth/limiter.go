package auth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FailureLimiter blocks an email after too many failed sign-ins. Each
// failure spends a token; tokens refill over Window.
type FailureLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	Now      func() time.Time
}

func NewFailureLimiter(maxFailures int, window time.Duration) *FailureLimiter {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &FailureLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(maxFailures)),
		burst:    maxFailures,
		Now:      time.Now,
	}
}

func (l *FailureLimiter) get(key string) *rate.Limiter {
	key = strings.ToLower(strings.TrimSpace(key))
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Blocked reports whether key has exhausted its failures.
func (l *FailureLimiter) Blocked(key string) bool {
	if l == nil {
		return false
	}
	return l.get(key).TokensAt(l.Now()) < 1
}

func (l *FailureLimiter) Fail(key string) {
	if l == nil {
		return
	}
	l.get(key).AllowN(l.Now(), 1)
}

// Reset forgets failures for key after a successful sign-in.
func (l *FailureLimiter) Reset(key string) {
	if l == nil {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

package pubfront

import (
	"sync"
	"time"
)

const (
	defaultSubmitLimit  = 5
	defaultSubmitWindow = time.Minute
)

// SubmitLimiter rate-limits comment submissions per IP address.
type SubmitLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewSubmitLimiter creates a SubmitLimiter that allows max submissions per
// window. Non-positive values fall back to 5 per minute.
func NewSubmitLimiter(max int, window time.Duration) *SubmitLimiter {
	if max <= 0 {
		max = defaultSubmitLimit
	}
	if window <= 0 {
		window = defaultSubmitWindow
	}
	l := &SubmitLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Close stops the background sweep.
func (l *SubmitLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *SubmitLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip := range l.attempts {
				l.prune(ip, now)
			}
			l.mu.Unlock()
		}
	}
}

// prune drops the attempts of ip older than the window and returns how
// many remain. l.mu must be held.
func (l *SubmitLimiter) prune(ip string, now time.Time) int {
	cutoff := now.Add(-l.window)
	hits := l.attempts[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, ip)
		return 0
	}
	l.attempts[ip] = kept
	return len(kept)
}

// Allow reports whether the IP is under the rate limit and, if so, records
// the attempt.
func (l *SubmitLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.prune(ip, now) >= l.max {
		return false
	}
	l.attempts[ip] = append(l.attempts[ip], now)
	return true
}

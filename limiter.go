package headpress

import (
	"sync"
	"time"
)

// WebhookLimiter rate-limits failed webhook authentications per IP address
// over a sliding window.
type WebhookLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewWebhookLimiter creates a WebhookLimiter that allows max failures per
// window. Close stops its cleanup goroutine.
func NewWebhookLimiter(max int, window time.Duration) *WebhookLimiter {
	return newWebhookLimiter(max, window, time.Now)
}

func newWebhookLimiter(max int, window time.Duration, now func() time.Time) *WebhookLimiter {
	l := &WebhookLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *WebhookLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		cutoff := l.now().Add(-l.window)
		l.mu.Lock()
		for ip, hits := range l.attempts {
			if kept := prune(hits, cutoff); len(kept) == 0 {
				delete(l.attempts, ip)
			} else {
				l.attempts[ip] = kept
			}
		}
		l.mu.Unlock()
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Check returns true if the IP has not exceeded the limit. It does not
// record anything; call Record on a failed authentication.
func (l *WebhookLimiter) Check(ip string) bool {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.attempts[ip], cutoff)
	if len(kept) == 0 {
		delete(l.attempts, ip)
		return true
	}
	l.attempts[ip] = kept
	return len(kept) < l.max
}

// Record registers a failed authentication for the given IP.
func (l *WebhookLimiter) Record(ip string) {
	l.mu.Lock()
	l.attempts[ip] = append(l.attempts[ip], l.now())
	l.mu.Unlock()
}

// Close stops the cleanup goroutine.
func (l *WebhookLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

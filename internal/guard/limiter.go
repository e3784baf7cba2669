package guard

import (
	"sync"
	"time"
)

type slidingEntry struct {
	prevCount int
	currCount int
	windowAt  time.Time
}

// SlidingWindowLimiter rate-limits per key using a weighted two-window
// sliding algorithm, which avoids the burst-at-boundary problem of fixed
// windows.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	entries map[string]*slidingEntry
	rate    int
	window  time.Duration
	done    chan struct{}
}

// NewSlidingWindowLimiter creates a limiter allowing rate requests per
// window per key.
func NewSlidingWindowLimiter(rate int, window time.Duration) *SlidingWindowLimiter {
	sl := &SlidingWindowLimiter{
		entries: make(map[string]*slidingEntry),
		rate:    rate,
		window:  window,
		done:    make(chan struct{}),
	}

	go sl.cleanup()
	return sl
}

// Allow reports whether one more request is admitted for the given key.
func (s *SlidingWindowLimiter) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, exists := s.entries[key]

	if !exists {
		s.entries[key] = &slidingEntry{
			currCount: 1,
			windowAt:  now.Add(s.window),
		}
		return 1 <= s.rate
	}

	if now.After(e.windowAt) {
		windowsPassed := int(now.Sub(e.windowAt)/s.window) + 1
		if windowsPassed >= 2 {
			e.prevCount = 0
			e.currCount = 1
		} else {
			e.prevCount = e.currCount
			e.currCount = 1
		}
		e.windowAt = now.Add(s.window)
		return 1 <= s.rate
	}

	// Weight the previous window by how far we are into the current one.
	remaining := time.Until(e.windowAt)
	weight := float64(remaining) / float64(s.window)
	weightedCount := float64(e.prevCount)*weight + float64(e.currCount)

	if int(weightedCount)+1 > s.rate {
		return false
	}

	e.currCount++
	return true
}

// Reset clears the window state for the given key.
func (s *SlidingWindowLimiter) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Close stops the cleanup goroutine.
func (s *SlidingWindowLimiter) Close() error {
	close(s.done)
	return nil
}

func (s *SlidingWindowLimiter) cleanup() {
	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired drops entries stale for more than two windows.
func (s *SlidingWindowLimiter) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-2 * s.window)
	for key, e := range s.entries {
		if e.windowAt.Before(threshold) {
			delete(s.entries, key)
		}
	}
}

package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxTrackedIdentifiers = 10000
	limiterCleanupInterval       = 5 * time.Minute
	limiterMaxIdle               = 30 * time.Minute
)

// bucket pairs a token bucket with its last access time for idle cleanup.
type bucket struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies per-identifier token bucket limiting, typically keyed
// by client IP. Tracked identifiers are bounded: least recently used entries
// are evicted at capacity, and idle entries are reaped in the background.
type RateLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*list.Element
	lru      *list.List // front = most recently used
	rate     int
	burst    int
	capacity int

	logger      *slog.Logger
	stopCleanup chan struct{}

	evictions int64
	cleanups  int64
}

// NewRateLimiter creates a rate limiter tracking up to 10,000 identifiers.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(requestsPerSecond, burst, defaultMaxTrackedIdentifiers, logger)
}

// NewRateLimiterWithConfig creates a rate limiter with an explicit identifier
// capacity. A capacity of 0 disables the bound; negative values fall back to
// the default.
func NewRateLimiterWithConfig(requestsPerSecond, burst, capacity int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 0 {
		logger.Warn("Invalid rate limiter capacity, using default", "capacity", capacity)
		capacity = defaultMaxTrackedIdentifiers
	}

	rl := &RateLimiter{
		buckets:     make(map[string]*list.Element),
		lru:         list.New(),
		rate:        requestsPerSecond,
		burst:       burst,
		capacity:    capacity,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether the identifier may make a request right now.
func (rl *RateLimiter) Allow(identifier string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.buckets[identifier]; ok {
		rl.lru.MoveToFront(elem)
		b := elem.Value.(*bucket)
		b.lastAccess = now
		return b.limiter.Allow()
	}

	if rl.capacity > 0 && len(rl.buckets) >= rl.capacity {
		rl.evictOldest()
	}

	b := &bucket{
		identifier: identifier,
		limiter:    rate.NewLimiter(rate.Limit(rl.rate), rl.burst),
		lastAccess: now,
	}
	rl.buckets[identifier] = rl.lru.PushFront(b)

	return b.limiter.Allow()
}

// evictOldest drops the least recently used bucket. Caller holds the lock.
func (rl *RateLimiter) evictOldest() {
	elem := rl.lru.Back()
	if elem == nil {
		return
	}

	b := elem.Value.(*bucket)
	delete(rl.buckets, b.identifier)
	rl.lru.Remove(elem)
	rl.evictions++

	rl.logger.Debug("Rate limiter eviction",
		"identifier", b.identifier,
		"total_evictions", rl.evictions,
		"tracked", len(rl.buckets))
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(limiterMaxIdle)
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup removes buckets that have been idle longer than maxIdleTime.
func (rl *RateLimiter) Cleanup(maxIdleTime time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for elem := rl.lru.Front(); elem != nil; elem = next {
		next = elem.Next()
		b := elem.Value.(*bucket)

		if now.Sub(b.lastAccess) > maxIdleTime {
			delete(rl.buckets, b.identifier)
			rl.lru.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		rl.cleanups++
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.buckets),
			"total_cleanups", rl.cleanups)
	}
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// Stats holds rate limiter statistics for monitoring
type Stats struct {
	CurrentEntries int     // Currently tracked identifiers
	MaxEntries     int     // Capacity (0 = unbounded)
	TotalEvictions int64   // LRU evictions since start
	TotalCleanups  int64   // Idle cleanup passes that removed entries
	MemoryPressure float64 // Percentage of capacity in use (0-100)
}

// GetStats returns a snapshot of the limiter's occupancy, useful for
// alerting on capacity pressure.
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	stats := Stats{
		CurrentEntries: len(rl.buckets),
		MaxEntries:     rl.capacity,
		TotalEvictions: rl.evictions,
		TotalCleanups:  rl.cleanups,
	}
	if rl.capacity > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(rl.capacity) * 100.0
	}
	return stats
}

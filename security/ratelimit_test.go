package security

import (
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	if rl.rate != 10 {
		t.Errorf("rate = %d, want 10", rl.rate)
	}
	if rl.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.burst)
	}
	if rl.capacity != defaultMaxTrackedIdentifiers {
		t.Errorf("capacity = %d, want %d", rl.capacity, defaultMaxTrackedIdentifiers)
	}
	if rl.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()

	// Requests up to the burst are allowed.
	for i := 0; i < 5; i++ {
		if !rl.Allow("client-a") {
			t.Errorf("Allow() request %d should be allowed", i+1)
		}
	}

	if rl.Allow("client-a") {
		t.Error("Allow() should return false once the burst is exhausted")
	}
}

func TestRateLimiter_Allow_SeparateIdentifiers(t *testing.T) {
	rl := NewRateLimiter(10, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("client-a")
	rl.Allow("client-a")

	if rl.Allow("client-a") {
		t.Error("Allow(client-a) should be limited")
	}
	if !rl.Allow("client-b") {
		t.Error("Allow(client-b) should be allowed, identifiers are independent")
	}
}

func TestRateLimiter_Allow_RefillOverTime(t *testing.T) {
	rl := NewRateLimiter(2, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("client-a")
	rl.Allow("client-a")

	if rl.Allow("client-a") {
		t.Error("Allow() should be limited immediately after the burst")
	}

	// One token refills after 500ms at 2 req/s.
	time.Sleep(550 * time.Millisecond)

	if !rl.Allow("client-a") {
		t.Error("Allow() should succeed after token refill")
	}
}

func TestRateLimiter_Eviction(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 20, 3, slog.Default())
	defer rl.Stop()

	for i := 0; i < 4; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}

	rl.mu.RLock()
	tracked := len(rl.buckets)
	_, hasOldest := rl.buckets["client-0"]
	rl.mu.RUnlock()

	if tracked != 3 {
		t.Errorf("tracked = %d, want 3", tracked)
	}
	if hasOldest {
		t.Error("least recently used identifier should have been evicted")
	}

	stats := rl.GetStats()
	if stats.TotalEvictions != 1 {
		t.Errorf("TotalEvictions = %d, want 1", stats.TotalEvictions)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 20, slog.Default())
	defer rl.Stop()

	rl.Allow("client-a")
	rl.Allow("client-b")
	rl.Allow("client-c")

	// Age two entries past the idle threshold.
	rl.mu.Lock()
	for id, elem := range rl.buckets {
		if id != "client-c" {
			elem.Value.(*bucket).lastAccess = time.Now().Add(-time.Hour)
		}
	}
	rl.mu.Unlock()

	rl.Cleanup(30 * time.Minute)

	rl.mu.RLock()
	remaining := len(rl.buckets)
	_, hasActive := rl.buckets["client-c"]
	rl.mu.RUnlock()

	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
	if !hasActive {
		t.Error("recently used identifier should survive cleanup")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, 100, slog.Default())
	defer rl.Stop()

	const goroutines = 10
	done := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			identifier := fmt.Sprintf("client-%d", id)
			for j := 0; j < 10; j++ {
				rl.Allow(identifier)
			}
			done <- struct{}{}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		<-done
	}
}

func TestRateLimiter_GetStats(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 20, 10, slog.Default())
	defer rl.Stop()

	rl.Allow("client-a")
	rl.Allow("client-b")

	stats := rl.GetStats()
	if stats.CurrentEntries != 2 {
		t.Errorf("CurrentEntries = %d, want 2", stats.CurrentEntries)
	}
	if stats.MaxEntries != 10 {
		t.Errorf("MaxEntries = %d, want 10", stats.MaxEntries)
	}
	if stats.MemoryPressure != 20.0 {
		t.Errorf("MemoryPressure = %f, want 20.0", stats.MemoryPressure)
	}
}

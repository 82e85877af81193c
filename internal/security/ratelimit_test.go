package security

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)

	if !rl.Allow("alice") {
		t.Fatal("first request denied")
	}
	if !rl.Allow("alice") {
		t.Fatal("second request denied")
	}
	if rl.Allow("alice") {
		t.Error("third request allowed over the limit")
	}

	// Keys hold independent buckets.
	if !rl.Allow("bob") {
		t.Error("fresh key denied")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("carol") {
		t.Fatal("first request denied")
	}
	if rl.Allow("carol") {
		t.Fatal("second request allowed before refill")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("carol") {
		t.Error("request denied after the window elapsed")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	if rl.Window() != time.Minute {
		t.Errorf("Window() = %v, want %v", rl.Window(), time.Minute)
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop() // idempotent

	// Stopping ends the background cleanup only; the limiter keeps limiting.
	if !rl.Allow("dave") {
		t.Error("first request denied after Stop")
	}
	if rl.Allow("dave") {
		t.Error("second request allowed over the limit after Stop")
	}
}

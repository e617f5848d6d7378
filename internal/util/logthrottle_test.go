package util

import (
	"testing"
	"time"
)

func TestLogThrottleBurstThenSuppress(t *testing.T) {
	throttle := NewLogThrottle(time.Hour, 3)

	allowed := 0
	for i := 0; i < 10; i++ {
		if throttle.Allow() {
			allowed++
		}
	}

	if allowed != 3 {
		t.Fatalf("allowed = %d, want burst of 3", allowed)
	}
	if got := throttle.TakeSuppressed(); got != 7 {
		t.Fatalf("suppressed = %d, want 7", got)
	}
	// counter resets once taken
	if got := throttle.TakeSuppressed(); got != 0 {
		t.Fatalf("suppressed after take = %d, want 0", got)
	}
}

func TestLogThrottleRefills(t *testing.T) {
	throttle := NewLogThrottle(10*time.Millisecond, 1)

	if !throttle.Allow() {
		t.Fatal("first call should pass")
	}
	if throttle.Allow() {
		t.Fatal("second immediate call should be suppressed")
	}

	time.Sleep(25 * time.Millisecond)
	if !throttle.Allow() {
		t.Fatal("call after refill interval should pass")
	}
}

package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("request beyond burst should be denied")
	}
}

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(100, 1)

	if !l.Allow() {
		t.Fatal("first request should be allowed")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestLimiterCapsAtBurst(t *testing.T) {
	l := NewLimiter(1000, 2)
	time.Sleep(10 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("idle refill must cap at burst, allowed %d", allowed)
	}
}

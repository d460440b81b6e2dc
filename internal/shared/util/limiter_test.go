package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow() {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow() {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow() {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiterRegistry(t *testing.T) {
	// 100 tokens/sec, burst 10, ttl 100ms
	reg := NewLimiterRegistry(100, 10, 100*time.Millisecond)
	defer reg.Close()

	l1 := reg.Get("src/api.py")
	l2 := reg.Get("src/models.py")

	if l1 == l2 {
		t.Error("expected different limiters for different paths")
	}

	if reg.Get("src/api.py") != l1 {
		t.Error("expected same limiter for same path")
	}

	time.Sleep(250 * time.Millisecond)
	// Cleanup should have removed the idle limiters
	if reg.Get("src/api.py") == l1 {
		t.Error("expected old limiter to be cleaned up and replaced")
	}
}

func TestLimiterWait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow() // consume burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Wait returned too early")
	}
}

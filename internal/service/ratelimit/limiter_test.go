package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatalf("first two calls should pass")
	}
	if l.Allow("u1") {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("u2") {
		t.Fatalf("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("u1") {
		t.Fatalf("one token should have been refilled")
	}
	if l.Allow("u1") {
		t.Fatalf("refill must not exceed elapsed time")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(1, 0)
	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	l := New(1, 50)
	ctx := context.Background()
	_ = l.Wait(ctx, "k")

	start := time.Now()
	if err := l.Wait(ctx, "k"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("second wait returned without waiting for a refill")
	}
}

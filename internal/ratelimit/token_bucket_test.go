package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on request %d within burst", i+1)
		}
	}
}

func TestBlockWhenDepleted(t *testing.T) {
	l := New(10, 2)
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rate limit after burst exhausted")
	}
}

func TestRefillOverTime(t *testing.T) {
	l := New(1000, 1) // 1000 rps, burst 1
	l.Allow()         // exhaust the burst
	time.Sleep(2 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected allow after refill")
	}
}

func TestStoreCreatesPerCallerLimiters(t *testing.T) {
	s := NewStore(100, 10)
	for i := 0; i < 10; i++ {
		if !s.AllowCaller(1001) {
			t.Fatalf("expected allow on caller 1001 request %d", i+1)
		}
	}
	// A different caller gets its own fresh bucket.
	if !s.AllowCaller(1002) {
		t.Fatal("expected allow on caller 1002 (fresh limiter)")
	}
}

func TestStoreBlocksFloodingCaller(t *testing.T) {
	s := NewStore(0.001, 2)
	s.AllowCaller(7)
	s.AllowCaller(7)
	if s.AllowCaller(7) {
		t.Fatal("expected caller 7 to be limited after burst")
	}
	if !s.AllowCaller(8) {
		t.Fatal("caller 8 must not be affected by caller 7's flood")
	}
}

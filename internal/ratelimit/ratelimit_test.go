package ratelimit

import (
	"testing"
	"time"

	"github.com/fabian4/devproxy/internal/model"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter()
	cfg := &model.RateLimit{RequestsPerSecond: 1, Burst: 1}

	if !l.Allow("api", cfg) {
		t.Errorf("expected Allow to return true for initial request")
	}
	// burst of 1 consumed
	if l.Allow("api", cfg) {
		t.Errorf("expected Allow to return false when burst exceeded")
	}

	// raising the rate refills at 100 tokens/s
	faster := &model.RateLimit{RequestsPerSecond: 100, Burst: 5}
	if !l.Allow("api", faster) {
		time.Sleep(20 * time.Millisecond)
		if !l.Allow("api", faster) {
			t.Errorf("expected Allow to return true after increasing rate and waiting")
		}
	}
}

func TestLimiter_NilConfigNeverLimits(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 100; i++ {
		if !l.Allow("api", nil) {
			t.Fatalf("request %d limited without config", i)
		}
	}
}

func TestLimiter_RulesAreIndependent(t *testing.T) {
	l := NewLimiter()
	cfg := &model.RateLimit{RequestsPerSecond: 1, Burst: 1}

	if !l.Allow("A", cfg) {
		t.Error("A should be allowed")
	}
	if l.Allow("A", cfg) {
		t.Error("A should be blocked")
	}
	if !l.Allow("B", cfg) {
		t.Error("B should be allowed (independent of A)")
	}

	l.Reset()
	if !l.Allow("A", cfg) {
		t.Error("A should be allowed after Reset")
	}
}

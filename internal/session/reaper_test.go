package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/congo-pay/ussd_gateway/internal/logging"
	"github.com/congo-pay/ussd_gateway/internal/metrics"
	"github.com/congo-pay/ussd_gateway/internal/telco"
)

func TestReaperSweepOnce(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()
	store.GetOrCreate(ctx, "idle", "08031234567", telco.MTN)
	clock.Advance(3 * time.Minute)
	store.GetOrCreate(ctx, "busy", "08031234567", telco.MTN)
	clock.Advance(3 * time.Minute)

	r := NewReaper(store, time.Second, logging.Discard(), metrics.New(prometheus.NewRegistry()))
	if n := r.SweepOnce(ctx); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := store.Get(ctx, "busy"); err != nil {
		t.Fatalf("busy session must survive: %v", err)
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	r := NewReaper(store, 10*time.Millisecond, logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Turn("main", "CON")
	m.Turn("main", "CON")
	m.Operation("transfer", "completed", time.Now())
	m.Sessions(3, 2)

	if got := testutil.ToFloat64(m.turns.WithLabelValues("main", "CON")); got != 2 {
		t.Fatalf("expected 2 turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.activeSessions); got != 3 {
		t.Fatalf("expected 3 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.evictedSessions); got != 2 {
		t.Fatalf("expected 2 evictions, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Turn("main", "END")
	m.Operation("airtime", "failed", time.Now())
	m.Sessions(1, 1)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNew_NilRegistryDoesNotPanic(t *testing.T) {
	m := New(nil)
	m.ObserveAcquire(false, true)
	m.ObserveRelease(false, ReasonExplicit, time.Second)
	m.SetActiveLeases(true, 3)
	m.ObserveRenew("heartbeat")
	m.ObserveEnforcementDecision("strict", false)
	m.ObserveRecovery(1, 2, true)
}

func TestNilMetrics_AllMethodsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAcquire(false, true)
	m.ObserveRelease(false, ReasonExplicit, time.Second)
	m.SetActiveLeases(true, 3)
	m.ObserveRenew("heartbeat")
	m.ObserveEnforcementDecision("strict", false)
	m.ObserveRecovery(1, 2, true)
}

func TestObserveAcquire_IncrementsCorrectLabel(t *testing.T) {
	m := New(nil)
	m.ObserveAcquire(false, true)
	m.ObserveAcquire(true, false)

	if got := counterValue(t, m.leaseAcquireTotal, "finite", StatusGranted); got != 1 {
		t.Fatalf("finite/granted = %v, want 1", got)
	}
	if got := counterValue(t, m.leaseAcquireTotal, "indefinite", StatusDenied); got != 1 {
		t.Fatalf("indefinite/denied = %v, want 1", got)
	}
}

func TestNew_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	if !m.registered {
		t.Fatal("expected registered to be true")
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

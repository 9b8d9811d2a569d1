package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("syncengine-test", reg)

	m.RecordEntityAction("sync-1", "insert", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.EntitiesProcessedTotal.WithLabelValues("sync-1", "insert")); got != 1 {
		t.Errorf("expected 1 entity recorded, got %v", got)
	}
}

func TestRecordErrorIncrementsByComponentAndKind(t *testing.T) {
	m := NewWithRegistry("syncengine-test", prometheus.NewRegistry())

	m.RecordError("orchestrator", "ENTITY_PROCESSING_ERROR")
	m.RecordError("orchestrator", "ENTITY_PROCESSING_ERROR")

	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("orchestrator", "ENTITY_PROCESSING_ERROR")); got != 2 {
		t.Errorf("expected 2 errors recorded, got %v", got)
	}
}

func TestSetWorkerPoolSetsBothGauges(t *testing.T) {
	m := NewWithRegistry("syncengine-test", prometheus.NewRegistry())

	m.SetWorkerPool(16, 5)

	if got := testutil.ToFloat64(m.WorkerPoolCapacity); got != 16 {
		t.Errorf("expected capacity 16, got %v", got)
	}
	if got := testutil.ToFloat64(m.WorkerPoolInFlight); got != 5 {
		t.Errorf("expected in-flight 5, got %v", got)
	}
}

func TestNewWithRegistryNilRegistererSkipsRegistration(t *testing.T) {
	// A nil registerer must not panic and must still produce usable
	// collectors, since tests may construct several Metrics instances in
	// one process without colliding on prometheus.DefaultRegisterer.
	m := NewWithRegistry("syncengine-test", nil)
	m.RecordTokenRefresh("github", "success")

	if got := testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("github", "success")); got != 1 {
		t.Errorf("expected 1 refresh recorded, got %v", got)
	}
}

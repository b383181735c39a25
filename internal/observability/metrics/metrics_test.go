package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegisterAddsServiceLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg, "sessions")

	SessionEvictionsTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "session_evictions_total" {
			continue
		}
		found = true
		labels := mf.GetMetric()[0].GetLabel()
		if len(labels) != 1 || labels[0].GetName() != "service" || labels[0].GetValue() != "sessions" {
			t.Fatalf("unexpected labels: %v", labels)
		}
	}
	if !found {
		t.Fatal("session_evictions_total not gathered")
	}
	if got := testutil.ToFloat64(SessionEvictionsTotal); got < 1 {
		t.Fatalf("expected counter >= 1, got %v", got)
	}
}

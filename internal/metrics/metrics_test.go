package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNew_RegistersDistinctCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncLockAcquired()
	c.IncLockContended()
	c.IncSweeperErrors()
	c.ObserveLockWait(50 * time.Millisecond)
	c.SetSweeperLastRun(time.Unix(1700000000, 0))

	if got := counterValue(t, c.LockAcquiredTotal); got != 1 {
		t.Errorf("LockAcquiredTotal = %v, want 1", got)
	}
	if got := counterValue(t, c.LockContendedTotal); got != 1 {
		t.Errorf("LockContendedTotal = %v, want 1", got)
	}
	if got := counterValue(t, c.SweeperErrorsTotal); got != 1 {
		t.Errorf("SweeperErrorsTotal = %v, want 1", got)
	}
}

func TestNilCollectors_AreNoOps(t *testing.T) {
	var c *Collectors

	// Должны вызываться без паники на nil receiver'е.
	c.ObserveLockWait(time.Second)
	c.IncLockAcquired()
	c.IncLockContended()
	c.SetSweeperLastRun(time.Now())
	c.IncSweeperErrors()
}

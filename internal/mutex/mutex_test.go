package mutex

import (
	"context"
	"testing"

	"github.com/shaiso/triggerstore/internal/domain"
)

func TestAcquire_NonReentrant(t *testing.T) {
	m := &Mutex{
		instanceName: "cluster-a",
		lockType:     domain.LockTriggerAccess,
		owner:        "instance-1",
		held:         true,
	}
	if err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected non-reentrant Acquire to fail when already held")
	}
}

func TestRelease_NoopWhenNotHeld(t *testing.T) {
	m := &Mutex{
		instanceName: "cluster-a",
		lockType:     domain.LockTriggerAccess,
		owner:        "instance-1",
		held:         false,
	}
	if err := m.Release(context.Background()); err != nil {
		t.Fatalf("Release on an unheld mutex should be a no-op, got %v", err)
	}
}

func TestWithTTL_Fluent(t *testing.T) {
	m := (&Mutex{}).WithTTL(5)
	if m.ttl != 5 {
		t.Errorf("WithTTL did not set ttl, got %v", m.ttl)
	}
}

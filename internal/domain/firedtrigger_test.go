package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewFiredInstanceID_HasExpectedPrefixAndFormat(t *testing.T) {
	key := TriggerKey{InstanceName: "cluster-a", Group: "reports", Name: "daily"}
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	id := NewFiredInstanceID(key, "instance-1", at)
	prefix := FiredInstanceIDPrefix(key, "instance-1")

	if !strings.HasPrefix(id, prefix+":") {
		t.Errorf("expected %q to have prefix %q", id, prefix+":")
	}
	if prefix != "daily:reports:instance-1" {
		t.Errorf("unexpected prefix %q", prefix)
	}
}

func TestNewFiredInstanceID_UniquePerTimestamp(t *testing.T) {
	key := TriggerKey{Group: "reports", Name: "daily"}
	a := NewFiredInstanceID(key, "instance-1", time.Unix(0, 1))
	b := NewFiredInstanceID(key, "instance-1", time.Unix(0, 2))
	if a == b {
		t.Errorf("expected distinct timestamps to produce distinct fired_instance_id, got %q twice", a)
	}
}

func TestNewBootstrapID_ProducesDistinctIDs(t *testing.T) {
	a := NewBootstrapID()
	b := NewBootstrapID()
	if a == b {
		t.Error("expected two calls to NewBootstrapID to return distinct ids")
	}
	if a == "" {
		t.Error("expected a non-empty bootstrap id")
	}
}

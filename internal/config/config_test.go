package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		ConnectionString:   "postgres://localhost/triggerstore",
		InstanceID:         "instance-1",
		InstanceName:       "cluster-a",
		MisfireThreshold:   60 * time.Second,
		DBRetryInterval:    15 * time.Second,
		MaxMisfiresPerPass: 20,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c Config) Config
	}{
		{"connection string", func(c Config) Config { c.ConnectionString = ""; return c }},
		{"instance id", func(c Config) Config { c.InstanceID = ""; return c }},
		{"instance name", func(c Config) Config { c.InstanceName = ""; return c }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.mut(validConfig()).Validate(); err == nil {
				t.Fatalf("expected missing %s to fail validation", tc.name)
			}
		})
	}
}

func TestValidate_NonPositiveTimings(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c Config) Config
	}{
		{"misfire threshold", func(c Config) Config { c.MisfireThreshold = 0; return c }},
		{"db retry interval", func(c Config) Config { c.DBRetryInterval = -time.Second; return c }},
		{"max misfires per pass", func(c Config) Config { c.MaxMisfiresPerPass = 0; return c }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.mut(validConfig()).Validate(); err == nil {
				t.Fatalf("expected non-positive %s to fail validation", tc.name)
			}
		})
	}
}

func TestReloadable_KeepsImmutableFields(t *testing.T) {
	base := validConfig()
	upd := Config{
		MisfireThreshold:                 30 * time.Second,
		DBRetryInterval:                  5 * time.Second,
		MaxMisfiresPerPass:               5,
		RetryableActionErrorLogThreshold: 10,
	}

	out := base.Reloadable(upd)

	if out.ConnectionString != base.ConnectionString {
		t.Errorf("ConnectionString should survive reload, got %q", out.ConnectionString)
	}
	if out.InstanceID != base.InstanceID {
		t.Errorf("InstanceID should survive reload, got %q", out.InstanceID)
	}
	if out.InstanceName != base.InstanceName {
		t.Errorf("InstanceName should survive reload, got %q", out.InstanceName)
	}
	if out.MisfireThreshold != upd.MisfireThreshold {
		t.Errorf("MisfireThreshold should come from upd, got %v", out.MisfireThreshold)
	}
	if out.DBRetryInterval != upd.DBRetryInterval {
		t.Errorf("DBRetryInterval should come from upd, got %v", out.DBRetryInterval)
	}
	if out.MaxMisfiresPerPass != upd.MaxMisfiresPerPass {
		t.Errorf("MaxMisfiresPerPass should come from upd, got %d", out.MaxMisfiresPerPass)
	}
	if out.RetryableActionErrorLogThreshold != upd.RetryableActionErrorLogThreshold {
		t.Errorf("RetryableActionErrorLogThreshold should come from upd, got %d", out.RetryableActionErrorLogThreshold)
	}
}

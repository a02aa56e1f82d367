package firemanager

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/notify"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/store"
)

func newTestConfig(t *testing.T) (Config, string) {
	t.Helper()
	dsn := os.Getenv("TRIGGERSTORE_TEST_DB")
	if dsn == "" {
		t.Skip("set TRIGGERSTORE_TEST_DB to run firemanager integration tests")
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	names, err := store.NewCollectionNames("triggerstore_test_")
	if err != nil {
		t.Fatalf("NewCollectionNames: %v", err)
	}
	if err := store.EnsureSchema(ctx, pool, names); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	instanceName := "firemanager-it"
	cfg := Config{
		Pool:                       pool,
		LocksTable:                 names.Locks,
		InstanceName:               instanceName,
		InstanceID:                 "instance-1",
		Jobs:                       repo.NewJobRepo(pool, names.Jobs),
		Triggers:                   repo.NewTriggerRepo(pool, names.Triggers),
		Calendars:                  repo.NewCalendarRepo(pool, names.Calendars),
		FiredTriggers:              repo.NewFiredTriggerRepo(pool, names.FiredTriggers),
		MisfireThreshold:           60 * time.Second,
		MaxMisfiresToHandleAtATime: defaultMaxMisfiresToHandleAtATime,
		Events:                     notify.NewListeners(),
	}

	t.Cleanup(func() {
		_ = cfg.FiredTriggers.Truncate(context.Background(), instanceName)
		_ = cfg.Triggers.Truncate(context.Background(), instanceName)
		_ = cfg.Jobs.Truncate(context.Background(), instanceName)
	})

	return cfg, instanceName
}

func seedWaitingTrigger(t *testing.T, cfg Config, group, name string) (*domain.Job, domain.TriggerKey) {
	t.Helper()
	ctx := context.Background()

	job := &domain.Job{
		Key:     domain.JobKey{InstanceName: cfg.InstanceName, Group: group, Name: name},
		JobType: "http",
		Durable: true,
	}
	if err := cfg.Jobs.Insert(ctx, job); err != nil {
		t.Fatalf("seed job insert: %v", err)
	}

	due := time.Now().UTC().Add(-time.Second)
	trig := &domain.Trigger{
		Key:          domain.TriggerKey{InstanceName: cfg.InstanceName, Group: group, Name: name},
		JobKey:       job.Key,
		Priority:     domain.DefaultPriority,
		StartTime:    due,
		NextFireTime: &due,
		State:        domain.TriggerStateWaiting,
		Recurrence: domain.Recurrence{
			Kind: domain.RecurrenceSimple,
			Simple: &domain.SimpleRecurrence{
				RepeatCount:    -1,
				RepeatInterval: time.Minute,
			},
		},
	}
	if err := cfg.Triggers.Insert(ctx, trig); err != nil {
		t.Fatalf("seed trigger insert: %v", err)
	}
	return job, trig.Key
}

func TestAcquireNextTriggers_MovesWaitingToAcquired(t *testing.T) {
	cfg, _ := newTestConfig(t)
	fm := New(cfg)
	ctx := context.Background()

	_, key := seedWaitingTrigger(t, cfg, "reports", "acquire-test")

	acquired, err := fm.AcquireNextTriggers(ctx, time.Now().UTC(), 10, time.Minute)
	if err != nil {
		t.Fatalf("AcquireNextTriggers: %v", err)
	}

	found := false
	for _, a := range acquired {
		if a.Key == key {
			found = true
			if a.State != domain.TriggerStateAcquired {
				t.Errorf("expected acquired trigger to be in Acquired state, got %s", a.State)
			}
		}
	}
	if !found {
		t.Fatalf("expected seeded trigger %v among acquired triggers", key)
	}
}

func TestFullFireCycle_AcquireFireComplete(t *testing.T) {
	cfg, _ := newTestConfig(t)
	fm := New(cfg)
	ctx := context.Background()

	job, key := seedWaitingTrigger(t, cfg, "reports", "full-cycle")

	acquired, err := fm.AcquireNextTriggers(ctx, time.Now().UTC(), 10, time.Minute)
	if err != nil {
		t.Fatalf("AcquireNextTriggers: %v", err)
	}
	if len(acquired) == 0 {
		t.Fatal("expected at least one acquired trigger")
	}

	outcomes, err := fm.TriggersFired(ctx, []domain.TriggerKey{key})
	if err != nil {
		t.Fatalf("TriggersFired: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected fire outcome: %+v", outcomes)
	}
	if outcomes[0].Bundle.Trigger.State != domain.TriggerStateExecuting {
		t.Errorf("expected fired trigger to be Executing, got %s", outcomes[0].Bundle.Trigger.State)
	}

	if err := fm.TriggeredJobComplete(ctx, outcomes[0].Bundle.Trigger, job, domain.CompletionSetComplete); err != nil {
		t.Fatalf("TriggeredJobComplete: %v", err)
	}

	final, err := cfg.Triggers.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.State != domain.TriggerStateComplete {
		t.Errorf("expected trigger to end Complete, got %s", final.State)
	}
}

func TestReleaseAcquiredTrigger_IsIdempotent(t *testing.T) {
	cfg, _ := newTestConfig(t)
	fm := New(cfg)
	ctx := context.Background()

	_, key := seedWaitingTrigger(t, cfg, "reports", "release-test")

	if err := fm.ReleaseAcquiredTrigger(ctx, key); err != nil {
		t.Fatalf("ReleaseAcquiredTrigger on a Waiting trigger should be a no-op, got %v", err)
	}

	got, err := cfg.Triggers.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.TriggerStateWaiting {
		t.Errorf("expected trigger to remain Waiting, got %s", got.State)
	}
}

func TestRunMisfireSweep_PersistsTimesTriggeredAcrossRecompute(t *testing.T) {
	cfg, _ := newTestConfig(t)
	fm := New(cfg)
	ctx := context.Background()

	job := &domain.Job{
		Key:     domain.JobKey{InstanceName: cfg.InstanceName, Group: "reports", Name: "misfire-recompute"},
		JobType: "http",
		Durable: true,
	}
	if err := cfg.Jobs.Insert(ctx, job); err != nil {
		t.Fatalf("seed job insert: %v", err)
	}

	overdue := time.Now().UTC().Add(-2 * time.Minute)
	trig := &domain.Trigger{
		Key:          domain.TriggerKey{InstanceName: cfg.InstanceName, Group: "reports", Name: "misfire-recompute"},
		JobKey:       job.Key,
		Priority:     domain.DefaultPriority,
		StartTime:    overdue,
		NextFireTime: &overdue,
		State:        domain.TriggerStateWaiting,
		Recurrence: domain.Recurrence{
			Kind: domain.RecurrenceSimple,
			Simple: &domain.SimpleRecurrence{
				RepeatCount:    5,
				RepeatInterval: time.Minute,
			},
		},
	}
	if err := cfg.Triggers.Insert(ctx, trig); err != nil {
		t.Fatalf("seed trigger insert: %v", err)
	}

	if _, err := fm.RunMisfireSweep(ctx, false); err != nil {
		t.Fatalf("RunMisfireSweep: %v", err)
	}

	got, err := cfg.Triggers.Get(ctx, trig.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Recurrence.Simple == nil {
		t.Fatal("expected a persisted Simple recurrence")
	}
	if got.Recurrence.Simple.TimesTriggered != 1 {
		t.Errorf("expected TimesTriggered to persist as 1 after the misfire recompute, got %d", got.Recurrence.Simple.TimesTriggered)
	}
}

package lifecycle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/firemanager"
	"github.com/shaiso/triggerstore/internal/notify"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/store"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	dsn := os.Getenv("TRIGGERSTORE_TEST_DB")
	if dsn == "" {
		t.Skip("set TRIGGERSTORE_TEST_DB to run lifecycle integration tests")
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

	instanceName := "lifecycle-it"
	instanceID := "instance-1"

	jobs := repo.NewJobRepo(pool, names.Jobs)
	triggers := repo.NewTriggerRepo(pool, names.Triggers)
	calendars := repo.NewCalendarRepo(pool, names.Calendars)
	pausedGroups := repo.NewPausedGroupRepo(pool, names.PausedTriggerGroups)
	firedTriggers := repo.NewFiredTriggerRepo(pool, names.FiredTriggers)
	schedulers := repo.NewSchedulerRepo(pool, names.Schedulers)

	fireCfg := firemanager.Config{
		Pool:             pool,
		LocksTable:       names.Locks,
		InstanceName:     instanceName,
		InstanceID:       instanceID,
		Jobs:             jobs,
		Triggers:         triggers,
		Calendars:        calendars,
		FiredTriggers:    firedTriggers,
		MisfireThreshold: 60 * time.Second,
		Events:           notify.NewListeners(),
	}

	cfg := Config{
		Pool:             pool,
		LocksTable:       names.Locks,
		InstanceName:     instanceName,
		InstanceID:       instanceID,
		Jobs:             jobs,
		Triggers:         triggers,
		Calendars:        calendars,
		PausedGroups:     pausedGroups,
		FiredTriggers:    firedTriggers,
		Schedulers:       schedulers,
		Fire:             firemanager.New(fireCfg),
		MisfireThreshold: 60 * time.Second,
		DBRetryInterval:  time.Second,
	}

	t.Cleanup(func() {
		_ = triggers.Truncate(context.Background(), instanceName)
		_ = jobs.Truncate(context.Background(), instanceName)
		_ = firedTriggers.Truncate(context.Background(), instanceName)
		_ = schedulers.Truncate(context.Background(), instanceName)
	})

	return cfg
}

func TestSchedulerStarted_RegistersInstanceAndRecovers(t *testing.T) {
	cfg := newTestConfig(t)
	co := New(cfg)
	ctx := context.Background()

	if err := co.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := co.SchedulerStarted(ctx); err != nil {
		t.Fatalf("SchedulerStarted: %v", err)
	}
	t.Cleanup(func() { _ = co.Shutdown(context.Background()) })

	reg, err := cfg.Schedulers.Get(ctx, cfg.InstanceName, cfg.InstanceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reg == nil {
		t.Fatal("expected a scheduler registration row after SchedulerStarted")
	}
	if reg.State != domain.SchedulerStateStarted {
		t.Errorf("expected state Started, got %s", reg.State)
	}
}

func TestSchedulerStarted_RecoversStuckAcquiredTriggers(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	job := &domain.Job{
		Key:     domain.JobKey{InstanceName: cfg.InstanceName, Group: "reports", Name: "stuck-job"},
		JobType: "http",
		Durable: true,
	}
	if err := cfg.Jobs.Insert(ctx, job); err != nil {
		t.Fatalf("seed job insert: %v", err)
	}
	trig := &domain.Trigger{
		Key:       domain.TriggerKey{InstanceName: cfg.InstanceName, Group: "reports", Name: "stuck-trigger"},
		JobKey:    job.Key,
		Priority:  domain.DefaultPriority,
		StartTime: time.Now().UTC(),
		State:     domain.TriggerStateAcquired,
		Recurrence: domain.Recurrence{
			Kind:   domain.RecurrenceSimple,
			Simple: &domain.SimpleRecurrence{RepeatCount: -1, RepeatInterval: time.Minute},
		},
	}
	if err := cfg.Triggers.Insert(ctx, trig); err != nil {
		t.Fatalf("seed trigger insert: %v", err)
	}

	co := New(cfg)
	if err := co.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := co.SchedulerStarted(ctx); err != nil {
		t.Fatalf("SchedulerStarted: %v", err)
	}
	t.Cleanup(func() { _ = co.Shutdown(context.Background()) })

	got, err := cfg.Triggers.Get(ctx, trig.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.TriggerStateWaiting {
		t.Errorf("expected a trigger stuck in Acquired at startup to recover to Waiting, got %s", got.State)
	}
}

func TestSchedulerPauseAndResume_UpdatesRegistrationState(t *testing.T) {
	cfg := newTestConfig(t)
	co := New(cfg)
	ctx := context.Background()

	if err := co.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := co.SchedulerStarted(ctx); err != nil {
		t.Fatalf("SchedulerStarted: %v", err)
	}
	t.Cleanup(func() { _ = co.Shutdown(context.Background()) })

	if err := co.SchedulerPaused(ctx); err != nil {
		t.Fatalf("SchedulerPaused: %v", err)
	}
	reg, err := cfg.Schedulers.Get(ctx, cfg.InstanceName, cfg.InstanceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reg.State != domain.SchedulerStatePaused {
		t.Errorf("expected state Paused, got %s", reg.State)
	}

	if err := co.SchedulerResumed(ctx); err != nil {
		t.Fatalf("SchedulerResumed: %v", err)
	}
	reg, err = cfg.Schedulers.Get(ctx, cfg.InstanceName, cfg.InstanceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reg.State != domain.SchedulerStateResumed {
		t.Errorf("expected state Resumed, got %s", reg.State)
	}
}

func TestShutdown_RemovesRegistration(t *testing.T) {
	cfg := newTestConfig(t)
	co := New(cfg)
	ctx := context.Background()

	if err := co.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := co.SchedulerStarted(ctx); err != nil {
		t.Fatalf("SchedulerStarted: %v", err)
	}

	if err := co.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	reg, err := cfg.Schedulers.Get(ctx, cfg.InstanceName, cfg.InstanceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reg != nil {
		t.Error("expected registration to be removed after Shutdown")
	}
}

func TestInitialize_FailsWithoutFireManager(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Fire = nil
	co := New(cfg)

	if err := co.Initialize(); err == nil {
		t.Fatal("expected Initialize to fail when Fire is nil")
	}
}

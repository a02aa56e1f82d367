package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CollectionNames отображает семь логических коллекций на их
// префиксированные имена таблиц по правилу "{prefix}{base}".
type CollectionNames struct {
	Jobs                string
	Triggers            string
	Calendars           string
	Locks               string
	FiredTriggers       string
	PausedTriggerGroups string
	Schedulers          string
}

// NewCollectionNames проверяет prefix (он подставляется прямо в DDL,
// поскольку Postgres не поддерживает параметризацию идентификаторов) и
// возвращает имена таблиц, которые используют EnsureSchema и каждый
// репозиторий.
func NewCollectionNames(prefix string) (CollectionNames, error) {
	if prefix == "" {
		prefix = "quartz"
	}
	if !identPattern.MatchString(prefix) {
		return CollectionNames{}, fmt.Errorf("invalid collection_prefix %q: must match %s", prefix, identPattern.String())
	}
	return CollectionNames{
		Jobs:                prefix + "jobs",
		Triggers:            prefix + "triggers",
		Calendars:           prefix + "calendars",
		Locks:               prefix + "locks",
		FiredTriggers:       prefix + "fired_triggers",
		PausedTriggerGroups: prefix + "paused_trigger_groups",
		Schedulers:          prefix + "schedulers",
	}, nil
}

// EnsureSchema создаёт семь таблиц и их индексы, если они ещё не
// существуют. У Postgres нет нативного TTL-индекса, поэтому expire_at
// таблицы locks проверяется самим запросом Acquire мьютекса
// (WHERE expire_at < now()), а не фоновым reaper'ом — см. internal/mutex.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, names CollectionNames) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			job_group text NOT NULL,
			name text NOT NULL,
			description text NOT NULL DEFAULT '',
			job_type text NOT NULL,
			durable boolean NOT NULL DEFAULT false,
			persist_data_after_execution boolean NOT NULL DEFAULT false,
			concurrent_execution_disallowed boolean NOT NULL DEFAULT false,
			requests_recovery boolean NOT NULL DEFAULT false,
			data jsonb NOT NULL DEFAULT '{}',
			PRIMARY KEY (instance_name, job_group, name)
		)`, names.Jobs),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			trigger_group text NOT NULL,
			name text NOT NULL,
			job_group text NOT NULL,
			job_name text NOT NULL,
			next_fire_time timestamptz,
			previous_fire_time timestamptz,
			priority int NOT NULL DEFAULT 5,
			start_time timestamptz NOT NULL,
			end_time timestamptz,
			calendar_name text NOT NULL DEFAULT '',
			misfire_instruction int NOT NULL DEFAULT 0,
			data jsonb NOT NULL DEFAULT '{}',
			state text NOT NULL,
			recurrence jsonb NOT NULL DEFAULT '{}',
			PRIMARY KEY (instance_name, trigger_group, name)
		)`, names.Triggers),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_acquire_idx ON %s (instance_name, state, next_fire_time ASC, priority DESC)`, names.Triggers, names.Triggers),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_job_idx ON %s (instance_name, job_group, job_name)`, names.Triggers, names.Triggers),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_calendar_idx ON %s (instance_name, calendar_name)`, names.Triggers, names.Triggers),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			name text NOT NULL,
			kind text NOT NULL,
			holiday jsonb NOT NULL DEFAULT '[]',
			daily jsonb,
			description text NOT NULL DEFAULT '',
			PRIMARY KEY (instance_name, name)
		)`, names.Calendars),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			lock_type text NOT NULL,
			owner text NOT NULL,
			acquired_at timestamptz NOT NULL,
			expire_at timestamptz NOT NULL,
			PRIMARY KEY (instance_name, lock_type)
		)`, names.Locks),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expire_idx ON %s (expire_at)`, names.Locks, names.Locks),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			fired_instance_id text NOT NULL,
			instance_id text NOT NULL,
			trigger_group text NOT NULL,
			trigger_name text NOT NULL,
			job_group text NOT NULL,
			job_name text NOT NULL,
			fired_at timestamptz NOT NULL,
			scheduled_time timestamptz NOT NULL,
			requests_recovery boolean NOT NULL DEFAULT false,
			concurrent_execution_disallowed boolean NOT NULL DEFAULT false,
			PRIMARY KEY (instance_name, fired_instance_id)
		)`, names.FiredTriggers),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_owner_idx ON %s (instance_name, instance_id)`, names.FiredTriggers, names.FiredTriggers),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			trigger_group text NOT NULL,
			PRIMARY KEY (instance_name, trigger_group)
		)`, names.PausedTriggerGroups),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instance_name text NOT NULL,
			instance_id text NOT NULL,
			state text NOT NULL,
			last_check_in timestamptz NOT NULL,
			PRIMARY KEY (instance_name, instance_id)
		)`, names.Schedulers),
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

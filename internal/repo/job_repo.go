package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// JobRepo — типизированный фасад над таблицей jobs.
type JobRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewJobRepo(pool *pgxpool.Pool, table string) *JobRepo {
	return &JobRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *JobRepo) Exists(ctx context.Context, key domain.JobKey) (bool, error) {
	var exists bool
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT EXISTS(SELECT 1 FROM %s WHERE instance_name=$1 AND job_group=$2 AND name=$3)`, r.table),
			key.InstanceName, key.Group, key.Name).Scan(&exists)
	})
	if err != nil {
		return false, storeerr.PersistenceErr("JobRepo.Exists", key.String(), err)
	}
	return exists, nil
}

func (r *JobRepo) Get(ctx context.Context, key domain.JobKey) (*domain.Job, error) {
	var j domain.Job
	var dataRaw []byte
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT instance_name, job_group, name, description, job_type, durable,
			       persist_data_after_execution, concurrent_execution_disallowed,
			       requests_recovery, data
			FROM %s WHERE instance_name=$1 AND job_group=$2 AND name=$3`, r.table),
			key.InstanceName, key.Group, key.Name).Scan(
			&j.Key.InstanceName, &j.Key.Group, &j.Key.Name, &j.Description, &j.JobType, &j.Durable,
			&j.PersistDataAfterExecution, &j.ConcurrentExecutionDisallowed, &j.RequestsRecovery, &dataRaw)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.PersistenceErr("JobRepo.Get", key.String(), err)
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &j.Data); err != nil {
			return nil, storeerr.PersistenceErr("JobRepo.Get", key.String(), err)
		}
	}
	return &j, nil
}

// Insert завершается ошибкой AlreadyExists при конфликте первичного ключа.
func (r *JobRepo) Insert(ctx context.Context, j *domain.Job) error {
	return r.write(ctx, j, false)
}

// Upsert заменяет существующий job либо добавляет новый.
func (r *JobRepo) Upsert(ctx context.Context, j *domain.Job) error {
	return r.write(ctx, j, true)
}

func (r *JobRepo) write(ctx context.Context, j *domain.Job, upsert bool) error {
	dataRaw, err := json.Marshal(j.Data)
	if err != nil {
		return storeerr.PersistenceErr("JobRepo.write", j.Key.String(), err)
	}

	conflict := "ON CONFLICT (instance_name, job_group, name) DO NOTHING"
	if upsert {
		conflict = `ON CONFLICT (instance_name, job_group, name) DO UPDATE SET
			description=$4, job_type=$5, durable=$6, persist_data_after_execution=$7,
			concurrent_execution_disallowed=$8, requests_recovery=$9, data=$10`
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (instance_name, job_group, name, description, job_type, durable,
			persist_data_after_execution, concurrent_execution_disallowed, requests_recovery, data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		%s`, r.table, conflict)

	var tag pgconn.CommandTag
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx, stmt,
			j.Key.InstanceName, j.Key.Group, j.Key.Name, j.Description, j.JobType, j.Durable,
			j.PersistDataAfterExecution, j.ConcurrentExecutionDisallowed, j.RequestsRecovery, dataRaw)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("JobRepo.write", j.Key.String(), err)
	}
	if !upsert && tag.RowsAffected() == 0 {
		return storeerr.AlreadyExistsErr("JobRepo.Insert", j.Key.String())
	}
	return nil
}

func (r *JobRepo) Delete(ctx context.Context, key domain.JobKey) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND job_group=$2 AND name=$3`, r.table),
			key.InstanceName, key.Group, key.Name)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("JobRepo.Delete", key.String(), err)
	}
	return nil
}

func (r *JobRepo) ListKeysByGroupMatcher(ctx context.Context, instanceName string, m GroupMatcher) ([]domain.JobKey, error) {
	pattern, err := m.SQLPattern()
	if err != nil {
		return nil, err
	}
	var keys []domain.JobKey
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT job_group, name FROM %s WHERE instance_name=$1 AND job_group LIKE $2`, r.table),
			instanceName, pattern)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		keys = nil
		for rows.Next() {
			var k domain.JobKey
			k.InstanceName = instanceName
			if execErr = rows.Scan(&k.Group, &k.Name); execErr != nil {
				return execErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("JobRepo.ListKeysByGroupMatcher", instanceName, err)
	}
	return keys, nil
}

func (r *JobRepo) ListGroups(ctx context.Context, instanceName string) ([]string, error) {
	var groups []string
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT DISTINCT job_group FROM %s WHERE instance_name=$1 ORDER BY job_group`, r.table), instanceName)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		groups = nil
		for rows.Next() {
			var g string
			if execErr = rows.Scan(&g); execErr != nil {
				return execErr
			}
			groups = append(groups, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("JobRepo.ListGroups", instanceName, err)
	}
	return groups, nil
}

func (r *JobRepo) Count(ctx context.Context, instanceName string) (int, error) {
	var n int
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s WHERE instance_name=$1`, r.table), instanceName).Scan(&n)
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("JobRepo.Count", instanceName, err)
	}
	return n, nil
}

func (r *JobRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("JobRepo.Truncate", instanceName, err)
	}
	return nil
}

package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

type FiredTriggerRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewFiredTriggerRepo(pool *pgxpool.Pool, table string) *FiredTriggerRepo {
	return &FiredTriggerRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *FiredTriggerRepo) Insert(ctx context.Context, ft *domain.FiredTrigger) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instance_name, fired_instance_id, instance_id, trigger_group, trigger_name,
				job_group, job_name, fired_at, scheduled_time, requests_recovery, concurrent_execution_disallowed)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, r.table),
			ft.InstanceName, ft.FiredInstanceID, ft.InstanceID, ft.TriggerKey.Group, ft.TriggerKey.Name,
			ft.JobKey.Group, ft.JobKey.Name, ft.FiredAt, ft.ScheduledTime, ft.RequestsRecovery, ft.ConcurrentExecutionDisallowed)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("FiredTriggerRepo.Insert", ft.FiredInstanceID, err)
	}
	return nil
}

// DeleteByPrefix удаляет все строки fired-trigger, у которых
// fired_instance_id начинается с prefix (обычно
// "trigger_name:trigger_group:instance_id"), и возвращает число
// удалённых строк.
func (r *FiredTriggerRepo) DeleteByPrefix(ctx context.Context, instanceName, prefix string) (int, error) {
	var n int64
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND fired_instance_id LIKE $2`, r.table),
			instanceName, prefix+"%")
		if execErr != nil {
			return execErr
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("FiredTriggerRepo.DeleteByPrefix", prefix, err)
	}
	return int(n), nil
}

func (r *FiredTriggerRepo) ListByInstanceID(ctx context.Context, instanceName, instanceID string) ([]*domain.FiredTrigger, error) {
	var out []*domain.FiredTrigger
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(`
			SELECT instance_name, fired_instance_id, instance_id, trigger_group, trigger_name,
			       job_group, job_name, fired_at, scheduled_time, requests_recovery, concurrent_execution_disallowed
			FROM %s WHERE instance_name=$1 AND instance_id=$2`, r.table), instanceName, instanceID)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var ft domain.FiredTrigger
			if execErr = rows.Scan(&ft.InstanceName, &ft.FiredInstanceID, &ft.InstanceID,
				&ft.TriggerKey.Group, &ft.TriggerKey.Name, &ft.JobKey.Group, &ft.JobKey.Name,
				&ft.FiredAt, &ft.ScheduledTime, &ft.RequestsRecovery, &ft.ConcurrentExecutionDisallowed); execErr != nil {
				return execErr
			}
			ft.TriggerKey.InstanceName = instanceName
			ft.JobKey.InstanceName = instanceName
			out = append(out, &ft)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("FiredTriggerRepo.ListByInstanceID", instanceID, err)
	}
	return out, nil
}

func (r *FiredTriggerRepo) DeleteByInstanceID(ctx context.Context, instanceName, instanceID string) (int, error) {
	var n int64
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND instance_id=$2`, r.table), instanceName, instanceID)
		if execErr != nil {
			return execErr
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("FiredTriggerRepo.DeleteByInstanceID", instanceID, err)
	}
	return int(n), nil
}

func (r *FiredTriggerRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("FiredTriggerRepo.Truncate", instanceName, err)
	}
	return nil
}

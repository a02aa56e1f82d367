package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

type SchedulerRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewSchedulerRepo(pool *pgxpool.Pool, table string) *SchedulerRepo {
	return &SchedulerRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *SchedulerRepo) Upsert(ctx context.Context, reg *domain.SchedulerRegistration) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instance_name, instance_id, state, last_check_in)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (instance_name, instance_id) DO UPDATE SET state=$3, last_check_in=$4`, r.table),
			reg.InstanceName, reg.InstanceID, reg.State, reg.LastCheckIn)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("SchedulerRepo.Upsert", reg.InstanceID, err)
	}
	return nil
}

func (r *SchedulerRepo) UpdateState(ctx context.Context, instanceName, instanceID string, state domain.SchedulerRunState) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`UPDATE %s SET state=$3 WHERE instance_name=$1 AND instance_id=$2`, r.table),
			instanceName, instanceID, state)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("SchedulerRepo.UpdateState", instanceID, err)
	}
	return nil
}

func (r *SchedulerRepo) Get(ctx context.Context, instanceName, instanceID string) (*domain.SchedulerRegistration, error) {
	var reg domain.SchedulerRegistration
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT instance_name, instance_id, state, last_check_in FROM %s WHERE instance_name=$1 AND instance_id=$2`, r.table),
			instanceName, instanceID).Scan(&reg.InstanceName, &reg.InstanceID, &reg.State, &reg.LastCheckIn)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.PersistenceErr("SchedulerRepo.Get", instanceID, err)
	}
	return &reg, nil
}

func (r *SchedulerRepo) List(ctx context.Context, instanceName string) ([]*domain.SchedulerRegistration, error) {
	var out []*domain.SchedulerRegistration
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT instance_name, instance_id, state, last_check_in FROM %s WHERE instance_name=$1`, r.table), instanceName)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var reg domain.SchedulerRegistration
			if execErr = rows.Scan(&reg.InstanceName, &reg.InstanceID, &reg.State, &reg.LastCheckIn); execErr != nil {
				return execErr
			}
			out = append(out, &reg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("SchedulerRepo.List", instanceName, err)
	}
	return out, nil
}

func (r *SchedulerRepo) Delete(ctx context.Context, instanceName, instanceID string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND instance_id=$2`, r.table), instanceName, instanceID)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("SchedulerRepo.Delete", instanceID, err)
	}
	return nil
}

func (r *SchedulerRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("SchedulerRepo.Truncate", instanceName, err)
	}
	return nil
}

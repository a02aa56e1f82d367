package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

type PausedGroupRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewPausedGroupRepo(pool *pgxpool.Pool, table string) *PausedGroupRepo {
	return &PausedGroupRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *PausedGroupRepo) Exists(ctx context.Context, instanceName, group string) (bool, error) {
	var exists bool
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT EXISTS(SELECT 1 FROM %s WHERE instance_name=$1 AND trigger_group=$2)`, r.table),
			instanceName, group).Scan(&exists)
	})
	if err != nil {
		return false, storeerr.PersistenceErr("PausedGroupRepo.Exists", instanceName+"/"+group, err)
	}
	return exists, nil
}

func (r *PausedGroupRepo) Add(ctx context.Context, instanceName, group string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (instance_name, trigger_group) VALUES ($1,$2)
			 ON CONFLICT (instance_name, trigger_group) DO NOTHING`, r.table), instanceName, group)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("PausedGroupRepo.Add", instanceName+"/"+group, err)
	}
	return nil
}

func (r *PausedGroupRepo) Remove(ctx context.Context, instanceName, group string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND trigger_group=$2`, r.table), instanceName, group)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("PausedGroupRepo.Remove", instanceName+"/"+group, err)
	}
	return nil
}

func (r *PausedGroupRepo) List(ctx context.Context, instanceName string) ([]string, error) {
	var groups []string
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT trigger_group FROM %s WHERE instance_name=$1 ORDER BY trigger_group`, r.table), instanceName)
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
		return nil, storeerr.PersistenceErr("PausedGroupRepo.List", instanceName, err)
	}
	return groups, nil
}

func (r *PausedGroupRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("PausedGroupRepo.Truncate", instanceName, err)
	}
	return nil
}

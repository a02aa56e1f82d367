package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

type CalendarRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewCalendarRepo(pool *pgxpool.Pool, table string) *CalendarRepo {
	return &CalendarRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *CalendarRepo) Exists(ctx context.Context, key domain.CalendarKey) (bool, error) {
	var exists bool
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT EXISTS(SELECT 1 FROM %s WHERE instance_name=$1 AND name=$2)`, r.table),
			key.InstanceName, key.Name).Scan(&exists)
	})
	if err != nil {
		return false, storeerr.PersistenceErr("CalendarRepo.Exists", key.Name, err)
	}
	return exists, nil
}

func (r *CalendarRepo) Get(ctx context.Context, key domain.CalendarKey) (*domain.Calendar, error) {
	var c domain.Calendar
	var holidayRaw, dailyRaw []byte
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT instance_name, name, kind, holiday, daily, description FROM %s WHERE instance_name=$1 AND name=$2`, r.table),
			key.InstanceName, key.Name).Scan(&c.Key.InstanceName, &c.Key.Name, &c.Kind, &holidayRaw, &dailyRaw, &c.Description)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.PersistenceErr("CalendarRepo.Get", key.Name, err)
	}
	if len(holidayRaw) > 0 {
		if err := json.Unmarshal(holidayRaw, &c.Holiday); err != nil {
			return nil, storeerr.PersistenceErr("CalendarRepo.Get", key.Name, err)
		}
	}
	if len(dailyRaw) > 0 {
		if err := json.Unmarshal(dailyRaw, &c.Daily); err != nil {
			return nil, storeerr.PersistenceErr("CalendarRepo.Get", key.Name, err)
		}
	}
	return &c, nil
}

func (r *CalendarRepo) Insert(ctx context.Context, c *domain.Calendar) error {
	return r.write(ctx, c, false)
}

func (r *CalendarRepo) Upsert(ctx context.Context, c *domain.Calendar) error {
	return r.write(ctx, c, true)
}

func (r *CalendarRepo) write(ctx context.Context, c *domain.Calendar, upsert bool) error {
	holidayRaw, err := json.Marshal(c.Holiday)
	if err != nil {
		return storeerr.PersistenceErr("CalendarRepo.write", c.Key.Name, err)
	}
	dailyRaw, err := json.Marshal(c.Daily)
	if err != nil {
		return storeerr.PersistenceErr("CalendarRepo.write", c.Key.Name, err)
	}

	conflict := "ON CONFLICT (instance_name, name) DO NOTHING"
	if upsert {
		conflict = `ON CONFLICT (instance_name, name) DO UPDATE SET kind=$3, holiday=$4, daily=$5, description=$6`
	}
	stmt := fmt.Sprintf(`
		INSERT INTO %s (instance_name, name, kind, holiday, daily, description)
		VALUES ($1,$2,$3,$4,$5,$6)
		%s`, r.table, conflict)

	var rowsAffected int64
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, stmt, c.Key.InstanceName, c.Key.Name, c.Kind, holidayRaw, dailyRaw, c.Description)
		if execErr == nil {
			rowsAffected = tag.RowsAffected()
		}
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("CalendarRepo.write", c.Key.Name, err)
	}
	if !upsert && rowsAffected == 0 {
		return storeerr.AlreadyExistsErr("CalendarRepo.Insert", c.Key.Name)
	}
	return nil
}

func (r *CalendarRepo) Delete(ctx context.Context, key domain.CalendarKey) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND name=$2`, r.table), key.InstanceName, key.Name)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("CalendarRepo.Delete", key.Name, err)
	}
	return nil
}

func (r *CalendarRepo) ListNames(ctx context.Context, instanceName string) ([]string, error) {
	var names []string
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT name FROM %s WHERE instance_name=$1 ORDER BY name`, r.table), instanceName)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		names = nil
		for rows.Next() {
			var n string
			if execErr = rows.Scan(&n); execErr != nil {
				return execErr
			}
			names = append(names, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("CalendarRepo.ListNames", instanceName, err)
	}
	return names, nil
}

func (r *CalendarRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("CalendarRepo.Truncate", instanceName, err)
	}
	return nil
}

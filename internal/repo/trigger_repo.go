package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// TriggerRepo — типизированный фасад над таблицей triggers: запрос
// захвата и все CAS-переходы, которыми пользуются менеджеры
// срабатывания и хранения.
type TriggerRepo struct {
	pool  *pgxpool.Pool
	table string
	retry store.RetryConfig
}

func NewTriggerRepo(pool *pgxpool.Pool, table string) *TriggerRepo {
	return &TriggerRepo{pool: pool, table: table, retry: store.DefaultRetryConfig}
}

func (r *TriggerRepo) Exists(ctx context.Context, key domain.TriggerKey) (bool, error) {
	var exists bool
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT EXISTS(SELECT 1 FROM %s WHERE instance_name=$1 AND trigger_group=$2 AND name=$3)`, r.table),
			key.InstanceName, key.Group, key.Name).Scan(&exists)
	})
	if err != nil {
		return false, storeerr.PersistenceErr("TriggerRepo.Exists", key.String(), err)
	}
	return exists, nil
}

func (r *TriggerRepo) Get(ctx context.Context, key domain.TriggerKey) (*domain.Trigger, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT instance_name, trigger_group, name, job_group, job_name, next_fire_time,
		       previous_fire_time, priority, start_time, end_time, calendar_name,
		       misfire_instruction, data, state, recurrence
		FROM %s WHERE instance_name=$1 AND trigger_group=$2 AND name=$3`, r.table),
		key.InstanceName, key.Group, key.Name)
	t, err := scanTrigger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.PersistenceErr("TriggerRepo.Get", key.String(), err)
	}
	return t, nil
}

func scanTrigger(row pgx.Row) (*domain.Trigger, error) {
	var t domain.Trigger
	var dataRaw, recurrenceRaw []byte
	if err := row.Scan(
		&t.Key.InstanceName, &t.Key.Group, &t.Key.Name, &t.JobKey.Group, &t.JobKey.Name,
		&t.NextFireTime, &t.PreviousFireTime, &t.Priority, &t.StartTime, &t.EndTime,
		&t.CalendarName, &t.MisfireInstruction, &dataRaw, &t.State, &recurrenceRaw,
	); err != nil {
		return nil, err
	}
	t.JobKey.InstanceName = t.Key.InstanceName
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &t.Data); err != nil {
			return nil, err
		}
	}
	if len(recurrenceRaw) > 0 {
		if err := json.Unmarshal(recurrenceRaw, &t.Recurrence); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *TriggerRepo) Insert(ctx context.Context, t *domain.Trigger) error {
	return r.write(ctx, t, false)
}

func (r *TriggerRepo) Upsert(ctx context.Context, t *domain.Trigger) error {
	return r.write(ctx, t, true)
}

func (r *TriggerRepo) write(ctx context.Context, t *domain.Trigger, upsert bool) error {
	dataRaw, err := json.Marshal(t.Data)
	if err != nil {
		return storeerr.PersistenceErr("TriggerRepo.write", t.Key.String(), err)
	}
	recurrenceRaw, err := json.Marshal(t.Recurrence)
	if err != nil {
		return storeerr.PersistenceErr("TriggerRepo.write", t.Key.String(), err)
	}

	conflict := "ON CONFLICT (instance_name, trigger_group, name) DO NOTHING"
	if upsert {
		conflict = `ON CONFLICT (instance_name, trigger_group, name) DO UPDATE SET
			job_group=$4, job_name=$5, next_fire_time=$6, previous_fire_time=$7, priority=$8,
			start_time=$9, end_time=$10, calendar_name=$11, misfire_instruction=$12,
			data=$13, state=$14, recurrence=$15`
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (instance_name, trigger_group, name, job_group, job_name, next_fire_time,
			previous_fire_time, priority, start_time, end_time, calendar_name, misfire_instruction,
			data, state, recurrence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		%s`, r.table, conflict)

	var tag struct{ rowsAffected int64 }
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		ct, execErr := r.pool.Exec(ctx, stmt,
			t.Key.InstanceName, t.Key.Group, t.Key.Name, t.JobKey.Group, t.JobKey.Name,
			t.NextFireTime, t.PreviousFireTime, t.Priority, t.StartTime, t.EndTime,
			t.CalendarName, t.MisfireInstruction, dataRaw, t.State, recurrenceRaw)
		if execErr == nil {
			tag.rowsAffected = ct.RowsAffected()
		}
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("TriggerRepo.write", t.Key.String(), err)
	}
	if !upsert && tag.rowsAffected == 0 {
		return storeerr.AlreadyExistsErr("TriggerRepo.Insert", t.Key.String())
	}
	return nil
}

func (r *TriggerRepo) Delete(ctx context.Context, key domain.TriggerKey) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND trigger_group=$2 AND name=$3`, r.table),
			key.InstanceName, key.Group, key.Name)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("TriggerRepo.Delete", key.String(), err)
	}
	return nil
}

// CAS выполняет условный `UPDATE ... WHERE state = from` и сообщает,
// выиграл ли вызывающий переход.
func (r *TriggerRepo) CAS(ctx context.Context, key domain.TriggerKey, from, to domain.TriggerState) (bool, error) {
	var won bool
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`UPDATE %s SET state=$4 WHERE instance_name=$1 AND trigger_group=$2 AND name=$3 AND state=$5`, r.table),
			key.InstanceName, key.Group, key.Name, to, from)
		if execErr != nil {
			return execErr
		}
		won = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, storeerr.PersistenceErr("TriggerRepo.CAS", key.String(), err)
	}
	return won, nil
}

// CASBulkByGroup применяет `fromState -> toState` ко всем триггерам
// группы, находящимся в fromState, и возвращает число изменённых строк.
func (r *TriggerRepo) CASBulkByGroup(ctx context.Context, instanceName, group string, from, to domain.TriggerState) (int, error) {
	var n int64
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`UPDATE %s SET state=$3 WHERE instance_name=$1 AND trigger_group=$2 AND state=$4`, r.table),
			instanceName, group, to, from)
		if execErr != nil {
			return execErr
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.CASBulkByGroup", instanceName+"/"+group, err)
	}
	return int(n), nil
}

// CASAllInInstance применяет `fromState -> toState` ко всем триггерам
// instanceName — используется восстановлением при старте, чтобы
// освободить состояние, застрявшее из-за падения. Возвращает число
// изменённых строк.
func (r *TriggerRepo) CASAllInInstance(ctx context.Context, instanceName string, from, to domain.TriggerState) (int, error) {
	var n int64
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`UPDATE %s SET state=$2 WHERE instance_name=$1 AND state=$3`, r.table),
			instanceName, to, from)
		if execErr != nil {
			return execErr
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.CASAllInInstance", instanceName, err)
	}
	return int(n), nil
}

// AcquireParams объединяет аргументы запроса захвата.
type AcquireParams struct {
	InstanceName     string
	NoLaterThan      time.Time
	TimeWindow       time.Duration
	MaxCount         int
	MisfireThreshold time.Duration
	Now              time.Time
}

// AcquireNext выполняет запрос захвата: триггеры Waiting, наступающие
// не позже noLaterThan+timeWindow, исключая те, что уже пропустили своё
// окно больше чем на misfireThreshold (ими займётся misfire sweep);
// триггеры с misfire_instruction Ignore не исключаются, как бы они ни
// опоздали. Результат отсортирован по next_fire_time asc, priority desc.
func (r *TriggerRepo) AcquireNext(ctx context.Context, p AcquireParams) ([]domain.TriggerKey, error) {
	var keys []domain.TriggerKey
	cutoff := p.NoLaterThan.Add(p.TimeWindow)
	misfireFloor := p.Now.Add(-p.MisfireThreshold)

	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(`
			SELECT trigger_group, name FROM %s
			WHERE instance_name = $1
			  AND state = $2
			  AND next_fire_time <= $3
			  AND (misfire_instruction = $4 OR next_fire_time >= $5)
			ORDER BY next_fire_time ASC, priority DESC
			LIMIT $6`, r.table),
			p.InstanceName, domain.TriggerStateWaiting, cutoff, domain.MisfireInstructionIgnore, misfireFloor, p.MaxCount)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		keys = nil
		for rows.Next() {
			k := domain.TriggerKey{InstanceName: p.InstanceName}
			if execErr = rows.Scan(&k.Group, &k.Name); execErr != nil {
				return execErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("TriggerRepo.AcquireNext", p.InstanceName, err)
	}
	return keys, nil
}

// MisfireCandidates возвращает до limit ключей триггеров в состоянии
// Waiting с включённой обработкой misfire и next_fire_time раньше floor,
// в том же порядке, что и AcquireNext. hasMore сообщает, превышает ли
// общее число limit.
func (r *TriggerRepo) MisfireCandidates(ctx context.Context, instanceName string, floor time.Time, limit int) (keys []domain.TriggerKey, hasMore bool, err error) {
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		var total int
		if execErr := r.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT count(*) FROM %s
			WHERE instance_name=$1 AND state=$2 AND misfire_instruction != $3 AND next_fire_time < $4`, r.table),
			instanceName, domain.TriggerStateWaiting, domain.MisfireInstructionIgnore, floor).Scan(&total); execErr != nil {
			return execErr
		}
		hasMore = total > limit

		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(`
			SELECT trigger_group, name FROM %s
			WHERE instance_name=$1 AND state=$2 AND misfire_instruction != $3 AND next_fire_time < $4
			ORDER BY next_fire_time ASC, priority DESC
			LIMIT $5`, r.table),
			instanceName, domain.TriggerStateWaiting, domain.MisfireInstructionIgnore, floor, limit)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		keys = nil
		for rows.Next() {
			k := domain.TriggerKey{InstanceName: instanceName}
			if execErr = rows.Scan(&k.Group, &k.Name); execErr != nil {
				return execErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, false, storeerr.PersistenceErr("TriggerRepo.MisfireCandidates", instanceName, err)
	}
	return keys, hasMore, nil
}

// UpdateFireTimes записывает next_fire_time/previous_fire_time/recurrence
// и тем же запросом переводит state из from в to через CAS — используется
// misfire sweep'ом и пересчётом после замены календаря, чтобы пересчёт и
// переход состояния коммитились атомарно. recurrence сохраняется целиком,
// поскольку next() у SimpleRecurrence мутирует TimesTriggered в памяти —
// без этого счётчик срабатываний никогда бы не попадал на диск и триггер
// с конечным RepeatCount не смог бы дойти до терминального состояния через
// sweep.
func (r *TriggerRepo) UpdateFireTimes(ctx context.Context, key domain.TriggerKey, next, prev *time.Time, recurrence *domain.Recurrence, from, to domain.TriggerState) (bool, error) {
	recurrenceRaw, err := json.Marshal(recurrence)
	if err != nil {
		return false, storeerr.PersistenceErr("TriggerRepo.UpdateFireTimes", key.String(), err)
	}

	var won bool
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET next_fire_time=$4, previous_fire_time=$5, state=$6, recurrence=$7
			WHERE instance_name=$1 AND trigger_group=$2 AND name=$3 AND state=$8`, r.table),
			key.InstanceName, key.Group, key.Name, next, prev, to, recurrenceRaw, from)
		if execErr != nil {
			return execErr
		}
		won = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, storeerr.PersistenceErr("TriggerRepo.UpdateFireTimes", key.String(), err)
	}
	return won, nil
}

func (r *TriggerRepo) ListKeysByGroupMatcher(ctx context.Context, instanceName string, m GroupMatcher) ([]domain.TriggerKey, error) {
	pattern, err := m.SQLPattern()
	if err != nil {
		return nil, err
	}
	var keys []domain.TriggerKey
	err = store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT trigger_group, name FROM %s WHERE instance_name=$1 AND trigger_group LIKE $2`, r.table),
			instanceName, pattern)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		keys = nil
		for rows.Next() {
			k := domain.TriggerKey{InstanceName: instanceName}
			if execErr = rows.Scan(&k.Group, &k.Name); execErr != nil {
				return execErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("TriggerRepo.ListKeysByGroupMatcher", instanceName, err)
	}
	return keys, nil
}

func (r *TriggerRepo) ListKeysByJobKey(ctx context.Context, jobKey domain.JobKey) ([]domain.TriggerKey, error) {
	var keys []domain.TriggerKey
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT trigger_group, name FROM %s WHERE instance_name=$1 AND job_group=$2 AND job_name=$3`, r.table),
			jobKey.InstanceName, jobKey.Group, jobKey.Name)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		keys = nil
		for rows.Next() {
			k := domain.TriggerKey{InstanceName: jobKey.InstanceName}
			if execErr = rows.Scan(&k.Group, &k.Name); execErr != nil {
				return execErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("TriggerRepo.ListKeysByJobKey", jobKey.String(), err)
	}
	return keys, nil
}

func (r *TriggerRepo) ListGroups(ctx context.Context, instanceName string) ([]string, error) {
	var groups []string
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(
			`SELECT DISTINCT trigger_group FROM %s WHERE instance_name=$1 ORDER BY trigger_group`, r.table), instanceName)
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
		return nil, storeerr.PersistenceErr("TriggerRepo.ListGroups", instanceName, err)
	}
	return groups, nil
}

// CountByJobKey сообщает, сколько триггеров (в любом состоянии)
// ссылается на job.
func (r *TriggerRepo) CountByJobKey(ctx context.Context, jobKey domain.JobKey) (int, error) {
	var n int
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s WHERE instance_name=$1 AND job_group=$2 AND job_name=$3`, r.table),
			jobKey.InstanceName, jobKey.Group, jobKey.Name).Scan(&n)
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.CountByJobKey", jobKey.String(), err)
	}
	return n, nil
}

// CountByJobKeyInState сообщает, сколько триггеров job'а сейчас в
// состоянии state — используется, чтобы обнаружить "этот job запрещает
// конкурентное выполнение и уже выполняется".
func (r *TriggerRepo) CountByJobKeyInState(ctx context.Context, jobKey domain.JobKey, state domain.TriggerState) (int, error) {
	var n int
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s WHERE instance_name=$1 AND job_group=$2 AND job_name=$3 AND state=$4`, r.table),
			jobKey.InstanceName, jobKey.Group, jobKey.Name, state).Scan(&n)
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.CountByJobKeyInState", jobKey.String(), err)
	}
	return n, nil
}

func (r *TriggerRepo) CountByCalendar(ctx context.Context, instanceName, calendarName string) (int, error) {
	var n int
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s WHERE instance_name=$1 AND calendar_name=$2`, r.table),
			instanceName, calendarName).Scan(&n)
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.CountByCalendar", instanceName+"/"+calendarName, err)
	}
	return n, nil
}

func (r *TriggerRepo) ListByCalendar(ctx context.Context, instanceName, calendarName string) ([]*domain.Trigger, error) {
	var out []*domain.Trigger
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		rows, execErr := r.pool.Query(ctx, fmt.Sprintf(`
			SELECT instance_name, trigger_group, name, job_group, job_name, next_fire_time,
			       previous_fire_time, priority, start_time, end_time, calendar_name,
			       misfire_instruction, data, state, recurrence
			FROM %s WHERE instance_name=$1 AND calendar_name=$2`, r.table), instanceName, calendarName)
		if execErr != nil {
			return execErr
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			t, scanErr := scanTrigger(rows)
			if scanErr != nil {
				return scanErr
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeerr.PersistenceErr("TriggerRepo.ListByCalendar", instanceName+"/"+calendarName, err)
	}
	return out, nil
}

// DeleteInState удаляет все триггеры instanceName, находящиеся в
// состоянии state, и возвращает число удалённых строк.
func (r *TriggerRepo) DeleteInState(ctx context.Context, instanceName string, state domain.TriggerState) (int, error) {
	var n int64
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		tag, execErr := r.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE instance_name=$1 AND state=$2`, r.table), instanceName, state)
		if execErr != nil {
			return execErr
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storeerr.PersistenceErr("TriggerRepo.DeleteInState", instanceName, err)
	}
	return int(n), nil
}

func (r *TriggerRepo) Truncate(ctx context.Context, instanceName string) error {
	err := store.Do(ctx, r.retry, func(ctx context.Context) error {
		_, execErr := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE instance_name=$1`, r.table), instanceName)
		return execErr
	})
	if err != nil {
		return storeerr.PersistenceErr("TriggerRepo.Truncate", instanceName, err)
	}
	return nil
}

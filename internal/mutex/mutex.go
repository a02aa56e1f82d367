// Package mutex реализует именованную нереентерабельную блокировку на
// уровне кластера, которой хранилище сериализует шаги конечного
// автомата между инстансами планировщика (TriggerAccess/StateAccess).
package mutex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/metrics"
)

// DefaultTTL — TTL по умолчанию, 30с.
const DefaultTTL = 30 * time.Second

// DefaultPollInterval — фиксированная пауза между неудачными попытками захвата.
const DefaultPollInterval = time.Second

// Mutex — распределённая блокировка над одной строкой таблицы locks,
// идентифицируемой парой (instanceName, lockType). Она принадлежит
// вызывающему коду и не несёт процесс-глобального состояния singleton —
// каждая пара Acquire/Release обращается к базе, а не к
// внутрипроцессному семафору, так что единственное локальное состояние —
// считает ли этот handle, что сейчас держит блокировку.
type Mutex struct {
	pool         *pgxpool.Pool
	table        string
	instanceName string
	lockType     domain.LockType
	owner        string
	ttl          time.Duration
	pollInterval time.Duration
	metrics      *metrics.Collectors

	held bool
}

// New создаёт handle Mutex. owner должен быть физическим instance_id —
// именно эту идентичность проверяет Release.
func New(pool *pgxpool.Pool, locksTable, instanceName, owner string, lockType domain.LockType) *Mutex {
	return &Mutex{
		pool:         pool,
		table:        locksTable,
		instanceName: instanceName,
		lockType:     lockType,
		owner:        owner,
		ttl:          DefaultTTL,
		pollInterval: DefaultPollInterval,
	}
}

// WithTTL переопределяет TTL по умолчанию — в основном для тестов,
// которым нужны быстрые проверки восстановления после падения.
func (m *Mutex) WithTTL(ttl time.Duration) *Mutex {
	m.ttl = ttl
	return m
}

// WithMetrics подключает коллекторы, в которые отчитывается Acquire.
// nil-указатель допустим — каждый метод Collectors — no-op на nil
// receiver'е, так что вызывающий код без метрик может просто не звать
// этот метод.
func (m *Mutex) WithMetrics(c *metrics.Collectors) *Mutex {
	m.metrics = c
	return m
}

// Acquire захватывает блокировку, опрашивая с фиксированным интервалом,
// пока не получится или пока не отменят ctx. Acquire нереентерабелен:
// повторный вызов на Mutex, который уже считает, что держит блокировку,
// — ошибка вызывающего кода, и возвращается ошибка, а не тихий дедлок.
func (m *Mutex) Acquire(ctx context.Context) error {
	if m.held {
		return fmt.Errorf("mutex: non-reentrant acquire of %s/%s by %s", m.instanceName, m.lockType, m.owner)
	}

	waitStart := time.Now()
	limiter := rate.NewLimiter(rate.Every(m.pollInterval), 1)
	// Первый Wait возвращается немедленно (свежий limiter стартует
	// полным), так что первая попытка не задерживается на полный интервал опроса.
	for {
		ok, err := m.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			m.held = true
			m.metrics.ObserveLockWait(time.Since(waitStart))
			m.metrics.IncLockAcquired()
			return nil
		}
		m.metrics.IncLockContended()
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

func (m *Mutex) tryAcquire(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	expireAt := now.Add(m.ttl)

	tag, err := m.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (instance_name, lock_type, owner, acquired_at, expire_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_name, lock_type) DO UPDATE
		SET owner = $3, acquired_at = $4, expire_at = $5
		WHERE %s.expire_at < $4
	`, m.table, m.table), m.instanceName, string(m.lockType), m.owner, now, expireAt)
	if err != nil {
		return false, fmt.Errorf("mutex acquire: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release выполняет условное удаление строки (instanceName, lockType,
// owner=я). Отсутствующая строка (уже вычищенная по TTL) считается
// успешным no-op освобождением, а не ошибкой.
func (m *Mutex) Release(ctx context.Context) error {
	if !m.held {
		return nil
	}
	_, err := m.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE instance_name = $1 AND lock_type = $2 AND owner = $3
	`, m.table), m.instanceName, string(m.lockType), m.owner)
	m.held = false
	if err != nil {
		return fmt.Errorf("mutex release: %w", err)
	}
	return nil
}

// WithLock захватывает m, выполняет fn и освобождает m на любом пути
// выхода (включая panic, разворачивающуюся через fn) — форма, с которой
// компонуется каждая операция менеджеров хранения и срабатывания.
func WithLock(ctx context.Context, m *Mutex, fn func(ctx context.Context) error) error {
	if err := m.Acquire(ctx); err != nil {
		return err
	}
	defer m.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}

// ForceRelease безусловно удаляет строку блокировки (без проверки
// owner'а), независимо от того, истёк ли TTL. Используется
// административными инструментами, чтобы снять зависшую блокировку до
// истечения TTL; обычный код операций его не вызывает. Возвращает
// owner'а, который держал блокировку, либо "", если строки не было.
func ForceRelease(ctx context.Context, pool *pgxpool.Pool, locksTable, instanceName string, lockType domain.LockType) (string, error) {
	var owner string
	err := pool.QueryRow(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE instance_name = $1 AND lock_type = $2 RETURNING owner
	`, locksTable), instanceName, string(lockType)).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("mutex force release: %w", err)
	}
	return owner, nil
}

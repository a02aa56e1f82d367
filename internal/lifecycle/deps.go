// Package lifecycle отвечает за регистрацию инстанса, восстановление
// при старте, фоновый sweeper обработки misfire'ов и graceful shutdown.
package lifecycle

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/firemanager"
	"github.com/shaiso/triggerstore/internal/metrics"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/repo"
)

// Config собирает всё, что нужно координатору для восстановления при
// старте и управления sweeper'ом.
type Config struct {
	Pool         *pgxpool.Pool
	LocksTable   string
	InstanceName string
	InstanceID   string

	Jobs          *repo.JobRepo
	Triggers      *repo.TriggerRepo
	Calendars     *repo.CalendarRepo
	PausedGroups  *repo.PausedGroupRepo
	FiredTriggers *repo.FiredTriggerRepo
	Schedulers    *repo.SchedulerRepo

	Fire *firemanager.FireManager

	MisfireThreshold time.Duration
	DBRetryInterval  time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collectors
}

func (c Config) triggerAccess() *mutex.Mutex {
	return mutex.New(c.Pool, c.LocksTable, c.InstanceName, c.InstanceID, domain.LockTriggerAccess).
		WithMetrics(c.Metrics)
}

// stateAccess защищает обновления собственной строки регистрации
// планировщика — отдельно от triggerAccess, чтобы долго удерживаемая
// блокировка TriggerAccess (например, во время восстановления) никогда
// не блокировала check-in или пауза/возобновление.
func (c Config) stateAccess() *mutex.Mutex {
	return mutex.New(c.Pool, c.LocksTable, c.InstanceName, c.InstanceID, domain.LockStateAccess).
		WithMetrics(c.Metrics)
}

// Validate проверяет обязательные поля: пул соединений, оба
// идентификатора инстанса и fire manager должны быть заданы.
func (c Config) Validate() error {
	if c.Pool == nil {
		return errors.New("lifecycle: pool is required")
	}
	if c.InstanceName == "" {
		return errors.New("lifecycle: instance name is required")
	}
	if c.InstanceID == "" {
		return errors.New("lifecycle: instance id is required")
	}
	if c.Fire == nil {
		return errors.New("lifecycle: fire manager is required")
	}
	return nil
}

// Package cli реализует команды административной консоли storectl:
// прямой доступ к хранилищу триггеров в обход воркер-пула — просмотр
// job'ов/триггеров/календарей, управление паузами групп, снятие
// зависшей блокировки и полная очистка данных инстанса.
package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/config"
	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/firemanager"
	"github.com/shaiso/triggerstore/internal/lifecycle"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/storagemgr"
	"github.com/shaiso/triggerstore/internal/store"
)

// Deps связывает командам консоли пул соединений и уже сконфигурированные
// менеджеры — по одному набору на процесс storectl, без сетевого клиента:
// консоль говорит с базой напрямую, а не через API инстанса.
type Deps struct {
	Cfg   config.Config
	Names store.CollectionNames

	Jobs      *storagemgr.JobManager
	Triggers  *storagemgr.TriggerManager
	Calendars *storagemgr.CalendarManager
	Groups    *storagemgr.GroupManager

	Coordinator *lifecycle.Coordinator

	pool *pgxpool.Pool
}

// Connect открывает пул, гарантирует схему и собирает Deps из
// сконфигурированного окружения. Вызывающий обязан вызвать Close.
func Connect(ctx context.Context, cfg config.Config) (*Deps, error) {
	pool, err := store.NewPool(ctx, cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	names, err := store.NewCollectionNames(cfg.CollectionPrefix)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx, pool, names); err != nil {
		pool.Close()
		return nil, err
	}

	jobs := repo.NewJobRepo(pool, names.Jobs)
	triggers := repo.NewTriggerRepo(pool, names.Triggers)
	calendars := repo.NewCalendarRepo(pool, names.Calendars)
	pausedGroups := repo.NewPausedGroupRepo(pool, names.PausedTriggerGroups)
	firedTriggers := repo.NewFiredTriggerRepo(pool, names.FiredTriggers)
	schedulers := repo.NewSchedulerRepo(pool, names.Schedulers)

	mgrConfig := storagemgr.Config{
		Pool:             pool,
		LocksTable:       names.Locks,
		InstanceName:     cfg.InstanceName,
		InstanceID:       cfg.InstanceID,
		Jobs:             jobs,
		Triggers:         triggers,
		Calendars:        calendars,
		PausedGroups:     pausedGroups,
		FiredTriggers:    firedTriggers,
		MisfireThreshold: cfg.MisfireThreshold,
	}

	fire := firemanager.New(firemanager.Config{
		Pool:                       pool,
		LocksTable:                 names.Locks,
		InstanceName:               cfg.InstanceName,
		InstanceID:                 cfg.InstanceID,
		Jobs:                       jobs,
		Triggers:                   triggers,
		Calendars:                  calendars,
		FiredTriggers:              firedTriggers,
		MisfireThreshold:           cfg.MisfireThreshold,
		MaxMisfiresToHandleAtATime: cfg.MaxMisfiresPerPass,
	})

	coordinator := lifecycle.New(lifecycle.Config{
		Pool:             pool,
		LocksTable:       names.Locks,
		InstanceName:     cfg.InstanceName,
		InstanceID:       cfg.InstanceID,
		Jobs:             jobs,
		Triggers:         triggers,
		Calendars:        calendars,
		PausedGroups:     pausedGroups,
		FiredTriggers:    firedTriggers,
		Schedulers:       schedulers,
		Fire:             fire,
		MisfireThreshold: cfg.MisfireThreshold,
		DBRetryInterval:  cfg.DBRetryInterval,
	})

	return &Deps{
		Cfg:         cfg,
		Names:       names,
		Jobs:        storagemgr.NewJobManager(mgrConfig),
		Triggers:    storagemgr.NewTriggerManager(mgrConfig),
		Calendars:   storagemgr.NewCalendarManager(mgrConfig),
		Groups:      storagemgr.NewGroupManager(mgrConfig),
		Coordinator: coordinator,
		pool:        pool,
	}, nil
}

// Close закрывает пул соединений.
func (d *Deps) Close() {
	d.pool.Close()
}

// ForceReleaseLock снимает зависшую блокировку lockType для текущего
// instance_name и возвращает id владельца, у которого она была отобрана.
func (d *Deps) ForceReleaseLock(ctx context.Context, lockType domain.LockType) (string, error) {
	return mutex.ForceRelease(ctx, d.pool, d.Names.Locks, d.Cfg.InstanceName, lockType)
}

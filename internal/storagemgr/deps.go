// Package storagemgr реализует менеджеры хранения: паттерн
// блокировка -> проверка -> переход -> разблокировка -> перевод ошибки,
// общий для каждого write-метода хранилища.
package storagemgr

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/metrics"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/repo"
)

// Config собирает всё, что нужно менеджеру: построить свежий мьютекс
// TriggerAccess на каждый вызов и достучаться до репозиториев.
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

	MisfireThreshold time.Duration

	Metrics *metrics.Collectors
}

func (c Config) triggerAccess() *mutex.Mutex {
	return mutex.New(c.Pool, c.LocksTable, c.InstanceName, c.InstanceID, domain.LockTriggerAccess).
		WithMetrics(c.Metrics)
}

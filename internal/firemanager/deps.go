// Package firemanager реализует протокол acquire/fire/complete и
// периодический sweep восстановления misfire'ов.
package firemanager

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/metrics"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/notify"
	"github.com/shaiso/triggerstore/internal/repo"
)

// Config собирает репозитории и соработников, нужные FireManager'у.
type Config struct {
	Pool         *pgxpool.Pool
	LocksTable   string
	InstanceName string
	InstanceID   string

	Jobs          *repo.JobRepo
	Triggers      *repo.TriggerRepo
	Calendars     *repo.CalendarRepo
	FiredTriggers *repo.FiredTriggerRepo

	MisfireThreshold           time.Duration
	MaxMisfiresToHandleAtATime int

	Events  *notify.Listeners
	Metrics *metrics.Collectors
}

func (c Config) triggerAccess() *mutex.Mutex {
	return mutex.New(c.Pool, c.LocksTable, c.InstanceName, c.InstanceID, domain.LockTriggerAccess).
		WithMetrics(c.Metrics)
}

func (c Config) publish(e notify.Event) {
	if c.Events == nil {
		return
	}
	e.InstanceName = c.InstanceName
	c.Events.Publish(e)
}

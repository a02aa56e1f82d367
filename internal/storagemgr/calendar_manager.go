package storagemgr

import (
	"context"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// CalendarManager реализует работу с календарями.
type CalendarManager struct {
	cfg Config
}

func NewCalendarManager(cfg Config) *CalendarManager {
	return &CalendarManager{cfg: cfg}
}

// StoreCalendar добавляет либо заменяет календарь. При замене с
// updateTriggers=true у каждого ссылающегося триггера пересчитывается
// next_fire_time с учётом новых правил исключения.
func (m *CalendarManager) StoreCalendar(ctx context.Context, cal *domain.Calendar, replace, updateTriggers bool) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		existing, err := m.cfg.Calendars.Get(ctx, cal.Key)
		if err != nil {
			return err
		}
		if existing != nil && !replace {
			return storeerr.AlreadyExistsErr("CalendarManager.StoreCalendar", cal.Key.Name)
		}

		if err := m.cfg.Calendars.Upsert(ctx, cal); err != nil {
			return err
		}
		if existing == nil || !updateTriggers {
			return nil
		}

		triggers, err := m.cfg.Triggers.ListByCalendar(ctx, cal.Key.InstanceName, cal.Key.Name)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, t := range triggers {
			from := now
			if t.NextFireTime != nil {
				from = *t.NextFireTime
			}
			next, ok := t.Recurrence.ComputeFirstFireTimeUTC(from, cal)
			if !ok {
				continue
			}
			if _, err := m.cfg.Triggers.UpdateFireTimes(ctx, t.Key, &next, t.PreviousFireTime, &t.Recurrence, t.State, t.State); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveCalendar отказывает в удалении, пока на календарь ссылается
// хотя бы один триггер (Integrity) — то же правило запрета висячих
// ссылок, что и для job'ов с триггерами.
func (m *CalendarManager) RemoveCalendar(ctx context.Context, key domain.CalendarKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		n, err := m.cfg.Triggers.CountByCalendar(ctx, key.InstanceName, key.Name)
		if err != nil {
			return err
		}
		if n > 0 {
			return storeerr.IntegrityErr("CalendarManager.RemoveCalendar", key.Name, "calendar is still referenced by triggers")
		}
		return m.cfg.Calendars.Delete(ctx, key)
	})
}

func (m *CalendarManager) RetrieveCalendar(ctx context.Context, key domain.CalendarKey) (*domain.Calendar, error) {
	return m.cfg.Calendars.Get(ctx, key)
}

func (m *CalendarManager) CalendarExists(ctx context.Context, key domain.CalendarKey) (bool, error) {
	return m.cfg.Calendars.Exists(ctx, key)
}

func (m *CalendarManager) ListCalendarNames(ctx context.Context, instanceName string) ([]string, error) {
	return m.cfg.Calendars.ListNames(ctx, instanceName)
}

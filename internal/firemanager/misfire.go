package firemanager

import (
	"context"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/notify"
)

const defaultMaxMisfiresToHandleAtATime = 20

// MisfireResult — итог одного прохода sweep'а.
type MisfireResult struct {
	HasMore             bool
	Count               int
	EarliestNewFireTime *time.Time
}

// RunMisfireSweep пересчитывает next_fire_time для триггеров,
// пропустивших своё окно больше чем на misfireThreshold, захватывая
// TriggerAccess самостоятельно. recovering=true (используется при старте
// инстанса) подавляет возврат в Waiting — пересчитанные триггеры остаются
// в текущем состоянии, чтобы не сработать раньше, чем инстанс закончит
// восстановление.
func (m *FireManager) RunMisfireSweep(ctx context.Context, recovering bool) (MisfireResult, error) {
	var result MisfireResult
	err := mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		r, err := m.sweepLocked(ctx, recovering)
		result = r
		return err
	})
	if err != nil {
		return MisfireResult{}, err
	}
	return result, nil
}

// SweepMisfiresLocked выполняет тот же проход, что RunMisfireSweep, но не
// захватывает TriggerAccess сам — вызывающий обязан уже держать эту
// блокировку. Mutex нереентерабелен, так что восстановление при старте,
// которое держит TriggerAccess на всё время recover(), не может звать
// RunMisfireSweep и пользуется этим методом вместо него.
func (m *FireManager) SweepMisfiresLocked(ctx context.Context, recovering bool) (MisfireResult, error) {
	return m.sweepLocked(ctx, recovering)
}

func (m *FireManager) sweepLocked(ctx context.Context, recovering bool) (MisfireResult, error) {
	var result MisfireResult
	limit := m.cfg.MaxMisfiresToHandleAtATime
	if limit <= 0 {
		limit = defaultMaxMisfiresToHandleAtATime
	}

	now := time.Now().UTC()
	floor := now.Add(-m.cfg.MisfireThreshold)

	keys, hasMore, err := m.cfg.Triggers.MisfireCandidates(ctx, m.cfg.InstanceName, floor, limit)
	if err != nil {
		return MisfireResult{}, err
	}
	result.HasMore = hasMore

	for _, key := range keys {
		if ctx.Err() != nil {
			return MisfireResult{}, ctx.Err()
		}

		t, err := m.cfg.Triggers.Get(ctx, key)
		if err != nil {
			return MisfireResult{}, err
		}
		if t == nil || t.IsMisfireIgnored() {
			continue
		}

		var cal *domain.Calendar
		if t.CalendarName != "" {
			cal, err = m.cfg.Calendars.Get(ctx, domain.CalendarKey{InstanceName: m.cfg.InstanceName, Name: t.CalendarName})
			if err != nil {
				return MisfireResult{}, err
			}
		}
		m.cfg.publish(notify.Event{
			Type:       notify.EventTriggerMisfired,
			TriggerKey: &key,
			JobKey:     &t.JobKey,
			At:         now,
		})

		from := now
		if t.NextFireTime != nil {
			from = *t.NextFireTime
		}
		next, hasNext := t.Recurrence.UpdateAfterMisfire(from, cal)
		nextState := domain.Misfire(t.State, hasNext)

		if !hasNext {
			if _, err := m.cfg.Triggers.CAS(ctx, key, t.State, nextState); err != nil {
				return MisfireResult{}, err
			}
			m.cfg.publish(notify.Event{
				Type:       notify.EventTriggerFinalized,
				TriggerKey: &key,
				JobKey:     &t.JobKey,
				At:         time.Now().UTC(),
			})
			result.Count++
			continue
		}

		toState := t.State
		if !recovering {
			toState = nextState
		}
		if _, err := m.cfg.Triggers.UpdateFireTimes(ctx, key, &next, t.NextFireTime, &t.Recurrence, t.State, toState); err != nil {
			return MisfireResult{}, err
		}
		if result.EarliestNewFireTime == nil || next.Before(*result.EarliestNewFireTime) {
			nextCopy := next
			result.EarliestNewFireTime = &nextCopy
		}
		result.Count++
	}

	if m.cfg.Metrics != nil && result.Count > 0 {
		m.cfg.Metrics.MisfiresHandledTotal.Add(float64(result.Count))
	}
	return result, nil
}

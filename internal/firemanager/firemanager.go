package firemanager

import (
	"context"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/notify"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// FireManager реализует протокол acquire/fire/complete.
type FireManager struct {
	cfg Config
}

func New(cfg Config) *FireManager {
	return &FireManager{cfg: cfg}
}

// Bundle — снимок job/trigger/calendar, который получает вызывающий код
// после TriggersFired, чтобы передать работу воркеру.
type Bundle struct {
	Job      *domain.Job
	Trigger  *domain.Trigger
	Calendar *domain.Calendar
}

// AcquireNextTriggers запускает запрос захвата и переводит каждого
// кандидата Waiting -> Acquired условным CAS. Проигранный CAS означает,
// что кандидата забрал кто-то другой или он был приостановлен — он
// пропускается, а не считается ошибкой. Отмена между кандидатами
// допустима; уже захваченные в этом вызове триггеры не откатываются —
// вызывающий обязан либо TriggersFired, либо ReleaseAcquiredTrigger их.
func (m *FireManager) AcquireNextTriggers(ctx context.Context, noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]*domain.Trigger, error) {
	var acquired []*domain.Trigger
	err := mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		now := time.Now().UTC()
		keys, err := m.cfg.Triggers.AcquireNext(ctx, repo.AcquireParams{
			InstanceName:     m.cfg.InstanceName,
			NoLaterThan:      noLaterThan,
			TimeWindow:       timeWindow,
			MaxCount:         maxCount,
			MisfireThreshold: m.cfg.MisfireThreshold,
			Now:              now,
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			won, err := m.cfg.Triggers.CAS(ctx, k, domain.TriggerStateWaiting, domain.TriggerStateAcquired)
			if err != nil {
				return err
			}
			if !won {
				continue
			}
			t, err := m.cfg.Triggers.Get(ctx, k)
			if err != nil {
				return err
			}
			if t == nil {
				continue
			}
			acquired = append(acquired, t)
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.TriggersAcquiredTotal.Inc()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

// ReleaseAcquiredTrigger условно переводит Acquired -> Waiting. Идемпотентно:
// если триггер уже не Acquired (сработал, удалён, отпущен ранее), это
// не ошибка.
func (m *FireManager) ReleaseAcquiredTrigger(ctx context.Context, key domain.TriggerKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		_, err := m.cfg.Triggers.CAS(ctx, key, domain.TriggerStateAcquired, domain.TriggerStateWaiting)
		return err
	})
}

// FireOutcome — результат передачи одного триггера воркеру: либо Bundle,
// либо Err, если этот конкретный триггер не удалось передать. Одна
// ошибка не прерывает обработку остальных триггеров в пачке.
type FireOutcome struct {
	Key    domain.TriggerKey
	Bundle *Bundle
	Err    error
}

// TriggersFired переводит каждый ранее захваченный триггер Acquired ->
// Executing, регистрирует fired-trigger запись и возвращает снимок
// job/trigger/calendar для передачи воркеру.
func (m *FireManager) TriggersFired(ctx context.Context, keys []domain.TriggerKey) ([]FireOutcome, error) {
	var out []FireOutcome
	err := mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		for _, key := range keys {
			outcome := FireOutcome{Key: key}

			t, err := m.cfg.Triggers.Get(ctx, key)
			if err != nil {
				outcome.Err = err
				out = append(out, outcome)
				continue
			}
			if t == nil {
				outcome.Err = storeerr.IntegrityErr("FireManager.TriggersFired", key.String(), "trigger no longer exists")
				out = append(out, outcome)
				continue
			}

			job, err := m.cfg.Jobs.Get(ctx, t.JobKey)
			if err != nil {
				outcome.Err = err
				out = append(out, outcome)
				continue
			}
			if job == nil {
				outcome.Err = storeerr.IntegrityErr("FireManager.TriggersFired", key.String(), "job no longer exists")
				out = append(out, outcome)
				continue
			}

			var cal *domain.Calendar
			if t.CalendarName != "" {
				cal, err = m.cfg.Calendars.Get(ctx, domain.CalendarKey{InstanceName: m.cfg.InstanceName, Name: t.CalendarName})
				if err != nil {
					outcome.Err = err
					out = append(out, outcome)
					continue
				}
			}

			won, err := m.cfg.Triggers.CAS(ctx, key, domain.TriggerStateAcquired, domain.TriggerStateExecuting)
			if err != nil {
				outcome.Err = err
				out = append(out, outcome)
				continue
			}
			if !won {
				outcome.Err = storeerr.IntegrityErr("FireManager.TriggersFired", key.String(), "trigger was not Acquired")
				out = append(out, outcome)
				continue
			}
			t.State = domain.TriggerStateExecuting

			firedAt := time.Now().UTC()
			scheduled := firedAt
			if t.NextFireTime != nil {
				scheduled = *t.NextFireTime
			}
			ft := &domain.FiredTrigger{
				InstanceName:                  m.cfg.InstanceName,
				FiredInstanceID:               domain.NewFiredInstanceID(key, m.cfg.InstanceID, firedAt),
				InstanceID:                    m.cfg.InstanceID,
				TriggerKey:                    key,
				JobKey:                        t.JobKey,
				FiredAt:                       firedAt,
				ScheduledTime:                 scheduled,
				RequestsRecovery:              job.RequestsRecovery,
				ConcurrentExecutionDisallowed: job.ConcurrentExecutionDisallowed,
			}
			if err := m.cfg.FiredTriggers.Insert(ctx, ft); err != nil {
				outcome.Err = err
				out = append(out, outcome)
				continue
			}

			if m.cfg.Metrics != nil {
				m.cfg.Metrics.TriggersFiredTotal.Inc()
			}
			m.cfg.publish(notify.Event{
				Type:       notify.EventTriggerFired,
				TriggerKey: &key,
				JobKey:     &t.JobKey,
				At:         firedAt,
			})

			outcome.Bundle = &Bundle{Job: job, Trigger: t, Calendar: cal}
			out = append(out, outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TriggeredJobComplete применяет инструкцию завершения: переводит триггер (или всю его группу для SetAllGroupComplete),
// удаляет fired-trigger записи, при необходимости сохраняет данные job'а
// и освобождает siblings, заблокированных запретом конкурентного
// исполнения.
func (m *FireManager) TriggeredJobComplete(ctx context.Context, trigger *domain.Trigger, job *domain.Job, instruction domain.CompletionInstruction) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if instruction == domain.CompletionSetAllGroupComplete {
			if err := m.completeGroup(ctx, trigger.Key); err != nil {
				return err
			}
		} else {
			next, deleted, ok := domain.Complete(trigger.State, instruction)
			if ok {
				if deleted {
					if err := m.cfg.Triggers.Delete(ctx, trigger.Key); err != nil {
						return err
					}
				} else if _, err := m.cfg.Triggers.CAS(ctx, trigger.Key, trigger.State, next); err != nil {
					return err
				}
			}
		}

		prefix := domain.FiredInstanceIDPrefix(trigger.Key, m.cfg.InstanceID)
		if _, err := m.cfg.FiredTriggers.DeleteByPrefix(ctx, m.cfg.InstanceName, prefix); err != nil {
			return err
		}

		if job.PersistDataAfterExecution {
			if err := m.cfg.Jobs.Upsert(ctx, job); err != nil {
				return err
			}
		}

		if job.ConcurrentExecutionDisallowed {
			if err := m.releaseSiblings(ctx, job.Key); err != nil {
				return err
			}
		}

		m.cfg.publish(notify.Event{
			Type:       notify.EventJobCompleted,
			TriggerKey: &trigger.Key,
			JobKey:     &job.Key,
			At:         time.Now().UTC(),
		})
		return nil
	})
}

// completeGroup применяет SetAllGroupComplete: переводит в Complete все
// триггеры группы key, независимо от их текущего состояния.
func (m *FireManager) completeGroup(ctx context.Context, key domain.TriggerKey) error {
	siblings, err := m.cfg.Triggers.ListKeysByGroupMatcher(ctx, m.cfg.InstanceName, repo.GroupMatcher{Operator: repo.MatchEquals, Value: key.Group})
	if err != nil {
		return err
	}
	for _, sk := range siblings {
		t, err := m.cfg.Triggers.Get(ctx, sk)
		if err != nil {
			return err
		}
		if t == nil || t.State.IsTerminal() {
			continue
		}
		if _, err := m.cfg.Triggers.CAS(ctx, sk, t.State, domain.TriggerStateComplete); err != nil {
			return err
		}
	}
	return nil
}

// releaseSiblings отпускает триггеры того же job'а, заблокированные
// запретом конкурентного исполнения: PausedBlocked -> Paused,
// Executing -> Waiting.
func (m *FireManager) releaseSiblings(ctx context.Context, jobKey domain.JobKey) error {
	keys, err := m.cfg.Triggers.ListKeysByJobKey(ctx, jobKey)
	if err != nil {
		return err
	}
	for _, k := range keys {
		t, err := m.cfg.Triggers.Get(ctx, k)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		switch t.State {
		case domain.TriggerStatePausedBlocked:
			if _, err := m.cfg.Triggers.CAS(ctx, k, t.State, domain.TriggerStatePaused); err != nil {
				return err
			}
		case domain.TriggerStateExecuting:
			if _, err := m.cfg.Triggers.CAS(ctx, k, t.State, domain.TriggerStateWaiting); err != nil {
				return err
			}
		}
	}
	return nil
}

package storagemgr

import (
	"context"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// TriggerManager реализует работу с триггерами: блокировка, проверка,
// переход состояния, разблокировка.
type TriggerManager struct {
	cfg Config
}

func NewTriggerManager(cfg Config) *TriggerManager {
	return &TriggerManager{cfg: cfg}
}

// StoreTrigger добавляет триггер, вычисляя его начальное состояние из
// флага конкурентности job'а и множества приостановленных групп.
// Ссылаемый job должен уже существовать.
func (m *TriggerManager) StoreTrigger(ctx context.Context, t *domain.Trigger, replace bool) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		return m.storeTriggerLocked(ctx, t, replace, true)
	})
}

// storeTriggerLocked предполагает, что TriggerAccess уже захвачен —
// используется и StoreTrigger, и StoreJobAndTrigger, чтобы составная
// операция брала блокировку ровно один раз.
func (m *TriggerManager) storeTriggerLocked(ctx context.Context, t *domain.Trigger, replace, forceState bool) error {
	job, err := m.cfg.Jobs.Get(ctx, t.JobKey)
	if err != nil {
		return err
	}
	if job == nil {
		return storeerr.IntegrityErr("TriggerManager.StoreTrigger", t.Key.String(), "referenced job does not exist")
	}

	existing, err := m.cfg.Triggers.Get(ctx, t.Key)
	if err != nil {
		return err
	}
	if existing != nil && !replace {
		return storeerr.AlreadyExistsErr("TriggerManager.StoreTrigger", t.Key.String())
	}
	if existing != nil && !forceState {
		t.State = existing.State
	} else {
		t.State, err = m.initialState(ctx, t, job)
		if err != nil {
			return err
		}
	}

	return m.cfg.Triggers.Upsert(ctx, t)
}

func (m *TriggerManager) initialState(ctx context.Context, t *domain.Trigger, job *domain.Job) (domain.TriggerState, error) {
	allPaused, err := m.cfg.PausedGroups.Exists(ctx, m.cfg.InstanceName, domain.AllGroupsPaused)
	if err != nil {
		return "", err
	}
	groupPaused, err := m.cfg.PausedGroups.Exists(ctx, m.cfg.InstanceName, t.Key.Group)
	if err != nil {
		return "", err
	}
	if allPaused && !groupPaused {
		if err := m.cfg.PausedGroups.Add(ctx, m.cfg.InstanceName, t.Key.Group); err != nil {
			return "", err
		}
		groupPaused = true
	}

	blocked := false
	if job.ConcurrentExecutionDisallowed {
		n, err := m.cfg.Triggers.CountByJobKeyInState(ctx, t.JobKey, domain.TriggerStateExecuting)
		if err != nil {
			return "", err
		}
		blocked = n > 0
	}

	return domain.InitialStoreState(groupPaused, false, blocked), nil
}

// RemoveTrigger удаляет триггер, а затем и его job, если job не
// durable и после удаления у него не осталось других триггеров.
func (m *TriggerManager) RemoveTrigger(ctx context.Context, key domain.TriggerKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		return m.removeTriggerLocked(ctx, key)
	})
}

func (m *TriggerManager) removeTriggerLocked(ctx context.Context, key domain.TriggerKey) error {
	t, err := m.cfg.Triggers.Get(ctx, key)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	if err := m.cfg.Triggers.Delete(ctx, key); err != nil {
		return err
	}

	job, err := m.cfg.Jobs.Get(ctx, t.JobKey)
	if err != nil || job == nil {
		return err
	}
	if job.Durable {
		return nil
	}
	remaining, err := m.cfg.Triggers.CountByJobKey(ctx, t.JobKey)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return m.cfg.Jobs.Delete(ctx, t.JobKey)
	}
	return nil
}

// ReplaceTrigger сохраняет newTrigger вместо триггера по ключу key.
// Новый триггер должен ссылаться на тот же job.
func (m *TriggerManager) ReplaceTrigger(ctx context.Context, key domain.TriggerKey, newTrigger *domain.Trigger, forceState bool) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		existing, err := m.cfg.Triggers.Get(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil && existing.JobKey != newTrigger.JobKey {
			return storeerr.IntegrityErr("TriggerManager.ReplaceTrigger", key.String(), "replacement trigger references a different job")
		}
		if existing != nil && key != newTrigger.Key {
			if err := m.cfg.Triggers.Delete(ctx, key); err != nil {
				return err
			}
		}
		return m.storeTriggerLocked(ctx, newTrigger, true, forceState)
	})
}

// StoreJobAndTrigger — составная операция с одной блокировкой: job и
// его триггер сохраняются под одним захватом TriggerAccess.
func (m *TriggerManager) StoreJobAndTrigger(ctx context.Context, job *domain.Job, t *domain.Trigger, replace bool) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if replace {
			if err := m.cfg.Jobs.Upsert(ctx, job); err != nil {
				return err
			}
		} else {
			if err := m.cfg.Jobs.Insert(ctx, job); err != nil {
				return err
			}
		}
		return m.storeTriggerLocked(ctx, t, replace, true)
	})
}

func (m *TriggerManager) RetrieveTrigger(ctx context.Context, key domain.TriggerKey) (*domain.Trigger, error) {
	return m.cfg.Triggers.Get(ctx, key)
}

func (m *TriggerManager) TriggerExists(ctx context.Context, key domain.TriggerKey) (bool, error) {
	return m.cfg.Triggers.Exists(ctx, key)
}

func (m *TriggerManager) ListTriggerKeys(ctx context.Context, matcher repo.GroupMatcher) ([]domain.TriggerKey, error) {
	return m.cfg.Triggers.ListKeysByGroupMatcher(ctx, m.cfg.InstanceName, matcher)
}

func (m *TriggerManager) ListTriggerGroups(ctx context.Context) ([]string, error) {
	return m.cfg.Triggers.ListGroups(ctx, m.cfg.InstanceName)
}

// IsTriggerGroupPaused отвечает true, если группа явно отмечена
// приостановленной либо если действует глобальная пауза через сентинел
// <ALL_PAUSED> — в этом случае группа будет приостановлена, как только
// в неё попадёт первый триггер, даже если строка для неё самой ещё не
// создана (см. initialState).
func (m *TriggerManager) IsTriggerGroupPaused(ctx context.Context, group string) (bool, error) {
	paused, err := m.cfg.PausedGroups.Exists(ctx, m.cfg.InstanceName, group)
	if err != nil {
		return false, err
	}
	if paused {
		return true, nil
	}
	return m.cfg.PausedGroups.Exists(ctx, m.cfg.InstanceName, domain.AllGroupsPaused)
}

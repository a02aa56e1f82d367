package storagemgr

import (
	"context"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
)

// GroupManager реализует групповые операции паузы/возобновления:
// PauseTriggerGroup/ResumeTriggerGroup работают с одной группой,
// PauseAll/ResumeAll — со всеми группами, включая ещё не созданные, за
// счёт сентинела <ALL_PAUSED>.
type GroupManager struct {
	cfg Config
}

func NewGroupManager(cfg Config) *GroupManager {
	return &GroupManager{cfg: cfg}
}

// PauseTriggerGroup переводит триггеры Waiting/Acquired в Paused, а
// Executing — в PausedBlocked, и отмечает группу приостановленной,
// чтобы триггеры, добавленные позже, тоже начинали на паузе.
func (m *GroupManager) PauseTriggerGroup(ctx context.Context, instanceName, group string) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if err := m.cfg.PausedGroups.Add(ctx, instanceName, group); err != nil {
			return err
		}
		if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, group, domain.TriggerStateWaiting, domain.TriggerStatePaused); err != nil {
			return err
		}
		if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, group, domain.TriggerStateAcquired, domain.TriggerStatePaused); err != nil {
			return err
		}
		_, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, group, domain.TriggerStateExecuting, domain.TriggerStatePausedBlocked)
		return err
	})
}

// ResumeTriggerGroup снимает флаг паузы с группы и возвращает Paused
// триггеры в Waiting, а PausedBlocked — прямо в Executing, минуя
// Waiting, как и при возобновлении одиночного триггера.
func (m *GroupManager) ResumeTriggerGroup(ctx context.Context, instanceName, group string) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if err := m.cfg.PausedGroups.Remove(ctx, instanceName, group); err != nil {
			return err
		}
		if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, group, domain.TriggerStatePaused, domain.TriggerStateWaiting); err != nil {
			return err
		}
		_, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, group, domain.TriggerStatePausedBlocked, domain.TriggerStateExecuting)
		return err
	})
}

// PauseAll приостанавливает все существующие группы и записывает
// сентинел <ALL_PAUSED>, чтобы триггеры из ещё не существующих групп
// тоже начинали на паузе.
func (m *GroupManager) PauseAll(ctx context.Context, instanceName string) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if err := m.cfg.PausedGroups.Add(ctx, instanceName, domain.AllGroupsPaused); err != nil {
			return err
		}
		groups, err := m.cfg.Triggers.ListGroups(ctx, instanceName)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if err := m.cfg.PausedGroups.Add(ctx, instanceName, g); err != nil {
				return err
			}
			if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, g, domain.TriggerStateWaiting, domain.TriggerStatePaused); err != nil {
				return err
			}
			if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, g, domain.TriggerStateAcquired, domain.TriggerStatePaused); err != nil {
				return err
			}
			if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, g, domain.TriggerStateExecuting, domain.TriggerStatePausedBlocked); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResumeAll полностью очищает множество приостановленных групп и
// возобновляет все группы.
func (m *GroupManager) ResumeAll(ctx context.Context, instanceName string) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		groups, err := m.cfg.PausedGroups.List(ctx, instanceName)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g == domain.AllGroupsPaused {
				continue
			}
			if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, g, domain.TriggerStatePaused, domain.TriggerStateWaiting); err != nil {
				return err
			}
			if _, err := m.cfg.Triggers.CASBulkByGroup(ctx, instanceName, g, domain.TriggerStatePausedBlocked, domain.TriggerStateExecuting); err != nil {
				return err
			}
		}
		return m.cfg.PausedGroups.Truncate(ctx, instanceName)
	})
}

// PauseTrigger и ResumeTrigger работают с одним триггером, а не с целой
// группой; держим их рядом с групповыми операциями — форма через CAS у
// них та же.
func (m *GroupManager) PauseTrigger(ctx context.Context, key domain.TriggerKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		t, err := m.cfg.Triggers.Get(ctx, key)
		if err != nil || t == nil {
			return err
		}
		switch t.State {
		case domain.TriggerStateWaiting, domain.TriggerStateAcquired:
			_, err = m.cfg.Triggers.CAS(ctx, key, t.State, domain.TriggerStatePaused)
		case domain.TriggerStateExecuting:
			_, err = m.cfg.Triggers.CAS(ctx, key, t.State, domain.TriggerStatePausedBlocked)
		}
		return err
	})
}

func (m *GroupManager) ResumeTrigger(ctx context.Context, key domain.TriggerKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		t, err := m.cfg.Triggers.Get(ctx, key)
		if err != nil || t == nil {
			return err
		}
		switch t.State {
		case domain.TriggerStatePaused:
			_, err = m.cfg.Triggers.CAS(ctx, key, t.State, domain.TriggerStateWaiting)
		case domain.TriggerStatePausedBlocked:
			_, err = m.cfg.Triggers.CAS(ctx, key, t.State, domain.TriggerStateExecuting)
		}
		return err
	})
}

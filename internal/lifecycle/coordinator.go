package lifecycle

import (
	"context"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
)

// Coordinator отвечает за регистрацию инстанса, восстановление при
// старте, фоновый sweeper и graceful shutdown.
type Coordinator struct {
	cfg     Config
	sweeper *Sweeper
}

func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Initialize проверяет конфигурацию перед тем, как инстанс объявит себя
// запущенным.
func (co *Coordinator) Initialize() error {
	return co.cfg.Validate()
}

// SchedulerStarted регистрирует инстанс, выполняет восстановление после
// возможного падения и запускает фоновый sweeper.
func (co *Coordinator) SchedulerStarted(ctx context.Context) error {
	now := time.Now().UTC()
	reg := &domain.SchedulerRegistration{
		InstanceName: co.cfg.InstanceName,
		InstanceID:   co.cfg.InstanceID,
		State:        domain.SchedulerStateStarted,
		LastCheckIn:  now,
	}
	err := mutex.WithLock(ctx, co.cfg.stateAccess(), func(ctx context.Context) error {
		return co.cfg.Schedulers.Upsert(ctx, reg)
	})
	if err != nil {
		return err
	}

	if err := co.recover(ctx); err != nil {
		return err
	}

	co.sweeper = NewSweeper(co.cfg)
	co.sweeper.Start(ctx)
	return nil
}

// recover освобождает состояние, застрявшее после падения этого
// инстанса, пересоздаёт recovery-триггеры и прогоняет полный misfire
// sweep перед тем, как инстанс начнёт принимать новую работу.
func (co *Coordinator) recover(ctx context.Context) error {
	return mutex.WithLock(ctx, co.cfg.triggerAccess(), func(ctx context.Context) error {
		if _, err := co.cfg.Triggers.CASAllInInstance(ctx, co.cfg.InstanceName, domain.TriggerStateAcquired, domain.TriggerStateWaiting); err != nil {
			return err
		}
		if _, err := co.cfg.Triggers.CASAllInInstance(ctx, co.cfg.InstanceName, domain.TriggerStateExecuting, domain.TriggerStateWaiting); err != nil {
			return err
		}
		if _, err := co.cfg.Triggers.CASAllInInstance(ctx, co.cfg.InstanceName, domain.TriggerStatePausedBlocked, domain.TriggerStatePaused); err != nil {
			return err
		}

		fired, err := co.cfg.FiredTriggers.ListByInstanceID(ctx, co.cfg.InstanceName, co.cfg.InstanceID)
		if err != nil {
			return err
		}
		for _, ft := range fired {
			if !ft.RequestsRecovery {
				continue
			}
			if err := co.synthesizeRecoveryTrigger(ctx, ft); err != nil {
				return err
			}
		}

		if _, err := co.cfg.FiredTriggers.DeleteByInstanceID(ctx, co.cfg.InstanceName, co.cfg.InstanceID); err != nil {
			return err
		}

		for {
			result, err := co.cfg.Fire.SweepMisfiresLocked(ctx, true)
			if err != nil {
				return err
			}
			if !result.HasMore {
				break
			}
		}

		if _, err := co.cfg.Triggers.DeleteInState(ctx, co.cfg.InstanceName, domain.TriggerStateComplete); err != nil {
			return err
		}
		return nil
	})
}

// synthesizeRecoveryTrigger создаёт одноразовый триггер, который
// срабатывает в исходное запланированное время прерванного исполнения —
// recovery-триггер не повторяется (RepeatCount=0).
func (co *Coordinator) synthesizeRecoveryTrigger(ctx context.Context, ft *domain.FiredTrigger) error {
	next := ft.ScheduledTime
	recovery := &domain.Trigger{
		Key: domain.TriggerKey{
			InstanceName: co.cfg.InstanceName,
			Group:        ft.TriggerKey.Group,
			Name:         ft.TriggerKey.Name + ":recovery:" + ft.FiredInstanceID,
		},
		JobKey:             ft.JobKey,
		NextFireTime:       &next,
		Priority:           domain.DefaultPriority,
		StartTime:          next,
		MisfireInstruction: 0,
		State:              domain.TriggerStateWaiting,
		Recurrence: domain.Recurrence{
			Kind:   domain.RecurrenceSimple,
			Simple: &domain.SimpleRecurrence{RepeatCount: 0, TimesTriggered: 0},
		},
	}
	return co.cfg.Triggers.Insert(ctx, recovery)
}

func (co *Coordinator) SchedulerPaused(ctx context.Context) error {
	return mutex.WithLock(ctx, co.cfg.stateAccess(), func(ctx context.Context) error {
		return co.cfg.Schedulers.UpdateState(ctx, co.cfg.InstanceName, co.cfg.InstanceID, domain.SchedulerStatePaused)
	})
}

func (co *Coordinator) SchedulerResumed(ctx context.Context) error {
	return mutex.WithLock(ctx, co.cfg.stateAccess(), func(ctx context.Context) error {
		return co.cfg.Schedulers.UpdateState(ctx, co.cfg.InstanceName, co.cfg.InstanceID, domain.SchedulerStateResumed)
	})
}

// Shutdown останавливает sweeper, дожидается его завершения и удаляет
// регистрацию этого инстанса. Состояние других инстансов не трогает.
func (co *Coordinator) Shutdown(ctx context.Context) error {
	if co.sweeper != nil {
		co.sweeper.Stop()
	}
	return mutex.WithLock(ctx, co.cfg.stateAccess(), func(ctx context.Context) error {
		return co.cfg.Schedulers.Delete(ctx, co.cfg.InstanceName, co.cfg.InstanceID)
	})
}

// ClearAllSchedulingData удаляет все данные этого инстанса из всех
// коллекций — используется админской командой, а не штатным
// жизненным циклом.
func (co *Coordinator) ClearAllSchedulingData(ctx context.Context) error {
	return mutex.WithLock(ctx, co.cfg.triggerAccess(), func(ctx context.Context) error {
		if err := co.cfg.Triggers.Truncate(ctx, co.cfg.InstanceName); err != nil {
			return err
		}
		if err := co.cfg.Jobs.Truncate(ctx, co.cfg.InstanceName); err != nil {
			return err
		}
		if err := co.cfg.Calendars.Truncate(ctx, co.cfg.InstanceName); err != nil {
			return err
		}
		if err := co.cfg.FiredTriggers.Truncate(ctx, co.cfg.InstanceName); err != nil {
			return err
		}
		if err := co.cfg.PausedGroups.Truncate(ctx, co.cfg.InstanceName); err != nil {
			return err
		}
		return co.cfg.Schedulers.Truncate(ctx, co.cfg.InstanceName)
	})
}

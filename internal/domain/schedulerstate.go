package domain

import "time"

// SchedulerRunState — состояние жизненного цикла зарегистрированного
// инстанса планировщика.
type SchedulerRunState string

const (
	SchedulerStateStarted SchedulerRunState = "STARTED"
	SchedulerStateRunning SchedulerRunState = "RUNNING"
	SchedulerStatePaused  SchedulerRunState = "PAUSED"
	SchedulerStateResumed SchedulerRunState = "RESUMED"
)

// SchedulerRegistration создаётся при старте инстанса, удаляется при
// штатном завершении. Идентифицируется парой (instance_name, instance_id).
type SchedulerRegistration struct {
	InstanceName string            `json:"instance_name"`
	InstanceID   string            `json:"instance_id"`
	State        SchedulerRunState `json:"state"`
	LastCheckIn  time.Time         `json:"last_check_in"`
}

// LockType называет один из двух кластерных мьютексов.
type LockType string

const (
	LockTriggerAccess LockType = "TRIGGER_ACCESS"
	LockStateAccess   LockType = "STATE_ACCESS"
)

// Lock — документ, представляющий именованный распределённый мьютекс.
type Lock struct {
	InstanceName string    `json:"instance_name"`
	LockType     LockType  `json:"lock_type"`
	Owner        string    `json:"owner"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ExpireAt     time.Time `json:"expire_at"`
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FiredTrigger — запись, создаваемая при передаче триггера воркеру;
// удаляется по получении отчёта о завершении. Принадлежит инстансу,
// который её захватил, и используется для восстановления прерванной
// работы после падения.
type FiredTrigger struct {
	InstanceName    string `json:"instance_name"`
	FiredInstanceID string `json:"fired_instance_id"`

	InstanceID string     `json:"instance_id"`
	TriggerKey TriggerKey `json:"trigger_key"`
	JobKey     JobKey     `json:"job_key"`

	FiredAt       time.Time `json:"fired_at"`
	ScheduledTime time.Time `json:"scheduled_time"`

	RequestsRecovery              bool `json:"requests_recovery"`
	ConcurrentExecutionDisallowed bool `json:"concurrent_execution_disallowed"`
}

// FiredInstanceIDPrefix возвращает префикс
// "trigger_name:trigger_group:instance_id", по которому находятся все
// fired-trigger записи, принадлежащие instanceID для данного триггера.
func FiredInstanceIDPrefix(key TriggerKey, instanceID string) string {
	return fmt.Sprintf("%s:%s:%s", key.Name, key.Group, instanceID)
}

// NewFiredInstanceID синтезирует уникальный fired_instance_id вида
// "trigger_name:trigger_group:instance_id:utc_ticks".
func NewFiredInstanceID(key TriggerKey, instanceID string, at time.Time) string {
	return fmt.Sprintf("%s:%d", FiredInstanceIDPrefix(key, instanceID), at.UTC().UnixNano())
}

// NewBootstrapID возвращает случайный id для инстанса без явно заданного
// INSTANCE_ID.
func NewBootstrapID() string {
	return uuid.NewString()
}

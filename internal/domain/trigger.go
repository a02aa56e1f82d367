package domain

import "time"

// TriggerKey идентифицирует триггер по (instance_name, group, name).
type TriggerKey struct {
	InstanceName string `json:"instance_name"`
	Group        string `json:"group"`
	Name         string `json:"name"`
}

func (k TriggerKey) String() string {
	return k.Group + "." + k.Name
}

// DefaultPriority — приоритет по умолчанию: выше срабатывает раньше при
// равенстве next_fire_time.
const DefaultPriority = 5

// Trigger — правило, определяющее, когда сработает конкретный job.
type Trigger struct {
	Key    TriggerKey `json:"key"`
	JobKey JobKey     `json:"job_key"`

	// NextFireTime — следующее время срабатывания в UTC. Nil означает,
	// что у триггера больше нет будущих срабатываний.
	NextFireTime *time.Time `json:"next_fire_time,omitempty"`

	// PreviousFireTime — время последнего фактического срабатывания.
	PreviousFireTime *time.Time `json:"previous_fire_time,omitempty"`

	// Priority — выше значение выигрывает при равных next_fire_time.
	Priority int `json:"priority"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// CalendarName ссылается на Calendar (instance_name, name), либо пусто.
	CalendarName string `json:"calendar_name,omitempty"`

	// MisfireInstruction — политика misfire. MisfireInstructionIgnore (-1)
	// отключает обработку misfire для этого триггера целиком.
	MisfireInstruction int `json:"misfire_instruction"`

	Data  map[string]any `json:"data,omitempty"`
	State TriggerState   `json:"state"`

	// Recurrence — тегированный вариант конкретного правила повторения
	// (Simple/Cron/CalendarInterval/DailyTimeInterval), см. recurrence.go.
	Recurrence Recurrence `json:"recurrence"`
}

// IsMisfireIgnored сообщает, отключена ли misfire-политика для триггера.
func (t *Trigger) IsMisfireIgnored() bool {
	return t.MisfireInstruction == MisfireInstructionIgnore
}

// HasNextFire сообщает, есть ли у триггера ещё будущее срабатывание.
func (t *Trigger) HasNextFire() bool {
	return t.NextFireTime != nil
}

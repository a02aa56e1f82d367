// Package notify фан-аутит события жизненного цикла триггеров
// (fired/misfired/finalized) локальным подписчикам и, опционально,
// ретранслирует их во внешний AMQP-обмен.
package notify

import (
	"sync"
	"time"

	"github.com/shaiso/triggerstore/internal/domain"
)

// EventType различает события, публикуемые шиной.
type EventType string

const (
	EventTriggerFired     EventType = "trigger.fired"
	EventTriggerMisfired  EventType = "trigger.misfired"
	EventTriggerFinalized EventType = "trigger.finalized"
	EventJobCompleted     EventType = "job.completed"
	EventSchedulerPaused  EventType = "scheduler.paused"
	EventSchedulerResumed EventType = "scheduler.resumed"
)

// Event — единица уведомления. TriggerKey/JobKey заполнены по смыслу
// события и могут быть nil.
type Event struct {
	Type         EventType          `json:"type"`
	InstanceName string             `json:"instance_name"`
	TriggerKey   *domain.TriggerKey `json:"trigger_key,omitempty"`
	JobKey       *domain.JobKey     `json:"job_key,omitempty"`
	Detail       string             `json:"detail,omitempty"`
	At           time.Time          `json:"at"`
}

// Listener получает каждое опубликованное событие. *Bus реализует этот
// интерфейс, так что шину можно зарегистрировать как обычного
// подписчика.
type Listener interface {
	Notify(Event)
}

// Listeners — потокобезопасный реестр локальных подписчиков.
type Listeners struct {
	mu   sync.RWMutex
	subs []Listener
}

func NewListeners() *Listeners {
	return &Listeners{}
}

func (l *Listeners) Register(s Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, s)
}

// Publish рассылает событие всем зарегистрированным подписчикам
// синхронно, в порядке регистрации. Подписчик, которому нужна изоляция
// от медленных соседей, должен сам уйти в горутину внутри Notify.
func (l *Listeners) Publish(e Event) {
	l.mu.RLock()
	subs := append([]Listener(nil), l.subs...)
	l.mu.RUnlock()
	for _, s := range subs {
		s.Notify(e)
	}
}

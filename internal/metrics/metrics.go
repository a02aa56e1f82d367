// Package metrics собирает prometheus-коллекторы, которыми отчитываются
// мьютекс, менеджеры хранения и sweeper.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors группирует все коллекторы пакета, чтобы их можно было
// передавать как одну зависимость вместо глобальных переменных.
type Collectors struct {
	LockWaitSeconds      prometheus.Histogram
	LockAcquiredTotal     prometheus.Counter
	LockContendedTotal    prometheus.Counter
	TriggersAcquiredTotal prometheus.Counter
	TriggersFiredTotal    prometheus.Counter
	MisfiresHandledTotal  prometheus.Counter
	SweeperLastRunUnix    prometheus.Gauge
	SweeperErrorsTotal    prometheus.Counter
}

// New регистрирует и возвращает коллекторы в переданном реестре. Передайте
// prometheus.NewRegistry() в тестах, чтобы не делить глобальный реестр.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		LockWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "triggerstore_lock_wait_seconds",
			Help:    "Time spent polling for a TriggerAccess/StateAccess lock before acquiring it.",
			Buckets: prometheus.DefBuckets,
		}),
		LockAcquiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_lock_acquired_total",
			Help: "Number of successful lock acquisitions.",
		}),
		LockContendedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_lock_contended_total",
			Help: "Number of poll attempts that found the lock already held by another owner.",
		}),
		TriggersAcquiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_triggers_acquired_total",
			Help: "Number of triggers moved from Waiting to Acquired.",
		}),
		TriggersFiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_triggers_fired_total",
			Help: "Number of triggers moved from Acquired to Executing.",
		}),
		MisfiresHandledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_misfires_handled_total",
			Help: "Number of triggers whose misfire window was processed by the sweeper.",
		}),
		SweeperLastRunUnix: factory.NewGauge(prometheus.GaugeOpts{
			Name: "triggerstore_sweeper_last_run_unix",
			Help: "Unix timestamp of the sweeper's last completed pass.",
		}),
		SweeperErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triggerstore_sweeper_errors_total",
			Help: "Number of sweeper passes that returned an error.",
		}),
	}
}

// ObserveLockWait фиксирует, сколько ждал захват блокировки.
func (c *Collectors) ObserveLockWait(d time.Duration) {
	if c == nil {
		return
	}
	c.LockWaitSeconds.Observe(d.Seconds())
}

// IncLockAcquired фиксирует один успешный захват блокировки.
func (c *Collectors) IncLockAcquired() {
	if c == nil {
		return
	}
	c.LockAcquiredTotal.Inc()
}

// IncLockContended фиксирует одну попытку опроса, обнаружившую блокировку уже занятой.
func (c *Collectors) IncLockContended() {
	if c == nil {
		return
	}
	c.LockContendedTotal.Inc()
}

// SetSweeperLastRun фиксирует unix-время завершённого прохода sweeper'а.
func (c *Collectors) SetSweeperLastRun(t time.Time) {
	if c == nil {
		return
	}
	c.SweeperLastRunUnix.Set(float64(t.Unix()))
}

// IncSweeperErrors фиксирует один проход sweeper'а, завершившийся ошибкой.
func (c *Collectors) IncSweeperErrors() {
	if c == nil {
		return
	}
	c.SweeperErrorsTotal.Inc()
}

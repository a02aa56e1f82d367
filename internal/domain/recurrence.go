package domain

import (
	"time"

	"github.com/robfig/cron/v3"
)

// RecurrenceKind — тег, определяющий конкретный вариант повторения
// триггера.
type RecurrenceKind string

const (
	RecurrenceSimple           RecurrenceKind = "SIMPLE"
	RecurrenceCron             RecurrenceKind = "CRON"
	RecurrenceCalendarInterval RecurrenceKind = "CALENDAR_INTERVAL"
	RecurrenceDailyTimeInterval RecurrenceKind = "DAILY_TIME_INTERVAL"
)

// IntervalUnit — единица измерения интервала для CalendarInterval и
// DailyTimeInterval.
type IntervalUnit string

const (
	UnitSecond IntervalUnit = "SECOND"
	UnitMinute IntervalUnit = "MINUTE"
	UnitHour   IntervalUnit = "HOUR"
	UnitDay    IntervalUnit = "DAY"
	UnitWeek   IntervalUnit = "WEEK"
	UnitMonth  IntervalUnit = "MONTH"
	UnitYear   IntervalUnit = "YEAR"
)

// Recurrence — тегированный вариант, хранимый вместе с триггером. Заполнено
// только то поле-указатель, что соответствует Kind.
type Recurrence struct {
	Kind RecurrenceKind `json:"kind"`

	Simple           *SimpleRecurrence           `json:"simple,omitempty"`
	Cron             *CronRecurrence             `json:"cron,omitempty"`
	CalendarInterval *CalendarIntervalRecurrence `json:"calendar_interval,omitempty"`
	DailyTimeInterval *DailyTimeIntervalRecurrence `json:"daily_time_interval,omitempty"`
}

// SimpleRecurrence срабатывает каждые RepeatInterval, пока не исчерпан
// RepeatCount (-1 = бесконечно).
type SimpleRecurrence struct {
	RepeatCount    int           `json:"repeat_count"`
	RepeatInterval time.Duration `json:"repeat_interval"`
	TimesTriggered int           `json:"times_triggered"`
}

// CronRecurrence делегирует вычисление следующего времени библиотеке
// robfig/cron/v3.
type CronRecurrence struct {
	Expression string `json:"expression"`
	Timezone   string `json:"timezone"`
}

// CalendarIntervalRecurrence прибавляет фиксированный календарный
// интервал (не обязательно круглое число секунд — месяцы и годы разной
// длины).
type CalendarIntervalRecurrence struct {
	Interval                               int          `json:"interval"`
	Unit                                    IntervalUnit `json:"unit"`
	Timezone                                string       `json:"timezone"`
	PreserveHourOfDayAcrossDaylightSavings  bool         `json:"preserve_hour_of_day_across_daylight_savings"`
}

// DailyTimeIntervalRecurrence срабатывает многократно внутри дневного
// окна времени суток, в заданные дни недели.
type DailyTimeIntervalRecurrence struct {
	Interval        int          `json:"interval"`
	Unit            IntervalUnit `json:"unit"`
	Timezone        string       `json:"timezone"`
	StartTimeOfDay  int          `json:"start_time_of_day"` // seconds since midnight
	EndTimeOfDay    int          `json:"end_time_of_day"`   // seconds since midnight
	DaysOfWeek      uint8        `json:"days_of_week"`       // bit 0 = Sunday .. bit 6 = Saturday
	TimesTriggered  int          `json:"times_triggered"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func loc(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	l, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return l
}

// ComputeFirstFireTimeUTC вычисляет первое срабатывание для только что
// сохранённого триггера с учётом исключений календаря. ok=false, если
// recurrence не может сработать вовсе (например, Simple с уже
// исчерпанным RepeatCount).
func (r *Recurrence) ComputeFirstFireTimeUTC(from time.Time, cal *Calendar) (time.Time, bool) {
	return r.next(from, cal, false)
}

// UpdateAfterMisfire пересчитывает next_fire_time для триггера, который
// пропустил своё окно больше чем на порог misfire.
func (r *Recurrence) UpdateAfterMisfire(from time.Time, cal *Calendar) (time.Time, bool) {
	return r.next(from, cal, true)
}

func (r *Recurrence) next(from time.Time, cal *Calendar, misfire bool) (time.Time, bool) {
	const maxCalendarSkips = 1000

	candidate, ok := r.rawNext(from, misfire)
	if !ok {
		return time.Time{}, false
	}

	for i := 0; i < maxCalendarSkips; i++ {
		if cal.IsTimeIncluded(candidate) {
			return candidate.UTC(), true
		}
		candidate, ok = r.rawNext(candidate, misfire)
		if !ok {
			return time.Time{}, false
		}
	}
	return time.Time{}, false
}

func (r *Recurrence) rawNext(from time.Time, misfire bool) (time.Time, bool) {
	switch r.Kind {
	case RecurrenceSimple:
		return r.Simple.next(from, misfire)
	case RecurrenceCron:
		return r.Cron.next(from)
	case RecurrenceCalendarInterval:
		return r.CalendarInterval.next(from)
	case RecurrenceDailyTimeInterval:
		return r.DailyTimeInterval.next(from)
	default:
		return time.Time{}, false
	}
}

func (s *SimpleRecurrence) next(from time.Time, misfire bool) (time.Time, bool) {
	if s.RepeatCount >= 0 && s.TimesTriggered > s.RepeatCount {
		return time.Time{}, false
	}
	if misfire {
		s.TimesTriggered++
	}
	if s.RepeatInterval <= 0 {
		return time.Time{}, false
	}
	return from.Add(s.RepeatInterval).UTC(), true
}

func (c *CronRecurrence) next(from time.Time) (time.Time, bool) {
	schedule, err := cronParser.Parse(c.Expression)
	if err != nil {
		return time.Time{}, false
	}
	next := schedule.Next(from.In(loc(c.Timezone)))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true
}

func (ci *CalendarIntervalRecurrence) next(from time.Time) (time.Time, bool) {
	if ci.Interval <= 0 {
		return time.Time{}, false
	}
	t := from.In(loc(ci.Timezone))
	hour := t.Hour()

	var next time.Time
	switch ci.Unit {
	case UnitSecond:
		next = t.Add(time.Duration(ci.Interval) * time.Second)
	case UnitMinute:
		next = t.Add(time.Duration(ci.Interval) * time.Minute)
	case UnitHour:
		next = t.Add(time.Duration(ci.Interval) * time.Hour)
	case UnitDay:
		next = t.AddDate(0, 0, ci.Interval)
	case UnitWeek:
		next = t.AddDate(0, 0, ci.Interval*7)
	case UnitMonth:
		next = t.AddDate(0, ci.Interval, 0)
	case UnitYear:
		next = t.AddDate(ci.Interval, 0, 0)
	default:
		return time.Time{}, false
	}

	if ci.PreserveHourOfDayAcrossDaylightSavings && next.Hour() != hour {
		next = time.Date(next.Year(), next.Month(), next.Day(), hour, t.Minute(), t.Second(), 0, next.Location())
	}
	return next.UTC(), true
}

func (d *DailyTimeIntervalRecurrence) next(from time.Time) (time.Time, bool) {
	if d.Interval <= 0 {
		return time.Time{}, false
	}
	t := from.In(loc(d.Timezone))

	var step time.Duration
	switch d.Unit {
	case UnitSecond:
		step = time.Duration(d.Interval) * time.Second
	case UnitMinute:
		step = time.Duration(d.Interval) * time.Minute
	case UnitHour:
		step = time.Duration(d.Interval) * time.Hour
	default:
		return time.Time{}, false
	}

	for i := 0; i < 8*24*3600; i++ {
		candidate := t.Add(step)
		sod := candidate.Hour()*3600 + candidate.Minute()*60 + candidate.Second()
		if sod < d.StartTimeOfDay {
			candidate = dayStart(candidate, d.StartTimeOfDay)
		} else if sod >= d.EndTimeOfDay {
			candidate = dayStart(candidate.AddDate(0, 0, 1), d.StartTimeOfDay)
		}
		if d.dayAllowed(candidate) {
			return candidate.UTC(), true
		}
		t = candidate
	}
	return time.Time{}, false
}

func dayStart(t time.Time, secondsOfDay int) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.Add(time.Duration(secondsOfDay) * time.Second)
}

func (d *DailyTimeIntervalRecurrence) dayAllowed(t time.Time) bool {
	if d.DaysOfWeek == 0 {
		return true
	}
	return d.DaysOfWeek&(1<<uint(t.Weekday())) != 0
}

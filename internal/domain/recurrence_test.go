package domain

import (
	"testing"
	"time"
)

func mustUTC(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestSimpleRecurrence_Next(t *testing.T) {
	r := Recurrence{Kind: RecurrenceSimple, Simple: &SimpleRecurrence{
		RepeatCount:    2,
		RepeatInterval: time.Minute,
	}}
	from := mustUTC("2026-08-03T00:00:00Z")

	next, ok := r.ComputeFirstFireTimeUTC(from, nil)
	if !ok {
		t.Fatal("expected a fire time")
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("got %v, want %v", next, from.Add(time.Minute))
	}
}

func TestSimpleRecurrence_ExhaustedRepeatCount(t *testing.T) {
	r := Recurrence{Kind: RecurrenceSimple, Simple: &SimpleRecurrence{
		RepeatCount:    1,
		RepeatInterval: time.Minute,
		TimesTriggered: 2,
	}}
	if _, ok := r.ComputeFirstFireTimeUTC(mustUTC("2026-08-03T00:00:00Z"), nil); ok {
		t.Fatal("expected recurrence with exhausted RepeatCount to report no next fire time")
	}
}

func TestSimpleRecurrence_InfiniteRepeatNeverExhausts(t *testing.T) {
	r := Recurrence{Kind: RecurrenceSimple, Simple: &SimpleRecurrence{
		RepeatCount:    -1,
		RepeatInterval: time.Minute,
		TimesTriggered: 1000,
	}}
	if _, ok := r.ComputeFirstFireTimeUTC(mustUTC("2026-08-03T00:00:00Z"), nil); !ok {
		t.Fatal("expected RepeatCount=-1 to keep firing regardless of TimesTriggered")
	}
}

func TestCronRecurrence_Next(t *testing.T) {
	r := Recurrence{Kind: RecurrenceCron, Cron: &CronRecurrence{Expression: "0 9 * * *"}}
	from := mustUTC("2026-08-03T00:00:00Z")

	next, ok := r.ComputeFirstFireTimeUTC(from, nil)
	if !ok {
		t.Fatal("expected a fire time")
	}
	want := mustUTC("2026-08-03T09:00:00Z")
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestCronRecurrence_InvalidExpression(t *testing.T) {
	r := Recurrence{Kind: RecurrenceCron, Cron: &CronRecurrence{Expression: "not a cron expression"}}
	if _, ok := r.ComputeFirstFireTimeUTC(mustUTC("2026-08-03T00:00:00Z"), nil); ok {
		t.Fatal("expected invalid cron expression to report no next fire time")
	}
}

func TestCalendarIntervalRecurrence_Next(t *testing.T) {
	r := Recurrence{Kind: RecurrenceCalendarInterval, CalendarInterval: &CalendarIntervalRecurrence{
		Interval: 1,
		Unit:     UnitMonth,
	}}
	from := mustUTC("2026-01-31T12:00:00Z")

	next, ok := r.ComputeFirstFireTimeUTC(from, nil)
	if !ok {
		t.Fatal("expected a fire time")
	}
	// AddDate(0, 1, 0) on Jan 31 rolls into March in a non-leap year.
	if next.Month() != time.March {
		t.Errorf("got month %v, want March (AddDate month-rollover)", next.Month())
	}
}

func TestCalendarIntervalRecurrence_ZeroIntervalRejected(t *testing.T) {
	r := Recurrence{Kind: RecurrenceCalendarInterval, CalendarInterval: &CalendarIntervalRecurrence{
		Interval: 0,
		Unit:     UnitDay,
	}}
	if _, ok := r.ComputeFirstFireTimeUTC(mustUTC("2026-08-03T00:00:00Z"), nil); ok {
		t.Fatal("expected zero interval to report no next fire time")
	}
}

func TestDailyTimeIntervalRecurrence_StaysWithinWindow(t *testing.T) {
	r := Recurrence{Kind: RecurrenceDailyTimeInterval, DailyTimeInterval: &DailyTimeIntervalRecurrence{
		Interval:       30,
		Unit:           UnitMinute,
		StartTimeOfDay: 9 * 3600,
		EndTimeOfDay:   17 * 3600,
	}}
	from := mustUTC("2026-08-03T16:50:00Z")

	next, ok := r.ComputeFirstFireTimeUTC(from, nil)
	if !ok {
		t.Fatal("expected a fire time")
	}
	sod := next.Hour()*3600 + next.Minute()*60 + next.Second()
	if sod < 9*3600 {
		t.Errorf("expected fire time rolled forward to next day's window start, got sod=%d", sod)
	}
}

func TestDailyTimeIntervalRecurrence_RespectsDaysOfWeek(t *testing.T) {
	// Saturday-only (bit 6).
	r := Recurrence{Kind: RecurrenceDailyTimeInterval, DailyTimeInterval: &DailyTimeIntervalRecurrence{
		Interval:       1,
		Unit:           UnitHour,
		StartTimeOfDay: 0,
		EndTimeOfDay:   24 * 3600,
		DaysOfWeek:     1 << 6,
	}}
	from := mustUTC("2026-08-03T00:00:00Z") // a Monday

	next, ok := r.ComputeFirstFireTimeUTC(from, nil)
	if !ok {
		t.Fatal("expected a fire time")
	}
	if next.Weekday() != time.Saturday {
		t.Errorf("got weekday %v, want Saturday", next.Weekday())
	}
}

func TestComputeFirstFireTimeUTC_SkipsExcludedCalendarDates(t *testing.T) {
	r := Recurrence{Kind: RecurrenceSimple, Simple: &SimpleRecurrence{
		RepeatCount:    -1,
		RepeatInterval: 24 * time.Hour,
	}}
	from := mustUTC("2026-08-03T12:00:00Z")
	excluded := mustUTC("2026-08-04T00:00:00Z")
	cal := &Calendar{Kind: CalendarKindHoliday, Holiday: []time.Time{excluded}}

	next, ok := r.ComputeFirstFireTimeUTC(from, cal)
	if !ok {
		t.Fatal("expected a fire time")
	}
	if next.Year() == excluded.Year() && next.Month() == excluded.Month() && next.Day() == excluded.Day() {
		t.Errorf("expected excluded date to be skipped, got %v", next)
	}
}

func TestUpdateAfterMisfire_AdvancesSimpleTimesTriggered(t *testing.T) {
	s := &SimpleRecurrence{RepeatCount: -1, RepeatInterval: time.Minute}
	r := Recurrence{Kind: RecurrenceSimple, Simple: s}

	if _, ok := r.UpdateAfterMisfire(mustUTC("2026-08-03T00:00:00Z"), nil); !ok {
		t.Fatal("expected a fire time")
	}
	if s.TimesTriggered != 1 {
		t.Errorf("UpdateAfterMisfire should increment TimesTriggered, got %d", s.TimesTriggered)
	}
}

func TestUnknownRecurrenceKind_ReportsNoNextFire(t *testing.T) {
	r := Recurrence{Kind: "BOGUS"}
	if _, ok := r.ComputeFirstFireTimeUTC(mustUTC("2026-08-03T00:00:00Z"), nil); ok {
		t.Fatal("expected unknown recurrence kind to report no next fire time")
	}
}

package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func day(month, d int) time.Time {
	return time.Date(2026, time.Month(month), d, 12, 0, 0, 0, time.Local)
}

func newTestCalendar(holidays ...HolidayConfig) (*Calendar, *stubStore) {
	store := newStubStore()
	store.holidays = holidays
	return NewCalendar(store, nil), store
}

func TestSundaysAlwaysExcluded(t *testing.T) {
	cal, _ := newTestCalendar()

	// 2026-03-01 and 2026-03-08 are Sundays.
	if !cal.IsHoliday(context.Background(), day(3, 1)) {
		t.Error("Sunday should be excluded")
	}
	if !cal.IsHoliday(context.Background(), day(3, 8)) {
		t.Error("Sunday should be excluded")
	}
	if cal.IsHoliday(context.Background(), day(3, 2)) {
		t.Error("plain Monday should not be excluded")
	}
}

func TestFixedHolidayRangeExpansion(t *testing.T) {
	// Tuesday 2026-03-10 with range 1 claims Mon 9 .. Wed 11.
	cal, _ := newTestCalendar(HolidayConfig{Name: "festival", Month: 3, Day: 10, Range: 1})

	for _, d := range []int{9, 10, 11} {
		if !cal.IsHoliday(context.Background(), day(3, d)) {
			t.Errorf("March %d should be excluded", d)
		}
	}
	if cal.IsHoliday(context.Background(), day(3, 12)) {
		t.Error("March 12 should not be excluded")
	}
}

func TestSundayCollisionPushesEndForward(t *testing.T) {
	// Saturday 2026-03-07 with range 1 spans Fri 6 .. Sun 8. Sunday 8
	// is skipped and the span extends to Monday 9.
	cal, _ := newTestCalendar(HolidayConfig{Name: "festival", Month: 3, Day: 7, Range: 1})

	for _, d := range []int{6, 7, 9} {
		if !cal.IsHoliday(context.Background(), day(3, d)) {
			t.Errorf("March %d should be excluded", d)
		}
	}
	if cal.IsHoliday(context.Background(), day(3, 10)) {
		t.Error("March 10 should not be excluded")
	}
}

func TestOverlappingHolidaysExtendInsteadOfMerging(t *testing.T) {
	// The second holiday's span collides with days the first already
	// claimed; each collision pushes its end a day forward, so the
	// pair excludes six weekdays instead of four.
	cal, _ := newTestCalendar(
		HolidayConfig{Name: "first", Month: 3, Day: 10, Range: 1},
		HolidayConfig{Name: "second", Month: 3, Day: 11, Range: 1},
	)

	for _, d := range []int{9, 10, 11, 12, 13, 14} {
		if !cal.IsHoliday(context.Background(), day(3, d)) {
			t.Errorf("March %d should be excluded", d)
		}
	}
	// Monday 16 follows Sunday 15; the extension stops before it.
	if cal.IsHoliday(context.Background(), day(3, 16)) {
		t.Error("March 16 should not be excluded")
	}
}

func TestLunarHolidayConversion(t *testing.T) {
	// Lunar new year's day falls on solar 2026-02-17.
	cal, _ := newTestCalendar(HolidayConfig{Name: "new year", Month: 1, Day: 1, Lunar: true})

	if !cal.IsHoliday(context.Background(), day(2, 17)) {
		t.Error("solar date of lunar holiday should be excluded")
	}
	if cal.IsHoliday(context.Background(), day(1, 1)) {
		t.Error("raw lunar month/day must not be excluded as a solar date")
	}
}

func TestCalendarCachesPerYear(t *testing.T) {
	cal, store := newTestCalendar(HolidayConfig{Name: "festival", Month: 3, Day: 10})

	cal.IsHoliday(context.Background(), day(3, 10))
	cal.IsHoliday(context.Background(), day(6, 2))
	cal.IsHoliday(context.Background(), day(11, 3))

	store.mu.Lock()
	calls := store.holidayCalls
	store.mu.Unlock()
	if calls != 1 {
		t.Errorf("holiday config loaded %d times, want 1", calls)
	}
}

func TestCalendarLoadFailureKeepsSundayRule(t *testing.T) {
	cal, store := newTestCalendar()
	store.holidayErr = errors.New("db is down")

	if cal.IsHoliday(context.Background(), day(3, 2)) {
		t.Error("load failure should leave weekdays unexcluded")
	}
	if !cal.IsHoliday(context.Background(), day(3, 1)) {
		t.Error("Sunday rule should survive a load failure")
	}
}

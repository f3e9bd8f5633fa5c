package schedule

import (
	"context"
	"time"
)

// RecurrenceType selects how often a schedule fires.
type RecurrenceType string

const (
	// RecurrenceOnce fires exactly once at ActionTime, then the
	// schedule is disabled.
	RecurrenceOnce RecurrenceType = "ONCE"

	// RecurrenceWeekly fires at ActionTime's hour:minute on every
	// weekday in RecurrenceDays, until disabled.
	RecurrenceWeekly RecurrenceType = "WEEKLY"
)

// Action categories.
const (
	CategorySwitch = "switch"
	CategoryRemote = "remote"
)

// Schedule is a stored time-based action.
type Schedule struct {
	ID       int64  `json:"id"`
	Enabled  bool   `json:"enabled"`
	Category string `json:"category"`

	// Args carries category-specific fields. Every category requires
	// deviceId; switch additionally requires channel and state.
	Args map[string]any `json:"args"`

	ActionTime     time.Time      `json:"actionTime"`
	ExcludeHoliday bool           `json:"excludeHoliday"`
	RecurrenceType RecurrenceType `json:"recurrenceType"`

	// RecurrenceDays are weekday numbers, 0=Sunday. Required
	// non-empty for WEEKLY, ignored for ONCE.
	RecurrenceDays []int `json:"recurrenceDays"`
}

// HolidayConfig is one configured holiday. Month and Day are the
// calendar date, or the lunar date when Lunar is set. Range expands
// the holiday into an inclusive span of days either side.
type HolidayConfig struct {
	Name  string
	Month int
	Day   int
	Lunar bool
	Range int
}

// Store persists schedules and holiday configuration.
type Store interface {
	ListSchedules(ctx context.Context) ([]Schedule, error)
	CreateSchedule(ctx context.Context, s Schedule) (int64, error)
	UpdateScheduleEnabled(ctx context.Context, id int64, enabled bool) error
	ListHolidays(ctx context.Context) ([]HolidayConfig, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

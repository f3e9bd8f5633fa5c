package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteStore persists schedules and holiday configuration in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ListSchedules loads every stored schedule.
func (s *SQLiteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enabled, category, args, action_time,
		       exclude_holiday, recurrence_type, recurrence_days
		FROM schedules
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("schedule: querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var (
			sched      Schedule
			args       string
			actionTime string
			days       string
		)
		if err := rows.Scan(&sched.ID, &sched.Enabled, &sched.Category, &args,
			&actionTime, &sched.ExcludeHoliday, &sched.RecurrenceType, &days); err != nil {
			return nil, fmt.Errorf("schedule: scanning schedule: %w", err)
		}

		if err := json.Unmarshal([]byte(args), &sched.Args); err != nil {
			return nil, fmt.Errorf("schedule: decoding args for schedule %d: %w", sched.ID, err)
		}
		if err := json.Unmarshal([]byte(days), &sched.RecurrenceDays); err != nil {
			return nil, fmt.Errorf("schedule: decoding recurrence days for schedule %d: %w", sched.ID, err)
		}
		if sched.ActionTime, err = time.Parse(time.RFC3339, actionTime); err != nil {
			return nil, fmt.Errorf("schedule: decoding action time for schedule %d: %w", sched.ID, err)
		}

		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// CreateSchedule inserts a schedule and returns the assigned id.
func (s *SQLiteStore) CreateSchedule(ctx context.Context, sched Schedule) (int64, error) {
	args, err := json.Marshal(sched.Args)
	if err != nil {
		return 0, fmt.Errorf("schedule: encoding args: %w", err)
	}
	days, err := json.Marshal(sched.RecurrenceDays)
	if err != nil {
		return 0, fmt.Errorf("schedule: encoding recurrence days: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (enabled, category, args, action_time,
		                       exclude_holiday, recurrence_type, recurrence_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.Enabled, sched.Category, string(args),
		sched.ActionTime.Format(time.RFC3339),
		sched.ExcludeHoliday, string(sched.RecurrenceType), string(days))
	if err != nil {
		return 0, fmt.Errorf("schedule: inserting schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("schedule: reading schedule id: %w", err)
	}
	return id, nil
}

// UpdateScheduleEnabled flips the enabled flag.
func (s *SQLiteStore) UpdateScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("schedule: updating schedule %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
	}
	return nil
}

// ListHolidays loads the configured holidays.
func (s *SQLiteStore) ListHolidays(ctx context.Context) ([]HolidayConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, month, day, lunar, day_range
		FROM holidays
		ORDER BY month, day`)
	if err != nil {
		return nil, fmt.Errorf("schedule: querying holidays: %w", err)
	}
	defer rows.Close()

	var holidays []HolidayConfig
	for rows.Next() {
		var h HolidayConfig
		if err := rows.Scan(&h.Name, &h.Month, &h.Day, &h.Lunar, &h.Range); err != nil {
			return nil, fmt.Errorf("schedule: scanning holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

package schedule

import "errors"

var (
	// ErrInvalidSchedule indicates a schedule failed validation. The
	// wrapping error names the violated field.
	ErrInvalidSchedule = errors.New("schedule: invalid schedule")

	// ErrScheduleNotFound indicates no schedule exists with the given id.
	ErrScheduleNotFound = errors.New("schedule: schedule not found")

	// ErrDispatchFailed indicates a scheduled action could not be
	// delivered to its target device.
	ErrDispatchFailed = errors.New("schedule: dispatch failed")
)

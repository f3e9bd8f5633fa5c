package schedule

import (
	"fmt"
	"sort"
)

// validate checks a schedule and normalizes RecurrenceDays in place
// (de-duplicated, sorted). The returned error names the violated
// field.
func validate(s *Schedule) error {
	if s.ID < 1 {
		return fmt.Errorf("%w: id must be a positive integer", ErrInvalidSchedule)
	}

	if s.Args == nil {
		return fmt.Errorf("%w: args must be an object", ErrInvalidSchedule)
	}
	if id, ok := s.Args["deviceId"].(string); !ok || id == "" {
		return fmt.Errorf("%w: args must contain deviceId", ErrInvalidSchedule)
	}

	if s.ActionTime.IsZero() {
		return fmt.Errorf("%w: actionTime must be a valid instant", ErrInvalidSchedule)
	}

	switch s.Category {
	case CategorySwitch, CategoryRemote:
	default:
		return fmt.Errorf("%w: category must be one of (switch, remote)", ErrInvalidSchedule)
	}

	switch s.RecurrenceType {
	case RecurrenceOnce, RecurrenceWeekly:
	default:
		return fmt.Errorf("%w: recurrenceType must be one of (ONCE, WEEKLY)", ErrInvalidSchedule)
	}

	seen := make(map[int]struct{}, len(s.RecurrenceDays))
	days := make([]int, 0, len(s.RecurrenceDays))
	for _, day := range s.RecurrenceDays {
		if day < 0 || day > 6 {
			return fmt.Errorf("%w: recurrenceDays must contain integers in 0..6", ErrInvalidSchedule)
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Ints(days)
	s.RecurrenceDays = days

	if s.RecurrenceType == RecurrenceWeekly && len(s.RecurrenceDays) == 0 {
		return fmt.Errorf("%w: recurrenceDays must be non-empty for WEEKLY", ErrInvalidSchedule)
	}

	return nil
}

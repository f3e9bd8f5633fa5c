package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	lunar "github.com/6tail/lunar-go/calendar"
	"golang.org/x/sync/singleflight"
)

// Calendar is a per-year cache of excluded calendar days. A day is
// excluded when it falls inside a configured holiday's expanded range
// or is a Sunday.
//
// Range expansion walks each holiday's ±Range span day by day. A
// candidate day that is a Sunday or already claimed by an earlier
// holiday pushes the span's end date forward by one day instead of
// being claimed, so each holiday keeps its full excluded-day count by
// extension rather than overlap.
type Calendar struct {
	store  Store
	logger Logger

	mu   sync.RWMutex
	year int
	days [12]map[int]struct{}

	group singleflight.Group
}

// NewCalendar creates an empty calendar. The first IsHoliday call
// builds it for the current year.
func NewCalendar(store Store, logger Logger) *Calendar {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Calendar{
		store:  store,
		logger: logger,
	}
}

// IsHoliday reports whether date is an excluded day. Sundays are
// always excluded. The cache rebuilds lazily when the year rolls
// over; a rebuild failure keeps the previous cache and still applies
// the Sunday rule.
func (c *Calendar) IsHoliday(ctx context.Context, date time.Time) bool {
	if date.Weekday() == time.Sunday {
		return true
	}

	c.ensureYear(ctx, date.Year())

	c.mu.RLock()
	defer c.mu.RUnlock()

	claimed := c.days[date.Month()-1]
	if claimed == nil {
		return false
	}
	_, ok := claimed[date.Day()]
	return ok
}

// ensureYear rebuilds the cache when it does not cover year.
// Concurrent callers for the same year share one rebuild.
func (c *Calendar) ensureYear(ctx context.Context, year int) {
	c.mu.RLock()
	current := c.year
	c.mu.RUnlock()
	if current == year {
		return
	}

	c.group.Do("rebuild", func() (any, error) { //nolint:errcheck // Result unused
		c.rebuild(ctx, year)
		return nil, nil
	})
}

func (c *Calendar) rebuild(ctx context.Context, year int) {
	c.mu.RLock()
	current := c.year
	c.mu.RUnlock()
	if current == year {
		return
	}

	configs, err := c.store.ListHolidays(ctx)
	if err != nil {
		c.logger.Error("holiday config load failed", "error", err)
		return
	}

	type resolved struct {
		month, day, span int
	}

	holidays := make([]resolved, 0, len(configs))
	for _, cfg := range configs {
		month, day := cfg.Month, cfg.Day
		if cfg.Lunar {
			solar := lunar.NewLunarFromYmd(year, cfg.Month, cfg.Day).GetSolar()
			// A lunar date near year's end can land in the next solar
			// year; those belong to that year's calendar, not this one.
			if solar.GetYear() != year {
				continue
			}
			month, day = solar.GetMonth(), solar.GetDay()
		}
		holidays = append(holidays, resolved{month: month, day: day, span: cfg.Range})
	}

	sort.Slice(holidays, func(i, j int) bool {
		if holidays[i].month != holidays[j].month {
			return holidays[i].month < holidays[j].month
		}
		return holidays[i].day < holidays[j].day
	})

	var days [12]map[int]struct{}
	for i := range days {
		days[i] = make(map[int]struct{})
	}

	for _, h := range holidays {
		cursor := time.Date(year, time.Month(h.month), h.day-h.span, 0, 0, 0, 0, time.Local)
		end := time.Date(year, time.Month(h.month), h.day+h.span, 0, 0, 0, 0, time.Local)

		for !cursor.After(end) {
			month, day := int(cursor.Month()), cursor.Day()
			if _, taken := days[month-1][day]; cursor.Weekday() == time.Sunday || taken {
				end = end.AddDate(0, 0, 1)
			} else {
				days[month-1][day] = struct{}{}
			}
			cursor = cursor.AddDate(0, 0, 1)
		}
	}

	c.mu.Lock()
	c.year = year
	c.days = days
	c.mu.Unlock()

	c.logger.Debug("holiday calendar rebuilt", "year", year, "holidays", len(holidays))
}

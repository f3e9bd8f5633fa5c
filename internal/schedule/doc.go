// Package schedule runs time-based actions against the device
// registry.
//
// A Schedule is either ONCE (fires at its action time, then disables
// itself) or WEEKLY (fires at hour:minute on a set of weekdays until
// disabled). Schedules marked excludeHoliday skip firings that land
// on a Sunday or on a day the holiday calendar claims.
//
// The holiday calendar is built per year from configured fixed or
// lunar dates, each expanded by a symmetric day range. Expansion
// walks day by day; Sundays and days already claimed by an earlier
// holiday push the range's end forward instead of being claimed, so
// adjacent holidays extend rather than overlap.
//
// Dispatch errors never stop the scheduler. A failing ONCE schedule
// is disabled so it cannot retry; a failing WEEKLY schedule just logs
// and waits for its next slot.
package schedule

package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/botlink-core/internal/device"
)

// persistTimeout bounds persistence writes issued from job goroutines.
const persistTimeout = 5 * time.Second

// job is a live timer for an enabled schedule. Cancelling suppresses
// future firings only; an in-flight execution is not interrupted.
type job struct {
	cancel context.CancelFunc
}

// Scheduler holds schedule records and fires their actions against
// the device registry at the computed times.
//
// One goroutine per live job. All mutation of the schedule and job
// tables goes through the scheduler mutex; executions run outside it.
type Scheduler struct {
	store    Store
	registry *device.Registry
	calendar *Calendar
	logger   Logger
	now      func() time.Time

	mu        sync.Mutex
	schedules map[int64]*Schedule
	jobs      map[int64]*job
}

// NewScheduler creates a scheduler. Call Init to load persisted
// schedules and start jobs for the enabled ones.
func NewScheduler(store Store, registry *device.Registry, calendar *Calendar, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		store:     store,
		registry:  registry,
		calendar:  calendar,
		logger:    logger,
		now:       time.Now,
		schedules: make(map[int64]*Schedule),
		jobs:      make(map[int64]*job),
	}
}

// Init loads all persisted schedules, keeping the valid ones and
// starting jobs for those enabled. An invalid schedule is logged and
// skipped; it never aborts loading of the others.
func (s *Scheduler) Init(ctx context.Context) error {
	records, err := s.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("schedule: loading schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		rec := records[i]
		if err := validate(&rec); err != nil {
			s.logger.Error("skipping invalid schedule", "id", rec.ID, "error", err)
			continue
		}
		s.schedules[rec.ID] = &rec
	}

	for _, sched := range s.schedules {
		if sched.Enabled && !s.registerJobLocked(sched) {
			go s.persistDisabled(sched.ID)
		}
	}

	s.logger.Info("scheduler initialized", "schedules", len(s.schedules), "jobs", len(s.jobs))
	return nil
}

// Add validates and persists a new schedule. The persistence-assigned
// id replaces whatever id the caller supplied. A job starts
// immediately when the schedule is enabled.
func (s *Scheduler) Add(ctx context.Context, sched Schedule) (Schedule, error) {
	if err := validate(&sched); err != nil {
		return Schedule{}, err
	}

	id, err := s.store.CreateSchedule(ctx, sched)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule: persisting schedule: %w", err)
	}
	sched.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules[id] = &sched
	if sched.Enabled && !s.registerJobLocked(&sched) {
		go s.persistDisabled(id)
	}

	s.logger.Info("schedule added", "id", id, "category", sched.Category, "recurrence", sched.RecurrenceType)
	return sched, nil
}

// All returns every known schedule, sorted by id.
func (s *Scheduler) All() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one schedule by id.
func (s *Scheduler) Get(id int64) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
	}
	return *sched, nil
}

// Enable turns a schedule on, registers its job and persists the
// flag. Enabling an already enabled schedule is a no-op.
func (s *Scheduler) Enable(ctx context.Context, id int64) error {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
	}
	if sched.Enabled {
		s.mu.Unlock()
		return nil
	}
	sched.Enabled = true
	started := s.registerJobLocked(sched)
	s.mu.Unlock()

	// The past-ONCE path reverts the flag in memory; persist that
	// instead of the enable so the store cannot drift.
	if !started {
		if err := s.store.UpdateScheduleEnabled(ctx, id, false); err != nil {
			return fmt.Errorf("schedule: persisting disable: %w", err)
		}
		return nil
	}

	if err := s.store.UpdateScheduleEnabled(ctx, id, true); err != nil {
		return fmt.Errorf("schedule: persisting enable: %w", err)
	}
	return nil
}

// Disable turns a schedule off, cancels its job and persists the
// flag. Disabling an already disabled schedule is a no-op.
func (s *Scheduler) Disable(ctx context.Context, id int64) error {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrScheduleNotFound, id)
	}
	if !sched.Enabled {
		s.mu.Unlock()
		return nil
	}
	sched.Enabled = false
	s.cancelJobLocked(id)
	s.mu.Unlock()

	if err := s.store.UpdateScheduleEnabled(ctx, id, false); err != nil {
		return fmt.Errorf("schedule: persisting disable: %w", err)
	}
	return nil
}

// Close cancels every live job. Schedules stay in memory; in-flight
// executions finish on their own.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.jobs {
		s.cancelJobLocked(id)
	}
}

// registerJobLocked starts a job for a schedule, reporting whether one
// is live afterwards. Idempotent per id: a schedule already holding a
// live job is left alone. A ONCE schedule whose time has already
// passed gets no job; it is flipped back to disabled here and the
// caller owns persisting that flag. Caller holds the mutex.
func (s *Scheduler) registerJobLocked(sched *Schedule) bool {
	if _, live := s.jobs[sched.ID]; live {
		return true
	}

	if sched.RecurrenceType == RecurrenceOnce && !sched.ActionTime.After(s.now()) {
		s.logger.Warn("once schedule already past, disabling", "id", sched.ID, "actionTime", sched.ActionTime)
		sched.Enabled = false
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.jobs[sched.ID] = &job{cancel: cancel}

	snapshot := *sched
	switch sched.RecurrenceType {
	case RecurrenceOnce:
		go s.runOnce(ctx, snapshot)
	case RecurrenceWeekly:
		go s.runWeekly(ctx, snapshot)
	}
	return true
}

// cancelJobLocked stops a job if one is live. Caller holds the mutex.
func (s *Scheduler) cancelJobLocked(id int64) {
	if j, ok := s.jobs[id]; ok {
		j.cancel()
		delete(s.jobs, id)
	}
}

// runOnce waits for the single firing, executes, then disables the
// schedule. A dispatch error still disables it, so a broken ONCE
// schedule cannot retry.
func (s *Scheduler) runOnce(ctx context.Context, sched Schedule) {
	timer := time.NewTimer(sched.ActionTime.Sub(s.now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := s.execute(ctx, sched); err != nil {
		s.logger.Error("schedule execution failed", "id", sched.ID, "error", err)
	}

	s.mu.Lock()
	if stored, ok := s.schedules[sched.ID]; ok {
		stored.Enabled = false
	}
	s.cancelJobLocked(sched.ID)
	s.mu.Unlock()

	s.persistDisabled(sched.ID)
}

// runWeekly fires at the schedule's hour:minute on each recurrence
// day until cancelled. Dispatch errors are logged; the job keeps
// running.
func (s *Scheduler) runWeekly(ctx context.Context, sched Schedule) {
	hour, minute := sched.ActionTime.Hour(), sched.ActionTime.Minute()

	for {
		next := nextWeekly(s.now(), sched.RecurrenceDays, hour, minute)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.execute(ctx, sched); err != nil {
			s.logger.Error("schedule execution failed", "id", sched.ID, "error", err)
		}
	}
}

// nextWeekly returns the first instant strictly after from that falls
// on one of the weekdays (0=Sunday) at hour:minute local time.
func nextWeekly(from time.Time, days []int, hour, minute int) time.Time {
	allowed := make(map[time.Weekday]struct{}, len(days))
	for _, d := range days {
		allowed[time.Weekday(d)] = struct{}{}
	}

	for offset := 0; offset <= 7; offset++ {
		day := from.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, from.Location())
		if !candidate.After(from) {
			continue
		}
		if _, ok := allowed[candidate.Weekday()]; ok {
			return candidate
		}
	}

	// Unreachable with a validated non-empty day set.
	return from.AddDate(0, 0, 7)
}

// execute runs one firing. Holiday exclusion skips silently; dispatch
// problems come back as ErrDispatchFailed.
func (s *Scheduler) execute(ctx context.Context, sched Schedule) error {
	if sched.ExcludeHoliday && s.calendar.IsHoliday(ctx, s.now()) {
		s.logger.Debug("schedule skipped for holiday", "id", sched.ID)
		return nil
	}

	switch sched.Category {
	case CategorySwitch:
		return s.dispatchSwitch(sched)
	case CategoryRemote:
		return s.dispatchRemote(sched)
	default:
		return fmt.Errorf("%w: unknown category %q", ErrDispatchFailed, sched.Category)
	}
}

// dispatchSwitch sets one SwitchBot channel.
func (s *Scheduler) dispatchSwitch(sched Schedule) error {
	deviceID, _ := sched.Args["deviceId"].(string)
	channel, channelOK := argInt(sched.Args["channel"])
	state, stateOK := sched.Args["state"].(bool)

	if !device.IsValidDeviceID(deviceID) || !channelOK || !stateOK {
		return fmt.Errorf("%w: switch action needs deviceId, channel and state", ErrDispatchFailed)
	}

	d, err := s.registry.Get(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	sb, ok := d.(*device.SwitchBot)
	if !ok {
		return fmt.Errorf("%w: device %s is not a switchbot", ErrDispatchFailed, deviceID)
	}

	if err := sb.SetState(channel, state); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	s.logger.Info("schedule fired", "id", sched.ID, "device", deviceID, "channel", channel, "state", state)
	return nil
}

// dispatchRemote resolves the target RemoteBot. Command payload
// construction is not wired up yet; the lookup validates the target
// so a broken schedule surfaces in the logs.
func (s *Scheduler) dispatchRemote(sched Schedule) error {
	deviceID, _ := sched.Args["deviceId"].(string)

	d, err := s.registry.Get(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	if _, ok := d.(*device.RemoteBot); !ok {
		return fmt.Errorf("%w: device %s is not a remotebot", ErrDispatchFailed, deviceID)
	}

	s.logger.Info("schedule fired", "id", sched.ID, "device", deviceID, "category", CategoryRemote)
	return nil
}

// persistDisabled writes the disabled flag from a job goroutine.
func (s *Scheduler) persistDisabled(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.store.UpdateScheduleEnabled(ctx, id, false); err != nil {
		s.logger.Error("persisting schedule disable failed", "id", id, "error", err)
	}
}

// argInt reads an integer argument that may arrive as a JSON number.
func argInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

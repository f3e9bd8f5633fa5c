package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/botlink-core/internal/device"
	"github.com/nerrad567/botlink-core/internal/protocol"
)

// ============================================================================
// Test fixtures
// ============================================================================

type stubStore struct {
	mu           sync.Mutex
	schedules    []Schedule
	holidays     []HolidayConfig
	holidayCalls int
	holidayErr   error
	nextID       int64
	enabled      map[int64]bool
}

func newStubStore() *stubStore {
	return &stubStore{nextID: 100, enabled: make(map[int64]bool)}
}

func (s *stubStore) ListSchedules(context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Schedule(nil), s.schedules...), nil
}

func (s *stubStore) CreateSchedule(_ context.Context, _ Schedule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *stubStore) UpdateScheduleEnabled(_ context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[id] = enabled
	return nil
}

func (s *stubStore) ListHolidays(context.Context) ([]HolidayConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidayCalls++
	return append([]HolidayConfig(nil), s.holidays...), s.holidayErr
}

func (s *stubStore) enabledFlag(id int64) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.enabled[id]
	return v, ok
}

type fakeConn struct {
	mu   sync.Mutex
	sent [][]byte
	open bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// newTestScheduler wires a scheduler around an empty registry with a
// fixed clock.
func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *device.Registry, *stubStore) {
	t.Helper()

	store := newStubStore()
	registry := device.NewRegistry()
	calendar := NewCalendar(store, nil)

	s := NewScheduler(store, registry, calendar, nil)
	s.now = func() time.Time { return now }
	t.Cleanup(s.Close)

	return s, registry, store
}

func addSwitchBot(t *testing.T, registry *device.Registry, id string) *device.SwitchBot {
	t.Helper()

	factory := device.NewFactory(registry, device.Env{})
	sb := device.NewSwitchBot(id, "", nil, nil, factory.Env())
	if err := registry.Add(sb); err != nil {
		t.Fatalf("add switchbot: %v", err)
	}
	return sb
}

// protocolHandshake is a minimal SwitchBot handshake whose channel
// state matches a fresh device, so binding pushes no sync frames.
func protocolHandshake() protocol.Handshake {
	return protocol.Handshake{ModelID: protocol.ModelSwitchBot, DeviceID: "ABCDE_1234"}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// monday is a fixed reference instant: Monday 2026-03-02 08:00 local.
func monday() time.Time {
	return time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)
}

func validSchedule() Schedule {
	return Schedule{
		ID:             1,
		Enabled:        true,
		Category:       CategorySwitch,
		Args:           map[string]any{"deviceId": "ABCDE_1234", "channel": float64(0), "state": true},
		ActionTime:     monday().Add(time.Hour),
		RecurrenceType: RecurrenceOnce,
		RecurrenceDays: []int{},
	}
}

// ============================================================================
// Validation
// ============================================================================

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schedule)
		wantErr string
	}{
		{"valid", func(*Schedule) {}, ""},
		{"zero id", func(s *Schedule) { s.ID = 0 }, "id"},
		{"negative id", func(s *Schedule) { s.ID = -3 }, "id"},
		{"nil args", func(s *Schedule) { s.Args = nil }, "args"},
		{"missing deviceId", func(s *Schedule) { delete(s.Args, "deviceId") }, "deviceId"},
		{"zero actionTime", func(s *Schedule) { s.ActionTime = time.Time{} }, "actionTime"},
		{"bad category", func(s *Schedule) { s.Category = "climate" }, "category"},
		{"bad recurrenceType", func(s *Schedule) { s.RecurrenceType = "DAILY" }, "recurrenceType"},
		{"day out of range", func(s *Schedule) { s.RecurrenceDays = []int{7} }, "recurrenceDays"},
		{"negative day", func(s *Schedule) { s.RecurrenceDays = []int{-1} }, "recurrenceDays"},
		{"weekly without days", func(s *Schedule) {
			s.RecurrenceType = RecurrenceWeekly
			s.RecurrenceDays = nil
		}, "recurrenceDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(&s)

			err := validate(&s)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("validate() = %v, want ErrInvalidSchedule", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should name field %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDeduplicatesRecurrenceDays(t *testing.T) {
	s := validSchedule()
	s.RecurrenceType = RecurrenceWeekly
	s.RecurrenceDays = []int{3, 1, 3, 1, 5}

	if err := validate(&s); err != nil {
		t.Fatalf("validate() = %v", err)
	}
	want := []int{1, 3, 5}
	if len(s.RecurrenceDays) != len(want) {
		t.Fatalf("recurrenceDays = %v, want %v", s.RecurrenceDays, want)
	}
	for i, d := range want {
		if s.RecurrenceDays[i] != d {
			t.Errorf("recurrenceDays = %v, want %v", s.RecurrenceDays, want)
			break
		}
	}
}

// ============================================================================
// Weekly slot computation
// ============================================================================

func TestNextWeekly(t *testing.T) {
	tests := []struct {
		name         string
		from         time.Time
		days         []int
		hour, minute int
		want         time.Time
	}{
		{
			name: "later today",
			from: monday(), days: []int{1, 3}, hour: 9, minute: 0,
			want: time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local),
		},
		{
			name: "today's slot already past",
			from: monday().Add(2 * time.Hour), days: []int{1, 3}, hour: 9, minute: 0,
			want: time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local),
		},
		{
			name: "exactly at the slot skips to next",
			from: time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local), days: []int{1, 3}, hour: 9, minute: 0,
			want: time.Date(2026, 3, 9, 9, 0, 0, 0, time.Local),
		},
		{
			name: "sunday schedule",
			from: monday(), days: []int{0}, hour: 7, minute: 30,
			want: time.Date(2026, 3, 8, 7, 30, 0, 0, time.Local),
		},
		{
			name: "single day wraps a full week",
			from: time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), days: []int{1}, hour: 9, minute: 0,
			want: time.Date(2026, 3, 9, 9, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextWeekly(tt.from, tt.days, tt.hour, tt.minute)
			if !got.Equal(tt.want) {
				t.Errorf("nextWeekly() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Job lifecycle
// ============================================================================

func TestOnceScheduleFiresAndDisables(t *testing.T) {
	s, registry, store := newTestScheduler(t, time.Now())
	s.now = time.Now

	sb := addSwitchBot(t, registry, "ABCDE_1234")
	conn := &fakeConn{open: true}
	sb.Bind(conn, protocolHandshake())

	sched := validSchedule()
	sched.ActionTime = time.Now().Add(30 * time.Millisecond)

	added, err := s.Add(context.Background(), sched)
	if err != nil {
		t.Fatalf("Add() = %v", err)
	}

	// The firing turns channel 0 on and pushes the command frame.
	waitFor(t, func() bool {
		snap := sb.Snapshot()
		return len(snap.Switch) == 2 && snap.Switch[0]
	})
	waitFor(t, func() bool {
		v, ok := store.enabledFlag(added.ID)
		return ok && !v
	})
	waitFor(t, func() bool {
		got, err := s.Get(added.ID)
		return err == nil && !got.Enabled
	})
}

func TestOnceSchedulePastTimeDisablesWithoutFiring(t *testing.T) {
	s, registry, store := newTestScheduler(t, monday())

	sb := addSwitchBot(t, registry, "ABCDE_1234")
	conn := &fakeConn{open: true}
	sb.Bind(conn, protocolHandshake())
	baseline := conn.sentCount()

	sched := validSchedule()
	sched.ActionTime = monday().Add(-time.Hour)

	added, err := s.Add(context.Background(), sched)
	if err != nil {
		t.Fatalf("Add() = %v", err)
	}

	waitFor(t, func() bool {
		v, ok := store.enabledFlag(added.ID)
		return ok && !v
	})
	if conn.sentCount() != baseline {
		t.Error("past ONCE schedule must not dispatch")
	}

	s.mu.Lock()
	_, live := s.jobs[added.ID]
	s.mu.Unlock()
	if live {
		t.Error("past ONCE schedule must not hold a job")
	}
}

func TestEnablePastOnceScheduleStaysDisabled(t *testing.T) {
	s, _, store := newTestScheduler(t, monday())

	sched := validSchedule()
	sched.Enabled = false
	sched.ActionTime = monday().Add(-time.Hour)

	added, err := s.Add(context.Background(), sched)
	if err != nil {
		t.Fatalf("Add() = %v", err)
	}

	if err := s.Enable(context.Background(), added.ID); err != nil {
		t.Fatalf("Enable() = %v", err)
	}

	got, err := s.Get(added.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Enabled {
		t.Error("past ONCE schedule must stay disabled in memory")
	}
	// Enable must persist disabled itself, never the enable: the two
	// writes racing is how the store drifts from memory.
	if v, ok := store.enabledFlag(added.ID); !ok || v {
		t.Errorf("store enabled flag = %v, %v; want false, true", v, ok)
	}

	s.mu.Lock()
	_, live := s.jobs[added.ID]
	s.mu.Unlock()
	if live {
		t.Error("past ONCE schedule must not hold a job")
	}
}

func TestRegisterJobIdempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t, monday())

	sched := validSchedule()
	sched.RecurrenceType = RecurrenceWeekly
	sched.RecurrenceDays = []int{1}

	s.mu.Lock()
	s.schedules[sched.ID] = &sched
	s.registerJobLocked(&sched)
	s.registerJobLocked(&sched)
	jobs := len(s.jobs)
	s.mu.Unlock()

	if jobs != 1 {
		t.Errorf("jobs = %d, want 1", jobs)
	}
}

func TestEnableDisableRoundTrip(t *testing.T) {
	s, _, store := newTestScheduler(t, monday())

	sched := validSchedule()
	sched.Enabled = false
	sched.RecurrenceType = RecurrenceWeekly
	sched.RecurrenceDays = []int{1}

	added, err := s.Add(context.Background(), sched)
	if err != nil {
		t.Fatalf("Add() = %v", err)
	}

	s.mu.Lock()
	jobs := len(s.jobs)
	s.mu.Unlock()
	if jobs != 0 {
		t.Fatalf("disabled schedule should hold no job, got %d", jobs)
	}

	if err := s.Enable(context.Background(), added.ID); err != nil {
		t.Fatalf("Enable() = %v", err)
	}
	s.mu.Lock()
	_, live := s.jobs[added.ID]
	s.mu.Unlock()
	if !live {
		t.Fatal("enable should register a job")
	}
	if v, ok := store.enabledFlag(added.ID); !ok || !v {
		t.Error("enable should persist the flag")
	}

	if err := s.Disable(context.Background(), added.ID); err != nil {
		t.Fatalf("Disable() = %v", err)
	}
	s.mu.Lock()
	_, live = s.jobs[added.ID]
	s.mu.Unlock()
	if live {
		t.Fatal("disable should cancel the job")
	}
	if v, _ := store.enabledFlag(added.ID); v {
		t.Error("disable should persist the flag")
	}

	if err := s.Disable(context.Background(), added.ID); err != nil {
		t.Errorf("repeated Disable() = %v, want nil", err)
	}
}

func TestEnableUnknownSchedule(t *testing.T) {
	s, _, _ := newTestScheduler(t, monday())

	if err := s.Enable(context.Background(), 999); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("Enable(999) = %v, want ErrScheduleNotFound", err)
	}
	if err := s.Disable(context.Background(), 999); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("Disable(999) = %v, want ErrScheduleNotFound", err)
	}
}

func TestInitSkipsInvalidSchedules(t *testing.T) {
	s, _, store := newTestScheduler(t, monday())

	good := validSchedule()
	good.ID = 1
	good.Enabled = false

	bad := validSchedule()
	bad.ID = 2
	bad.Args = nil

	store.schedules = []Schedule{good, bad}

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	if _, err := s.Get(1); err != nil {
		t.Errorf("valid schedule should load: %v", err)
	}
	if _, err := s.Get(2); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("invalid schedule should be skipped, got %v", err)
	}
}

// ============================================================================
// Dispatch
// ============================================================================

func TestDispatchSwitchSetsChannel(t *testing.T) {
	s, registry, _ := newTestScheduler(t, monday())

	sb := addSwitchBot(t, registry, "ABCDE_1234")
	conn := &fakeConn{open: true}
	sb.Bind(conn, protocolHandshake())

	sched := validSchedule()
	sched.Args = map[string]any{"deviceId": "ABCDE_1234", "channel": float64(1), "state": true}

	if err := s.execute(context.Background(), sched); err != nil {
		t.Fatalf("execute() = %v", err)
	}
	waitFor(t, func() bool {
		snap := sb.Snapshot()
		return len(snap.Switch) == 2 && snap.Switch[1]
	})
}

func TestDispatchSwitchErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing channel", map[string]any{"deviceId": "ABCDE_1234", "state": true}},
		{"missing state", map[string]any{"deviceId": "ABCDE_1234", "channel": float64(0)}},
		{"bad device id", map[string]any{"deviceId": "nope", "channel": float64(0), "state": true}},
		{"unknown device", map[string]any{"deviceId": "ZZZZZ_9999", "channel": float64(0), "state": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, registry, _ := newTestScheduler(t, monday())
			addSwitchBot(t, registry, "ABCDE_1234")

			sched := validSchedule()
			sched.Args = tt.args

			if err := s.execute(context.Background(), sched); !errors.Is(err, ErrDispatchFailed) {
				t.Errorf("execute() = %v, want ErrDispatchFailed", err)
			}
		})
	}
}

func TestDispatchSwitchWrongModel(t *testing.T) {
	s, registry, _ := newTestScheduler(t, monday())

	factory := device.NewFactory(registry, device.Env{})
	rb := device.NewRemoteBot("ABCDE_1234", "", nil, nil, factory.Env())
	if err := registry.Add(rb); err != nil {
		t.Fatalf("add remotebot: %v", err)
	}

	sched := validSchedule()
	if err := s.execute(context.Background(), sched); !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("execute() = %v, want ErrDispatchFailed", err)
	}
}

func TestDispatchRemoteLookup(t *testing.T) {
	s, registry, _ := newTestScheduler(t, monday())

	factory := device.NewFactory(registry, device.Env{})
	rb := device.NewRemoteBot("ABCDE_1234", "", nil, nil, factory.Env())
	if err := registry.Add(rb); err != nil {
		t.Fatalf("add remotebot: %v", err)
	}

	sched := validSchedule()
	sched.Category = CategoryRemote
	sched.Args = map[string]any{"deviceId": "ABCDE_1234"}
	if err := s.execute(context.Background(), sched); err != nil {
		t.Errorf("execute() = %v, want nil", err)
	}

	sched.Args = map[string]any{"deviceId": "ZZZZZ_9999"}
	if err := s.execute(context.Background(), sched); !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("execute() = %v, want ErrDispatchFailed", err)
	}
}

func TestHolidayExclusionSkipsDispatch(t *testing.T) {
	// Sunday 2026-03-01: excluded by the always-on Sunday rule.
	s, registry, _ := newTestScheduler(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local))

	sb := addSwitchBot(t, registry, "ABCDE_1234")
	conn := &fakeConn{open: true}
	sb.Bind(conn, protocolHandshake())
	baseline := conn.sentCount()

	sched := validSchedule()
	sched.ExcludeHoliday = true

	if err := s.execute(context.Background(), sched); err != nil {
		t.Fatalf("execute() = %v, want silent skip", err)
	}
	if conn.sentCount() != baseline {
		t.Error("holiday-excluded schedule must not dispatch")
	}
}

func TestDispatchRunsOnNonHoliday(t *testing.T) {
	s, registry, _ := newTestScheduler(t, monday())

	sb := addSwitchBot(t, registry, "ABCDE_1234")
	conn := &fakeConn{open: true}
	sb.Bind(conn, protocolHandshake())

	sched := validSchedule()
	sched.ExcludeHoliday = true

	if err := s.execute(context.Background(), sched); err != nil {
		t.Fatalf("execute() = %v", err)
	}
	waitFor(t, func() bool {
		snap := sb.Snapshot()
		return len(snap.Switch) == 2 && snap.Switch[0]
	})
}

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// Notification icons for door transitions.
const (
	iconDoorOpen  = "door_open.png"
	iconDoorClose = "door_close.png"
)

// Checker is a battery-powered door sensor. It reports open/close
// transitions with a firmware-side timestamp offset so the recorded
// time survives transmission delay.
type Checker struct {
	base

	open       bool
	recordDate time.Time
}

// NewChecker constructs a Checker from a persisted record or a first
// handshake. A missing open flag defaults to open; a missing record
// date defaults to the zero time.
func NewChecker(id, name string, battery *int, extra map[string]any, env *Env) *Checker {
	if name == "" {
		name = "Checker"
	}
	c := &Checker{
		base: newBase(id, name, battery, env),
		open: true,
	}
	if v, ok := extra["open"].(bool); ok {
		c.open = v
	}
	if v, ok := extra["recordDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			c.recordDate = t
		}
	}
	return c
}

func (c *Checker) ModelID() byte     { return ModelChecker }
func (c *Checker) ModelName() string { return "Checker" }

func (c *Checker) SetName(name string) {
	c.setName(c, name)
}

// Open reports the current door state.
func (c *Checker) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// RecordDate returns the time of the last open/close transition.
func (c *Checker) RecordDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordDate
}

// Bind adopts a new transport and applies the handshake's door state.
// The handshake is authoritative for the current position: the device
// may have moved while disconnected.
func (c *Checker) Bind(conn Conn, hs protocol.Handshake) {
	if !c.rebind(c, conn, hs.Battery) {
		return
	}
	c.setOpenState(hs.Open, c.env.Now())
}

// HandleFrame applies one OpCheckerState frame.
func (c *Checker) HandleFrame(frame []byte) error {
	now := c.env.Now()
	st, err := protocol.DecodeCheckerState(frame, now)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.lastSeen = now
	batteryChanged := c.setBatteryLocked(&st.Battery)
	c.mu.Unlock()

	if batteryChanged {
		c.persist(c)
		c.env.Telemetry.WriteBatteryLevel(c.id, c.ModelName(), st.Battery)
	}

	c.setOpenState(st.Open, st.RecordedAt)
	return nil
}

// setOpenState records a door transition. A frame whose decoded state
// matches the current one is a no-op: no history record, no broadcast,
// no notification.
func (c *Checker) setOpenState(open bool, at time.Time) {
	c.mu.Lock()
	if c.open == open {
		c.mu.Unlock()
		return
	}
	c.open = open
	c.recordDate = at
	c.lastSeen = at
	battery := copyInt(c.battery)
	name := c.name
	c.mu.Unlock()

	c.persist(c)
	c.env.Broadcast.BroadcastDevice(c.Snapshot())
	c.env.Telemetry.WriteDoorEvent(c.id, open, at)
	c.notifyTransition(name, open, at, battery)
	c.createHistoryRecord(open, battery, at)

	c.env.Logger.Info("door state changed", "id", c.id, "name", name, "open", open)
}

func (c *Checker) notifyTransition(name string, open bool, at time.Time, battery *int) {
	state := "closed"
	icon := iconDoorClose
	if open {
		state = "opened"
		icon = iconDoorOpen
	}

	batteryText := "unknown"
	if battery != nil {
		batteryText = fmt.Sprintf("%d%%", *battery)
	}

	c.env.Notify.NotifyStateChange(
		fmt.Sprintf("%s %s", name, state),
		fmt.Sprintf("%s at %s, battery: %s", state, at.Format("3:04 PM"), batteryText),
		icon,
	)
}

func (c *Checker) createHistoryRecord(open bool, battery *int, at time.Time) {
	if c.env.Store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.env.Store.CreateDoorRecord(ctx, c.id, open, battery, at); err != nil {
			c.env.Logger.Error("door history write failed", "id", c.id, "error", err)
		}
	}()
}

func (c *Checker) HandleClose() {
	c.handleClose(c)
}

func (c *Checker) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snapshotBaseLocked(ModelChecker)
	open := c.open
	recordDate := c.recordDate
	snap.Open = &open
	snap.RecordDate = &recordDate
	return snap
}

func (c *Checker) extraState() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"open":       c.open,
		"recordDate": c.recordDate.Format(time.RFC3339),
	}
}

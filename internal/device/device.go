package device

import (
	"context"
	"sync"
	"time"
)

// persistTimeout bounds each fire-and-forget persistence write.
const persistTimeout = 5 * time.Second

// base carries the state and behaviour shared by every device variant.
//
// The mutex serializes all state mutation for one device. Messages from
// the device's own connection arrive in order; a concurrent dashboard
// command for the same device races with them and the last write wins.
type base struct {
	id string

	mu       sync.Mutex
	name     string
	battery  *int
	conn     Conn
	lastSeen time.Time

	env *Env
}

func newBase(id, name string, battery *int, env *Env) base {
	return base{
		id:      id,
		name:    name,
		battery: clampBattery(battery),
		env:     env,
	}
}

// clampBattery normalizes a battery value: anything outside 0-100
// becomes unknown.
func clampBattery(battery *int) *int {
	if battery == nil || *battery < 0 || *battery > 100 {
		return nil
	}
	b := *battery
	return &b
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *base) Battery() *int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyInt(b.battery)
}

func (b *base) Conn() Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

// Connected reports whether the transport is open and the device has
// been heard from within the liveness window.
func (b *base) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedLocked()
}

func (b *base) connectedLocked() bool {
	return b.conn != nil && b.conn.IsOpen() && b.env.Now().Sub(b.lastSeen) < connectedWindow
}

// Touch updates the liveness timestamp. Keepalive pings land here; no
// broadcast, no persistence.
func (b *base) Touch() {
	b.mu.Lock()
	b.lastSeen = b.env.Now()
	b.mu.Unlock()
}

// setName renames the device and persists the change. Used by the
// variants to satisfy SetName.
func (b *base) setName(d Device, name string) {
	b.mu.Lock()
	if b.name == name {
		b.mu.Unlock()
		return
	}
	b.name = name
	b.mu.Unlock()

	b.persist(d)
}

// setBatteryLocked clamps and stores a battery value, reporting
// whether it changed. Caller holds the mutex and persists on change.
func (b *base) setBatteryLocked(battery *int) bool {
	battery = clampBattery(battery)
	if intPtrEqual(b.battery, battery) {
		return false
	}
	b.battery = battery
	return true
}

// rebind implements the shared reconnection contract: binding the
// current transport again is a no-op; otherwise the previous transport
// is closed, the new one adopted, the liveness clock reset and the
// connectivity change broadcast.
//
// Returns false when conn is already the bound transport.
func (b *base) rebind(d Device, conn Conn, battery *int) bool {
	b.mu.Lock()
	if conn == b.conn {
		b.mu.Unlock()
		return false
	}
	prev := b.conn
	b.conn = conn
	b.setBatteryLocked(battery)
	b.lastSeen = b.env.Now()
	b.mu.Unlock()

	if prev != nil && prev.IsOpen() {
		prev.Close() //nolint:errcheck // Closing a dying transport
	}

	b.persist(d)
	b.env.Broadcast.BroadcastDevice(d.Snapshot())
	b.env.Logger.Info("device connected", "id", b.id, "model", d.ModelName())

	if battery != nil {
		b.env.Telemetry.WriteBatteryLevel(b.id, d.ModelName(), *battery)
	}
	return true
}

// handleClose runs the shared disconnect path: a final persistence
// sync and a connectivity broadcast. The transport is already closed
// by the time this runs.
func (b *base) handleClose(d Device) {
	b.persist(d)
	b.env.Broadcast.BroadcastDevice(d.Snapshot())
	b.env.Logger.Info("device disconnected", "id", b.id, "model", d.ModelName())
}

// persist upserts the device row asynchronously. Durability is
// best-effort: a crash between the in-memory mutation and this write
// loses the write, which the domain tolerates.
func (b *base) persist(d Device) {
	if b.env.Store == nil {
		return
	}

	b.mu.Lock()
	name := b.name
	battery := copyInt(b.battery)
	b.mu.Unlock()

	rec := Record{
		ID:      b.id,
		Name:    name,
		Model:   d.ModelID(),
		Battery: battery,
		Extra:   d.extraState(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := b.env.Store.UpsertDevice(ctx, rec); err != nil {
			b.env.Logger.Error("device upsert failed", "id", b.id, "error", err)
		}
	}()
}

// snapshotBase fills the model-independent snapshot fields. Caller
// holds the mutex.
func (b *base) snapshotBaseLocked(modelID byte) Snapshot {
	return Snapshot{
		ID:        b.id,
		Name:      b.name,
		Model:     modelID,
		Battery:   copyInt(b.battery),
		Connected: b.connectedLocked(),
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

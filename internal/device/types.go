package device

import (
	"context"
	"time"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// Model identifiers. These match the model byte carried in handshake
// frames and the model column in the devices table.
const (
	ModelChecker   byte = 0x01
	ModelSwitchBot byte = 0x02
	ModelRemoteBot byte = 0x03
)

// connectedWindow is how long a device stays "connected" after its
// last inbound traffic. Firmware pings well inside this window; silence
// beyond it means the link is dead even if the socket has not closed.
const connectedWindow = 15 * time.Second

// Device is the capability set shared by all device variants.
//
// Implementations are Checker, SwitchBot and RemoteBot; the set is
// closed and the factory dispatches on model id through an explicit
// constructor table.
type Device interface {
	ID() string
	Name() string
	SetName(name string)
	ModelID() byte
	ModelName() string

	// Battery returns the last reported battery percentage, or nil
	// when unknown or the model does not report one.
	Battery() *int

	// Connected reports whether the device has an open transport and
	// has been heard from within the liveness window.
	Connected() bool

	// Conn returns the currently bound transport, or nil.
	Conn() Conn

	// Bind adopts a transport, closing any previously bound one, and
	// applies the handshake's initial state. Binding the same
	// transport twice is a no-op.
	Bind(conn Conn, hs protocol.Handshake)

	// HandleFrame decodes and applies one runtime frame. A decode
	// error is connection-fatal; the caller must close the transport.
	HandleFrame(frame []byte) error

	// Touch updates the liveness timestamp without any state change.
	// Called on keepalive pings.
	Touch()

	// HandleClose clears transient state after the bound transport
	// closes, persists a final sync and broadcasts the connectivity
	// change.
	HandleClose()

	// Snapshot returns the JSON-facing representation of current state.
	Snapshot() Snapshot

	// extraState returns the model-specific payload persisted opaquely
	// in the devices table.
	extraState() map[string]any
}

// Conn is the minimal transport surface a device needs. The hub's
// websocket connections satisfy it; tests use in-memory fakes.
type Conn interface {
	// Send writes one binary frame.
	Send(data []byte) error

	// Close closes the transport. Closing twice is harmless.
	Close() error

	// IsOpen reports whether the transport can still be written to.
	IsOpen() bool
}

// Snapshot is the JSON representation of a device pushed to observers
// and returned by the HTTP query interface.
//
// Model-specific fields are pointers or slices left empty for other
// models so a single struct serializes correctly for every variant.
type Snapshot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     byte   `json:"model"`
	Battery   *int   `json:"battery"`
	Connected bool   `json:"connected"`

	// Checker
	Open       *bool      `json:"open,omitempty"`
	RecordDate *time.Time `json:"recordDate,omitempty"`

	// SwitchBot
	Switch     []bool   `json:"switch,omitempty"`
	SwitchName []string `json:"switchName,omitempty"`

	// RemoteBot
	Humidity    *float64 `json:"humidity,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Record is a device row as stored by the persistence collaborator.
// Extra holds the model-specific payload opaquely.
type Record struct {
	ID      string
	Name    string
	Model   byte
	Battery *int
	Extra   map[string]any
}

// Store is the persistence surface the device layer depends on.
// Writes are fire-and-forget from the caller's point of view: failures
// are logged, never propagated into protocol handling.
type Store interface {
	UpsertDevice(ctx context.Context, rec Record) error
	CreateDoorRecord(ctx context.Context, deviceID string, open bool, battery *int, recordedAt time.Time) error
	CreateSwitchRecord(ctx context.Context, deviceID string, channel int, state bool, recordedAt time.Time) error
	CreateSensorRecord(ctx context.Context, deviceID string, humidity, temperature float64) error
	ListDevices(ctx context.Context) ([]Record, error)
}

// Broadcaster pushes device snapshots to connected observers.
type Broadcaster interface {
	BroadcastDevice(snapshot Snapshot)
}

// Notifier delivers user-facing state change notifications.
// Delivery is best-effort.
type Notifier interface {
	NotifyStateChange(title, body, icon string)
}

// Telemetry records time-series samples. Implemented by the InfluxDB
// client; a noop implementation is used when telemetry is disabled.
type Telemetry interface {
	WriteSensorReading(deviceID string, humidity, temperature float64)
	WriteBatteryLevel(deviceID string, model string, battery int)
	WriteDoorEvent(deviceID string, open bool, recordedAt time.Time)
	WriteSwitchEvent(deviceID string, channel int, on bool)
}

// Logger defines the logging interface used by the device layer.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastDevice(Snapshot) {}

type noopNotifier struct{}

func (noopNotifier) NotifyStateChange(string, string, string) {}

type noopTelemetry struct{}

func (noopTelemetry) WriteSensorReading(string, float64, float64) {}
func (noopTelemetry) WriteBatteryLevel(string, string, int)      {}
func (noopTelemetry) WriteDoorEvent(string, bool, time.Time)     {}
func (noopTelemetry) WriteSwitchEvent(string, int, bool)         {}

// Env bundles the collaborators every device needs. Zero-value fields
// are replaced with noop implementations so tests can populate only
// what they assert on.
type Env struct {
	Store     Store
	Broadcast Broadcaster
	Notify    Notifier
	Telemetry Telemetry
	Logger    Logger

	// Now allows tests to control the clock. Defaults to time.Now.
	Now func() time.Time
}

// fill replaces nil collaborators with noops.
func (e *Env) fill() {
	if e.Broadcast == nil {
		e.Broadcast = noopBroadcaster{}
	}
	if e.Notify == nil {
		e.Notify = noopNotifier{}
	}
	if e.Telemetry == nil {
		e.Telemetry = noopTelemetry{}
	}
	if e.Logger == nil {
		e.Logger = noopLogger{}
	}
	if e.Now == nil {
		e.Now = time.Now
	}
}

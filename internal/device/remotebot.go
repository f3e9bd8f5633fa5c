package device

import (
	"context"
	"errors"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// RemoteBot is a humidity/temperature sensor with an infrared blaster.
// It reports no battery; sensor readings are transient and cleared
// when the device disconnects.
type RemoteBot struct {
	base

	humidity    *float64
	temperature *float64
}

// NewRemoteBot constructs a RemoteBot. Persisted sensor values are
// deliberately discarded: a reading only means something while the
// device is connected.
func NewRemoteBot(id, name string, _ *int, _ map[string]any, env *Env) *RemoteBot {
	if name == "" {
		name = "Remote Bot"
	}
	return &RemoteBot{
		base: newBase(id, name, nil, env),
	}
}

func (r *RemoteBot) ModelID() byte     { return ModelRemoteBot }
func (r *RemoteBot) ModelName() string { return "Remote Bot" }

func (r *RemoteBot) SetName(name string) {
	r.setName(r, name)
}

// Humidity returns the latest humidity reading, or nil when none.
func (r *RemoteBot) Humidity() *float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyFloat(r.humidity)
}

// Temperature returns the latest temperature reading, or nil when none.
func (r *RemoteBot) Temperature() *float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyFloat(r.temperature)
}

func (r *RemoteBot) Bind(conn Conn, hs protocol.Handshake) {
	r.rebind(r, conn, hs.Battery)
}

// HandleFrame applies one OpSensorReading frame. The firmware's 0/0
// sentinel decodes to ErrInvalidReading, which is logged but not
// connection-fatal: the device is healthy, the sensor just has no
// reading yet.
func (r *RemoteBot) HandleFrame(frame []byte) error {
	reading, err := protocol.DecodeSensorReading(frame)
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidReading) {
			r.env.Logger.Error("invalid sensor reading, check the remote bot", "id", r.id)
			r.Touch()
			return nil
		}
		return err
	}

	r.mu.Lock()
	r.lastSeen = r.env.Now()
	r.humidity = &reading.Humidity
	r.temperature = &reading.Temperature
	r.mu.Unlock()

	r.persist(r)
	r.env.Broadcast.BroadcastDevice(r.Snapshot())
	r.env.Telemetry.WriteSensorReading(r.id, reading.Humidity, reading.Temperature)
	r.createHistoryRecord(reading.Humidity, reading.Temperature)
	return nil
}

// SendAC pushes an air-conditioner command through the infrared
// blaster.
func (r *RemoteBot) SendAC(cmd protocol.ACCommand) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil || !conn.IsOpen() {
		return ErrNotConnected
	}
	return conn.Send(cmd.Encode())
}

func (r *RemoteBot) createHistoryRecord(humidity, temperature float64) {
	if r.env.Store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.env.Store.CreateSensorRecord(ctx, r.id, humidity, temperature); err != nil {
			r.env.Logger.Error("sensor history write failed", "id", r.id, "error", err)
		}
	}()
}

// HandleClose clears the transient sensor values before the shared
// disconnect path runs: a stale reading must not outlive the link.
func (r *RemoteBot) HandleClose() {
	r.mu.Lock()
	r.humidity = nil
	r.temperature = nil
	r.mu.Unlock()

	r.handleClose(r)
}

func (r *RemoteBot) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshotBaseLocked(ModelRemoteBot)
	snap.Humidity = copyFloat(r.humidity)
	snap.Temperature = copyFloat(r.temperature)
	return snap
}

func (r *RemoteBot) extraState() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	extra := map[string]any{}
	if r.humidity != nil {
		extra["humidity"] = *r.humidity
	}
	if r.temperature != nil {
		extra["temperature"] = *r.temperature
	}
	return extra
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// SwitchBot is a two-channel relay. Channel 0 is the upper switch,
// channel 1 the lower.
type SwitchBot struct {
	base

	switches [2]bool
	names    [2]string
}

// NewSwitchBot constructs a SwitchBot from a persisted record or a
// first handshake. Missing channel names default to Upper/Lower.
func NewSwitchBot(id, name string, battery *int, extra map[string]any, env *Env) *SwitchBot {
	if name == "" {
		name = "Switch Bot"
	}
	s := &SwitchBot{
		base:  newBase(id, name, battery, env),
		names: [2]string{"Upper", "Lower"},
	}
	if v, ok := extra["switch"].([]any); ok {
		for i := 0; i < len(v) && i < 2; i++ {
			if b, ok := v[i].(bool); ok {
				s.switches[i] = b
			}
		}
	}
	if v, ok := extra["switchName"].([]any); ok {
		for i := 0; i < len(v) && i < 2; i++ {
			if n, ok := v[i].(string); ok && n != "" {
				s.names[i] = n
			}
		}
	}
	return s
}

func (s *SwitchBot) ModelID() byte     { return ModelSwitchBot }
func (s *SwitchBot) ModelName() string { return "Switch Bot" }

func (s *SwitchBot) SetName(name string) {
	s.setName(s, name)
}

// IsOn reports the current state of one channel.
func (s *SwitchBot) IsOn(channel int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel > 1 {
		return false
	}
	return s.switches[channel]
}

// ChannelNames returns the display labels for both channels.
func (s *SwitchBot) ChannelNames() [2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names
}

// Bind adopts a new transport. The hub's state is authoritative for
// relays: any channel where the handshake disagrees with the hub gets
// a command pushed back to the device.
func (s *SwitchBot) Bind(conn Conn, hs protocol.Handshake) {
	if !s.rebind(s, conn, hs.Battery) {
		return
	}
	for channel := 0; channel < 2; channel++ {
		if s.IsOn(channel) != hs.Switch[channel] {
			s.syncDevice(channel)
		}
	}
}

// HandleFrame applies one OpSwitchState frame. Device-originated
// updates never push a command back to the device.
func (s *SwitchBot) HandleFrame(frame []byte) error {
	st, err := protocol.DecodeSwitchState(frame)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSeen = s.env.Now()
	batteryChanged := s.setBatteryLocked(&st.Battery)
	s.mu.Unlock()

	if batteryChanged {
		s.persist(s)
		s.env.Telemetry.WriteBatteryLevel(s.id, s.ModelName(), st.Battery)
	}

	for channel := 0; channel < 2; channel++ {
		s.setState(channel, st.Channels[channel], false)
	}
	return nil
}

// SetState sets one channel from the dashboard or scheduler, pushing
// the command to the device.
func (s *SwitchBot) SetState(channel int, on bool) error {
	if channel < 0 || channel > 1 {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	s.setState(channel, on, true)
	return nil
}

// setState applies a channel change. Setting a channel to its current
// value is a no-op: no persistence write, no broadcast, no outbound
// sync. needSync distinguishes hub-originated changes (which push a
// command) from device-originated ones (which must not echo).
func (s *SwitchBot) setState(channel int, on bool, needSync bool) {
	s.mu.Lock()
	if s.switches[channel] == on {
		s.mu.Unlock()
		return
	}
	s.switches[channel] = on
	s.lastSeen = s.env.Now()
	s.mu.Unlock()

	s.persist(s)
	s.env.Broadcast.BroadcastDevice(s.Snapshot())
	s.env.Telemetry.WriteSwitchEvent(s.id, channel, on)
	s.createHistoryRecord(channel, on)

	if needSync {
		s.syncDevice(channel)
	}
}

// syncDevice pushes the hub's state for one channel to the device.
// Silently skipped when no transport is open.
func (s *SwitchBot) syncDevice(channel int) {
	s.mu.Lock()
	conn := s.conn
	on := s.switches[channel]
	s.mu.Unlock()

	if conn == nil || !conn.IsOpen() {
		return
	}

	frame, err := protocol.EncodeSwitchCommand(channel, on)
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		s.env.Logger.Warn("switch command send failed", "id", s.id, "channel", channel, "error", err)
	}
}

func (s *SwitchBot) createHistoryRecord(channel int, on bool) {
	if s.env.Store == nil {
		return
	}
	at := s.env.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.env.Store.CreateSwitchRecord(ctx, s.id, channel, on, at); err != nil {
			s.env.Logger.Error("switch history write failed", "id", s.id, "error", err)
		}
	}()
}

func (s *SwitchBot) HandleClose() {
	s.handleClose(s)
}

func (s *SwitchBot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotBaseLocked(ModelSwitchBot)
	snap.Switch = []bool{s.switches[0], s.switches[1]}
	snap.SwitchName = []string{s.names[0], s.names[1]}
	return snap
}

func (s *SwitchBot) extraState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"switch":     []any{s.switches[0], s.switches[1]},
		"switchName": []any{s.names[0], s.names[1]},
	}
}

package protocol

import (
	"errors"
	"testing"
	"time"
)

// =============================================================================
// Handshake Tests
// =============================================================================

func TestDecodeHandshakeSwitchBot(t *testing.T) {
	// 0x56 = 0b01010110: battery nibble 6 (60%), ch0 bits 01, ch1 bits 01
	frame := []byte{0x01, 0x02, 0x56, 'A', 'B', 'C', 'D', 'E', '_', '1', '2', '3', '4'}

	hs, err := DecodeHandshake(frame)
	if err != nil {
		t.Fatalf("DecodeHandshake() error = %v", err)
	}

	if hs.ModelID != ModelSwitchBot {
		t.Errorf("ModelID = 0x%02x, want 0x%02x", hs.ModelID, ModelSwitchBot)
	}
	if hs.DeviceID != "ABCDE_1234" {
		t.Errorf("DeviceID = %q, want %q", hs.DeviceID, "ABCDE_1234")
	}
	if hs.Battery == nil || *hs.Battery != 60 {
		t.Errorf("Battery = %v, want 60", hs.Battery)
	}
	if !hs.Switch[0] || !hs.Switch[1] {
		t.Errorf("Switch = %v, want both on", hs.Switch)
	}
}

func TestDecodeHandshakeChecker(t *testing.T) {
	// 0x17: open bit set, battery nibble 7 (70%)
	frame := append([]byte{0x01, 0x01, 0x17}, []byte("DoorA_0001\x00\x00")...)

	hs, err := DecodeHandshake(frame)
	if err != nil {
		t.Fatalf("DecodeHandshake() error = %v", err)
	}

	if hs.ModelID != ModelChecker {
		t.Errorf("ModelID = 0x%02x, want 0x%02x", hs.ModelID, ModelChecker)
	}
	if hs.DeviceID != "DoorA_0001" {
		t.Errorf("DeviceID = %q, want %q (NUL padding trimmed)", hs.DeviceID, "DoorA_0001")
	}
	if hs.Battery == nil || *hs.Battery != 70 {
		t.Errorf("Battery = %v, want 70", hs.Battery)
	}
	if !hs.Open {
		t.Error("Open = false, want true")
	}
}

func TestDecodeHandshakeRemoteBot(t *testing.T) {
	frame := append([]byte{0x01, 0x03}, []byte("SensA_0002")...)

	hs, err := DecodeHandshake(frame)
	if err != nil {
		t.Fatalf("DecodeHandshake() error = %v", err)
	}

	if hs.DeviceID != "SensA_0002" {
		t.Errorf("DeviceID = %q, want %q", hs.DeviceID, "SensA_0002")
	}
	if hs.Battery != nil {
		t.Errorf("Battery = %v, want nil (model reports no battery)", *hs.Battery)
	}
}

func TestDecodeHandshakeErrors(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"empty frame", nil, ErrMalformedFrame},
		{"wrong opcode", []byte{0x02, 0x01, 0x17, 'A'}, ErrMalformedFrame},
		{"unknown model", []byte{0x01, 0x7f, 0x17, 'A'}, ErrUnknownModel},
		{"truncated checker", []byte{0x01, 0x01, 0x17}, ErrMalformedFrame},
		{"truncated switchbot", []byte{0x01, 0x02}, ErrMalformedFrame},
		{"truncated remotebot", []byte{0x01, 0x03}, ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHandshake(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeHandshake() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Checker Runtime Tests
// =============================================================================

func TestDecodeCheckerState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Status 0x18: open bit set, battery 80%. Offset 5000ms.
	frame := []byte{0x02, 0x18, 0x00, 0x00, 0x13, 0x88}

	st, err := DecodeCheckerState(frame, now)
	if err != nil {
		t.Fatalf("DecodeCheckerState() error = %v", err)
	}

	if st.Battery != 80 {
		t.Errorf("Battery = %d, want 80", st.Battery)
	}
	if !st.Open {
		t.Error("Open = false, want true")
	}
	want := now.Add(-5 * time.Second)
	if !st.RecordedAt.Equal(want) {
		t.Errorf("RecordedAt = %v, want %v", st.RecordedAt, want)
	}
}

func TestDecodeCheckerStateClosed(t *testing.T) {
	now := time.Now()
	frame := []byte{0x02, 0x09, 0x00, 0x00, 0x00, 0x00}

	st, err := DecodeCheckerState(frame, now)
	if err != nil {
		t.Fatalf("DecodeCheckerState() error = %v", err)
	}

	if st.Open {
		t.Error("Open = true, want false")
	}
	if st.Battery != 90 {
		t.Errorf("Battery = %d, want 90", st.Battery)
	}
	if !st.RecordedAt.Equal(now) {
		t.Errorf("RecordedAt = %v, want %v (zero offset)", st.RecordedAt, now)
	}
}

func TestDecodeCheckerStateTruncated(t *testing.T) {
	_, err := DecodeCheckerState([]byte{0x02, 0x18, 0x00}, time.Now())
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("DecodeCheckerState() error = %v, want ErrMalformedFrame", err)
	}
}

// =============================================================================
// SwitchBot Runtime Tests
// =============================================================================

func TestDecodeSwitchState(t *testing.T) {
	tests := []struct {
		name        string
		status      byte
		wantBattery int
		wantCh      [2]bool
	}{
		{"both off", 0x05, 50, [2]bool{false, false}},
		{"ch0 on", 0x45, 50, [2]bool{true, false}},
		{"ch1 on", 0x15, 50, [2]bool{false, true}},
		{"both on", 0x55, 50, [2]bool{true, true}},
		{"two-bit fields", 0xF0, 0, [2]bool{true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := DecodeSwitchState([]byte{0x03, tt.status})
			if err != nil {
				t.Fatalf("DecodeSwitchState() error = %v", err)
			}
			if st.Battery != tt.wantBattery {
				t.Errorf("Battery = %d, want %d", st.Battery, tt.wantBattery)
			}
			if st.Channels != tt.wantCh {
				t.Errorf("Channels = %v, want %v", st.Channels, tt.wantCh)
			}
		})
	}
}

// =============================================================================
// Sensor Reading Tests
// =============================================================================

func TestDecodeSensorReading(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		wantHum  float64
		wantTemp float64
	}{
		{"positive", []byte{0x04, 45, 2, 21, 0x05}, 45.2, 21.5},
		{"negative", []byte{0x04, 45, 2, 3, 0x85}, 45.2, -3.5},
		{"zero humidity accepted", []byte{0x04, 0, 0, 21, 0x05}, 0.0, 21.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeSensorReading(tt.frame)
			if err != nil {
				t.Fatalf("DecodeSensorReading() error = %v", err)
			}
			if !floatEq(r.Humidity, tt.wantHum) {
				t.Errorf("Humidity = %v, want %v", r.Humidity, tt.wantHum)
			}
			if !floatEq(r.Temperature, tt.wantTemp) {
				t.Errorf("Temperature = %v, want %v", r.Temperature, tt.wantTemp)
			}
		})
	}
}

func TestDecodeSensorReadingSentinel(t *testing.T) {
	// Both values ~0 is the firmware's "no reading" marker.
	_, err := DecodeSensorReading([]byte{0x04, 0, 0, 0, 0})
	if !errors.Is(err, ErrInvalidReading) {
		t.Errorf("DecodeSensorReading() error = %v, want ErrInvalidReading", err)
	}
}

func floatEq(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

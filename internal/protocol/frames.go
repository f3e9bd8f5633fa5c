package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Frame opcodes. The leading byte of every inbound binary frame.
const (
	// OpHandshake is the first frame on a new device connection.
	OpHandshake byte = 0x01

	// OpCheckerState is a door sensor runtime report.
	OpCheckerState byte = 0x02

	// OpSwitchState is a relay runtime report.
	OpSwitchState byte = 0x03

	// OpSensorReading is a humidity/temperature runtime report.
	OpSensorReading byte = 0x04
)

// Device model identifiers carried in handshake frames.
const (
	ModelChecker   byte = 0x01
	ModelSwitchBot byte = 0x02
	ModelRemoteBot byte = 0x03
)

// batteryStep converts the 4-bit battery nibble to a percentage.
// Firmware reports battery in tenths: nibble 0-10 maps to 0-100%.
const batteryStep = 10

// Handshake is the decoded form of an OpHandshake frame.
//
// Battery is nil for models that do not report one (RemoteBot).
// Open and Switch carry the initial state for the models that
// include it in the handshake status byte.
type Handshake struct {
	ModelID  byte
	DeviceID string
	Battery  *int
	Open     bool
	Switch   [2]bool
}

// CheckerState is the decoded form of an OpCheckerState frame.
//
// RecordedAt is the authoritative event time: the firmware reports a
// millisecond offset into the past which is subtracted from the hub's
// clock, correcting for device clock skew.
type CheckerState struct {
	Battery    int
	Open       bool
	RecordedAt time.Time
}

// SwitchState is the decoded form of an OpSwitchState frame.
type SwitchState struct {
	Battery  int
	Channels [2]bool
}

// SensorReading is the decoded form of an OpSensorReading frame.
type SensorReading struct {
	Humidity    float64
	Temperature float64
}

// DecodeHandshake decodes an OpHandshake frame into its model id,
// device id and initial state.
//
// Layout: [0x01, modelID, statusByte?, deviceID...]. Checker and
// SwitchBot carry a status byte at index 2 (battery low nibble plus
// state flags in the high nibble); RemoteBot has no status byte and
// its id starts at index 2. The id is trimmed of NUL padding and
// surrounding whitespace but NOT validated here; format validation
// belongs to the device layer.
func DecodeHandshake(frame []byte) (Handshake, error) {
	if len(frame) < 2 || frame[0] != OpHandshake {
		return Handshake{}, fmt.Errorf("%w: want handshake opcode, got % x", ErrMalformedFrame, opcodeOf(frame))
	}

	hs := Handshake{ModelID: frame[1]}

	switch hs.ModelID {
	case ModelChecker:
		if len(frame) < 4 {
			return Handshake{}, fmt.Errorf("%w: checker handshake needs 4 bytes, got %d", ErrMalformedFrame, len(frame))
		}
		battery := int(frame[2]&0x0f) * batteryStep
		hs.Battery = &battery
		hs.Open = (frame[2]>>4)&0x01 == 0x01
		hs.DeviceID = trimDeviceID(frame[3:])

	case ModelSwitchBot:
		if len(frame) < 4 {
			return Handshake{}, fmt.Errorf("%w: switchbot handshake needs 4 bytes, got %d", ErrMalformedFrame, len(frame))
		}
		battery := int(frame[2]&0x0f) * batteryStep
		hs.Battery = &battery
		hs.Switch = decodeChannelBits(frame[2])
		hs.DeviceID = trimDeviceID(frame[3:])

	case ModelRemoteBot:
		if len(frame) < 3 {
			return Handshake{}, fmt.Errorf("%w: remotebot handshake needs 3 bytes, got %d", ErrMalformedFrame, len(frame))
		}
		hs.DeviceID = trimDeviceID(frame[2:])

	default:
		return Handshake{}, fmt.Errorf("%w: 0x%02x", ErrUnknownModel, hs.ModelID)
	}

	return hs, nil
}

// DecodeCheckerState decodes an OpCheckerState frame.
//
// Layout: [0x02, statusByte, offsetMS(4, big-endian)]. The status byte
// carries battery in the low nibble and the open flag in bit 4. The
// 32-bit offset is the age of the event in milliseconds, subtracted
// from now to recover the transition time.
func DecodeCheckerState(frame []byte, now time.Time) (CheckerState, error) {
	if len(frame) < 6 || frame[0] != OpCheckerState {
		return CheckerState{}, fmt.Errorf("%w: checker state needs 6 bytes with opcode 0x02", ErrMalformedFrame)
	}

	offset := binary.BigEndian.Uint32(frame[2:6])
	return CheckerState{
		Battery:    int(frame[1]&0x0f) * batteryStep,
		Open:       (frame[1]>>4)&0x01 == 0x01,
		RecordedAt: now.Add(-time.Duration(offset) * time.Millisecond),
	}, nil
}

// DecodeSwitchState decodes an OpSwitchState frame.
//
// Layout: [0x03, statusByte]. Battery sits in the low nibble; bits
// 6-7 carry channel 0 and bits 4-5 carry channel 1 as 2-bit fields,
// non-zero meaning on.
func DecodeSwitchState(frame []byte) (SwitchState, error) {
	if len(frame) < 2 || frame[0] != OpSwitchState {
		return SwitchState{}, fmt.Errorf("%w: switch state needs 2 bytes with opcode 0x03", ErrMalformedFrame)
	}

	return SwitchState{
		Battery:  int(frame[1]&0x0f) * batteryStep,
		Channels: decodeChannelBits(frame[1]),
	}, nil
}

// DecodeSensorReading decodes an OpSensorReading frame.
//
// Layout: [0x04, humInt, humTenths, tempMag, tempFlags]. Bit 7 of
// tempFlags marks a negative temperature (value becomes -1 - tempMag);
// the low nibble holds the temperature tenths, added after negation.
// A reading where both values are below 0.1 is the firmware's "no
// reading" sentinel and fails with ErrInvalidReading.
func DecodeSensorReading(frame []byte) (SensorReading, error) {
	if len(frame) < 5 || frame[0] != OpSensorReading {
		return SensorReading{}, fmt.Errorf("%w: sensor reading needs 5 bytes with opcode 0x04", ErrMalformedFrame)
	}

	temperature := float64(frame[3])
	if frame[4]&0x80 != 0 {
		temperature = -1 - temperature
	}
	temperature += float64(frame[4]&0x0f) * 0.1

	humidity := float64(frame[1]) + float64(frame[2])*0.1

	if humidity < 0.1 && temperature < 0.1 {
		return SensorReading{}, ErrInvalidReading
	}

	return SensorReading{Humidity: humidity, Temperature: temperature}, nil
}

// decodeChannelBits extracts the two relay channel states from a
// status byte: bits 6-7 for channel 0, bits 4-5 for channel 1.
func decodeChannelBits(status byte) [2]bool {
	return [2]bool{
		(status>>6)&0x03 != 0,
		(status>>4)&0x03 != 0,
	}
}

// trimDeviceID strips NUL padding and surrounding whitespace from the
// raw device id bytes.
func trimDeviceID(raw []byte) string {
	return strings.TrimSpace(strings.ReplaceAll(string(raw), "\x00", ""))
}

// opcodeOf returns the first byte of a frame for error messages, or
// nothing when the frame is empty.
func opcodeOf(frame []byte) []byte {
	if len(frame) == 0 {
		return nil
	}
	return frame[:1]
}

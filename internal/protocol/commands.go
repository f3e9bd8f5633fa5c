package protocol

import "fmt"

// Relay channel indexes on a SwitchBot.
const (
	ChannelUp   = 0
	ChannelDown = 1

	// channelCount is the number of relay channels per SwitchBot.
	channelCount = 2
)

// EncodeSwitchCommand builds the single-byte outbound frame that sets
// one relay channel: the channel index in the high nibble and the
// desired state in bit 0. One write per channel that changed.
func EncodeSwitchCommand(channel int, on bool) ([]byte, error) {
	if channel < 0 || channel >= channelCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	var state byte
	if on {
		state = 1
	}
	return []byte{byte(channel)<<4 | state}, nil
}

// DecodeSwitchCommand is the inverse of EncodeSwitchCommand, used to
// verify outbound frames in tests and diagnostics.
func DecodeSwitchCommand(frame []byte) (channel int, on bool, err error) {
	if len(frame) != 1 {
		return 0, false, fmt.Errorf("%w: switch command is a single byte", ErrMalformedFrame)
	}

	channel = int(frame[0] >> 4)
	if channel >= channelCount {
		return 0, false, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return channel, frame[0]&0x01 == 0x01, nil
}

// ACCommand describes an outbound infrared air-conditioner command
// relayed through a RemoteBot.
type ACCommand struct {
	DeviceClass byte
	Protocol    byte
	Power       bool

	// Mode, Temperature and FanSpeed are only transmitted when Power
	// is set; an off command is just the three-byte prefix.
	Mode        byte
	Temperature byte
	FanSpeed    byte
}

// Encode serializes the command to its fixed-order wire form:
// [deviceClass, protocol, powerBit, mode?, temperature?, fanSpeed?].
func (c ACCommand) Encode() []byte {
	if !c.Power {
		return []byte{c.DeviceClass, c.Protocol, 0}
	}
	return []byte{c.DeviceClass, c.Protocol, 1, c.Mode, c.Temperature, c.FanSpeed}
}

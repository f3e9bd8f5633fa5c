// Package protocol implements the binary wire codec spoken by BotLink
// devices.
//
// Every inbound frame is opcode-tagged: byte 0 identifies the frame
// type. Opcode 0x01 is the handshake sent as the first message on a
// new connection; runtime opcodes are model-specific (0x02 door
// sensor, 0x03 relay, 0x04 humidity/temperature sensor).
//
// All functions here are pure and stateless. A decode failure returns
// ErrMalformedFrame and never partially populates a result; callers
// are expected to treat decode failures as connection-fatal.
//
// # Status byte layout
//
// Checker and SwitchBot frames pack state into a single status byte:
//
//	bit  7 6 5 4 3 2 1 0
//	     [hi nibble][battery]
//
// The low nibble is always battery in tenths (0-10 → 0-100%). For a
// Checker the high nibble carries the open flag in bit 4. For a
// SwitchBot bits 6-7 and 4-5 are 2-bit channel state fields.
package protocol

package protocol

import "errors"

// Domain errors for the protocol package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, protocol.ErrMalformedFrame) {
//	    // close the connection, never mutate device state
//	}
var (
	// ErrMalformedFrame is returned when a frame is too short or its
	// opcode does not match the requested decode. Decode failures are
	// connection-fatal: the caller must close the transport.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrUnknownModel is returned when a handshake carries a model id
	// with no registered decoder.
	ErrUnknownModel = errors.New("protocol: unknown model id")

	// ErrInvalidReading is returned when a sensor frame carries the
	// firmware's "no reading" sentinel (both values ~0).
	ErrInvalidReading = errors.New("protocol: invalid sensor reading")

	// ErrInvalidChannel is returned when a switch command targets a
	// channel outside the supported range.
	ErrInvalidChannel = errors.New("protocol: invalid channel")
)

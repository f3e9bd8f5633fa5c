package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device id does not exist in
	// the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a device with an id
	// that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDeviceID is returned when a device id fails the format
	// check. Ids are five letters, an underscore and four digits.
	ErrInvalidDeviceID = errors.New("device: invalid id")

	// ErrInvalidModel is returned when a model id has no registered
	// constructor.
	ErrInvalidModel = errors.New("device: invalid model id")

	// ErrWrongModel is returned when an operation targets a device of
	// a different model than expected.
	ErrWrongModel = errors.New("device: wrong model")

	// ErrNotConnected is returned when an outbound command is attempted
	// on a device with no open transport.
	ErrNotConnected = errors.New("device: not connected")

	// ErrInvalidChannel is returned when a switch operation targets a
	// channel outside 0-1.
	ErrInvalidChannel = errors.New("device: invalid channel")
)

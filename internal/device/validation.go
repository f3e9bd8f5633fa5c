package device

import (
	"fmt"
	"regexp"
)

// deviceIDPattern is the externally-visible id compatibility
// constraint: five ASCII letters, an underscore, four digits.
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z]{5}_\d{4}$`)

// IsValidDeviceID reports whether id matches the device id format.
func IsValidDeviceID(id string) bool {
	return len(id) > 5 && deviceIDPattern.MatchString(id)
}

// ValidateDeviceID returns ErrInvalidDeviceID when id fails the format
// check.
func ValidateDeviceID(id string) error {
	if !IsValidDeviceID(id) {
		return fmt.Errorf("%w: %q (want five letters, underscore, four digits)", ErrInvalidDeviceID, id)
	}
	return nil
}

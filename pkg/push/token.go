package push

import (
	"fmt"
	"regexp"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// Device tokens are issued by the mobile OS push subsystem as exactly 64
// hexadecimal characters, case-insensitive.
var deviceTokenPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidateDeviceToken checks the device token shape. Any mutation of the
// endpoint store is preceded by this check.
func ValidateDeviceToken(token string) error {
	if len(token) != 64 {
		return &retry.ValidationError{
			Field:  "device_token",
			Reason: fmt.Sprintf("must be 64 characters, got %d", len(token)),
		}
	}
	if !deviceTokenPattern.MatchString(token) {
		return &retry.ValidationError{
			Field:  "device_token",
			Reason: "must contain only hexadecimal characters",
		}
	}
	return nil
}

// Package identity generates the process-lifetime device identifier.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

// NewDeviceID returns a fresh "DEVICE-XXXXXXXX" identifier, where XXXXXXXX
// is 8 uppercase hex digits. It is generated once per process and held for
// the process lifetime by the caller.
func NewDeviceID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "DEVICE-" + raw[:8]
}

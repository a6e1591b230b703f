package identity

import (
	"regexp"
	"testing"
)

var deviceIDPattern = regexp.MustCompile(`^DEVICE-[0-9A-F]{8}$`)

func TestNewDeviceIDFormat(t *testing.T) {
	id := NewDeviceID()
	if !deviceIDPattern.MatchString(id) {
		t.Errorf("expected id matching %s, got %s", deviceIDPattern.String(), id)
	}
}

func TestNewDeviceIDUnique(t *testing.T) {
	first := NewDeviceID()
	second := NewDeviceID()
	if first == second {
		t.Errorf("expected distinct ids, got %s twice", first)
	}
}

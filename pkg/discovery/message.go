// Package discovery implements the Announcer (A) and Discovery Listener
// (D): link-local UDP hello broadcast/receive for zero-configuration peer
// discovery.
//
// Grounded on Redsskull-p2pchat's pkg/discovery/message.go and
// multicast.go, adapted from a joined multicast group to broadcast-to-every-
// interface per spec (some hotspot stacks block multicast/broadcast
// selectively, so every local broadcast address is tried independently).
package discovery

import (
	"encoding/json"
	"fmt"
)

// Magic is the literal 22-byte prefix that marks a datagram as a mesh
// hello. Anything not starting with this prefix is ignored by the
// listener without even attempting a JSON parse.
const Magic = "MESHSENTINEL_HELLO_v1|"

// Hello is the payload carried after Magic in a discovery datagram.
type Hello struct {
	DeviceID  string `json:"device_id"`
	TCPPort   int    `json:"tcp_port"`
	FlaskPort int    `json:"flask_port"`
	Version   string `json:"version"`
}

// Encode serializes h with the magic prefix, ready to send as one datagram.
func Encode(h Hello) []byte {
	body, _ := json.Marshal(h)
	return append([]byte(Magic), body...)
}

// Decode strips the magic prefix and parses the trailing JSON. Returns an
// error if the prefix is missing or the body doesn't parse.
func Decode(data []byte) (Hello, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return Hello{}, fmt.Errorf("missing discovery magic")
	}
	var h Hello
	if err := json.Unmarshal(data[len(Magic):], &h); err != nil {
		return Hello{}, fmt.Errorf("malformed hello payload: %w", err)
	}
	return h, nil
}

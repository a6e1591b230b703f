// Package mesh implements the Event Core (E) and Transport (T): the
// flood-and-dedupe gossip protocol, hop-graph recording, trust
// computation, and the TCP wire layer that carries alert packets between
// nodes.
//
// Grounded on Redsskull-p2pchat's pkg/chat (chatmessage.go,
// communication.go, messagehistory.go), re-purposed from a broadcast chat
// protocol (one message type, history list, no relay) to a gossip-flood
// alert protocol (typed packets, dedupe-on-first-sight, hop counting,
// device-id rewriting at every relay).
package mesh

import (
	"encoding/json"
	"fmt"
)

const (
	maxDescriptionLen = 280
	maxLocationLen    = 100
)

// AlertPacket is the wire + in-memory shape carried as JSON lines over TCP.
type AlertPacket struct {
	EventID          string `json:"event_id"`
	Type             string `json:"type"`
	Timestamp        int64  `json:"timestamp"`
	DeviceID         string `json:"device_id"`
	HopCount         int    `json:"hop_count"`
	IsAuthorizedNode bool   `json:"is_authorized_node"`
	Description      string `json:"description"`
	Location         string `json:"location"`
}

// rawFrame is the tagged-union wire shape: alert frames carry a non-empty
// event_id, keepalive frames carry type "KEEPALIVE" and no event_id.
// Parsing into this struct first, rather than inheriting the dynamic
// typing of the wire JSON, lets ParseFrame discard unknown shapes cleanly.
type rawFrame struct {
	EventID          *string `json:"event_id"`
	Type             string  `json:"type"`
	Timestamp        int64   `json:"timestamp"`
	DeviceID         string  `json:"device_id"`
	HopCount         int     `json:"hop_count"`
	IsAuthorizedNode bool    `json:"is_authorized_node"`
	Description      string  `json:"description"`
	Location         string  `json:"location"`
}

// IsKeepalive reports whether this packet is the synthetic keepalive shape
// (event_id == nil/empty). The Event Core's Ingest drops such a frame
// silently by the same empty-event_id check, rather than treating an
// absent event_id as an error.
func (p AlertPacket) IsKeepalive() bool {
	return p.EventID == ""
}

// NewKeepaliveLine builds the newline-terminated JSON line for a keepalive
// frame: {type: "KEEPALIVE", device_id, event_id: null, hop_count: 0,
// timestamp}.
func NewKeepaliveLine(deviceID string, timestamp int64) []byte {
	frame := struct {
		Type      string  `json:"type"`
		DeviceID  string  `json:"device_id"`
		EventID   *string `json:"event_id"`
		HopCount  int     `json:"hop_count"`
		Timestamp int64   `json:"timestamp"`
	}{
		Type:      "KEEPALIVE",
		DeviceID:  deviceID,
		EventID:   nil,
		HopCount:  0,
		Timestamp: timestamp,
	}
	body, _ := json.Marshal(frame)
	return append(body, '\n')
}

// EncodeLine serializes an alert packet as one newline-terminated JSON
// line, ready to write to a TCP connection.
func EncodeLine(p AlertPacket) []byte {
	body, _ := json.Marshal(p)
	return append(body, '\n')
}

// ParseFrame parses one newline-delimited JSON frame. It returns a zero
// AlertPacket with IsKeepalive() == true for both keepalive frames and any
// alert-shaped frame lacking an event_id; the Event Core's Ingest treats
// both as "drop silently" per the same rule. A malformed JSON line is
// reported as an error so the caller can log-and-skip without tearing
// down the connection.
func ParseFrame(line []byte) (AlertPacket, error) {
	var raw rawFrame
	if err := json.Unmarshal(line, &raw); err != nil {
		return AlertPacket{}, fmt.Errorf("malformed frame: %w", err)
	}

	if raw.EventID == nil || *raw.EventID == "" {
		return AlertPacket{}, nil
	}

	return AlertPacket{
		EventID:          *raw.EventID,
		Type:             raw.Type,
		Timestamp:        raw.Timestamp,
		DeviceID:         raw.DeviceID,
		HopCount:         raw.HopCount,
		IsAuthorizedNode: raw.IsAuthorizedNode,
		Description:      truncate(raw.Description, maxDescriptionLen),
		Location:         truncate(raw.Location, maxLocationLen),
	}, nil
}

// TruncateFields applies the same description/location length caps used by
// ParseFrame, for callers (the HTTP surface) building a packet directly
// rather than parsing one off the wire.
func TruncateFields(description, location string) (string, string) {
	return truncate(description, maxDescriptionLen), truncate(location, maxLocationLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

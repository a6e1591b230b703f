package mesh

import "testing"

func TestParseFrameAlert(t *testing.T) {
	line := EncodeLine(AlertPacket{
		EventID: "E1", Type: "FIRE", Timestamp: 1000, DeviceID: "DEVICE-AAAAAAAA",
		HopCount: 0, IsAuthorizedNode: false, Description: "smoke on 3rd floor", Location: "Dorm A",
	})

	pkt, err := ParseFrame(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.EventID != "E1" || pkt.Type != "FIRE" {
		t.Errorf("unexpected packet: %+v", pkt)
	}
}

func TestParseFrameKeepaliveIsDropped(t *testing.T) {
	line := NewKeepaliveLine("DEVICE-AAAAAAAA", 1000)

	pkt, err := ParseFrame(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pkt.IsKeepalive() {
		t.Error("expected keepalive frame to parse as IsKeepalive()")
	}
}

func TestParseFrameMissingEventIDTreatedAsKeepalive(t *testing.T) {
	pkt, err := ParseFrame([]byte(`{"type":"FIRE","device_id":"DEVICE-AAAAAAAA"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pkt.IsKeepalive() {
		t.Error("expected a frame with no event_id to be treated as keepalive")
	}
}

func TestParseFrameRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseFrameTruncatesOversizedFields(t *testing.T) {
	longDesc := make([]byte, 400)
	for i := range longDesc {
		longDesc[i] = 'x'
	}
	longLoc := make([]byte, 150)
	for i := range longLoc {
		longLoc[i] = 'y'
	}

	line := EncodeLine(AlertPacket{
		EventID: "E2", Type: "MEDICAL", DeviceID: "DEVICE-AAAAAAAA",
		Description: string(longDesc), Location: string(longLoc),
	})

	pkt, err := ParseFrame(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pkt.Description) != maxDescriptionLen {
		t.Errorf("expected description truncated to %d, got %d", maxDescriptionLen, len(pkt.Description))
	}
	if len(pkt.Location) != maxLocationLen {
		t.Errorf("expected location truncated to %d, got %d", maxLocationLen, len(pkt.Location))
	}
}

package discovery

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Hello{DeviceID: "DEVICE-AB12CD34", TCPPort: 5555, FlaskPort: 5000, Version: "1.0"}
	data := Encode(h)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Errorf("expected %+v, got %+v", h, got)
	}
}

func TestDecodeRejectsMissingMagic(t *testing.T) {
	if _, err := Decode([]byte(`{"device_id":"DEVICE-AB12CD34"}`)); err == nil {
		t.Error("expected error for payload missing the discovery magic")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	bad := append([]byte(Magic), []byte("not json")...)
	if _, err := Decode(bad); err == nil {
		t.Error("expected error for malformed JSON body")
	}
}

func TestMagicLength(t *testing.T) {
	if len(Magic) != 22 {
		t.Errorf("expected 22-byte magic, got %d bytes", len(Magic))
	}
}

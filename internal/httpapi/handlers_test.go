package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meshsentinel/internal/registry"
	"meshsentinel/pkg/mesh"
)

type noopRelayer struct{}

func (noopRelayer) RelayTo(mesh.AlertPacket, []string) {}

type noopSync struct{}

func (noopSync) PushSync(string, string, mesh.SyncPayload) {}

func newTestServer() *Server {
	reg := registry.New()
	events := mesh.NewEventCore("DEVICE-SELF0001", func() string { return "10.0.0.1" }, reg, noopRelayer{}, noopSync{})
	return &Server{DeviceID: "DEVICE-SELF0001", Events: events, Registry: reg}
}

func TestBroadcastThenGetEventsRoundTrips(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	body := `{"event_id":"E1","type":"FIRE","device_id":"DEVICE-ORIGIN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/broadcast", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)

	var events []eventView
	if err := json.Unmarshal(getRec.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "E1" {
		t.Errorf("expected one event E1, got %+v", events)
	}
}

func TestBroadcastMissingFieldReturns400(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/api/broadcast", strings.NewReader(`{"type":"FIRE"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyOwnOriginReturns400(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	broadcastReq := httptest.NewRequest(http.MethodPost, "/api/broadcast",
		strings.NewReader(`{"event_id":"E2","type":"FIRE","device_id":"DEVICE-SELF0001"}`))
	router.ServeHTTP(httptest.NewRecorder(), broadcastReq)

	verifyReq := httptest.NewRequest(http.MethodPost, "/api/events/E2/verify", nil)
	verifyRec := httptest.NewRecorder()
	router.ServeHTTP(verifyRec, verifyReq)

	if verifyRec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for self-verification, got %d", verifyRec.Code)
	}
}

func TestVerifyUnknownEventReturns404(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/api/events/nonexistent/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAddAndRemovePeer(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	addReq := httptest.NewRequest(http.MethodPost, "/api/peers", strings.NewReader(`{"ip":"10.0.0.50"}`))
	addRec := httptest.NewRecorder()
	router.ServeHTTP(addRec, addReq)
	if addRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", addRec.Code)
	}
	if !s.Registry.IsManual("10.0.0.50") {
		t.Fatal("expected 10.0.0.50 to be registered as a manual peer")
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/peers/10.0.0.50", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", delRec.Code)
	}
	if s.Registry.IsManual("10.0.0.50") {
		t.Error("expected 10.0.0.50 to be removed")
	}
}

func TestEmergencyContactsReturnsStaticTable(t *testing.T) {
	s := newTestServer()
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/emergency-contacts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var contacts []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &contacts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(contacts) == 0 {
		t.Error("expected a non-empty emergency contacts table")
	}
}

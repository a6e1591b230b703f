package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"meshsentinel/pkg/mesh"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type eventView struct {
	EventID          string   `json:"event_id"`
	Type             string   `json:"type"`
	Timestamp        int64    `json:"timestamp"`
	DeviceID         string   `json:"device_id"`
	HopCount         int      `json:"hop_count"`
	IsAuthorizedNode bool     `json:"is_authorized_node"`
	Description      string   `json:"description"`
	Location         string   `json:"location"`
	DevicesReached   int      `json:"devices_reached"`
	CrossChecks      []string `json:"cross_checks"`
	CrossChecksCount int      `json:"cross_checks_count"`
	PendingVerify    bool     `json:"pending_verify"`
	Dismissed        bool     `json:"dismissed"`
	AuthorizedNode   bool     `json:"authorized_node"`
	Trust            string   `json:"trust"`
	MaxHop           int      `json:"max_hop"`
	FirstSeen        int64    `json:"first_seen"`
}

func toEventView(s mesh.EventSnapshot) eventView {
	return eventView{
		EventID:          s.EventID,
		Type:             s.Packet.Type,
		Timestamp:        s.Packet.Timestamp,
		DeviceID:         s.Packet.DeviceID,
		HopCount:         s.Packet.HopCount,
		IsAuthorizedNode: s.Packet.IsAuthorizedNode,
		Description:      s.Packet.Description,
		Location:         s.Packet.Location,
		DevicesReached:   s.DevicesReachedCount,
		CrossChecks:      s.CrossChecks,
		CrossChecksCount: len(s.CrossChecks),
		PendingVerify:    s.PendingVerify,
		Dismissed:        s.Dismissed,
		AuthorizedNode:   s.AuthorizedNode,
		Trust:            s.Trust,
		MaxHop:           s.MaxHop,
		FirstSeen:        s.FirstSeen.Unix(),
	}
}

// GET /api/events
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	events := s.Events.AllEvents()
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, toEventView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/pending-verifications
func (s *Server) handlePendingVerifications(w http.ResponseWriter, r *http.Request) {
	events := s.Events.PendingVerifications()
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, toEventView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type broadcastRequest struct {
	EventID          string `json:"event_id"`
	Type             string `json:"type"`
	DeviceID         string `json:"device_id"`
	Timestamp        int64  `json:"timestamp"`
	IsAuthorizedNode bool   `json:"is_authorized_node"`
	Description      string `json:"description"`
	Location         string `json:"location"`
}

// POST /api/broadcast
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "missing field: event_id")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "missing field: type")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "missing field: device_id")
		return
	}

	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	description, location := mesh.TruncateFields(req.Description, req.Location)

	pkt := mesh.AlertPacket{
		EventID:          req.EventID,
		Type:             req.Type,
		Timestamp:        timestamp,
		DeviceID:         req.DeviceID,
		HopCount:         0,
		IsAuthorizedNode: req.IsAuthorizedNode,
		Description:      description,
		Location:         location,
	}
	s.Events.Ingest(pkt, "", true)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "event_id": pkt.EventID})
}

// POST /api/events/{id}/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	switch err := s.Events.Verify(id); err {
	case nil:
		snap, _ := s.Events.Get(id)
		writeJSON(w, http.StatusOK, toEventView(snap))
	case mesh.ErrEventNotFound:
		writeError(w, http.StatusNotFound, "event not found")
	case mesh.ErrSelfVerification:
		writeError(w, http.StatusBadRequest, "cannot verify an alert this device originated")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type syncRequest struct {
	VerifiedBy string `json:"verified_by"`
}

// POST /api/events/{id}/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VerifiedBy == "" {
		writeError(w, http.StatusBadRequest, "missing field: verified_by")
		return
	}
	if err := s.Events.SyncFromPeer(id, req.VerifiedBy); err != nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/events/{id}/dismiss
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Events.Dismiss(id); err != nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/events/{id}/authorize
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Events.Authorize(id); err != nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "trust": mesh.TrustHigh})
}

// DELETE /api/events
func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	s.Events.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/peers
func (s *Server) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	discovered := s.Registry.Discovered()
	discView := make([]map[string]any, 0, len(discovered))
	for _, d := range discovered {
		discView = append(discView, map[string]any{
			"ip":            d.IP,
			"last_seen_ago": d.LastSeenAgo.Seconds(),
			"source":        "auto",
		})
	}

	manual := s.Registry.Manual()
	manualView := make([]map[string]any, 0, len(manual))
	for _, ip := range manual {
		manualView = append(manualView, map[string]any{"ip": ip, "source": "manual"})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"known_peers":       s.Registry.Known(),
		"discovered_peers":  discView,
		"manual_peers":      manualView,
		"device_id":         s.DeviceID,
		"my_ips":            myIPs(),
	})
}

type addPeerRequest struct {
	IP string `json:"ip"`
}

// POST /api/peers
func (s *Server) handleAddPeer(w http.ResponseWriter, r *http.Request) {
	var req addPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.IP) == "" {
		writeError(w, http.StatusBadRequest, "missing field: ip")
		return
	}
	s.Registry.AddManual(strings.TrimSpace(req.IP))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "known_peers": s.Registry.Known()})
}

// DELETE /api/peers/{ip}
func (s *Server) handleRemovePeer(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	s.Registry.RemoveManual(ip)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "known_peers": s.Registry.Known()})
}

// GET /api/device
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"device_id": s.DeviceID, "my_ips": myIPs()})
}

// GET /api/hops[?event_id=]
func (s *Server) handleHops(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("event_id")
	graph := s.Events.Hops(filter)

	nodes := make([]map[string]any, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		nodes = append(nodes, map[string]any{
			"id": n.ID, "label": n.Label, "is_self": n.IsSelf, "ip": n.IP, "online": n.Online,
		})
	}
	edges := make([]map[string]any, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		edges = append(edges, map[string]any{
			"from": e.From, "to": e.To, "hop": e.Hop, "ts": e.Timestamp.Unix(), "event_id": e.EventID,
		})
	}
	events := make(map[string]map[string]any, len(graph.Events))
	for id, m := range graph.Events {
		events[id] = map[string]any{"type": m.Type, "trust": m.Trust, "cross_checks_count": m.CrossChecksCount}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":   nodes,
		"edges":   edges,
		"events":  events,
		"self_id": graph.SelfID,
	})
}

// POST /api/scan
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.Scanner != nil {
		s.Scanner.ScanNow()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var emergencyContacts = []map[string]string{
	{"name": "UNC Campus Police", "number": "919-962-8100", "type": "police"},
	{"name": "Chapel Hill Police Dispatch", "number": "919-968-2760", "type": "police"},
	{"name": "UNC Health ER", "number": "919-966-4131", "type": "medical"},
	{"name": "Chapel Hill Fire Dept", "number": "919-968-2784", "type": "fire"},
	{"name": "Orange County 911", "number": "911", "type": "emergency"},
	{"name": "Duke Energy Outage Line", "number": "800-769-3766", "type": "utility"},
	{"name": "NC Emergency Management", "number": "919-825-2500", "type": "state"},
	{"name": "Poison Control", "number": "800-222-1222", "type": "medical"},
}

// GET /api/emergency-contacts
func (s *Server) handleEmergencyContacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, emergencyContacts)
}

// POST /api/cluster
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if s.Cluster == nil {
		writeError(w, http.StatusServiceUnavailable, "clustering collaborator not configured")
		return
	}
	events := s.Events.AllEvents()
	result := s.Cluster.Cluster(r.Context(), events)
	writeJSON(w, http.StatusOK, result)
}

// GET /api/cluster/status
func (s *Server) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	if s.Cluster == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ollama_available": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ollama_available": s.Cluster.Available(r.Context()),
		"host":             s.Cluster.Host,
		"model":            s.Cluster.Model,
	})
}

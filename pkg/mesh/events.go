package mesh

import (
	"errors"
	"sort"
	"sync"
	"time"

	"meshsentinel/pkg/logger"
)

// Trust levels, per the pure trust function in spec §4.7.
const (
	TrustLow    = "LOW"
	TrustMedium = "MEDIUM"
	TrustHigh   = "HIGH"
)

// ErrEventNotFound is returned by operations addressing an unknown event_id.
var ErrEventNotFound = errors.New("event not found")

// ErrSelfVerification is returned when a node attempts to verify an event
// it originated.
var ErrSelfVerification = errors.New("cannot verify an alert this device originated")

// EventRecord is the local-only record for one event_id.
type EventRecord struct {
	Packet         AlertPacket
	DevicesReached map[string]struct{}
	CrossChecks    map[string]struct{}
	PendingVerify  bool
	Dismissed      bool
	AuthorizedNode bool
	Trust          string
	MaxHop         int
	FirstSeen      time.Time
}

// HopEdge is one directed relay edge between two device identifiers for a
// given event.
type HopEdge struct {
	FromDevice string
	ToDevice   string
	Hop        int
	Timestamp  time.Time
	FromIP     string
	ToIP       string
}

// Relayer sends an augmented packet to a fixed set of peer IPs. Transport
// implements this; Event Core only depends on the interface so it never
// needs to know about sockets.
type Relayer interface {
	RelayTo(pkt AlertPacket, targets []string)
}

// PeerLister answers "what IPs should I currently contact?" — the Link
// Registry implements this.
type PeerLister interface {
	Known() []string
}

// EventCore implements the gossip protocol described in spec §4.7: it is
// the heart of the node. All mutating operations run under eventsMu; hop
// recording runs under its own hopMu, per the four-disjoint-regions
// concurrency model (no task ever holds two of the regions' locks at once).
type EventCore struct {
	selfDeviceID string
	selfIP       func() string

	registry  PeerLister
	transport Relayer
	sync      SyncPusher

	eventsMu sync.RWMutex
	events   map[string]*EventRecord

	hopMu  sync.Mutex
	hopLog map[string][]HopEdge
}

// SyncPusher asynchronously notifies a peer of an updated verification
// state after a manual verify. Implemented by the HTTP client in sync.go.
type SyncPusher interface {
	PushSync(peerIP string, eventID string, payload SyncPayload)
}

// SyncPayload is the lightweight body pushed to a peer's /sync endpoint.
type SyncPayload struct {
	VerifiedBy  string   `json:"verified_by"`
	Trust       string   `json:"trust"`
	CrossChecks []string `json:"cross_checks"`
}

// NewEventCore constructs an Event Core for selfDeviceID, relaying through
// transport to peers named by registry, and pushing verify syncs via sync.
func NewEventCore(selfDeviceID string, selfIP func() string, registry PeerLister, transport Relayer, sync SyncPusher) *EventCore {
	return &EventCore{
		selfDeviceID: selfDeviceID,
		selfIP:       selfIP,
		registry:     registry,
		transport:    transport,
		sync:         sync,
		events:       make(map[string]*EventRecord),
		hopLog:       make(map[string][]HopEdge),
	}
}

// computeTrust is the pure trust function: a function of authorization and
// the count of cross-checks excluding the event's original device_id.
func computeTrust(rec *EventRecord) string {
	if rec.AuthorizedNode {
		return TrustHigh
	}
	n := 0
	for device := range rec.CrossChecks {
		if device != rec.Packet.DeviceID {
			n++
		}
	}
	switch {
	case n >= 9:
		return TrustHigh
	case n >= 2:
		return TrustMedium
	default:
		return TrustLow
	}
}

// recordHop appends a directed edge, deduplicated by (from, to): a later
// arrival for an already-recorded pair is discarded.
func (ec *EventCore) recordHop(eventID, from, to string, hop int, fromIP, toIP string) {
	ec.hopMu.Lock()
	defer ec.hopMu.Unlock()

	for _, edge := range ec.hopLog[eventID] {
		if edge.FromDevice == from && edge.ToDevice == to {
			return
		}
	}
	ec.hopLog[eventID] = append(ec.hopLog[eventID], HopEdge{
		FromDevice: from,
		ToDevice:   to,
		Hop:        hop,
		Timestamp:  time.Now(),
		FromIP:     fromIP,
		ToIP:       toIP,
	})
}

// Ingest implements the single operation of the gossip protocol: dedupe,
// state transition, trust calculation, hop-graph recording, and the relay
// decision. See spec §4.7 for the ordering this follows exactly.
func (ec *EventCore) Ingest(pkt AlertPacket, receivedFromIP string, mayRelay bool) {
	if pkt.EventID == "" {
		return
	}

	fromPeer := receivedFromIP != ""
	if fromPeer {
		ec.recordHop(pkt.EventID, pkt.DeviceID, ec.selfDeviceID, pkt.HopCount, receivedFromIP, ec.selfIP())
	}

	ec.eventsMu.Lock()
	rec, exists := ec.events[pkt.EventID]
	if exists {
		rec.DevicesReached[pkt.DeviceID] = struct{}{}
		if pkt.HopCount > rec.MaxHop {
			rec.MaxHop = pkt.HopCount
		}
		ec.eventsMu.Unlock()
		return // duplicate branch: augment only, never relay again
	}

	rec = &EventRecord{
		Packet:         pkt,
		DevicesReached: map[string]struct{}{ec.selfDeviceID: {}, pkt.DeviceID: {}},
		CrossChecks:    map[string]struct{}{},
		PendingVerify:  fromPeer,
		Dismissed:      false,
		AuthorizedNode: pkt.IsAuthorizedNode,
		MaxHop:         pkt.HopCount,
		FirstSeen:      time.Now(),
	}
	rec.Trust = computeTrust(rec)
	ec.events[pkt.EventID] = rec
	ec.eventsMu.Unlock()

	logger.WithFields(logger.Fields{
		"event_id": pkt.EventID,
		"type":     pkt.Type,
		"device":   pkt.DeviceID,
	}).Info("new event")

	if !mayRelay {
		return
	}

	augmented := pkt
	augmented.HopCount = pkt.HopCount + 1
	augmented.DeviceID = ec.selfDeviceID

	targets := ec.registry.Known()
	selfIP := ec.selfIP()
	for _, ip := range targets {
		ec.recordHop(pkt.EventID, ec.selfDeviceID, "PEER@"+ip, augmented.HopCount, selfIP, ip)
	}
	ec.transport.RelayTo(augmented, targets)
}

// Verify implements the operator-confirms transition. Refuses to verify an
// event this device originated. Re-broadcasts the original packet (which
// peers will treat as a duplicate, causing no further relay there) and
// asynchronously pushes a sync notification carrying the updated trust and
// cross-check set, per the Open Question in spec §9(a).
func (ec *EventCore) Verify(eventID string) error {
	ec.eventsMu.Lock()
	rec, ok := ec.events[eventID]
	if !ok {
		ec.eventsMu.Unlock()
		return ErrEventNotFound
	}
	if rec.Packet.DeviceID == ec.selfDeviceID {
		ec.eventsMu.Unlock()
		return ErrSelfVerification
	}

	rec.CrossChecks[ec.selfDeviceID] = struct{}{}
	rec.PendingVerify = false
	rec.Dismissed = false
	rec.Trust = computeTrust(rec)

	pkt := rec.Packet
	maxHop := rec.MaxHop
	trust := rec.Trust
	crossChecks := snapshotSet(rec.CrossChecks)
	ec.eventsMu.Unlock()

	augmented := pkt
	augmented.HopCount = maxHop + 1
	augmented.DeviceID = ec.selfDeviceID

	targets := ec.registry.Known()
	ec.transport.RelayTo(augmented, targets)

	if ec.sync != nil {
		payload := SyncPayload{VerifiedBy: ec.selfDeviceID, Trust: trust, CrossChecks: crossChecks}
		for _, ip := range targets {
			go ec.sync.PushSync(ip, eventID, payload)
		}
	}
	return nil
}

// Dismiss marks the event dismissed for this device. Idempotent.
func (ec *EventCore) Dismiss(eventID string) error {
	ec.eventsMu.Lock()
	defer ec.eventsMu.Unlock()

	rec, ok := ec.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	rec.PendingVerify = false
	rec.Dismissed = true
	return nil
}

// Authorize forces trust to HIGH and clears the pending-verify flag.
func (ec *EventCore) Authorize(eventID string) error {
	ec.eventsMu.Lock()
	defer ec.eventsMu.Unlock()

	rec, ok := ec.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	rec.AuthorizedNode = true
	rec.PendingVerify = false
	rec.Trust = computeTrust(rec)
	return nil
}

// SyncFromPeer applies a peer's verification push: add the verifier to
// cross_checks and recompute trust locally (the peer's reported trust is
// not trusted directly, since trust is always a pure recomputation).
func (ec *EventCore) SyncFromPeer(eventID, verifiedBy string) error {
	ec.eventsMu.Lock()
	defer ec.eventsMu.Unlock()

	rec, ok := ec.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	rec.CrossChecks[verifiedBy] = struct{}{}
	rec.Trust = computeTrust(rec)
	return nil
}

// ClearAll wipes the event table and hop log.
func (ec *EventCore) ClearAll() {
	ec.eventsMu.Lock()
	ec.events = make(map[string]*EventRecord)
	ec.eventsMu.Unlock()

	ec.hopMu.Lock()
	ec.hopLog = make(map[string][]HopEdge)
	ec.hopMu.Unlock()
}

// EventSnapshot is an immutable copy of one event record for read paths
// (HTTP handlers) that must not race with concurrent mutation.
type EventSnapshot struct {
	EventID             string
	Packet              AlertPacket
	DevicesReachedCount int
	CrossChecks         []string
	PendingVerify       bool
	Dismissed           bool
	AuthorizedNode      bool
	Trust               string
	MaxHop              int
	FirstSeen           time.Time
}

func snapshot(eventID string, rec *EventRecord) EventSnapshot {
	return EventSnapshot{
		EventID:             eventID,
		Packet:              rec.Packet,
		DevicesReachedCount: len(rec.DevicesReached),
		CrossChecks:         snapshotSet(rec.CrossChecks),
		PendingVerify:       rec.PendingVerify,
		Dismissed:           rec.Dismissed,
		AuthorizedNode:      rec.AuthorizedNode,
		Trust:               rec.Trust,
		MaxHop:              rec.MaxHop,
		FirstSeen:           rec.FirstSeen,
	}
}

func snapshotSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns a snapshot of one event, or false if unknown.
func (ec *EventCore) Get(eventID string) (EventSnapshot, bool) {
	ec.eventsMu.RLock()
	defer ec.eventsMu.RUnlock()
	rec, ok := ec.events[eventID]
	if !ok {
		return EventSnapshot{}, false
	}
	return snapshot(eventID, rec), true
}

// AllEvents returns every event sorted by first_seen descending.
func (ec *EventCore) AllEvents() []EventSnapshot {
	ec.eventsMu.RLock()
	defer ec.eventsMu.RUnlock()

	out := make([]EventSnapshot, 0, len(ec.events))
	for id, rec := range ec.events {
		out = append(out, snapshot(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.After(out[j].FirstSeen) })
	return out
}

// PendingVerifications returns events with pending_verify && !dismissed,
// ascending by first_seen.
func (ec *EventCore) PendingVerifications() []EventSnapshot {
	ec.eventsMu.RLock()
	defer ec.eventsMu.RUnlock()

	var out []EventSnapshot
	for id, rec := range ec.events {
		if rec.PendingVerify && !rec.Dismissed {
			out = append(out, snapshot(id, rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

// HopNode describes one device or peer vertex in the relay graph.
type HopNode struct {
	ID     string
	Label  string
	IsSelf bool
	IP     string
	Online bool
}

// HopEdgeView is one edge annotated with the event it belongs to, for the
// /api/hops response.
type HopEdgeView struct {
	From      string
	To        string
	Hop       int
	Timestamp time.Time
	EventID   string
}

// HopEventMeta is the per-event summary attached to a hop graph response.
type HopEventMeta struct {
	Type             string
	Trust            string
	CrossChecksCount int
}

// HopGraph is the full response for /api/hops, optionally filtered to one
// event_id.
type HopGraph struct {
	Nodes  []HopNode
	Edges  []HopEdgeView
	Events map[string]HopEventMeta
	SelfID string
}

// cleanLabel renders a device/peer identifier as a short label for graph
// display: "DEVICE-AB12CD34" -> "AB12CD34", "PEER@1.2.3.4" -> "1.2.3.4",
// anything else truncated to 10 characters. Carried forward from
// original_source/server.py's clean_label, which spec.md's §6 leaves
// unspecified.
func cleanLabel(deviceID string) string {
	switch {
	case len(deviceID) > 5 && deviceID[:5] == "PEER@":
		return deviceID[5:]
	case len(deviceID) > 7 && deviceID[:7] == "DEVICE-":
		return deviceID[7:]
	case len(deviceID) > 10:
		return deviceID[:10]
	default:
		return deviceID
	}
}

// Hops builds the relay graph for all events, or one event_id if filterEventID
// is non-empty. Known peers with no hop edges yet, and self, are always
// included as nodes — carried forward from server.py's get_hops.
func (ec *EventCore) Hops(filterEventID string) HopGraph {
	nodes := make(map[string]HopNode)
	var edges []HopEdgeView

	ec.hopMu.Lock()
	var items map[string][]HopEdge
	if filterEventID != "" {
		if found, ok := ec.hopLog[filterEventID]; ok {
			items = map[string][]HopEdge{filterEventID: found}
		} else {
			items = map[string][]HopEdge{}
		}
	} else {
		items = make(map[string][]HopEdge, len(ec.hopLog))
		for k, v := range ec.hopLog {
			items[k] = v
		}
	}
	ec.hopMu.Unlock()

	for eventID, hops := range items {
		for _, h := range hops {
			for _, id := range []string{h.FromDevice, h.ToDevice} {
				if _, ok := nodes[id]; !ok {
					ip := h.ToIP
					if id == h.FromDevice {
						ip = h.FromIP
					}
					nodes[id] = HopNode{ID: id, Label: cleanLabel(id), IsSelf: id == ec.selfDeviceID, IP: ip}
				}
			}
			edges = append(edges, HopEdgeView{From: h.FromDevice, To: h.ToDevice, Hop: h.Hop, Timestamp: h.Timestamp, EventID: eventID})
		}
	}

	eventsMeta := make(map[string]HopEventMeta)
	ec.eventsMu.RLock()
	for eventID := range items {
		if rec, ok := ec.events[eventID]; ok {
			eventsMeta[eventID] = HopEventMeta{
				Type:             rec.Packet.Type,
				Trust:            rec.Trust,
				CrossChecksCount: len(rec.CrossChecks),
			}
		}
	}
	ec.eventsMu.RUnlock()

	if ec.registry != nil {
		for _, ip := range ec.registry.Known() {
			id := "PEER@" + ip
			if _, ok := nodes[id]; !ok {
				nodes[id] = HopNode{ID: id, Label: ip, IsSelf: false, IP: ip, Online: true}
			}
		}
	}

	if _, ok := nodes[ec.selfDeviceID]; !ok {
		nodes[ec.selfDeviceID] = HopNode{ID: ec.selfDeviceID, Label: cleanLabel(ec.selfDeviceID), IsSelf: true, IP: ec.selfIP()}
	}

	nodeList := make([]HopNode, 0, len(nodes))
	for _, n := range nodes {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].ID < nodeList[j].ID })

	return HopGraph{Nodes: nodeList, Edges: edges, Events: eventsMeta, SelfID: ec.selfDeviceID}
}

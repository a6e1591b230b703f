// Package httpapi implements the HTTP Surface (H): the read/write JSON
// endpoints a dashboard consumes to display events, peers, and the relay
// graph, and to drive verification and manual broadcast.
//
// Redsskull-p2pchat has no HTTP layer of its own — it is a TUI chat
// client — so this package is grounded directly on the route table and
// response shapes, and on the gorilla/mux + rs/cors stack carried in the
// wider example corpus for exactly this concern.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"meshsentinel/internal/cluster"
	"meshsentinel/internal/netutil"
	"meshsentinel/internal/registry"
	"meshsentinel/pkg/logger"
	"meshsentinel/pkg/mesh"
)

// Scanner is the subset of mesh.Keepalive the /api/scan handler needs.
type Scanner interface {
	ScanNow()
}

// Server holds every dependency an HTTP handler needs. It carries no state
// of its own; all state lives in the Event Core and Link Registry.
type Server struct {
	DeviceID string
	Events   *mesh.EventCore
	Registry *registry.Registry
	Scanner  Scanner
	Cluster  *cluster.Collaborator
}

// NewRouter builds the full route table in a *mux.Router wrapped with
// permissive CORS, ready to pass to http.ListenAndServe.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/events", s.handleGetEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleClearEvents).Methods(http.MethodDelete)
	r.HandleFunc("/api/pending-verifications", s.handlePendingVerifications).Methods(http.MethodGet)
	r.HandleFunc("/api/broadcast", s.handleBroadcast).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}/verify", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}/dismiss", s.handleDismiss).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}/authorize", s.handleAuthorize).Methods(http.MethodPost)
	r.HandleFunc("/api/peers", s.handleGetPeers).Methods(http.MethodGet)
	r.HandleFunc("/api/peers", s.handleAddPeer).Methods(http.MethodPost)
	r.HandleFunc("/api/peers/{ip}", s.handleRemovePeer).Methods(http.MethodDelete)
	r.HandleFunc("/api/device", s.handleDevice).Methods(http.MethodGet)
	r.HandleFunc("/api/hops", s.handleHops).Methods(http.MethodGet)
	r.HandleFunc("/api/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/api/emergency-contacts", s.handleEmergencyContacts).Methods(http.MethodGet)
	r.HandleFunc("/api/cluster", s.handleCluster).Methods(http.MethodPost)
	r.HandleFunc("/api/cluster/status", s.handleClusterStatus).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// ListenAndServe starts the HTTP surface. A bind failure here is the one
// truly fatal resource failure: the node has no dashboard without it.
func ListenAndServe(addr string, s *Server) error {
	logger.Info("HTTP surface listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(s),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func myIPs() []string {
	return netutil.LocalIPs()
}

// Package registry implements the Link Registry (L): the node's
// authoritative view of which peer IPs are currently reachable.
//
// Grounded on Redsskull-p2pchat's pkg/discovery/registry.go (PeerRegistry),
// re-keyed from peer ID to peer IP since this mesh identifies peers by
// address rather than a negotiated identity, per the hop-graph/dedupe
// model in events.go.
package registry

import (
	"sync"
	"time"

	"meshsentinel/internal/netutil"
	"meshsentinel/pkg/logger"
)

// DefaultPeerTimeout is the liveness TTL: an auto-discovered peer not
// heard from within this window is no longer considered alive.
const DefaultPeerTimeout = 30 * time.Second

// Registry tracks known peers (manual + auto-discovered) with liveness TTL.
type Registry struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time // ip -> last seen
	manual   []string             // ordered, for stable listing

	timeout time.Duration
}

// New creates a Link Registry with the default liveness TTL.
func New() *Registry {
	return NewWithTimeout(DefaultPeerTimeout)
}

// NewWithTimeout creates a Link Registry with a custom liveness TTL
// (used by tests that want to exercise eviction quickly).
func NewWithTimeout(timeout time.Duration) *Registry {
	return &Registry{
		lastSeen: make(map[string]time.Time),
		timeout:  timeout,
	}
}

// Register marks ip as seen now. First observation logs "discovered".
func (r *Registry) Register(ip string) {
	r.mu.Lock()
	_, existed := r.lastSeen[ip]
	r.lastSeen[ip] = time.Now()
	r.mu.Unlock()

	if !existed {
		logger.Info("discovered peer %s", ip)
	}
}

// AddManual idempotently adds ip to the manual peer list and seeds its
// last-seen time so it is immediately alive.
func (r *Registry) AddManual(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.manual {
		if existing == ip {
			r.lastSeen[ip] = time.Now()
			return
		}
	}
	r.manual = append(r.manual, ip)
	r.lastSeen[ip] = time.Now()
}

// RemoveManual idempotently removes ip from the manual peer list, along
// with the last-seen entry AddManual seeded. A peer that is also reachable
// by auto-discovery will simply reappear on its next hello/keepalive.
func (r *Registry) RemoveManual(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.manual {
		if existing == ip {
			r.manual = append(r.manual[:i], r.manual[i+1:]...)
			delete(r.lastSeen, ip)
			break
		}
	}
}

// IsManual reports whether ip is currently a manually-added peer.
func (r *Registry) IsManual(ip string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.manual {
		if existing == ip {
			return true
		}
	}
	return false
}

// Known returns the alive-union of auto-discovered and manual peers,
// minus this node's own IPs. Manual peers are always considered alive.
func (r *Registry) Known() []string {
	localIPs := netutil.LocalIPs()
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string

	add := func(ip string) {
		if netutil.IsLocal(ip, localIPs) {
			return
		}
		if _, dup := seen[ip]; dup {
			return
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}

	for ip, ts := range r.lastSeen {
		if now.Sub(ts) < r.timeout {
			add(ip)
		}
	}
	for _, ip := range r.manual {
		add(ip)
	}

	return out
}

// DiscoveredSnapshot describes one auto-discovered peer for the HTTP
// surface's /api/peers response.
type DiscoveredSnapshot struct {
	IP          string
	LastSeenAgo time.Duration
}

// Discovered returns currently-alive auto-discovered peers (manual peers
// excluded, matching server.py's "discovered_peers" vs "manual_peers"
// split in the /api/peers response).
func (r *Registry) Discovered() []DiscoveredSnapshot {
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	manual := make(map[string]struct{}, len(r.manual))
	for _, ip := range r.manual {
		manual[ip] = struct{}{}
	}

	var out []DiscoveredSnapshot
	for ip, ts := range r.lastSeen {
		if _, isManual := manual[ip]; isManual {
			continue
		}
		if now.Sub(ts) >= r.timeout {
			continue
		}
		out = append(out, DiscoveredSnapshot{IP: ip, LastSeenAgo: now.Sub(ts)})
	}
	return out
}

// Manual returns the ordered list of manually added peer IPs.
func (r *Registry) Manual() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.manual))
	copy(out, r.manual)
	return out
}

// Expire removes entries not seen within the liveness TTL. Stale lastSeen
// entries of manual peers are removed too; the peers stay known, since
// Known() always re-adds manual peers from the manual list.
func (r *Registry) Expire() {
	now := time.Now()

	r.mu.Lock()
	var expired []string
	for ip, ts := range r.lastSeen {
		if now.Sub(ts) >= r.timeout {
			expired = append(expired, ip)
		}
	}
	for _, ip := range expired {
		delete(r.lastSeen, ip)
	}
	r.mu.Unlock()

	for _, ip := range expired {
		logger.Info("peer timed out: %s", ip)
	}
}

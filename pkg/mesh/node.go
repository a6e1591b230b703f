package mesh

import (
	"context"
	"sync"
	"time"

	"meshsentinel/internal/identity"
	"meshsentinel/internal/netutil"
	"meshsentinel/internal/registry"
	"meshsentinel/pkg/discovery"
	"meshsentinel/pkg/logger"
)

// Config holds the ports and timings a Node is wired with. Zero values for
// the timing fields fall back to each component's own defaults.
type Config struct {
	TCPPort       int
	DiscoveryPort int
	HTTPPort      int
	PeerTimeout   int // seconds; 0 uses registry.DefaultPeerTimeout
}

// Node is the integration layer: this is where UDP discovery, TCP
// transport, the Link Registry, and the Event Core meet. Grounded on
// Redsskull-p2pchat's pkg/chat/chatservice.go ("where UDP discovery meets
// TCP chat"), re-wired for the gossip-flood protocol instead of IRC-style
// broadcast chat.
type Node struct {
	DeviceID string
	Config   Config

	Registry  *registry.Registry
	Transport *Transport
	Events    *EventCore
	Keepalive *Keepalive
	Announcer *discovery.Announcer
	Listener  *discovery.Listener
	SyncPush  *HTTPSyncPusher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode wires every component together without starting any goroutines.
func NewNode(cfg Config) *Node {
	deviceID := identity.NewDeviceID()

	var reg *registry.Registry
	if cfg.PeerTimeout > 0 {
		reg = registry.NewWithTimeout(time.Duration(cfg.PeerTimeout) * time.Second)
	} else {
		reg = registry.New()
	}

	transport := &Transport{Port: cfg.TCPPort, Registry: reg}
	syncPush := NewHTTPSyncPusher(cfg.HTTPPort)

	selfIP := func() string {
		ips := netutil.LocalIPs()
		if len(ips) == 0 {
			return ""
		}
		return ips[0]
	}

	events := NewEventCore(deviceID, selfIP, reg, transport, syncPush)
	transport.Ingest = events

	n := &Node{
		DeviceID:  deviceID,
		Config:    cfg,
		Registry:  reg,
		Transport: transport,
		Events:    events,
		SyncPush:  syncPush,
		Announcer: &discovery.Announcer{
			DeviceID:      deviceID,
			TCPPort:       cfg.TCPPort,
			FlaskPort:     cfg.HTTPPort,
			DiscoveryPort: cfg.DiscoveryPort,
		},
		Listener: &discovery.Listener{
			Port:     cfg.DiscoveryPort,
			Registry: reg,
		},
		Keepalive: &Keepalive{
			DeviceID:  deviceID,
			Port:      cfg.TCPPort,
			Registry:  reg,
			Transport: transport,
		},
	}
	return n
}

// Start launches every background component (L's reaper, A, D, K, T) under
// a shared cancellable context. Each component logs and continues past its
// own resource failures, so Start itself never returns an error.
func (n *Node) Start() {
	n.ctx, n.cancel = context.WithCancel(context.Background())

	logger.Info("starting mesh node %s (tcp=%d discovery=%d http=%d)",
		n.DeviceID, n.Config.TCPPort, n.Config.DiscoveryPort, n.Config.HTTPPort)

	components := []func(context.Context){
		n.Transport.Run,
		n.Announcer.Run,
		n.Listener.Run,
		n.Keepalive.Run,
		func(ctx context.Context) {
			timeout := time.Duration(n.Config.PeerTimeout) * time.Second
			if timeout <= 0 {
				timeout = registry.DefaultPeerTimeout
			}
			registry.RunReaper(ctx, n.Registry, timeout)
		},
	}

	n.wg.Add(len(components))
	for _, run := range components {
		run := run
		go func() {
			defer n.wg.Done()
			run(n.ctx)
		}()
	}
}

// Stop cancels every background component and waits for them to exit.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

// Broadcast originates a brand-new event from this device: hop_count 0,
// device_id this node's own. It is ingested locally with no sender IP, so
// it is stored without pending_verify and no inbound hop edge, and is
// relayed to every known peer.
func (n *Node) Broadcast(eventType, description, location string, authorized bool, newEventID func() string) AlertPacket {
	pkt := AlertPacket{
		EventID:          newEventID(),
		Type:             eventType,
		Timestamp:        time.Now().Unix(),
		DeviceID:         n.DeviceID,
		HopCount:         0,
		IsAuthorizedNode: authorized,
		Description:      description,
		Location:         location,
	}
	n.Events.Ingest(pkt, "", true)
	return pkt
}

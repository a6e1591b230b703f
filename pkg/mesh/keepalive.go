package mesh

import (
	"context"
	"net"
	"strconv"
	"time"

	"meshsentinel/internal/netutil"
	"meshsentinel/pkg/logger"
)

// Keepalive intervals and scanner timings, per spec §9 note (b): the
// subnet scan runs far less often than keepalives, and its per-host probe
// is cheap and short enough that a full /24 sweep never blocks the next
// keepalive tick.
const (
	KeepaliveInterval = 5 * time.Second
	ScanInterval      = 30 * time.Second
	scanWarmup        = 3 * time.Second
	probeTimeout      = 300 * time.Millisecond
	scanConcurrency   = 32
)

// Registrar is the subset of registry.Registry the scanner needs to both
// read and write peer state.
type Registrar interface {
	Known() []string
	Register(ip string)
}

// Keepalive runs two independent background loops: a fixed-interval
// keepalive ping to every known peer (so the registry's last-seen clock
// stays fresh even when no alert traffic flows), and a slower subnet probe
// that discovers peers a broadcast datagram never reached (e.g. across a
// router that drops broadcast).
type Keepalive struct {
	DeviceID  string
	Port      int
	Registry  Registrar
	Transport *Transport
}

// Run blocks running both loops until ctx is canceled.
func (k *Keepalive) Run(ctx context.Context) {
	go k.runPings(ctx)
	k.runScanner(ctx)
}

func (k *Keepalive) runPings(ctx context.Context) {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.pingAll()
		}
	}
}

func (k *Keepalive) pingAll() {
	now := time.Now().Unix()
	for _, ip := range k.Registry.Known() {
		go func(ip string) {
			if err := k.Transport.SendKeepalive(ip, k.DeviceID, now); err != nil {
				logger.Debug("keepalive to %s failed: %v", ip, err)
				return
			}
			k.Registry.Register(ip)
		}(ip)
	}
}

func (k *Keepalive) runScanner(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(scanWarmup):
	}

	k.scanOnce()

	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.scanOnce()
		}
	}
}

// scanOnce probes every host on each local /24 with bounded concurrency,
// registering any host that accepts a TCP connection on the mesh port as a
// live peer.
func (k *Keepalive) scanOnce() {
	local := netutil.LocalIPs()

	var subnetHosts []string
	for _, ip := range local {
		subnetHosts = append(subnetHosts, netutil.SubnetHosts(ip)...)
	}

	sem := make(chan struct{}, scanConcurrency)
	for _, host := range subnetHosts {
		if netutil.IsLocal(host, local) {
			continue
		}
		sem <- struct{}{}
		go func(host string) {
			defer func() { <-sem }()
			k.probe(host)
		}(host)
	}
	for i := 0; i < scanConcurrency; i++ {
		sem <- struct{}{}
	}
}

// ScanNow triggers an immediate, out-of-band subnet probe, independent of
// the regular ScanInterval ticker. Used by the /api/scan HTTP handler.
func (k *Keepalive) ScanNow() {
	go k.scanOnce()
}

func (k *Keepalive) probe(host string) {
	addr := net.JoinHostPort(host, strconv.Itoa(k.Port))
	conn, err := net.DialTimeout("tcp4", addr, probeTimeout)
	if err != nil {
		return
	}
	conn.Close()
	k.Registry.Register(host)
}

package discovery

import (
	"context"
	"net"
	"time"

	"meshsentinel/internal/netutil"
	"meshsentinel/pkg/logger"
)

// DefaultInterval is how often the Announcer emits a hello.
const DefaultInterval = 2 * time.Second

// Announcer periodically emits a link-local UDP hello on every broadcast
// address derived from local interfaces, plus 255.255.255.255.
type Announcer struct {
	DeviceID      string
	TCPPort       int
	FlaskPort     int
	DiscoveryPort int
	Interval      time.Duration
}

// Run blocks emitting hellos every Interval until ctx is canceled.
func (a *Announcer) Run(ctx context.Context) {
	interval := a.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		logger.Error("announcer: failed to open UDP socket: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.announceOnce(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.announceOnce(conn)
		}
	}
}

// announceOnce rebuilds the payload and broadcast target list, since
// interface addresses can change between ticks.
func (a *Announcer) announceOnce(conn *net.UDPConn) {
	payload := Encode(Hello{
		DeviceID:  a.DeviceID,
		TCPPort:   a.TCPPort,
		FlaskPort: a.FlaskPort,
		Version:   "1.0",
	})

	for _, bcast := range netutil.BroadcastAddrs() {
		dst := &net.UDPAddr{IP: net.ParseIP(bcast), Port: a.DiscoveryPort}
		if _, err := conn.WriteToUDP(payload, dst); err != nil {
			logger.Debug("announce to %s failed: %v", bcast, err)
		}
	}
}

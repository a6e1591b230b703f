package discovery

import (
	"context"
	"net"
	"time"

	"meshsentinel/internal/netutil"
	"meshsentinel/pkg/logger"
)

// readTimeout bounds each UDP read so the receive loop can observe
// cancellation instead of blocking forever.
const readTimeout = 5 * time.Second

// Registerer is the subset of registry.Registry the listener needs.
type Registerer interface {
	Register(ip string)
}

// Listener binds UDP on the discovery port and feeds valid hellos into a
// Registerer.
type Listener struct {
	Port     int
	Registry Registerer
}

// Run binds the socket and processes datagrams until ctx is canceled.
// Bind failure is a resource failure: logged at error, the node continues
// without discovery rather than crashing.
func (l *Listener) Run(ctx context.Context) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: l.Port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		logger.Error("discovery listener: bind failed on port %d: %v", l.Port, err)
		return
	}
	defer conn.Close()

	logger.Info("discovery listener bound on port %d", l.Port)

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Warn("discovery listener read error: %v", err)
			continue
		}

		l.handleDatagram(buf[:n], src.IP.String())
	}
}

func (l *Listener) handleDatagram(data []byte, senderIP string) {
	if netutil.IsLocal(senderIP, netutil.LocalIPs()) {
		return
	}
	hello, err := Decode(data)
	if err != nil {
		return
	}
	_ = hello // device_id/tcp_port are carried for future use; registry keys by IP only
	l.Registry.Register(senderIP)
}

package mesh

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"meshsentinel/pkg/logger"
)

// relayTimeout bounds each outbound relay connection. Relays use fresh,
// short-lived connections rather than a persistent pool, matching the
// keepalive scanner's own connect-and-close pattern.
const relayTimeout = 3 * time.Second

// Ingestor is the subset of EventCore the Transport depends on for inbound
// frames, so Transport and EventCore can be wired in either order.
type Ingestor interface {
	Ingest(pkt AlertPacket, receivedFromIP string, mayRelay bool)
}

// Registerer is the subset of the Link Registry the Transport needs: an
// inbound TCP contact is as good as a UDP hello, per spec §4.6.
type Registerer interface {
	Register(ip string)
}

// Transport implements component T: it accepts inbound TCP connections and
// feeds parsed frames to an Ingestor, and it dials outbound connections to
// relay packets to peers. Grounded on Redsskull-p2pchat's pkg/chat
// communication.go (per-connection read loop, newline framing) adapted
// from a persistent chat session to one-shot relay dials.
type Transport struct {
	Port     int
	Ingest   Ingestor
	Registry Registerer
}

// Run binds the TCP listener and accepts connections until ctx is
// canceled. Bind failure is a resource failure: the node logs and
// continues without inbound transport, per the Non-goal that a single
// failed component does not crash the process.
func (t *Transport) Run(ctx context.Context) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp4", portAddr(t.Port))
	if err != nil {
		logger.Error("transport: bind failed on port %d: %v", t.Port, err)
		return
	}
	defer ln.Close()

	logger.Info("transport listening on port %d", t.Port)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("transport: accept error: %v", err)
				continue
			}
		}
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	defer conn.Close()

	peerIP := ""
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		peerIP = addr.IP.String()
	}
	if peerIP != "" && t.Registry != nil {
		t.Registry.Register(peerIP)
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		pkt, err := ParseFrame(line)
		if err != nil {
			logger.WithFields(logger.Fields{"peer_ip": peerIP}).Warnf("transport: dropping malformed frame: %v", err)
			continue
		}
		if pkt.EventID == "" {
			continue // keepalive or event-id-less frame: drop silently
		}
		t.Ingest.Ingest(pkt, peerIP, true)
	}
}

// RelayTo dials each target IP on this transport's port and writes one
// encoded line, closing immediately after. Per-target failures are logged
// and otherwise ignored — flood delivery is best-effort, not acknowledged.
func (t *Transport) RelayTo(pkt AlertPacket, targets []string) {
	line := EncodeLine(pkt)
	for _, ip := range targets {
		go t.sendLine(ip, line)
	}
}

func (t *Transport) sendLine(ip string, line []byte) {
	entry := logger.WithFields(logger.Fields{"peer_ip": ip})

	conn, err := net.DialTimeout("tcp4", net.JoinHostPort(ip, portString(t.Port)), relayTimeout)
	if err != nil {
		entry.Debugf("relay dial failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(relayTimeout))
	if _, err := conn.Write(line); err != nil {
		entry.Debugf("relay write failed: %v", err)
	}
}

// SendKeepalive dials ip and writes one keepalive frame, used by the
// scanner/keepalive component.
func (t *Transport) SendKeepalive(ip, deviceID string, timestamp int64) error {
	conn, err := net.DialTimeout("tcp4", net.JoinHostPort(ip, portString(t.Port)), relayTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(relayTimeout))
	_, err = conn.Write(NewKeepaliveLine(deviceID, timestamp))
	return err
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func portString(port int) string {
	return strconv.Itoa(port)
}

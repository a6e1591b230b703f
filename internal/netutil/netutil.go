// Package netutil provides the local-interface helpers the discovery and
// scanner components rebuild on every tick, since interface addresses can
// change at runtime (DHCP renewal, hotspot toggling, VPN connect).
package netutil

import (
	"fmt"
	"net"
	"strings"
)

// LocalIPs returns every non-loopback IPv4 address bound to a local
// interface. Falls back to dialing a well-known address to learn the
// outbound-facing IP, and finally to 127.0.0.1, mirroring the teacher
// system's layered fallback.
func LocalIPs() []string {
	var ips []string

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipnet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				ip4 := ipnet.IP.To4()
				if ip4 == nil || ip4.IsLoopback() {
					continue
				}
				ips = append(ips, ip4.String())
			}
		}
	}

	if len(ips) > 0 {
		return dedupe(ips)
	}

	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return []string{addr.IP.String()}
		}
	}

	return []string{"127.0.0.1"}
}

// BroadcastAddrs returns the broadcast address for every local IPv4
// interface, plus the universal 255.255.255.255 fallback. Rebuilt on every
// call rather than cached.
func BroadcastAddrs() []string {
	var broadcasts []string

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipnet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				ip4 := ipnet.IP.To4()
				if ip4 == nil || ip4.IsLoopback() {
					continue
				}
				bcast := broadcastFor(ip4, ipnet.Mask)
				if bcast != "" {
					broadcasts = append(broadcasts, bcast)
				}
			}
		}
	}

	if len(broadcasts) == 0 {
		for _, ip := range LocalIPs() {
			parts := strings.Split(ip, ".")
			if len(parts) == 4 {
				broadcasts = append(broadcasts, fmt.Sprintf("%s.%s.%s.255", parts[0], parts[1], parts[2]))
			}
		}
	}

	broadcasts = append(broadcasts, "255.255.255.255")
	return dedupe(broadcasts)
}

func broadcastFor(ip4 net.IP, mask net.IPMask) string {
	if len(mask) == net.IPv6len {
		mask = mask[net.IPv6len-net.IPv4len:]
	}
	if len(mask) != net.IPv4len {
		return ""
	}
	bcast := make(net.IP, net.IPv4len)
	for i := 0; i < net.IPv4len; i++ {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast.String()
}

// SubnetHosts enumerates prefix.1..prefix.254 for the /24 containing ip.
func SubnetHosts(ip string) []string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return nil
	}
	prefix := strings.Join(parts[:3], ".")
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, fmt.Sprintf("%s.%d", prefix, i))
	}
	return hosts
}

// IsLocal reports whether ip is one of this node's own addresses.
func IsLocal(ip string, localIPs []string) bool {
	for _, local := range localIPs {
		if local == ip {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package netutil

import (
	"net"
	"testing"
)

func parseIPv4(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s).To4()
	if ip == nil {
		t.Fatalf("failed to parse %s as IPv4", s)
	}
	return ip
}

func ipv4Mask(ones int) net.IPMask {
	return net.CIDRMask(ones, 32)
}

func TestSubnetHostsEnumeratesFullRange(t *testing.T) {
	hosts := SubnetHosts("192.168.1.42")
	if len(hosts) != 254 {
		t.Fatalf("expected 254 hosts, got %d", len(hosts))
	}
	if hosts[0] != "192.168.1.1" {
		t.Errorf("expected first host 192.168.1.1, got %s", hosts[0])
	}
	if hosts[len(hosts)-1] != "192.168.1.254" {
		t.Errorf("expected last host 192.168.1.254, got %s", hosts[len(hosts)-1])
	}
}

func TestSubnetHostsRejectsMalformed(t *testing.T) {
	if hosts := SubnetHosts("not-an-ip"); hosts != nil {
		t.Errorf("expected nil for malformed ip, got %v", hosts)
	}
}

func TestIsLocal(t *testing.T) {
	locals := []string{"10.0.0.5", "192.168.1.1"}
	if !IsLocal("10.0.0.5", locals) {
		t.Error("expected 10.0.0.5 to be local")
	}
	if IsLocal("10.0.0.6", locals) {
		t.Error("expected 10.0.0.6 to not be local")
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	out := dedupe([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("at index %d: expected %s, got %s", i, want[i], out[i])
		}
	}
}

func TestBroadcastForComputesHostBits(t *testing.T) {
	ip := parseIPv4(t, "192.168.1.42")
	mask := ipv4Mask(24)
	got := broadcastFor(ip, mask)
	if got != "192.168.1.255" {
		t.Errorf("expected 192.168.1.255, got %s", got)
	}
}

func TestLocalIPsNeverEmpty(t *testing.T) {
	if len(LocalIPs()) == 0 {
		t.Error("expected at least the loopback fallback IP")
	}
}

func TestBroadcastAddrsIncludesUniversalFallback(t *testing.T) {
	addrs := BroadcastAddrs()
	found := false
	for _, a := range addrs {
		if a == "255.255.255.255" {
			found = true
		}
	}
	if !found {
		t.Error("expected 255.255.255.255 to always be present")
	}
}

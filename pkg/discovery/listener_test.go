package discovery

import "testing"

type fakeRegisterer struct {
	registered []string
}

func (f *fakeRegisterer) Register(ip string) {
	f.registered = append(f.registered, ip)
}

func TestHandleDatagramRegistersValidHello(t *testing.T) {
	reg := &fakeRegisterer{}
	l := &Listener{Port: 5556, Registry: reg}

	hello := Encode(Hello{DeviceID: "DEVICE-AB12CD34", TCPPort: 5555, FlaskPort: 5000, Version: "1.0"})
	l.handleDatagram(hello, "10.0.0.2")

	if len(reg.registered) != 1 || reg.registered[0] != "10.0.0.2" {
		t.Errorf("expected [10.0.0.2] registered, got %v", reg.registered)
	}
}

func TestHandleDatagramDropsGarbage(t *testing.T) {
	reg := &fakeRegisterer{}
	l := &Listener{Port: 5556, Registry: reg}

	l.handleDatagram([]byte("not a hello"), "10.0.0.3")

	if len(reg.registered) != 0 {
		t.Errorf("expected nothing registered for garbage payload, got %v", reg.registered)
	}
}

package gonetworkmanager

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestProfileVerify(t *testing.T) {
	valid := Profile{
		ID:         "Home",
		SSID:       []byte("Home"),
		Mode:       ModeInfrastructure,
		KeyMgmt:    KeyMgmtWPAPSK,
		Proto:      []string{ProtoRSN},
		PSK:        "correcthorse",
		IPv4Method: IPv4MethodAuto,
	}
	if err := valid.Verify(); err != nil {
		t.Fatalf("Verify() on valid profile = %v", err)
	}

	open := Profile{ID: "Cafe", SSID: []byte("Cafe"), Mode: ModeInfrastructure, IPv4Method: IPv4MethodAuto}
	if err := open.Verify(); err != nil {
		t.Errorf("Verify() on open profile = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"empty ssid", func(p *Profile) { p.SSID = nil }},
		{"long ssid", func(p *Profile) { p.SSID = []byte(strings.Repeat("x", 33)) }},
		{"short psk", func(p *Profile) { p.PSK = "short" }},
		{"bad method", func(p *Profile) { p.IPv4Method = "dhcp" }},
		{"adhoc", func(p *Profile) { p.Mode = "adhoc" }},
		{"bad proto", func(p *Profile) { p.Proto = []string{"wep"} }},
		{"psk without key-mgmt", func(p *Profile) { p.KeyMgmt = "" }},
		{"empty id", func(p *Profile) { p.ID = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			p.Proto = append([]string(nil), valid.Proto...)
			tt.mutate(&p)
			if err := p.Verify(); !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("Verify() = %v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestVerifyHexPSK(t *testing.T) {
	p := Profile{
		ID: "x", SSID: []byte("x"), Mode: ModeInfrastructure, IPv4Method: IPv4MethodAuto,
		KeyMgmt: KeyMgmtWPAPSK, PSK: strings.Repeat("ab", 32),
	}
	if err := p.Verify(); err != nil {
		t.Errorf("64 hex digit psk rejected: %v", err)
	}
}

func TestSavedProfiles(t *testing.T) {
	f := newFakeNmcli()
	f.outputs["-m multiline -f NAME,UUID,TYPE connection show"] = `NAME:  Home
UUID:  u-1
TYPE:  wifi
NAME:  Wired
UUID:  u-2
TYPE:  ethernet
NAME:  Office
UUID:  u-3
TYPE:  802-11-wireless`
	f.outputs["-g 802-11-wireless.ssid connection show uuid u-1"] = "Home"
	f.outputs["-g 802-11-wireless.ssid connection show uuid u-3"] = `Office\:5G`
	c := NewClientWithRunner(f.run, nil)

	profiles, err := c.SavedProfiles(context.Background())
	if err != nil {
		t.Fatalf("SavedProfiles() error = %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	if string(profiles[1].SSID) != "Office:5G" {
		t.Errorf("SSID = %q, want unescaped %q", profiles[1].SSID, "Office:5G")
	}
	if f.called("-g 802-11-wireless.ssid connection show uuid u-2") {
		t.Error("ethernet profile should not be queried for an SSID")
	}
}

func TestActiveConnections(t *testing.T) {
	f := newFakeNmcli()
	f.outputs["-m multiline -f NAME,UUID,TYPE,DEVICE,ACTIVE-PATH connection show --active"] = `NAME:         Home
UUID:         u-1
TYPE:         wifi
DEVICE:       wlan0
ACTIVE-PATH:  /org/freedesktop/NetworkManager/ActiveConnection/3`
	c := NewClientWithRunner(f.run, nil)
	conns, err := c.ActiveConnections(context.Background())
	if err != nil || len(conns) != 1 {
		t.Fatalf("ActiveConnections() = %v, %v", conns, err)
	}
	if !conns[0].HasDevice("wlan0") || conns[0].Handle().Path == "" {
		t.Errorf("conn = %+v", conns[0])
	}
}

func TestActivateParsesActivePath(t *testing.T) {
	f := newFakeNmcli()
	f.outputs["--wait 0 connection up uuid u-1 ifname wlan0"] = "Connection successfully activated (D-Bus active path: /org/freedesktop/NetworkManager/ActiveConnection/9)"
	c := NewClientWithRunner(f.run, nil)
	h, err := c.Activate(context.Background(), Profile{ID: "Home", UUID: "u-1"}, "wlan0")
	if err != nil {
		t.Fatal(err)
	}
	if h.Path != "/org/freedesktop/NetworkManager/ActiveConnection/9" {
		t.Errorf("Path = %q", h.Path)
	}
}

func TestAddAndActivateDeletesRejectedProfile(t *testing.T) {
	f := newFakeNmcli()
	addArgs := "connection add type wifi con-name Home ifname * ssid Home 802-11-wireless.mode infrastructure ipv4.method auto wifi-sec.key-mgmt wpa-psk wifi-sec.proto rsn wifi-sec.psk correcthorse"
	f.outputs[addArgs] = "Connection 'Home' (0b4e-11) successfully added."
	f.errs["--wait 0 connection up uuid 0b4e-11 ifname wlan0"] = errors.New("activation refused")
	c := NewClientWithRunner(f.run, nil)

	_, err := c.AddAndActivate(context.Background(), Profile{
		ID: "Home", SSID: []byte("Home"), Mode: ModeInfrastructure, IPv4Method: IPv4MethodAuto,
		KeyMgmt: KeyMgmtWPAPSK, Proto: []string{ProtoRSN}, PSK: "correcthorse",
	}, "wlan0")
	if err == nil {
		t.Fatal("AddAndActivate() should fail when activation is refused")
	}
	if !f.called("connection delete 0b4e-11") {
		t.Error("rejected profile was not deleted")
	}
}

func TestDeactivate(t *testing.T) {
	f := newFakeNmcli()
	c := NewClientWithRunner(f.run, nil)
	if err := c.Deactivate(context.Background(), ActiveHandle{}); !errors.Is(err, ErrNoActiveConnection) {
		t.Errorf("Deactivate(zero) = %v, want ErrNoActiveConnection", err)
	}
	if err := c.Deactivate(context.Background(), ActiveHandle{Path: "/ac/1"}); err != nil {
		t.Fatal(err)
	}
	if !f.called("connection down apath /ac/1") {
		t.Error("expected deactivation by active path")
	}
}

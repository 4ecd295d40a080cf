package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"nmwifi/gonetworkmanager"
	"nmwifi/netlist"
	"nmwifi/session"
)

type stubGateway struct {
	aps    []gonetworkmanager.AccessPoint
	noWifi bool
	added  []gonetworkmanager.Profile
}

func (g *stubGateway) WifiDevice(context.Context, string) (gonetworkmanager.Device, error) {
	if g.noWifi {
		return gonetworkmanager.Device{}, gonetworkmanager.ErrNoWifiDevice
	}
	return gonetworkmanager.Device{Interface: "wlan0", Type: "wifi"}, nil
}

func (g *stubGateway) RequestScan(context.Context, string) error { return nil }

func (g *stubGateway) AccessPoints(context.Context, string) ([]gonetworkmanager.AccessPoint, error) {
	return g.aps, nil
}

func (g *stubGateway) SavedProfiles(context.Context) ([]gonetworkmanager.Profile, error) {
	return nil, nil
}

func (g *stubGateway) Activate(context.Context, gonetworkmanager.Profile, string) (gonetworkmanager.ActiveHandle, error) {
	return gonetworkmanager.ActiveHandle{Path: "/ac/1"}, nil
}

func (g *stubGateway) AddAndActivate(_ context.Context, p gonetworkmanager.Profile, _ string) (gonetworkmanager.ActiveHandle, error) {
	g.added = append(g.added, p)
	return gonetworkmanager.ActiveHandle{Path: "/ac/2", Name: p.ID}, nil
}

func (g *stubGateway) Deactivate(context.Context, gonetworkmanager.ActiveHandle) error { return nil }

func (g *stubGateway) DeviceState(context.Context, string) (gonetworkmanager.DeviceState, error) {
	return gonetworkmanager.DeviceStateActivated, nil
}

func (g *stubGateway) DeviceActiveConnection(context.Context, string) (gonetworkmanager.ActiveHandle, bool, error) {
	return gonetworkmanager.ActiveHandle{}, false, nil
}

func (g *stubGateway) ActiveConnections(context.Context) ([]gonetworkmanager.ActiveConnection, error) {
	return nil, nil
}

var testAPs = []gonetworkmanager.AccessPoint{
	{BSSID: "aa:aa:aa:aa:aa:01", SSID: []byte("cafe"), Strength: 30, Channel: 1},
	{BSSID: "aa:aa:aa:aa:aa:02", SSID: []byte("cafe"), Strength: 70, Channel: 11, InUse: true},
	{BSSID: "aa:aa:aa:aa:aa:03", SSID: []byte("home"), Strength: 90, Channel: 36,
		Flags: gonetworkmanager.SecurityKeyMgmtPSK | gonetworkmanager.SecurityPairCCMP},
}

func newTestOrchestrator(gw session.Gateway, out *bytes.Buffer) *session.Orchestrator {
	return session.New(gw, &lineSink{w: out}, session.Options{
		After: func(_ time.Duration, msg tea.Msg) tea.Cmd {
			return func() tea.Msg { return msg }
		},
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
}

func testTable() *netlist.Table {
	t := netlist.NewTable()
	t.Apply(netlist.ComputeDiff(t, testAPs))
	return t
}

func TestResolveTarget(t *testing.T) {
	table := testTable()
	tests := []struct {
		target string
		want   string
	}{
		{"cafe", "aa:aa:aa:aa:aa:02"},
		{"home", "aa:aa:aa:aa:aa:03"},
		{"AA:AA:AA:AA:AA:01", "AA:AA:AA:AA:AA:01"},
		{"nowhere", "nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := resolveTarget(table, tt.target); got != tt.want {
				t.Errorf("resolveTarget(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestPrintNetworks(t *testing.T) {
	table := testTable()
	e, _ := table.Get("aa:aa:aa:aa:aa:02")
	e.Row.Active = true

	var buf bytes.Buffer
	printNetworks(&buf, table, table.Order(nil))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "home") || !strings.Contains(lines[1], "WPA2, PSK") {
		t.Errorf("strongest network should come first: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "good") {
		t.Errorf("active row should be marked: %q", lines[2])
	}
}

func TestPrintNetworksWideSSID(t *testing.T) {
	table := netlist.NewTable()
	table.Apply(netlist.ComputeDiff(table, []gonetworkmanager.AccessPoint{
		{BSSID: "aa:aa:aa:aa:aa:04", SSID: []byte("カフェワイファイネットワークゲスト"), Strength: 80, Channel: 6},
		{BSSID: "aa:aa:aa:aa:aa:05", SSID: []byte("caf\xe9"), Strength: 60, Channel: 11},
		{BSSID: "aa:aa:aa:aa:aa:06", SSID: []byte("lab"), Strength: 40, Channel: 149},
	}))

	var buf bytes.Buffer
	printNetworks(&buf, table, table.Order(nil))
	out := buf.String()
	if !utf8.ValidString(out) {
		t.Fatalf("output is not valid UTF-8: %q", out)
	}
	if !strings.Contains(out, "カフェ") || !strings.Contains(out, "...") {
		t.Errorf("long SSID should be truncated with an ellipsis:\n%s", out)
	}
	if !strings.Contains(out, "caf?") {
		t.Errorf("invalid bytes should be replaced:\n%s", out)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	column := func(line, label string) int {
		i := strings.Index(line, label)
		if i < 0 {
			t.Fatalf("%q not found in %q", label, line)
		}
		return runewidth.StringWidth(line[:i])
	}
	want := column(lines[0], "SECURITY")
	for _, line := range lines[1:] {
		if got := column(line, "Open"); got != want {
			t.Errorf("security column at %d, want %d: %q", got, want, line)
		}
	}
}

func TestHeadlessConnect(t *testing.T) {
	gw := &stubGateway{aps: testAPs}
	var out bytes.Buffer
	h := &headless{
		orch: newTestOrchestrator(gw, &out),
		scan: true,
		start: func(o *session.Orchestrator) (tea.Cmd, error) {
			return o.Connect(resolveTarget(o.Table(), "home"), "correct horse")
		},
	}
	if err := runHeadless(h); err != nil {
		t.Fatalf("runHeadless() error = %v\n%s", err, out.String())
	}
	if len(gw.added) != 1 || gw.added[0].PSK != "correct horse" {
		t.Errorf("added profiles = %+v", gw.added)
	}
	if !strings.Contains(out.String(), "Connected to home") {
		t.Errorf("output lacks the outcome:\n%s", out.String())
	}
}

func TestHeadlessConnectFailures(t *testing.T) {
	tests := []struct {
		name     string
		gw       *stubGateway
		target   string
		password string
		kind     session.Kind
	}{
		{"unknown network", &stubGateway{aps: testAPs}, "nowhere", "", session.KindUnknownNetwork},
		{"missing password", &stubGateway{aps: testAPs}, "home", "", session.KindPasswordTooShort},
		{"no device", &stubGateway{noWifi: true}, "home", "", session.KindGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &headless{
				orch: newTestOrchestrator(tt.gw, &out),
				scan: true,
				start: func(o *session.Orchestrator) (tea.Cmd, error) {
					if err := o.LastScan().Err; session.IsKind(err, session.KindGatewayUnavailable) {
						return nil, err
					}
					return o.Connect(resolveTarget(o.Table(), tt.target), tt.password)
				},
			}
			err := runHeadless(h)
			if !session.IsKind(err, tt.kind) {
				t.Errorf("runHeadless() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestHeadlessDisconnectWithoutConnection(t *testing.T) {
	var out bytes.Buffer
	h := &headless{
		orch: newTestOrchestrator(&stubGateway{}, &out),
		start: func(o *session.Orchestrator) (tea.Cmd, error) {
			return o.Disconnect()
		},
	}
	err := runHeadless(h)
	if !session.IsKind(err, session.KindNoActiveConnection) {
		t.Fatalf("runHeadless() error = %v", err)
	}
	if !strings.Contains(out.String(), "No active connection to disconnect") {
		t.Errorf("output = %q", out.String())
	}
}

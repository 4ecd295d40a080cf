package ui

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nmwifi/gonetworkmanager"
	"nmwifi/netlist"
	"nmwifi/session"
)

type fakeDevice struct {
	aps      []gonetworkmanager.AccessPoint
	profiles []gonetworkmanager.Profile
	states   []gonetworkmanager.DeviceState
	polls    int

	radio      bool
	radioCalls []bool

	added     []gonetworkmanager.Profile
	activated []gonetworkmanager.Profile
}

func (d *fakeDevice) WifiDevice(context.Context, string) (gonetworkmanager.Device, error) {
	return gonetworkmanager.Device{Interface: "wlan0", Type: "wifi"}, nil
}

func (d *fakeDevice) RequestScan(context.Context, string) error { return nil }

func (d *fakeDevice) AccessPoints(context.Context, string) ([]gonetworkmanager.AccessPoint, error) {
	return d.aps, nil
}

func (d *fakeDevice) SavedProfiles(context.Context) ([]gonetworkmanager.Profile, error) {
	return d.profiles, nil
}

func (d *fakeDevice) Activate(_ context.Context, p gonetworkmanager.Profile, _ string) (gonetworkmanager.ActiveHandle, error) {
	d.activated = append(d.activated, p)
	return gonetworkmanager.ActiveHandle{Path: "/ac/1", Name: p.ID}, nil
}

func (d *fakeDevice) AddAndActivate(_ context.Context, p gonetworkmanager.Profile, _ string) (gonetworkmanager.ActiveHandle, error) {
	d.added = append(d.added, p)
	return gonetworkmanager.ActiveHandle{Path: "/ac/2", Name: p.ID}, nil
}

func (d *fakeDevice) Deactivate(context.Context, gonetworkmanager.ActiveHandle) error { return nil }

func (d *fakeDevice) DeviceState(context.Context, string) (gonetworkmanager.DeviceState, error) {
	d.polls++
	if len(d.states) == 0 {
		return gonetworkmanager.DeviceStateActivated, nil
	}
	i := d.polls - 1
	if i >= len(d.states) {
		i = len(d.states) - 1
	}
	return d.states[i], nil
}

func (d *fakeDevice) DeviceActiveConnection(context.Context, string) (gonetworkmanager.ActiveHandle, bool, error) {
	return gonetworkmanager.ActiveHandle{}, false, nil
}

func (d *fakeDevice) ActiveConnections(context.Context) ([]gonetworkmanager.ActiveConnection, error) {
	return nil, nil
}

func (d *fakeDevice) WifiEnabled(context.Context) (bool, error) { return d.radio, nil }

func (d *fakeDevice) SetWifiEnabled(_ context.Context, enabled bool) error {
	d.radioCalls = append(d.radioCalls, enabled)
	d.radio = enabled
	return nil
}

func (d *fakeDevice) DeviceIPDetail(_ context.Context, iface string) (*gonetworkmanager.DeviceIPDetail, error) {
	return &gonetworkmanager.DeviceIPDetail{Device: iface, Type: "wifi", IPv4: "192.168.1.20"}, nil
}

func (d *fakeDevice) ActiveAccessPoint(context.Context, string) (string, bool, error) {
	for _, ap := range d.aps {
		if ap.InUse {
			return ap.BSSID, true, nil
		}
	}
	return "", false, nil
}

var (
	home = gonetworkmanager.AccessPoint{
		BSSID: "aa:aa:aa:aa:aa:01", SSID: []byte("home"), Strength: 82, Frequency: 5180, Channel: 36,
		Flags: gonetworkmanager.SecurityKeyMgmtPSK | gonetworkmanager.SecurityPairCCMP, Mode: "Infra", MaxBitrate: 540000,
	}
	cafe = gonetworkmanager.AccessPoint{
		BSSID: "aa:aa:aa:aa:aa:02", SSID: []byte("cafe"), Strength: 40, Frequency: 2437, Channel: 6, Mode: "Infra",
	}
)

type uiHarness struct {
	t   *testing.T
	dev *fakeDevice
	m   Model
}

func newUIHarness(t *testing.T, aps ...gonetworkmanager.AccessPoint) *uiHarness {
	t.Helper()
	dev := &fakeDevice{aps: aps, radio: true}
	m := New(dev, session.Options{
		Policy: session.DefaultPolicy(),
		After: func(_ time.Duration, msg tea.Msg) tea.Cmd {
			return func() tea.Msg { return msg }
		},
		Sleep: func(context.Context, time.Duration) error { return nil },
	}, nil)
	h := &uiHarness{t: t, dev: dev, m: m}
	t.Cleanup(m.Orchestrator().Close)
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.run(m.Init())
	return h
}

// run executes cmd and its follow-ups. Only the model's and the
// orchestrator's own messages are fed back; widget ticks are dropped.
func (h *uiHarness) run(cmd tea.Cmd) {
	h.t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 10000 {
			h.t.Fatal("command loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		switch reflect.TypeOf(msg).PkgPath() {
		case "nmwifi/session", "nmwifi/ui":
			queue = append(queue, h.update(msg))
		}
	}
}

func (h *uiHarness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *uiHarness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		h.run(h.update(msg))
	}
}

func (h *uiHarness) keys() []string {
	var out []string
	for _, it := range h.m.wifiList.Items() {
		out = append(out, it.(networkItem).key)
	}
	return out
}

func TestBoardAppliesMutations(t *testing.T) {
	b := newBoard()
	ops := []netlist.Op{
		{Kind: netlist.OpInsert, Key: "a"},
		{Kind: netlist.OpInsert, Key: "b", After: "a"},
		{Kind: netlist.OpInsert, Key: "c"},
		{Kind: netlist.OpMove, Key: "a", After: "b"},
		{Kind: netlist.OpRemove, Key: "c"},
		{Kind: netlist.OpUpdate, Key: "b"},
	}
	for _, op := range ops {
		b.Mutate(op)
	}
	if want := []string{"b", "a"}; !reflect.DeepEqual(b.order, want) {
		t.Errorf("order = %v, want %v", b.order, want)
	}
	if !b.dirty {
		t.Error("mutations should mark the board dirty")
	}

	b.SetTriggersEnabled(false)
	if b.takeSettled() {
		t.Error("disabling triggers is not a settlement")
	}
	b.SetTriggersEnabled(true)
	if !b.takeSettled() || b.takeSettled() {
		t.Error("takeSettled should report exactly once")
	}
}

func TestScanFillsListByStrength(t *testing.T) {
	cafeInUse := cafe
	cafeInUse.InUse = true
	h := newUIHarness(t, cafeInUse, home)

	if got, want := h.keys(), []string{home.BSSID, cafe.BSSID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("list = %v, want %v", got, want)
	}
	if got := h.m.board.status; got != "Found 2 networks" {
		t.Errorf("status = %q", got)
	}
	items := h.m.wifiList.Items()
	if title := items[1].(networkItem).Title(); !strings.Contains(title, "• Connected") {
		t.Errorf("active row title %q lacks the connected marker", title)
	}
	desc := items[0].(networkItem).Description()
	for _, want := range []string{"82%", "5180 MHz", "WPA2, PSK"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description %q lacks %q", desc, want)
		}
	}
	if h.m.wifiList.Title != "Wi-Fi Networks" {
		t.Errorf("title = %q", h.m.wifiList.Title)
	}
}

func TestConnectOpenNetworkAfterConfirm(t *testing.T) {
	h := newUIHarness(t, cafe)

	h.press("enter")
	if h.m.state != viewConfirmOpenNetwork {
		t.Fatalf("state = %v, want ConfirmOpenNetwork", h.m.state)
	}
	h.press("enter")
	if h.m.state != viewConnectionResult {
		t.Fatalf("state = %v, want ConnectionResult", h.m.state)
	}
	if !h.m.lastConnectionWasSuccessful || h.m.outcomeText != "Connected to cafe" {
		t.Errorf("outcome = %q success=%v", h.m.outcomeText, h.m.lastConnectionWasSuccessful)
	}
	if len(h.dev.added) != 1 || h.dev.added[0].KeyMgmt != "" {
		t.Errorf("added profiles = %+v", h.dev.added)
	}

	h.press("esc")
	if h.m.state != viewNetworksList {
		t.Errorf("state = %v, want NetworksList", h.m.state)
	}
}

func TestPasswordPromptRejectsShortPassword(t *testing.T) {
	h := newUIHarness(t, home)

	h.press("enter")
	if h.m.state != viewPasswordInput {
		t.Fatalf("state = %v, want PasswordInput", h.m.state)
	}
	h.press("s", "h", "o", "r", "t", "enter")
	if h.m.state != viewPasswordInput {
		t.Fatalf("state = %v, short password should keep the prompt", h.m.state)
	}
	if want := "Password must be at least 8 characters"; h.m.inputErr != want {
		t.Errorf("inputErr = %q, want %q", h.m.inputErr, want)
	}
	if len(h.dev.added) != 0 {
		t.Error("no profile should be created")
	}

	h.press("longenough", "enter")
	if h.m.state != viewConnectionResult || !h.m.lastConnectionWasSuccessful {
		t.Fatalf("state = %v success=%v", h.m.state, h.m.lastConnectionWasSuccessful)
	}
	if len(h.dev.added) != 1 || h.dev.added[0].PSK != "shortlongenough" {
		t.Errorf("added profiles = %+v", h.dev.added)
	}
}

func TestFailedAttemptShowsReason(t *testing.T) {
	h := newUIHarness(t, cafe)
	h.dev.states = []gonetworkmanager.DeviceState{gonetworkmanager.DeviceStateFailed}

	h.press("enter", "enter")
	if h.m.state != viewConnectionResult || h.m.lastConnectionWasSuccessful {
		t.Fatalf("state = %v success=%v", h.m.state, h.m.lastConnectionWasSuccessful)
	}
	if want := "Connection to cafe failed. Password may be required."; h.m.outcomeText != want {
		t.Errorf("outcome = %q, want %q", h.m.outcomeText, want)
	}
}

func TestDetailsToggle(t *testing.T) {
	h := newUIHarness(t, home, cafe)

	h.press("e")
	if got := h.m.orch.Table().Expanded(); got != home.BSSID {
		t.Fatalf("expanded = %q, want %q", got, home.BSSID)
	}
	if !h.m.detailsOpen {
		t.Error("details panel should be open")
	}
	view := h.m.View()
	for _, want := range []string{home.BSSID, "36 (5180 MHz)", "5 GHz", "540 Mbit/s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q", want)
		}
	}

	h.press("down", "e")
	if got := h.m.orch.Table().Expanded(); got != cafe.BSSID {
		t.Errorf("expanded = %q, want %q", got, cafe.BSSID)
	}
	h.press("e")
	if got := h.m.orch.Table().Expanded(); got != "" {
		t.Errorf("expanded = %q after collapse", got)
	}
}

func TestRadioToggle(t *testing.T) {
	h := newUIHarness(t, home)

	h.press("t")
	if !reflect.DeepEqual(h.dev.radioCalls, []bool{false}) {
		t.Fatalf("radio calls = %v", h.dev.radioCalls)
	}
	if h.m.wifiEnabled || h.m.wifiList.Title != "Wi-Fi is Disabled" {
		t.Errorf("enabled=%v title=%q", h.m.wifiEnabled, h.m.wifiList.Title)
	}

	h.press("t")
	if !h.m.wifiEnabled {
		t.Error("radio should be back on")
	}
	if got := h.m.board.status; got != "Found 1 network" {
		t.Errorf("status = %q, enabling the radio should rescan", got)
	}
}

func TestInfoRequiresActiveConnection(t *testing.T) {
	h := newUIHarness(t, home)
	h.press("i")
	if h.m.state != viewNetworksList || h.m.board.status != "No active connection" {
		t.Fatalf("state = %v status = %q", h.m.state, h.m.board.status)
	}

	active := home
	active.InUse = true
	h = newUIHarness(t, active)
	h.press("i")
	if h.m.state != viewActiveConnectionInfo {
		t.Fatalf("state = %v, want ActiveConnectionInfo", h.m.state)
	}
	view := h.m.activeConnInfoViewport.View()
	for _, want := range []string{"192.168.1.20", home.BSSID} {
		if !strings.Contains(view, want) {
			t.Errorf("info view lacks %q", want)
		}
	}
}

func TestTriggersGateConnectKeys(t *testing.T) {
	h := newUIHarness(t, cafe)

	h.m.board.SetTriggersEnabled(false)
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if help := h.m.help.View(h.m.keys); strings.Contains(help, "select/confirm") {
		t.Errorf("help should hide connect while an attempt runs: %q", help)
	}

	h.press("enter", "d")
	if h.m.state != viewNetworksList || h.m.orch.Busy() {
		t.Fatalf("state = %v busy = %v, keys should be inert", h.m.state, h.m.orch.Busy())
	}

	h.m.board.SetTriggersEnabled(true)
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.press("enter")
	if h.m.state != viewConfirmOpenNetwork {
		t.Errorf("state = %v, want ConfirmOpenNetwork once triggers are back", h.m.state)
	}
}

func TestWEPNetworkSkipsPasswordPrompt(t *testing.T) {
	legacy := gonetworkmanager.AccessPoint{BSSID: "aa:aa:aa:aa:aa:03", SSID: []byte("legacy"), Strength: 60, Privacy: true}
	h := newUIHarness(t, legacy)

	h.press("enter")
	if h.m.state != viewNetworksList {
		t.Fatalf("state = %v, want NetworksList", h.m.state)
	}
	if want := "legacy uses WEP; connect with a saved profile"; h.m.board.status != want {
		t.Errorf("status = %q, want %q", h.m.board.status, want)
	}
	if len(h.dev.added) != 0 {
		t.Error("no profile should be created")
	}
}

package gonetworkmanager

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DeviceState mirrors NMDeviceState. Values are the numeric codes nmcli prints.
type DeviceState int

const (
	DeviceStateUnknown      DeviceState = 0
	DeviceStateUnmanaged    DeviceState = 10
	DeviceStateUnavailable  DeviceState = 20
	DeviceStateDisconnected DeviceState = 30
	DeviceStatePrepare      DeviceState = 40
	DeviceStateConfig       DeviceState = 50
	DeviceStateNeedAuth     DeviceState = 60
	DeviceStateIPConfig     DeviceState = 70
	DeviceStateIPCheck      DeviceState = 80
	DeviceStateSecondaries  DeviceState = 90
	DeviceStateActivated    DeviceState = 100
	DeviceStateDeactivating DeviceState = 110
	DeviceStateFailed       DeviceState = 120
)

var deviceStateNames = map[DeviceState]string{
	DeviceStateUnknown:      "unknown",
	DeviceStateUnmanaged:    "unmanaged",
	DeviceStateUnavailable:  "unavailable",
	DeviceStateDisconnected: "disconnected",
	DeviceStatePrepare:      "prepare",
	DeviceStateConfig:       "config",
	DeviceStateNeedAuth:     "need-auth",
	DeviceStateIPConfig:     "ip-config",
	DeviceStateIPCheck:      "ip-check",
	DeviceStateSecondaries:  "secondaries",
	DeviceStateActivated:    "activated",
	DeviceStateDeactivating: "deactivating",
	DeviceStateFailed:       "failed",
}

// Descriptions nmcli prints in the non-numeric STATE column.
var deviceStateDescriptions = map[string]DeviceState{
	"unmanaged":                                   DeviceStateUnmanaged,
	"unavailable":                                 DeviceStateUnavailable,
	"disconnected":                                DeviceStateDisconnected,
	"connecting (prepare)":                        DeviceStatePrepare,
	"connecting (configuring)":                    DeviceStateConfig,
	"connecting (need authentication)":            DeviceStateNeedAuth,
	"connecting (getting ip configuration)":       DeviceStateIPConfig,
	"connecting (checking ip connectivity)":       DeviceStateIPCheck,
	"connecting (starting secondary connections)": DeviceStateSecondaries,
	"connected":                                   DeviceStateActivated,
	"deactivating":                                DeviceStateDeactivating,
	"connection failed":                           DeviceStateFailed,
}

func (s DeviceState) String() string {
	if name, ok := deviceStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseDeviceState understands "100 (connected)", "100" and "connected".
func ParseDeviceState(stateStr string) DeviceState {
	stateStr = strings.TrimSpace(stateStr)
	if stateStr == "" {
		return DeviceStateUnknown
	}
	codeStr := stateStr
	if open := strings.Index(stateStr, "("); open > 0 && strings.HasSuffix(stateStr, ")") {
		codeStr = strings.TrimSpace(stateStr[:open])
	}
	if code, err := strconv.Atoi(codeStr); err == nil {
		return DeviceState(code)
	}
	if state, ok := deviceStateDescriptions[strings.ToLower(stateStr)]; ok {
		return state
	}
	return DeviceStateUnknown
}

// Device is one network interface known to NetworkManager.
type Device struct {
	Interface  string
	Type       string
	State      DeviceState
	Connection string
}

// IsWifi reports whether the device is a wireless adapter.
func (d Device) IsWifi() bool { return d.Type == ConnectionTypeWifi }

// Devices lists all network devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	output, err := c.run(ctx, "-t", "-f", "DEVICE,TYPE,STATE,CONNECTION", "device")
	if err != nil {
		return nil, fmt.Errorf("failed to get device status: %w", err)
	}
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		parts := splitTerse(scanner.Text())
		if len(parts) < 3 {
			continue
		}
		device := Device{
			Interface: strings.TrimSpace(parts[0]),
			Type:      strings.TrimSpace(parts[1]),
			State:     ParseDeviceState(parts[2]),
		}
		if len(parts) > 3 {
			device.Connection = valueOrEmpty(parts[3])
		}
		devices = append(devices, device)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading device status output: %w", err)
	}
	return devices, nil
}

// WifiDevice returns the wireless device to manage. A non-empty pin selects
// that interface; otherwise the first wifi device wins.
func (c *Client) WifiDevice(ctx context.Context, pin string) (Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if !d.IsWifi() {
			continue
		}
		if pin == "" || d.Interface == pin {
			return d, nil
		}
	}
	if pin != "" {
		return Device{}, fmt.Errorf("%w: interface %q", ErrNoWifiDevice, pin)
	}
	return Device{}, ErrNoWifiDevice
}

func (c *Client) deviceGeneral(ctx context.Context, iface string) (map[string]string, error) {
	if strings.TrimSpace(iface) == "" {
		return nil, fmt.Errorf("device interface cannot be empty")
	}
	fields := strings.Join([]string{NmcliFieldGeneralState, NmcliFieldGeneralConnection, NmcliFieldGeneralConPath}, ",")
	recs, err := c.records(ctx, "-m", "multiline", "-f", fields, "device", "show", iface)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("device %q not found", iface)
	}
	return recs[0], nil
}

// DeviceState samples the current state of iface.
func (c *Client) DeviceState(ctx context.Context, iface string) (DeviceState, error) {
	general, err := c.deviceGeneral(ctx, iface)
	if err != nil {
		return DeviceStateUnknown, err
	}
	return ParseDeviceState(general[NmcliFieldGeneralState]), nil
}

// DeviceActiveConnection returns the active connection bound to iface, if any.
func (c *Client) DeviceActiveConnection(ctx context.Context, iface string) (ActiveHandle, bool, error) {
	general, err := c.deviceGeneral(ctx, iface)
	if err != nil {
		return ActiveHandle{}, false, err
	}
	handle := ActiveHandle{
		Path: valueOrEmpty(general[NmcliFieldGeneralConPath]),
		Name: valueOrEmpty(general[NmcliFieldGeneralConnection]),
	}
	if handle.IsZero() {
		return ActiveHandle{}, false, nil
	}
	return handle, true, nil
}

// DeviceIPDetail is the addressing summary of a device.
type DeviceIPDetail struct {
	Device     string   `json:"device,omitempty"`
	Type       string   `json:"type,omitempty"`
	State      string   `json:"state"`
	Connection string   `json:"connection,omitempty"`
	Mac        string   `json:"mac,omitempty"`
	IPv4       string   `json:"ipV4,omitempty"`
	NetV4      string   `json:"netV4,omitempty"`
	GatewayV4  string   `json:"gatewayV4,omitempty"`
	DNS        []string `json:"dns,omitempty"`
	IPv6       string   `json:"ipV6,omitempty"`
	NetV6      string   `json:"netV6,omitempty"`
	GatewayV6  string   `json:"gatewayV6,omitempty"`
}

// DeviceIPDetail gets detailed IP config for a specific device.
func (c *Client) DeviceIPDetail(ctx context.Context, iface string) (*DeviceIPDetail, error) {
	if strings.TrimSpace(iface) == "" {
		return nil, fmt.Errorf("device name cannot be empty")
	}
	data, err := c.records(ctx, "-m", "multiline", "device", "show", iface)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	item := data[0]
	detail := &DeviceIPDetail{
		Device:     item[NmcliFieldGeneralDevice],
		Type:       item[NmcliFieldGeneralType],
		State:      ParseDeviceState(item[NmcliFieldGeneralState]).String(),
		Connection: valueOrEmpty(item[NmcliFieldGeneralConnection]),
		Mac:        item[NmcliFieldGeneralHwAddr],
		NetV4:      item[NmcliFieldIP4Address1],
		GatewayV4:  item[NmcliFieldIP4Gateway],
		NetV6:      item[NmcliFieldIP6Address1],
		GatewayV6:  item[NmcliFieldIP6Gateway],
		DNS:        []string{},
	}
	for _, field := range []string{NmcliFieldDns1, NmcliFieldDns2} {
		if dns := strings.Fields(item[field]); len(dns) > 0 {
			detail.DNS = append(detail.DNS, dns[0])
		}
	}
	if detail.NetV4 != "" {
		detail.IPv4 = strings.SplitN(detail.NetV4, "/", 2)[0]
	}
	if detail.NetV6 != "" {
		detail.IPv6 = strings.SplitN(detail.NetV6, "/", 2)[0]
	}
	return detail, nil
}

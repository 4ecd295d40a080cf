package gonetworkmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	KeyMgmtWPAPSK = "wpa-psk"
	KeyMgmtSAE    = "sae"

	ProtoRSN = "rsn"
	ProtoWPA = "wpa"

	ModeInfrastructure = "infrastructure"

	IPv4MethodAuto = "auto"

	maxSSIDLength = 32
	minPSKLength  = 8
	maxPSKLength  = 63

	ssidLookupConcurrency = 4
)

var validIPv4Methods = map[string]bool{
	"auto":       true,
	"manual":     true,
	"link-local": true,
	"shared":     true,
	"disabled":   true,
}

// ErrInvalidProfile is wrapped by every Profile.Verify failure.
var ErrInvalidProfile = errors.New("invalid connection profile")

// Profile is a saved or to-be-created wireless connection.
type Profile struct {
	ID         string
	UUID       string
	SSID       []byte
	Mode       string
	KeyMgmt    string
	Proto      []string
	PSK        string
	IPv4Method string
}

// Verify performs the structural checks NetworkManager would reject a
// profile for, without talking to NetworkManager.
func (p Profile) Verify() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(p.ID) == "" {
		return invalid("connection id is empty")
	}
	if len(p.SSID) == 0 || len(p.SSID) > maxSSIDLength {
		return invalid("ssid must be 1-%d bytes, got %d", maxSSIDLength, len(p.SSID))
	}
	if p.Mode != ModeInfrastructure {
		return invalid("unsupported wireless mode %q", p.Mode)
	}
	if !validIPv4Methods[p.IPv4Method] {
		return invalid("unknown ipv4 method %q", p.IPv4Method)
	}
	switch p.KeyMgmt {
	case "":
		if len(p.Proto) > 0 || p.PSK != "" {
			return invalid("security properties set without key-mgmt")
		}
	case KeyMgmtWPAPSK, KeyMgmtSAE:
		if !validPSK(p.PSK) {
			return invalid("psk must be %d-%d characters or 64 hex digits", minPSKLength, maxPSKLength)
		}
		for _, proto := range p.Proto {
			if proto != ProtoRSN && proto != ProtoWPA {
				return invalid("unknown proto %q", proto)
			}
		}
	default:
		return invalid("unsupported key-mgmt %q", p.KeyMgmt)
	}
	return nil
}

func validPSK(psk string) bool {
	if len(psk) >= minPSKLength && len(psk) <= maxPSKLength {
		return true
	}
	if len(psk) != 64 {
		return false
	}
	for _, r := range psk {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ActiveHandle identifies an active connection. Path is the D-Bus active
// connection path when known.
type ActiveHandle struct {
	Path string
	UUID string
	Name string
}

// IsZero reports whether h identifies nothing.
func (h ActiveHandle) IsZero() bool { return h.Path == "" && h.UUID == "" && h.Name == "" }

func (h ActiveHandle) String() string {
	switch {
	case h.Path != "":
		return h.Path
	case h.UUID != "":
		return h.UUID
	default:
		return h.Name
	}
}

// ActiveConnection is one row of `nmcli connection show --active`.
type ActiveConnection struct {
	Name    string
	UUID    string
	Type    string
	Devices []string
	Path    string
}

// Handle returns the handle used to deactivate c.
func (c ActiveConnection) Handle() ActiveHandle {
	return ActiveHandle{Path: c.Path, UUID: c.UUID, Name: c.Name}
}

// HasDevice reports whether iface is one of the connection's devices.
func (c ActiveConnection) HasDevice(iface string) bool {
	for _, d := range c.Devices {
		if d == iface {
			return true
		}
	}
	return false
}

func isWifiType(t string) bool {
	return t == ConnectionTypeWifi || t == connectionTypeWireless
}

// SavedProfiles lists saved wifi profiles with their SSIDs.
func (c *Client) SavedProfiles(ctx context.Context) ([]Profile, error) {
	recs, err := c.records(ctx, "-m", "multiline", "-f", "NAME,UUID,TYPE", "connection", "show")
	if err != nil {
		return nil, fmt.Errorf("could not list profiles: %w", err)
	}
	var profiles []Profile
	for _, rec := range recs {
		if !isWifiType(rec[NmcliFieldConnectionType]) {
			continue
		}
		profiles = append(profiles, Profile{
			ID:   rec[NmcliFieldConnectionName],
			UUID: rec[NmcliFieldConnectionUUID],
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ssidLookupConcurrency)
	for i := range profiles {
		p := &profiles[i]
		g.Go(func() error {
			out, err := c.run(gctx, "-g", eightZeroTwo11SSID, "connection", "show", "uuid", p.UUID)
			if err != nil {
				return fmt.Errorf("read ssid of profile %q: %w", p.ID, err)
			}
			p.SSID = []byte(unescapeTerse(strings.TrimSpace(out)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// ActiveConnections lists all active connections.
func (c *Client) ActiveConnections(ctx context.Context) ([]ActiveConnection, error) {
	recs, err := c.records(ctx, "-m", "multiline", "-f", "NAME,UUID,TYPE,DEVICE,ACTIVE-PATH", "connection", "show", "--active")
	if err != nil {
		return nil, err
	}
	conns := make([]ActiveConnection, 0, len(recs))
	for _, rec := range recs {
		conn := ActiveConnection{
			Name: rec[NmcliFieldConnectionName],
			UUID: rec[NmcliFieldConnectionUUID],
			Type: rec[NmcliFieldConnectionType],
			Path: valueOrEmpty(rec[NmcliFieldConnectionPath]),
		}
		for _, d := range strings.Split(rec[NmcliFieldConnectionDevice], ",") {
			if d = valueOrEmpty(d); d != "" {
				conn.Devices = append(conn.Devices, d)
			}
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// Activate asks NetworkManager to bring up a saved profile on iface. It
// returns once the request is accepted, not when the device is associated.
func (c *Client) Activate(ctx context.Context, profile Profile, iface string) (ActiveHandle, error) {
	ref := []string{"uuid", profile.UUID}
	if profile.UUID == "" {
		ref = []string{"id", profile.ID}
	}
	args := append([]string{"--wait", "0", "connection", "up"}, ref...)
	if iface != "" {
		args = append(args, "ifname", iface)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return ActiveHandle{}, err
	}
	return ActiveHandle{Path: parseActivePath(out), UUID: profile.UUID, Name: profile.ID}, nil
}

// AddAndActivate saves a new profile and activates it. When activation is
// refused the new profile is deleted again.
func (c *Client) AddAndActivate(ctx context.Context, profile Profile, iface string) (ActiveHandle, error) {
	args := []string{
		"connection", "add", "type", ConnectionTypeWifi,
		"con-name", profile.ID,
		"ifname", "*",
		"ssid", string(profile.SSID),
		eightZeroTwo11Mode, profile.Mode,
		ipv4Method, profile.IPv4Method,
	}
	if profile.KeyMgmt != "" {
		args = append(args, wifiSecKeyMgmt, profile.KeyMgmt)
		if len(profile.Proto) > 0 {
			args = append(args, wifiSecProto, strings.Join(profile.Proto, ","))
		}
		args = append(args, wifiSecPSK, profile.PSK)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return ActiveHandle{}, fmt.Errorf("add profile %q: %w", profile.ID, err)
	}
	profile.UUID = parseAddedUUID(out)

	handle, err := c.Activate(ctx, profile, iface)
	if err != nil {
		ref := profile.UUID
		if ref == "" {
			ref = profile.ID
		}
		if _, delErr := c.run(context.WithoutCancel(ctx), "connection", "delete", ref); delErr != nil {
			c.logger.Warn("failed to delete profile after rejected activation", zap.String("profile", ref), zap.Error(delErr))
		}
		return ActiveHandle{}, err
	}
	return handle, nil
}

// Deactivate tears down an active connection.
func (c *Client) Deactivate(ctx context.Context, handle ActiveHandle) error {
	var args []string
	switch {
	case handle.Path != "":
		args = []string{"connection", "down", "apath", handle.Path}
	case handle.UUID != "":
		args = []string{"connection", "down", "uuid", handle.UUID}
	case handle.Name != "":
		args = []string{"connection", "down", "id", handle.Name}
	default:
		return ErrNoActiveConnection
	}
	_, err := c.run(ctx, args...)
	return err
}

// parseActivePath extracts the path from
// "Connection successfully activated (D-Bus active path: /org/.../ActiveConnection/7)".
func parseActivePath(out string) string {
	const marker = "active path:"
	i := strings.Index(out, marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(out[i+len(marker):])
	if j := strings.IndexAny(rest, ") \n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// parseAddedUUID extracts the UUID from "Connection 'x' (uuid) successfully added.".
func parseAddedUUID(out string) string {
	open := strings.LastIndex(out, "(")
	if open < 0 {
		return ""
	}
	end := strings.Index(out[open:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(out[open+1 : open+end])
}

package session

import (
	"bytes"
	"context"
	"time"

	"nmwifi/gonetworkmanager"
)

const minPasswordLength = 8

// Gateway is the slice of NetworkManager the orchestrator drives.
// *gonetworkmanager.Client satisfies it.
type Gateway interface {
	WifiDevice(ctx context.Context, pin string) (gonetworkmanager.Device, error)
	RequestScan(ctx context.Context, iface string) error
	AccessPoints(ctx context.Context, iface string) ([]gonetworkmanager.AccessPoint, error)
	SavedProfiles(ctx context.Context) ([]gonetworkmanager.Profile, error)
	Activate(ctx context.Context, profile gonetworkmanager.Profile, iface string) (gonetworkmanager.ActiveHandle, error)
	AddAndActivate(ctx context.Context, profile gonetworkmanager.Profile, iface string) (gonetworkmanager.ActiveHandle, error)
	Deactivate(ctx context.Context, handle gonetworkmanager.ActiveHandle) error
	DeviceState(ctx context.Context, iface string) (gonetworkmanager.DeviceState, error)
	DeviceActiveConnection(ctx context.Context, iface string) (gonetworkmanager.ActiveHandle, bool, error)
	ActiveConnections(ctx context.Context) ([]gonetworkmanager.ActiveConnection, error)
}

var _ Gateway = (*gonetworkmanager.Client)(nil)

// Policy holds the timing and tolerance knobs of scanning and connecting.
type Policy struct {
	// Interface pins a device name; empty picks the first WiFi device.
	Interface string

	ScanSettle   time.Duration
	ScanInterval time.Duration
	ScanRounds   int

	ConnectGrace  time.Duration
	PollInterval  time.Duration
	MaxSamples    int
	ConnectSettle time.Duration

	// Disconnected samples tolerated while the device is still starting,
	// and while it already reports an active connection.
	DisconnectedGrace       int
	DisconnectedGraceActive int
	UnrecognizedLimit       int

	DisconnectSettle time.Duration

	ActivationTimeout time.Duration
	CommandTimeout    time.Duration

	// AutoRefresh is the period of background refreshes; 0 disables them.
	AutoRefresh time.Duration
}

// DefaultPolicy returns the stock timings.
func DefaultPolicy() Policy {
	return Policy{
		ScanSettle:              time.Second,
		ScanInterval:            500 * time.Millisecond,
		ScanRounds:              5,
		ConnectGrace:            2 * time.Second,
		PollInterval:            500 * time.Millisecond,
		MaxSamples:              30,
		ConnectSettle:           time.Second,
		DisconnectedGrace:       3,
		DisconnectedGraceActive: 6,
		UnrecognizedLimit:       5,
		DisconnectSettle:        2 * time.Second,
		ActivationTimeout:       30 * time.Second,
		CommandTimeout:          15 * time.Second,
	}
}

func findProfile(profiles []gonetworkmanager.Profile, ssid []byte) (gonetworkmanager.Profile, bool) {
	for _, p := range profiles {
		if len(ssid) > 0 && bytes.Equal(p.SSID, ssid) {
			return p, true
		}
	}
	return gonetworkmanager.Profile{}, false
}

// BuildProfile derives a minimal profile for ap. Security follows the
// advertised flags: SAE-only networks get sae, CCMP gets WPA2 (rsn), TKIP
// gets WPA. Addressing is always DHCP.
func BuildProfile(ap gonetworkmanager.AccessPoint, password string) gonetworkmanager.Profile {
	p := gonetworkmanager.Profile{
		ID:         ap.SSIDString(),
		SSID:       append([]byte(nil), ap.SSID...),
		Mode:       gonetworkmanager.ModeInfrastructure,
		IPv4Method: gonetworkmanager.IPv4MethodAuto,
	}
	if !ap.RequiresPassword() {
		return p
	}
	p.PSK = password
	switch {
	case ap.Flags.Has(gonetworkmanager.SecurityKeyMgmtSAE) && !ap.Flags.Has(gonetworkmanager.SecurityKeyMgmtPSK):
		p.KeyMgmt = gonetworkmanager.KeyMgmtSAE
	case ap.Flags.Has(gonetworkmanager.SecurityPairCCMP | gonetworkmanager.SecurityGroupCCMP):
		p.KeyMgmt = gonetworkmanager.KeyMgmtWPAPSK
		p.Proto = []string{gonetworkmanager.ProtoRSN}
	case ap.Flags.Has(gonetworkmanager.SecurityPairTKIP | gonetworkmanager.SecurityGroupTKIP):
		p.KeyMgmt = gonetworkmanager.KeyMgmtWPAPSK
		p.Proto = []string{gonetworkmanager.ProtoWPA}
	default:
		p.KeyMgmt = gonetworkmanager.KeyMgmtWPAPSK
	}
	return p
}

package gonetworkmanager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SecurityFlags mirrors NM80211ApSecurityFlags; WPA and RSN flags are OR-ed together.
type SecurityFlags uint32

const (
	SecurityPairWEP40     SecurityFlags = 0x1
	SecurityPairWEP104    SecurityFlags = 0x2
	SecurityPairTKIP      SecurityFlags = 0x4
	SecurityPairCCMP      SecurityFlags = 0x8
	SecurityGroupWEP40    SecurityFlags = 0x10
	SecurityGroupWEP104   SecurityFlags = 0x20
	SecurityGroupTKIP     SecurityFlags = 0x40
	SecurityGroupCCMP     SecurityFlags = 0x80
	SecurityKeyMgmtPSK    SecurityFlags = 0x100
	SecurityKeyMgmt8021X  SecurityFlags = 0x200
	SecurityKeyMgmtSAE    SecurityFlags = 0x400
	SecurityKeyMgmtOWE    SecurityFlags = 0x800
	SecurityKeyMgmtOWETM  SecurityFlags = 0x1000
	SecurityKeyMgmtSuiteB SecurityFlags = 0x2000
)

var securityFlagNames = map[string]SecurityFlags{
	"pair_wep40":          SecurityPairWEP40,
	"pair_wep104":         SecurityPairWEP104,
	"pair_tkip":           SecurityPairTKIP,
	"pair_ccmp":           SecurityPairCCMP,
	"group_wep40":         SecurityGroupWEP40,
	"group_wep104":        SecurityGroupWEP104,
	"group_tkip":          SecurityGroupTKIP,
	"group_ccmp":          SecurityGroupCCMP,
	"psk":                 SecurityKeyMgmtPSK,
	"802.1x":              SecurityKeyMgmt8021X,
	"sae":                 SecurityKeyMgmtSAE,
	"owe":                 SecurityKeyMgmtOWE,
	"owe_transition_mode": SecurityKeyMgmtOWETM,
	"eap_suite_b_192":     SecurityKeyMgmtSuiteB,
}

// ParseSecurityFlags parses nmcli's "pair_ccmp group_ccmp psk" notation.
// "(none)" and unknown words contribute nothing.
func ParseSecurityFlags(s string) SecurityFlags {
	var flags SecurityFlags
	for _, word := range strings.Fields(strings.ToLower(s)) {
		flags |= securityFlagNames[word]
	}
	return flags
}

// Has reports whether any of mask is set.
func (f SecurityFlags) Has(mask SecurityFlags) bool { return f&mask != 0 }

// AccessPoint is one observed beacon. BSSID is the stable identity.
type AccessPoint struct {
	BSSID      string
	SSID       []byte
	Strength   uint8
	Frequency  uint32 // MHz, 0 when unknown
	Channel    int
	Flags      SecurityFlags
	Privacy    bool
	Mode       string
	MaxBitrate uint32 // kbit/s
	InUse      bool
}

// SSIDString returns the SSID as text, or "" for hidden networks.
func (ap AccessPoint) SSIDString() string { return string(ap.SSID) }

// IsHidden reports whether the AP does not broadcast its SSID.
func (ap AccessPoint) IsHidden() bool { return len(ap.SSID) == 0 }

const keyMgmtFlags = SecurityKeyMgmtPSK | SecurityKeyMgmt8021X | SecurityKeyMgmtSAE

// RequiresPassword reports whether connecting needs a secret. WEP counts.
func (ap AccessPoint) RequiresPassword() bool {
	return ap.Flags.Has(keyMgmtFlags) || ap.IsWEP()
}

// IsWEP reports whether WEP is the only security the AP offers.
func (ap AccessPoint) IsWEP() bool {
	if ap.Flags.Has(keyMgmtFlags) {
		return false
	}
	return ap.Privacy || ap.Flags.Has(SecurityPairWEP40|SecurityPairWEP104|SecurityGroupWEP40|SecurityGroupWEP104)
}

// SecurityLabel summarises the advertised security, "Open" when none.
func (ap AccessPoint) SecurityLabel() string {
	var parts []string
	if ap.Flags.Has(SecurityPairWEP40|SecurityPairWEP104) || (ap.Privacy && ap.Flags == 0) {
		parts = append(parts, "WEP")
	}
	if ap.Flags.Has(SecurityKeyMgmtSAE) {
		parts = append(parts, "WPA3")
	}
	if ap.Flags.Has(SecurityPairCCMP | SecurityGroupCCMP) {
		parts = append(parts, "WPA2")
	}
	if ap.Flags.Has(SecurityPairTKIP | SecurityGroupTKIP) {
		parts = append(parts, "WPA")
	}
	if ap.Flags.Has(SecurityKeyMgmtPSK) {
		parts = append(parts, "PSK")
	}
	if ap.Flags.Has(SecurityKeyMgmt8021X) {
		parts = append(parts, "802.1X")
	}
	if len(parts) == 0 {
		return "Open"
	}
	return strings.Join(parts, ", ")
}

// Band names the frequency band, "" when the frequency is unknown.
func (ap AccessPoint) Band() string {
	switch {
	case ap.Frequency == 0:
		return ""
	case ap.Frequency < 3000:
		return "2.4 GHz"
	case ap.Frequency < 5925:
		return "5 GHz"
	default:
		return "6 GHz"
	}
}

// NormalizeBSSID lowercases a colon-separated hardware address.
func NormalizeBSSID(bssid string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(bssid, `\:`, ":")))
}

var accessPointFields = strings.Join([]string{
	NmcliFieldWifiInUse, NmcliFieldWifiBSSID, NmcliFieldWifiSSID, NmcliFieldWifiMode,
	NmcliFieldWifiChannel, NmcliFieldWifiFrequency, NmcliFieldWifiRate, NmcliFieldWifiSignal,
	NmcliFieldWifiSecurity, NmcliFieldWifiWPAFlags, NmcliFieldWifiRSNFlags,
}, ",")

// AccessPoints lists the access points currently known to iface without rescanning.
func (c *Client) AccessPoints(ctx context.Context, iface string) ([]AccessPoint, error) {
	args := []string{"-m", "multiline", "-f", accessPointFields, "device", "wifi", "list"}
	if iface != "" {
		args = append(args, "ifname", iface)
	}
	args = append(args, "--rescan", "no")
	recs, err := c.records(ctx, args...)
	if err != nil {
		return nil, err
	}
	aps := make([]AccessPoint, 0, len(recs))
	for _, rec := range recs {
		ap, ok := parseAccessPoint(rec)
		if !ok {
			continue
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

func parseAccessPoint(rec map[string]string) (AccessPoint, bool) {
	bssid := NormalizeBSSID(rec[NmcliFieldWifiBSSID])
	if bssid == "" {
		return AccessPoint{}, false
	}
	ap := AccessPoint{
		BSSID:      bssid,
		Strength:   parseStrength(rec[NmcliFieldWifiSignal]),
		Frequency:  uint32(leadingNumber(rec[NmcliFieldWifiFrequency])),
		Channel:    int(leadingNumber(rec[NmcliFieldWifiChannel])),
		Flags:      ParseSecurityFlags(rec[NmcliFieldWifiWPAFlags]) | ParseSecurityFlags(rec[NmcliFieldWifiRSNFlags]),
		Privacy:    strings.Contains(rec[NmcliFieldWifiSecurity], "WEP"),
		Mode:       valueOrEmpty(rec[NmcliFieldWifiMode]),
		MaxBitrate: parseBitrate(rec[NmcliFieldWifiRate]),
		InUse:      strings.TrimSpace(rec[NmcliFieldWifiInUse]) == "*",
	}
	if ssid := rec[NmcliFieldWifiSSID]; ssid != "" && ssid != emptyValue {
		ap.SSID = []byte(ssid)
	}
	return ap, true
}

func parseStrength(s string) uint8 {
	n := leadingNumber(s)
	if n > 100 {
		n = 100
	}
	return uint8(n)
}

// parseBitrate converts "130 Mbit/s" to kbit/s.
func parseBitrate(s string) uint32 {
	n := leadingNumber(s)
	if strings.Contains(strings.ToLower(s), "kbit") {
		return uint32(n)
	}
	return uint32(n * 1000)
}

func leadingNumber(s string) int64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RequestScan asks NetworkManager to rescan. ErrScanInProgress is returned
// when a scan is already running.
func (c *Client) RequestScan(ctx context.Context, iface string) error {
	args := []string{"device", "wifi", "rescan"}
	if iface != "" {
		args = append(args, "ifname", iface)
	}
	_, err := c.run(ctx, args...)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		stderr := strings.ToLower(cmdErr.Stderr)
		if strings.Contains(stderr, "not allowed") || strings.Contains(stderr, "in progress") {
			return fmt.Errorf("%w: %v", ErrScanInProgress, err)
		}
	}
	return err
}

// ActiveAccessPoint returns the BSSID iface is associated with.
func (c *Client) ActiveAccessPoint(ctx context.Context, iface string) (string, bool, error) {
	aps, err := c.AccessPoints(ctx, iface)
	if err != nil {
		return "", false, err
	}
	for _, ap := range aps {
		if ap.InUse {
			return ap.BSSID, true, nil
		}
	}
	return "", false, nil
}

// WifiEnabled reports the WiFi radio state.
func (c *Client) WifiEnabled(ctx context.Context) (bool, error) {
	status, err := c.run(ctx, "radio", "wifi")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(status) == "enabled", nil
}

// SetWifiEnabled switches the WiFi radio on or off.
func (c *Client) SetWifiEnabled(ctx context.Context, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	_, err := c.run(ctx, "radio", "wifi", state)
	return err
}

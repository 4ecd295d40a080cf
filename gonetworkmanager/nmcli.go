// Package gonetworkmanager is a thin client for NetworkManager built on the
// nmcli command line tool. It covers what a WiFi manager needs: device
// enumeration, scanning, access point listing, saved profiles, connection
// activation and device state.
package gonetworkmanager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// --- Constants for nmcli field names ---
const (
	NmcliFieldGeneralDevice     = "GENERAL.DEVICE"
	NmcliFieldGeneralType       = "GENERAL.TYPE"
	NmcliFieldGeneralState      = "GENERAL.STATE"
	NmcliFieldGeneralConnection = "GENERAL.CONNECTION"
	NmcliFieldGeneralConPath    = "GENERAL.CON-PATH"
	NmcliFieldGeneralHwAddr     = "GENERAL.HWADDR"
	NmcliFieldIP4Address1       = "IP4.ADDRESS[1]"
	NmcliFieldIP4Gateway        = "IP4.GATEWAY"
	NmcliFieldDns1              = "IP4.DNS[1]"
	NmcliFieldDns2              = "IP4.DNS[2]"
	NmcliFieldIP6Address1       = "IP6.ADDRESS[1]"
	NmcliFieldIP6Gateway        = "IP6.GATEWAY"
	NmcliFieldConnectionName    = "NAME"
	NmcliFieldConnectionUUID    = "UUID"
	NmcliFieldConnectionType    = "TYPE"
	NmcliFieldConnectionDevice  = "DEVICE"
	NmcliFieldConnectionPath    = "ACTIVE-PATH"
	NmcliFieldWifiInUse         = "IN-USE"
	NmcliFieldWifiBSSID         = "BSSID"
	NmcliFieldWifiSSID          = "SSID"
	NmcliFieldWifiMode          = "MODE"
	NmcliFieldWifiChannel       = "CHAN"
	NmcliFieldWifiFrequency     = "FREQ"
	NmcliFieldWifiRate          = "RATE"
	NmcliFieldWifiSignal        = "SIGNAL"
	NmcliFieldWifiSecurity      = "SECURITY"
	NmcliFieldWifiWPAFlags      = "WPA-FLAGS"
	NmcliFieldWifiRSNFlags      = "RSN-FLAGS"

	ConnectionTypeWifi     = "wifi"
	connectionTypeWireless = "802-11-wireless"
	eightZeroTwo11SSID     = "802-11-wireless.ssid"
	eightZeroTwo11Mode     = "802-11-wireless.mode"
	wifiSecKeyMgmt         = "wifi-sec.key-mgmt"
	wifiSecProto           = "wifi-sec.proto"
	wifiSecPSK             = "wifi-sec.psk"
	ipv4Method             = "ipv4.method"
	emptyValue             = "--"
)

var (
	// ErrNoWifiDevice is returned when NetworkManager manages no wireless device.
	ErrNoWifiDevice = errors.New("no WiFi device found")
	// ErrNoActiveConnection is returned when a device has nothing to deactivate.
	ErrNoActiveConnection = errors.New("no active connection")
	// ErrScanInProgress is returned when NetworkManager refuses a rescan because one is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// CommandError describes a failed nmcli invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("nmcli command '%s' failed: %s (underlying error: %v)", strings.Join(e.Args, " "), e.Stderr, e.Err)
	}
	return fmt.Sprintf("nmcli command '%s' failed: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes nmcli with the given arguments and returns trimmed stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

// Client talks to NetworkManager through a Runner.
type Client struct {
	run    Runner
	logger *zap.Logger
}

// NewClient returns a Client that executes the nmcli binary.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{logger: logger}
	c.run = c.execNmcli
	return c
}

// NewClientWithRunner returns a Client backed by run instead of the nmcli binary.
func NewClientWithRunner(run Runner, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{run: run, logger: logger}
}

// CheckAvailable reports whether nmcli can be executed.
func CheckAvailable() error {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return fmt.Errorf("'nmcli' is not installed or not found in PATH")
	}
	return nil
}

func (c *Client) execNmcli(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "nmcli", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	c.logger.Debug("executing nmcli", zap.Strings("args", redact(args)))
	err := cmd.Run()
	stderrStr := strings.TrimSpace(stderr.String())
	stdoutStr := strings.TrimSpace(stdout.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdoutStr, &CommandError{Args: redact(args), Stderr: stderrStr, Err: err}
	}
	if stderrStr != "" {
		c.logger.Debug("nmcli succeeded with stderr", zap.Strings("args", redact(args)), zap.String("stderr", stderrStr))
	}
	return stdoutStr, nil
}

func (c *Client) records(ctx context.Context, args ...string) ([]map[string]string, error) {
	output, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseNmcliMultilineOutput(output)
}

// redact hides secrets that follow a psk argument.
func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == wifiSecPSK || out[i] == "password" {
			out[i+1] = "********"
		}
	}
	return out
}

func parseNmcliMultilineOutput(output string) ([]map[string]string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return []map[string]string{}, nil
	}
	var records []map[string]string
	var currentRecord map[string]string
	var firstKeyOfRecord string
	for i, line := range strings.Split(output, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			continue
		}
		parts := strings.SplitN(trimmedLine, ":", 2)
		if len(parts) != 2 {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("malformed line in multiline output: %q", trimmedLine)
		}
		key := strings.TrimSpace(parts[0])
		// Only trim leading whitespace from the value to preserve trailing spaces in SSIDs.
		value := strings.TrimLeft(parts[1], " \t")
		if key == "" {
			return nil, fmt.Errorf("empty key for value: %q", value)
		}
		if currentRecord == nil {
			currentRecord = make(map[string]string)
			firstKeyOfRecord = key
		} else if key == firstKeyOfRecord && len(currentRecord) > 0 {
			records = append(records, currentRecord)
			currentRecord = make(map[string]string)
		}
		currentRecord[key] = value
	}
	if len(currentRecord) > 0 {
		records = append(records, currentRecord)
	}
	return records, nil
}

// unescapeTerse undoes the backslash escaping nmcli applies in terse mode.
func unescapeTerse(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitTerse splits a terse nmcli line on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var b strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(fields, b.String())
}

func valueOrEmpty(v string) string {
	v = strings.TrimSpace(v)
	if v == emptyValue {
		return ""
	}
	return v
}

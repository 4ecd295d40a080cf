package session

import (
	"errors"
	"fmt"

	"nmwifi/gonetworkmanager"
)

// Kind categorizes a session failure.
type Kind int

const (
	// KindGatewayUnavailable means no wireless device could be used.
	KindGatewayUnavailable Kind = iota + 1
	// KindScanEmpty means a scan finished without any access point.
	KindScanEmpty
	// KindValidationFailed means a new profile was malformed; nothing was sent.
	KindValidationFailed
	// KindActivationRejected means NetworkManager refused the request.
	KindActivationRejected
	// KindDeviceFailed means the device reported failure, usually bad credentials.
	KindDeviceFailed
	// KindDeviceUnavailable means the device is unmanaged or unavailable.
	KindDeviceUnavailable
	// KindTimeout means polling ran out before a terminal device state.
	KindTimeout
	// KindUnrecognized means the device kept reporting a state with no meaning here.
	KindUnrecognized
	// KindDisconnected means the device stayed disconnected past the grace samples.
	KindDisconnected
	KindNoActiveConnection
	KindDeactivationFailed
	KindBusy
	KindPasswordTooShort
	KindUnknownNetwork
	// KindScanFailed means the device exists but its access points could not be listed.
	KindScanFailed
	// KindProfileLookupFailed means saved profiles could not be read; nothing was activated.
	KindProfileLookupFailed
	// KindUnsupportedSecurity means the network needs a saved profile this tool cannot create.
	KindUnsupportedSecurity
)

func (k Kind) String() string {
	switch k {
	case KindGatewayUnavailable:
		return "gateway-unavailable"
	case KindScanEmpty:
		return "scan-empty"
	case KindValidationFailed:
		return "validation"
	case KindActivationRejected:
		return "activation-rejected"
	case KindDeviceFailed:
		return "device-failed"
	case KindDeviceUnavailable:
		return "device-unavailable"
	case KindTimeout:
		return "timeout"
	case KindUnrecognized:
		return "unrecognized-state"
	case KindDisconnected:
		return "disconnected"
	case KindNoActiveConnection:
		return "no-active-connection"
	case KindDeactivationFailed:
		return "deactivation-failed"
	case KindBusy:
		return "busy"
	case KindPasswordTooShort:
		return "password-too-short"
	case KindUnknownNetwork:
		return "unknown-network"
	case KindScanFailed:
		return "scan-failed"
	case KindProfileLookupFailed:
		return "profile-lookup-failed"
	case KindUnsupportedSecurity:
		return "unsupported-security"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure local to one scan, connection attempt or disconnect.
// Its message is the status line shown to the user.
type Error struct {
	Kind  Kind
	SSID  string
	State gonetworkmanager.DeviceState
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindGatewayUnavailable:
		if e.Err != nil && !errors.Is(e.Err, gonetworkmanager.ErrNoWifiDevice) {
			return fmt.Sprintf("No WiFi device found: %v", e.Err)
		}
		return "No WiFi device found"
	case KindScanEmpty:
		return "No networks found"
	case KindValidationFailed:
		return fmt.Sprintf("Invalid connection settings for %s: %v", e.SSID, e.Err)
	case KindActivationRejected:
		return fmt.Sprintf("Failed to connect to %s: %v", e.SSID, e.Err)
	case KindDeviceFailed:
		return fmt.Sprintf("Connection to %s failed. Password may be required.", e.SSID)
	case KindDeviceUnavailable:
		return fmt.Sprintf("Connection to %s failed (%s)", e.SSID, e.State)
	case KindTimeout:
		return fmt.Sprintf("Connection to %s timed out", e.SSID)
	case KindUnrecognized:
		return fmt.Sprintf("Connection to %s failed (unknown state: %s)", e.SSID, e.State)
	case KindDisconnected:
		return fmt.Sprintf("Connection to %s failed (disconnected)", e.SSID)
	case KindNoActiveConnection:
		return "No active connection to disconnect"
	case KindDeactivationFailed:
		return fmt.Sprintf("Failed to disconnect: %v", e.Err)
	case KindBusy:
		return "Another network operation is in progress"
	case KindPasswordTooShort:
		return fmt.Sprintf("Password must be at least %d characters", minPasswordLength)
	case KindUnknownNetwork:
		return fmt.Sprintf("Network %s is no longer available", e.SSID)
	case KindScanFailed:
		return fmt.Sprintf("Scan failed: %v", e.Err)
	case KindProfileLookupFailed:
		return fmt.Sprintf("Could not read saved profiles for %s: %v", e.SSID, e.Err)
	case KindUnsupportedSecurity:
		return fmt.Sprintf("%s uses WEP; connect with a saved profile", e.SSID)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: KindTimeout}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind reports whether err is a session *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

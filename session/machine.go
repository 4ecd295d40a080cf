package session

import (
	"fmt"

	"nmwifi/gonetworkmanager"
)

// State is a connection or disconnect phase.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateValidating
	StateActivating
	StatePolling
	StateConnected
	StateFailed
	StateTimedOut
	StateDeactivating
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateValidating:
		return "validating"
	case StateActivating:
		return "activating"
	case StatePolling:
		return "polling"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	case StateDeactivating:
		return "deactivating"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no automatic transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateConnected, StateFailed, StateTimedOut, StateDisconnected:
		return true
	}
	return false
}

// StateChanged is emitted for every transition of an attempt.
type StateChanged struct {
	AttemptID uint64
	SSID      string
	From      State
	To        State
}

// Machine is the state of one connection attempt or disconnect.
type Machine struct {
	id       uint64
	ssid     string
	state    State
	samples  int
	err      *Error
	policy   Policy
	observer func(StateChanged)
}

func newMachine(id uint64, ssid string, policy Policy, observer func(StateChanged)) *Machine {
	return &Machine{id: id, ssid: ssid, policy: policy, observer: observer}
}

// ID returns the attempt id.
func (m *Machine) ID() uint64 { return m.id }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Samples returns how many device states were observed while polling.
func (m *Machine) Samples() int { return m.samples }

// Err returns the failure of a Failed or TimedOut machine.
func (m *Machine) Err() *Error { return m.err }

func (m *Machine) transition(to State) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	if m.observer != nil {
		m.observer(StateChanged{AttemptID: m.id, SSID: m.ssid, From: from, To: to})
	}
}

func (m *Machine) fail(kind Kind, state gonetworkmanager.DeviceState, err error) {
	m.err = &Error{Kind: kind, SSID: m.ssid, State: state, Err: err}
	if kind == KindTimeout {
		m.transition(StateTimedOut)
		return
	}
	m.transition(StateFailed)
}

// Miss records a sample whose device state could not be read. It counts
// toward the timeout but is not classified. It returns true once the
// machine is terminal.
func (m *Machine) Miss() bool {
	if m.state != StatePolling {
		return m.state.Terminal()
	}
	m.samples++
	if m.samples >= m.policy.MaxSamples {
		m.fail(KindTimeout, gonetworkmanager.DeviceStateUnknown, nil)
		return true
	}
	return false
}

// Observe classifies one polled device state. hasActive tells whether the
// device reports an active connection. It returns true once the machine is
// terminal.
func (m *Machine) Observe(ds gonetworkmanager.DeviceState, hasActive bool) bool {
	if m.state != StatePolling {
		return m.state.Terminal()
	}
	m.samples++
	switch ds {
	case gonetworkmanager.DeviceStateActivated:
		m.transition(StateConnected)
		return true
	case gonetworkmanager.DeviceStatePrepare,
		gonetworkmanager.DeviceStateConfig,
		gonetworkmanager.DeviceStateNeedAuth,
		gonetworkmanager.DeviceStateIPConfig,
		gonetworkmanager.DeviceStateIPCheck,
		gonetworkmanager.DeviceStateSecondaries:
	case gonetworkmanager.DeviceStateDisconnected:
		limit := m.policy.DisconnectedGrace
		if hasActive {
			limit = m.policy.DisconnectedGraceActive
		}
		if m.samples > limit {
			m.fail(KindDisconnected, ds, nil)
			return true
		}
	case gonetworkmanager.DeviceStateFailed:
		m.fail(KindDeviceFailed, ds, nil)
		return true
	case gonetworkmanager.DeviceStateUnmanaged, gonetworkmanager.DeviceStateUnavailable:
		m.fail(KindDeviceUnavailable, ds, nil)
		return true
	default:
		if m.samples >= m.policy.UnrecognizedLimit {
			m.fail(KindUnrecognized, ds, nil)
			return true
		}
	}
	if m.samples >= m.policy.MaxSamples {
		m.fail(KindTimeout, ds, nil)
		return true
	}
	return false
}

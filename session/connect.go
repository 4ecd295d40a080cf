package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"nmwifi/gonetworkmanager"
)

type (
	resolvedMsg struct {
		id       uint64
		iface    string
		profile  gonetworkmanager.Profile
		existing bool
		err      error
	}
	activatedMsg struct {
		id     uint64
		handle gonetworkmanager.ActiveHandle
		err    error
	}
	pollMsg struct {
		id uint64
	}
	sampleMsg struct {
		id        uint64
		state     gonetworkmanager.DeviceState
		hasActive bool
		err       error
	}
	deactivatedMsg struct {
		id   uint64
		name string
		err  error
	}
)

// DisplaySSID is the label used for ap in status lines.
func DisplaySSID(ap gonetworkmanager.AccessPoint) string {
	if ap.IsHidden() {
		return "<hidden>"
	}
	return ap.SSIDString()
}

func (o *Orchestrator) reject(err *Error) error {
	o.sink.Status(err.Error())
	return err
}

// Connect starts a connection attempt to the network keyed by key. The
// password is only used when no saved profile exists for the SSID.
func (o *Orchestrator) Connect(key, password string) (tea.Cmd, error) {
	if o.attempt != nil {
		return nil, o.reject(&Error{Kind: KindBusy})
	}
	entry, ok := o.table.Get(gonetworkmanager.NormalizeBSSID(key))
	if !ok {
		return nil, o.reject(&Error{Kind: KindUnknownNetwork, SSID: key})
	}
	ssid := DisplaySSID(entry.AP)
	if entry.Row.NeedsPassword && entry.AP.IsWEP() {
		return nil, o.reject(&Error{Kind: KindUnsupportedSecurity, SSID: ssid})
	}
	if entry.Row.NeedsPassword && len(password) < minPasswordLength {
		return nil, o.reject(&Error{Kind: KindPasswordTooShort, SSID: ssid})
	}

	o.attemptSeq++
	a := &attempt{
		machine:   newMachine(o.attemptSeq, ssid, o.policy, o.observe),
		action:    ActionConnect,
		key:       entry.Key,
		ap:        entry.AP,
		password:  password,
		startedAt: time.Now(),
	}
	o.attempt = a
	a.machine.transition(StateResolving)
	o.sink.Status(fmt.Sprintf("Connecting to %s...", ssid))
	o.publish()
	return o.resolveCmd(a.machine.ID(), entry.AP.SSID), nil
}

// Disconnect deactivates whatever connection the managed device has.
func (o *Orchestrator) Disconnect() (tea.Cmd, error) {
	if o.attempt != nil {
		return nil, o.reject(&Error{Kind: KindBusy})
	}
	o.attemptSeq++
	a := &attempt{
		machine:   newMachine(o.attemptSeq, "", o.policy, o.observe),
		action:    ActionDisconnect,
		startedAt: time.Now(),
	}
	o.attempt = a
	a.machine.transition(StateDeactivating)
	o.sink.Status("Disconnecting...")
	o.publish()
	return o.deactivateCmd(a.machine.ID()), nil
}

// current returns the in-flight attempt if id still names it.
func (o *Orchestrator) current(id uint64, what string) *attempt {
	if o.attempt == nil || o.attempt.machine.ID() != id {
		o.logger.Debug("discarding stale attempt result", zap.String("result", what), zap.Uint64("attempt", id))
		return nil
	}
	return o.attempt
}

func (o *Orchestrator) resolveCmd(id uint64, ssid []byte) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(o.ctx, o.policy.CommandTimeout)
		defer cancel()
		dev, err := o.gw.WifiDevice(ctx, o.policy.Interface)
		if err != nil {
			return resolvedMsg{id: id, err: err}
		}
		profiles, err := o.gw.SavedProfiles(ctx)
		if err != nil {
			return resolvedMsg{id: id, iface: dev.Interface, err: fmt.Errorf("list saved profiles: %w", err)}
		}
		p, found := findProfile(profiles, ssid)
		return resolvedMsg{id: id, iface: dev.Interface, profile: p, existing: found}
	}
}

func (o *Orchestrator) handleResolved(msg resolvedMsg) tea.Cmd {
	a := o.current(msg.id, "resolve")
	if a == nil {
		return nil
	}
	if msg.err != nil {
		kind := KindProfileLookupFailed
		if msg.iface == "" {
			kind = KindGatewayUnavailable
		}
		return o.fail(a, kind, msg.err)
	}
	a.iface = msg.iface

	if msg.existing {
		a.usesExisting = true
		a.machine.transition(StateActivating)
		return o.activateCmd(a.machine.ID(), msg.profile, a.iface, true)
	}

	if a.ap.IsWEP() {
		return o.fail(a, KindUnsupportedSecurity, nil)
	}
	if a.ap.RequiresPassword() && len(a.password) < minPasswordLength {
		return o.fail(a, KindPasswordTooShort, nil)
	}
	a.machine.transition(StateValidating)
	profile := BuildProfile(a.ap, a.password)
	if err := profile.Verify(); err != nil {
		return o.fail(a, KindValidationFailed, err)
	}
	a.machine.transition(StateActivating)
	return o.activateCmd(a.machine.ID(), profile, a.iface, false)
}

func (o *Orchestrator) activateCmd(id uint64, profile gonetworkmanager.Profile, iface string, existing bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(o.ctx, o.policy.ActivationTimeout)
		defer cancel()
		var (
			handle gonetworkmanager.ActiveHandle
			err    error
		)
		if existing {
			handle, err = o.gw.Activate(ctx, profile, iface)
		} else {
			handle, err = o.gw.AddAndActivate(ctx, profile, iface)
		}
		return activatedMsg{id: id, handle: handle, err: err}
	}
}

func (o *Orchestrator) handleActivated(msg activatedMsg) tea.Cmd {
	a := o.current(msg.id, "activate")
	if a == nil {
		return nil
	}
	if msg.err != nil {
		return o.fail(a, KindActivationRejected, msg.err)
	}
	a.handle = msg.handle
	a.machine.transition(StatePolling)
	return o.after(o.policy.ConnectGrace, pollMsg{id: msg.id})
}

func (o *Orchestrator) handlePoll(msg pollMsg) tea.Cmd {
	a := o.current(msg.id, "poll")
	if a == nil {
		return nil
	}
	return o.sampleCmd(msg.id, a.iface)
}

func (o *Orchestrator) sampleCmd(id uint64, iface string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(o.ctx, o.policy.CommandTimeout)
		defer cancel()
		state, err := o.gw.DeviceState(ctx, iface)
		if err != nil {
			return sampleMsg{id: id, err: err}
		}
		msg := sampleMsg{id: id, state: state}
		if state == gonetworkmanager.DeviceStateDisconnected {
			if _, ok, err := o.gw.DeviceActiveConnection(ctx, iface); err == nil {
				msg.hasActive = ok
			}
		}
		return msg
	}
}

func (o *Orchestrator) handleSample(msg sampleMsg) tea.Cmd {
	a := o.current(msg.id, "sample")
	if a == nil {
		return nil
	}
	if msg.err != nil {
		o.logger.Warn("device state sample failed",
			zap.Uint64("attempt", msg.id),
			zap.Int("sample", a.machine.Samples()+1),
			zap.Error(msg.err))
		if a.machine.Miss() {
			return o.complete(a)
		}
		return o.after(o.policy.PollInterval, pollMsg{id: msg.id})
	}
	o.logger.Debug("device state sampled",
		zap.Uint64("attempt", msg.id),
		zap.Int("sample", a.machine.Samples()+1),
		zap.Stringer("state", msg.state))
	if a.machine.Observe(msg.state, msg.hasActive) {
		return o.complete(a)
	}
	return o.after(o.policy.PollInterval, pollMsg{id: msg.id})
}

func (o *Orchestrator) deactivateCmd(id uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(o.ctx, o.policy.CommandTimeout)
		defer cancel()
		dev, err := o.gw.WifiDevice(ctx, o.policy.Interface)
		if err != nil {
			return deactivatedMsg{id: id, err: err}
		}
		handle, ok, err := o.gw.DeviceActiveConnection(ctx, dev.Interface)
		if err != nil {
			o.logger.Debug("device active connection lookup failed", zap.String("device", dev.Interface), zap.Error(err))
		}
		if !ok {
			conns, err := o.gw.ActiveConnections(ctx)
			if err != nil {
				return deactivatedMsg{id: id, err: err}
			}
			for _, c := range conns {
				if c.HasDevice(dev.Interface) {
					handle, ok = c.Handle(), true
					break
				}
			}
		}
		if !ok {
			return deactivatedMsg{id: id, err: gonetworkmanager.ErrNoActiveConnection}
		}
		return deactivatedMsg{id: id, name: handle.Name, err: o.gw.Deactivate(ctx, handle)}
	}
}

func (o *Orchestrator) handleDeactivated(msg deactivatedMsg) tea.Cmd {
	a := o.current(msg.id, "deactivate")
	if a == nil {
		return nil
	}
	a.machine.ssid = msg.name
	switch {
	case errors.Is(msg.err, gonetworkmanager.ErrNoActiveConnection):
		return o.fail(a, KindNoActiveConnection, msg.err)
	case errors.Is(msg.err, gonetworkmanager.ErrNoWifiDevice):
		return o.fail(a, KindGatewayUnavailable, msg.err)
	case msg.err != nil:
		return o.fail(a, KindDeactivationFailed, msg.err)
	}
	a.machine.transition(StateDisconnected)
	return o.complete(a)
}

func (o *Orchestrator) fail(a *attempt, kind Kind, err error) tea.Cmd {
	a.machine.fail(kind, gonetworkmanager.DeviceStateUnknown, err)
	return o.complete(a)
}

// complete ends the attempt: controls come back, the status shows the
// outcome, and a success schedules one follow-up refresh.
func (o *Orchestrator) complete(a *attempt) tea.Cmd {
	m := a.machine
	o.attempt = nil
	out := Outcome{AttemptID: m.ID(), Action: a.action, SSID: m.ssid, State: m.State()}
	if e := m.Err(); e != nil {
		out.Err = e
	}
	o.last = &out
	o.publish()

	fields := []zap.Field{
		zap.Uint64("attempt", m.ID()),
		zap.Stringer("action", a.action),
		zap.Stringer("state", m.State()),
		zap.Duration("elapsed", time.Since(a.startedAt)),
	}
	if a.action == ActionConnect {
		fields = append(fields, zap.Bool("existing_profile", a.usesExisting), zap.Int("samples", m.Samples()))
	}

	switch m.State() {
	case StateConnected:
		o.logger.Info("attempt finished", fields...)
		o.sink.Status(fmt.Sprintf("Connected to %s", m.ssid))
		return o.after(o.policy.ConnectSettle, followUpMsg{})
	case StateDisconnected:
		o.logger.Info("attempt finished", fields...)
		o.sink.Status("Disconnected")
		return o.after(o.policy.DisconnectSettle, followUpMsg{})
	default:
		o.logger.Warn("attempt failed", append(fields, zap.Error(out.Err))...)
		o.sink.Status(out.Err.Error())
		return nil
	}
}

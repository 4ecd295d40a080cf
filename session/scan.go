package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"nmwifi/gonetworkmanager"
	"nmwifi/netlist"
)

type scanResultMsg struct {
	id     uint64
	iface  string
	aps    []gonetworkmanager.AccessPoint
	saved  map[string]bool
	rounds int
	err    error
}

// Refresh starts a scan. A non-manual refresh is dropped while another scan
// is in flight; a manual one supersedes it and clears the visible rows
// right away. Table entries and their rows survive the clear.
func (o *Orchestrator) Refresh(manual bool) tea.Cmd {
	if o.scanning && !manual {
		o.logger.Debug("refresh dropped, scan in flight", zap.Uint64("scan", o.scanID))
		return nil
	}
	o.scanID++
	o.scanning = true
	if manual {
		for _, key := range o.visible {
			o.sink.Mutate(netlist.Op{Kind: netlist.OpRemove, Key: key})
		}
		o.visible = nil
	}
	if o.attempt == nil {
		o.sink.Status("Scanning for networks...")
	}
	o.logger.Debug("scan started", zap.Uint64("scan", o.scanID), zap.Bool("manual", manual))
	return o.scanCmd(o.scanID)
}

func (o *Orchestrator) scanBudget() time.Duration {
	return o.policy.CommandTimeout + o.policy.ScanSettle + time.Duration(o.policy.ScanRounds)*o.policy.ScanInterval
}

// scanCmd looks the device up afresh, triggers a scan and polls the listing
// until it is non-empty or the rounds run out, then does one last read.
func (o *Orchestrator) scanCmd(id uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(o.ctx, o.scanBudget())
		defer cancel()

		res := scanResultMsg{id: id}
		dev, err := o.gw.WifiDevice(ctx, o.policy.Interface)
		if err != nil {
			res.err = err
			return res
		}
		res.iface = dev.Interface

		if err := o.gw.RequestScan(ctx, dev.Interface); err != nil && !errors.Is(err, gonetworkmanager.ErrScanInProgress) {
			o.logger.Warn("scan request rejected", zap.String("device", dev.Interface), zap.Error(err))
		}

		res.aps, res.rounds, res.err = o.pollAccessPoints(ctx, dev.Interface)
		if res.err != nil {
			return res
		}
		res.saved = o.savedSSIDs(ctx)
		return res
	}
}

func (o *Orchestrator) pollAccessPoints(ctx context.Context, iface string) ([]gonetworkmanager.AccessPoint, int, error) {
	if err := o.sleep(ctx, o.policy.ScanSettle); err != nil {
		return nil, 0, err
	}
	for round := 1; round <= o.policy.ScanRounds; round++ {
		if err := o.sleep(ctx, o.policy.ScanInterval); err != nil {
			return nil, round, err
		}
		aps, err := o.gw.AccessPoints(ctx, iface)
		if err != nil {
			o.logger.Debug("access point listing failed", zap.Int("round", round), zap.Error(err))
			continue
		}
		if len(aps) > 0 {
			return aps, round, nil
		}
	}
	aps, err := o.gw.AccessPoints(ctx, iface)
	if err != nil {
		return nil, o.policy.ScanRounds + 1, fmt.Errorf("list access points: %w", err)
	}
	return aps, o.policy.ScanRounds + 1, nil
}

func (o *Orchestrator) savedSSIDs(ctx context.Context) map[string]bool {
	profiles, err := o.gw.SavedProfiles(ctx)
	if err != nil {
		o.logger.Warn("could not read saved profiles", zap.Error(err))
		return nil
	}
	saved := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if len(p.SSID) > 0 {
			saved[string(p.SSID)] = true
		}
	}
	return saved
}

func (o *Orchestrator) handleScan(msg scanResultMsg) tea.Cmd {
	if msg.id != o.scanID {
		o.logger.Debug("discarding stale scan result", zap.Uint64("scan", msg.id), zap.Uint64("current", o.scanID))
		return nil
	}
	o.scanning = false
	report := ScanReport{ID: msg.id, Device: msg.iface}

	switch {
	case msg.err != nil:
		kind := KindGatewayUnavailable
		if msg.iface != "" {
			kind = KindScanFailed
		}
		report.Err = &Error{Kind: kind, Err: msg.err}
		o.logger.Warn("scan failed", zap.Uint64("scan", msg.id), zap.Error(msg.err))
		o.reconcile(o.table.Order(o.order), nil)
	case len(msg.aps) == 0:
		// A transient empty read must not wipe the list.
		report.Err = &Error{Kind: KindScanEmpty}
		o.reconcile(o.table.Order(o.order), nil)
	default:
		diff := netlist.ComputeDiff(o.table, msg.aps)
		o.table.Apply(diff)
		o.markRows(msg.saved)
		o.reconcile(o.table.Order(o.order), diff.ToUpdate)
		o.logger.Debug("scan applied",
			zap.Uint64("scan", msg.id),
			zap.Int("rounds", msg.rounds),
			zap.Int("added", len(diff.ToAdd)),
			zap.Int("updated", len(diff.ToUpdate)),
			zap.Int("removed", len(diff.ToRemove)))
	}
	report.Count = o.table.Len()
	o.lastScan = report

	if o.attempt == nil {
		if report.Err != nil {
			o.sink.Status(report.Err.Error())
		} else {
			o.sink.Status(foundText(report.Count))
		}
	}
	return nil
}

func foundText(n int) string {
	if n == 1 {
		return "Found 1 network"
	}
	return fmt.Sprintf("Found %d networks", n)
}

// reconcile moves the visible list to desired. Rows that were already
// visible and appear in updates get an update op after the moves.
func (o *Orchestrator) reconcile(desired []string, updates []netlist.Update) {
	wasVisible := make(map[string]bool, len(o.visible))
	for _, k := range o.visible {
		wasVisible[k] = true
	}
	for _, op := range netlist.Reconcile(o.visible, desired) {
		o.sink.Mutate(op)
	}
	for _, u := range updates {
		if wasVisible[u.Key] {
			o.sink.Mutate(netlist.Op{Kind: netlist.OpUpdate, Key: u.Key})
		}
	}
	o.visible = desired
	if len(desired) > 0 {
		o.order = desired
	}
}

func (o *Orchestrator) markRows(saved map[string]bool) {
	for _, key := range o.table.Keys() {
		e, _ := o.table.Get(key)
		e.Row.Active = e.AP.InUse
		e.Row.NeedsPassword = e.AP.RequiresPassword() && !saved[e.AP.SSIDString()]
	}
}

// Package session drives scanning, connecting and disconnecting a single
// WiFi device and keeps the network list in step with what the device sees.
//
// An Orchestrator is meant to be owned by a bubbletea model: every method
// must be called from that model's Update, which makes Update the only
// writer of the network table and attempt state. Device I/O and waits run in
// the tea.Cmds the methods return, and their results come back as messages
// that the model hands to Orchestrator.Update.
package session

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"nmwifi/gonetworkmanager"
	"nmwifi/netlist"
)

// Sink is the presentation side of the orchestrator.
type Sink interface {
	// Status replaces the status line.
	Status(text string)
	// Mutate applies one list mutation keyed by bssid.
	Mutate(op netlist.Op)
	// SetTriggersEnabled enables or disables the connect and disconnect controls.
	SetTriggersEnabled(enabled bool)
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Policy Policy
	Logger *zap.Logger

	// After delivers msg after d. Defaults to tea.Tick.
	After func(d time.Duration, msg tea.Msg) tea.Cmd
	// Sleep blocks a worker for d. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition observes every attempt state change.
	OnTransition func(StateChanged)
}

// Action is what a finished attempt tried to do.
type Action int

const (
	ActionConnect Action = iota
	ActionDisconnect
)

func (a Action) String() string {
	if a == ActionDisconnect {
		return "disconnect"
	}
	return "connect"
}

// Outcome is the terminal result of the last connect or disconnect.
type Outcome struct {
	AttemptID uint64
	Action    Action
	SSID      string
	State     State
	Err       error
}

// ScanReport summarizes the last accepted scan.
type ScanReport struct {
	ID     uint64
	Device string
	Count  int
	Err    error
}

type attempt struct {
	machine      *Machine
	action       Action
	key          string
	ap           gonetworkmanager.AccessPoint
	password     string
	iface        string
	usesExisting bool
	handle       gonetworkmanager.ActiveHandle
	startedAt    time.Time
}

// Orchestrator owns the network table, the in-flight scan and the in-flight
// connection attempt.
type Orchestrator struct {
	gw     Gateway
	sink   Sink
	policy Policy
	logger *zap.Logger
	after  func(time.Duration, tea.Msg) tea.Cmd
	sleep  func(context.Context, time.Duration) error
	onTx   func(StateChanged)

	ctx    context.Context
	cancel context.CancelFunc

	table   *netlist.Table
	visible []string
	order   []string

	scanID   uint64
	scanning bool
	lastScan ScanReport

	attemptSeq      uint64
	attempt         *attempt
	last            *Outcome
	triggersEnabled bool
}

// New returns an Orchestrator driving gw and reporting to sink.
func New(gw Gateway, sink Sink, opts Options) *Orchestrator {
	if opts.Policy.MaxSamples == 0 {
		iface := opts.Policy.Interface
		opts.Policy = DefaultPolicy()
		opts.Policy.Interface = iface
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.After == nil {
		opts.After = tick
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		gw:              gw,
		sink:            sink,
		policy:          opts.Policy,
		logger:          opts.Logger,
		after:           opts.After,
		sleep:           opts.Sleep,
		onTx:            opts.OnTransition,
		ctx:             ctx,
		cancel:          cancel,
		table:           netlist.NewTable(),
		triggersEnabled: true,
	}
}

func tick(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type (
	followUpMsg    struct{}
	autoRefreshMsg struct{}
)

// Init starts the first scan and, when configured, the auto refresh ticker.
func (o *Orchestrator) Init() tea.Cmd {
	cmds := []tea.Cmd{o.Refresh(false)}
	if o.policy.AutoRefresh > 0 {
		cmds = append(cmds, o.after(o.policy.AutoRefresh, autoRefreshMsg{}))
	}
	return tea.Batch(cmds...)
}

// Update consumes the orchestrator's own messages and ignores the rest.
func (o *Orchestrator) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case scanResultMsg:
		return o.handleScan(msg)
	case resolvedMsg:
		return o.handleResolved(msg)
	case activatedMsg:
		return o.handleActivated(msg)
	case pollMsg:
		return o.handlePoll(msg)
	case sampleMsg:
		return o.handleSample(msg)
	case deactivatedMsg:
		return o.handleDeactivated(msg)
	case followUpMsg:
		return o.Refresh(true)
	case autoRefreshMsg:
		next := o.after(o.policy.AutoRefresh, autoRefreshMsg{})
		if o.attempt != nil {
			return next
		}
		return tea.Batch(o.Refresh(false), next)
	}
	return nil
}

// Close stops in-flight device I/O.
func (o *Orchestrator) Close() { o.cancel() }

// Table exposes the network table for reading.
func (o *Orchestrator) Table() *netlist.Table { return o.table }

// Visible returns the keys currently shown, in order.
func (o *Orchestrator) Visible() []string { return append([]string(nil), o.visible...) }

// Scanning reports whether a scan is in flight.
func (o *Orchestrator) Scanning() bool { return o.scanning }

// Busy reports whether a connect or disconnect is in flight.
func (o *Orchestrator) Busy() bool { return o.attempt != nil }

// Policy returns the effective policy.
func (o *Orchestrator) Policy() Policy { return o.policy }

// LastScan reports the most recent accepted scan.
func (o *Orchestrator) LastScan() ScanReport { return o.lastScan }

// LastOutcome returns the result of the most recent finished attempt.
func (o *Orchestrator) LastOutcome() (Outcome, bool) {
	if o.last == nil {
		return Outcome{}, false
	}
	return *o.last, true
}

// Expand opens the row for key, closing any other. Both rows get an update.
func (o *Orchestrator) Expand(key string) bool {
	collapsed, ok := o.table.Expand(key)
	if !ok {
		return false
	}
	if collapsed != "" {
		o.mutateVisible(collapsed)
	}
	o.mutateVisible(key)
	return true
}

// Collapse closes the open row.
func (o *Orchestrator) Collapse() {
	if key := o.table.Collapse(); key != "" {
		o.mutateVisible(key)
	}
}

func (o *Orchestrator) mutateVisible(key string) {
	for _, k := range o.visible {
		if k == key {
			o.sink.Mutate(netlist.Op{Kind: netlist.OpUpdate, Key: key})
			return
		}
	}
}

func (o *Orchestrator) publish() {
	enabled := o.attempt == nil
	if enabled == o.triggersEnabled {
		return
	}
	o.triggersEnabled = enabled
	o.sink.SetTriggersEnabled(enabled)
}

func (o *Orchestrator) observe(ev StateChanged) {
	o.logger.Info("state changed",
		zap.Uint64("attempt", ev.AttemptID),
		zap.String("ssid", ev.SSID),
		zap.Stringer("from", ev.From),
		zap.Stringer("to", ev.To))
	if o.onTx != nil {
		o.onTx(ev)
	}
}

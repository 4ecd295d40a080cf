// Package ui implements the interactive terminal front end: a network list
// with signal bars and expandable details, password entry, connection
// progress, the active connection info view and the radio toggle. All
// device work goes through a session.Orchestrator owned by the model.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"nmwifi/gonetworkmanager"
	"nmwifi/session"
)

// Device is what the TUI needs from NetworkManager on top of the
// orchestrator's gateway.
type Device interface {
	session.Gateway
	WifiEnabled(ctx context.Context) (bool, error)
	SetWifiEnabled(ctx context.Context, enabled bool) error
	DeviceIPDetail(ctx context.Context, iface string) (*gonetworkmanager.DeviceIPDetail, error)
	ActiveAccessPoint(ctx context.Context, iface string) (string, bool, error)
}

var _ Device = (*gonetworkmanager.Client)(nil)

type viewState int

const (
	viewNetworksList viewState = iota
	viewPasswordInput
	viewConnecting
	viewConnectionResult
	viewActiveConnectionInfo
	viewConfirmDisconnect
	viewConfirmOpenNetwork
)

func (v viewState) String() string {
	names := []string{
		"NetworksList",
		"PasswordInput",
		"Connecting",
		"ConnectionResult",
		"ActiveConnectionInfo",
		"ConfirmDisconnect",
		"ConfirmOpenNetwork",
	}
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("Unknown(%d)", v)
}

type wifiStatusMsg struct {
	enabled bool
	err     error
}

type activeConnInfoMsg struct {
	details *gonetworkmanager.DeviceIPDetail
	bssid   string
	err     error
}

// Model is the bubbletea model of the TUI.
type Model struct {
	state viewState

	dev    Device
	orch   *session.Orchestrator
	board  *board
	logger *zap.Logger

	wifiList               list.Model
	passwordInput          textinput.Model
	spinner                spinner.Model
	activeConnInfoViewport viewport.Model
	keys                   keyMap
	help                   help.Model

	selected                    networkItem
	inputErr                    string
	outcomeText                 string
	lastConnectionWasSuccessful bool

	wifiEnabled bool
	isLoading   bool
	spinning    bool
	detailsOpen bool

	width            int
	height           int
	listDisplayWidth int
}

// New builds the model and the orchestrator behind it.
func New(dev Device, opts session.Options, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := newBoard()

	wifiList := list.New([]list.Item{}, itemDelegate{}, 0, 0)
	wifiList.Title = "Scanning for Wi-Fi Networks..."
	wifiList.Styles.Title = listTitleStyle
	wifiList.SetShowStatusBar(true)
	wifiList.SetStatusBarItemName("network", "networks")
	wifiList.SetShowHelp(false)
	wifiList.SetFilteringEnabled(false)
	wifiList.DisableQuitKeybindings()
	wifiList.Styles.NoItems = listNoItemsStyle.SetString("No Wi-Fi. Try (r)efresh or (t)oggle Wi-Fi.")

	pwInput := textinput.New()
	pwInput.Placeholder = "Network Password"
	pwInput.EchoMode = textinput.EchoPassword
	pwInput.CharLimit = passwordMaxLength
	pwInput.Prompt = passwordPromptStyle.Render("🔑 Password: ")
	pwInput.EchoCharacter = '•'
	pwInput.Cursor.Style = lipgloss.NewStyle().Foreground(colorAccent)

	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = connectingStyle

	vp := viewport.New(0, 0)
	vp.Style = infoBoxStyle

	h := help.New()
	subtleStyle := lipgloss.NewStyle().Foreground(colorFaint)
	h.Styles = help.Styles{
		ShortKey:  subtleStyle,
		ShortDesc: subtleStyle,
		FullKey:   subtleStyle,
		FullDesc:  subtleStyle,
		Ellipsis:  subtleStyle,
	}

	m := Model{
		state:                  viewNetworksList,
		dev:                    dev,
		orch:                   session.New(dev, b, opts),
		board:                  b,
		logger:                 logger,
		wifiList:               wifiList,
		passwordInput:          pwInput,
		spinner:                s,
		activeConnInfoViewport: vp,
		keys:                   defaultKeyBindings,
		help:                   h,
		wifiEnabled:            true,
		spinning:               true,
	}
	m.keys.currentState = m.state
	return m
}

// Orchestrator returns the engine driving the model.
func (m Model) Orchestrator() *session.Orchestrator { return m.orch }

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.orch.Init(),
		m.wifiStatusCmd(),
		m.spinner.Tick,
	)
}

func (m Model) commandTimeout() time.Duration { return m.orch.Policy().CommandTimeout }

func (m Model) wifiStatusCmd() tea.Cmd {
	dev, timeout := m.dev, m.commandTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		enabled, err := dev.WifiEnabled(ctx)
		return wifiStatusMsg{enabled: enabled, err: err}
	}
}

func (m Model) toggleWifiCmd(enable bool) tea.Cmd {
	dev, timeout, logger := m.dev, m.commandTimeout(), m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.Info("toggling radio", zap.Bool("enable", enable))
		if err := dev.SetWifiEnabled(ctx, enable); err != nil {
			return wifiStatusMsg{enabled: !enable, err: err}
		}
		return wifiStatusMsg{enabled: enable}
	}
}

func (m Model) fetchActiveConnInfoCmd(iface string) tea.Cmd {
	dev, timeout, logger := m.dev, m.commandTimeout(), m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		details, err := dev.DeviceIPDetail(ctx, iface)
		if err != nil {
			return activeConnInfoMsg{err: err}
		}
		bssid, _, err := dev.ActiveAccessPoint(ctx, iface)
		if err != nil {
			logger.Debug("active access point lookup failed", zap.String("device", iface), zap.Error(err))
		}
		return activeConnInfoMsg{details: details, bssid: bssid}
	}
}

// active reports whether something is in flight that the spinner shows.
func (m Model) active() bool {
	return m.isLoading || m.orch.Scanning() || m.orch.Busy()
}

func (m *Model) setState(s viewState) {
	if m.state != s {
		m.logger.Debug("view changed", zap.Stringer("from", m.state), zap.Stringer("to", s))
	}
	m.state = s
	m.keys.currentState = s
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.keys.currentState = m.state
	cmds = append(cmds, m.orch.Update(msg))

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeComponents()

	case spinner.TickMsg:
		if m.active() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		} else {
			m.spinning = false
		}

	case wifiStatusMsg:
		m.isLoading = false
		if msg.err != nil {
			m.board.Status(fmt.Sprintf("Error getting Wi-Fi status: %v", msg.err))
			break
		}
		wasEnabled := m.wifiEnabled
		m.wifiEnabled = msg.enabled
		switch {
		case !m.wifiEnabled:
			m.board.Status("Wi-Fi is disabled. Press 't' to enable.")
		case !wasEnabled:
			cmds = append(cmds, m.orch.Refresh(true))
		}

	case activeConnInfoMsg:
		m.isLoading = false
		switch {
		case msg.err != nil:
			m.activeConnInfoViewport.SetContent(errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		case msg.details == nil:
			m.activeConnInfoViewport.SetContent(infoStyle.Render("No IP details available."))
		default:
			m.activeConnInfoViewport.SetContent(formatConnectionDetails(msg.details, msg.bssid))
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg)...)
	}

	cmds = append(cmds, m.sync())
	if m.active() && !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

// sync pulls orchestrator output collected on the board into the widgets.
func (m *Model) sync() tea.Cmd {
	if m.board.takeSettled() {
		m.settle()
	}
	m.keys.Connect.SetEnabled(m.board.triggers)
	m.keys.Disconnect.SetEnabled(m.board.triggers)
	open := m.orch.Table().Expanded() != "" && m.isVisible(m.orch.Table().Expanded())
	if open != m.detailsOpen {
		m.detailsOpen = open
		m.resizeComponents()
	}

	var cmd tea.Cmd
	if m.board.dirty {
		m.board.dirty = false
		selected := ""
		if it, ok := m.wifiList.SelectedItem().(networkItem); ok {
			selected = it.key
		}
		items := make([]list.Item, 0, len(m.board.order))
		index := 0
		for _, k := range m.board.order {
			e, ok := m.orch.Table().Get(k)
			if !ok {
				continue
			}
			if k == selected {
				index = len(items)
			}
			items = append(items, newNetworkItem(e))
		}
		cmd = m.wifiList.SetItems(items)
		m.wifiList.Select(index)
	}

	switch {
	case !m.wifiEnabled:
		m.wifiList.Title = "Wi-Fi is Disabled"
	case m.orch.Scanning():
		m.wifiList.Title = "Scanning..."
	default:
		m.wifiList.Title = "Wi-Fi Networks"
	}
	return cmd
}

// settle moves the progress view to the result of the finished attempt.
func (m *Model) settle() {
	out, ok := m.orch.LastOutcome()
	if !ok {
		return
	}
	m.outcomeText = m.board.status
	m.lastConnectionWasSuccessful = out.Err == nil
	m.logger.Debug("attempt settled",
		zap.Uint64("attempt", out.AttemptID),
		zap.Stringer("state", out.State),
		zap.Bool("success", out.Err == nil))
	if m.state == viewConnecting {
		m.setState(viewConnectionResult)
	}
}

func (m Model) isVisible(key string) bool {
	for _, k := range m.board.order {
		if k == key {
			return true
		}
	}
	return false
}

func (m Model) activeItem() (networkItem, bool) {
	for _, k := range m.board.order {
		if e, ok := m.orch.Table().Get(k); ok && e.Row.Active {
			return newNetworkItem(e), true
		}
	}
	return networkItem{}, false
}

func (m *Model) resizeComponents() {
	availableWidth := m.width - appStyle.GetHorizontalFrameSize()
	availableHeight := m.height - appStyle.GetVerticalFrameSize()

	desiredHelpWidth := int(float64(availableWidth) * helpBarWidthPercent)
	if desiredHelpWidth > helpBarMaxWidth {
		desiredHelpWidth = helpBarMaxWidth
	}
	if desiredHelpWidth < 20 {
		desiredHelpWidth = 20
	}
	m.help.Width = desiredHelpWidth

	headerHeight := lipgloss.Height(m.headerView(availableWidth))
	tempKeys := m.keys
	tempKeys.currentState = m.state
	footerHeight := lipgloss.Height(m.footerView(availableWidth, m.help.View(tempKeys)))
	contentHeight := availableHeight - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	// Room for the status line, and for the details box when a row is open.
	listHeight := contentHeight - 2
	if m.detailsOpen {
		listHeight -= detailPanelHeight
	}
	if listHeight < minListHeight {
		listHeight = minListHeight
	}

	listWidth := availableWidth
	if networkListWidthPercent > 0 || networkListFixedWidth > 0 {
		calcWidth := int(float64(availableWidth) * networkListWidthPercent)
		if networkListFixedWidth > 0 && calcWidth > networkListFixedWidth {
			calcWidth = networkListFixedWidth
		}
		if calcWidth < minListWidth {
			calcWidth = minListWidth
		}
		listWidth = calcWidth
	}
	m.listDisplayWidth = listWidth
	m.wifiList.SetSize(m.listDisplayWidth, listHeight)

	m.activeConnInfoViewport.Width = availableWidth - infoBoxStyle.GetHorizontalFrameSize()
	m.activeConnInfoViewport.Height = contentHeight - infoBoxStyle.GetVerticalFrameSize()
	if m.activeConnInfoViewport.Height < 0 {
		m.activeConnInfoViewport.Height = 0
	}

	pwWidth := availableWidth * 2 / 3
	if pwWidth > passwordInputMaxWidth {
		pwWidth = passwordInputMaxWidth
	}
	if pwWidth < passwordInputMinWidth {
		pwWidth = passwordInputMinWidth
	}
	m.passwordInput.Width = pwWidth - lipgloss.Width(m.passwordInput.Prompt) -
		passwordInputContainerStyle.GetHorizontalFrameSize()
}

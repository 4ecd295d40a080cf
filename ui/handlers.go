package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m *Model) handleKeyPress(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if key.Matches(msg, m.keys.Quit) && (m.state != viewPasswordInput || msg.String() == "ctrl+c") {
		m.orch.Close()
		return []tea.Cmd{tea.Quit}
	}

	if key.Matches(msg, m.keys.Help) && m.state != viewPasswordInput {
		m.help.ShowAll = !m.help.ShowAll
		m.resizeComponents()
		return nil
	}

	switch m.state {
	case viewNetworksList:
		cmds = m.handleNetworksListKeys(msg)

	case viewPasswordInput:
		cmds = m.handlePasswordInputKeys(msg)

	case viewConnectionResult:
		if key.Matches(msg, m.keys.Connect) || key.Matches(msg, m.keys.Back) {
			m.setState(viewNetworksList)
		}

	case viewActiveConnectionInfo:
		if key.Matches(msg, m.keys.Back) {
			m.setState(viewNetworksList)
		} else {
			m.activeConnInfoViewport, cmd = m.activeConnInfoViewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case viewConfirmDisconnect:
		cmds = m.handleConfirmDisconnectKeys(msg)

	case viewConfirmOpenNetwork:
		cmds = m.handleConfirmOpenNetworkKeys(msg)
	}

	return cmds
}

func (m *Model) handleNetworksListKeys(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.isLoading {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Refresh):
		cmds = append(cmds, m.orch.Refresh(true))

	case key.Matches(msg, m.keys.ToggleWifi):
		m.isLoading = true
		action := "OFF"
		if !m.wifiEnabled {
			action = "ON"
		}
		m.board.Status(fmt.Sprintf("Toggling Wi-Fi %s...", action))
		cmds = append(cmds, m.toggleWifiCmd(!m.wifiEnabled))

	case key.Matches(msg, m.keys.Disconnect):
		if item, ok := m.activeItem(); ok {
			m.selected = item
			m.setState(viewConfirmDisconnect)
		} else {
			// Let the device decide; it reports when nothing is connected.
			cmds = append(cmds, m.startDisconnect()...)
		}

	case key.Matches(msg, m.keys.Info):
		iface := m.orch.LastScan().Device
		if _, ok := m.activeItem(); !ok || iface == "" {
			m.board.Status("No active connection")
			break
		}
		m.setState(viewActiveConnectionInfo)
		m.isLoading = true
		m.activeConnInfoViewport.SetContent("Loading connection details...")
		m.activeConnInfoViewport.GotoTop()
		cmds = append(cmds, m.fetchActiveConnInfoCmd(iface))

	case key.Matches(msg, m.keys.Details):
		if item, ok := m.wifiList.SelectedItem().(networkItem); ok {
			if m.orch.Table().Expanded() == item.key {
				m.orch.Collapse()
			} else {
				m.orch.Expand(item.key)
			}
		}

	case key.Matches(msg, m.keys.Connect):
		if item, ok := m.wifiList.SelectedItem().(networkItem); ok {
			m.selected = item
			cmds = append(cmds, m.initiateConnection(item)...)
		}

	default:
		m.wifiList, cmd = m.wifiList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return cmds
}

func (m *Model) initiateConnection(item networkItem) []tea.Cmd {
	// Already connected? Offer to disconnect
	if item.row.Active {
		m.setState(viewConfirmDisconnect)
		return nil
	}

	m.logger.Info("initiating connection",
		zap.String("bssid", item.key),
		zap.String("security", item.ap.SecurityLabel()),
		zap.Bool("needs_password", item.row.NeedsPassword))

	if item.ap.SecurityLabel() == "Open" {
		m.setState(viewConfirmOpenNetwork)
		return nil
	}

	// WEP without a saved profile is refused by the orchestrator; no prompt.
	if item.row.NeedsPassword && !item.ap.IsWEP() {
		m.inputErr = ""
		m.passwordInput.SetValue("")
		m.passwordInput.Focus()
		m.setState(viewPasswordInput)
		return []tea.Cmd{textinput.Blink}
	}

	return m.startConnect(item.key, "")
}

// startConnect hands the attempt to the orchestrator. A rejected attempt
// leaves the current view in place; the reason is already on the status line.
func (m *Model) startConnect(key, password string) []tea.Cmd {
	cmd, err := m.orch.Connect(key, password)
	if err != nil {
		m.logger.Debug("connect rejected", zap.String("bssid", key), zap.Error(err))
		m.inputErr = err.Error()
		return nil
	}
	m.passwordInput.Blur()
	m.setState(viewConnecting)
	return []tea.Cmd{cmd}
}

func (m *Model) startDisconnect() []tea.Cmd {
	cmd, err := m.orch.Disconnect()
	if err != nil {
		m.logger.Debug("disconnect rejected", zap.Error(err))
		return nil
	}
	m.setState(viewConnecting)
	return []tea.Cmd{cmd}
}

func (m *Model) handlePasswordInputKeys(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.keys.Connect):
		cmds = m.startConnect(m.selected.key, m.passwordInput.Value())

	case key.Matches(msg, m.keys.Back):
		m.passwordInput.Blur()
		m.inputErr = ""
		m.setState(viewNetworksList)

	default:
		m.passwordInput, cmd = m.passwordInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return cmds
}

func (m *Model) handleConfirmDisconnectKeys(msg tea.KeyMsg) []tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.startDisconnect()
	case key.Matches(msg, m.keys.Back):
		m.setState(viewNetworksList)
	}
	return nil
}

func (m *Model) handleConfirmOpenNetworkKeys(msg tea.KeyMsg) []tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.startConnect(m.selected.key, "")
	case key.Matches(msg, m.keys.Back):
		m.setState(viewNetworksList)
	}
	return nil
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"nmwifi/gonetworkmanager"
	"nmwifi/session"
)

func (m Model) View() string {
	availableWidth := m.width - appStyle.GetHorizontalFrameSize()

	header := m.headerView(availableWidth)
	keys := m.keys
	keys.currentState = m.state
	footer := m.footerView(availableWidth, m.help.View(keys))

	contentHeight := m.height - appStyle.GetVerticalFrameSize() - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}

	var content string
	switch m.state {
	case viewNetworksList:
		content = m.renderNetworksList(availableWidth)
	case viewPasswordInput:
		content = m.renderPasswordInput(availableWidth, contentHeight)
	case viewConnecting:
		content = m.renderConnecting(availableWidth, contentHeight)
	case viewConnectionResult:
		content = m.renderConnectionResult(availableWidth, contentHeight)
	case viewActiveConnectionInfo:
		content = m.activeConnInfoViewport.View()
	case viewConfirmDisconnect:
		content = m.renderConfirmDialog("Disconnect from", availableWidth, contentHeight)
	case viewConfirmOpenNetwork:
		content = m.renderConfirmOpenNetwork(availableWidth, contentHeight)
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Top, header, content, footer))
}

func (m Model) headerView(width int) string {
	title := titleStyle.Render(appName)

	scanIndicator := ""
	if m.orch.Scanning() {
		scanIndicator = connectingStyle.Render(" " + m.spinner.View() + " Scanning...")
	}

	var status string
	if m.wifiEnabled {
		status = "Wi-Fi: " + wifiStatusEnabled.Render("Enabled ✔")
	} else {
		status = "Wi-Fi: " + wifiStatusDisabled.Render("Disabled ✘")
	}

	titleWidth := lipgloss.Width(title)
	statusWidth := lipgloss.Width(status)
	scanWidth := lipgloss.Width(scanIndicator)

	totalWidth := titleWidth + statusWidth + scanWidth
	if totalWidth >= width {
		spacing := width - titleWidth - statusWidth
		if spacing < 1 {
			spacing = 1
		}
		return lipgloss.JoinHorizontal(lipgloss.Left, title, strings.Repeat(" ", spacing), status)
	}

	remainingSpace := width - totalWidth
	leftSpace := remainingSpace / 2
	rightSpace := remainingSpace - leftSpace
	if leftSpace < 1 {
		leftSpace = 1
	}
	if rightSpace < 1 {
		rightSpace = 1
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		strings.Repeat(" ", leftSpace),
		scanIndicator,
		strings.Repeat(" ", rightSpace),
		status)
}

func (m Model) footerView(width int, helpText string) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, helpGlobalStyle.Render(helpText))
}

// statusStyle colours the status line by what last wrote it.
func (m Model) statusStyle() lipgloss.Style {
	switch {
	case m.orch.Busy():
		return connectingStyle
	case m.outcomeText != "" && m.board.status == m.outcomeText:
		if m.lastConnectionWasSuccessful {
			return successStyle
		}
		return errorStyle
	}
	if err := m.orch.LastScan().Err; err != nil && m.board.status == err.Error() {
		if session.IsKind(err, session.KindScanEmpty) {
			return warningStyle
		}
		return errorStyle
	}
	return infoStyle
}

func (m Model) renderNetworksList(width int) string {
	listView := m.wifiList.View()

	if m.detailsOpen {
		if e, ok := m.orch.Table().Get(m.orch.Table().Expanded()); ok {
			box := detailBoxStyle.Width(m.listDisplayWidth - detailBoxStyle.GetHorizontalFrameSize()).
				Render(newNetworkItem(e).details())
			listView = lipgloss.JoinVertical(lipgloss.Left, listView, box)
		}
	}

	if networkListWidthPercent > 0 || networkListFixedWidth > 0 {
		listView = lipgloss.PlaceHorizontal(width, lipgloss.Center, listView)
	}

	if m.board.status != "" {
		listView = lipgloss.JoinVertical(lipgloss.Top, listView, m.statusStyle().Render(m.board.status))
	}

	return listView
}

func (m Model) renderPasswordInput(width, height int) string {
	prompt := fmt.Sprintf("Password for %s:", session.DisplaySSID(m.selected.ap))

	promptWidth := m.passwordInput.Width + lipgloss.Width(m.passwordInput.Prompt) +
		passwordInputContainerStyle.GetHorizontalFrameSize() + 4
	if promptWidth > width*4/5 {
		promptWidth = width * 4 / 5
	}
	if promptWidth < passwordInputMinWidth {
		promptWidth = passwordInputMinWidth
	}

	centeredPrompt := lipgloss.NewStyle().Width(promptWidth).Align(lipgloss.Center).Render(prompt)
	block := lipgloss.JoinVertical(lipgloss.Top, centeredPrompt, m.passwordInput.View())
	if m.inputErr != "" {
		block = lipgloss.JoinVertical(lipgloss.Top, block, warningStyle.Render(m.inputErr))
	}

	content := passwordInputContainerStyle.Render(block)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderConnecting(width, height int) string {
	content := connectingStyle.Render(fmt.Sprintf("\n%s %s\n", m.spinner.View(), m.board.status))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderConnectionResult(width, height int) string {
	msgWidth := width * 3 / 4
	if msgWidth > 80 {
		msgWidth = 80
	}
	if msgWidth < 40 {
		msgWidth = 40
	}

	style := errorStyle
	if m.lastConnectionWasSuccessful {
		style = successStyle
	}
	wrappedMsg := style.Width(msgWidth).Align(lipgloss.Center).Render(m.outcomeText)
	hint := lipgloss.NewStyle().Foreground(colorFaint).Render("(Press Enter or Esc to return)")

	content := lipgloss.JoinVertical(lipgloss.Center, wrappedMsg, "", hint)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderConfirmDialog(action string, width, height int) string {
	message := fmt.Sprintf("%s\n%s?", action, session.DisplaySSID(m.selected.ap))
	hint := lipgloss.NewStyle().Foreground(colorFaint).Render("(Enter to confirm, Esc to cancel)")

	content := lipgloss.JoinVertical(lipgloss.Center, message, "", hint)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderConfirmOpenNetwork(width, height int) string {
	warning := warningStyle.Render("⚠️  This is an open (unencrypted) network")
	message := fmt.Sprintf("Connect to %s?", session.DisplaySSID(m.selected.ap))
	hint := lipgloss.NewStyle().Foreground(colorFaint).Render("(Enter to confirm, Esc to cancel)")

	content := lipgloss.JoinVertical(lipgloss.Center, warning, "", message, "", hint)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func formatConnectionDetails(details *gonetworkmanager.DeviceIPDetail, bssid string) string {
	lines := []string{
		fmt.Sprintf("Device:      %s (%s)", details.Device, details.Type),
		fmt.Sprintf("State:       %s", details.State),
		fmt.Sprintf("Connection:  %s", details.Connection),
		fmt.Sprintf("MAC Address: %s", details.Mac),
	}
	if bssid != "" {
		lines = append(lines, fmt.Sprintf("Access Point: %s", bssid))
	}
	lines = append(lines,
		"",
		"IPv4:",
		fmt.Sprintf("  Address:   %s", details.IPv4),
		fmt.Sprintf("  Netmask:   %s", details.NetV4),
		fmt.Sprintf("  Gateway:   %s", details.GatewayV4),
		fmt.Sprintf("  DNS:       %s", strings.Join(details.DNS, ", ")))

	if details.IPv6 != "" {
		lines = append(lines, "",
			"IPv6:",
			fmt.Sprintf("  Address:   %s", details.IPv6),
			fmt.Sprintf("  Prefix:    %s", details.NetV6),
			fmt.Sprintf("  Gateway:   %s", details.GatewayV6))
	}

	return strings.Join(lines, "\n")
}

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"nmwifi/netlist"
)

const (
	appName                 = "nmwifi"
	helpBarMaxWidth         = 80
	helpBarWidthPercent     = 0.80
	networkListFixedWidth   = 100
	networkListWidthPercent = 0.85
	minListHeight           = 5
	minListWidth            = 40
	passwordMaxLength       = 63 // WPA2/WPA3 max password length
	passwordInputMaxWidth   = 60
	passwordInputMinWidth   = 40
	detailPanelHeight       = 9
)

var (
	appStyle = lipgloss.NewStyle().Margin(1, 1)

	// ANSI colors for broad terminal support
	colorPrimary   = lipgloss.Color("5") // Magenta/Purple
	colorSecondary = lipgloss.Color("4") // Blue
	colorAccent    = lipgloss.Color("6") // Cyan
	colorSuccess   = lipgloss.Color("2") // Green
	colorError     = lipgloss.Color("1") // Red
	colorWarning   = lipgloss.Color("3") // Yellow
	colorFaint     = lipgloss.Color("8") // Gray
	colorText      = lipgloss.Color("7") // White/Light gray

	titleStyle            = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1).MarginBottom(1)
	listTitleStyle        = lipgloss.NewStyle().Foreground(colorSecondary).Padding(0, 1).Bold(true)
	listItemStyle         = lipgloss.NewStyle().PaddingLeft(2).Foreground(colorText)
	listSelectedItemStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(colorPrimary).Bold(true)
	listDescStyle         = lipgloss.NewStyle().PaddingLeft(2).Foreground(colorFaint)
	listSelectedDescStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(colorPrimary)
	listNoItemsStyle      = lipgloss.NewStyle().Faint(true).Margin(1, 0).Align(lipgloss.Center).Foreground(colorFaint)

	statusMessageBaseStyle      = lipgloss.NewStyle().MarginTop(1)
	errorStyle                  = statusMessageBaseStyle.Foreground(colorError).Bold(true)
	successStyle                = statusMessageBaseStyle.Foreground(colorSuccess).Bold(true)
	warningStyle                = statusMessageBaseStyle.Foreground(colorWarning)
	infoStyle                   = statusMessageBaseStyle.Foreground(colorFaint)
	connectingStyle             = lipgloss.NewStyle().Foreground(colorAccent)
	infoBoxStyle                = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(colorAccent).Padding(1, 2).MarginTop(1)
	detailBoxStyle              = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(colorFaint).Padding(0, 2)
	passwordPromptStyle         = lipgloss.NewStyle().Foreground(colorFaint)
	passwordInputContainerStyle = lipgloss.NewStyle().Padding(1).MarginTop(1).Border(lipgloss.NormalBorder(), true).BorderForeground(colorFaint)
	helpGlobalStyle             = lipgloss.NewStyle().Foreground(colorFaint)
	labelStyle                  = lipgloss.NewStyle().Foreground(colorFaint)
	connectedMarkStyle          = lipgloss.NewStyle().Foreground(colorSuccess)

	wifiStatusEnabled  = lipgloss.NewStyle().Foreground(colorSuccess)
	wifiStatusDisabled = lipgloss.NewStyle().Foreground(colorError)

	signalExcellentStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	signalGoodStyle      = lipgloss.NewStyle().Foreground(colorWarning)
	signalWeakStyle      = lipgloss.NewStyle().Foreground(colorError)
)

var barGlyphs = []rune("▂▄▆█")

func tierStyle(t netlist.Tier) lipgloss.Style {
	switch t {
	case netlist.TierExcellent, netlist.TierGood:
		return signalExcellentStyle
	case netlist.TierOk:
		return signalGoodStyle
	default:
		return signalWeakStyle
	}
}

// signalBars draws one lit bar per tier step.
func signalBars(t netlist.Tier) string {
	n := t.Bars()
	if n > len(barGlyphs) {
		n = len(barGlyphs)
	}
	return tierStyle(t).Render(string(barGlyphs[:n])) + labelStyle.Render(string(barGlyphs[n:]))
}

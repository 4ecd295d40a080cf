package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect      key.Binding
	Refresh      key.Binding
	Quit         key.Binding
	Back         key.Binding
	Help         key.Binding
	Details      key.Binding
	ToggleWifi   key.Binding
	Disconnect   key.Binding
	Info         key.Binding
	currentState viewState
}

func (k keyMap) ShortHelp() []key.Binding {
	bindings := []key.Binding{k.Help}

	switch k.currentState {
	case viewNetworksList:
		bindings = append(bindings, k.Connect, k.Details, k.Refresh, k.ToggleWifi)
	case viewPasswordInput, viewConnectionResult, viewConfirmDisconnect, viewConfirmOpenNetwork:
		bindings = append(bindings, k.Connect, k.Back)
	case viewActiveConnectionInfo:
		bindings = append(bindings, k.Back)
	}

	return append(bindings, k.Quit)
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Help, k.Connect, k.Back, k.Quit},
		{k.Refresh, k.Details, k.ToggleWifi},
		{k.Disconnect, k.Info},
	}
}

var defaultKeyBindings = keyMap{
	Connect:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select/confirm")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back/cancel")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Details:    key.NewBinding(key.WithKeys(" ", "e"), key.WithHelp("space", "details")),
	ToggleWifi: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle Wi-Fi")),
	Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
	Info:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),
}

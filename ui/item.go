package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"nmwifi/gonetworkmanager"
	"nmwifi/netlist"
	"nmwifi/session"
)

type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 2 }
func (d itemDelegate) Spacing() int                            { return 1 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	n, ok := listItem.(networkItem)
	if !ok {
		return
	}

	var title, desc string
	if index == m.Index() {
		title = listSelectedItemStyle.Render("▸ " + n.Title())
		desc = listSelectedDescStyle.Render("  " + n.Description())
	} else {
		title = listItemStyle.Render("  " + n.Title())
		desc = listDescStyle.Render("  " + n.Description())
	}
	fmt.Fprintf(w, "%s\n%s", title, desc)
}

// networkItem is the rendered form of one table entry.
type networkItem struct {
	key string
	ap  gonetworkmanager.AccessPoint
	row netlist.Row
}

func newNetworkItem(e *netlist.Entry) networkItem {
	return networkItem{key: e.Key, ap: e.AP, row: *e.Row}
}

func (n networkItem) Title() string {
	title := session.DisplaySSID(n.ap)
	if n.row.Active {
		title += connectedMarkStyle.Render(" • Connected")
	}
	if n.row.Expanded {
		title += labelStyle.Render(" ▾")
	}
	return title
}

// Description is "strength% • freq • security" behind the signal bars.
func (n networkItem) Description() string {
	tier := netlist.Classify(n.ap.Strength)
	parts := []string{tierStyle(tier).Render(fmt.Sprintf("%d%%", n.ap.Strength))}
	if n.ap.Frequency > 0 {
		parts = append(parts, fmt.Sprintf("%d MHz", n.ap.Frequency))
	}
	parts = append(parts, n.ap.SecurityLabel())
	return signalBars(tier) + " " + strings.Join(parts, labelStyle.Render(" • "))
}

func (n networkItem) FilterValue() string { return session.DisplaySSID(n.ap) }

// details lists the fields revealed when the row is expanded.
func (n networkItem) details() string {
	ap := n.ap
	channel := "unknown"
	if ap.Channel > 0 {
		channel = fmt.Sprintf("%d", ap.Channel)
		if ap.Frequency > 0 {
			channel += fmt.Sprintf(" (%d MHz)", ap.Frequency)
		}
	}
	lines := [][2]string{
		{"BSSID", ap.BSSID},
		{"Channel", channel},
		{"Band", orUnknown(ap.Band())},
		{"Mode", orUnknown(ap.Mode)},
		{"Bitrate", formatBitrate(ap.MaxBitrate)},
		{"Security", ap.SecurityLabel()},
		{"Signal", fmt.Sprintf("%d%% (%s)", ap.Strength, netlist.Classify(ap.Strength))},
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-9s", l[0]+":")), l[1])
	}
	return strings.Join(out, "\n")
}

func formatBitrate(kbits uint32) string {
	if kbits == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d Mbit/s", kbits/1000)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

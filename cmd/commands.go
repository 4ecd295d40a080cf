package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nmwifi/config"
	"nmwifi/gonetworkmanager"
	"nmwifi/logging"
	"nmwifi/netlist"
	"nmwifi/session"
	"nmwifi/ui"
)

var connectPassword string

func init() {
	connectCmd.Flags().StringVarP(&connectPassword, "password", "p", "", "Password for a secured network without a saved profile")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies the persistent flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if ifaceFlag != "" {
		cfg.Interface = ifaceFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// setup prepares logging and the NetworkManager client.
func setup() (*config.Config, *gonetworkmanager.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, nil, err
	}
	if err := gonetworkmanager.CheckAvailable(); err != nil {
		return nil, nil, fmt.Errorf("%w (this application requires NetworkManager)", err)
	}
	logging.GetLogger().Debug("starting", zap.String("version", version), zap.String("interface", cfg.Interface))
	return cfg, gonetworkmanager.NewClient(logging.Named("gateway")), nil
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Policy: cfg.Policy(),
		Logger: logging.Named("session"),
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, client, err := setup()
	if err != nil {
		return err
	}

	m := ui.New(client, sessionOptions(cfg), logging.Named("ui"))
	defer m.Orchestrator().Close()

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running application: %w", err)
	}
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan and list nearby networks",
	Long: `Trigger a scan on the WiFi device and print the networks found, strongest
first. The connected network is marked with '*'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setup()
		if err != nil {
			return err
		}
		h := &headless{
			orch: session.New(client, &lineSink{w: cmd.ErrOrStderr()}, sessionOptions(cfg)),
			scan: true,
		}
		if err := runHeadless(h); err != nil {
			return err
		}
		if err := h.orch.LastScan().Err; err != nil {
			if session.IsKind(err, session.KindScanEmpty) {
				return nil
			}
			return err
		}
		printNetworks(cmd.OutOrStdout(), h.orch.Table(), h.orch.Visible())
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <ssid|bssid>",
	Short: "Connect to a network",
	Long: `Scan, then connect to the named network. A BSSID selects that exact access
point; an SSID selects its strongest access point. Saved profiles are reused;
otherwise a new profile is created, using --password for secured networks.`,
	Example: `  nmwifi connect cafe
  nmwifi connect home --password 'correct horse'
  nmwifi connect aa:bb:cc:dd:ee:ff`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setup()
		if err != nil {
			return err
		}
		target := args[0]
		h := &headless{
			orch: session.New(client, &lineSink{w: cmd.ErrOrStderr()}, sessionOptions(cfg)),
			scan: true,
			start: func(o *session.Orchestrator) (tea.Cmd, error) {
				if err := o.LastScan().Err; session.IsKind(err, session.KindGatewayUnavailable) {
					return nil, err
				}
				return o.Connect(resolveTarget(o.Table(), target), connectPassword)
			},
		}
		return runHeadless(h)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the WiFi device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setup()
		if err != nil {
			return err
		}
		h := &headless{
			orch: session.New(client, &lineSink{w: cmd.ErrOrStderr()}, sessionOptions(cfg)),
			start: func(o *session.Orchestrator) (tea.Cmd, error) {
				return o.Disconnect()
			},
		}
		return runHeadless(h)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and command line
flags have been applied. The output is a valid config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cfg.Write(cmd.OutOrStdout())
	},
}

// resolveTarget maps a BSSID or SSID to a table key. An SSID picks its
// strongest access point. Unmatched input is returned as is, which the
// orchestrator reports as an unknown network.
func resolveTarget(t *netlist.Table, target string) string {
	if _, ok := t.Get(gonetworkmanager.NormalizeBSSID(target)); ok {
		return target
	}
	best := ""
	var strength uint8
	for _, k := range t.Keys() {
		e, _ := t.Get(k)
		if e.AP.SSIDString() != target {
			continue
		}
		if best == "" || e.AP.Strength > strength {
			best, strength = k, e.AP.Strength
		}
	}
	if best == "" {
		return target
	}
	return best
}

const maxSSIDWidth = 32

// printNetworks writes the ranked table for keys. Widths are display
// widths, so wide and multibyte SSIDs keep the columns aligned.
func printNetworks(w io.Writer, t *netlist.Table, keys []string) {
	cell := lipgloss.NewStyle().PaddingRight(1)
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 5 {
				return cell.Align(lipgloss.Right)
			}
			return cell
		}).
		Headers("", "SIGNAL", "TIER", "BSSID", "SSID", "CHAN", "SECURITY")

	for _, k := range keys {
		e, ok := t.Get(k)
		if !ok {
			continue
		}
		mark := ""
		if e.Row.Active {
			mark = "*"
		}
		ssid := strings.ToValidUTF8(session.DisplaySSID(e.AP), "?")
		tbl.Row(
			mark,
			fmt.Sprintf("%d%%", e.AP.Strength),
			netlist.Classify(e.AP.Strength).String(),
			e.AP.BSSID,
			runewidth.Truncate(ssid, maxSSIDWidth, "..."),
			strconv.Itoa(e.AP.Channel),
			e.AP.SecurityLabel())
	}
	fmt.Fprintln(w, tbl.Render())
}

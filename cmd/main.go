// Nmwifi is a terminal WiFi manager for NetworkManager.
//
// Run without arguments it opens the interactive network list. The scan,
// connect and disconnect commands do the same work without a UI and exit
// non-zero when the operation fails.
//
// Usage:
//
//	nmwifi [command] [flags]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nmwifi/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	ifaceFlag  string
	logLevel   string
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logging.Sync()
			fmt.Fprintf(os.Stderr, "Application crashed: %v\n", r)
			os.Exit(1)
		}
	}()

	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nmwifi",
	Short: "WiFi manager for NetworkManager",
	Long: `Scan, connect to and disconnect from WiFi networks through NetworkManager.

If no command is specified, the interactive network list opens.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/nmwifi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ifaceFlag, "interface", "", "WiFi device to manage (default: first WiFi device)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: off)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nmwifi %s\n", version)
	},
}

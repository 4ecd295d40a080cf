// Package config loads the nmwifi YAML configuration file.
//
// The file lives at $XDG_CONFIG_HOME/nmwifi/config.yaml, or
// $HOME/.config/nmwifi/config.yaml when XDG_CONFIG_HOME is unset. A missing
// file is not an error; every key has a default. Durations use Go syntax
// ("500ms", "2s").
//
// Example:
//
//	interface: wlp2s0
//	log_level: debug
//	auto_refresh: 30s
//	connect:
//	  max_samples: 40
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nmwifi/session"
)

const (
	appName    = "nmwifi"
	configFile = "config.yaml"
)

// ScanConfig tunes the scan poller.
type ScanConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	Interval    time.Duration `yaml:"interval"`
	Rounds      int           `yaml:"rounds"`
}

// ConnectConfig tunes connection polling.
type ConnectConfig struct {
	GraceDelay              time.Duration `yaml:"grace_delay"`
	Interval                time.Duration `yaml:"interval"`
	MaxSamples              int           `yaml:"max_samples"`
	DisconnectedGrace       int           `yaml:"disconnected_grace"`
	DisconnectedGraceActive int           `yaml:"disconnected_grace_active"`
	UnrecognizedLimit       int           `yaml:"unrecognized_limit"`
	SettleDelay             time.Duration `yaml:"settle_delay"`
	ActivationTimeout       time.Duration `yaml:"activation_timeout"`
}

// DisconnectConfig tunes the disconnect flow.
type DisconnectConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Config is the whole configuration file.
type Config struct {
	Interface      string           `yaml:"interface,omitempty"`
	LogLevel       string           `yaml:"log_level,omitempty"`
	LogFile        string           `yaml:"log_file,omitempty"`
	AutoRefresh    time.Duration    `yaml:"auto_refresh"`
	CommandTimeout time.Duration    `yaml:"command_timeout"`
	Scan           ScanConfig       `yaml:"scan"`
	Connect        ConnectConfig    `yaml:"connect"`
	Disconnect     DisconnectConfig `yaml:"disconnect"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	p := session.DefaultPolicy()
	return &Config{
		AutoRefresh:    p.AutoRefresh,
		CommandTimeout: p.CommandTimeout,
		Scan: ScanConfig{
			SettleDelay: p.ScanSettle,
			Interval:    p.ScanInterval,
			Rounds:      p.ScanRounds,
		},
		Connect: ConnectConfig{
			GraceDelay:              p.ConnectGrace,
			Interval:                p.PollInterval,
			MaxSamples:              p.MaxSamples,
			DisconnectedGrace:       p.DisconnectedGrace,
			DisconnectedGraceActive: p.DisconnectedGraceActive,
			UnrecognizedLimit:       p.UnrecognizedLimit,
			SettleDelay:             p.ConnectSettle,
			ActivationTimeout:       p.ActivationTimeout,
		},
		Disconnect: DisconnectConfig{SettleDelay: p.DisconnectSettle},
	}
}

// GetConfigDir returns $XDG_CONFIG_HOME/nmwifi or $HOME/.config/nmwifi.
func GetConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads path, or the default path when path is empty. Keys missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the poller and state machine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	atLeast := func(name string, v, min int) {
		if v < min {
			errs = append(errs, fmt.Errorf("%s must be at least %d, got %d", name, min, v))
		}
	}
	if c.Scan.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("scan.settle_delay must not be negative"))
	}
	positive("scan.interval", c.Scan.Interval)
	atLeast("scan.rounds", c.Scan.Rounds, 1)
	positive("connect.grace_delay", c.Connect.GraceDelay)
	positive("connect.interval", c.Connect.Interval)
	atLeast("connect.max_samples", c.Connect.MaxSamples, 1)
	atLeast("connect.disconnected_grace", c.Connect.DisconnectedGrace, 0)
	atLeast("connect.disconnected_grace_active", c.Connect.DisconnectedGraceActive, c.Connect.DisconnectedGrace)
	atLeast("connect.unrecognized_limit", c.Connect.UnrecognizedLimit, 1)
	positive("connect.activation_timeout", c.Connect.ActivationTimeout)
	positive("command_timeout", c.CommandTimeout)
	if c.Connect.SettleDelay < 0 || c.Disconnect.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delays must not be negative"))
	}
	if c.AutoRefresh < 0 {
		errs = append(errs, fmt.Errorf("auto_refresh must not be negative"))
	}
	return errors.Join(errs...)
}

// Policy converts the file settings into orchestrator timings.
func (c *Config) Policy() session.Policy {
	return session.Policy{
		Interface:               c.Interface,
		ScanSettle:              c.Scan.SettleDelay,
		ScanInterval:            c.Scan.Interval,
		ScanRounds:              c.Scan.Rounds,
		ConnectGrace:            c.Connect.GraceDelay,
		PollInterval:            c.Connect.Interval,
		MaxSamples:              c.Connect.MaxSamples,
		ConnectSettle:           c.Connect.SettleDelay,
		DisconnectedGrace:       c.Connect.DisconnectedGrace,
		DisconnectedGraceActive: c.Connect.DisconnectedGraceActive,
		UnrecognizedLimit:       c.Connect.UnrecognizedLimit,
		DisconnectSettle:        c.Disconnect.SettleDelay,
		ActivationTimeout:       c.Connect.ActivationTimeout,
		CommandTimeout:          c.CommandTimeout,
		AutoRefresh:             c.AutoRefresh,
	}
}

// Write encodes c as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

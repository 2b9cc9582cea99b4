package config

// Tool configuration loading and validation. Every value has a built-in
// default; a config file only overrides what it names.

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/enipcfg/internal/errors"
)

// DiscoveryConfig controls scan behavior.
type DiscoveryConfig struct {
	ScanWindowMs  int `yaml:"scan_window_ms"`  // how long to collect ListIdentity replies
	MissThreshold int `yaml:"miss_threshold"`  // consecutive missed scans before eviction
	AutoBrowseMs  int `yaml:"auto_browse_ms"`  // interval between auto-browse cycles
	ArpSettleMs   int `yaml:"arp_settle_ms"`   // wait between ping and ARP table read
	PingTimeoutMs int `yaml:"ping_timeout_ms"` // ping used to prime the ARP cache
}

// WriteConfig controls the configuration writer.
type WriteConfig struct {
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	WriteTimeoutMs   int `yaml:"write_timeout_ms"` // per-attribute exchange
	InterMessageMs   int `yaml:"inter_message_ms"` // delay between attribute writes
}

// BootPConfig controls the BootP listener.
type BootPConfig struct {
	SettleMs     int  `yaml:"settle_ms"`     // wait after BOOTREPLY before CIP follow-up
	DisableDHCP  bool `yaml:"disable_dhcp"`  // set Configuration Control to static after reply
	PendingQueue int  `yaml:"pending_queue"` // max queued requests awaiting a decision
}

// Config is the full tool configuration.
type Config struct {
	Adapter   string          `yaml:"adapter"` // preferred adapter name, empty = pick
	Discovery DiscoveryConfig `yaml:"discovery"`
	Write     WriteConfig     `yaml:"write"`
	BootP     BootPConfig     `yaml:"bootp"`
	LogFile   string          `yaml:"log_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Discovery: DiscoveryConfig{
			ScanWindowMs:  3000,
			MissThreshold: 3,
			AutoBrowseMs:  5000,
			ArpSettleMs:   50,
			PingTimeoutMs: 1000,
		},
		Write: WriteConfig{
			ConnectTimeoutMs: 3000,
			WriteTimeoutMs:   3000,
			InterMessageMs:   100,
		},
		BootP: BootPConfig{
			SettleMs:     2000,
			DisableDHCP:  true,
			PendingQueue: 16,
		},
	}
}

// Load reads a config file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapConfigError(err, path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapConfigError(err, path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.WrapConfigError(err, path)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Discovery.ScanWindowMs <= 0 {
		return fmt.Errorf("discovery.scan_window_ms must be positive, got %d", c.Discovery.ScanWindowMs)
	}
	if c.Discovery.MissThreshold < 1 {
		return fmt.Errorf("discovery.miss_threshold must be at least 1, got %d", c.Discovery.MissThreshold)
	}
	if c.Write.WriteTimeoutMs <= 0 {
		return fmt.Errorf("write.write_timeout_ms must be positive, got %d", c.Write.WriteTimeoutMs)
	}
	if c.Write.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("write.connect_timeout_ms must be positive, got %d", c.Write.ConnectTimeoutMs)
	}
	if c.Write.InterMessageMs < 0 {
		return fmt.Errorf("write.inter_message_ms must not be negative, got %d", c.Write.InterMessageMs)
	}
	if c.BootP.SettleMs < 0 {
		return fmt.Errorf("bootp.settle_ms must not be negative, got %d", c.BootP.SettleMs)
	}
	if c.BootP.PendingQueue < 1 {
		return fmt.Errorf("bootp.pending_queue must be at least 1, got %d", c.BootP.PendingQueue)
	}
	return nil
}

// ScanWindow returns the scan window as a duration.
func (c DiscoveryConfig) ScanWindow() time.Duration {
	return time.Duration(c.ScanWindowMs) * time.Millisecond
}

// ArpSettle returns the ARP settle wait as a duration.
func (c DiscoveryConfig) ArpSettle() time.Duration {
	return time.Duration(c.ArpSettleMs) * time.Millisecond
}

// PingTimeout returns the ping timeout as a duration.
func (c DiscoveryConfig) PingTimeout() time.Duration {
	return time.Duration(c.PingTimeoutMs) * time.Millisecond
}

// ConnectTimeout returns the TCP connect timeout as a duration.
func (c WriteConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the per-attribute timeout as a duration.
func (c WriteConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// InterMessageDelay returns the delay between attribute writes.
func (c WriteConfig) InterMessageDelay() time.Duration {
	return time.Duration(c.InterMessageMs) * time.Millisecond
}

// Settle returns the post-reply settle time as a duration.
func (c BootPConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

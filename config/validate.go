package config

import (
	"fmt"
	"strings"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability/logging"
)

const (
	defaultKeeperInterval = 30
	defaultKeeperRate     = 5
)

func (c *Config) normalise() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "alpha-local"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Keeper.IntervalSeconds == 0 {
		c.Keeper.IntervalSeconds = defaultKeeperInterval
	}
	if c.Keeper.ActionsPerSecond <= 0 {
		c.Keeper.ActionsPerSecond = defaultKeeperRate
	}
	if c.Keeper.Burst <= 0 {
		c.Keeper.Burst = 1
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 1
	}
}

// Validate rejects settings bankd cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GenesisFile) == "" {
		return fmt.Errorf("GenesisFile is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if _, err := c.Keeper.MinRewardAmount(); err != nil {
		return err
	}
	if c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within (0, 1]")
	}
	return nil
}

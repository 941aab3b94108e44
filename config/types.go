package config

import (
	"fmt"
	"math/big"
	"strings"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// Log configures the process logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Keeper configures the liquidation and reinvest bot.
type Keeper struct {
	Enabled          bool    `toml:"Enabled"`
	IntervalSeconds  uint64  `toml:"IntervalSeconds"`
	ActionsPerSecond float64 `toml:"ActionsPerSecond"`
	Burst            int     `toml:"Burst"`
	Reinvest         bool    `toml:"Reinvest"`
	MinReward        string  `toml:"MinReward"`
}

// MinRewardAmount parses MinReward; an empty value is zero.
func (k Keeper) MinRewardAmount() (*big.Int, error) {
	raw := strings.TrimSpace(k.MinReward)
	if raw == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("keeper: invalid MinReward %q", k.MinReward)
	}
	return v, nil
}

// Indexer configures the event history store. An empty DSN keeps history in
// memory for the lifetime of the process.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	DSN     string `toml:"DSN"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Pauses lists modules that start paused.
type Pauses struct {
	Lending bool `toml:"Lending"`
	Vault   bool `toml:"Vault"`
}

// View builds the runtime pause switch.
func (p Pauses) View() *nativecommon.Pauses {
	view := nativecommon.NewPauses()
	view.Set("lending", p.Lending)
	view.Set("vault", p.Vault)
	return view
}

package lending

import (
	"fmt"
	"math/big"
	"strings"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// Interest model names accepted in PoolConfig.InterestModel.
const (
	ModelFixed       = "fixed"
	ModelTripleSlope = "triple-slope"
)

// PoolConfig captures the admin-mutable parameters of the lending pool.
type PoolConfig struct {
	MinDebtSize    *big.Int `toml:"MinDebtSize"`
	InterestModel  string   `toml:"InterestModel"`
	RatePerSecond  *big.Int `toml:"RatePerSecond"`
	ReservePoolBps uint64   `toml:"ReservePoolBps"`
	KillBountyBps  uint64   `toml:"KillBountyBps"`
}

// VaultConfig holds the per-vault risk settings.
type VaultConfig struct {
	IsVault       bool   `toml:"IsVault"`
	AcceptsDebt   bool   `toml:"AcceptsDebt"`
	WorkFactorBps uint64 `toml:"WorkFactorBps"`
	KillFactorBps uint64 `toml:"KillFactorBps"`
}

// Clone returns a deep copy of the configuration.
func (c PoolConfig) Clone() PoolConfig {
	clone := c
	clone.MinDebtSize = nativecommon.Clone(c.MinDebtSize)
	clone.RatePerSecond = nativecommon.Clone(c.RatePerSecond)
	return clone
}

// EnsureDefaults populates nil big.Int fields so RLP handling is safe and
// selects the fixed-rate model when none is named.
func (c *PoolConfig) EnsureDefaults() {
	if c.MinDebtSize == nil {
		c.MinDebtSize = big.NewInt(0)
	}
	if c.RatePerSecond == nil {
		c.RatePerSecond = big.NewInt(0)
	}
	c.InterestModel = strings.ToLower(strings.TrimSpace(c.InterestModel))
	if c.InterestModel == "" {
		c.InterestModel = ModelFixed
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c PoolConfig) Validate() error {
	if c.ReservePoolBps > nativecommon.BpsDenominator {
		return fmt.Errorf("lending: reserve pool bps %d exceeds %d", c.ReservePoolBps, nativecommon.BpsDenominator)
	}
	if c.KillBountyBps > nativecommon.BpsDenominator {
		return fmt.Errorf("lending: kill bounty bps %d exceeds %d", c.KillBountyBps, nativecommon.BpsDenominator)
	}
	if c.MinDebtSize != nil && c.MinDebtSize.Sign() < 0 {
		return fmt.Errorf("lending: min debt size must not be negative")
	}
	if c.RatePerSecond != nil && c.RatePerSecond.Sign() < 0 {
		return fmt.Errorf("lending: rate per second must not be negative")
	}
	switch c.InterestModel {
	case ModelFixed, ModelTripleSlope, "":
	default:
		return fmt.Errorf("lending: unknown interest model %q", c.InterestModel)
	}
	return nil
}

// Model instantiates the configured interest model.
func (c PoolConfig) Model() (InterestModel, error) {
	switch c.InterestModel {
	case ModelFixed, "":
		return FixedRateModel{Rate: nativecommon.Clone(c.RatePerSecond)}, nil
	case ModelTripleSlope:
		return TripleSlopeModel{}, nil
	default:
		return nil, fmt.Errorf("lending: unknown interest model %q", c.InterestModel)
	}
}

// Validate enforces killFactor > workFactor so no position is killable the
// moment it opens.
func (v VaultConfig) Validate() error {
	if !v.IsVault {
		return nil
	}
	if v.KillFactorBps > nativecommon.BpsDenominator {
		return fmt.Errorf("lending: kill factor bps %d exceeds %d", v.KillFactorBps, nativecommon.BpsDenominator)
	}
	if v.KillFactorBps <= v.WorkFactorBps {
		return ErrBadFactors
	}
	return nil
}

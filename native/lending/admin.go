package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// SetParams stores new pool parameters and switches interest to a fixed
// per-second rate. Interest up to now is accrued under the old parameters.
func (b *Bank) SetParams(caller common.Address, minDebtSize, ratePerSecond *big.Int, reservePoolBps, killBountyBps uint64) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	cfg := PoolConfig{
		MinDebtSize:    nativecommon.Clone(minDebtSize),
		InterestModel:  ModelFixed,
		RatePerSecond:  nativecommon.Clone(ratePerSecond),
		ReservePoolBps: reservePoolBps,
		KillBountyBps:  killBountyBps,
	}
	return b.updateConfig(cfg)
}

// SetConfig stores a full pool configuration, including its interest model.
func (b *Bank) SetConfig(caller common.Address, cfg PoolConfig) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	cfg = cfg.Clone()
	cfg.EnsureDefaults()
	return b.updateConfig(cfg)
}

func (b *Bank) updateConfig(cfg PoolConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := cfg.Model(); err != nil {
		return err
	}
	if err := b.settle(); err != nil {
		return err
	}
	if err := b.ledger.KVPut(poolConfigKey(b.address), &cfg); err != nil {
		return err
	}
	b.emit(events.ParamsUpdated{
		MinDebtSize:    cfg.MinDebtSize,
		RatePerSecond:  cfg.RatePerSecond,
		ReservePoolBps: cfg.ReservePoolBps,
		KillBountyBps:  cfg.KillBountyBps,
	})
	return nil
}

// settle accrues pending interest under the current parameters.
func (b *Bank) settle() error {
	st, err := b.loadState()
	if err != nil {
		return err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return err
	}
	if err := b.accrue(st, cfg); err != nil {
		return err
	}
	return b.storeState(st)
}

// SetInterestModel switches the pool to a named interest model (ModelFixed or
// ModelTripleSlope). The choice is stored with the pool parameters.
func (b *Bank) SetInterestModel(caller common.Address, model string) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return err
	}
	cfg.InterestModel = model
	cfg.EnsureDefaults()
	return b.updateConfig(cfg)
}

// SetVault stores the risk settings of a vault address.
func (b *Bank) SetVault(caller common.Address, vault common.Address, cfg VaultConfig) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := b.ledger.KVPut(vaultConfigKey(b.address, vault), &cfg); err != nil {
		return err
	}
	b.emit(events.VaultConfigured{
		Vault:         vault,
		IsVault:       cfg.IsVault,
		AcceptsDebt:   cfg.AcceptsDebt,
		WorkFactorBps: cfg.WorkFactorBps,
		KillFactorBps: cfg.KillFactorBps,
	})
	return nil
}

// RegisterVault attaches a vault implementation and stores its settings.
func (b *Bank) RegisterVault(caller common.Address, vault Vault, cfg VaultConfig) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	if vault == nil {
		return ErrUnknownVault
	}
	if existing, ok := b.vaults[vault.Address()]; ok && existing != vault {
		return ErrVaultAlreadyAttached
	}
	if err := b.SetVault(caller, vault.Address(), cfg); err != nil {
		return err
	}
	b.vaults[vault.Address()] = vault
	return nil
}

// AttachVault binds a vault implementation without touching its stored
// settings. It is used when the pool is rebuilt over existing state.
func (b *Bank) AttachVault(vault Vault) error {
	if vault == nil {
		return ErrUnknownVault
	}
	if existing, ok := b.vaults[vault.Address()]; ok && existing != vault {
		return ErrVaultAlreadyAttached
	}
	b.vaults[vault.Address()] = vault
	return nil
}

// VaultImpl returns the attached implementation of addr.
func (b *Bank) VaultImpl(addr common.Address) (Vault, bool) {
	v, ok := b.vaults[addr]
	return v, ok
}

// WithdrawReserve pays amount of the protocol reserve to `to`.
func (b *Bank) WithdrawReserve(caller, to common.Address, amount *big.Int) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return err
	}
	defer release()
	amount = nativecommon.Clone(amount)
	st, err := b.takeReserve(amount)
	if err != nil {
		return err
	}
	if err := b.storeState(st); err != nil {
		return err
	}
	if err := b.ledger.Transfer(b.address, to, b.baseAsset, amount); err != nil {
		return err
	}
	b.emit(events.ReserveWithdrawn{To: to, Amount: amount})
	return nil
}

// ReduceReserve releases amount of the reserve to depositors.
func (b *Bank) ReduceReserve(caller common.Address, amount *big.Int) error {
	if err := b.OnlyOwner(caller); err != nil {
		return err
	}
	amount = nativecommon.Clone(amount)
	st, err := b.takeReserve(amount)
	if err != nil {
		return err
	}
	if err := b.storeState(st); err != nil {
		return err
	}
	b.emit(events.ReserveReduced{Amount: amount})
	return nil
}

func (b *Bank) takeReserve(amount *big.Int) (*PoolState, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := b.accrue(st, cfg); err != nil {
		return nil, err
	}
	if amount.Cmp(st.Reserve) > 0 {
		return nil, ErrInsufficientReserve
	}
	st.Reserve = new(big.Int).Sub(st.Reserve, amount)
	return st, nil
}

package lending

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// Config returns the stored pool parameters.
func (b *Bank) Config() (PoolConfig, error) {
	return b.loadConfig()
}

// VaultConfig returns the risk settings stored for vault.
func (b *Bank) VaultConfig(vault common.Address) (VaultConfig, error) {
	return b.loadVaultConfig(vault)
}

// TotalBaseAsset returns held base asset plus outstanding debt as of the last
// accrual.
func (b *Bank) TotalBaseAsset() (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(held, st.GlobalDebtValue)
}

// NetAssets returns the value backing depositor shares, which excludes the
// reserve.
func (b *Bank) NetAssets() (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	return b.netAssets(st)
}

// PendingInterest returns the interest an accrual would add right now.
func (b *Bank) PendingInterest() (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	return b.pendingInterest(st, cfg, b.now())
}

func (b *Bank) DebtShareToValue(share *big.Int) (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	return debtShareToValue(st, nativecommon.Clone(share))
}

func (b *Bank) DebtValueToShare(value *big.Int) (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	return debtValueToShare(st, nativecommon.Clone(value))
}

// Reserve returns the protocol reserve.
func (b *Bank) Reserve() (*big.Int, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	return st.Reserve, nil
}

// NextPositionID returns the id the next opened position will get.
func (b *Bank) NextPositionID() (uint64, error) {
	st, err := b.loadState()
	if err != nil {
		return 0, err
	}
	return st.NextPositionID, nil
}

// Position loads a live position.
func (b *Bank) Position(id uint64) (*Position, error) {
	return b.loadPosition(id)
}

// Positions returns every live position in id order.
func (b *Bank) Positions() ([]*Position, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	var out []*Position
	for id := uint64(1); id < st.NextPositionID; id++ {
		pos, err := b.loadPosition(id)
		if errors.Is(err, ErrUnknownPosition) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// Health returns the base-asset value of the position as priced by its vault.
func (b *Bank) Health(id uint64) (*big.Int, error) {
	pos, err := b.loadPosition(id)
	if err != nil {
		return nil, err
	}
	vault, ok := b.vaults[pos.Vault]
	if !ok {
		return nil, ErrUnknownVault
	}
	return vault.Health(id)
}

// PositionInfo returns the position's health and current debt value.
func (b *Bank) PositionInfo(id uint64) (*PositionInfo, error) {
	pos, err := b.loadPosition(id)
	if err != nil {
		return nil, err
	}
	vault, ok := b.vaults[pos.Vault]
	if !ok {
		return nil, ErrUnknownVault
	}
	health, err := vault.Health(id)
	if err != nil {
		return nil, err
	}
	debt, err := b.DebtShareToValue(pos.DebtShare)
	if err != nil {
		return nil, err
	}
	return &PositionInfo{Health: health, Debt: debt}, nil
}

// Killable reports whether Kill would currently succeed on the position,
// ignoring interest not yet accrued.
func (b *Bank) Killable(id uint64) (bool, error) {
	pos, err := b.loadPosition(id)
	if err != nil {
		return false, err
	}
	if pos.DebtShare.Sign() == 0 {
		return false, nil
	}
	info, err := b.PositionInfo(id)
	if err != nil {
		return false, err
	}
	vcfg, err := b.loadVaultConfig(pos.Vault)
	if err != nil {
		return false, err
	}
	return killable(info.Health, info.Debt, vcfg.KillFactorBps)
}

// Pool returns a snapshot of the pool accounting.
func (b *Bank) Pool() (*PoolView, error) {
	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.Add(held, st.GlobalDebtValue)
	if err != nil {
		return nil, err
	}
	supply, err := b.ledger.TotalSupply(b.shareAsset)
	if err != nil {
		return nil, err
	}
	return &PoolView{
		BaseAsset:       b.baseAsset,
		ShareAsset:      b.shareAsset,
		Held:            held,
		TotalBaseAsset:  total,
		TotalShares:     supply,
		GlobalDebtShare: st.GlobalDebtShare,
		GlobalDebtValue: st.GlobalDebtValue,
		Reserve:         st.Reserve,
		LastAccrual:     st.LastAccrual,
		NextPositionID:  st.NextPositionID,
		Utilisation:     Utilisation(st.GlobalDebtValue, held),
	}, nil
}

package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/types"
)

const (
	TypePoolDeposit      = "lending.deposit"
	TypePoolWithdraw     = "lending.withdraw"
	TypeInterestAccrued  = "lending.accrue"
	TypePositionWork     = "lending.work"
	TypeDebtAdded        = "lending.debt.added"
	TypeDebtRemoved      = "lending.debt.removed"
	TypePositionKilled   = "lending.kill"
	TypeReserveWithdrawn = "lending.reserve.withdrawn"
	TypeReserveReduced   = "lending.reserve.reduced"
	TypeParamsUpdated    = "lending.params.updated"
	TypeVaultConfigured  = "lending.vault.configured"
	TypeVaultReinvested  = "vault.reinvest"
)

// PoolDeposit is emitted when base asset enters the pool for shares.
type PoolDeposit struct {
	Account common.Address
	Amount  *big.Int
	Shares  *big.Int
}

func (PoolDeposit) EventType() string { return TypePoolDeposit }

func (e PoolDeposit) Event() *types.Event {
	return &types.Event{Type: TypePoolDeposit, Attributes: map[string]string{
		"account": addressString(e.Account),
		"amount":  amountString(e.Amount),
		"shares":  amountString(e.Shares),
	}}
}

// PoolWithdraw is emitted when shares are redeemed for base asset.
type PoolWithdraw struct {
	Account common.Address
	Shares  *big.Int
	Amount  *big.Int
}

func (PoolWithdraw) EventType() string { return TypePoolWithdraw }

func (e PoolWithdraw) Event() *types.Event {
	return &types.Event{Type: TypePoolWithdraw, Attributes: map[string]string{
		"account": addressString(e.Account),
		"shares":  amountString(e.Shares),
		"amount":  amountString(e.Amount),
	}}
}

// InterestAccrued reports interest added to the global debt.
type InterestAccrued struct {
	Elapsed    uint64
	Interest   *big.Int
	ToReserve  *big.Int
	GlobalDebt *big.Int
}

func (InterestAccrued) EventType() string { return TypeInterestAccrued }

func (e InterestAccrued) Event() *types.Event {
	return &types.Event{Type: TypeInterestAccrued, Attributes: map[string]string{
		"elapsed":    uintString(e.Elapsed),
		"interest":   amountString(e.Interest),
		"toReserve":  amountString(e.ToReserve),
		"globalDebt": amountString(e.GlobalDebt),
	}}
}

// PositionWork summarises one work call.
type PositionWork struct {
	PositionID uint64
	Owner      common.Address
	Vault      common.Address
	Loan       *big.Int
	Principal  *big.Int
	Returned   *big.Int
	Repaid     *big.Int
	Debt       *big.Int
}

func (PositionWork) EventType() string { return TypePositionWork }

func (e PositionWork) Event() *types.Event {
	return &types.Event{Type: TypePositionWork, Attributes: map[string]string{
		"positionId": uintString(e.PositionID),
		"owner":      addressString(e.Owner),
		"vault":      addressString(e.Vault),
		"loan":       amountString(e.Loan),
		"principal":  amountString(e.Principal),
		"returned":   amountString(e.Returned),
		"repaid":     amountString(e.Repaid),
		"debt":       amountString(e.Debt),
	}}
}

// DebtChanged is emitted when debt shares are attached to or detached from a position.
type DebtChanged struct {
	PositionID uint64
	DebtShare  *big.Int
	DebtValue  *big.Int
	Added      bool
}

func (e DebtChanged) EventType() string {
	if e.Added {
		return TypeDebtAdded
	}
	return TypeDebtRemoved
}

func (e DebtChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"positionId": uintString(e.PositionID),
		"debtShare":  amountString(e.DebtShare),
		"debtValue":  amountString(e.DebtValue),
	}}
}

// PositionKilled records a forced liquidation and how the proceeds were split.
type PositionKilled struct {
	PositionID uint64
	Killer     common.Address
	Owner      common.Address
	Debt       *big.Int
	Released   *big.Int
	Bounty     *big.Int
	ReserveCut *big.Int
	Left       *big.Int
	BadDebt    *big.Int
}

func (PositionKilled) EventType() string { return TypePositionKilled }

func (e PositionKilled) Event() *types.Event {
	return &types.Event{Type: TypePositionKilled, Attributes: map[string]string{
		"positionId": uintString(e.PositionID),
		"killer":     addressString(e.Killer),
		"owner":      addressString(e.Owner),
		"debt":       amountString(e.Debt),
		"released":   amountString(e.Released),
		"bounty":     amountString(e.Bounty),
		"reserveCut": amountString(e.ReserveCut),
		"left":       amountString(e.Left),
		"badDebt":    amountString(e.BadDebt),
	}}
}

// ReserveWithdrawn is emitted when the owner pays out protocol reserve.
type ReserveWithdrawn struct {
	To     common.Address
	Amount *big.Int
}

func (ReserveWithdrawn) EventType() string { return TypeReserveWithdrawn }

func (e ReserveWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeReserveWithdrawn, Attributes: map[string]string{
		"to":     addressString(e.To),
		"amount": amountString(e.Amount),
	}}
}

// ReserveReduced is emitted when reserve is released to depositors.
type ReserveReduced struct {
	Amount *big.Int
}

func (ReserveReduced) EventType() string { return TypeReserveReduced }

func (e ReserveReduced) Event() *types.Event {
	return &types.Event{Type: TypeReserveReduced, Attributes: map[string]string{
		"amount": amountString(e.Amount),
	}}
}

// ParamsUpdated is emitted by setParams.
type ParamsUpdated struct {
	MinDebtSize    *big.Int
	RatePerSecond  *big.Int
	ReservePoolBps uint64
	KillBountyBps  uint64
}

func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

func (e ParamsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeParamsUpdated, Attributes: map[string]string{
		"minDebtSize":    amountString(e.MinDebtSize),
		"ratePerSecond":  amountString(e.RatePerSecond),
		"reservePoolBps": uintString(e.ReservePoolBps),
		"killBountyBps":  uintString(e.KillBountyBps),
	}}
}

// VaultConfigured is emitted by setVault.
type VaultConfigured struct {
	Vault         common.Address
	IsVault       bool
	AcceptsDebt   bool
	WorkFactorBps uint64
	KillFactorBps uint64
}

func (VaultConfigured) EventType() string { return TypeVaultConfigured }

func (e VaultConfigured) Event() *types.Event {
	return &types.Event{Type: TypeVaultConfigured, Attributes: map[string]string{
		"vault":         addressString(e.Vault),
		"isVault":       strconv.FormatBool(e.IsVault),
		"acceptsDebt":   strconv.FormatBool(e.AcceptsDebt),
		"workFactorBps": uintString(e.WorkFactorBps),
		"killFactorBps": uintString(e.KillFactorBps),
	}}
}

// VaultReinvested is emitted when farm rewards are compounded.
type VaultReinvested struct {
	Vault   common.Address
	Caller  common.Address
	Reward  *big.Int
	Bounty  *big.Int
	LPAdded *big.Int
}

func (VaultReinvested) EventType() string { return TypeVaultReinvested }

func (e VaultReinvested) Event() *types.Event {
	return &types.Event{Type: TypeVaultReinvested, Attributes: map[string]string{
		"vault":   addressString(e.Vault),
		"caller":  addressString(e.Caller),
		"reward":  amountString(e.Reward),
		"bounty":  amountString(e.Bounty),
		"lpAdded": amountString(e.LPAdded),
	}}
}

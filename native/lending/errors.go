package lending

import nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"

var (
	ErrDebtTooSmall         = nativecommon.NewRevert(nativecommon.ErrValidation, "too small debt size")
	ErrBadWorkFactor        = nativecommon.NewRevert(nativecommon.ErrCollateral, "bad work factor")
	ErrInsufficientETH      = nativecommon.NewRevert(nativecommon.ErrLiquidity, "insufficient ETH in the bank")
	ErrCannotLiquidate      = nativecommon.NewRevert(nativecommon.ErrCollateral, "can't liquidate")
	ErrUnknownVault         = nativecommon.NewRevert(nativecommon.ErrValidation, "not a goblin")
	ErrDebtRejected         = nativecommon.NewRevert(nativecommon.ErrValidation, "goblin not accept more debt")
	ErrNotPositionOwner     = nativecommon.NewRevert(nativecommon.ErrValidation, "not position owner")
	ErrBadPositionVault     = nativecommon.NewRevert(nativecommon.ErrValidation, "bad position goblin")
	ErrUnknownPosition      = nativecommon.NewRevert(nativecommon.ErrValidation, "bad position id")
	ErrNoDebt               = nativecommon.NewRevert(nativecommon.ErrValidation, "no debt")
	ErrSlippageExceeded     = nativecommon.NewRevert(nativecommon.ErrSlippage, "insufficient ETH returned")
	ErrInsufficientShares   = nativecommon.NewRevert(nativecommon.ErrLiquidity, "insufficient pool shares")
	ErrInsufficientReserve  = nativecommon.NewRevert(nativecommon.ErrLiquidity, "insufficient reserve")
	ErrBadFactors           = nativecommon.NewRevert(nativecommon.ErrValidation, "kill factor must exceed work factor")
	ErrInvalidAmount        = nativecommon.NewRevert(nativecommon.ErrValidation, "invalid amount")
	ErrVaultAlreadyAttached = nativecommon.NewRevert(nativecommon.ErrValidation, "vault already registered")
)

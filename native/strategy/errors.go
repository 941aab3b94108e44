package strategy

import nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"

var (
	ErrInsufficientLP      = nativecommon.NewRevert(nativecommon.ErrSlippage, "insufficient LP tokens received")
	ErrInsufficientBase    = nativecommon.NewRevert(nativecommon.ErrSlippage, "insufficient ETH received")
	ErrInsufficientFarming = nativecommon.NewRevert(nativecommon.ErrSlippage, "insufficient farming tokens received")
	ErrInsufficientOutput  = nativecommon.NewRevert(nativecommon.ErrLiquidity, "insufficient output to repay debt")
	ErrNotGoblin           = nativecommon.NewRevert(nativecommon.ErrValidation, "caller is not the goblin")
	ErrBadParams           = nativecommon.NewRevert(nativecommon.ErrValidation, "bad strategy params")
	ErrReversed            = nativecommon.NewRevert(nativecommon.ErrValidation, "Reversed")
	ErrUnknownStrategy     = nativecommon.NewRevert(nativecommon.ErrValidation, "unknown strategy")
)

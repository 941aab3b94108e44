package staking

import nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"

var (
	ErrZeroStake          = nativecommon.NewRevert(nativecommon.ErrValidation, "Cannot stake 0")
	ErrZeroWithdraw       = nativecommon.NewRevert(nativecommon.ErrValidation, "Cannot withdraw 0")
	ErrRewardTooHigh      = nativecommon.NewRevert(nativecommon.ErrLiquidity, "Provided reward too high")
	ErrNotDistribution    = nativecommon.NewRevert(nativecommon.ErrValidation, "Caller is not RewardsDistribution contract")
	ErrWithdrawNotGood    = nativecommon.NewRevert(nativecommon.ErrValidation, "withdraw: not good")
	ErrUnknownPool        = nativecommon.NewRevert(nativecommon.ErrValidation, "staking: unknown pool")
	ErrInsufficientStaked = nativecommon.NewRevert(nativecommon.ErrValidation, "staking: insufficient staked balance")
)

package vault

import nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"

var (
	ErrNotOperator        = nativecommon.NewRevert(nativecommon.ErrValidation, "not operator")
	ErrUnapprovedStrategy = nativecommon.NewRevert(nativecommon.ErrValidation, "unapproved work strategy")
	ErrBountyTooHigh      = nativecommon.NewRevert(nativecommon.ErrValidation, "reinvest bounty exceeds 100%")
	ErrNoRewardRoute      = nativecommon.NewRevert(nativecommon.ErrValidation, "no route for reward asset")
)

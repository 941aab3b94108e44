package amm

import nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"

var (
	ErrInsufficientAmount          = nativecommon.NewRevert(nativecommon.ErrValidation, "UniswapV2Library: INSUFFICIENT_AMOUNT")
	ErrInsufficientInputAmount     = nativecommon.NewRevert(nativecommon.ErrValidation, "UniswapV2: INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientOutputAmount    = nativecommon.NewRevert(nativecommon.ErrSlippage, "UniswapV2: INSUFFICIENT_OUTPUT_AMOUNT")
	ErrExcessiveInputAmount        = nativecommon.NewRevert(nativecommon.ErrSlippage, "UniswapV2Router: EXCESSIVE_INPUT_AMOUNT")
	ErrInsufficientLiquidity       = nativecommon.NewRevert(nativecommon.ErrLiquidity, "UniswapV2: INSUFFICIENT_LIQUIDITY")
	ErrInsufficientLiquidityMinted = nativecommon.NewRevert(nativecommon.ErrLiquidity, "UniswapV2: INSUFFICIENT_LIQUIDITY_MINTED")
	ErrInsufficientLiquidityBurned = nativecommon.NewRevert(nativecommon.ErrLiquidity, "UniswapV2: INSUFFICIENT_LIQUIDITY_BURNED")
	ErrInsufficientBaseAmount      = nativecommon.NewRevert(nativecommon.ErrSlippage, "UniswapV2Router: INSUFFICIENT_A_AMOUNT")
	ErrInsufficientPairedAmount    = nativecommon.NewRevert(nativecommon.ErrSlippage, "UniswapV2Router: INSUFFICIENT_B_AMOUNT")
	ErrConstantProduct             = nativecommon.NewRevert(nativecommon.ErrValidation, "UniswapV2: K")
	ErrUnknownAsset                = nativecommon.NewRevert(nativecommon.ErrValidation, "amm: asset not traded by pair")
)

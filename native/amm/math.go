package amm

import (
	"math/big"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// MinimumLiquidity is locked forever by the first liquidity provider.
var MinimumLiquidity = big.NewInt(1000)

// Fee is the share of the input that survives the swap fee, expressed as
// Numerator/Denominator (997/1000 is the 0.3% constant-product fee).
type Fee struct {
	Numerator   uint64 `toml:"Numerator" yaml:"numerator"`
	Denominator uint64 `toml:"Denominator" yaml:"denominator"`
}

// DefaultFee is the canonical 0.3% fee.
var DefaultFee = Fee{Numerator: 997, Denominator: 1000}

// Valid reports whether the fee is a proper fraction.
func (f Fee) Valid() bool {
	return f.Denominator > 0 && f.Numerator > 0 && f.Numerator <= f.Denominator
}

func (f Fee) num() *big.Int { return new(big.Int).SetUint64(f.Numerator) }
func (f Fee) den() *big.Int { return new(big.Int).SetUint64(f.Denominator) }

// Quote returns the amount of B worth amountA at the current reserve ratio.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return nativecommon.MulDiv(amountA, reserveB, reserveA)
}

// GetAmountOut returns the output of selling amountIn against the reserves.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, fee Fee) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	withFee, err := nativecommon.Mul(amountIn, fee.num())
	if err != nil {
		return nil, err
	}
	numerator, err := nativecommon.Mul(withFee, reserveOut)
	if err != nil {
		return nil, err
	}
	scaledIn, err := nativecommon.Mul(reserveIn, fee.den())
	if err != nil {
		return nil, err
	}
	denominator, err := nativecommon.Add(scaledIn, withFee)
	if err != nil {
		return nil, err
	}
	return nativecommon.Div(numerator, denominator)
}

// GetAmountIn returns the input required to buy exactly amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, fee Fee) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	numerator, err := nativecommon.Mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = nativecommon.Mul(numerator, fee.den()); err != nil {
		return nil, err
	}
	remaining, err := nativecommon.Sub(reserveOut, amountOut)
	if err != nil {
		return nil, err
	}
	denominator, err := nativecommon.Mul(remaining, fee.num())
	if err != nil {
		return nil, err
	}
	amountIn, err := nativecommon.Div(numerator, denominator)
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(amountIn, big.NewInt(1))
}

package lending

import (
	"math/big"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// rateScale is the fixed-point scale of per-second rates.
var rateScale = big.NewInt(1e18)

const secondsPerYear = 365 * 24 * 60 * 60

// InterestModel returns the per-second borrow rate, scaled by 1e18, for the
// given outstanding debt and idle liquidity. Implementations must be pure.
type InterestModel interface {
	RatePerSecond(debt, floating *big.Int) (*big.Int, error)
}

// FixedRateModel charges the same rate regardless of utilisation.
type FixedRateModel struct {
	Rate *big.Int
}

func (m FixedRateModel) RatePerSecond(_, _ *big.Int) (*big.Int, error) {
	return nativecommon.Clone(m.Rate), nil
}

// TripleSlopeModel ramps the APY with utilisation: 0% to 10% up to 80%
// utilisation, flat 10% to 90%, then 10% to 50% at full utilisation.
type TripleSlopeModel struct{}

var (
	pct   = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil) // 1% of 1e18
	u80   = new(big.Int).Mul(big.NewInt(80), rateScale)
	u90   = new(big.Int).Mul(big.NewInt(90), rateScale)
	u100  = new(big.Int).Mul(big.NewInt(100), rateScale)
	apy10 = new(big.Int).Mul(big.NewInt(10), pct)
	apy40 = new(big.Int).Mul(big.NewInt(40), pct)
	apy50 = new(big.Int).Mul(big.NewInt(50), pct)
	year  = big.NewInt(secondsPerYear)
)

func (TripleSlopeModel) RatePerSecond(debt, floating *big.Int) (*big.Int, error) {
	debt, floating = nativecommon.Clone(debt), nativecommon.Clone(floating)
	total, err := nativecommon.Add(debt, floating)
	if err != nil {
		return nil, err
	}
	utilization := big.NewInt(0)
	if total.Sign() > 0 {
		if utilization, err = nativecommon.MulDiv(debt, u100, total); err != nil {
			return nil, err
		}
	}
	var apy *big.Int
	switch {
	case utilization.Cmp(u80) < 0:
		if apy, err = nativecommon.MulDiv(utilization, apy10, u80); err != nil {
			return nil, err
		}
	case utilization.Cmp(u90) < 0:
		apy = new(big.Int).Set(apy10)
	case utilization.Cmp(u100) < 0:
		over := new(big.Int).Sub(utilization, u90)
		extra, err := nativecommon.MulDiv(over, apy40, new(big.Int).Mul(big.NewInt(10), rateScale))
		if err != nil {
			return nil, err
		}
		apy = extra.Add(extra, apy10)
	default:
		apy = new(big.Int).Set(apy50)
	}
	return apy.Quo(apy, year), nil
}

// Utilisation computes debt / (debt + floating) for reporting. When nothing is
// lent out the utilisation is zero.
func Utilisation(debt, floating *big.Int) *big.Rat {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Rat)
	}
	total := new(big.Int).Add(debt, nativecommon.Clone(floating))
	return new(big.Rat).SetFrac(debt, total)
}

// AccruedInterest returns rate * debt * elapsed / 1e18.
func AccruedInterest(rate, debt *big.Int, elapsed uint64) (*big.Int, error) {
	if elapsed == 0 || debt == nil || debt.Sign() == 0 || rate == nil || rate.Sign() == 0 {
		return big.NewInt(0), nil
	}
	perDebt, err := nativecommon.Mul(rate, debt)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(perDebt, new(big.Int).SetUint64(elapsed), rateScale)
}

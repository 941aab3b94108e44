package strategy

import (
	"math/big"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// OptimalDeposit returns how much of amount (an asset whose reserve is
// reserveIn) to swap so that the remainder and the swap output add to the
// pool with nothing left over. It is the positive root of
//
//	N*s^2 + (D+N)*r*s - D*amount*r = 0
//
// for a pool keeping N/D of every input as fee-adjusted trade.
func OptimalDeposit(amount, reserveIn *big.Int, fee amm.Fee) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 || reserveIn == nil || reserveIn.Sign() == 0 {
		return big.NewInt(0), nil
	}
	n := new(big.Int).SetUint64(fee.Numerator)
	d := new(big.Int).SetUint64(fee.Denominator)
	dn := new(big.Int).Add(d, n)

	// r * (r*(D+N)^2 + amount*4*N*D)
	sq, err := nativecommon.Mul(dn, dn)
	if err != nil {
		return nil, err
	}
	left, err := nativecommon.Mul(reserveIn, sq)
	if err != nil {
		return nil, err
	}
	k := new(big.Int).Mul(big.NewInt(4), new(big.Int).Mul(n, d))
	right, err := nativecommon.Mul(amount, k)
	if err != nil {
		return nil, err
	}
	inner, err := nativecommon.Add(left, right)
	if err != nil {
		return nil, err
	}
	disc, err := nativecommon.Mul(reserveIn, inner)
	if err != nil {
		return nil, err
	}
	root, err := nativecommon.Sqrt(disc)
	if err != nil {
		return nil, err
	}
	b, err := nativecommon.Mul(reserveIn, dn)
	if err != nil {
		return nil, err
	}
	num, err := nativecommon.Sub(root, b)
	if err != nil {
		return nil, err
	}
	return nativecommon.Div(num, new(big.Int).Mul(big.NewInt(2), n))
}

// OptimalDepositTwoSided sizes the swap for a deposit of (amtA, amtB) against
// reserves (resA, resB). When reversed is false the swap sells asset A,
// otherwise it sells asset B. A deposit already at the pool ratio needs no swap.
func OptimalDepositTwoSided(amtA, amtB, resA, resB *big.Int, fee amm.Fee) (swap *big.Int, reversed bool, err error) {
	amtA, amtB = nativecommon.Clone(amtA), nativecommon.Clone(amtB)
	lhs, err := nativecommon.Mul(amtA, resB)
	if err != nil {
		return nil, false, err
	}
	rhs, err := nativecommon.Mul(amtB, resA)
	if err != nil {
		return nil, false, err
	}
	if lhs.Cmp(rhs) >= 0 {
		swap, err = optimalDepositA(amtA, amtB, resA, resB, fee)
		return swap, false, err
	}
	swap, err = optimalDepositA(amtB, amtA, resB, resA, fee)
	return swap, true, err
}

// optimalDepositA requires amtA/amtB >= resA/resB and returns how much A to
// sell.
func optimalDepositA(amtA, amtB, resA, resB *big.Int, fee amm.Fee) (*big.Int, error) {
	lhs, err := nativecommon.Mul(amtA, resB)
	if err != nil {
		return nil, err
	}
	rhs, err := nativecommon.Mul(amtB, resA)
	if err != nil {
		return nil, err
	}
	if lhs.Cmp(rhs) < 0 {
		return nil, ErrReversed
	}
	if resA.Sign() == 0 || resB.Sign() == 0 {
		return big.NewInt(0), nil
	}
	n := new(big.Int).SetUint64(fee.Numerator)
	d := new(big.Int).SetUint64(fee.Denominator)

	b, err := nativecommon.Mul(new(big.Int).Add(d, n), resA)
	if err != nil {
		return nil, err
	}
	excess := new(big.Int).Sub(lhs, rhs)
	scaled, err := nativecommon.Mul(excess, d)
	if err != nil {
		return nil, err
	}
	scaled, err = nativecommon.Div(scaled, new(big.Int).Add(amtB, resB))
	if err != nil {
		return nil, err
	}
	c, err := nativecommon.Mul(scaled, resA)
	if err != nil {
		return nil, err
	}
	b2, err := nativecommon.Mul(b, b)
	if err != nil {
		return nil, err
	}
	ac4, err := nativecommon.Mul(new(big.Int).Mul(big.NewInt(4), n), c)
	if err != nil {
		return nil, err
	}
	disc, err := nativecommon.Add(b2, ac4)
	if err != nil {
		return nil, err
	}
	root, err := nativecommon.Sqrt(disc)
	if err != nil {
		return nil, err
	}
	num, err := nativecommon.Sub(root, b)
	if err != nil {
		return nil, err
	}
	return nativecommon.Div(num, new(big.Int).Mul(big.NewInt(2), n))
}

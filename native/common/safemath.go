package common

import (
	"math/big"

	"github.com/holiman/uint256"
)

// BpsDenominator is the basis-point scale used by every ratio parameter.
const BpsDenominator = 10_000

// Checked 256-bit arithmetic over *big.Int. Every helper rejects negative
// inputs and results that do not fit in 256 bits instead of wrapping.

func toU256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, ErrUnderflow
	}
	value, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

func operands(a, b *big.Int) (*uint256.Int, *uint256.Int, error) {
	x, err := toU256(a)
	if err != nil {
		return nil, nil, err
	}
	y, err := toU256(b)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Add returns a+b.
func Add(a, b *big.Int) (*big.Int, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	if _, overflow := x.AddOverflow(x, y); overflow {
		return nil, ErrOverflow
	}
	return x.ToBig(), nil
}

// Sub returns a-b and fails when b > a.
func Sub(a, b *big.Int) (*big.Int, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	if _, underflow := x.SubOverflow(x, y); underflow {
		return nil, ErrUnderflow
	}
	return x.ToBig(), nil
}

// Mul returns a*b.
func Mul(a, b *big.Int) (*big.Int, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	if _, overflow := x.MulOverflow(x, y); overflow {
		return nil, ErrOverflow
	}
	return x.ToBig(), nil
}

// Div returns floor(a/b).
func Div(a, b *big.Int) (*big.Int, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	if y.IsZero() {
		return nil, ErrDivByZero
	}
	return x.Div(x, y).ToBig(), nil
}

// MulDiv returns floor(a*b/d) using a 512-bit intermediate product.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	z, err := toU256(d)
	if err != nil {
		return nil, err
	}
	if z.IsZero() {
		return nil, ErrDivByZero
	}
	result, overflow := new(uint256.Int).MulDivOverflow(x, y, z)
	if overflow {
		return nil, ErrOverflow
	}
	return result.ToBig(), nil
}

// Sqrt returns floor(sqrt(a)).
func Sqrt(a *big.Int) (*big.Int, error) {
	x, err := toU256(a)
	if err != nil {
		return nil, err
	}
	return x.Sqrt(x).ToBig(), nil
}

// Bps returns floor(amount*bps/10000).
func Bps(amount *big.Int, bps uint64) (*big.Int, error) {
	return MulDiv(amount, new(big.Int).SetUint64(bps), big.NewInt(BpsDenominator))
}

// Min returns a copy of the smaller operand.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Zero returns a fresh zero value.
func Zero() *big.Int { return big.NewInt(0) }

// Clone copies x, mapping nil to zero.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(x)
}

package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// Router is the periphery for a single pair: it pulls funds from the caller,
// sizes liquidity at the pool ratio and settles swaps. It is the AMM
// capability handed to vaults and strategies.
type Router struct {
	pair   *Pair
	ledger nativecommon.Ledger
}

// NewRouter wraps pair.
func NewRouter(pair *Pair) *Router {
	return &Router{pair: pair, ledger: pair.ledger}
}

func (r *Router) Pair() *Pair { return r.pair }
func (r *Router) Address() common.Address { return r.pair.address }
func (r *Router) BaseAsset() string { return r.pair.base }
func (r *Router) PairedAsset() string { return r.pair.paired }
func (r *Router) LPAsset() string { return r.pair.lpAsset }
func (r *Router) Fee() Fee { return r.pair.fee }
func (r *Router) Reserves() (*big.Int, *big.Int, error) { return r.pair.Reserves() }

// LPTotalSupply returns the outstanding LP supply.
func (r *Router) LPTotalSupply() (*big.Int, error) { return r.pair.TotalSupply() }

// orient returns (reserveIn, reserveOut) for a trade selling assetIn.
func (r *Router) orient(assetIn string) (*big.Int, *big.Int, error) {
	reserveBase, reservePaired, err := r.pair.Reserves()
	if err != nil {
		return nil, nil, err
	}
	switch assetIn {
	case r.pair.base:
		return reserveBase, reservePaired, nil
	case r.pair.paired:
		return reservePaired, reserveBase, nil
	default:
		return nil, nil, ErrUnknownAsset
	}
}

// AmountOut quotes selling amountIn of assetIn.
func (r *Router) AmountOut(assetIn string, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := r.orient(assetIn)
	if err != nil {
		return nil, err
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut, r.pair.fee)
}

// AmountIn quotes the assetIn needed to buy amountOut of the other asset.
func (r *Router) AmountIn(assetIn string, amountOut *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := r.orient(assetIn)
	if err != nil {
		return nil, err
	}
	return GetAmountIn(amountOut, reserveIn, reserveOut, r.pair.fee)
}

// AddLiquidity deposits up to the desired amounts at the pool ratio and mints
// LP to `to`. Unused amounts stay with `from`.
func (r *Router) AddLiquidity(from, to common.Address, baseDesired, pairedDesired, baseMin, pairedMin *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	baseDesired = nativecommon.Clone(baseDesired)
	pairedDesired = nativecommon.Clone(pairedDesired)
	baseMin = nativecommon.Clone(baseMin)
	pairedMin = nativecommon.Clone(pairedMin)

	reserveBase, reservePaired, err := r.pair.Reserves()
	if err != nil {
		return nil, nil, nil, err
	}
	amountBase, amountPaired := baseDesired, pairedDesired
	if reserveBase.Sign() != 0 || reservePaired.Sign() != 0 {
		pairedOptimal, err := Quote(baseDesired, reserveBase, reservePaired)
		if err != nil {
			return nil, nil, nil, err
		}
		if pairedOptimal.Cmp(pairedDesired) <= 0 {
			if pairedOptimal.Cmp(pairedMin) < 0 {
				return nil, nil, nil, ErrInsufficientPairedAmount
			}
			amountPaired = pairedOptimal
		} else {
			baseOptimal, err := Quote(pairedDesired, reservePaired, reserveBase)
			if err != nil {
				return nil, nil, nil, err
			}
			if baseOptimal.Cmp(baseMin) < 0 {
				return nil, nil, nil, ErrInsufficientBaseAmount
			}
			amountBase = baseOptimal
		}
	}
	if err := r.ledger.Transfer(from, r.pair.address, r.pair.base, amountBase); err != nil {
		return nil, nil, nil, err
	}
	if err := r.ledger.Transfer(from, r.pair.address, r.pair.paired, amountPaired); err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := r.pair.Mint(to)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountBase, amountPaired, liquidity, nil
}

// RemoveLiquidity burns liquidity taken from `from` and sends the underlying to `to`.
func (r *Router) RemoveLiquidity(from, to common.Address, liquidity, baseMin, pairedMin *big.Int) (*big.Int, *big.Int, error) {
	if err := r.ledger.Transfer(from, r.pair.address, r.pair.lpAsset, nativecommon.Clone(liquidity)); err != nil {
		return nil, nil, err
	}
	amountBase, amountPaired, err := r.pair.Burn(to)
	if err != nil {
		return nil, nil, err
	}
	if amountBase.Cmp(nativecommon.Clone(baseMin)) < 0 {
		return nil, nil, ErrInsufficientBaseAmount
	}
	if amountPaired.Cmp(nativecommon.Clone(pairedMin)) < 0 {
		return nil, nil, ErrInsufficientPairedAmount
	}
	return amountBase, amountPaired, nil
}

// SwapExactIn sells amountIn of assetIn and fails when the output is below minOut.
func (r *Router) SwapExactIn(from, to common.Address, assetIn string, amountIn, minOut *big.Int) (*big.Int, error) {
	out, err := r.AmountOut(assetIn, amountIn)
	if err != nil {
		return nil, err
	}
	if out.Cmp(nativecommon.Clone(minOut)) < 0 {
		return nil, ErrInsufficientOutputAmount
	}
	if err := r.settle(from, to, assetIn, amountIn, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SwapExactOut buys exactly amountOut with assetIn and fails when the required
// input exceeds maxIn.
func (r *Router) SwapExactOut(from, to common.Address, assetIn string, amountOut, maxIn *big.Int) (*big.Int, error) {
	in, err := r.AmountIn(assetIn, amountOut)
	if err != nil {
		return nil, err
	}
	if maxIn != nil && in.Cmp(maxIn) > 0 {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.settle(from, to, assetIn, in, amountOut); err != nil {
		return nil, err
	}
	return in, nil
}

func (r *Router) settle(from, to common.Address, assetIn string, in, out *big.Int) error {
	if err := r.ledger.Transfer(from, r.pair.address, assetIn, in); err != nil {
		return err
	}
	if assetIn == r.pair.base {
		return r.pair.Swap(nil, out, to)
	}
	return r.pair.Swap(out, nil, to)
}

// Counterpart returns the asset received when selling assetIn.
func (r *Router) Counterpart(assetIn string) string {
	if assetIn == r.pair.base {
		return r.pair.paired
	}
	return r.pair.base
}

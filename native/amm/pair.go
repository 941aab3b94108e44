package amm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

var pairPrefix = []byte("amm/pair/")

func pairKey(addr common.Address) []byte {
	buf := make([]byte, len(pairPrefix)+common.AddressLength)
	copy(buf, pairPrefix)
	copy(buf[len(pairPrefix):], addr.Bytes())
	return buf
}

type pairReserves struct {
	Base   *big.Int
	Paired *big.Int
}

// Pair is a constant-product pool between the base asset and a paired asset.
// Like the on-chain pair it settles against its own token balances: callers
// transfer input first, then invoke Mint, Burn or Swap.
type Pair struct {
	ledger  nativecommon.Ledger
	address common.Address
	base    string
	paired  string
	lpAsset string
	fee     Fee
}

// NewPair binds a pair at address to the ledger.
func NewPair(ledger nativecommon.Ledger, address common.Address, base, paired, lpAsset string, fee Fee) (*Pair, error) {
	if ledger == nil {
		return nil, fmt.Errorf("amm: ledger required")
	}
	if base == "" || paired == "" || lpAsset == "" || base == paired {
		return nil, fmt.Errorf("amm: invalid pair assets %q/%q", base, paired)
	}
	if !fee.Valid() {
		return nil, fmt.Errorf("amm: invalid fee %d/%d", fee.Numerator, fee.Denominator)
	}
	return &Pair{ledger: ledger, address: address, base: base, paired: paired, lpAsset: lpAsset, fee: fee}, nil
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) BaseAsset() string { return p.base }
func (p *Pair) PairedAsset() string { return p.paired }
func (p *Pair) LPAsset() string { return p.lpAsset }
func (p *Pair) Fee() Fee { return p.fee }

// Reserves returns the last synced (base, paired) reserves.
func (p *Pair) Reserves() (*big.Int, *big.Int, error) {
	var stored pairReserves
	ok, err := p.ledger.KVGet(pairKey(p.address), &stored)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return big.NewInt(0), big.NewInt(0), nil
	}
	return nativecommon.Clone(stored.Base), nativecommon.Clone(stored.Paired), nil
}

// TotalSupply returns the outstanding LP supply.
func (p *Pair) TotalSupply() (*big.Int, error) {
	return p.ledger.TotalSupply(p.lpAsset)
}

func (p *Pair) balances() (*big.Int, *big.Int, error) {
	base, err := p.ledger.Balance(p.address, p.base)
	if err != nil {
		return nil, nil, err
	}
	paired, err := p.ledger.Balance(p.address, p.paired)
	if err != nil {
		return nil, nil, err
	}
	return base, paired, nil
}

func (p *Pair) update(base, paired *big.Int) error {
	return p.ledger.KVPut(pairKey(p.address), pairReserves{Base: base, Paired: paired})
}

// Sync forces reserves to match balances.
func (p *Pair) Sync() error {
	base, paired, err := p.balances()
	if err != nil {
		return err
	}
	return p.update(base, paired)
}

// Mint issues LP tokens to `to` for whatever was deposited since the last sync.
func (p *Pair) Mint(to common.Address) (*big.Int, error) {
	reserveBase, reservePaired, err := p.Reserves()
	if err != nil {
		return nil, err
	}
	balBase, balPaired, err := p.balances()
	if err != nil {
		return nil, err
	}
	amountBase, err := nativecommon.Sub(balBase, reserveBase)
	if err != nil {
		return nil, err
	}
	amountPaired, err := nativecommon.Sub(balPaired, reservePaired)
	if err != nil {
		return nil, err
	}
	supply, err := p.TotalSupply()
	if err != nil {
		return nil, err
	}

	var liquidity *big.Int
	if supply.Sign() == 0 {
		product, err := nativecommon.Mul(amountBase, amountPaired)
		if err != nil {
			return nil, err
		}
		root, err := nativecommon.Sqrt(product)
		if err != nil {
			return nil, err
		}
		if root.Cmp(MinimumLiquidity) <= 0 {
			return nil, ErrInsufficientLiquidityMinted
		}
		liquidity = root.Sub(root, MinimumLiquidity)
		if err := p.ledger.Mint(common.Address{}, p.lpAsset, MinimumLiquidity); err != nil {
			return nil, err
		}
	} else {
		byBase, err := nativecommon.MulDiv(amountBase, supply, reserveBase)
		if err != nil {
			return nil, err
		}
		byPaired, err := nativecommon.MulDiv(amountPaired, supply, reservePaired)
		if err != nil {
			return nil, err
		}
		liquidity = nativecommon.Min(byBase, byPaired)
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrInsufficientLiquidityMinted
	}
	if err := p.ledger.Mint(to, p.lpAsset, liquidity); err != nil {
		return nil, err
	}
	if err := p.update(balBase, balPaired); err != nil {
		return nil, err
	}
	return liquidity, nil
}

// Burn redeems every LP token held by the pair and sends the underlying to `to`.
func (p *Pair) Burn(to common.Address) (*big.Int, *big.Int, error) {
	balBase, balPaired, err := p.balances()
	if err != nil {
		return nil, nil, err
	}
	liquidity, err := p.ledger.Balance(p.address, p.lpAsset)
	if err != nil {
		return nil, nil, err
	}
	supply, err := p.TotalSupply()
	if err != nil {
		return nil, nil, err
	}
	if supply.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}
	amountBase, err := nativecommon.MulDiv(liquidity, balBase, supply)
	if err != nil {
		return nil, nil, err
	}
	amountPaired, err := nativecommon.MulDiv(liquidity, balPaired, supply)
	if err != nil {
		return nil, nil, err
	}
	if amountBase.Sign() <= 0 || amountPaired.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}
	if err := p.ledger.Burn(p.address, p.lpAsset, liquidity); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(p.address, to, p.base, amountBase); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(p.address, to, p.paired, amountPaired); err != nil {
		return nil, nil, err
	}
	if err := p.Sync(); err != nil {
		return nil, nil, err
	}
	return amountBase, amountPaired, nil
}

// Swap sends the requested outputs to `to` and checks the fee-adjusted
// constant product against the inputs already transferred in.
func (p *Pair) Swap(baseOut, pairedOut *big.Int, to common.Address) error {
	baseOut = nativecommon.Clone(baseOut)
	pairedOut = nativecommon.Clone(pairedOut)
	if baseOut.Sign() == 0 && pairedOut.Sign() == 0 {
		return ErrInsufficientOutputAmount
	}
	reserveBase, reservePaired, err := p.Reserves()
	if err != nil {
		return err
	}
	if baseOut.Cmp(reserveBase) >= 0 || pairedOut.Cmp(reservePaired) >= 0 {
		return ErrInsufficientLiquidity
	}
	if err := p.ledger.Transfer(p.address, to, p.base, baseOut); err != nil {
		return err
	}
	if err := p.ledger.Transfer(p.address, to, p.paired, pairedOut); err != nil {
		return err
	}
	balBase, balPaired, err := p.balances()
	if err != nil {
		return err
	}

	baseIn := inflow(balBase, reserveBase, baseOut)
	pairedIn := inflow(balPaired, reservePaired, pairedOut)
	if baseIn.Sign() == 0 && pairedIn.Sign() == 0 {
		return ErrInsufficientInputAmount
	}
	adjBase, err := p.adjusted(balBase, baseIn)
	if err != nil {
		return err
	}
	adjPaired, err := p.adjusted(balPaired, pairedIn)
	if err != nil {
		return err
	}
	after := new(big.Int).Mul(adjBase, adjPaired)
	den := p.fee.den()
	before := new(big.Int).Mul(reserveBase, reservePaired)
	before.Mul(before, den).Mul(before, den)
	if after.Cmp(before) < 0 {
		return ErrConstantProduct
	}
	return p.update(balBase, balPaired)
}

// inflow returns balance - (reserve - out) when positive.
func inflow(balance, reserve, out *big.Int) *big.Int {
	floor := new(big.Int).Sub(reserve, out)
	if balance.Cmp(floor) > 0 {
		return floor.Sub(balance, floor)
	}
	return big.NewInt(0)
}

func (p *Pair) adjusted(balance, in *big.Int) (*big.Int, error) {
	scaled, err := nativecommon.Mul(balance, p.fee.den())
	if err != nil {
		return nil, err
	}
	cut := new(big.Int).SetUint64(p.fee.Denominator - p.fee.Numerator)
	charged, err := nativecommon.Mul(in, cut)
	if err != nil {
		return nil, err
	}
	return nativecommon.Sub(scaled, charged)
}

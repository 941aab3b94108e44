package strategy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// AddBaseOnly converts the base asset at its address into LP: it sells the
// optimal share for the paired asset, adds both sides and hands every LP token
// it holds to the caller.
type AddBaseOnly struct {
	core
}

func NewAddBaseOnly(ledger nativecommon.Ledger, address, owner common.Address) (*AddBaseOnly, error) {
	c, err := newCore(ledger, address, owner)
	if err != nil {
		return nil, err
	}
	return &AddBaseOnly{core: c}, nil
}

func (s *AddBaseOnly) ID() ID { return IDAddBaseOnly }

func (s *AddBaseOnly) Execute(call Call) error {
	if err := checkCall(call, IDAddBaseOnly); err != nil {
		return err
	}
	params := call.Params.(AddBaseOnlyParams)
	pool := call.Pool
	baseAsset, pairedAsset := pool.BaseAsset(), pool.PairedAsset()

	baseBal, err := s.balance(baseAsset)
	if err != nil {
		return err
	}
	reserveBase, _, err := pool.Reserves()
	if err != nil {
		return err
	}
	swapIn, err := OptimalDeposit(baseBal, reserveBase, pool.Fee())
	if err != nil {
		return err
	}
	if swapIn.Sign() > 0 {
		if _, err := pool.SwapExactIn(s.address, s.address, baseAsset, swapIn, nil); err != nil {
			return err
		}
	}
	if err := s.addAll(call, params.MinLP); err != nil {
		return err
	}
	_, err = s.sweep(pairedAsset, call.User)
	return err
}

// addAll adds the strategy's whole base and paired balances, checks the newly
// minted LP against minLP and settles LP to the caller and base dust to the
// user.
func (s *core) addAll(call Call, minLP *big.Int) error {
	pool := call.Pool
	baseBal, err := s.balance(pool.BaseAsset())
	if err != nil {
		return err
	}
	pairedBal, err := s.balance(pool.PairedAsset())
	if err != nil {
		return err
	}
	_, _, minted, err := pool.AddLiquidity(s.address, s.address, baseBal, pairedBal, nil, nil)
	if err != nil {
		return err
	}
	if minted.Cmp(nativecommon.Clone(minLP)) < 0 {
		return ErrInsufficientLP
	}
	if _, err := s.sweep(pool.LPAsset(), call.Caller); err != nil {
		return err
	}
	_, err = s.sweep(pool.BaseAsset(), call.User)
	return err
}

// AddTwoSidesOptimal adds the vault's base asset together with paired asset
// pulled from the user, swapping only the excess side so the deposit lands at
// the pool ratio. It serves a single vault.
type AddTwoSidesOptimal struct {
	core
	goblin common.Address
}

func NewAddTwoSidesOptimal(ledger nativecommon.Ledger, address, owner, goblin common.Address) (*AddTwoSidesOptimal, error) {
	c, err := newCore(ledger, address, owner)
	if err != nil {
		return nil, err
	}
	return &AddTwoSidesOptimal{core: c, goblin: goblin}, nil
}

func (s *AddTwoSidesOptimal) ID() ID { return IDAddTwoSidesOptimal }

// Goblin returns the only vault allowed to execute the strategy.
func (s *AddTwoSidesOptimal) Goblin() common.Address { return s.goblin }

func (s *AddTwoSidesOptimal) Execute(call Call) error {
	if call.Caller != s.goblin {
		return ErrNotGoblin
	}
	if err := checkCall(call, IDAddTwoSidesOptimal); err != nil {
		return err
	}
	params := call.Params.(AddTwoSidesParams)
	pool := call.Pool
	baseAsset, pairedAsset := pool.BaseAsset(), pool.PairedAsset()

	if amount := nativecommon.Clone(params.PairedAmount); amount.Sign() > 0 {
		if err := s.ledger.Transfer(call.User, s.address, pairedAsset, amount); err != nil {
			return err
		}
	}
	baseBal, err := s.balance(baseAsset)
	if err != nil {
		return err
	}
	pairedBal, err := s.balance(pairedAsset)
	if err != nil {
		return err
	}
	reserveBase, reservePaired, err := pool.Reserves()
	if err != nil {
		return err
	}
	swapIn, reversed, err := OptimalDepositTwoSided(baseBal, pairedBal, reserveBase, reservePaired, pool.Fee())
	if err != nil {
		return err
	}
	if swapIn.Sign() > 0 {
		assetIn := baseAsset
		if reversed {
			assetIn = pairedAsset
		}
		if _, err := pool.SwapExactIn(s.address, s.address, assetIn, swapIn, nil); err != nil {
			return err
		}
	}
	if err := s.addAll(call, params.MinLP); err != nil {
		return err
	}
	_, err = s.sweep(pairedAsset, call.User)
	return err
}

package strategy

import (
	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// removeAll burns every LP token at the strategy's address.
func (s *core) removeAll(pool AmmAdapter) error {
	lp, err := s.balance(pool.LPAsset())
	if err != nil {
		return err
	}
	if lp.Sign() == 0 {
		return nil
	}
	_, _, err = pool.RemoveLiquidity(s.address, s.address, lp, nil, nil)
	return err
}

// Liquidate unwinds the LP at its address and sells all paired asset, sending
// the resulting base asset to the caller.
type Liquidate struct {
	core
}

func NewLiquidate(ledger nativecommon.Ledger, address, owner common.Address) (*Liquidate, error) {
	c, err := newCore(ledger, address, owner)
	if err != nil {
		return nil, err
	}
	return &Liquidate{core: c}, nil
}

func (s *Liquidate) ID() ID { return IDLiquidate }

func (s *Liquidate) Execute(call Call) error {
	if err := checkCall(call, IDLiquidate); err != nil {
		return err
	}
	params := call.Params.(LiquidateParams)
	pool := call.Pool
	if err := s.removeAll(pool); err != nil {
		return err
	}
	paired, err := s.balance(pool.PairedAsset())
	if err != nil {
		return err
	}
	if paired.Sign() > 0 {
		if _, err := pool.SwapExactIn(s.address, s.address, pool.PairedAsset(), paired, nil); err != nil {
			return err
		}
	}
	base, err := s.balance(pool.BaseAsset())
	if err != nil {
		return err
	}
	if base.Cmp(nativecommon.Clone(params.MinBase)) < 0 {
		return ErrInsufficientBase
	}
	_, err = s.sweep(pool.BaseAsset(), call.Caller)
	return err
}

// WithdrawMinimizeTrading unwinds the LP at its address, sells only as much
// paired asset as the debt requires, sends the base asset to the caller and
// the remaining paired asset to the user.
type WithdrawMinimizeTrading struct {
	core
}

func NewWithdrawMinimizeTrading(ledger nativecommon.Ledger, address, owner common.Address) (*WithdrawMinimizeTrading, error) {
	c, err := newCore(ledger, address, owner)
	if err != nil {
		return nil, err
	}
	return &WithdrawMinimizeTrading{core: c}, nil
}

func (s *WithdrawMinimizeTrading) ID() ID { return IDWithdrawMinimizeTrading }

func (s *WithdrawMinimizeTrading) Execute(call Call) error {
	if err := checkCall(call, IDWithdrawMinimizeTrading); err != nil {
		return err
	}
	params := call.Params.(WithdrawMinimizeParams)
	pool := call.Pool
	baseAsset, pairedAsset := pool.BaseAsset(), pool.PairedAsset()
	if err := s.removeAll(pool); err != nil {
		return err
	}
	base, err := s.balance(baseAsset)
	if err != nil {
		return err
	}
	paired, err := s.balance(pairedAsset)
	if err != nil {
		return err
	}
	debt := nativecommon.Clone(call.Debt)
	if debt.Cmp(base) > 0 {
		need, err := nativecommon.Sub(debt, base)
		if err != nil {
			return err
		}
		in, err := pool.AmountIn(pairedAsset, need)
		if err != nil || in.Cmp(paired) > 0 {
			return ErrInsufficientOutput
		}
		if _, err := pool.SwapExactOut(s.address, s.address, pairedAsset, need, paired); err != nil {
			return err
		}
	}
	if _, err := s.sweep(baseAsset, call.Caller); err != nil {
		return err
	}
	left, err := s.balance(pairedAsset)
	if err != nil {
		return err
	}
	if left.Cmp(nativecommon.Clone(params.MinPaired)) < 0 {
		return ErrInsufficientFarming
	}
	_, err = s.sweep(pairedAsset, call.User)
	return err
}

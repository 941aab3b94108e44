package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
)

// ReinvestBountyBps returns the share of harvested rewards paid to reinvest
// callers.
func (g *Goblin) ReinvestBountyBps() (uint64, error) {
	st, err := g.loadState()
	if err != nil {
		return 0, err
	}
	return st.ReinvestBountyBps, nil
}

func (g *Goblin) SetReinvestBountyBps(caller common.Address, bps uint64) error {
	if err := g.OnlyOwner(caller); err != nil {
		return err
	}
	if bps > nativecommon.BpsDenominator {
		return ErrBountyTooHigh
	}
	st, err := g.loadState()
	if err != nil {
		return err
	}
	st.ReinvestBountyBps = bps
	return g.storeState(st)
}

// StrategyOK reports whether id may be used in Work.
func (g *Goblin) StrategyOK(id strategy.ID) (bool, error) {
	st, err := g.loadState()
	if err != nil {
		return false, err
	}
	return st.approved(id), nil
}

// SetStrategyOK approves or revokes work strategies. Only strategies present
// in the goblin's registry can be approved.
func (g *Goblin) SetStrategyOK(caller common.Address, ids []strategy.ID, ok bool) error {
	if err := g.OnlyOwner(caller); err != nil {
		return err
	}
	st, err := g.loadState()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if ok {
			if _, err := g.strategies.Get(id); err != nil {
				return err
			}
		}
		st.setApproved(id, ok)
	}
	return g.storeState(st)
}

// CriticalStrategies returns the strategies used by reinvest and liquidation.
func (g *Goblin) CriticalStrategies() (strategy.ID, strategy.ID, error) {
	st, err := g.loadState()
	if err != nil {
		return 0, 0, err
	}
	return strategy.ID(st.AddStrategy), strategy.ID(st.LiquidateStrategy), nil
}

func (g *Goblin) SetCriticalStrategies(caller common.Address, add, liquidate strategy.ID) error {
	if err := g.OnlyOwner(caller); err != nil {
		return err
	}
	for _, id := range []strategy.ID{add, liquidate} {
		if _, err := g.strategies.Get(id); err != nil {
			return err
		}
	}
	st, err := g.loadState()
	if err != nil {
		return err
	}
	st.AddStrategy = uint8(add)
	st.LiquidateStrategy = uint8(liquidate)
	return g.storeState(st)
}

// Recover sends stray tokens held by the goblin to `to`.
func (g *Goblin) Recover(caller common.Address, asset string, to common.Address, amount *big.Int) error {
	if err := g.OnlyOwner(caller); err != nil {
		return err
	}
	return g.ledger.Transfer(g.cfg.Address, to, asset, nativecommon.Clone(amount))
}

package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
)

// Position is a leveraged farming position. Its vault binding never changes.
type Position struct {
	ID        uint64
	Owner     common.Address
	Vault     common.Address
	DebtShare *big.Int
}

// PoolState is the persisted accounting of the lending pool.
type PoolState struct {
	GlobalDebtShare *big.Int
	GlobalDebtValue *big.Int
	Reserve         *big.Int
	LastAccrual     uint64
	NextPositionID  uint64
}

func (s *PoolState) normalise() {
	if s.GlobalDebtShare == nil {
		s.GlobalDebtShare = big.NewInt(0)
	}
	if s.GlobalDebtValue == nil {
		s.GlobalDebtValue = big.NewInt(0)
	}
	if s.Reserve == nil {
		s.Reserve = big.NewInt(0)
	}
	if s.NextPositionID == 0 {
		s.NextPositionID = 1
	}
}

// PoolView is a read-only snapshot of the pool for queries.
type PoolView struct {
	BaseAsset       string
	ShareAsset      string
	Held            *big.Int
	TotalBaseAsset  *big.Int
	TotalShares     *big.Int
	GlobalDebtShare *big.Int
	GlobalDebtValue *big.Int
	Reserve         *big.Int
	LastAccrual     uint64
	NextPositionID  uint64
	Utilisation     *big.Rat
}

// PositionInfo pairs a position's collateral value with what it owes.
type PositionInfo struct {
	Health *big.Int
	Debt   *big.Int
}

// WorkRequest carries the arguments of one work call.
type WorkRequest struct {
	// PositionID 0 opens a new position.
	PositionID uint64
	Vault      common.Address
	Loan       *big.Int
	// Principal is the caller's own base asset sent along with the loan.
	Principal *big.Int
	// MaxReturn caps how much of the returned base asset repays debt. Nil
	// repays as much as possible.
	MaxReturn *big.Int
	// MinReturn is the least base asset the caller accepts back.
	MinReturn *big.Int
	Params    strategy.Params
}

// WorkResult reports the outcome of a work call.
type WorkResult struct {
	PositionID uint64
	Returned   *big.Int
	Repaid     *big.Int
	Payout     *big.Int
	Debt       *big.Int
}

// KillResult reports how liquidation proceeds were split.
type KillResult struct {
	Debt       *big.Int
	Released   *big.Int
	Bounty     *big.Int
	ReserveCut *big.Int
	Left       *big.Int
	BadDebt    *big.Int
}

package strategy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// ID names a strategy variant.
type ID uint8

const (
	IDAddBaseOnly ID = iota + 1
	IDAddTwoSidesOptimal
	IDLiquidate
	IDWithdrawMinimizeTrading
)

var idNames = map[ID]string{
	IDAddBaseOnly:             "add-base-only",
	IDAddTwoSidesOptimal:      "add-two-sides-optimal",
	IDLiquidate:               "liquidate",
	IDWithdrawMinimizeTrading: "withdraw-minimize-trading",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", uint8(id))
}

// ParseID resolves a strategy name as printed by ID.String.
func ParseID(name string) (ID, error) {
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("strategy: unknown strategy %q", name)
}

// Params carries the typed arguments of one strategy variant.
type Params interface {
	StrategyID() ID
}

// AddBaseOnlyParams fails the call when fewer than MinLP tokens are minted.
type AddBaseOnlyParams struct {
	MinLP *big.Int
}

// AddTwoSidesParams pulls PairedAmount from the user in addition to the base
// asset handed over by the vault.
type AddTwoSidesParams struct {
	PairedAmount *big.Int
	MinLP        *big.Int
}

// LiquidateParams fails the call when less than MinBase comes back.
type LiquidateParams struct {
	MinBase *big.Int
}

// WithdrawMinimizeParams fails the call when less than MinPaired is left for
// the user.
type WithdrawMinimizeParams struct {
	MinPaired *big.Int
}

func (AddBaseOnlyParams) StrategyID() ID { return IDAddBaseOnly }
func (AddTwoSidesParams) StrategyID() ID { return IDAddTwoSidesOptimal }
func (LiquidateParams) StrategyID() ID { return IDLiquidate }
func (WithdrawMinimizeParams) StrategyID() ID { return IDWithdrawMinimizeTrading }

// AmmAdapter is the AMM capability strategies and vaults trade through.
// amm.Router implements it.
type AmmAdapter interface {
	Address() common.Address
	BaseAsset() string
	PairedAsset() string
	LPAsset() string
	Fee() amm.Fee
	Reserves() (*big.Int, *big.Int, error)
	LPTotalSupply() (*big.Int, error)
	AmountOut(assetIn string, amountIn *big.Int) (*big.Int, error)
	AmountIn(assetIn string, amountOut *big.Int) (*big.Int, error)
	AddLiquidity(from, to common.Address, baseDesired, pairedDesired, baseMin, pairedMin *big.Int) (*big.Int, *big.Int, *big.Int, error)
	RemoveLiquidity(from, to common.Address, liquidity, baseMin, pairedMin *big.Int) (*big.Int, *big.Int, error)
	SwapExactIn(from, to common.Address, assetIn string, amountIn, minOut *big.Int) (*big.Int, error)
	SwapExactOut(from, to common.Address, assetIn string, amountOut, maxIn *big.Int) (*big.Int, error)
}

var _ AmmAdapter = (*amm.Router)(nil)

// Call is one strategy invocation. The vault transfers the position's LP and
// base asset to the strategy's address before calling Execute; whatever the
// strategy produces goes back to Caller, and leftovers go to User.
type Call struct {
	Caller common.Address
	User   common.Address
	Debt   *big.Int
	Pool   AmmAdapter
	Params Params
}

// Strategy turns the assets parked at its address into the vault's desired
// end state.
type Strategy interface {
	ID() ID
	Address() common.Address
	Execute(call Call) error
}

// core is the state shared by every strategy: its ledger account and the
// owner allowed to recover stray funds.
type core struct {
	nativecommon.Ownable
	ledger  nativecommon.Ledger
	address common.Address
}

func newCore(ledger nativecommon.Ledger, address, owner common.Address) (core, error) {
	if ledger == nil {
		return core{}, fmt.Errorf("strategy: ledger required")
	}
	return core{Ownable: nativecommon.NewOwnable(owner), ledger: ledger, address: address}, nil
}

func (c *core) Address() common.Address { return c.address }

func (c *core) balance(asset string) (*big.Int, error) {
	return c.ledger.Balance(c.address, asset)
}

// Recover sends amount of asset stuck at the strategy to `to`. Owner only.
func (c *core) Recover(caller common.Address, asset string, to common.Address, amount *big.Int) error {
	if err := c.OnlyOwner(caller); err != nil {
		return err
	}
	return c.ledger.Transfer(c.address, to, asset, nativecommon.Clone(amount))
}

// sweep sends the strategy's whole balance of asset to `to`.
func (c *core) sweep(asset string, to common.Address) (*big.Int, error) {
	bal, err := c.balance(asset)
	if err != nil {
		return nil, err
	}
	if bal.Sign() == 0 {
		return bal, nil
	}
	if err := c.ledger.Transfer(c.address, to, asset, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func checkCall(call Call, want ID) error {
	if call.Pool == nil {
		return fmt.Errorf("strategy: pool required")
	}
	if call.Params == nil || call.Params.StrategyID() != want {
		return ErrBadParams
	}
	return nil
}

package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
)

const moduleName = "vault"

// StakingAdapter is the farm a goblin stakes its LP into. Both
// staking.RewardsPool and staking.ChefFarm implement it.
type StakingAdapter interface {
	StakedAsset() string
	RewardAsset() string
	Stake(holder common.Address, amount *big.Int) error
	Unstake(holder common.Address, amount *big.Int) error
	Staked(holder common.Address) (*big.Int, error)
	Harvestable(holder common.Address) (*big.Int, error)
	Claim(holder common.Address) (*big.Int, error)
}

// Config holds the deployment parameters of one goblin.
type Config struct {
	Address           common.Address
	Operator          common.Address
	Owner             common.Address
	ReinvestBountyBps uint64
	AddStrategy       strategy.ID
	LiquidateStrategy strategy.ID
}

type goblinState struct {
	Initialized       bool
	TotalShare        *big.Int
	ReinvestBountyBps uint64
	AddStrategy       uint8
	LiquidateStrategy uint8
	Approved          []uint8
}

func (s *goblinState) approved(id strategy.ID) bool {
	for _, v := range s.Approved {
		if strategy.ID(v) == id {
			return true
		}
	}
	return false
}

func (s *goblinState) setApproved(id strategy.ID, ok bool) {
	kept := s.Approved[:0]
	for _, v := range s.Approved {
		if strategy.ID(v) != id {
			kept = append(kept, v)
		}
	}
	if ok {
		kept = append(kept, uint8(id))
	}
	s.Approved = kept
}

// Goblin is the leverage vault for one farm: it holds LP on behalf of lending
// positions as shares over everything it has staked, runs strategies for the
// pool, prices positions against live reserves and compounds farm rewards.
type Goblin struct {
	nativecommon.Ownable

	ledger      nativecommon.Ledger
	cfg         Config
	pool        strategy.AmmAdapter
	farm        StakingAdapter
	strategies  *strategy.Registry
	rewardRoute strategy.AmmAdapter
	pauses      nativecommon.PauseView
	emitter     events.Emitter
	guard       nativecommon.ReentrancyGuard
}

// NewGoblin binds a goblin to its pool, farm and strategy set. The registry
// must hold the configured add and liquidate strategies.
func NewGoblin(ledger nativecommon.Ledger, cfg Config, pool strategy.AmmAdapter, farm StakingAdapter, strategies *strategy.Registry) (*Goblin, error) {
	if ledger == nil || pool == nil || farm == nil || strategies == nil {
		return nil, fmt.Errorf("vault: ledger, pool, farm and strategies required")
	}
	if farm.StakedAsset() != pool.LPAsset() {
		return nil, fmt.Errorf("vault: farm stakes %q but pool issues %q", farm.StakedAsset(), pool.LPAsset())
	}
	if cfg.ReinvestBountyBps > nativecommon.BpsDenominator {
		return nil, ErrBountyTooHigh
	}
	for _, id := range []strategy.ID{cfg.AddStrategy, cfg.LiquidateStrategy} {
		if _, err := strategies.Get(id); err != nil {
			return nil, fmt.Errorf("vault: strategy %s: %w", id, err)
		}
	}
	return &Goblin{
		Ownable:    nativecommon.NewOwnable(cfg.Owner),
		ledger:     ledger,
		cfg:        cfg,
		pool:       pool,
		farm:       farm,
		strategies: strategies,
		emitter:    events.NoopEmitter{},
	}, nil
}

func (g *Goblin) SetPauses(p nativecommon.PauseView) {
	if g == nil {
		return
	}
	g.pauses = p
}

func (g *Goblin) SetEmitter(emitter events.Emitter) {
	if g == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	g.emitter = emitter
}

// SetRewardRoute sets the pool reinvest sells farm rewards through when the
// reward asset is not the goblin's paired asset.
func (g *Goblin) SetRewardRoute(route strategy.AmmAdapter) {
	if g == nil {
		return
	}
	g.rewardRoute = route
}

func (g *Goblin) Address() common.Address { return g.cfg.Address }
func (g *Goblin) Operator() common.Address { return g.cfg.Operator }
func (g *Goblin) Pool() strategy.AmmAdapter { return g.pool }
func (g *Goblin) Farm() StakingAdapter { return g.farm }
func (g *Goblin) BaseAsset() string { return g.pool.BaseAsset() }

func (g *Goblin) loadState() (*goblinState, error) {
	st := &goblinState{}
	ok, err := g.ledger.KVGet(goblinKey(g.cfg.Address), st)
	if err != nil {
		return nil, err
	}
	if !ok || !st.Initialized {
		st = &goblinState{
			Initialized:       true,
			ReinvestBountyBps: g.cfg.ReinvestBountyBps,
			AddStrategy:       uint8(g.cfg.AddStrategy),
			LiquidateStrategy: uint8(g.cfg.LiquidateStrategy),
		}
		st.setApproved(g.cfg.AddStrategy, true)
		st.setApproved(g.cfg.LiquidateStrategy, true)
	}
	st.TotalShare = nativecommon.Clone(st.TotalShare)
	return st, nil
}

func (g *Goblin) storeState(st *goblinState) error {
	return g.ledger.KVPut(goblinKey(g.cfg.Address), st)
}

// Shares returns the goblin shares owned by a position.
func (g *Goblin) Shares(positionID uint64) (*big.Int, error) {
	var share *big.Int
	ok, err := g.ledger.KVGet(shareKey(g.cfg.Address, positionID), &share)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return nativecommon.Clone(share), nil
}

func (g *Goblin) putShares(positionID uint64, share *big.Int) error {
	if share.Sign() == 0 {
		return g.ledger.KVDelete(shareKey(g.cfg.Address, positionID))
	}
	return g.ledger.KVPut(shareKey(g.cfg.Address, positionID), share)
}

// TotalShare returns the outstanding goblin shares.
func (g *Goblin) TotalShare() (*big.Int, error) {
	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	return st.TotalShare, nil
}

// TotalStaked returns the LP the goblin holds in its farm.
func (g *Goblin) TotalStaked() (*big.Int, error) {
	return g.farm.Staked(g.cfg.Address)
}

func (g *Goblin) balanceToShare(st *goblinState, balance *big.Int) (*big.Int, error) {
	if st.TotalShare.Sign() == 0 {
		return nativecommon.Clone(balance), nil
	}
	staked, err := g.TotalStaked()
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(balance, st.TotalShare, staked)
}

func (g *Goblin) shareToBalance(st *goblinState, share *big.Int) (*big.Int, error) {
	if st.TotalShare.Sign() == 0 {
		return nativecommon.Clone(share), nil
	}
	staked, err := g.TotalStaked()
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(share, staked, st.TotalShare)
}

// ShareToBalance converts goblin shares to staked LP.
func (g *Goblin) ShareToBalance(share *big.Int) (*big.Int, error) {
	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	return g.shareToBalance(st, share)
}

// addShare stakes every LP token the goblin holds and credits the position.
func (g *Goblin) addShare(st *goblinState, positionID uint64) error {
	lp, err := g.ledger.Balance(g.cfg.Address, g.pool.LPAsset())
	if err != nil {
		return err
	}
	if lp.Sign() == 0 {
		return nil
	}
	share, err := g.balanceToShare(st, lp)
	if err != nil {
		return err
	}
	current, err := g.Shares(positionID)
	if err != nil {
		return err
	}
	if current, err = nativecommon.Add(current, share); err != nil {
		return err
	}
	if st.TotalShare, err = nativecommon.Add(st.TotalShare, share); err != nil {
		return err
	}
	if err := g.putShares(positionID, current); err != nil {
		return err
	}
	if err := g.storeState(st); err != nil {
		return err
	}
	return g.farm.Stake(g.cfg.Address, lp)
}

// removeShare unstakes the position's whole LP back to the goblin.
func (g *Goblin) removeShare(st *goblinState, positionID uint64) error {
	share, err := g.Shares(positionID)
	if err != nil {
		return err
	}
	if share.Sign() == 0 {
		return nil
	}
	lp, err := g.shareToBalance(st, share)
	if err != nil {
		return err
	}
	if st.TotalShare, err = nativecommon.Sub(st.TotalShare, share); err != nil {
		return err
	}
	if err := g.putShares(positionID, big.NewInt(0)); err != nil {
		return err
	}
	if err := g.storeState(st); err != nil {
		return err
	}
	if lp.Sign() == 0 {
		return nil
	}
	return g.farm.Unstake(g.cfg.Address, lp)
}

func (g *Goblin) onlyOperator(caller common.Address) error {
	if caller != g.cfg.Operator {
		return ErrNotOperator
	}
	return nil
}

// handOver moves the goblin's whole balance of asset to the strategy.
func (g *Goblin) handOver(asset string, to common.Address) error {
	bal, err := g.ledger.Balance(g.cfg.Address, asset)
	if err != nil {
		return err
	}
	return g.ledger.Transfer(g.cfg.Address, to, asset, bal)
}

// returnBase sends every unit of base asset the goblin holds to the operator.
func (g *Goblin) returnBase() (*big.Int, error) {
	bal, err := g.ledger.Balance(g.cfg.Address, g.pool.BaseAsset())
	if err != nil {
		return nil, err
	}
	if err := g.ledger.Transfer(g.cfg.Address, g.cfg.Operator, g.pool.BaseAsset(), bal); err != nil {
		return nil, err
	}
	return bal, nil
}

// Work runs an approved strategy over the position's LP plus whatever base
// asset the operator sent in, restakes the resulting LP and returns all base
// asset to the operator. The returned amount is what went back.
func (g *Goblin) Work(caller common.Address, positionID uint64, user common.Address, debt *big.Int, params strategy.Params) (*big.Int, error) {
	if err := nativecommon.Guard(g.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := g.onlyOperator(caller); err != nil {
		return nil, err
	}
	release, err := g.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if params == nil {
		return nil, strategy.ErrBadParams
	}

	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	if !st.approved(params.StrategyID()) {
		return nil, ErrUnapprovedStrategy
	}
	strat, err := g.strategies.Get(params.StrategyID())
	if err != nil {
		return nil, err
	}
	if err := g.removeShare(st, positionID); err != nil {
		return nil, err
	}
	if err := g.handOver(g.pool.LPAsset(), strat.Address()); err != nil {
		return nil, err
	}
	if err := g.handOver(g.pool.BaseAsset(), strat.Address()); err != nil {
		return nil, err
	}
	call := strategy.Call{
		Caller: g.cfg.Address,
		User:   user,
		Debt:   nativecommon.Clone(debt),
		Pool:   g.pool,
		Params: params,
	}
	if err := strat.Execute(call); err != nil {
		return nil, err
	}
	if err := g.addShare(st, positionID); err != nil {
		return nil, err
	}
	return g.returnBase()
}

// Liquidate unwinds the position entirely into base asset with the
// liquidate strategy and sends it to the operator.
func (g *Goblin) Liquidate(caller common.Address, positionID uint64) (*big.Int, error) {
	if err := g.onlyOperator(caller); err != nil {
		return nil, err
	}
	release, err := g.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	strat, err := g.strategies.Get(strategy.ID(st.LiquidateStrategy))
	if err != nil {
		return nil, err
	}
	if err := g.removeShare(st, positionID); err != nil {
		return nil, err
	}
	if err := g.handOver(g.pool.LPAsset(), strat.Address()); err != nil {
		return nil, err
	}
	call := strategy.Call{
		Caller: g.cfg.Address,
		Debt:   big.NewInt(0),
		Pool:   g.pool,
		Params: strategy.LiquidateParams{MinBase: big.NewInt(0)},
	}
	if err := strat.Execute(call); err != nil {
		return nil, err
	}
	return g.returnBase()
}

// Health returns the base-asset value of the position's LP: its base share of
// the reserves plus the proceeds of selling its paired share into the rest of
// the pool.
func (g *Goblin) Health(positionID uint64) (*big.Int, error) {
	share, err := g.Shares(positionID)
	if err != nil {
		return nil, err
	}
	if share.Sign() == 0 {
		return big.NewInt(0), nil
	}
	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	lp, err := g.shareToBalance(st, share)
	if err != nil {
		return nil, err
	}
	reserveBase, reservePaired, err := g.pool.Reserves()
	if err != nil {
		return nil, err
	}
	supply, err := g.pool.LPTotalSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	userBase, err := nativecommon.MulDiv(lp, reserveBase, supply)
	if err != nil {
		return nil, err
	}
	userPaired, err := nativecommon.MulDiv(lp, reservePaired, supply)
	if err != nil {
		return nil, err
	}
	if userPaired.Sign() == 0 {
		return userBase, nil
	}
	restBase, err := nativecommon.Sub(reserveBase, userBase)
	if err != nil {
		return nil, err
	}
	restPaired, err := nativecommon.Sub(reservePaired, userPaired)
	if err != nil {
		return nil, err
	}
	sold, err := amm.GetAmountOut(userPaired, restPaired, restBase, g.pool.Fee())
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(userBase, sold)
}

// PendingReward returns the farm reward the goblin could claim now.
func (g *Goblin) PendingReward() (*big.Int, error) {
	return g.farm.Harvestable(g.cfg.Address)
}

// Reinvest claims farm rewards, pays the caller its bounty in the reward
// asset, sells the rest for base asset and restakes the resulting LP without
// minting shares, raising every position's LP. It returns the bounty.
func (g *Goblin) Reinvest(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(g.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := g.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := g.loadState()
	if err != nil {
		return nil, err
	}
	rewardAsset := g.farm.RewardAsset()
	if _, err := g.farm.Claim(g.cfg.Address); err != nil {
		return nil, err
	}
	reward, err := g.ledger.Balance(g.cfg.Address, rewardAsset)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 {
		return big.NewInt(0), nil
	}
	bounty, err := nativecommon.Bps(reward, st.ReinvestBountyBps)
	if err != nil {
		return nil, err
	}
	if err := g.ledger.Transfer(g.cfg.Address, caller, rewardAsset, bounty); err != nil {
		return nil, err
	}
	rest := new(big.Int).Sub(reward, bounty)
	if rewardAsset != g.pool.BaseAsset() && rest.Sign() > 0 {
		route, err := g.routeFor(rewardAsset)
		if err != nil {
			return nil, err
		}
		if _, err := route.SwapExactIn(g.cfg.Address, g.cfg.Address, rewardAsset, rest, nil); err != nil {
			return nil, err
		}
	}

	lpAdded := big.NewInt(0)
	base, err := g.ledger.Balance(g.cfg.Address, g.pool.BaseAsset())
	if err != nil {
		return nil, err
	}
	if base.Sign() > 0 {
		strat, err := g.strategies.Get(strategy.ID(st.AddStrategy))
		if err != nil {
			return nil, err
		}
		if err := g.handOver(g.pool.BaseAsset(), strat.Address()); err != nil {
			return nil, err
		}
		call := strategy.Call{
			Caller: g.cfg.Address,
			User:   caller,
			Debt:   big.NewInt(0),
			Pool:   g.pool,
			Params: strategy.AddBaseOnlyParams{MinLP: big.NewInt(0)},
		}
		if err := strat.Execute(call); err != nil {
			return nil, err
		}
		if lpAdded, err = g.ledger.Balance(g.cfg.Address, g.pool.LPAsset()); err != nil {
			return nil, err
		}
		if lpAdded.Sign() > 0 {
			if err := g.farm.Stake(g.cfg.Address, lpAdded); err != nil {
				return nil, err
			}
		}
	}
	g.emitter.Emit(events.VaultReinvested{
		Vault:   g.cfg.Address,
		Caller:  caller,
		Reward:  reward,
		Bounty:  bounty,
		LPAdded: lpAdded,
	})
	return bounty, nil
}

func (g *Goblin) routeFor(rewardAsset string) (strategy.AmmAdapter, error) {
	if g.rewardRoute != nil && g.rewardRoute.BaseAsset() == g.pool.BaseAsset() && g.rewardRoute.PairedAsset() == rewardAsset {
		return g.rewardRoute, nil
	}
	if rewardAsset == g.pool.PairedAsset() {
		return g.pool, nil
	}
	return nil, ErrNoRewardRoute
}

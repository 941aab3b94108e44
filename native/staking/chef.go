package staking

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

var accScale = big.NewInt(1e12)

type chefState struct {
	RewardPerSecond *big.Int
	TotalAllocPoint uint64
	PoolCount       uint64
}

type chefPool struct {
	LPAsset           string
	AllocPoint        uint64
	LastRewardTime    uint64
	AccRewardPerShare *big.Int
	TotalStaked       *big.Int
}

type chefUser struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

// Chef mints a reward asset at a fixed per-second rate and splits it across
// pools by allocation points.
type Chef struct {
	nativecommon.Ownable

	ledger      nativecommon.Ledger
	address     common.Address
	rewardAsset string
	nowFn       func() time.Time
}

// NewChef binds a chef at address.
func NewChef(ledger nativecommon.Ledger, address common.Address, rewardAsset string, owner common.Address) (*Chef, error) {
	if ledger == nil {
		return nil, fmt.Errorf("staking: ledger required")
	}
	if rewardAsset == "" {
		return nil, fmt.Errorf("staking: reward asset required")
	}
	return &Chef{
		Ownable:     nativecommon.NewOwnable(owner),
		ledger:      ledger,
		address:     address,
		rewardAsset: rewardAsset,
		nowFn:       time.Now,
	}, nil
}

// SetClock overrides the time source.
func (c *Chef) SetClock(nowFn func() time.Time) {
	if nowFn != nil {
		c.nowFn = nowFn
	}
}

func (c *Chef) Address() common.Address { return c.address }
func (c *Chef) RewardAsset() string { return c.rewardAsset }

func (c *Chef) now() uint64 { return uint64(c.nowFn().Unix()) }

func (c *Chef) loadState() (*chefState, error) {
	st := &chefState{}
	ok, err := c.ledger.KVGet(chefKey(c.address), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = &chefState{}
	}
	st.RewardPerSecond = nativecommon.Clone(st.RewardPerSecond)
	return st, nil
}

func (c *Chef) loadPool(pid uint64) (*chefPool, error) {
	pool := &chefPool{}
	ok, err := c.ledger.KVGet(chefPoolKey(c.address, pid), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPool
	}
	pool.AccRewardPerShare = nativecommon.Clone(pool.AccRewardPerShare)
	pool.TotalStaked = nativecommon.Clone(pool.TotalStaked)
	return pool, nil
}

func (c *Chef) loadUser(pid uint64, holder common.Address) (*chefUser, error) {
	user := &chefUser{}
	ok, err := c.ledger.KVGet(chefUserKey(c.address, pid, holder), user)
	if err != nil {
		return nil, err
	}
	if !ok {
		user = &chefUser{}
	}
	user.Amount = nativecommon.Clone(user.Amount)
	user.RewardDebt = nativecommon.Clone(user.RewardDebt)
	return user, nil
}

// SetRewardPerSecond changes the emission rate. Owner only.
func (c *Chef) SetRewardPerSecond(caller common.Address, rate *big.Int) error {
	if err := c.OnlyOwner(caller); err != nil {
		return err
	}
	st, err := c.loadState()
	if err != nil {
		return err
	}
	for pid := uint64(0); pid < st.PoolCount; pid++ {
		if err := c.updatePool(st, pid); err != nil {
			return err
		}
	}
	st.RewardPerSecond = nativecommon.Clone(rate)
	return c.ledger.KVPut(chefKey(c.address), st)
}

// AddPool registers lpAsset with allocPoint and returns its pool id. Owner only.
func (c *Chef) AddPool(caller common.Address, allocPoint uint64, lpAsset string) (uint64, error) {
	if err := c.OnlyOwner(caller); err != nil {
		return 0, err
	}
	if lpAsset == "" || lpAsset == c.rewardAsset {
		return 0, fmt.Errorf("staking: invalid lp asset %q", lpAsset)
	}
	st, err := c.loadState()
	if err != nil {
		return 0, err
	}
	for pid := uint64(0); pid < st.PoolCount; pid++ {
		if err := c.updatePool(st, pid); err != nil {
			return 0, err
		}
	}
	pid := st.PoolCount
	pool := &chefPool{
		LPAsset:           lpAsset,
		AllocPoint:        allocPoint,
		LastRewardTime:    c.now(),
		AccRewardPerShare: big.NewInt(0),
		TotalStaked:       big.NewInt(0),
	}
	if err := c.ledger.KVPut(chefPoolKey(c.address, pid), pool); err != nil {
		return 0, err
	}
	st.PoolCount++
	st.TotalAllocPoint += allocPoint
	if err := c.ledger.KVPut(chefKey(c.address), st); err != nil {
		return 0, err
	}
	return pid, nil
}

func (c *Chef) accrued(st *chefState, pool *chefPool) (*big.Int, error) {
	now := c.now()
	if now <= pool.LastRewardTime || pool.TotalStaked.Sign() == 0 || st.TotalAllocPoint == 0 {
		return big.NewInt(0), nil
	}
	elapsed := new(big.Int).SetUint64(now - pool.LastRewardTime)
	emitted, err := nativecommon.Mul(elapsed, st.RewardPerSecond)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(emitted, new(big.Int).SetUint64(pool.AllocPoint), new(big.Int).SetUint64(st.TotalAllocPoint))
}

func (c *Chef) updatePool(st *chefState, pid uint64) error {
	pool, err := c.loadPool(pid)
	if err != nil {
		return err
	}
	if _, err := c.advance(st, pid, pool); err != nil {
		return err
	}
	return nil
}

// advance mints the pool's emission since its last update and folds it into
// AccRewardPerShare.
func (c *Chef) advance(st *chefState, pid uint64, pool *chefPool) (*chefPool, error) {
	now := c.now()
	if now <= pool.LastRewardTime {
		return pool, nil
	}
	reward, err := c.accrued(st, pool)
	if err != nil {
		return nil, err
	}
	if reward.Sign() > 0 {
		if err := c.ledger.Mint(c.address, c.rewardAsset, reward); err != nil {
			return nil, err
		}
		delta, err := nativecommon.MulDiv(reward, accScale, pool.TotalStaked)
		if err != nil {
			return nil, err
		}
		if pool.AccRewardPerShare, err = nativecommon.Add(pool.AccRewardPerShare, delta); err != nil {
			return nil, err
		}
	}
	pool.LastRewardTime = now
	if err := c.ledger.KVPut(chefPoolKey(c.address, pid), pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func pendingOf(user *chefUser, acc *big.Int) (*big.Int, error) {
	gross, err := nativecommon.MulDiv(user.Amount, acc, accScale)
	if err != nil {
		return nil, err
	}
	return nativecommon.Sub(gross, user.RewardDebt)
}

// settle pays holder's pending reward, applies the stake change and resets the
// reward debt.
func (c *Chef) settle(pid uint64, holder common.Address, deposit, withdraw *big.Int) (*big.Int, error) {
	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	pool, err := c.loadPool(pid)
	if err != nil {
		return nil, err
	}
	user, err := c.loadUser(pid, holder)
	if err != nil {
		return nil, err
	}
	if user.Amount.Cmp(withdraw) < 0 {
		return nil, ErrWithdrawNotGood
	}
	if pool, err = c.advance(st, pid, pool); err != nil {
		return nil, err
	}
	pending, err := pendingOf(user, pool.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	if user.Amount, err = nativecommon.Add(user.Amount, deposit); err != nil {
		return nil, err
	}
	user.Amount.Sub(user.Amount, withdraw)
	if pool.TotalStaked, err = nativecommon.Add(pool.TotalStaked, deposit); err != nil {
		return nil, err
	}
	pool.TotalStaked.Sub(pool.TotalStaked, withdraw)
	if user.RewardDebt, err = nativecommon.MulDiv(user.Amount, pool.AccRewardPerShare, accScale); err != nil {
		return nil, err
	}
	if err := c.ledger.KVPut(chefPoolKey(c.address, pid), pool); err != nil {
		return nil, err
	}
	if err := c.ledger.KVPut(chefUserKey(c.address, pid, holder), user); err != nil {
		return nil, err
	}

	if pending.Sign() > 0 {
		if err := c.ledger.Transfer(c.address, holder, c.rewardAsset, pending); err != nil {
			return nil, err
		}
	}
	if err := c.ledger.Transfer(holder, c.address, pool.LPAsset, deposit); err != nil {
		return nil, err
	}
	if err := c.ledger.Transfer(c.address, holder, pool.LPAsset, withdraw); err != nil {
		return nil, err
	}
	return pending, nil
}

// Deposit stakes amount into pool pid, harvesting pending rewards first.
func (c *Chef) Deposit(pid uint64, holder common.Address, amount *big.Int) (*big.Int, error) {
	return c.settle(pid, holder, nativecommon.Clone(amount), big.NewInt(0))
}

// Withdraw unstakes amount from pool pid, harvesting pending rewards first.
// A zero amount only harvests.
func (c *Chef) Withdraw(pid uint64, holder common.Address, amount *big.Int) (*big.Int, error) {
	return c.settle(pid, holder, big.NewInt(0), nativecommon.Clone(amount))
}

// Pending returns holder's unharvested reward in pool pid.
func (c *Chef) Pending(pid uint64, holder common.Address) (*big.Int, error) {
	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	pool, err := c.loadPool(pid)
	if err != nil {
		return nil, err
	}
	user, err := c.loadUser(pid, holder)
	if err != nil {
		return nil, err
	}
	acc := pool.AccRewardPerShare
	reward, err := c.accrued(st, pool)
	if err != nil {
		return nil, err
	}
	if reward.Sign() > 0 {
		delta, err := nativecommon.MulDiv(reward, accScale, pool.TotalStaked)
		if err != nil {
			return nil, err
		}
		acc = new(big.Int).Add(acc, delta)
	}
	return pendingOf(user, acc)
}

// UserAmount returns holder's stake in pool pid.
func (c *Chef) UserAmount(pid uint64, holder common.Address) (*big.Int, error) {
	user, err := c.loadUser(pid, holder)
	if err != nil {
		return nil, err
	}
	return user.Amount, nil
}

// Farm returns the staking capability for one chef pool.
func (c *Chef) Farm(pid uint64) (*ChefFarm, error) {
	pool, err := c.loadPool(pid)
	if err != nil {
		return nil, err
	}
	return &ChefFarm{chef: c, pid: pid, lpAsset: pool.LPAsset}, nil
}

// Bind returns the staking capability for pool pid before it is registered.
// Calls fail with ErrUnknownPool until AddPool creates it.
func (c *Chef) Bind(pid uint64, lpAsset string) *ChefFarm {
	return &ChefFarm{chef: c, pid: pid, lpAsset: lpAsset}
}

// ChefFarm adapts one chef pool to the vault staking capability.
type ChefFarm struct {
	chef    *Chef
	pid     uint64
	lpAsset string
}

func (f *ChefFarm) PoolID() uint64 { return f.pid }
func (f *ChefFarm) StakedAsset() string { return f.lpAsset }
func (f *ChefFarm) RewardAsset() string { return f.chef.rewardAsset }

func (f *ChefFarm) Stake(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroStake
	}
	_, err := f.chef.Deposit(f.pid, holder, amount)
	return err
}

func (f *ChefFarm) Unstake(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroWithdraw
	}
	_, err := f.chef.Withdraw(f.pid, holder, amount)
	return err
}

func (f *ChefFarm) Staked(holder common.Address) (*big.Int, error) {
	return f.chef.UserAmount(f.pid, holder)
}

func (f *ChefFarm) Harvestable(holder common.Address) (*big.Int, error) {
	return f.chef.Pending(f.pid, holder)
}

func (f *ChefFarm) Claim(holder common.Address) (*big.Int, error) {
	return f.chef.Withdraw(f.pid, holder, big.NewInt(0))
}

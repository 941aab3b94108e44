package staking

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
)

// RewardsDuration is the length of one reward period.
const RewardsDuration = uint64(7 * 24 * 60 * 60)

var rewardScale = big.NewInt(1e18)

type rewardsState struct {
	RewardRate           *big.Int
	PeriodFinish         uint64
	LastUpdateTime       uint64
	RewardPerTokenStored *big.Int
	TotalSupply          *big.Int
}

type rewardsAccount struct {
	Balance            *big.Int
	RewardPerTokenPaid *big.Int
	Rewards            *big.Int
}

// RewardsPool streams a fixed reward budget to stakers of one LP asset over
// RewardsDuration, pro rata to stake and time.
type RewardsPool struct {
	ledger       nativecommon.Ledger
	address      common.Address
	stakedAsset  string
	rewardAsset  string
	distribution common.Address
	nowFn        func() time.Time
}

// NewRewardsPool binds a pool at address. distribution is the only account
// allowed to notify new rewards.
func NewRewardsPool(ledger nativecommon.Ledger, address common.Address, stakedAsset, rewardAsset string, distribution common.Address) (*RewardsPool, error) {
	if ledger == nil {
		return nil, fmt.Errorf("staking: ledger required")
	}
	if stakedAsset == "" || rewardAsset == "" || stakedAsset == rewardAsset {
		return nil, fmt.Errorf("staking: invalid assets %q/%q", stakedAsset, rewardAsset)
	}
	return &RewardsPool{
		ledger:       ledger,
		address:      address,
		stakedAsset:  stakedAsset,
		rewardAsset:  rewardAsset,
		distribution: distribution,
		nowFn:        time.Now,
	}, nil
}

// SetClock overrides the time source.
func (p *RewardsPool) SetClock(nowFn func() time.Time) {
	if nowFn != nil {
		p.nowFn = nowFn
	}
}

func (p *RewardsPool) Address() common.Address { return p.address }
func (p *RewardsPool) StakedAsset() string { return p.stakedAsset }
func (p *RewardsPool) RewardAsset() string { return p.rewardAsset }

func (p *RewardsPool) now() uint64 { return uint64(p.nowFn().Unix()) }

func (p *RewardsPool) loadState() (*rewardsState, error) {
	st := &rewardsState{}
	ok, err := p.ledger.KVGet(rewardsPoolKey(p.address), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = &rewardsState{}
	}
	st.RewardRate = nativecommon.Clone(st.RewardRate)
	st.RewardPerTokenStored = nativecommon.Clone(st.RewardPerTokenStored)
	st.TotalSupply = nativecommon.Clone(st.TotalSupply)
	return st, nil
}

func (p *RewardsPool) loadAccount(holder common.Address) (*rewardsAccount, error) {
	acct := &rewardsAccount{}
	ok, err := p.ledger.KVGet(rewardsAccountKey(p.address, holder), acct)
	if err != nil {
		return nil, err
	}
	if !ok {
		acct = &rewardsAccount{}
	}
	acct.Balance = nativecommon.Clone(acct.Balance)
	acct.RewardPerTokenPaid = nativecommon.Clone(acct.RewardPerTokenPaid)
	acct.Rewards = nativecommon.Clone(acct.Rewards)
	return acct, nil
}

func (p *RewardsPool) lastTimeRewardApplicable(st *rewardsState) uint64 {
	now := p.now()
	if now < st.PeriodFinish {
		return now
	}
	return st.PeriodFinish
}

func (p *RewardsPool) rewardPerToken(st *rewardsState) (*big.Int, error) {
	if st.TotalSupply.Sign() == 0 {
		return nativecommon.Clone(st.RewardPerTokenStored), nil
	}
	last := p.lastTimeRewardApplicable(st)
	if last <= st.LastUpdateTime {
		return nativecommon.Clone(st.RewardPerTokenStored), nil
	}
	elapsed := new(big.Int).SetUint64(last - st.LastUpdateTime)
	emitted, err := nativecommon.Mul(elapsed, st.RewardRate)
	if err != nil {
		return nil, err
	}
	delta, err := nativecommon.MulDiv(emitted, rewardScale, st.TotalSupply)
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(st.RewardPerTokenStored, delta)
}

func earned(acct *rewardsAccount, rpt *big.Int) (*big.Int, error) {
	diff, err := nativecommon.Sub(rpt, acct.RewardPerTokenPaid)
	if err != nil {
		return nil, err
	}
	accrued, err := nativecommon.MulDiv(acct.Balance, diff, rewardScale)
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(accrued, acct.Rewards)
}

// checkpoint folds emitted rewards into the global accumulator and, when
// holder is set, into the holder's pending rewards.
func (p *RewardsPool) checkpoint(st *rewardsState, holder *common.Address) (*rewardsAccount, error) {
	rpt, err := p.rewardPerToken(st)
	if err != nil {
		return nil, err
	}
	st.RewardPerTokenStored = rpt
	st.LastUpdateTime = p.lastTimeRewardApplicable(st)
	if holder == nil {
		return nil, nil
	}
	acct, err := p.loadAccount(*holder)
	if err != nil {
		return nil, err
	}
	if acct.Rewards, err = earned(acct, rpt); err != nil {
		return nil, err
	}
	acct.RewardPerTokenPaid = new(big.Int).Set(rpt)
	return acct, nil
}

func (p *RewardsPool) persist(st *rewardsState, holder common.Address, acct *rewardsAccount) error {
	if err := p.ledger.KVPut(rewardsPoolKey(p.address), st); err != nil {
		return err
	}
	if acct == nil {
		return nil
	}
	return p.ledger.KVPut(rewardsAccountKey(p.address, holder), acct)
}

// Stake pulls amount of the staked asset from holder.
func (p *RewardsPool) Stake(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroStake
	}
	st, err := p.loadState()
	if err != nil {
		return err
	}
	acct, err := p.checkpoint(st, &holder)
	if err != nil {
		return err
	}
	if st.TotalSupply, err = nativecommon.Add(st.TotalSupply, amount); err != nil {
		return err
	}
	if acct.Balance, err = nativecommon.Add(acct.Balance, amount); err != nil {
		return err
	}
	if err := p.persist(st, holder, acct); err != nil {
		return err
	}
	return p.ledger.Transfer(holder, p.address, p.stakedAsset, amount)
}

// Unstake returns amount of the staked asset to holder.
func (p *RewardsPool) Unstake(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroWithdraw
	}
	st, err := p.loadState()
	if err != nil {
		return err
	}
	acct, err := p.checkpoint(st, &holder)
	if err != nil {
		return err
	}
	if acct.Balance.Cmp(amount) < 0 {
		return ErrInsufficientStaked
	}
	acct.Balance.Sub(acct.Balance, amount)
	if st.TotalSupply, err = nativecommon.Sub(st.TotalSupply, amount); err != nil {
		return err
	}
	if err := p.persist(st, holder, acct); err != nil {
		return err
	}
	return p.ledger.Transfer(p.address, holder, p.stakedAsset, amount)
}

// Claim pays out every reward earned by holder and returns the amount.
func (p *RewardsPool) Claim(holder common.Address) (*big.Int, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	acct, err := p.checkpoint(st, &holder)
	if err != nil {
		return nil, err
	}
	reward := acct.Rewards
	acct.Rewards = big.NewInt(0)
	if err := p.persist(st, holder, acct); err != nil {
		return nil, err
	}
	if reward.Sign() > 0 {
		if err := p.ledger.Transfer(p.address, holder, p.rewardAsset, reward); err != nil {
			return nil, err
		}
	}
	return reward, nil
}

// Staked returns holder's staked balance.
func (p *RewardsPool) Staked(holder common.Address) (*big.Int, error) {
	acct, err := p.loadAccount(holder)
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// Harvestable returns the rewards holder could claim now.
func (p *RewardsPool) Harvestable(holder common.Address) (*big.Int, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	rpt, err := p.rewardPerToken(st)
	if err != nil {
		return nil, err
	}
	acct, err := p.loadAccount(holder)
	if err != nil {
		return nil, err
	}
	return earned(acct, rpt)
}

// TotalStaked returns the pool-wide staked balance.
func (p *RewardsPool) TotalStaked() (*big.Int, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	return st.TotalSupply, nil
}

// RewardRate returns the current per-second emission.
func (p *RewardsPool) RewardRate() (*big.Int, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	return st.RewardRate, nil
}

// NotifyRewardAmount starts (or extends) a reward period funded by reward
// units already transferred to the pool.
func (p *RewardsPool) NotifyRewardAmount(caller common.Address, reward *big.Int) error {
	if caller != p.distribution {
		return ErrNotDistribution
	}
	st, err := p.loadState()
	if err != nil {
		return err
	}
	if _, err := p.checkpoint(st, nil); err != nil {
		return err
	}
	now := p.now()
	duration := new(big.Int).SetUint64(RewardsDuration)
	total := nativecommon.Clone(reward)
	if now < st.PeriodFinish {
		remaining := new(big.Int).SetUint64(st.PeriodFinish - now)
		leftover, err := nativecommon.Mul(remaining, st.RewardRate)
		if err != nil {
			return err
		}
		if total, err = nativecommon.Add(total, leftover); err != nil {
			return err
		}
	}
	if st.RewardRate, err = nativecommon.Div(total, duration); err != nil {
		return err
	}
	balance, err := p.ledger.Balance(p.address, p.rewardAsset)
	if err != nil {
		return err
	}
	if st.RewardRate.Cmp(new(big.Int).Div(balance, duration)) > 0 {
		return ErrRewardTooHigh
	}
	st.LastUpdateTime = now
	st.PeriodFinish = now + RewardsDuration
	return p.ledger.KVPut(rewardsPoolKey(p.address), st)
}

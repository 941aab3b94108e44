package genesis

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/staking"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/vault"
)

// ErrAlreadyApplied is returned by Seed when the ledger already carries the
// genesis state.
var ErrAlreadyApplied = errors.New("genesis: already applied")

var appliedKey = []byte("genesis/applied")

// Deployment is the set of live components described by a GenesisSpec.
type Deployment struct {
	Owner       common.Address
	Bank        *lending.Bank
	Pairs       map[common.Address]*amm.Router
	RewardPools map[common.Address]*staking.RewardsPool
	Chefs       map[common.Address]*staking.Chef
	Goblins     map[common.Address]*vault.Goblin

	spec *GenesisSpec
}

// Build instantiates every component of spec over ledger. It writes nothing:
// components load their state lazily, so Build runs on every start while
// Seed runs once.
func Build(spec *GenesisSpec, ledger nativecommon.Ledger) (*Deployment, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger must not be nil")
	}
	d := &Deployment{
		Owner:       spec.owner,
		Pairs:       make(map[common.Address]*amm.Router, len(spec.Pairs)),
		RewardPools: make(map[common.Address]*staking.RewardsPool, len(spec.RewardPools)),
		Chefs:       make(map[common.Address]*staking.Chef, len(spec.Chefs)),
		Goblins:     make(map[common.Address]*vault.Goblin, len(spec.Vaults)),
		spec:        spec,
	}
	base := spec.Bank.BaseAsset

	for _, p := range spec.Pairs {
		pair, err := amm.NewPair(ledger, p.address, base, p.PairedAsset, p.LPAsset, p.fee)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.address.Hex(), err)
		}
		d.Pairs[p.address] = amm.NewRouter(pair)
	}
	for _, rp := range spec.RewardPools {
		pool, err := staking.NewRewardsPool(ledger, rp.address, rp.LPAsset, rp.RewardAsset, spec.owner)
		if err != nil {
			return nil, fmt.Errorf("reward pool %s: %w", rp.address.Hex(), err)
		}
		d.RewardPools[rp.address] = pool
	}
	for _, c := range spec.Chefs {
		chef, err := staking.NewChef(ledger, c.address, c.RewardAsset, spec.owner)
		if err != nil {
			return nil, fmt.Errorf("chef %s: %w", c.address.Hex(), err)
		}
		d.Chefs[c.address] = chef
	}

	bank, err := lending.NewBank(ledger, spec.Bank.address, base, spec.Bank.ShareAsset, spec.owner, spec.Bank.config)
	if err != nil {
		return nil, fmt.Errorf("bank: %w", err)
	}
	d.Bank = bank

	for _, v := range spec.Vaults {
		goblin, err := d.buildGoblin(ledger, v)
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", v.address.Hex(), err)
		}
		if err := bank.AttachVault(goblin); err != nil {
			return nil, fmt.Errorf("vault %s: %w", v.address.Hex(), err)
		}
		d.Goblins[v.address] = goblin
	}
	return d, nil
}

func (d *Deployment) buildGoblin(ledger nativecommon.Ledger, v VaultSpec) (*vault.Goblin, error) {
	strategies := make([]strategy.Strategy, 0, len(v.Strategies))
	for _, s := range v.Strategies {
		var (
			impl strategy.Strategy
			err  error
		)
		switch s.id {
		case strategy.IDAddBaseOnly:
			impl, err = strategy.NewAddBaseOnly(ledger, s.address, d.Owner)
		case strategy.IDAddTwoSidesOptimal:
			impl, err = strategy.NewAddTwoSidesOptimal(ledger, s.address, d.Owner, v.address)
		case strategy.IDLiquidate:
			impl, err = strategy.NewLiquidate(ledger, s.address, d.Owner)
		case strategy.IDWithdrawMinimizeTrading:
			impl, err = strategy.NewWithdrawMinimizeTrading(ledger, s.address, d.Owner)
		default:
			err = fmt.Errorf("unsupported strategy %s", s.id)
		}
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, impl)
	}
	registry, err := strategy.NewRegistry(strategies...)
	if err != nil {
		return nil, err
	}

	var farm vault.StakingAdapter
	if v.RewardPool != "" {
		farm = d.RewardPools[v.rewardPool]
	} else {
		farm = d.Chefs[v.chef].Bind(v.ChefPool, d.chefPoolAsset(v))
	}

	goblin, err := vault.NewGoblin(ledger, vault.Config{
		Address:           v.address,
		Operator:          d.spec.Bank.address,
		Owner:             d.Owner,
		ReinvestBountyBps: v.ReinvestBountyBps,
		AddStrategy:       v.addStrategy,
		LiquidateStrategy: v.liquidateStrategy,
	}, d.Pairs[v.pair], farm, registry)
	if err != nil {
		return nil, err
	}
	if v.rewardRoute != nil {
		goblin.SetRewardRoute(d.Pairs[*v.rewardRoute])
	}
	return goblin, nil
}

func (d *Deployment) chefPoolAsset(v VaultSpec) string {
	for _, c := range d.spec.Chefs {
		if c.address == v.chef {
			return c.Pools[v.ChefPool].LPAsset
		}
	}
	return ""
}

// Wire hands every component the shared clock, pause switch and event sink.
func (d *Deployment) Wire(nowFn func() time.Time, pauses nativecommon.PauseView, emitter events.Emitter) {
	if nowFn != nil {
		d.Bank.SetClock(nowFn)
		for _, pool := range d.RewardPools {
			pool.SetClock(nowFn)
		}
		for _, chef := range d.Chefs {
			chef.SetClock(nowFn)
		}
	}
	d.Bank.SetPauses(pauses)
	d.Bank.SetEmitter(emitter)
	for _, goblin := range d.Goblins {
		goblin.SetPauses(pauses)
		goblin.SetEmitter(emitter)
	}
}

// VaultAddresses lists the goblins in address order.
func (d *Deployment) VaultAddresses() []common.Address {
	out := make([]common.Address, 0, len(d.Goblins))
	for addr := range d.Goblins {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Applied reports whether Seed already ran against ledger.
func Applied(ledger nativecommon.Ledger) (bool, error) {
	return ledger.KVGet(appliedKey, nil)
}

// Seed writes the genesis state: balances, pool liquidity, farm funding,
// pool parameters and vault settings. It fails with ErrAlreadyApplied on a
// ledger that was seeded before. Callers run it inside a transaction so a
// failure leaves nothing behind.
func (d *Deployment) Seed(ledger nativecommon.Ledger) error {
	applied, err := Applied(ledger)
	if err != nil {
		return err
	}
	if applied {
		return ErrAlreadyApplied
	}
	spec := d.spec

	// 1) Balances (sorted)
	holders := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		holders = append(holders, addr)
	}
	sort.Strings(holders)
	for _, addrStr := range holders {
		addr, err := crypto.ParseAddress(addrStr)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", addrStr, err)
		}
		assets := make([]string, 0, len(spec.Alloc[addrStr]))
		for asset := range spec.Alloc[addrStr] {
			assets = append(assets, asset)
		}
		sort.Strings(assets)
		for _, asset := range assets {
			amount, err := parseAmountString(spec.Alloc[addrStr][asset])
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", addrStr, asset, err)
			}
			if err := ledger.Mint(addr, strings.TrimSpace(asset), amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", addrStr, asset, err)
			}
		}
	}

	// 2) Pair liquidity from the owner
	for _, p := range spec.Pairs {
		if p.seedBase.Sign() == 0 && p.seedPaired.Sign() == 0 {
			continue
		}
		if _, _, _, err := d.Pairs[p.address].AddLiquidity(d.Owner, d.Owner, p.seedBase, p.seedPaired, nil, nil); err != nil {
			return fmt.Errorf("pair %s liquidity: %w", p.address.Hex(), err)
		}
	}

	// 3) Farms
	for _, rp := range spec.RewardPools {
		if rp.reward.Sign() == 0 {
			continue
		}
		if err := ledger.Transfer(d.Owner, rp.address, rp.RewardAsset, rp.reward); err != nil {
			return fmt.Errorf("reward pool %s funding: %w", rp.address.Hex(), err)
		}
		if err := d.RewardPools[rp.address].NotifyRewardAmount(d.Owner, rp.reward); err != nil {
			return fmt.Errorf("reward pool %s: %w", rp.address.Hex(), err)
		}
	}
	for _, c := range spec.Chefs {
		chef := d.Chefs[c.address]
		for _, pool := range c.Pools {
			if _, err := chef.AddPool(d.Owner, pool.AllocPoint, pool.LPAsset); err != nil {
				return fmt.Errorf("chef %s: %w", c.address.Hex(), err)
			}
		}
		if err := chef.SetRewardPerSecond(d.Owner, c.rewardPerSecond); err != nil {
			return fmt.Errorf("chef %s: %w", c.address.Hex(), err)
		}
		if err := ledger.Transfer(d.Owner, c.address, c.RewardAsset, c.funding); err != nil {
			return fmt.Errorf("chef %s funding: %w", c.address.Hex(), err)
		}
	}

	// 4) Bank parameters and vault settings
	if err := d.Bank.SetConfig(d.Owner, spec.Bank.config); err != nil {
		return fmt.Errorf("bank: %w", err)
	}
	for _, v := range spec.Vaults {
		if err := d.Bank.SetVault(d.Owner, v.address, v.RiskConfig()); err != nil {
			return fmt.Errorf("vault %s: %w", v.address.Hex(), err)
		}
		var extra []strategy.ID
		for _, s := range v.Strategies {
			if s.id != v.addStrategy && s.id != v.liquidateStrategy {
				extra = append(extra, s.id)
			}
		}
		if len(extra) > 0 {
			if err := d.Goblins[v.address].SetStrategyOK(d.Owner, extra, true); err != nil {
				return fmt.Errorf("vault %s strategies: %w", v.address.Hex(), err)
			}
		}
	}

	return ledger.KVPut(appliedKey, big.NewInt(1))
}

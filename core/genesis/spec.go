package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
)

// GenesisSpec describes the deployment a node bootstraps on first start:
// initial balances, AMM pairs, farms, the lending pool and its vaults.
// Addresses may be 0x-hex or bech32, amounts are base-unit decimal strings.
type GenesisSpec struct {
	Owner       string                       `json:"owner"`
	Alloc       map[string]map[string]string `json:"alloc"` // addr -> asset -> amount
	Pairs       []PairSpec                   `json:"pairs"`
	RewardPools []RewardPoolSpec             `json:"rewardPools,omitempty"`
	Chefs       []ChefSpec                   `json:"chefs,omitempty"`
	Bank        BankSpec                     `json:"bank"`
	Vaults      []VaultSpec                  `json:"vaults"`

	owner common.Address
}

// PairSpec deploys a constant-product pair of the bank's base asset against
// PairedAsset. The owner seeds the initial liquidity.
type PairSpec struct {
	Address        string `json:"address"`
	PairedAsset    string `json:"pairedAsset"`
	LPAsset        string `json:"lpAsset"`
	FeeNumerator   uint64 `json:"feeNumerator,omitempty"`
	FeeDenominator uint64 `json:"feeDenominator,omitempty"`
	SeedBase       string `json:"seedBase"`
	SeedPaired     string `json:"seedPaired"`

	address    common.Address
	fee        amm.Fee
	seedBase   *big.Int
	seedPaired *big.Int
}

// RewardPoolSpec deploys a fixed-period rewards pool funded with Reward
// from the owner's balance.
type RewardPoolSpec struct {
	Address     string `json:"address"`
	LPAsset     string `json:"lpAsset"`
	RewardAsset string `json:"rewardAsset"`
	Reward      string `json:"reward"`

	address common.Address
	reward  *big.Int
}

type ChefSpec struct {
	Address         string         `json:"address"`
	RewardAsset     string         `json:"rewardAsset"`
	RewardPerSecond string         `json:"rewardPerSecond"`
	Funding         string         `json:"funding"`
	Pools           []ChefPoolSpec `json:"pools"`

	address         common.Address
	rewardPerSecond *big.Int
	funding         *big.Int
}

// ChefPoolSpec is registered in order, so its index is its pool id.
type ChefPoolSpec struct {
	LPAsset    string `json:"lpAsset"`
	AllocPoint uint64 `json:"allocPoint"`
}

type BankSpec struct {
	Address        string `json:"address"`
	BaseAsset      string `json:"baseAsset"`
	ShareAsset     string `json:"shareAsset"`
	MinDebtSize    string `json:"minDebtSize"`
	InterestModel  string `json:"interestModel,omitempty"`
	RatePerSecond  string `json:"ratePerSecond,omitempty"`
	ReservePoolBps uint64 `json:"reservePoolBps"`
	KillBountyBps  uint64 `json:"killBountyBps"`

	address common.Address
	config  lending.PoolConfig
}

// VaultSpec deploys a goblin farming Pair through either RewardPool or the
// ChefPool of Chef.
type VaultSpec struct {
	Address           string         `json:"address"`
	Pair              string         `json:"pair"`
	RewardPool        string         `json:"rewardPool,omitempty"`
	Chef              string         `json:"chef,omitempty"`
	ChefPool          uint64         `json:"chefPool,omitempty"`
	RewardRoute       string         `json:"rewardRoute,omitempty"`
	ReinvestBountyBps uint64         `json:"reinvestBountyBps"`
	AcceptsDebt       bool           `json:"acceptsDebt"`
	WorkFactorBps     uint64         `json:"workFactorBps"`
	KillFactorBps     uint64         `json:"killFactorBps"`
	AddStrategy       string         `json:"addStrategy,omitempty"`
	LiquidateStrategy string         `json:"liquidateStrategy,omitempty"`
	Strategies        []StrategySpec `json:"strategies"`

	address           common.Address
	pair              common.Address
	rewardPool        common.Address
	chef              common.Address
	rewardRoute       *common.Address
	addStrategy       strategy.ID
	liquidateStrategy strategy.ID
}

// StrategySpec deploys one strategy for a vault. Kind is a strategy name
// such as "add-base-only".
type StrategySpec struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`

	id      strategy.ID
	address common.Address
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) OwnerAddress() common.Address { return s.owner }

func (s *GenesisSpec) validate() error {
	var err error
	if s.owner, err = crypto.ParseAddress(s.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	for addr, balances := range s.Alloc {
		if _, err := crypto.ParseAddress(addr); err != nil {
			return fmt.Errorf("alloc[%q]: %w", addr, err)
		}
		for asset, amount := range balances {
			if strings.TrimSpace(asset) == "" {
				return fmt.Errorf("alloc[%q]: empty asset", addr)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", addr, asset, err)
			}
		}
	}

	seen := make(map[common.Address]string)
	claim := func(addr common.Address, what string) error {
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("%s: address %s already used by %s", what, addr.Hex(), prev)
		}
		seen[addr] = what
		return nil
	}

	if err := s.Bank.validate(); err != nil {
		return fmt.Errorf("bank: %w", err)
	}
	if err := claim(s.Bank.address, "bank"); err != nil {
		return err
	}

	pairs := make(map[common.Address]*PairSpec, len(s.Pairs))
	for i := range s.Pairs {
		p := &s.Pairs[i]
		if err := p.validate(s.Bank.BaseAsset); err != nil {
			return fmt.Errorf("pairs[%d]: %w", i, err)
		}
		if err := claim(p.address, fmt.Sprintf("pairs[%d]", i)); err != nil {
			return err
		}
		pairs[p.address] = p
	}

	rewardPools := make(map[common.Address]*RewardPoolSpec, len(s.RewardPools))
	for i := range s.RewardPools {
		rp := &s.RewardPools[i]
		if rp.address, err = crypto.ParseAddress(rp.Address); err != nil {
			return fmt.Errorf("rewardPools[%d]: %w", i, err)
		}
		if rp.LPAsset == "" || rp.RewardAsset == "" {
			return fmt.Errorf("rewardPools[%d]: lp and reward assets required", i)
		}
		if rp.reward, err = parseAmountString(rp.Reward); err != nil {
			return fmt.Errorf("rewardPools[%d].reward: %w", i, err)
		}
		if err := claim(rp.address, fmt.Sprintf("rewardPools[%d]", i)); err != nil {
			return err
		}
		rewardPools[rp.address] = rp
	}

	chefs := make(map[common.Address]*ChefSpec, len(s.Chefs))
	for i := range s.Chefs {
		c := &s.Chefs[i]
		if c.address, err = crypto.ParseAddress(c.Address); err != nil {
			return fmt.Errorf("chefs[%d]: %w", i, err)
		}
		if c.RewardAsset == "" {
			return fmt.Errorf("chefs[%d]: reward asset required", i)
		}
		if c.rewardPerSecond, err = parseAmountString(c.RewardPerSecond); err != nil {
			return fmt.Errorf("chefs[%d].rewardPerSecond: %w", i, err)
		}
		if c.funding, err = parseAmountString(c.Funding); err != nil {
			return fmt.Errorf("chefs[%d].funding: %w", i, err)
		}
		if err := claim(c.address, fmt.Sprintf("chefs[%d]", i)); err != nil {
			return err
		}
		chefs[c.address] = c
	}

	for i := range s.Vaults {
		v := &s.Vaults[i]
		if err := v.validate(pairs, rewardPools, chefs); err != nil {
			return fmt.Errorf("vaults[%d]: %w", i, err)
		}
		if err := claim(v.address, fmt.Sprintf("vaults[%d]", i)); err != nil {
			return err
		}
		for j := range v.Strategies {
			if err := claim(v.Strategies[j].address, fmt.Sprintf("vaults[%d].strategies[%d]", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BankSpec) validate() error {
	var err error
	if b.address, err = crypto.ParseAddress(b.Address); err != nil {
		return err
	}
	if strings.TrimSpace(b.BaseAsset) == "" || strings.TrimSpace(b.ShareAsset) == "" {
		return fmt.Errorf("base and share assets required")
	}
	if b.BaseAsset == b.ShareAsset {
		return fmt.Errorf("share asset must differ from base asset")
	}
	cfg := lending.PoolConfig{
		InterestModel:  b.InterestModel,
		ReservePoolBps: b.ReservePoolBps,
		KillBountyBps:  b.KillBountyBps,
	}
	if cfg.MinDebtSize, err = parseAmountString(b.MinDebtSize); err != nil {
		return fmt.Errorf("minDebtSize: %w", err)
	}
	if strings.TrimSpace(b.RatePerSecond) != "" {
		if cfg.RatePerSecond, err = parseAmountString(b.RatePerSecond); err != nil {
			return fmt.Errorf("ratePerSecond: %w", err)
		}
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.config = cfg
	return nil
}

func (p *PairSpec) validate(base string) error {
	var err error
	if p.address, err = crypto.ParseAddress(p.Address); err != nil {
		return err
	}
	if p.PairedAsset == "" || p.LPAsset == "" {
		return fmt.Errorf("paired and lp assets required")
	}
	if p.PairedAsset == base || p.LPAsset == base {
		return fmt.Errorf("pair assets must differ from base asset %q", base)
	}
	p.fee = amm.DefaultFee
	if p.FeeNumerator != 0 || p.FeeDenominator != 0 {
		p.fee = amm.Fee{Numerator: p.FeeNumerator, Denominator: p.FeeDenominator}
	}
	if !p.fee.Valid() {
		return fmt.Errorf("invalid fee %d/%d", p.FeeNumerator, p.FeeDenominator)
	}
	if p.seedBase, err = parseAmountString(p.SeedBase); err != nil {
		return fmt.Errorf("seedBase: %w", err)
	}
	if p.seedPaired, err = parseAmountString(p.SeedPaired); err != nil {
		return fmt.Errorf("seedPaired: %w", err)
	}
	return nil
}

func (v *VaultSpec) validate(pairs map[common.Address]*PairSpec, rewardPools map[common.Address]*RewardPoolSpec, chefs map[common.Address]*ChefSpec) error {
	var err error
	if v.address, err = crypto.ParseAddress(v.Address); err != nil {
		return err
	}
	if v.pair, err = crypto.ParseAddress(v.Pair); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	pair, ok := pairs[v.pair]
	if !ok {
		return fmt.Errorf("pair %s not deployed", v.pair.Hex())
	}
	switch {
	case v.RewardPool != "" && v.Chef != "":
		return fmt.Errorf("rewardPool and chef are exclusive")
	case v.RewardPool != "":
		if v.rewardPool, err = crypto.ParseAddress(v.RewardPool); err != nil {
			return fmt.Errorf("rewardPool: %w", err)
		}
		rp, ok := rewardPools[v.rewardPool]
		if !ok {
			return fmt.Errorf("reward pool %s not deployed", v.rewardPool.Hex())
		}
		if rp.LPAsset != pair.LPAsset {
			return fmt.Errorf("reward pool stakes %q, pair issues %q", rp.LPAsset, pair.LPAsset)
		}
	case v.Chef != "":
		if v.chef, err = crypto.ParseAddress(v.Chef); err != nil {
			return fmt.Errorf("chef: %w", err)
		}
		c, ok := chefs[v.chef]
		if !ok {
			return fmt.Errorf("chef %s not deployed", v.chef.Hex())
		}
		if v.ChefPool >= uint64(len(c.Pools)) {
			return fmt.Errorf("chef pool %d not configured", v.ChefPool)
		}
		if c.Pools[v.ChefPool].LPAsset != pair.LPAsset {
			return fmt.Errorf("chef pool stakes %q, pair issues %q", c.Pools[v.ChefPool].LPAsset, pair.LPAsset)
		}
	default:
		return fmt.Errorf("a rewardPool or chef is required")
	}
	if v.RewardRoute != "" {
		route, err := crypto.ParseAddress(v.RewardRoute)
		if err != nil {
			return fmt.Errorf("rewardRoute: %w", err)
		}
		if _, ok := pairs[route]; !ok {
			return fmt.Errorf("reward route %s not deployed", route.Hex())
		}
		v.rewardRoute = &route
	}
	if err := v.RiskConfig().Validate(); err != nil {
		return err
	}

	if v.addStrategy, err = parseStrategyName(v.AddStrategy, strategy.IDAddBaseOnly); err != nil {
		return fmt.Errorf("addStrategy: %w", err)
	}
	if v.liquidateStrategy, err = parseStrategyName(v.LiquidateStrategy, strategy.IDLiquidate); err != nil {
		return fmt.Errorf("liquidateStrategy: %w", err)
	}
	kinds := make(map[strategy.ID]bool, len(v.Strategies))
	for i := range v.Strategies {
		st := &v.Strategies[i]
		if st.id, err = strategy.ParseID(strings.TrimSpace(st.Kind)); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if st.address, err = crypto.ParseAddress(st.Address); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if kinds[st.id] {
			return fmt.Errorf("strategies[%d]: duplicate %s", i, st.id)
		}
		kinds[st.id] = true
	}
	for _, id := range []strategy.ID{v.addStrategy, v.liquidateStrategy} {
		if !kinds[id] {
			return fmt.Errorf("strategy %s not deployed", id)
		}
	}
	return nil
}

// RiskConfig returns the bank-side settings of the vault.
func (v *VaultSpec) RiskConfig() lending.VaultConfig {
	return lending.VaultConfig{
		IsVault:       true,
		AcceptsDebt:   v.AcceptsDebt,
		WorkFactorBps: v.WorkFactorBps,
		KillFactorBps: v.KillFactorBps,
	}
}

func parseStrategyName(name string, fallback strategy.ID) (strategy.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback, nil
	}
	return strategy.ParseID(name)
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability"
)

// Protocol is the surface the keeper drives. core.Protocol implements it.
type Protocol interface {
	Accrue(ctx context.Context) error
	Positions() ([]*core.PositionView, error)
	Kill(ctx context.Context, caller common.Address, id uint64) (*lending.KillResult, error)
	Vaults() []common.Address
	PendingReward(vault common.Address) (*big.Int, error)
	Reinvest(ctx context.Context, caller, vault common.Address) (*big.Int, error)
}

var _ Protocol = (*core.Protocol)(nil)

type Config struct {
	Interval time.Duration
	// ActionsPerSecond paces kill and reinvest calls within a tick.
	ActionsPerSecond float64
	Burst            int
	Reinvest         bool
	// MinReward skips reinvesting vaults with less pending reward.
	MinReward *big.Int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.ActionsPerSecond <= 0 {
		c.ActionsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MinReward == nil {
		c.MinReward = big.NewInt(0)
	}
	return c
}

// Report summarises one tick.
type Report struct {
	Killed     []uint64
	Reinvested []common.Address
	Failures   int
}

// Keeper accrues interest, liquidates unhealthy positions and compounds
// farm rewards on a schedule, collecting the bounties into its account.
type Keeper struct {
	proto   Protocol
	account common.Address
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *observability.LendingMetrics
}

func New(proto Protocol, account common.Address, cfg Config, logger *slog.Logger) (*Keeper, error) {
	if proto == nil {
		return nil, fmt.Errorf("keeper: protocol required")
	}
	if account == (common.Address{}) {
		return nil, fmt.Errorf("keeper: account required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Keeper{
		proto:   proto,
		account: account,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), cfg.Burst),
		logger:  logger.With("component", "keeper", "account", account.Hex()),
		metrics: observability.Lending(),
	}, nil
}

// SetMetrics swaps the metric set, mainly for tests.
func (k *Keeper) SetMetrics(m *observability.LendingMetrics) {
	k.metrics = m
}

// Run ticks until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()
	k.logger.Info("keeper started", "interval", k.cfg.Interval.String())
	for {
		if _, err := k.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Warn("keeper tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one accrue, kill and reinvest cycle. Individual kill or
// reinvest failures are logged and counted; only accrual and listing
// failures abort the tick.
func (k *Keeper) Tick(ctx context.Context) (*Report, error) {
	report := &Report{}
	err := k.proto.Accrue(ctx)
	k.metrics.ObserveKeeper("accrue", err)
	if err != nil {
		return report, fmt.Errorf("accrue: %w", err)
	}

	positions, err := k.proto.Positions()
	if err != nil {
		return report, fmt.Errorf("list positions: %w", err)
	}
	for _, pos := range positions {
		if !pos.Killable {
			continue
		}
		if err := k.limiter.Wait(ctx); err != nil {
			return report, err
		}
		id := pos.Position.ID
		res, err := k.proto.Kill(ctx, k.account, id)
		k.metrics.ObserveKeeper("kill", err)
		if err != nil {
			report.Failures++
			k.logger.Warn("kill failed", "position", id, "error", err)
			continue
		}
		report.Killed = append(report.Killed, id)
		k.logger.Info("position killed", "position", id,
			"debt", res.Debt.String(), "bounty", res.Bounty.String(), "badDebt", res.BadDebt.String())
	}

	if !k.cfg.Reinvest {
		return report, nil
	}
	for _, vault := range k.proto.Vaults() {
		pending, err := k.proto.PendingReward(vault)
		if err != nil {
			report.Failures++
			k.logger.Warn("pending reward unavailable", "vault", vault.Hex(), "error", err)
			continue
		}
		if pending.Sign() == 0 || pending.Cmp(k.cfg.MinReward) < 0 {
			continue
		}
		if err := k.limiter.Wait(ctx); err != nil {
			return report, err
		}
		bounty, err := k.proto.Reinvest(ctx, k.account, vault)
		k.metrics.ObserveKeeper("reinvest", err)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			report.Failures++
			k.logger.Warn("reinvest failed", "vault", vault.Hex(), "error", err)
			continue
		}
		report.Reinvested = append(report.Reinvested, vault)
		k.logger.Info("vault reinvested", "vault", vault.Hex(), "reward", pending.String(), "bounty", bounty.String())
	}
	return report, nil
}

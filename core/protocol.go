package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/genesis"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/state"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/vault"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

// ErrUnknownVault is returned for a vault address the deployment lacks.
var ErrUnknownVault = errors.New("core: unknown vault")

// Options tune a Protocol. Zero values fall back to wall-clock time, the
// default logger and no pause switch or event sink.
type Options struct {
	Clock  func() time.Time
	Pauses nativecommon.PauseView
	Sink   events.Emitter
	Logger *slog.Logger
}

// Protocol is the transaction boundary around a deployment. Each mutating
// call runs alone, against a state snapshot: it either commits with its
// events flushed to the sink, or reverts leaving neither state nor events.
type Protocol struct {
	mu      sync.Mutex
	state   *state.Manager
	deploy  *genesis.Deployment
	buffer  *events.Buffer
	sink    events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LendingMetrics
}

// NewProtocol builds the deployment of spec over db and seeds the genesis
// state when db has none yet.
func NewProtocol(db storage.Database, spec *genesis.GenesisSpec, opts Options) (*Protocol, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	manager := state.NewManager(db)
	deploy, err := genesis.Build(spec, manager)
	if err != nil {
		return nil, err
	}
	p := &Protocol{
		state:   manager,
		deploy:  deploy,
		buffer:  &events.Buffer{},
		sink:    sink,
		logger:  logger.With("component", "protocol"),
		tracer:  otel.Tracer("alpha-homora/core"),
		metrics: observability.Lending(),
	}
	deploy.Wire(opts.Clock, opts.Pauses, p.buffer)

	applied, err := genesis.Applied(manager)
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, err := p.execute(context.Background(), "genesis", func() error {
			return deploy.Seed(manager)
		}); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
		p.logger.Info("genesis applied", "bank", deploy.Bank.Address().Hex(), "vaults", len(deploy.Goblins))
	}
	return p, nil
}

// Deployment exposes the underlying components. Mutating them directly
// bypasses the transaction boundary.
func (p *Protocol) Deployment() *genesis.Deployment { return p.deploy }

// execute runs fn as one atomic transaction and returns its id.
func (p *Protocol) execute(ctx context.Context, method string, fn func() error) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txID := uuid.NewString()
	start := time.Now()
	_, span := p.tracer.Start(ctx, "protocol."+method, trace.WithAttributes(
		attribute.String("tx.id", txID),
	))
	defer span.End()

	snapshot := p.state.Snapshot()
	err := fn()
	if err == nil {
		err = p.state.Commit()
	}
	if err != nil {
		p.state.RevertToSnapshot(snapshot)
		p.buffer.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObserveTx(method, time.Since(start), err)
		p.logger.Debug("transaction reverted", "tx", txID, "method", method, "error", err)
		return txID, err
	}
	flushed := p.buffer.Flush(p.sink)
	span.SetAttributes(attribute.Int("tx.events", len(flushed)))
	span.SetStatus(codes.Ok, "committed")
	p.metrics.ObserveTx(method, time.Since(start), nil)
	p.logger.Debug("transaction committed", "tx", txID, "method", method, "events", len(flushed))
	return txID, nil
}

// view runs fn against committed state.
func (p *Protocol) view(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

func (p *Protocol) goblin(addr common.Address) (*vault.Goblin, error) {
	g, ok := p.deploy.Goblins[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVault, addr.Hex())
	}
	return g, nil
}

func (p *Protocol) Deposit(ctx context.Context, caller common.Address, amount *big.Int) (shares *big.Int, err error) {
	_, err = p.execute(ctx, "deposit", func() error {
		shares, err = p.deploy.Bank.Deposit(caller, amount)
		return err
	})
	return shares, err
}

func (p *Protocol) Withdraw(ctx context.Context, caller common.Address, shares *big.Int) (amount *big.Int, err error) {
	_, err = p.execute(ctx, "withdraw", func() error {
		amount, err = p.deploy.Bank.Withdraw(caller, shares)
		return err
	})
	return amount, err
}

func (p *Protocol) Work(ctx context.Context, caller common.Address, req lending.WorkRequest) (res *lending.WorkResult, err error) {
	_, err = p.execute(ctx, "work", func() error {
		res, err = p.deploy.Bank.Work(caller, req)
		return err
	})
	return res, err
}

func (p *Protocol) Kill(ctx context.Context, caller common.Address, id uint64) (res *lending.KillResult, err error) {
	_, err = p.execute(ctx, "kill", func() error {
		res, err = p.deploy.Bank.Kill(caller, id)
		return err
	})
	return res, err
}

// Reinvest compounds the farm rewards of one vault and returns the caller's
// bounty.
func (p *Protocol) Reinvest(ctx context.Context, caller, vaultAddr common.Address) (bounty *big.Int, err error) {
	g, err := p.goblin(vaultAddr)
	if err != nil {
		return nil, err
	}
	_, err = p.execute(ctx, "reinvest", func() error {
		bounty, err = g.Reinvest(caller)
		return err
	})
	return bounty, err
}

func (p *Protocol) Accrue(ctx context.Context) error {
	_, err := p.execute(ctx, "accrue", p.deploy.Bank.Accrue)
	return err
}

func (p *Protocol) SetPoolConfig(ctx context.Context, caller common.Address, cfg lending.PoolConfig) error {
	_, err := p.execute(ctx, "set_params", func() error {
		return p.deploy.Bank.SetConfig(caller, cfg)
	})
	return err
}

func (p *Protocol) SetVault(ctx context.Context, caller, vaultAddr common.Address, cfg lending.VaultConfig) error {
	_, err := p.execute(ctx, "set_vault", func() error {
		return p.deploy.Bank.SetVault(caller, vaultAddr, cfg)
	})
	return err
}

func (p *Protocol) SetReinvestBounty(ctx context.Context, caller, vaultAddr common.Address, bps uint64) error {
	g, err := p.goblin(vaultAddr)
	if err != nil {
		return err
	}
	_, err = p.execute(ctx, "set_reinvest_bounty", func() error {
		return g.SetReinvestBountyBps(caller, bps)
	})
	return err
}

func (p *Protocol) WithdrawReserve(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	_, err := p.execute(ctx, "withdraw_reserve", func() error {
		return p.deploy.Bank.WithdrawReserve(caller, to, amount)
	})
	return err
}

func (p *Protocol) ReduceReserve(ctx context.Context, caller common.Address, amount *big.Int) error {
	_, err := p.execute(ctx, "reduce_reserve", func() error {
		return p.deploy.Bank.ReduceReserve(caller, amount)
	})
	return err
}

// Pool returns the pool accounting as of the last accrual.
func (p *Protocol) Pool() (view *lending.PoolView, err error) {
	err = p.view(func() error {
		view, err = p.deploy.Bank.Pool()
		return err
	})
	return view, err
}

// PositionView is a position joined with its current valuation.
type PositionView struct {
	Position *lending.Position
	Health   *big.Int
	Debt     *big.Int
	Killable bool
}

func (p *Protocol) Position(id uint64) (out *PositionView, err error) {
	err = p.view(func() error {
		out, err = p.positionView(id)
		return err
	})
	return out, err
}

func (p *Protocol) positionView(id uint64) (*PositionView, error) {
	bank := p.deploy.Bank
	pos, err := bank.Position(id)
	if err != nil {
		return nil, err
	}
	info, err := bank.PositionInfo(id)
	if err != nil {
		return nil, err
	}
	killable, err := bank.Killable(id)
	if err != nil {
		return nil, err
	}
	return &PositionView{Position: pos, Health: info.Health, Debt: info.Debt, Killable: killable}, nil
}

// Positions lists every live position in id order.
func (p *Protocol) Positions() (out []*PositionView, err error) {
	err = p.view(func() error {
		positions, err := p.deploy.Bank.Positions()
		if err != nil {
			return err
		}
		out = make([]*PositionView, 0, len(positions))
		for _, pos := range positions {
			v, err := p.positionView(pos.ID)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (p *Protocol) Balance(addr common.Address, asset string) (bal *big.Int, err error) {
	err = p.view(func() error {
		bal, err = p.state.Balance(addr, asset)
		return err
	})
	return bal, err
}

// Vaults lists the deployed vault addresses in address order.
func (p *Protocol) Vaults() []common.Address {
	return p.deploy.VaultAddresses()
}

// PendingReward returns the farm reward a Reinvest on vaultAddr would claim.
func (p *Protocol) PendingReward(vaultAddr common.Address) (reward *big.Int, err error) {
	g, err := p.goblin(vaultAddr)
	if err != nil {
		return nil, err
	}
	err = p.view(func() error {
		reward, err = g.PendingReward()
		return err
	})
	return reward, err
}

package routes

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/gateway/middleware"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/services/indexer"
)

// Protocol is the transaction surface served over HTTP.
type Protocol interface {
	Pool() (*lending.PoolView, error)
	Position(id uint64) (*core.PositionView, error)
	Positions() ([]*core.PositionView, error)
	Balance(addr common.Address, asset string) (*big.Int, error)
	Vaults() []common.Address
	PendingReward(vault common.Address) (*big.Int, error)

	Deposit(ctx context.Context, caller common.Address, amount *big.Int) (*big.Int, error)
	Withdraw(ctx context.Context, caller common.Address, shares *big.Int) (*big.Int, error)
	Work(ctx context.Context, caller common.Address, req lending.WorkRequest) (*lending.WorkResult, error)
	Kill(ctx context.Context, caller common.Address, id uint64) (*lending.KillResult, error)
	Reinvest(ctx context.Context, caller, vault common.Address) (*big.Int, error)

	SetPoolConfig(ctx context.Context, caller common.Address, cfg lending.PoolConfig) error
	SetVault(ctx context.Context, caller, vault common.Address, cfg lending.VaultConfig) error
	SetReinvestBounty(ctx context.Context, caller, vault common.Address, bps uint64) error
	WithdrawReserve(ctx context.Context, caller, to common.Address, amount *big.Int) error
	ReduceReserve(ctx context.Context, caller common.Address, amount *big.Int) error
}

var _ Protocol = (*core.Protocol)(nil)

// EventSource serves the committed event history.
type EventSource interface {
	Events(ctx context.Context, q indexer.Query) ([]indexer.EventRecord, error)
}

var _ EventSource = (*indexer.Store)(nil)

// Rate limit keys applied to read and write routes.
const (
	LimitRead  = "read"
	LimitWrite = "write"
)

type Config struct {
	Protocol      Protocol
	Events        EventSource
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	AdminScope    string
	Metrics       http.Handler
	Logger        *slog.Logger
}

func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	adminScope := cfg.AdminScope
	if adminScope == "" {
		adminScope = "admin"
	}
	api := &api{proto: cfg.Protocol, events: cfg.Events, logger: logger.With("component", "gateway")}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.Authenticator != nil {
			v1.Use(cfg.Authenticator.Middleware())
		}
		v1.Group(func(read chi.Router) {
			read.Use(limit(cfg.RateLimiter, LimitRead))
			read.Get("/pool", api.getPool)
			read.Get("/positions", api.listPositions)
			read.Get("/positions/{id}", api.getPosition)
			read.Get("/vaults", api.listVaults)
			read.Get("/accounts/{address}/balances/{asset}", api.getBalance)
			read.Get("/events", api.listEvents)
		})
		v1.Group(func(write chi.Router) {
			write.Use(limit(cfg.RateLimiter, LimitWrite))
			write.Post("/deposit", api.deposit)
			write.Post("/withdraw", api.withdraw)
			write.Post("/work", api.work)
			write.Post("/kill/{id}", api.kill)
			write.Post("/vaults/{address}/reinvest", api.reinvest)
		})
		v1.Route("/admin", func(admin chi.Router) {
			if cfg.Authenticator != nil {
				admin.Use(cfg.Authenticator.Middleware(adminScope))
			}
			admin.Use(limit(cfg.RateLimiter, LimitWrite))
			admin.Post("/params", api.setParams)
			admin.Post("/vaults", api.setVault)
			admin.Post("/vaults/{address}/bounty", api.setBounty)
			admin.Post("/reserve/withdraw", api.withdrawReserve)
			admin.Post("/reserve/reduce", api.reduceReserve)
		})
	})
	return r
}

func limit(rl *middleware.RateLimiter, key string) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware(key)
}

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/config"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/genesis"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
	gwconfig "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/gateway/config"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/gateway/middleware"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/gateway/routes"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability/logging"
	telemetry "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability/otel"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/services/indexer"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/services/keeper"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

const serviceName = "bankd"

func main() {
	cfgPath := flag.String("config", "./bankd.toml", "path to node configuration")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "bankd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.SetupWithOptions(serviceName, cfg.NetworkName, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	spec, err := genesis.LoadGenesisSpec(config.ResolvePath(cfgPath, cfg.GenesisFile))
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}

	sink := events.Fanout{observability.Lending()}
	var history *indexer.Store
	if cfg.Indexer.Enabled {
		history, err = indexer.Open(indexerDSN(cfgPath, cfg.Indexer.DSN), logger)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer history.Close()
		sink = append(sink, history)
	}

	proto, err := core.NewProtocol(db, spec, core.Options{
		Pauses: cfg.Pauses.View(),
		Sink:   sink,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("start protocol: %w", err)
	}

	gwPath := ""
	if strings.TrimSpace(cfg.GatewayConfig) != "" {
		gwPath = config.ResolvePath(cfgPath, cfg.GatewayConfig)
	}
	gwCfg, err := gwconfig.Load(gwPath)
	if err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}
	handler := newHandler(gwCfg, proto, history, logger)

	if cfg.Keeper.Enabled {
		bot, err := newKeeper(cfg, proto, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("keeper stopped", "error", err)
			}
		}()
	}

	return serve(ctx, gwCfg, cfgPath, handler, logger)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.InMemory() {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// indexerDSN keeps history in a private in-memory database when no DSN is
// configured.
func indexerDSN(cfgPath, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "file:bankd-events?mode=memory&cache=shared"
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return config.ResolvePath(cfgPath, dsn)
}

func newHandler(cfg gwconfig.Config, proto *core.Protocol, history *indexer.Store, logger *slog.Logger) http.Handler {
	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, entry := range cfg.RateLimits {
		limits[entry.ID] = middleware.RateLimit{RatePerSecond: entry.PerSecond(), Burst: entry.Burst}
	}

	var metrics http.Handler
	if cfg.Observability.Metrics {
		metrics = promhttp.Handler()
	}
	routeCfg := routes.Config{
		Protocol: proto,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        cfg.Auth.Enabled,
			HMACSecret:     cfg.Auth.HMACSecret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			ScopeClaim:     cfg.Auth.ScopeClaim,
			OptionalPaths:  cfg.Auth.OptionalPaths,
			AllowAnonymous: cfg.Auth.AllowAnonymous,
			ClockSkew:      cfg.Auth.ClockSkew,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(limits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   cfg.Observability.ServiceName,
			MetricsPrefix: cfg.Observability.MetricsPrefix,
			LogRequests:   cfg.Observability.LogRequests,
			Metrics:       cfg.Observability.Metrics,
			Tracing:       cfg.Observability.Tracing,
		}, prometheus.DefaultRegisterer, logger),
		CORS:       middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		AdminScope: cfg.Auth.AdminScope,
		Metrics:    metrics,
		Logger:     logger,
	}
	// A nil *indexer.Store must not reach the interface field.
	if history != nil {
		routeCfg.Events = history
	}
	return routes.New(routeCfg)
}

func newKeeper(cfg *config.Config, proto *core.Protocol, logger *slog.Logger) (*keeper.Keeper, error) {
	key, err := crypto.LoadFromKeystore(cfg.KeeperKeystorePath, cfg.KeeperPassphrase())
	if err != nil {
		return nil, fmt.Errorf("unlock keeper keystore: %w", err)
	}
	minReward, err := cfg.Keeper.MinRewardAmount()
	if err != nil {
		return nil, err
	}
	account := key.PubKey().Address()
	bot, err := keeper.New(proto, account, keeper.Config{
		Interval:         time.Duration(cfg.Keeper.IntervalSeconds) * time.Second,
		ActionsPerSecond: cfg.Keeper.ActionsPerSecond,
		Burst:            cfg.Keeper.Burst,
		Reinvest:         cfg.Keeper.Reinvest,
		MinReward:        minReward,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("start keeper: %w", err)
	}
	logger.Info("keeper enabled", "account", account.Hex(), logging.MaskField("keystore", cfg.KeeperKeystorePath))
	return bot, nil
}

func serve(ctx context.Context, cfg gwconfig.Config, cfgPath string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(
			config.ResolvePath(cfgPath, cfg.Security.TLSCertFile),
			config.ResolvePath(cfgPath, cfg.Security.TLSKeyFile),
		)
		if err != nil {
			return fmt.Errorf("load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		server.TLSConfig = tlsConfig
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
			listener = tls.NewListener(listener, tlsConfig)
		}
		logger.Info("listening", "address", scheme+"://"+listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	return nil
}

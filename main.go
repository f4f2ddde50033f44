package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/config"
	"github.com/tonex/tonex/internal/auth"
	"github.com/tonex/tonex/internal/domain"
	"github.com/tonex/tonex/internal/services/engine"
	"github.com/tonex/tonex/internal/services/rate"
	"github.com/tonex/tonex/internal/storage/accounts"
	"github.com/tonex/tonex/internal/storage/ledger"
	"github.com/tonex/tonex/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildAccountStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init account store", zap.Error(err))
	}

	wal, err := ledger.NewWALStore(cfg.LedgerDir)
	if err != nil {
		logger.Fatal("failed to init ledger", zap.Error(err))
	}
	defer wal.Close()

	source, err := buildRateSource(cfg)
	if err != nil {
		logger.Fatal("failed to init rate source", zap.Error(err))
	}

	provider := rate.NewProvider(logger, source, buildRateCache(cfg),
		rate.WithTTL(cfg.RateTTL),
		rate.WithFetchTimeout(cfg.RateFetchTimeout))

	eng := engine.New(logger, store, wal, provider)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	server := web.NewServer(cfg.ListenAddr, eng, verifier, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	logger.Info("started",
		zap.String("addr", cfg.ListenAddr),
		zap.String("rate_source", cfg.RateSource))

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}

func buildAccountStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (accounts.Store, error) {
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, err
		}
		return accounts.NewPgStore(pool), nil
	}

	// without a database the store starts empty; seed demo accounts so the
	// service is usable out of the box
	store := accounts.NewMemStore()
	for _, handle := range []string{"alice", "bob"} {
		if err := store.CreateAccount("demo-"+handle, handle, map[domain.Currency]decimal.Decimal{
			domain.TON: decimal.NewFromInt(100),
		}); err != nil {
			return nil, err
		}
	}
	logger.Warn("no postgres_dsn configured, using in-memory account store with demo accounts")

	return store, nil
}

func buildRateSource(cfg config.Config) (rate.Source, error) {
	switch cfg.RateSource {
	case "binance":
		return rate.NewBinanceSource(binance.NewClient("", "")), nil
	case "bybit":
		return rate.NewBybitSource(bybit.NewClient()), nil
	default:
		return rate.NewCoinGeckoSource(&http.Client{}, cfg.RateURL, cfg.RateAssetID), nil
	}
}

func buildRateCache(cfg config.Config) rate.Cache {
	if cfg.RedisAddr != "" {
		return rate.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), 0)
	}
	return rate.NewMemCache()
}

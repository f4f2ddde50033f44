// Package config loads service configuration from a yaml file or flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = ":8080"
	defaultRateSource   = "coingecko"
	defaultRateTTL      = 60 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultLedgerDir    = "./wal/ledger"

	jwtSecretEnv = "TONEX_JWT_SECRET"
)

// Config service configuration.
type Config struct {
	ListenAddr string
	// JWTSecret comes from the TONEX_JWT_SECRET env var, never from the file.
	JWTSecret string
	// RateSource one of coingecko, binance, bybit.
	RateSource       string
	RateURL          string
	RateAssetID      string
	RateTTL          time.Duration
	RateFetchTimeout time.Duration
	LedgerDir        string
	// PostgresDSN switches the account store from in-memory to PostgreSQL.
	PostgresDSN string
	// RedisAddr switches the rate cache from in-process to Redis.
	RedisAddr string
}

type configTmp struct {
	ListenAddr       string        `yaml:"listen_addr"`
	RateSource       string        `yaml:"rate_source"`
	RateURL          string        `yaml:"rate_url"`
	RateAssetID      string        `yaml:"rate_asset_id"`
	RateTTL          time.Duration `yaml:"rate_ttl"`
	RateFetchTimeout time.Duration `yaml:"rate_fetch_timeout"`
	LedgerDir        string        `yaml:"ledger_dir"`
	PostgresDSN      string        `yaml:"postgres_dsn"`
	RedisAddr        string        `yaml:"redis_addr"`
}

// Get reads configuration from the file behind -config, or from flags when
// no file is given.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	listenAddr := flag.String("addr", defaultListenAddr, "listen address")
	rateSource := flag.String("ratesource", defaultRateSource, "rate source: coingecko, binance or bybit")
	ledgerDir := flag.String("ledgerdir", defaultLedgerDir, "ledger WAL directory")
	flag.Parse()

	cfg := Config{
		ListenAddr:       *listenAddr,
		RateSource:       *rateSource,
		RateTTL:          defaultRateTTL,
		RateFetchTimeout: defaultFetchTimeout,
		LedgerDir:        *ledgerDir,
	}

	if *configPath != "" {
		var err error
		cfg, err = fromYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
	}

	cfg.JWTSecret = os.Getenv(jwtSecretEnv)
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("%s env is not set", jwtSecretEnv)
	}

	switch cfg.RateSource {
	case "coingecko", "binance", "bybit":
	default:
		return Config{}, fmt.Errorf("unknown rate source %q", cfg.RateSource)
	}

	return cfg, nil
}

func fromYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Config{
		ListenAddr:       tmp.ListenAddr,
		RateSource:       tmp.RateSource,
		RateURL:          tmp.RateURL,
		RateAssetID:      tmp.RateAssetID,
		RateTTL:          tmp.RateTTL,
		RateFetchTimeout: tmp.RateFetchTimeout,
		LedgerDir:        tmp.LedgerDir,
		PostgresDSN:      tmp.PostgresDSN,
		RedisAddr:        tmp.RedisAddr,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.RateSource == "" {
		cfg.RateSource = defaultRateSource
	}
	if cfg.RateTTL <= 0 {
		cfg.RateTTL = defaultRateTTL
	}
	if cfg.RateFetchTimeout <= 0 {
		cfg.RateFetchTimeout = defaultFetchTimeout
	}
	if cfg.LedgerDir == "" {
		cfg.LedgerDir = defaultLedgerDir
	}

	return cfg, nil
}

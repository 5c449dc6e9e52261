package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Deployment defaults: KyberSwap Elastic on Polygon, USDC.e/KNC.
const (
	DefaultFactory         = "0xC7a590291e07B9fe9E64b86c58fD8fC764308C4A"
	DefaultQuoter          = "0x4d47fd5a29904Dae0Ef51b1c450C9750F15D7856"
	DefaultRouter          = "0xF9c2b5746c946EF883ab2660BbbB1f10A5bdeAb4"
	DefaultPositionManager = "0xe222fBE074A436145b255442D919E4E3A6c6a480"
	DefaultTicksFeesReader = "0x8Fd8Cb948965d9305999D767A02bf79833EADbB3"
	DefaultInitCodeHash    = "0x00e263aaa3a2c06a89b53217a9e7aad7e15613490a72e0f95f303c4de2dc7045"
	DefaultSubgraphURL     = "https://api.thegraph.com/subgraphs/name/kybernetwork/kyberswap-elastic-matic"

	DefaultToken0Address = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
	DefaultToken1Address = "0x1c954e8fe737f99f68fa1ccda3e51ebdb291948c"

	// DefaultFeeUnits is the Elastic EXOTIC fee tier, 0.3% in units of
	// 0.001 bps. The tier is part of the pool's CREATE2 salt.
	DefaultFeeUnits = 300

	DefaultDeadline = 10 * time.Minute
)

// TokenConfig describes one side of the configured pair.
type TokenConfig struct {
	Address  string
	Decimals uint8
	Symbol   string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	PrivateKey         string
	ChainID            uint64
	Factory            string
	Quoter             string
	Router             string
	PositionManager    string
	TicksFeesReader    string
	InitCodeHash       string
	Token0             TokenConfig
	Token1             TokenConfig
	FeeUnits           uint32
	SlippageBps        int64
	Deadline           time.Duration
	BandSpacings       int
	RemoveBps          int64
	MaxFeeGwei         uint64
	MaxPriorityFeeGwei uint64
	SubgraphURL        string
	Journal            string
	PGDSN              string
	Timeout            time.Duration
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ELASTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("quoter", DefaultQuoter)
	v.SetDefault("router", DefaultRouter)
	v.SetDefault("position-manager", DefaultPositionManager)
	v.SetDefault("ticks-fee-reader", DefaultTicksFeesReader)
	v.SetDefault("init-code-hash", DefaultInitCodeHash)
	v.SetDefault("token0-address", DefaultToken0Address)
	v.SetDefault("token0-decimals", 6)
	v.SetDefault("token0-symbol", "USDC.e")
	v.SetDefault("token1-address", DefaultToken1Address)
	v.SetDefault("token1-decimals", 18)
	v.SetDefault("token1-symbol", "KNC")
	v.SetDefault("fee-units", DefaultFeeUnits)
	v.SetDefault("slippage-bps", 50)
	v.SetDefault("deadline", DefaultDeadline)
	v.SetDefault("band-spacings", 3)
	v.SetDefault("remove-bps", 1000)
	v.SetDefault("max-fee-gwei", 100)
	v.SetDefault("max-priority-fee-gwei", 100)
	v.SetDefault("subgraph-url", DefaultSubgraphURL)
	v.SetDefault("journal", "./data/operations.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          strings.TrimSpace(v.GetString("rpc")),
		PrivateKey:      strings.TrimSpace(v.GetString("private-key")),
		ChainID:         v.GetUint64("chain-id"),
		Factory:         v.GetString("factory"),
		Quoter:          v.GetString("quoter"),
		Router:          v.GetString("router"),
		PositionManager: v.GetString("position-manager"),
		TicksFeesReader: v.GetString("ticks-fee-reader"),
		InitCodeHash:    v.GetString("init-code-hash"),
		Token0: TokenConfig{
			Address:  v.GetString("token0-address"),
			Decimals: uint8(v.GetUint("token0-decimals")),
			Symbol:   v.GetString("token0-symbol"),
		},
		Token1: TokenConfig{
			Address:  v.GetString("token1-address"),
			Decimals: uint8(v.GetUint("token1-decimals")),
			Symbol:   v.GetString("token1-symbol"),
		},
		FeeUnits:           v.GetUint32("fee-units"),
		SlippageBps:        v.GetInt64("slippage-bps"),
		Deadline:           v.GetDuration("deadline"),
		BandSpacings:       v.GetInt("band-spacings"),
		RemoveBps:          v.GetInt64("remove-bps"),
		MaxFeeGwei:         v.GetUint64("max-fee-gwei"),
		MaxPriorityFeeGwei: v.GetUint64("max-priority-fee-gwei"),
		SubgraphURL:        strings.TrimSpace(v.GetString("subgraph-url")),
		Journal:            v.GetString("journal"),
		PGDSN:              v.GetString("pg-dsn"),
		Timeout:            v.GetDuration("timeout"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks values that every operation depends on.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10000 {
		return fmt.Errorf("slippage-bps must be within [0, 10000]: %d", c.SlippageBps)
	}
	if c.RemoveBps <= 0 || c.RemoveBps > 10000 {
		return fmt.Errorf("remove-bps must be within (0, 10000]: %d", c.RemoveBps)
	}
	if c.BandSpacings <= 0 {
		return fmt.Errorf("band-spacings must be positive: %d", c.BandSpacings)
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive: %s", c.Deadline)
	}
	if c.Token0.Decimals > 77 || c.Token1.Decimals > 77 {
		return fmt.Errorf("token decimals out of range")
	}
	if c.MaxPriorityFeeGwei > c.MaxFeeGwei {
		return fmt.Errorf("max-priority-fee-gwei %d exceeds max-fee-gwei %d", c.MaxPriorityFeeGwei, c.MaxFeeGwei)
	}
	return nil
}

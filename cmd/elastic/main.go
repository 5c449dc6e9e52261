package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"elasticOps/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "elastic",
		Short:        "KyberSwap Elastic quote, trade and liquidity operations",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote one unit of token0 into token1",
		RunE:  runQuote,
	}
	addChainFlags(quoteCmd.Flags())
	addPolicyFlags(quoteCmd.Flags())
	root.AddCommand(quoteCmd)

	tradeCmd := &cobra.Command{
		Use:   "trade",
		Short: "Swap one unit of token0 into token1 at the quoted price",
		RunE:  runTrade,
	}
	addChainFlags(tradeCmd.Flags())
	addWalletFlags(tradeCmd.Flags())
	addPolicyFlags(tradeCmd.Flags())
	root.AddCommand(tradeCmd)

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Create, increase or remove a liquidity position",
	}
	for _, sub := range []*cobra.Command{
		{Use: "create", Short: "Mint a position around the current tick", RunE: runCreate},
		{Use: "increase", Short: "Add liquidity to the open position with the lowest id", RunE: runIncrease},
		{Use: "remove", Short: "Remove a share of the open position with the lowest id", RunE: runRemove},
	} {
		addChainFlags(sub.Flags())
		addWalletFlags(sub.Flags())
		addPolicyFlags(sub.Flags())
		sub.Flags().String("subgraph-url", config.DefaultSubgraphURL, "positions subgraph GraphQL endpoint")
		positionCmd.AddCommand(sub)
	}
	root.AddCommand(positionCmd)

	positionsCmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions of an owner in the configured pool",
		RunE:  runPositions,
	}
	addChainFlags(positionsCmd.Flags())
	addPolicyFlags(positionsCmd.Flags())
	positionsCmd.Flags().String("private-key", "", "hex private key; its address is the default owner")
	positionsCmd.Flags().String("owner", "", "owner address (default: private key address)")
	positionsCmd.Flags().String("subgraph-url", config.DefaultSubgraphURL, "positions subgraph GraphQL endpoint")
	root.AddCommand(positionsCmd)

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Show the configured pool address and live state",
		RunE:  runPool,
	}
	addChainFlags(poolCmd.Flags())
	addPolicyFlags(poolCmd.Flags())
	root.AddCommand(poolCmd)

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently journaled operations",
		RunE:  runJournal,
	}
	journalCmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	journalCmd.Flags().String("pg-dsn", "", "Postgres DSN (read from Postgres instead of JSONL)")
	journalCmd.Flags().String("owner", "", "only show operations of this owner")
	journalCmd.Flags().Int("limit", 20, "maximum records to show")
	journalCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(journalCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "RPC URL")
	fs.Uint64("chain-id", 0, "chain id, 0 asks the node")
	fs.String("factory", config.DefaultFactory, "Elastic factory address")
	fs.String("quoter", config.DefaultQuoter, "QuoterV2 address")
	fs.String("router", config.DefaultRouter, "router address")
	fs.String("position-manager", config.DefaultPositionManager, "position manager address")
	fs.String("ticks-fee-reader", config.DefaultTicksFeesReader, "ticks and fees reader address")
	fs.String("init-code-hash", config.DefaultInitCodeHash, "pool init code hash")
	fs.String("token0-address", config.DefaultToken0Address, "token0 address")
	fs.Uint8("token0-decimals", 6, "token0 decimals")
	fs.String("token0-symbol", "USDC.e", "token0 symbol")
	fs.String("token1-address", config.DefaultToken1Address, "token1 address")
	fs.Uint8("token1-decimals", 18, "token1 decimals")
	fs.String("token1-symbol", "KNC", "token1 symbol")
	fs.Uint32("fee-units", config.DefaultFeeUnits, "pool fee tier in fee units")
	fs.Duration("timeout", 0, "operation timeout, 0 means none")
	fs.String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	fs.String("pg-dsn", "", "Postgres DSN for the operation journal")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addWalletFlags(fs *pflag.FlagSet) {
	fs.String("private-key", "", "hex private key of the signing account")
	fs.Uint64("max-fee-gwei", 100, "maxFeePerGas in gwei")
	fs.Uint64("max-priority-fee-gwei", 100, "maxPriorityFeePerGas in gwei")
}

func addPolicyFlags(fs *pflag.FlagSet) {
	fs.Int64("slippage-bps", 50, "slippage tolerance in basis points")
	fs.Duration("deadline", config.DefaultDeadline, "transaction deadline window")
	fs.Int("band-spacings", 3, "tick spacings on each side of the current tick for new positions")
	fs.Int64("remove-bps", 1000, "share of liquidity to remove in basis points")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

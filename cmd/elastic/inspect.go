package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"elasticOps/internal/config"
	"elasticOps/internal/dex"
	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
	"elasticOps/internal/storage"
	"elasticOps/internal/storage/postgres"
	"elasticOps/internal/subgraph"
	"elasticOps/internal/workflow"
)

func runPool(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	state, err := s.service.PoolState(s.ctx)
	if err != nil {
		return err
	}
	settings := s.service.Settings()

	out := cmd.OutOrStdout()
	meta := state.Meta()
	fmt.Fprintf(out, "pool:           %s\n", meta.Address)
	fmt.Fprintf(out, "fee units:      %d\n", meta.FeeUnits)
	fmt.Fprintf(out, "tick spacing:   %d\n", meta.TickSpacing)
	fmt.Fprintf(out, "sqrtP:          %s\n", meta.Price.SqrtP)
	fmt.Fprintf(out, "tick:           %d (nearest initialized %d)\n", meta.Price.CurrentTick, meta.Price.NearestCurrentTick)
	fmt.Fprintf(out, "liquidity:      base %s reinvest %s (last %s)\n", meta.Liquidity.BaseL, meta.Liquidity.ReinvestL, meta.Liquidity.ReinvestLLast)
	fmt.Fprintf(out, "locked:         %t\n", meta.Price.Locked)

	pool, err := state.Pool(settings.Token0, settings.Token1)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "price:          %s %s per %s\n", workflow.SpotPrice(pool.SqrtP, pool.Token0, pool.Token1), pool.Token1.Symbol, pool.Token0.Symbol)

	lower, upper, err := elastic.TickBand(pool.CurrentTick, pool.TickSpacing, settings.BandSpacings)
	if err == nil {
		fmt.Fprintf(out, "new range:      [%d, %d]\n", lower, upper)
	}

	for _, token := range []elastic.Token{pool.Token0, pool.Token1} {
		checkToken(s.ctx, s.client, token, s.logger, out)
	}
	return nil
}

func checkToken(ctx context.Context, caller ethereum.ContractCaller, token elastic.Token, logger *zap.Logger, out io.Writer) {
	meta, err := dex.FetchTokenMeta(ctx, caller, token.Address, logger)
	if err != nil {
		logger.Warn("token metadata", zap.String("token", token.Address.Hex()), zap.Error(err))
		return
	}
	status := "ok"
	if meta.Decimals != token.Decimals || meta.Symbol != token.Symbol {
		status = fmt.Sprintf("configured %s/%d", token.Symbol, token.Decimals)
	}
	fmt.Fprintf(out, "token:          %s %s decimals %d (%s)\n", token.Address.Hex(), meta.Symbol, meta.Decimals, status)
}

func runPositions(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	ownerFlag, _ := cmd.Flags().GetString("owner")
	var owner common.Address
	switch {
	case ownerFlag != "":
		owner, err = config.ParseAddress("owner", ownerFlag)
		if err != nil {
			return err
		}
	case s.signer != nil:
		owner = s.signer.From()
	default:
		return fmt.Errorf("owner or private key is required")
	}

	poolAddr, err := s.service.PoolAddress()
	if err != nil {
		return err
	}
	index, err := subgraph.NewClient(s.cfg.SubgraphURL, nil, s.logger)
	if err != nil {
		return err
	}
	positions, err := index.OpenPositions(s.ctx, owner, poolAddr)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "owner %s, pool %s: %d open\n", owner.Hex(), poolAddr.Hex(), len(positions))
	for _, p := range positions {
		fmt.Fprintf(out, "  #%s  [%d, %d]  liquidity %s\n", p.ID, p.TickLower, p.TickUpper, p.Liquidity)
	}
	return nil
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	owner, _ := cmd.Flags().GetString("owner")
	if owner != "" {
		addr, err := config.ParseAddress("owner", owner)
		if err != nil {
			return err
		}
		owner = addr.Hex()
	}

	var records []model.OperationRecord
	if cfg.PGDSN != "" {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		records, err = store.RecentOperations(ctx, owner, limit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
	} else {
		all, err := storage.ReadOperations(cfg.Journal)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		records = recentOperations(all, owner, limit)
	}

	logger.Debug("journal read",
		zap.String("journal", cfg.Journal),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("records", len(records)),
	)

	out := cmd.OutOrStdout()
	for _, r := range records {
		line := fmt.Sprintf("%s  %-18s  %-9s", r.StartedAt.Format("2006-01-02T15:04:05Z"), r.Operation, r.Status)
		if r.PositionID != "" {
			line += "  #" + r.PositionID
		}
		if r.TxHash != "" {
			line += "  " + r.TxHash
		}
		if r.ErrorKind != "" {
			line += "  " + r.ErrorKind + ": " + r.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// recentOperations filters records by owner and keeps the newest limit.
func recentOperations(records []model.OperationRecord, owner string, limit int) []model.OperationRecord {
	out := make([]model.OperationRecord, 0, len(records))
	for _, r := range records {
		if owner == "" || r.Owner == owner {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"elasticOps/internal/chain"
	"elasticOps/internal/config"
	"elasticOps/internal/storage"
	"elasticOps/internal/storage/postgres"
	"elasticOps/internal/subgraph"
	"elasticOps/internal/workflow"
)

// session holds the resources of one command run.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	ctx     context.Context
	client  *chain.Client
	signer  *chain.Signer
	store   *postgres.Store
	service *workflow.Service
	cleanup []func()
}

type sessionOptions struct {
	wallet bool
	index  bool
}

func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	s.cleanup = append(s.cleanup, func() { _ = logger.Sync() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s.cleanup = append(s.cleanup, stop)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		s.cleanup = append(s.cleanup, cancel)
	}
	s.ctx = ctx

	if err := s.open(opts); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) open(opts sessionOptions) error {
	client, err := chain.NewClient(s.ctx, s.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	s.client = client
	s.cleanup = append(s.cleanup, client.Close)

	chainID := new(big.Int).SetUint64(s.cfg.ChainID)
	if s.cfg.ChainID == 0 {
		chainID, err = client.GetChainID(s.ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
	}

	settings, err := workflow.SettingsFromConfig(s.cfg, chainID.Uint64())
	if err != nil {
		return err
	}

	serviceOpts := []workflow.Option{workflow.WithLogger(s.logger)}

	if opts.wallet || s.cfg.PrivateKey != "" {
		if s.cfg.PrivateKey == "" {
			return fmt.Errorf("private key is required")
		}
		signer, err := chain.NewSigner(client, s.cfg.PrivateKey, chainID, chain.GweiFeeCaps(s.cfg.MaxFeeGwei, s.cfg.MaxPriorityFeeGwei), s.logger)
		if err != nil {
			return err
		}
		s.signer = signer
		serviceOpts = append(serviceOpts, workflow.WithWallet(signer))
	}

	if opts.index {
		index, err := subgraph.NewClient(s.cfg.SubgraphURL, nil, s.logger)
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, workflow.WithPositionIndex(index))
	}

	journal, err := s.openJournal()
	if err != nil {
		return err
	}
	if journal != nil {
		serviceOpts = append(serviceOpts, workflow.WithJournal(journal))
	}

	service, err := workflow.New(settings, client, serviceOpts...)
	if err != nil {
		return err
	}
	s.service = service

	fields := []zap.Field{
		zap.String("rpc", s.cfg.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.String("token0", settings.Token0.Symbol),
		zap.String("token1", settings.Token1.Symbol),
		zap.Uint32("fee_units", settings.FeeUnits),
		zap.String("journal", s.cfg.Journal),
		zap.String("pg_dsn", redactDSN(s.cfg.PGDSN)),
	}
	if s.signer != nil {
		fields = append(fields, zap.String("account", s.signer.From().Hex()))
	}
	s.logger.Debug("session open", fields...)
	return nil
}

// openJournal builds the journal sinks: JSONL when a path is set, plus
// Postgres when a DSN is set.
func (s *session) openJournal() (storage.Storage, error) {
	var sinks storage.Fanout
	if s.cfg.Journal != "" {
		sinks = append(sinks, storage.NewJsonlStorage(s.cfg.Journal))
	}
	if s.cfg.PGDSN != "" {
		store, err := postgres.NewStore(s.ctx, s.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.store = store
		s.cleanup = append(s.cleanup, store.Close)
		if err := store.Migrate(s.ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func (s *session) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

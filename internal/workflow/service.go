package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"elasticOps/internal/config"
	"elasticOps/internal/dex"
	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
	"elasticOps/internal/storage"
	"elasticOps/internal/subgraph"
)

// Settings is the deployment and policy configuration of a Service.
type Settings struct {
	ChainID         uint64
	Factory         common.Address
	Quoter          common.Address
	Router          common.Address
	PositionManager common.Address
	TicksFeesReader common.Address
	InitCodeHash    common.Hash
	Token0          elastic.Token
	Token1          elastic.Token
	FeeUnits        uint32
	Slippage        elastic.Percent
	Deadline        time.Duration
	BandSpacings    int
	RemoveShare     elastic.Percent
}

// SettingsFromConfig parses the addresses and policies in cfg.
func SettingsFromConfig(cfg config.Config, chainID uint64) (Settings, error) {
	settings := Settings{
		ChainID:      chainID,
		FeeUnits:     cfg.FeeUnits,
		Slippage:     elastic.BasisPoints(cfg.SlippageBps),
		Deadline:     cfg.Deadline,
		BandSpacings: cfg.BandSpacings,
		RemoveShare:  elastic.BasisPoints(cfg.RemoveBps),
	}

	addresses := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"factory", cfg.Factory, &settings.Factory},
		{"quoter", cfg.Quoter, &settings.Quoter},
		{"router", cfg.Router, &settings.Router},
		{"position-manager", cfg.PositionManager, &settings.PositionManager},
		{"ticks-fee-reader", cfg.TicksFeesReader, &settings.TicksFeesReader},
		{"token0", cfg.Token0.Address, &settings.Token0.Address},
		{"token1", cfg.Token1.Address, &settings.Token1.Address},
	}
	for _, item := range addresses {
		addr, err := config.ParseAddress(item.name, item.value)
		if err != nil {
			return Settings{}, err
		}
		*item.dst = addr
	}

	hash, err := config.ParseHash("init-code-hash", cfg.InitCodeHash)
	if err != nil {
		return Settings{}, err
	}
	settings.InitCodeHash = hash

	settings.Token0.Decimals = cfg.Token0.Decimals
	settings.Token0.Symbol = cfg.Token0.Symbol
	settings.Token1.Decimals = cfg.Token1.Decimals
	settings.Token1.Symbol = cfg.Token1.Symbol

	if err := settings.validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s Settings) validate() error {
	if s.Token0.Address == s.Token1.Address {
		return fmt.Errorf("token0 and token1 must differ")
	}
	if err := s.Slippage.Validate(); err != nil {
		return fmt.Errorf("slippage: %w", err)
	}
	if err := s.RemoveShare.Validate(); err != nil {
		return fmt.Errorf("remove share: %w", err)
	}
	if s.RemoveShare.Num == 0 {
		return fmt.Errorf("remove share must be positive")
	}
	if s.BandSpacings <= 0 {
		return fmt.Errorf("band spacings must be positive: %d", s.BandSpacings)
	}
	if s.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive")
	}
	return nil
}

// Wallet signs and submits transactions for one account.
type Wallet interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// PositionIndex lists an owner's open positions in a pool.
type PositionIndex interface {
	OpenPositions(ctx context.Context, owner, pool common.Address) ([]subgraph.Position, error)
}

// Result is the outcome of a state-changing operation. A failed operation
// returns its partial Result on the OpError.
type Result struct {
	Operation     string
	Pool          common.Address
	PositionID    *big.Int
	TickLower     int
	TickUpper     int
	Liquidity     *big.Int
	Amounts       elastic.TokenAmounts
	Minimums      elastic.TokenAmounts
	FeesOwed      elastic.TokenAmounts
	FeesCollected bool
	Approvals     []common.Hash
	TxHash        common.Hash
	Block         uint64
}

// Service runs the quote, trade and liquidity operations against one
// deployment.
type Service struct {
	settings Settings
	reader   bind.ContractCaller
	wallet   Wallet
	index    PositionIndex
	journal  storage.Storage
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithWallet enables state-changing operations.
func WithWallet(wallet Wallet) Option {
	return func(s *Service) { s.wallet = wallet }
}

// WithPositionIndex sets the index used to find existing positions.
func WithPositionIndex(index PositionIndex) Option {
	return func(s *Service) { s.index = index }
}

// WithJournal records every operation run in journal.
func WithJournal(journal storage.Storage) Option {
	return func(s *Service) { s.journal = journal }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service reading chain state through reader.
func New(settings Settings, reader bind.ContractCaller, opts ...Option) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("contract reader is nil")
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		settings: settings,
		reader:   reader,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings returns the service configuration.
func (s *Service) Settings() Settings {
	return s.settings
}

// PoolAddress derives the configured pool's address.
func (s *Service) PoolAddress() (common.Address, error) {
	return elastic.ComputePoolAddress(s.settings.Factory, s.settings.Token0.Address, s.settings.Token1.Address, s.settings.FeeUnits, s.settings.InitCodeHash)
}

// PoolState resolves the configured pool and reads its current state.
func (s *Service) PoolState(ctx context.Context) (dex.PoolState, error) {
	addr, err := s.PoolAddress()
	if err != nil {
		return dex.PoolState{}, fail(nil, fmt.Errorf("pool address: %w", err))
	}
	state, err := dex.ReadPoolState(ctx, s.reader, addr)
	if err != nil {
		if errors.Is(err, ErrPoolNotFound) {
			return dex.PoolState{}, fail(ErrPoolNotFound, err)
		}
		return dex.PoolState{}, chainFail(fmt.Errorf("read pool %s: %w", addr.Hex(), err))
	}
	return state, nil
}

func (s *Service) resolvePool(ctx context.Context) (dex.PoolState, elastic.Pool, error) {
	state, err := s.PoolState(ctx)
	if err != nil {
		return dex.PoolState{}, elastic.Pool{}, err
	}
	pool, err := state.Pool(s.settings.Token0, s.settings.Token1)
	if err != nil {
		return dex.PoolState{}, elastic.Pool{}, fail(nil, err)
	}
	s.logger.Debug("pool state",
		zap.String("pool", state.Address.Hex()),
		zap.String("sqrt_p", state.SqrtP.String()),
		zap.Int("tick", state.CurrentTick),
		zap.Int("tick_spacing", state.TickSpacing),
		zap.String("base_l", state.BaseL.String()),
		zap.String("reinvest_l", state.ReinvestL.String()),
	)
	return state, pool, nil
}

func (s *Service) requireWallet() (Wallet, error) {
	if s.wallet == nil {
		return nil, fail(nil, fmt.Errorf("no signing wallet configured"))
	}
	return s.wallet, nil
}

func (s *Service) deadline() *big.Int {
	return big.NewInt(s.now().Add(s.settings.Deadline).Unix())
}

// ensureAllowance raises owner's allowance of spender on token to amount
// when the current allowance is lower. It returns the approval hash, or
// the zero hash when no approval was needed.
func (s *Service) ensureAllowance(ctx context.Context, token elastic.Token, spender common.Address, amount *big.Int) (common.Hash, error) {
	owner := s.wallet.From()
	current, err := dex.Allowance(ctx, s.reader, token.Address, owner, spender)
	if err != nil {
		return common.Hash{}, chainFail(fmt.Errorf("allowance %s: %w", token.Symbol, err))
	}
	if current.Cmp(amount) >= 0 {
		s.logger.Debug("allowance sufficient",
			zap.String("token", token.Symbol),
			zap.String("allowance", current.String()),
			zap.String("required", amount.String()),
		)
		return common.Hash{}, nil
	}

	data, err := dex.PackApprove(spender, amount)
	if err != nil {
		return common.Hash{}, fail(ErrApprovalFailed, err)
	}
	tx, err := s.wallet.Send(ctx, token.Address, data, nil)
	if err != nil {
		return common.Hash{}, fail(ErrApprovalFailed, fmt.Errorf("approve %s: %w", token.Symbol, err))
	}
	receipt, err := s.wallet.WaitMined(ctx, tx)
	if err != nil {
		return tx.Hash(), fail(ErrApprovalFailed, fmt.Errorf("wait approve %s: %w", token.Symbol, err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fail(ErrApprovalFailed, fmt.Errorf("approve %s: %w in tx %s", token.Symbol, ErrTransactionReverted, tx.Hash().Hex()))
	}

	fields := []zap.Field{
		zap.String("token", token.Symbol),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()),
		zap.String("tx", tx.Hash().Hex()),
	}
	if updated, err := dex.Allowance(ctx, s.reader, token.Address, owner, spender); err == nil {
		fields = append(fields, zap.String("allowance", updated.String()))
	} else {
		s.logger.Warn("read allowance after approve failed", zap.String("token", token.Symbol), zap.Error(err))
	}
	s.logger.Info("approved", fields...)
	return tx.Hash(), nil
}

// submit sends calldata to a contract and waits for one confirmation,
// recording the hash on result once the transaction is broadcast.
func (s *Service) submit(ctx context.Context, result *Result, to common.Address, params elastic.MethodParameters) (*types.Receipt, error) {
	tx, err := s.wallet.Send(ctx, to, params.Calldata, params.Value)
	if err != nil {
		return nil, chainFail(err)
	}
	result.TxHash = tx.Hash()
	s.logger.Info("tx submitted", zap.String("tx", result.TxHash.Hex()), zap.String("to", to.Hex()))

	receipt, err := s.wallet.WaitMined(ctx, tx)
	if err != nil {
		return nil, chainFail(fmt.Errorf("wait %s: %w", result.TxHash.Hex(), err))
	}
	if receipt.BlockNumber != nil {
		result.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fail(ErrTransactionReverted, fmt.Errorf("tx %s failed in block %d", result.TxHash.Hex(), result.Block))
	}
	return receipt, nil
}

// run executes one journaled operation. fn fills result as it goes, so a
// failed run still records how far it got, and the *OpError it returns
// carries that partial result.
func (s *Service) run(ctx context.Context, op string, fn func(result *Result) error) (*Result, error) {
	rec := model.OperationRecord{
		ID:        uuid.NewString(),
		Operation: op,
		ChainID:   s.settings.ChainID,
		StartedAt: s.now().UTC(),
	}
	if s.wallet != nil {
		rec.Owner = s.wallet.From().Hex()
	}

	result := &Result{Operation: op}
	err := fn(result)
	rec.FinishedAt = s.now().UTC()
	fillRecord(&rec, result)
	if err != nil {
		opErr := withOp(op, err)
		opErr.Result = result
		err = opErr
		rec.Status = model.StatusFailed
		rec.ErrorKind = KindName(err)
		rec.Error = err.Error()
		s.logger.Error("operation failed", zap.String("op", op), zap.String("kind", rec.ErrorKind), zap.Error(err))
	} else {
		rec.Status = model.StatusSucceeded
	}

	if s.journal != nil {
		if jerr := s.journal.PutOperations(context.WithoutCancel(ctx), []model.OperationRecord{rec}); jerr != nil {
			s.logger.Warn("journal write failed", zap.String("id", rec.ID), zap.Error(jerr))
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func fillRecord(rec *model.OperationRecord, result *Result) {
	if result.Pool != (common.Address{}) {
		rec.Pool = result.Pool.Hex()
	}
	if result.PositionID != nil {
		rec.PositionID = result.PositionID.String()
	}
	if result.TickLower != 0 || result.TickUpper != 0 {
		lower, upper := result.TickLower, result.TickUpper
		rec.TickLower = &lower
		rec.TickUpper = &upper
	}
	rec.Liquidity = bigString(result.Liquidity)
	rec.Amount0 = bigString(result.Amounts.Amount0)
	rec.Amount1 = bigString(result.Amounts.Amount1)
	rec.Amount0Min = bigString(result.Minimums.Amount0)
	rec.Amount1Min = bigString(result.Minimums.Amount1)
	for _, hash := range result.Approvals {
		rec.Approvals = append(rec.Approvals, hash.Hex())
	}
	if result.TxHash != (common.Hash{}) {
		rec.TxHash = result.TxHash.Hex()
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

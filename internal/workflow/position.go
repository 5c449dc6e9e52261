package workflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"elasticOps/internal/dex"
	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
	"elasticOps/internal/subgraph"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// CreatePosition mints a new position in a symmetric band of tick
// spacings around the current tick, funded with one unit of token0.
func (s *Service) CreatePosition(ctx context.Context) (*Result, error) {
	return s.run(ctx, model.OpCreate, func(result *Result) error {
		if _, err := s.requireWallet(); err != nil {
			return err
		}
		state, pool, err := s.resolvePool(ctx)
		if err != nil {
			return err
		}
		result.Pool = state.Address

		lower, upper, err := elastic.TickBand(pool.CurrentTick, pool.TickSpacing, s.settings.BandSpacings)
		if err != nil {
			return fail(nil, err)
		}
		receipt, err := s.addLiquidity(ctx, result, state, pool, lower, upper, nil)
		if err != nil {
			return err
		}
		result.PositionID = mintedTokenID(receipt, s.settings.PositionManager)

		fields := []zap.Field{
			zap.String("tx", result.TxHash.Hex()),
			zap.Int("tick_lower", lower),
			zap.Int("tick_upper", upper),
			zap.String("liquidity", result.Liquidity.String()),
		}
		if result.PositionID != nil {
			fields = append(fields, zap.String("position_id", result.PositionID.String()))
		}
		s.logger.Info("position created", fields...)
		return nil
	})
}

// IncreaseLiquidity adds one unit of token0 worth of liquidity to the
// owner's open position with the lowest id, keeping its range.
func (s *Service) IncreaseLiquidity(ctx context.Context) (*Result, error) {
	return s.run(ctx, model.OpIncrease, func(result *Result) error {
		wallet, err := s.requireWallet()
		if err != nil {
			return err
		}
		state, pool, err := s.resolvePool(ctx)
		if err != nil {
			return err
		}
		result.Pool = state.Address

		open, err := s.selectPosition(ctx, wallet.From(), state.Address)
		if err != nil {
			return err
		}
		result.PositionID = open.ID

		if _, err := s.addLiquidity(ctx, result, state, pool, open.TickLower, open.TickUpper, open.ID); err != nil {
			return err
		}
		s.logger.Info("liquidity increased",
			zap.String("tx", result.TxHash.Hex()),
			zap.String("position_id", open.ID.String()),
			zap.String("liquidity", result.Liquidity.String()),
		)
		return nil
	})
}

// RemoveLiquidity withdraws the configured share of the liquidity of the
// owner's open position with the lowest id, collecting accrued fees in the
// same transaction.
func (s *Service) RemoveLiquidity(ctx context.Context) (*Result, error) {
	return s.run(ctx, model.OpRemove, func(result *Result) error {
		wallet, err := s.requireWallet()
		if err != nil {
			return err
		}
		state, pool, err := s.resolvePool(ctx)
		if err != nil {
			return err
		}
		result.Pool = state.Address

		open, err := s.selectPosition(ctx, wallet.From(), state.Address)
		if err != nil {
			return err
		}
		result.PositionID = open.ID
		result.TickLower, result.TickUpper = open.TickLower, open.TickUpper

		position, err := elastic.NewPosition(pool, open.TickLower, open.TickUpper, open.Liquidity)
		if err != nil {
			return fail(nil, fmt.Errorf("position %s: %w", open.ID, err))
		}

		fees, err := dex.TotalFeesOwed(ctx, s.reader, s.settings.TicksFeesReader, s.settings.PositionManager, state.Address, open.ID)
		if err != nil {
			return chainFail(fmt.Errorf("fees owed: %w", err))
		}
		result.FeesOwed = fees
		collect := fees.Amount0.Sign() > 0 || fees.Amount1.Sign() > 0
		result.FeesCollected = collect

		params, minimums, err := elastic.RemoveCallParameters(position, elastic.RemoveOptions{
			TokenID:        open.ID,
			LiquidityShare: s.settings.RemoveShare,
			Slippage:       s.settings.Slippage,
			Deadline:       s.deadline(),
			Recipient:      wallet.From(),
			FeesOwed:       fees,
			CollectFees:    collect,
		})
		if err != nil {
			return fail(nil, err)
		}
		removed := position.WithLiquidity(s.settings.RemoveShare.Of(open.Liquidity))
		expected, err := removed.Amounts()
		if err != nil {
			return fail(nil, err)
		}
		result.Liquidity = removed.Liquidity
		result.Amounts = expected
		result.Minimums = minimums

		if _, err := s.submit(ctx, result, s.settings.PositionManager, params); err != nil {
			return err
		}
		s.logger.Info("liquidity removed",
			zap.String("tx", result.TxHash.Hex()),
			zap.String("position_id", open.ID.String()),
			zap.String("liquidity", removed.Liquidity.String()),
			zap.Bool("fees_collected", collect),
		)
		return nil
	})
}

// addLiquidity funds [lower, upper) with the token0 budget, raising
// allowances as needed, and mints (tokenID nil) or increases a position.
func (s *Service) addLiquidity(ctx context.Context, result *Result, state dex.PoolState, pool elastic.Pool, lower, upper int, tokenID *big.Int) (*types.Receipt, error) {
	result.TickLower, result.TickUpper = lower, upper

	budget := s.budgetAmount0(pool)
	if budget.Sign() <= 0 {
		return nil, fail(nil, fmt.Errorf("token0 budget rounds to zero at sqrtP %s", pool.SqrtP))
	}
	position, err := elastic.PositionFromAmount0(pool, lower, upper, budget, true)
	if err != nil {
		return nil, fail(nil, err)
	}
	result.Liquidity = position.Liquidity

	amounts, err := position.MintAmounts()
	if err != nil {
		return nil, fail(nil, err)
	}
	minimums, err := position.MintAmountsWithSlippage(s.settings.Slippage)
	if err != nil {
		return nil, fail(nil, err)
	}
	result.Amounts, result.Minimums = amounts, minimums

	required := []struct {
		token  elastic.Token
		amount *big.Int
	}{
		{pool.Token0, amounts.Amount0},
		{pool.Token1, amounts.Amount1},
	}
	for _, item := range required {
		hash, err := s.ensureAllowance(ctx, item.token, s.settings.PositionManager, item.amount)
		if hash != (common.Hash{}) {
			result.Approvals = append(result.Approvals, hash)
		}
		if err != nil {
			return nil, err
		}
	}

	previousLower, _, err := dex.NearestInitializedTicks(ctx, s.reader, s.settings.TicksFeesReader, state.Address, lower)
	if err != nil {
		return nil, chainFail(fmt.Errorf("nearest ticks %d: %w", lower, err))
	}
	previousUpper, _, err := dex.NearestInitializedTicks(ctx, s.reader, s.settings.TicksFeesReader, state.Address, upper)
	if err != nil {
		return nil, chainFail(fmt.Errorf("nearest ticks %d: %w", upper, err))
	}

	params, err := elastic.AddCallParameters(position, [2]int{previousLower, previousUpper}, elastic.AddOptions{
		Recipient: s.wallet.From(),
		Slippage:  s.settings.Slippage,
		Deadline:  s.deadline(),
		TokenID:   tokenID,
	})
	if err != nil {
		return nil, fail(nil, err)
	}
	return s.submit(ctx, result, s.settings.PositionManager, params)
}

// budgetAmount0 is one unit of the configured token0 expressed in pool
// token0. When the configured token0 is the pool's token1 it is converted
// at the current price.
func (s *Service) budgetAmount0(pool elastic.Pool) *big.Int {
	unit := pow10(s.settings.Token0.Decimals)
	if pool.Token0.Address == s.settings.Token0.Address {
		return unit
	}
	num := new(big.Int).Mul(unit, elastic.Q192)
	den := new(big.Int).Mul(pool.SqrtP, pool.SqrtP)
	return num.Quo(num, den)
}

// selectPosition picks the owner's open position with the lowest id.
func (s *Service) selectPosition(ctx context.Context, owner, pool common.Address) (subgraph.Position, error) {
	if s.index == nil {
		return subgraph.Position{}, fail(nil, fmt.Errorf("no position index configured"))
	}
	positions, err := s.index.OpenPositions(ctx, owner, pool)
	if err != nil {
		return subgraph.Position{}, indexFail(fmt.Errorf("position index: %w", err))
	}

	var chosen *subgraph.Position
	for i := range positions {
		candidate := &positions[i]
		if candidate.ID == nil || candidate.Liquidity == nil || candidate.Liquidity.Sign() <= 0 {
			continue
		}
		if chosen == nil || candidate.ID.Cmp(chosen.ID) < 0 {
			chosen = candidate
		}
	}
	if chosen == nil {
		return subgraph.Position{}, fail(ErrNoOpenPosition, fmt.Errorf("owner %s has none in pool %s", owner.Hex(), pool.Hex()))
	}

	s.logger.Debug("position selected",
		zap.String("position_id", chosen.ID.String()),
		zap.Int("open_positions", len(positions)),
		zap.Int("tick_lower", chosen.TickLower),
		zap.Int("tick_upper", chosen.TickUpper),
	)
	return *chosen, nil
}

// mintedTokenID finds the id of the NFT the position manager minted in
// receipt, or nil.
func mintedTokenID(receipt *types.Receipt, positionManager common.Address) *big.Int {
	if receipt == nil {
		return nil
	}
	for _, log := range receipt.Logs {
		if log.Address != positionManager || len(log.Topics) != 4 {
			continue
		}
		if log.Topics[0] != transferTopic || log.Topics[1] != (common.Hash{}) {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[3].Bytes())
	}
	return nil
}

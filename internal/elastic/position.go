package elastic

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPriceAboveRange is returned when a token0 budget cannot fund a range
// that sits entirely below the current price.
var ErrPriceAboveRange = errors.New("current price is above the position range")

// Token identifies an ERC20 by address with its display metadata.
type Token struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// Pool is an immutable snapshot of the pool fields the position math needs.
type Pool struct {
	Token0      Token
	Token1      Token
	FeeUnits    uint32
	SqrtP       *big.Int
	CurrentTick int
	TickSpacing int
}

// NewPool validates the snapshot and fills token order.
func NewPool(tokenA, tokenB Token, feeUnits uint32, sqrtP *big.Int, currentTick, tickSpacing int) (Pool, error) {
	if sqrtP == nil || sqrtP.Sign() <= 0 {
		return Pool{}, fmt.Errorf("sqrt price must be positive")
	}
	if tickSpacing <= 0 {
		return Pool{}, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}
	token0, _, err := SortTokens(tokenA.Address, tokenB.Address)
	if err != nil {
		return Pool{}, err
	}
	if token0 != tokenA.Address {
		tokenA, tokenB = tokenB, tokenA
	}
	return Pool{
		Token0:      tokenA,
		Token1:      tokenB,
		FeeUnits:    feeUnits,
		SqrtP:       new(big.Int).Set(sqrtP),
		CurrentTick: currentTick,
		TickSpacing: tickSpacing,
	}, nil
}

// withSqrtP returns a copy of the pool repriced at sqrtP.
func (p Pool) withSqrtP(sqrtP *big.Int) (Pool, error) {
	tick, err := GetTickAtSqrtRatio(sqrtP)
	if err != nil {
		return Pool{}, err
	}
	out := p
	out.SqrtP = sqrtP
	out.CurrentTick = tick
	return out, nil
}

// TokenAmounts is a pair of raw token amounts in pool token order.
type TokenAmounts struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// Position is a liquidity amount over [TickLower, TickUpper) in a pool.
type Position struct {
	Pool      Pool
	TickLower int
	TickUpper int
	Liquidity *big.Int
}

// NewPosition checks the range against the pool's tick spacing and bounds.
func NewPosition(pool Pool, tickLower, tickUpper int, liquidity *big.Int) (Position, error) {
	if tickLower >= tickUpper {
		return Position{}, fmt.Errorf("tick lower %d must be below tick upper %d", tickLower, tickUpper)
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return Position{}, fmt.Errorf("ticks [%d, %d] out of range", tickLower, tickUpper)
	}
	if tickLower%pool.TickSpacing != 0 || tickUpper%pool.TickSpacing != 0 {
		return Position{}, fmt.Errorf("ticks [%d, %d] not multiples of spacing %d", tickLower, tickUpper, pool.TickSpacing)
	}
	if liquidity == nil || liquidity.Sign() < 0 {
		return Position{}, fmt.Errorf("liquidity must be non-negative")
	}
	return Position{
		Pool:      pool,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: new(big.Int).Set(liquidity),
	}, nil
}

// PositionFromAmounts builds the position with the most liquidity the two
// amounts can fund at the pool's current price.
func PositionFromAmounts(pool Pool, tickLower, tickUpper int, amount0, amount1 *big.Int, fullPrecision bool) (Position, error) {
	sqrtLower, sqrtUpper, err := rangeSqrtRatios(tickLower, tickUpper)
	if err != nil {
		return Position{}, err
	}
	liquidity := MaxLiquidityForAmounts(pool.SqrtP, sqrtLower, sqrtUpper, amount0, amount1, fullPrecision)
	return NewPosition(pool, tickLower, tickUpper, liquidity)
}

// PositionFromAmount0 sizes a position from a token0 budget, treating the
// token1 side as unlimited.
func PositionFromAmount0(pool Pool, tickLower, tickUpper int, amount0 *big.Int, fullPrecision bool) (Position, error) {
	if amount0 == nil || amount0.Sign() <= 0 {
		return Position{}, fmt.Errorf("amount0 must be positive")
	}
	if pool.CurrentTick >= tickUpper {
		return Position{}, ErrPriceAboveRange
	}
	return PositionFromAmounts(pool, tickLower, tickUpper, amount0, MaxUint256, fullPrecision)
}

func rangeSqrtRatios(tickLower, tickUpper int) (*big.Int, *big.Int, error) {
	sqrtLower, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtLower, sqrtUpper, nil
}

func (p Position) amounts(roundUp bool) (TokenAmounts, error) {
	sqrtLower, sqrtUpper, err := rangeSqrtRatios(p.TickLower, p.TickUpper)
	if err != nil {
		return TokenAmounts{}, err
	}

	switch {
	case p.Pool.CurrentTick < p.TickLower:
		return TokenAmounts{
			Amount0: Amount0Delta(sqrtLower, sqrtUpper, p.Liquidity, roundUp),
			Amount1: new(big.Int),
		}, nil
	case p.Pool.CurrentTick < p.TickUpper:
		return TokenAmounts{
			Amount0: Amount0Delta(p.Pool.SqrtP, sqrtUpper, p.Liquidity, roundUp),
			Amount1: Amount1Delta(sqrtLower, p.Pool.SqrtP, p.Liquidity, roundUp),
		}, nil
	default:
		return TokenAmounts{
			Amount0: new(big.Int),
			Amount1: Amount1Delta(sqrtLower, sqrtUpper, p.Liquidity, roundUp),
		}, nil
	}
}

// Amounts returns the tokens the position is worth at the current price,
// rounded down.
func (p Position) Amounts() (TokenAmounts, error) {
	return p.amounts(false)
}

// MintAmounts returns the tokens required to mint the position, rounded up.
func (p Position) MintAmounts() (TokenAmounts, error) {
	return p.amounts(true)
}

// MintAmountsWithSlippage returns the minimum amounts that must be pulled
// for the mint to succeed when the price moves within the tolerance.
func (p Position) MintAmountsWithSlippage(slippage Percent) (TokenAmounts, error) {
	poolLower, poolUpper, err := p.poolsAfterSlippage(slippage)
	if err != nil {
		return TokenAmounts{}, err
	}

	desired, err := p.MintAmounts()
	if err != nil {
		return TokenAmounts{}, err
	}
	created, err := PositionFromAmounts(p.Pool, p.TickLower, p.TickUpper, desired.Amount0, desired.Amount1, false)
	if err != nil {
		return TokenAmounts{}, err
	}

	upper := Position{Pool: poolUpper, TickLower: p.TickLower, TickUpper: p.TickUpper, Liquidity: created.Liquidity}
	lower := Position{Pool: poolLower, TickLower: p.TickLower, TickUpper: p.TickUpper, Liquidity: created.Liquidity}
	upperAmounts, err := upper.MintAmounts()
	if err != nil {
		return TokenAmounts{}, err
	}
	lowerAmounts, err := lower.MintAmounts()
	if err != nil {
		return TokenAmounts{}, err
	}
	return TokenAmounts{Amount0: upperAmounts.Amount0, Amount1: lowerAmounts.Amount1}, nil
}

// BurnAmountsWithSlippage returns the minimum amounts a burn of the whole
// position must return when the price moves within the tolerance.
func (p Position) BurnAmountsWithSlippage(slippage Percent) (TokenAmounts, error) {
	poolLower, poolUpper, err := p.poolsAfterSlippage(slippage)
	if err != nil {
		return TokenAmounts{}, err
	}

	upper := Position{Pool: poolUpper, TickLower: p.TickLower, TickUpper: p.TickUpper, Liquidity: p.Liquidity}
	lower := Position{Pool: poolLower, TickLower: p.TickLower, TickUpper: p.TickUpper, Liquidity: p.Liquidity}
	upperAmounts, err := upper.Amounts()
	if err != nil {
		return TokenAmounts{}, err
	}
	lowerAmounts, err := lower.Amounts()
	if err != nil {
		return TokenAmounts{}, err
	}
	return TokenAmounts{Amount0: upperAmounts.Amount0, Amount1: lowerAmounts.Amount1}, nil
}

// WithLiquidity returns a copy of the position holding a different liquidity.
func (p Position) WithLiquidity(liquidity *big.Int) Position {
	out := p
	out.Liquidity = new(big.Int).Set(liquidity)
	return out
}

func (p Position) poolsAfterSlippage(slippage Percent) (Pool, Pool, error) {
	if err := slippage.Validate(); err != nil {
		return Pool{}, Pool{}, err
	}

	// price = sqrtP^2 / 2^192, so sqrt(price * f) in Q64.96 is sqrt(sqrtP^2 * f)
	priceX192 := new(big.Int).Mul(p.Pool.SqrtP, p.Pool.SqrtP)
	den := big.NewInt(slippage.Den)

	lowerX192 := mulDiv(priceX192, big.NewInt(slippage.Den-slippage.Num), den)
	sqrtLower := new(big.Int).Sqrt(lowerX192)
	if sqrtLower.Cmp(MinSqrtRatio) <= 0 {
		sqrtLower = new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	}

	upperX192 := mulDiv(priceX192, big.NewInt(slippage.Den+slippage.Num), den)
	sqrtUpper := new(big.Int).Sqrt(upperX192)
	if sqrtUpper.Cmp(MaxSqrtRatio) >= 0 {
		sqrtUpper = new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
	}

	poolLower, err := p.Pool.withSqrtP(sqrtLower)
	if err != nil {
		return Pool{}, Pool{}, err
	}
	poolUpper, err := p.Pool.withSqrtP(sqrtUpper)
	if err != nil {
		return Pool{}, Pool{}, err
	}
	return poolLower, poolUpper, nil
}

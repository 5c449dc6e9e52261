package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
)

// ErrPoolNotFound is returned when no contract is deployed at a pool address.
var ErrPoolNotFound = errors.New("pool not found")

// PoolState is a point-in-time read of an Elastic pool.
type PoolState struct {
	Address            common.Address
	Token0             common.Address
	Token1             common.Address
	FeeUnits           uint32
	TickSpacing        int
	SqrtP              *big.Int
	CurrentTick        int
	NearestCurrentTick int
	BaseL              *big.Int
	ReinvestL          *big.Int
	ReinvestLLast      *big.Int
	Locked             bool
}

// ReadPoolState checks that a pool is deployed at address and reads its
// fee, spacing, liquidity and price state at the latest block.
func ReadPoolState(ctx context.Context, caller bind.ContractCaller, address common.Address) (PoolState, error) {
	if caller == nil {
		return PoolState{}, fmt.Errorf("contract caller is nil")
	}

	code, err := caller.CodeAt(ctx, address, nil)
	if err != nil {
		return PoolState{}, fmt.Errorf("code at %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return PoolState{}, fmt.Errorf("%w: no contract at %s", ErrPoolNotFound, address.Hex())
	}

	parsed, err := PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	state := PoolState{Address: address}

	values, err := callContract(ctx, caller, address, parsed, "token0")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token0, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callContract(ctx, caller, address, parsed, "token1")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token1, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callContract(ctx, caller, address, parsed, "swapFeeUnits")
	if err != nil {
		return PoolState{}, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("swap fee units: %w", err)
	}
	state.FeeUnits = uint32(fee.Uint64())

	values, err = callContract(ctx, caller, address, parsed, "tickDistance")
	if err != nil {
		return PoolState{}, err
	}
	if state.TickSpacing, err = asInt24(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("tick distance: %w", err)
	}

	values, err = callContract(ctx, caller, address, parsed, "getLiquidityState")
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 3 {
		return PoolState{}, fmt.Errorf("liquidity state: unexpected length %d", len(values))
	}
	if state.BaseL, err = asBigInt(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("base liquidity: %w", err)
	}
	if state.ReinvestL, err = asBigInt(values[1]); err != nil {
		return PoolState{}, fmt.Errorf("reinvest liquidity: %w", err)
	}
	if state.ReinvestLLast, err = asBigInt(values[2]); err != nil {
		return PoolState{}, fmt.Errorf("reinvest liquidity last: %w", err)
	}

	values, err = callContract(ctx, caller, address, parsed, "getPoolState")
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 4 {
		return PoolState{}, fmt.Errorf("pool state: unexpected length %d", len(values))
	}
	if state.SqrtP, err = asBigInt(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	if state.CurrentTick, err = asInt24(values[1]); err != nil {
		return PoolState{}, fmt.Errorf("current tick: %w", err)
	}
	if state.NearestCurrentTick, err = asInt24(values[2]); err != nil {
		return PoolState{}, fmt.Errorf("nearest current tick: %w", err)
	}
	locked, ok := values[3].(bool)
	if !ok {
		return PoolState{}, fmt.Errorf("locked: unsupported type %T", values[3])
	}
	state.Locked = locked

	return state, nil
}

// Pool converts the state into a math snapshot, attaching the metadata of
// the configured tokens. The pool must trade exactly that pair.
func (s PoolState) Pool(tokenA, tokenB elastic.Token) (elastic.Pool, error) {
	token0, token1 := tokenA, tokenB
	if token0.Address != s.Token0 {
		token0, token1 = tokenB, tokenA
	}
	if token0.Address != s.Token0 || token1.Address != s.Token1 {
		return elastic.Pool{}, fmt.Errorf("pool %s trades %s/%s, not the configured pair", s.Address.Hex(), s.Token0.Hex(), s.Token1.Hex())
	}
	return elastic.NewPool(token0, token1, s.FeeUnits, s.SqrtP, s.CurrentTick, s.TickSpacing)
}

// Meta renders the state as a storable record.
func (s PoolState) Meta() model.PoolMeta {
	return model.PoolMeta{
		Address:     s.Address.Hex(),
		Token0:      s.Token0.Hex(),
		Token1:      s.Token1.Hex(),
		FeeUnits:    s.FeeUnits,
		TickSpacing: s.TickSpacing,
		Liquidity: model.PoolLiquidity{
			BaseL:         s.BaseL.String(),
			ReinvestL:     s.ReinvestL.String(),
			ReinvestLLast: s.ReinvestLLast.String(),
		},
		Price: model.PoolPrice{
			SqrtP:              s.SqrtP.String(),
			CurrentTick:        s.CurrentTick,
			NearestCurrentTick: s.NearestCurrentTick,
			Locked:             s.Locked,
		},
	}
}

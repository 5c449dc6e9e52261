package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"elasticOps/internal/elastic"
)

// NearestInitializedTicks asks the ticks reader helper for the initialized
// ticks surrounding tick in pool.
func NearestInitializedTicks(ctx context.Context, caller ethereum.ContractCaller, reader, pool common.Address, tick int) (int, int, error) {
	parsed, err := TicksFeesReaderABI()
	if err != nil {
		return 0, 0, fmt.Errorf("parse ticks reader abi: %w", err)
	}
	values, err := callContract(ctx, caller, reader, parsed, "getNearestInitializedTicks", pool, big.NewInt(int64(tick)))
	if err != nil {
		return 0, 0, err
	}
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("nearest ticks: unexpected length %d", len(values))
	}
	previous, err := asInt24(values[0])
	if err != nil {
		return 0, 0, fmt.Errorf("previous tick: %w", err)
	}
	next, err := asInt24(values[1])
	if err != nil {
		return 0, 0, fmt.Errorf("next tick: %w", err)
	}
	return previous, next, nil
}

// TotalFeesOwed returns the uncollected fees accrued to a position.
func TotalFeesOwed(ctx context.Context, caller ethereum.ContractCaller, reader, positionManager, pool common.Address, tokenID *big.Int) (elastic.TokenAmounts, error) {
	parsed, err := TicksFeesReaderABI()
	if err != nil {
		return elastic.TokenAmounts{}, fmt.Errorf("parse ticks reader abi: %w", err)
	}
	values, err := callContract(ctx, caller, reader, parsed, "getTotalFeesOwedToPosition", positionManager, pool, tokenID)
	if err != nil {
		return elastic.TokenAmounts{}, err
	}
	if len(values) < 2 {
		return elastic.TokenAmounts{}, fmt.Errorf("fees owed: unexpected length %d", len(values))
	}
	owed0, err := asBigInt(values[0])
	if err != nil {
		return elastic.TokenAmounts{}, fmt.Errorf("token0 owed: %w", err)
	}
	owed1, err := asBigInt(values[1])
	if err != nil {
		return elastic.TokenAmounts{}, fmt.Errorf("token1 owed: %w", err)
	}
	return elastic.TokenAmounts{Amount0: owed0, Amount1: owed1}, nil
}

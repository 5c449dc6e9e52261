package elastic

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MethodParameters is the calldata and native value for a contract call.
type MethodParameters struct {
	Calldata []byte
	Value    *big.Int
}

type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	TicksPrevious  [2]*big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type IncreaseLiquidityParams struct {
	TokenId        *big.Int
	TicksPrevious  [2]*big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

type RemoveLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type BurnRTokenParams struct {
	TokenId    *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type ExactInputSingleParams struct {
	TokenIn      common.Address
	TokenOut     common.Address
	Fee          *big.Int
	Recipient    common.Address
	Deadline     *big.Int
	AmountIn     *big.Int
	MinAmountOut *big.Int
	LimitSqrtP   *big.Int
}

type QuoteExactInputSingleParams struct {
	TokenIn    common.Address
	TokenOut   common.Address
	AmountIn   *big.Int
	FeeUnits   *big.Int
	LimitSqrtP *big.Int
}

// QuoteOutput is the quoter's simulated swap result.
type QuoteOutput struct {
	UsedAmount              *big.Int
	ReturnedAmount          *big.Int
	AfterSqrtP              *big.Int
	InitializedTicksCrossed uint32
	GasEstimate             *big.Int
}

// AddOptions configures a mint or, when TokenID is set, an increase.
type AddOptions struct {
	Recipient common.Address
	Slippage  Percent
	Deadline  *big.Int
	TokenID   *big.Int
}

// AddCallParameters encodes a mint of a new position, or an increase of
// an existing one, for the given position and previous-initialized-tick
// hints.
func AddCallParameters(position Position, ticksPrevious [2]int, opts AddOptions) (MethodParameters, error) {
	if position.Liquidity.Sign() <= 0 {
		return MethodParameters{}, fmt.Errorf("position liquidity must be positive")
	}
	if opts.Deadline == nil {
		return MethodParameters{}, fmt.Errorf("deadline is required")
	}

	desired, err := position.MintAmounts()
	if err != nil {
		return MethodParameters{}, err
	}
	minimum, err := position.MintAmountsWithSlippage(opts.Slippage)
	if err != nil {
		return MethodParameters{}, err
	}

	pmABI, err := PositionManagerABI()
	if err != nil {
		return MethodParameters{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	hints := [2]*big.Int{big.NewInt(int64(ticksPrevious[0])), big.NewInt(int64(ticksPrevious[1]))}

	var call []byte
	if opts.TokenID == nil {
		call, err = pmABI.Pack("mint", MintParams{
			Token0:         position.Pool.Token0.Address,
			Token1:         position.Pool.Token1.Address,
			Fee:            new(big.Int).SetUint64(uint64(position.Pool.FeeUnits)),
			TickLower:      big.NewInt(int64(position.TickLower)),
			TickUpper:      big.NewInt(int64(position.TickUpper)),
			TicksPrevious:  hints,
			Amount0Desired: desired.Amount0,
			Amount1Desired: desired.Amount1,
			Amount0Min:     minimum.Amount0,
			Amount1Min:     minimum.Amount1,
			Recipient:      opts.Recipient,
			Deadline:       opts.Deadline,
		})
		if err != nil {
			return MethodParameters{}, fmt.Errorf("pack mint: %w", err)
		}
	} else {
		call, err = pmABI.Pack("addLiquidity", IncreaseLiquidityParams{
			TokenId:        opts.TokenID,
			TicksPrevious:  hints,
			Amount0Desired: desired.Amount0,
			Amount1Desired: desired.Amount1,
			Amount0Min:     minimum.Amount0,
			Amount1Min:     minimum.Amount1,
			Deadline:       opts.Deadline,
		})
		if err != nil {
			return MethodParameters{}, fmt.Errorf("pack addLiquidity: %w", err)
		}
	}

	calldata, err := EncodeMulticall([][]byte{call})
	if err != nil {
		return MethodParameters{}, err
	}
	return MethodParameters{Calldata: calldata, Value: new(big.Int)}, nil
}

// RemoveOptions configures a partial liquidity removal with fee collection.
type RemoveOptions struct {
	TokenID        *big.Int
	LiquidityShare Percent
	Slippage       Percent
	Deadline       *big.Int
	Recipient      common.Address
	FeesOwed       TokenAmounts
	CollectFees    bool
}

// RemoveCallParameters encodes the removal of a share of the position's
// liquidity and the transfer of the withdrawn tokens to the recipient.
// It returns the calldata and the slippage-protected burn minimums.
func RemoveCallParameters(position Position, opts RemoveOptions) (MethodParameters, TokenAmounts, error) {
	if opts.TokenID == nil {
		return MethodParameters{}, TokenAmounts{}, fmt.Errorf("token id is required")
	}
	if opts.Deadline == nil {
		return MethodParameters{}, TokenAmounts{}, fmt.Errorf("deadline is required")
	}
	if err := opts.LiquidityShare.Validate(); err != nil {
		return MethodParameters{}, TokenAmounts{}, err
	}

	partial := position.WithLiquidity(opts.LiquidityShare.Of(position.Liquidity))
	if partial.Liquidity.Sign() <= 0 {
		return MethodParameters{}, TokenAmounts{}, fmt.Errorf("liquidity to remove is zero")
	}

	minimum, err := partial.BurnAmountsWithSlippage(opts.Slippage)
	if err != nil {
		return MethodParameters{}, TokenAmounts{}, err
	}

	pmABI, err := PositionManagerABI()
	if err != nil {
		return MethodParameters{}, TokenAmounts{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	calls := make([][]byte, 0, 4)
	call, err := pmABI.Pack("removeLiquidity", RemoveLiquidityParams{
		TokenId:    opts.TokenID,
		Liquidity:  partial.Liquidity,
		Amount0Min: minimum.Amount0,
		Amount1Min: minimum.Amount1,
		Deadline:   opts.Deadline,
	})
	if err != nil {
		return MethodParameters{}, TokenAmounts{}, fmt.Errorf("pack removeLiquidity: %w", err)
	}
	calls = append(calls, call)

	if opts.CollectFees {
		call, err = pmABI.Pack("burnRTokens", BurnRTokenParams{
			TokenId:    opts.TokenID,
			Amount0Min: new(big.Int),
			Amount1Min: new(big.Int),
			Deadline:   opts.Deadline,
		})
		if err != nil {
			return MethodParameters{}, TokenAmounts{}, fmt.Errorf("pack burnRTokens: %w", err)
		}
		calls = append(calls, call)
	}

	owed0, owed1 := new(big.Int), new(big.Int)
	if opts.FeesOwed.Amount0 != nil {
		owed0.Set(opts.FeesOwed.Amount0)
	}
	if opts.FeesOwed.Amount1 != nil {
		owed1.Set(opts.FeesOwed.Amount1)
	}
	transfers := []struct {
		token common.Address
		min   *big.Int
	}{
		{position.Pool.Token0.Address, owed0.Add(owed0, minimum.Amount0)},
		{position.Pool.Token1.Address, owed1.Add(owed1, minimum.Amount1)},
	}
	for _, transfer := range transfers {
		call, err = pmABI.Pack("transferAllTokens", transfer.token, transfer.min, opts.Recipient)
		if err != nil {
			return MethodParameters{}, TokenAmounts{}, fmt.Errorf("pack transferAllTokens: %w", err)
		}
		calls = append(calls, call)
	}

	calldata, err := EncodeMulticall(calls)
	if err != nil {
		return MethodParameters{}, TokenAmounts{}, err
	}
	return MethodParameters{Calldata: calldata, Value: new(big.Int)}, minimum, nil
}

// Trade is an exact-input single-pool swap whose amounts come from an
// external quote rather than local simulation.
type Trade struct {
	TokenIn   Token
	TokenOut  Token
	FeeUnits  uint32
	AmountIn  *big.Int
	AmountOut *big.Int
}

// MinimumAmountOut is the least output the trade accepts under slippage.
func (t Trade) MinimumAmountOut(slippage Percent) *big.Int {
	return MinimumAmountOut(t.AmountOut, slippage)
}

// SwapOptions configures swap calldata.
type SwapOptions struct {
	Slippage  Percent
	Recipient common.Address
	Deadline  *big.Int
}

// SwapCallParameters encodes an exact-input single swap through the router.
func SwapCallParameters(trade Trade, opts SwapOptions) (MethodParameters, error) {
	if trade.AmountIn == nil || trade.AmountIn.Sign() <= 0 {
		return MethodParameters{}, fmt.Errorf("trade amount in must be positive")
	}
	if trade.AmountOut == nil || trade.AmountOut.Sign() < 0 {
		return MethodParameters{}, fmt.Errorf("trade amount out must be non-negative")
	}
	if opts.Deadline == nil {
		return MethodParameters{}, fmt.Errorf("deadline is required")
	}
	if err := opts.Slippage.Validate(); err != nil {
		return MethodParameters{}, err
	}

	routerABI, err := RouterABI()
	if err != nil {
		return MethodParameters{}, fmt.Errorf("parse router abi: %w", err)
	}
	calldata, err := routerABI.Pack("swapExactInputSingle", ExactInputSingleParams{
		TokenIn:      trade.TokenIn.Address,
		TokenOut:     trade.TokenOut.Address,
		Fee:          new(big.Int).SetUint64(uint64(trade.FeeUnits)),
		Recipient:    opts.Recipient,
		Deadline:     opts.Deadline,
		AmountIn:     trade.AmountIn,
		MinAmountOut: trade.MinimumAmountOut(opts.Slippage),
		LimitSqrtP:   new(big.Int),
	})
	if err != nil {
		return MethodParameters{}, fmt.Errorf("pack swapExactInputSingle: %w", err)
	}
	return MethodParameters{Calldata: calldata, Value: new(big.Int)}, nil
}

// QuoteCallParameters encodes a quoter call for an exact-input single swap
// with no price limit.
func QuoteCallParameters(tokenIn, tokenOut common.Address, amountIn *big.Int, feeUnits uint32) ([]byte, error) {
	quoterABI, err := QuoterABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	data, err := quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		FeeUnits:   new(big.Int).SetUint64(uint64(feeUnits)),
		LimitSqrtP: new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}
	return data, nil
}

// DecodeQuote decodes the quoter's return data.
func DecodeQuote(data []byte) (QuoteOutput, error) {
	quoterABI, err := QuoterABI()
	if err != nil {
		return QuoteOutput{}, fmt.Errorf("parse quoter abi: %w", err)
	}
	values, err := quoterABI.Unpack("quoteExactInputSingle", data)
	if err != nil {
		return QuoteOutput{}, fmt.Errorf("unpack quoteExactInputSingle: %w", err)
	}
	if len(values) != 1 {
		return QuoteOutput{}, fmt.Errorf("unexpected quote output length %d", len(values))
	}
	var out QuoteOutput
	if err := convertTuple(values[0], &out); err != nil {
		return QuoteOutput{}, fmt.Errorf("quote output: %w", err)
	}
	return out, nil
}

// EncodeMulticall wraps more than one call in a multicall; a single call is
// returned as is.
func EncodeMulticall(calls [][]byte) ([]byte, error) {
	switch len(calls) {
	case 0:
		return nil, fmt.Errorf("no calls to encode")
	case 1:
		return calls[0], nil
	}
	pmABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	data, err := pmABI.Pack("multicall", calls)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}
	return data, nil
}

// DecodeMulticall splits position manager calldata into its inner calls.
// Calldata that is not a multicall is returned as a single call.
func DecodeMulticall(calldata []byte) ([][]byte, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	pmABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	method := pmABI.Methods["multicall"]
	if !bytes.Equal(calldata[:4], method.ID) {
		return [][]byte{calldata}, nil
	}
	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack multicall: %w", err)
	}
	calls, ok := values[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected multicall payload %T", values[0])
	}
	return calls, nil
}

// DecodeCall unpacks the single tuple argument of a call into out.
func DecodeCall(parsed abi.ABI, calldata []byte, out interface{}) (string, error) {
	if len(calldata) < 4 {
		return "", fmt.Errorf("calldata too short")
	}
	method, err := parsed.MethodById(calldata[:4])
	if err != nil {
		return "", err
	}
	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return method.Name, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	if len(values) != 1 {
		return method.Name, fmt.Errorf("%s has %d arguments", method.Name, len(values))
	}
	if err := convertTuple(values[0], out); err != nil {
		return method.Name, fmt.Errorf("%s: %w", method.Name, err)
	}
	return method.Name, nil
}

func convertTuple(value interface{}, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("convert %T: %v", value, r)
		}
	}()
	abi.ConvertType(value, out)
	return nil
}

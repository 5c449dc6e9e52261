package workflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"elasticOps/internal/elastic"
	"elasticOps/internal/model"
)

// Quote is a quoter result for selling one unit of the configured token0.
type Quote struct {
	Pool     common.Address
	TokenIn  elastic.Token
	TokenOut elastic.Token
	FeeUnits uint32
	AmountIn *big.Int
	Output   elastic.QuoteOutput
}

// UsedAmount is the input the quoter consumed, in display units.
func (q *Quote) UsedAmount() decimal.Decimal {
	return toDisplay(q.Output.UsedAmount, q.TokenIn.Decimals)
}

// ReturnedAmount is the quoted output, in display units.
func (q *Quote) ReturnedAmount() decimal.Decimal {
	return toDisplay(q.Output.ReturnedAmount, q.TokenOut.Decimals)
}

// ExecutionPrice is TokenOut received per TokenIn spent.
func (q *Quote) ExecutionPrice() decimal.Decimal {
	used := q.UsedAmount()
	if used.IsZero() {
		return decimal.Zero
	}
	return q.ReturnedAmount().DivRound(used, int32(q.TokenOut.Decimals))
}

// AfterPrice is the pool price after the swap, as TokenOut per TokenIn.
func (q *Quote) AfterPrice() decimal.Decimal {
	return SpotPrice(q.Output.AfterSqrtP, q.TokenIn, q.TokenOut)
}

// SpotPrice converts a Q64.96 sqrt price into display units of quote per
// base, whichever of the two is the pool's token0.
func SpotPrice(sqrtP *big.Int, base, quote elastic.Token) decimal.Decimal {
	if sqrtP == nil || sqrtP.Sign() == 0 {
		return decimal.Zero
	}
	ratio := new(big.Int).Mul(sqrtP, sqrtP)
	num := decimal.NewFromBigInt(ratio, 0)
	den := decimal.NewFromBigInt(elastic.Q192, 0)
	if base.Address.Cmp(quote.Address) > 0 {
		num, den = den, num
	}
	num = num.Shift(int32(base.Decimals))
	den = den.Shift(int32(quote.Decimals))
	return num.DivRound(den, int32(quote.Decimals)+2)
}

func toDisplay(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// Quote asks the quoter how much token1 one unit of token0 buys. The call
// is simulated with eth_call and changes no state.
func (s *Service) Quote(ctx context.Context) (*Quote, error) {
	var quote *Quote
	_, err := s.run(ctx, model.OpQuote, func(result *Result) error {
		state, _, err := s.resolvePool(ctx)
		if err != nil {
			return err
		}
		result.Pool = state.Address

		tokenIn, tokenOut := s.settings.Token0, s.settings.Token1
		amountIn := pow10(tokenIn.Decimals)
		data, err := elastic.QuoteCallParameters(tokenIn.Address, tokenOut.Address, amountIn, state.FeeUnits)
		if err != nil {
			return fail(nil, err)
		}
		to := s.settings.Quoter
		ret, err := s.reader.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			return chainFail(fmt.Errorf("call quoter: %w", err))
		}
		out, err := elastic.DecodeQuote(ret)
		if err != nil {
			return fail(nil, err)
		}

		quote = &Quote{
			Pool:     state.Address,
			TokenIn:  tokenIn,
			TokenOut: tokenOut,
			FeeUnits: state.FeeUnits,
			AmountIn: amountIn,
			Output:   out,
		}
		result.Amounts = elastic.TokenAmounts{Amount0: out.UsedAmount, Amount1: out.ReturnedAmount}

		s.logger.Info("quote",
			zap.String("pool", state.Address.Hex()),
			zap.String("used", quote.UsedAmount().String()+" "+tokenIn.Symbol),
			zap.String("returned", quote.ReturnedAmount().String()+" "+tokenOut.Symbol),
			zap.String("after_sqrt_p", out.AfterSqrtP.String()),
			zap.Uint32("ticks_crossed", out.InitializedTicksCrossed),
			zap.String("gas_estimate", out.GasEstimate.String()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// Trade swaps the quote's input through the router, accepting no less
// than the quoted output reduced by the slippage tolerance.
func (s *Service) Trade(ctx context.Context, quote *Quote) (*Result, error) {
	return s.run(ctx, model.OpTrade, func(result *Result) error {
		if quote == nil {
			return fail(nil, fmt.Errorf("quote is nil"))
		}
		wallet, err := s.requireWallet()
		if err != nil {
			return err
		}
		result.Pool = quote.Pool

		trade := elastic.Trade{
			TokenIn:   quote.TokenIn,
			TokenOut:  quote.TokenOut,
			FeeUnits:  quote.FeeUnits,
			AmountIn:  quote.Output.UsedAmount,
			AmountOut: quote.Output.ReturnedAmount,
		}
		if trade.AmountIn == nil || trade.AmountIn.Sign() == 0 {
			trade.AmountIn = quote.AmountIn
		}
		minOut := trade.MinimumAmountOut(s.settings.Slippage)
		result.Amounts = elastic.TokenAmounts{Amount0: trade.AmountIn, Amount1: trade.AmountOut}
		result.Minimums = elastic.TokenAmounts{Amount0: trade.AmountIn, Amount1: minOut}

		approval, err := s.ensureAllowance(ctx, trade.TokenIn, s.settings.Router, trade.AmountIn)
		if approval != (common.Hash{}) {
			result.Approvals = append(result.Approvals, approval)
		}
		if err != nil {
			return err
		}

		params, err := elastic.SwapCallParameters(trade, elastic.SwapOptions{
			Slippage:  s.settings.Slippage,
			Recipient: wallet.From(),
			Deadline:  s.deadline(),
		})
		if err != nil {
			return fail(nil, err)
		}

		if _, err := s.submit(ctx, result, s.settings.Router, params); err != nil {
			return err
		}

		s.logger.Info("trade executed",
			zap.String("tx", result.TxHash.Hex()),
			zap.String("amount_in", toDisplay(trade.AmountIn, trade.TokenIn.Decimals).String()+" "+trade.TokenIn.Symbol),
			zap.String("min_out", toDisplay(minOut, trade.TokenOut.Decimals).String()+" "+trade.TokenOut.Symbol),
		)
		return nil
	})
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

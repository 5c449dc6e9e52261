package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"elasticOps/internal/elastic"
	"elasticOps/internal/workflow"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	quote, err := s.service.Quote(s.ctx)
	if err != nil {
		return err
	}
	printQuote(cmd.OutOrStdout(), quote)
	return nil
}

func runTrade(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{wallet: true})
	if err != nil {
		return err
	}
	defer s.close()

	quote, err := s.service.Quote(s.ctx)
	if err != nil {
		return err
	}
	printQuote(cmd.OutOrStdout(), quote)

	result, err := s.service.Trade(s.ctx, quote)
	if err != nil {
		printPartial(cmd.ErrOrStderr(), err)
		return err
	}
	settings := s.service.Settings()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "swapped:        %s %s\n", display(result.Amounts.Amount0, quote.TokenIn), quote.TokenIn.Symbol)
	fmt.Fprintf(out, "min out:        %s %s (slippage %s)\n", display(result.Minimums.Amount1, quote.TokenOut), quote.TokenOut.Symbol, settings.Slippage)
	printTx(out, result)
	return nil
}

func runCreate(cmd *cobra.Command, _ []string) error {
	return runLiquidity(cmd, (*workflow.Service).CreatePosition)
}

func runIncrease(cmd *cobra.Command, _ []string) error {
	return runLiquidity(cmd, (*workflow.Service).IncreaseLiquidity)
}

func runRemove(cmd *cobra.Command, _ []string) error {
	return runLiquidity(cmd, (*workflow.Service).RemoveLiquidity)
}

func runLiquidity(cmd *cobra.Command, op func(*workflow.Service, context.Context) (*workflow.Result, error)) error {
	s, err := openSession(cmd, sessionOptions{wallet: true, index: true})
	if err != nil {
		return err
	}
	defer s.close()

	result, err := op(s.service, s.ctx)
	if err != nil {
		printPartial(cmd.ErrOrStderr(), err)
		return err
	}
	printPosition(cmd.OutOrStdout(), s.service.Settings(), result)
	return nil
}

func printQuote(out io.Writer, q *workflow.Quote) {
	fmt.Fprintf(out, "pool:           %s (fee units %d)\n", q.Pool.Hex(), q.FeeUnits)
	fmt.Fprintf(out, "used amount:    %s %s\n", q.UsedAmount(), q.TokenIn.Symbol)
	fmt.Fprintf(out, "returned:       %s %s\n", q.ReturnedAmount(), q.TokenOut.Symbol)
	fmt.Fprintf(out, "price:          %s %s per %s\n", q.ExecutionPrice(), q.TokenOut.Symbol, q.TokenIn.Symbol)
	fmt.Fprintf(out, "after price:    %s %s per %s\n", q.AfterPrice(), q.TokenOut.Symbol, q.TokenIn.Symbol)
	fmt.Fprintf(out, "after sqrtP:    %s\n", q.Output.AfterSqrtP)
	fmt.Fprintf(out, "ticks crossed:  %d\n", q.Output.InitializedTicksCrossed)
	fmt.Fprintf(out, "gas estimate:   %s\n", q.Output.GasEstimate)
}

func printPosition(out io.Writer, settings workflow.Settings, r *workflow.Result) {
	token0, token1 := settings.Token0, settings.Token1
	if token0.Address.Cmp(token1.Address) > 0 {
		token0, token1 = token1, token0
	}

	fmt.Fprintf(out, "operation:      %s\n", r.Operation)
	fmt.Fprintf(out, "pool:           %s\n", r.Pool.Hex())
	if r.PositionID != nil {
		fmt.Fprintf(out, "position:       %s\n", r.PositionID)
	}
	fmt.Fprintf(out, "range:          [%d, %d]\n", r.TickLower, r.TickUpper)
	fmt.Fprintf(out, "liquidity:      %s\n", r.Liquidity)
	fmt.Fprintf(out, "amounts:        %s %s / %s %s\n", display(r.Amounts.Amount0, token0), token0.Symbol, display(r.Amounts.Amount1, token1), token1.Symbol)
	fmt.Fprintf(out, "minimums:       %s %s / %s %s\n", display(r.Minimums.Amount0, token0), token0.Symbol, display(r.Minimums.Amount1, token1), token1.Symbol)
	if r.FeesCollected {
		fmt.Fprintf(out, "fees collected: %s %s / %s %s\n", display(r.FeesOwed.Amount0, token0), token0.Symbol, display(r.FeesOwed.Amount1, token1), token1.Symbol)
	}
	printTx(out, r)
}

func printTx(out io.Writer, r *workflow.Result) {
	for _, hash := range r.Approvals {
		fmt.Fprintf(out, "approval tx:    %s\n", hash.Hex())
	}
	fmt.Fprintf(out, "tx:             %s (block %d)\n", r.TxHash.Hex(), r.Block)
}

// printPartial lists the transactions a failed operation already sent.
func printPartial(out io.Writer, err error) {
	var opErr *workflow.OpError
	if !errors.As(err, &opErr) || opErr.Result == nil {
		return
	}
	for _, hash := range opErr.Result.Approvals {
		fmt.Fprintf(out, "approval tx:    %s\n", hash.Hex())
	}
	if opErr.Result.TxHash != (common.Hash{}) {
		fmt.Fprintf(out, "tx:             %s (block %d)\n", opErr.Result.TxHash.Hex(), opErr.Result.Block)
	}
}

func display(amount *big.Int, token elastic.Token) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(token.Decimals)).String()
}

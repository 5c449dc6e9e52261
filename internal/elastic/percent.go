package elastic

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Percent is a fraction Num/Den, used for slippage and removal shares.
type Percent struct {
	Num int64
	Den int64
}

// BasisPoints returns bps/10000.
func BasisPoints(bps int64) Percent {
	return Percent{Num: bps, Den: 10000}
}

func (p Percent) Validate() error {
	if p.Den <= 0 {
		return fmt.Errorf("percent denominator must be positive: %d", p.Den)
	}
	if p.Num < 0 || p.Num > p.Den {
		return fmt.Errorf("percent %d/%d out of range", p.Num, p.Den)
	}
	return nil
}

// Of returns floor(value * p).
func (p Percent) Of(value *big.Int) *big.Int {
	out := new(big.Int).Mul(value, big.NewInt(p.Num))
	return out.Quo(out, big.NewInt(p.Den))
}

func (p Percent) Decimal() decimal.Decimal {
	return decimal.NewFromInt(p.Num).DivRound(decimal.NewFromInt(p.Den), 8)
}

func (p Percent) String() string {
	return p.Decimal().Mul(decimal.NewFromInt(100)).String() + "%"
}

// MinimumAmountOut applies slippage to an exact-input output amount:
// floor(amountOut / (1 + p)).
func MinimumAmountOut(amountOut *big.Int, slippage Percent) *big.Int {
	out := new(big.Int).Mul(amountOut, big.NewInt(slippage.Den))
	return out.Quo(out, big.NewInt(slippage.Den+slippage.Num))
}

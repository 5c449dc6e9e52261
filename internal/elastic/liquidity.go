package elastic

import "math/big"

func mulDiv(a, b, denominator *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, denominator)
}

func mulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	return divRoundingUp(new(big.Int).Mul(a, b), denominator)
}

func divRoundingUp(a, denominator *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, denominator, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func ordered(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// Amount0Delta returns the token0 amount between two sqrt prices for a
// given liquidity.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtB), sqrtA)
	}
	return new(big.Int).Quo(mulDiv(numerator1, numerator2, sqrtB), sqrtA)
}

// Amount1Delta returns the token1 amount between two sqrt prices for a
// given liquidity.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	return mulDiv(liquidity, diff, Q96)
}

func liquidityForAmount0Imprecise(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	intermediate := mulDiv(sqrtA, sqrtB, Q96)
	return mulDiv(amount0, intermediate, new(big.Int).Sub(sqrtB, sqrtA))
}

func liquidityForAmount0Precise(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	numerator := new(big.Int).Mul(amount0, sqrtA)
	numerator.Mul(numerator, sqrtB)
	denominator := new(big.Int).Mul(Q96, new(big.Int).Sub(sqrtB, sqrtA))
	return numerator.Quo(numerator, denominator)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	return mulDiv(amount1, Q96, new(big.Int).Sub(sqrtB, sqrtA))
}

// MaxLiquidityForAmounts returns the largest liquidity the two amounts can
// fund over [sqrtA, sqrtB] at the current sqrt price.
func MaxLiquidityForAmounts(sqrtCurrent, sqrtA, sqrtB, amount0, amount1 *big.Int, fullPrecision bool) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	forAmount0 := liquidityForAmount0Imprecise
	if fullPrecision {
		forAmount0 = liquidityForAmount0Precise
	}

	switch {
	case sqrtCurrent.Cmp(sqrtA) <= 0:
		return forAmount0(sqrtA, sqrtB, amount0)
	case sqrtCurrent.Cmp(sqrtB) < 0:
		l0 := forAmount0(sqrtCurrent, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtCurrent, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// EncodeSqrtRatioX96 returns floor(sqrt(amount1/amount0) * 2^96).
func EncodeSqrtRatioX96(amount1, amount0 *big.Int) *big.Int {
	ratioX192 := new(big.Int).Lsh(amount1, 192)
	ratioX192.Quo(ratioX192, amount0)
	return ratioX192.Sqrt(ratioX192)
}

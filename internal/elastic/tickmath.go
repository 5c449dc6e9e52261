package elastic

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	MinSqrtRatio = big.NewInt(4295128739)
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// sqrtRatioConsts holds the two seed values followed by the per-bit
// multipliers applied while walking the absolute tick.
var sqrtRatioConsts = [21]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0x100000000000000000000000000000000"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 value.
func GetSqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range", tick)
	}

	absTick := uint64(tick)
	if tick < 0 {
		absTick = uint64(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(sqrtRatioConsts[0])
	} else {
		ratio.Set(sqrtRatioConsts[1])
	}
	for i := 0; i < 19; i++ {
		if absTick&(uint64(1)<<(i+1)) != 0 {
			ratio.Mul(ratio, sqrtRatioConsts[i+2])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		max := new(uint256.Int).SubUint64(new(uint256.Int), 1)
		ratio.Div(max, ratio)
	}

	// round up when shifting Q128.128 down to Q64.96
	rem := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}

	return ratio.ToBig(), nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtP.
func GetTickAtSqrtRatio(sqrtP *big.Int) (int, error) {
	if sqrtP == nil {
		return 0, fmt.Errorf("sqrt price is nil")
	}
	if sqrtP.Cmp(MinSqrtRatio) < 0 || sqrtP.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("sqrt price %s out of range", sqrtP.String())
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := GetSqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtP) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// NearestUsableTick rounds tick to the closest multiple of tickSpacing,
// halves rounding towards positive infinity, kept inside the tick bounds.
func NearestUsableTick(tick, tickSpacing int) (int, error) {
	if tickSpacing <= 0 {
		return 0, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("tick %d out of range", tick)
	}

	rounded := floorDiv(2*tick+tickSpacing, 2*tickSpacing) * tickSpacing
	if rounded < MinTick {
		return rounded + tickSpacing, nil
	}
	if rounded > MaxTick {
		return rounded - tickSpacing, nil
	}
	return rounded, nil
}

// TickBand returns the range of band spacings either side of the usable
// tick nearest to currentTick.
func TickBand(currentTick, tickSpacing, band int) (int, int, error) {
	if band <= 0 {
		return 0, 0, fmt.Errorf("band must be positive: %d", band)
	}
	center, err := NearestUsableTick(currentTick, tickSpacing)
	if err != nil {
		return 0, 0, err
	}
	lower := center - band*tickSpacing
	upper := center + band*tickSpacing
	if lower < MinTick || upper > MaxTick {
		return 0, 0, fmt.Errorf("band [%d, %d] exceeds tick bounds", lower, upper)
	}
	return lower, upper, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid big int constant: " + s)
	}
	return v
}

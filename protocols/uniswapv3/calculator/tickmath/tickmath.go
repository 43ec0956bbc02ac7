package tickmath

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

var (
	// MIN_TICK is the minimum tick that may be passed to GetSqrtRatioAtTick.
	MIN_TICK = int32(-887272)
	// MAX_TICK is the maximum tick that may be passed to GetSqrtRatioAtTick.
	MAX_TICK = int32(887272)

	// MIN_SQRT_RATIO is the minimum value that can be returned from GetSqrtRatioAtTick.
	MIN_SQRT_RATIO = uint256.MustFromDecimal("4295128739")
	// MAX_SQRT_RATIO is the maximum value that can be returned from GetSqrtRatioAtTick.
	MAX_SQRT_RATIO = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	// Q96 is 2^96, the sqrt price at tick 0.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	one        = uint256.NewInt(1)
	maxUint256 = new(uint256.Int).SetAllOne()

	// Constants for GetSqrtRatioAtTick.
	// These represent sqrt(1.0001^2^i) in UQ128.128 for i in 0..19, and a mask.
	ratioConstants = [22]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),  // sqrt(1.0001^1)
		uint256.MustFromHex("0x100000000000000000000000000000000"), // 1 in UQ128.128
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),  // sqrt(1.0001^2)
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),  // sqrt(1.0001^4)
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),  // sqrt(1.0001^8)
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),  // sqrt(1.0001^16)
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),  // sqrt(1.0001^32)
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),  // sqrt(1.0001^64)
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),  // sqrt(1.0001^128)
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),  // sqrt(1.0001^256)
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),  // sqrt(1.0001^512)
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),  // sqrt(1.0001^1024)
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),  // sqrt(1.0001^2048)
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),  // sqrt(1.0001^4096)
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),  // sqrt(1.0001^8192)
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),  // sqrt(1.0001^16384)
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),  // sqrt(1.0001^32768)
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),   // sqrt(1.0001^65536)
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),    // sqrt(1.0001^131072)
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),      // sqrt(1.0001^262144)
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),           // sqrt(1.0001^524288)
		uint256.MustFromHex("0xffffffff"),                          // mask for rounding
	}

	// log_sqrt(1.0001)(2) in Q128, and the error bounds of the 14-round log2 approximation.
	logSqrt10001   = uint256.MustFromDecimal("255738958999603826347141")
	tickLowOffset  = uint256.MustFromDecimal("3402992956809132418596140100660247210")
	tickHighOffset = uint256.MustFromDecimal("291339464771989622907027621153398088495")
)

// tickMath holds reusable scratch values to avoid allocations.
type tickMath struct {
	ratio uint256.Int
	rem   uint256.Int
	r     uint256.Int
	f     uint256.Int
	log2  uint256.Int
	tmp   uint256.Int
	price uint256.Int
}

// pool manages a pool of tickMath objects for safe concurrent use.
var pool = sync.Pool{
	New: func() any {
		return new(tickMath)
	},
}

// GetSqrtRatioAtTick calculates sqrt(1.0001^tick) * 2^96 into dest.
func GetSqrtRatioAtTick(dest *uint256.Int, tick int32) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return ErrTickOutOfBounds
	}

	tm := pool.Get().(*tickMath)
	defer pool.Put(tm)

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	ratio := &tm.ratio
	if absTick&0x1 != 0 {
		ratio.Set(ratioConstants[0])
	} else {
		ratio.Set(ratioConstants[1])
	}

	// ratio stays below 2^129 and every constant below 2^128, so the
	// product never wraps.
	for i := 2; i < 21; i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(ratio, ratioConstants[i]).Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so that GetTickAtSqrtRatio of the
	// result is consistent.
	tm.rem.And(ratio, ratioConstants[21])
	ratio.Rsh(ratio, 32)
	if !tm.rem.IsZero() {
		ratio.Add(ratio, one)
	}

	dest.Set(ratio)
	return nil
}

// GetTickAtSqrtRatio calculates the greatest tick value such that
// GetSqrtRatioAtTick(tick) <= sqrtPriceX96.
// The log2 of the ratio is approximated to 14 fractional bits, which bounds
// the answer to two candidate ticks.
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Lt(MIN_SQRT_RATIO) || !sqrtPriceX96.Lt(MAX_SQRT_RATIO) {
		return 0, ErrSqrtPriceOutOfBounds
	}

	tm := pool.Get().(*tickMath)
	defer pool.Put(tm)

	ratio := tm.ratio.Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	r := &tm.r
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	log2 := setInt64(&tm.log2, int64(msb-128))
	log2.Lsh(log2, 64)

	for i := 0; i < 14; i++ {
		r.Mul(r, r).Rsh(r, 127)
		tm.f.Rsh(r, 128)
		tm.tmp.Lsh(&tm.f, uint(63-i))
		log2.Or(log2, &tm.tmp)
		r.Rsh(r, uint(tm.f.Uint64()))
	}

	// Signed Q128.128 arithmetic in two's complement: Mul wraps identically
	// for negative operands and SRsh is an arithmetic shift.
	logSqrt := log2.Mul(log2, logSqrt10001)

	tickLow := toInt32(tm.tmp.Sub(logSqrt, tickLowOffset).SRsh(&tm.tmp, 128))
	tickHigh := toInt32(tm.tmp.Add(logSqrt, tickHighOffset).SRsh(&tm.tmp, 128))

	if tickLow == tickHigh {
		return tickLow, nil
	}

	if err := GetSqrtRatioAtTick(&tm.price, tickHigh); err != nil {
		return 0, err
	}
	if !sqrtPriceX96.Lt(&tm.price) {
		return tickHigh, nil
	}
	return tickLow, nil
}

// setInt64 stores v into z as a two's complement 256-bit value.
func setInt64(z *uint256.Int, v int64) *uint256.Int {
	if v >= 0 {
		return z.SetUint64(uint64(v))
	}
	z.SetUint64(uint64(-v))
	return z.Neg(z)
}

// toInt32 reads a sign-extended 256-bit value that is known to fit in 32 bits.
func toInt32(z *uint256.Int) int32 {
	return int32(int64(z.Uint64()))
}

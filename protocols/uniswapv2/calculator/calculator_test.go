package uniswapv2

import (
	"testing"

	uniswapv2 "github.com/defistate/defistate-mirror-go/protocols/uniswapv2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool() uniswapv2.State {
	return uniswapv2.NewState(uint256.NewInt(100_000_000), uint256.MustFromDecimal("50000000000000000000"))
}

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name           string
		amountIn       *uint256.Int
		zeroForOne     bool
		pool           uniswapv2.State
		fee            uint32
		expectedAmount string
		expectedErr    error
	}{
		{
			name:           "Standard Swap (Token0 -> Token1)",
			amountIn:       uint256.NewInt(1_000_000),
			zeroForOne:     true,
			pool:           testPool(),
			fee:            uniswapv2.DefaultFee,
			expectedAmount: "493579017198530649",
		},
		{
			name:           "Standard Swap (Token1 -> Token0)",
			amountIn:       uint256.MustFromDecimal("1000000000000000000"),
			zeroForOne:     false,
			pool:           testPool(),
			fee:            uniswapv2.DefaultFee,
			expectedAmount: "1955016",
		},
		{
			name:           "Swap with Different Fee",
			amountIn:       uint256.NewInt(1_000_000),
			zeroForOne:     true,
			pool:           testPool(),
			fee:            10_000,
			expectedAmount: "490147539360332706",
		},
		{
			name:           "Edge Case: Zero Liquidity",
			amountIn:       uint256.NewInt(1_000_000),
			zeroForOne:     true,
			pool:           uniswapv2.NewState(new(uint256.Int), uint256.MustFromDecimal("50000000000000000000")),
			fee:            uniswapv2.DefaultFee,
			expectedAmount: "0",
		},
		{
			name:        "Invalid Input: Nil AmountIn",
			zeroForOne:  true,
			pool:        testPool(),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Invalid Input: Fee Out Of Range",
			amountIn:    uint256.NewInt(1),
			zeroForOne:  true,
			pool:        testPool(),
			fee:         1_000_000,
			expectedErr: ErrInvalidFee,
		},
		{
			name:        "Overflow: AmountIn Too Large",
			amountIn:    new(uint256.Int).SetAllOne(),
			zeroForOne:  true,
			pool:        testPool(),
			fee:         uniswapv2.DefaultFee,
			expectedErr: ErrInvalidState,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.zeroForOne, tc.pool, tc.fee)

			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, amountOut)
			assert.Equal(t, tc.expectedAmount, amountOut.Dec())
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name           string
		amountOut      *uint256.Int
		zeroForOne     bool
		pool           uniswapv2.State
		expectedAmount string
		expectedErr    error
	}{
		{
			name:           "Standard Swap (Token0 -> Token1)",
			amountOut:      uint256.MustFromDecimal("493579017198530649"),
			zeroForOne:     true,
			pool:           testPool(),
			expectedAmount: "1000000",
		},
		{
			name:           "Standard Swap (Token1 -> Token0)",
			amountOut:      uint256.NewInt(1955016),
			zeroForOne:     false,
			pool:           testPool(),
			expectedAmount: "999999498234537320",
		},
		{
			name:        "Invalid Input: Nil AmountOut",
			pool:        testPool(),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Invalid State: Insufficient Liquidity",
			amountOut:   uint256.MustFromDecimal("60000000000000000000"),
			zeroForOne:  true,
			pool:        testPool(),
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:        "Invalid State: Empty Pool",
			amountOut:   uint256.NewInt(1),
			zeroForOne:  true,
			pool:        uniswapv2.State{},
			expectedErr: ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.zeroForOne, tc.pool, uniswapv2.DefaultFee)

			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, amountIn)
			assert.Equal(t, tc.expectedAmount, amountIn.Dec())
		})
	}
}

func TestGetReserves(t *testing.T) {
	pool := testPool()

	in, out := GetReserves(true, &pool)
	assert.Same(t, &pool.Reserve0, in)
	assert.Same(t, &pool.Reserve1, out)

	in, out = GetReserves(false, &pool)
	assert.Same(t, &pool.Reserve1, in)
	assert.Same(t, &pool.Reserve0, out)
}

// --- Benchmarks ---

var result *uint256.Int

func benchPool() uniswapv2.State {
	return uniswapv2.NewState(
		uint256.MustFromDecimal("2000000000000"),          // 2,000,000 USDC
		uint256.MustFromDecimal("1000000000000000000000"), // 1,000 WETH
	)
}

func BenchmarkGetAmountOut(b *testing.B) {
	pool := benchPool()
	amountIn := uint256.MustFromDecimal("1000000000000000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = GetAmountOut(amountIn, false, pool, uniswapv2.DefaultFee)
	}
}

func BenchmarkGetAmountIn(b *testing.B) {
	pool := benchPool()
	amountOut := uint256.NewInt(1994000000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = GetAmountIn(amountOut, false, pool, uniswapv2.DefaultFee)
	}
}

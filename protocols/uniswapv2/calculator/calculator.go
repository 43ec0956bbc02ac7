package uniswapv2

import (
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defistate-mirror-go/protocols"
	uniswapv2 "github.com/defistate/defistate-mirror-go/protocols/uniswapv2"
	"github.com/holiman/uint256"
)

var (
	feeDenominator = uint256.NewInt(protocols.FeeDenominator)

	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrInvalidFee is returned when the fee is not below the fee denominator.
	ErrInvalidFee = errors.New("fee must be below 1e6")
	// ErrInvalidState is returned for internal calculation errors, like division by zero or overflow.
	ErrInvalidState = errors.New("invalid internal state")
	// ErrInsufficientLiquidity is returned when an amountOut is requested that is greater than or equal to the available reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// Calculator holds reusable uint256 scratch values for the constant-product formulas.
// Instances are NOT safe for concurrent use; they are handed out by calculatorPool.
type Calculator struct {
	feeMultiplier   uint256.Int
	amountInWithFee uint256.Int
	denominator     uint256.Int
	numeratorIn     uint256.Int
	denominatorIn   uint256.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return new(Calculator)
	},
}

// GetAmountOut returns the output of swapping amountIn through the pool.
// zeroForOne selects token0 as the input. fee is in millionths.
// An empty pool quotes zero.
func GetAmountOut(amountIn *uint256.Int, zeroForOne bool, pool uniswapv2.State, fee uint32) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, zeroForOne, pool, fee)
}

// GetAmountIn returns the input required to receive amountOut from the pool.
func GetAmountIn(amountOut *uint256.Int, zeroForOne bool, pool uniswapv2.State, fee uint32) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountIn(amountOut, zeroForOne, pool, fee)
}

func (c *Calculator) getAmountOut(amountIn *uint256.Int, zeroForOne bool, pool uniswapv2.State, fee uint32) (*uint256.Int, error) {
	if amountIn == nil {
		return nil, ErrNilAmount
	}
	if fee >= protocols.FeeDenominator {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFee, fee)
	}

	reserveIn, reserveOut := GetReserves(zeroForOne, &pool)
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return new(uint256.Int), nil
	}

	c.feeMultiplier.SetUint64(protocols.FeeDenominator - uint64(fee))
	if _, overflow := c.amountInWithFee.MulOverflow(amountIn, &c.feeMultiplier); overflow {
		return nil, fmt.Errorf("%w: amountIn with fee overflows", ErrInvalidState)
	}
	if _, overflow := c.denominator.MulOverflow(reserveIn, feeDenominator); overflow {
		return nil, fmt.Errorf("%w: scaled reserve overflows", ErrInvalidState)
	}
	if _, overflow := c.denominator.AddOverflow(&c.denominator, &c.amountInWithFee); overflow {
		return nil, fmt.Errorf("%w: denominator overflows", ErrInvalidState)
	}

	amountOut, overflow := new(uint256.Int).MulDivOverflow(&c.amountInWithFee, reserveOut, &c.denominator)
	if overflow {
		return nil, fmt.Errorf("%w: amountOut overflows", ErrInvalidState)
	}
	return amountOut, nil
}

func (c *Calculator) getAmountIn(amountOut *uint256.Int, zeroForOne bool, pool uniswapv2.State, fee uint32) (*uint256.Int, error) {
	if amountOut == nil {
		return nil, ErrNilAmount
	}
	if fee >= protocols.FeeDenominator {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFee, fee)
	}

	reserveIn, reserveOut := GetReserves(zeroForOne, &pool)
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, fmt.Errorf("%w: requested amountOut (%s) is >= reserveOut (%s)", ErrInsufficientLiquidity, amountOut.Dec(), reserveOut.Dec())
	}

	// amountIn = (reserveIn * amountOut * 1e6) / ((reserveOut - amountOut) * (1e6 - fee)) + 1
	if _, overflow := c.numeratorIn.MulOverflow(reserveIn, amountOut); overflow {
		return nil, fmt.Errorf("%w: numerator overflows", ErrInvalidState)
	}
	c.feeMultiplier.SetUint64(protocols.FeeDenominator - uint64(fee))
	c.denominatorIn.Sub(reserveOut, amountOut)
	if _, overflow := c.denominatorIn.MulOverflow(&c.denominatorIn, &c.feeMultiplier); overflow {
		return nil, fmt.Errorf("%w: denominator overflows", ErrInvalidState)
	}

	amountIn, overflow := new(uint256.Int).MulDivOverflow(&c.numeratorIn, feeDenominator, &c.denominatorIn)
	if overflow {
		return nil, fmt.Errorf("%w: amountIn overflows", ErrInvalidState)
	}
	return amountIn.AddUint64(amountIn, 1), nil
}

// GetReserves returns the (in, out) reserves for a swap direction.
func GetReserves(zeroForOne bool, pool *uniswapv2.State) (reserveIn, reserveOut *uint256.Int) {
	if zeroForOne {
		return &pool.Reserve0, &pool.Reserve1
	}
	return &pool.Reserve1, &pool.Reserve0
}

package sqrtpricemath

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

var (
	// Q96 is the UQ64.96 fixed-point number representing 1.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution)
	// Resolution is the number of bits in the Q96 format.
	Resolution = uint(96)

	ErrLiquidityZero  = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero  = errors.New("sqrt price must be greater than zero")
	ErrPriceDirection = errors.New("target price is on the wrong side of the current price")
	ErrOverflow       = errors.New("fixed-point overflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrNilInput       = errors.New("input cannot be nil")
)

// SqrtPriceMath holds reusable scratch values to avoid allocations.
// Instances are managed by a sync.Pool for safe concurrent use.
type SqrtPriceMath struct {
	diff        uint256.Int
	denominator uint256.Int
	quotient    uint256.Int
	numerator   uint256.Int
}

// pool manages a pool of SqrtPriceMath objects.
var pool = sync.Pool{
	New: func() any {
		return new(SqrtPriceMath)
	},
}

// AmountPossible writes into dest the input that moves the price from
// current to next at constant liquidity.
//
// When zeroForOne the price moves up and the amount is
// liquidity * (next - current) / 2^96.
// Otherwise the price moves down and the amount is
// liquidity * (current - next) / (current * next) * 2^96, evaluated as
// ((liquidity << 96) * (current - next) / current) / next so the scaling is
// applied before any division truncates.
// Products are taken at 512 bits and every narrowing is checked.
func AmountPossible(dest *uint256.Int, zeroForOne bool, liquidity, current, next *uint256.Int) error {
	if dest == nil || liquidity == nil || current == nil || next == nil {
		return ErrNilInput
	}
	s := pool.Get().(*SqrtPriceMath)
	defer pool.Put(s)
	return s.amountPossible(dest, zeroForOne, liquidity, current, next)
}

// NextPriceFromAmount writes into dest the price reached after amount is
// consumed from current at constant liquidity. It is the inverse of
// AmountPossible, rounding in favour of the pool.
//
// When zeroForOne the price moves up linearly: current + amount * 2^96 / liquidity.
// Otherwise it solves the reciprocal relation:
// (liquidity << 96) / ((liquidity << 96) / current + amount).
// Each direction inverts the AmountPossible formula of the same direction;
// pairing the reciprocal with zeroForOne would move the price down while
// AmountPossible measured an upward segment, and the final step would
// underflow.
func NextPriceFromAmount(dest *uint256.Int, zeroForOne bool, amount, liquidity, current *uint256.Int) error {
	if dest == nil || amount == nil || liquidity == nil || current == nil {
		return ErrNilInput
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if current.IsZero() {
		return ErrSqrtPriceZero
	}
	s := pool.Get().(*SqrtPriceMath)
	defer pool.Put(s)
	if zeroForOne {
		return s.nextPriceFromLinear(dest, amount, liquidity, current)
	}
	return s.nextPriceFromReciprocal(dest, amount, liquidity, current)
}

func (s *SqrtPriceMath) amountPossible(dest *uint256.Int, zeroForOne bool, liquidity, current, next *uint256.Int) error {
	if zeroForOne {
		if _, underflow := s.diff.SubOverflow(next, current); underflow {
			return ErrPriceDirection
		}
		if _, overflow := s.quotient.MulDivOverflow(liquidity, &s.diff, Q96); overflow {
			return ErrOverflow
		}
		dest.Set(&s.quotient)
		return nil
	}

	if _, underflow := s.diff.SubOverflow(current, next); underflow {
		return ErrPriceDirection
	}
	if next.IsZero() {
		return ErrDivisionByZero
	}
	// liquidity << 96 must fit in 256 bits.
	if liquidity.BitLen() > 256-int(Resolution) {
		return ErrOverflow
	}
	s.numerator.Lsh(liquidity, Resolution)
	if _, overflow := s.quotient.MulDivOverflow(&s.numerator, &s.diff, current); overflow {
		return ErrOverflow
	}
	dest.Div(&s.quotient, next)
	return nil
}

func (s *SqrtPriceMath) nextPriceFromLinear(dest, amount, liquidity, current *uint256.Int) error {
	if _, overflow := s.quotient.MulDivOverflow(amount, Q96, liquidity); overflow {
		return ErrOverflow
	}
	if _, overflow := s.quotient.AddOverflow(current, &s.quotient); overflow {
		return ErrOverflow
	}
	dest.Set(&s.quotient)
	return nil
}

func (s *SqrtPriceMath) nextPriceFromReciprocal(dest, amount, liquidity, current *uint256.Int) error {
	// liquidity << 96 must fit in 256 bits.
	if liquidity.BitLen() > 256-int(Resolution) {
		return ErrOverflow
	}
	s.numerator.Lsh(liquidity, Resolution)
	s.denominator.Div(&s.numerator, current)
	if _, overflow := s.denominator.AddOverflow(&s.denominator, amount); overflow {
		return ErrOverflow
	}
	if s.denominator.IsZero() {
		return ErrDivisionByZero
	}
	dest.Div(&s.numerator, &s.denominator)
	return nil
}

package uniswapv3

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmountIn = errors.New("amountIn must not be nil")

	// ErrTickOverflow means the known tick set ends above the trade.
	ErrTickOverflow = errors.New("tick set exhausted upwards")
	// ErrTickUnderflow means the known tick set ends below the trade.
	ErrTickUnderflow = errors.New("tick set exhausted downwards")
	// ErrTickUnavailable means the next tick is known but its liquidity net was never loaded.
	ErrTickUnavailable = errors.New("tick liquidity not loaded")

	// ErrMath wraps every fixed-point failure of a trade.
	ErrMath = errors.New("trade math failed")

	// ErrConstantProduct is reserved for failures of the constant-product path.
	ErrConstantProduct = errors.New("constant-product trade failed")
)

// TickError reports that the trade ran out of usable tick data. State is
// the trade as it stood when the error occurred and can be passed to Retry
// once more ticks are known.
type TickError struct {
	Kind  error
	State TradeState
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%v: tick %d, next tick %d, remaining %s",
		e.Kind, e.State.Tick, e.State.Step.NextTick.Index, e.State.Remaining.Dec())
}

func (e *TickError) Unwrap() error {
	return e.Kind
}

// MathError reports an overflow, underflow or division by zero. It is fatal
// for the trade; State is kept for diagnostics only.
type MathError struct {
	Op    string
	Err   error
	State TradeState
}

func (e *MathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s at tick %d", ErrMath, e.Op, e.State.Tick)
	}
	return fmt.Sprintf("%v: %s at tick %d: %v", ErrMath, e.Op, e.State.Tick, e.Err)
}

func (e *MathError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMath}
	}
	return []error{ErrMath, e.Err}
}

func tickError(kind error, s *TradeState) error {
	return &TickError{Kind: kind, State: *s}
}

func mathError(op string, err error, s *TradeState) error {
	return &MathError{Op: op, Err: err, State: *s}
}

package events

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	// ErrDecode wraps every failure to turn a log into a typed event.
	ErrDecode = errors.New("events: decode failed")
	// ErrUntracked is returned when decoding a kind that carries no mirrored state.
	ErrUntracked = errors.New("events: kind is not decoded")
)

// Decode parses log as an event of kind k and returns one of the typed event
// structs of this package.
func Decode(k Kind, log types.Log) (any, error) {
	if !k.Tracked() {
		return nil, fmt.Errorf("%w: %s", ErrUntracked, k)
	}
	if len(log.Topics) == 0 || log.Topics[0] != k.Topic0() {
		return nil, fmt.Errorf("%w: %s: topic0 mismatch", ErrDecode, k)
	}

	parsed, err := abiFor(k.Protocol()).get()
	if err != nil {
		return nil, fmt.Errorf("%w: parse abi: %w", ErrDecode, err)
	}
	name := eventName(k)
	event, ok := parsed.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s: event %q not in abi", ErrDecode, k, name)
	}

	fields, err := unpack(parsed, event, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, k, err)
	}

	ev, err := narrow(k, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, k, err)
	}
	return ev, nil
}

// unpack merges indexed topics and non-indexed data into one map keyed by
// argument name.
func unpack(parsed abi.ABI, event abi.Event, log types.Log) (map[string]any, error) {
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}

	fields := make(map[string]any, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if err := parsed.UnpackIntoMap(fields, event.Name, log.Data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	return fields, nil
}

func narrow(k Kind, f map[string]any) (any, error) {
	var r reader
	r.fields = f

	switch k {
	case KindV2Mint:
		ev := V2Mint{}
		r.u256("amount0", &ev.Amount0)
		r.u256("amount1", &ev.Amount1)
		return ev, r.err
	case KindV2Burn:
		ev := V2Burn{}
		r.u256("amount0", &ev.Amount0)
		r.u256("amount1", &ev.Amount1)
		return ev, r.err
	case KindV2Swap:
		ev := V2Swap{}
		r.u256("amount0In", &ev.Amount0In)
		r.u256("amount1In", &ev.Amount1In)
		r.u256("amount0Out", &ev.Amount0Out)
		r.u256("amount1Out", &ev.Amount1Out)
		return ev, r.err
	case KindV2Sync:
		ev := V2Sync{}
		r.u256("reserve0", &ev.Reserve0)
		r.u256("reserve1", &ev.Reserve1)
		return ev, r.err
	case KindV3Swap:
		ev := V3Swap{
			Amount0: r.big("amount0"),
			Amount1: r.big("amount1"),
			Tick:    r.int24("tick"),
		}
		r.u256("sqrtPriceX96", &ev.SqrtPriceX96)
		r.u256("liquidity", &ev.Liquidity)
		return ev, r.err
	case KindV3Mint:
		ev := V3Mint{
			TickLower: r.int24("tickLower"),
			TickUpper: r.int24("tickUpper"),
			Amount:    r.big("amount"),
		}
		return ev, r.err
	case KindV3Burn:
		ev := V3Burn{
			TickLower: r.int24("tickLower"),
			TickUpper: r.int24("tickUpper"),
			Amount:    r.big("amount"),
		}
		return ev, r.err
	case KindV4Initialize:
		ev := V4Initialize{
			PoolID: r.hash("id"),
			Key: uniswapv4.PoolKey{
				Currency0:   r.address("currency0"),
				Currency1:   r.address("currency1"),
				Fee:         r.uint24("fee"),
				TickSpacing: r.int24("tickSpacing"),
				Hooks:       r.address("hooks"),
			},
			Tick: r.int24("tick"),
		}
		r.u256("sqrtPriceX96", &ev.SqrtPriceX96)
		return ev, r.err
	case KindV4Swap:
		ev := V4Swap{
			PoolID:  r.hash("id"),
			Amount0: r.big("amount0"),
			Amount1: r.big("amount1"),
			Tick:    r.int24("tick"),
			Fee:     r.uint24("fee"),
		}
		r.u256("sqrtPriceX96", &ev.SqrtPriceX96)
		r.u256("liquidity", &ev.Liquidity)
		return ev, r.err
	case KindV4ModifyLiquidity:
		ev := V4ModifyLiquidity{
			PoolID:         r.hash("id"),
			TickLower:      r.int24("tickLower"),
			TickUpper:      r.int24("tickUpper"),
			LiquidityDelta: r.big("liquidityDelta"),
		}
		return ev, r.err
	default:
		return nil, fmt.Errorf("no typed event for %s", k)
	}
}

// reader narrows loosely typed ABI values and keeps the first error.
type reader struct {
	fields map[string]any
	err    error
}

func (r *reader) fail(name string, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: %s", name, fmt.Sprintf(format, args...))
	}
}

func (r *reader) big(name string) *big.Int {
	switch v := r.fields[name].(type) {
	case *big.Int:
		return new(big.Int).Set(v)
	case uint8:
		return new(big.Int).SetUint64(uint64(v))
	case uint16:
		return new(big.Int).SetUint64(uint64(v))
	case uint32:
		return new(big.Int).SetUint64(uint64(v))
	case uint64:
		return new(big.Int).SetUint64(v)
	case int8:
		return big.NewInt(int64(v))
	case int16:
		return big.NewInt(int64(v))
	case int32:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	case nil:
		r.fail(name, "missing")
	default:
		r.fail(name, "unsupported int type %T", v)
	}
	return new(big.Int)
}

func (r *reader) u256(name string, dest *uint256.Int) {
	b := r.big(name)
	if b.Sign() < 0 {
		r.fail(name, "negative value %s", b)
		return
	}
	if dest.SetFromBig(b) {
		r.fail(name, "overflows 256 bits")
	}
}

func (r *reader) int24(name string) int32 {
	b := r.big(name)
	if !b.IsInt64() || b.Int64() < -(1<<23) || b.Int64() > (1<<23)-1 {
		r.fail(name, "int24 overflow: %s", b)
		return 0
	}
	return int32(b.Int64())
}

func (r *reader) uint24(name string) uint32 {
	b := r.big(name)
	if !b.IsUint64() || b.Uint64() > (1<<24)-1 {
		r.fail(name, "uint24 overflow: %s", b)
		return 0
	}
	return uint32(b.Uint64())
}

func (r *reader) address(name string) common.Address {
	switch v := r.fields[name].(type) {
	case common.Address:
		return v
	case *common.Address:
		return *v
	default:
		r.fail(name, "unsupported address type %T", v)
		return common.Address{}
	}
}

func (r *reader) hash(name string) common.Hash {
	switch v := r.fields[name].(type) {
	case [32]byte:
		return common.Hash(v)
	case common.Hash:
		return v
	default:
		r.fail(name, "unsupported bytes32 type %T", v)
		return common.Hash{}
	}
}

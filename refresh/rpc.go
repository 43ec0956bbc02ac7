package refresh

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/ticks"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWordRadius is how many bitmap words on each side of the current
	// word are loaded.
	DefaultWordRadius = 2
	// DefaultMaxConcurrentCalls bounds in-flight eth_calls per refresh.
	DefaultMaxConcurrentCalls = 16
	// DefaultMaxWidenWords is how many extra words are read on a side of the
	// window that holds no initialized tick.
	DefaultMaxWidenWords = 8
)

var (
	ErrUnknownChain = errors.New("refresh: unknown chain")
	ErrNoStateView  = errors.New("refresh: chain has no V4 StateView address")
	ErrBadResponse  = errors.New("refresh: unexpected call result")
)

// ContractCaller executes eth_call. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Chain is the RPC endpoint of one chain.
type Chain struct {
	Client ContractCaller
	// StateView is the V4 lens contract. Zero disables V4 refresh.
	StateView common.Address
}

// RPCFetcher reads pool state with eth_call against the latest block.
type RPCFetcher struct {
	chains      map[uint64]Chain
	wordRadius  int
	concurrency int
	maxWiden    int
}

// RPCOption configures an RPCFetcher.
type RPCOption func(*RPCFetcher)

// WithWordRadius sets how many bitmap words around the current tick are loaded.
func WithWordRadius(n int) RPCOption {
	return func(f *RPCFetcher) {
		if n >= 0 {
			f.wordRadius = n
		}
	}
}

// WithMaxConcurrentCalls bounds parallel eth_calls within one refresh.
func WithMaxConcurrentCalls(n int) RPCOption {
	return func(f *RPCFetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithMaxWidenWords bounds how far the window is widened, per side, to reach
// an initialized tick. Zero disables widening.
func WithMaxWidenWords(n int) RPCOption {
	return func(f *RPCFetcher) {
		if n >= 0 {
			f.maxWiden = n
		}
	}
}

// NewRPCFetcher builds a fetcher over the given chains.
func NewRPCFetcher(chains map[uint64]Chain, opts ...RPCOption) (*RPCFetcher, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("%w: no chains", ErrInvalidConfig)
	}
	copied := make(map[uint64]Chain, len(chains))
	for id, c := range chains {
		if c.Client == nil {
			return nil, fmt.Errorf("%w: chain %d has no client", ErrInvalidConfig, id)
		}
		copied[id] = c
	}
	f := &RPCFetcher{
		chains:      copied,
		wordRadius:  DefaultWordRadius,
		concurrency: DefaultMaxConcurrentCalls,
		maxWiden:    DefaultMaxWidenWords,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *RPCFetcher) chain(chainID uint64) (Chain, error) {
	c, ok := f.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

// V2Reserves calls getReserves on a pair.
func (f *RPCFetcher) V2Reserves(ctx context.Context, chainID uint64, pool common.Address) (*uint256.Int, *uint256.Int, error) {
	c, err := f.chain(chainID)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := v2PairABI.get()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pair abi: %w", err)
	}
	out, err := callMethod(ctx, c.Client, pool, parsed, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r0, err := u256At(out, 0)
	if err != nil {
		return nil, nil, err
	}
	r1, err := u256At(out, 1)
	if err != nil {
		return nil, nil, err
	}
	return r0, r1, nil
}

// V3Config reads the immutable parameters of a pool.
func (f *RPCFetcher) V3Config(ctx context.Context, chainID uint64, pool common.Address) (protocols.PoolConfig, error) {
	var cfg protocols.PoolConfig
	c, err := f.chain(chainID)
	if err != nil {
		return cfg, err
	}
	parsed, err := v3PoolABI.get()
	if err != nil {
		return cfg, fmt.Errorf("parse pool abi: %w", err)
	}

	call := func(method string) ([]any, error) {
		return callMethod(ctx, c.Client, pool, parsed, method)
	}
	out, err := call("token0")
	if err != nil {
		return cfg, err
	}
	if cfg.Token0, err = addressAt(out, 0); err != nil {
		return cfg, err
	}
	if out, err = call("token1"); err != nil {
		return cfg, err
	}
	if cfg.Token1, err = addressAt(out, 0); err != nil {
		return cfg, err
	}
	if out, err = call("fee"); err != nil {
		return cfg, err
	}
	fee, err := bigAt(out, 0)
	if err != nil {
		return cfg, err
	}
	if !fee.IsUint64() || fee.Uint64() >= protocols.FeeDenominator {
		return cfg, fmt.Errorf("%w: fee %s", ErrBadResponse, fee)
	}
	cfg.Fee = uint32(fee.Uint64())
	if out, err = call("tickSpacing"); err != nil {
		return cfg, err
	}
	if cfg.TickSpacing, err = int24At(out, 0); err != nil {
		return cfg, err
	}
	if cfg.TickSpacing <= 0 {
		return cfg, fmt.Errorf("%w: tick spacing %d", ErrBadResponse, cfg.TickSpacing)
	}
	return cfg, nil
}

// V3State reads price, liquidity and the ticks around the current price.
func (f *RPCFetcher) V3State(ctx context.Context, chainID uint64, pool common.Address, tickSpacing int32) (uniswapv3.State, error) {
	c, err := f.chain(chainID)
	if err != nil {
		return uniswapv3.State{}, err
	}
	parsed, err := v3PoolABI.get()
	if err != nil {
		return uniswapv3.State{}, fmt.Errorf("parse pool abi: %w", err)
	}

	slot0, err := callMethod(ctx, c.Client, pool, parsed, "slot0")
	if err != nil {
		return uniswapv3.State{}, err
	}
	liq, err := callMethod(ctx, c.Client, pool, parsed, "liquidity")
	if err != nil {
		return uniswapv3.State{}, err
	}

	word := func(ctx context.Context, idx int16) (*uint256.Int, error) {
		out, err := callMethod(ctx, c.Client, pool, parsed, "tickBitmap", idx)
		if err != nil {
			return nil, err
		}
		return u256At(out, 0)
	}
	net := func(ctx context.Context, tick int32) (*big.Int, error) {
		out, err := callMethod(ctx, c.Client, pool, parsed, "ticks", big.NewInt(int64(tick)))
		if err != nil {
			return nil, err
		}
		return bigAt(out, 1)
	}
	return f.buildState(ctx, slot0, liq, tickSpacing, word, net)
}

// V4State reads a PoolManager pool through the chain's StateView.
func (f *RPCFetcher) V4State(ctx context.Context, chainID uint64, poolID common.Hash, tickSpacing int32) (uniswapv3.State, error) {
	c, err := f.chain(chainID)
	if err != nil {
		return uniswapv3.State{}, err
	}
	if c.StateView == (common.Address{}) {
		return uniswapv3.State{}, fmt.Errorf("%w: %d", ErrNoStateView, chainID)
	}
	parsed, err := v4StateView.get()
	if err != nil {
		return uniswapv3.State{}, fmt.Errorf("parse state view abi: %w", err)
	}
	id := [32]byte(poolID)

	slot0, err := callMethod(ctx, c.Client, c.StateView, parsed, "getSlot0", id)
	if err != nil {
		return uniswapv3.State{}, err
	}
	liq, err := callMethod(ctx, c.Client, c.StateView, parsed, "getLiquidity", id)
	if err != nil {
		return uniswapv3.State{}, err
	}

	word := func(ctx context.Context, idx int16) (*uint256.Int, error) {
		out, err := callMethod(ctx, c.Client, c.StateView, parsed, "getTickBitmap", id, idx)
		if err != nil {
			return nil, err
		}
		return u256At(out, 0)
	}
	net := func(ctx context.Context, tick int32) (*big.Int, error) {
		out, err := callMethod(ctx, c.Client, c.StateView, parsed, "getTickLiquidity", id, big.NewInt(int64(tick)))
		if err != nil {
			return nil, err
		}
		return bigAt(out, 1)
	}
	return f.buildState(ctx, slot0, liq, tickSpacing, word, net)
}

type wordReader func(ctx context.Context, idx int16) (*uint256.Int, error)

type netReader func(ctx context.Context, tick int32) (*big.Int, error)

// buildState assembles a pool state from slot0 (price, tick, ...) and
// liquidity call results, then loads the surrounding ticks.
func (f *RPCFetcher) buildState(ctx context.Context, slot0, liq []any, spacing int32, word wordReader, net netReader) (uniswapv3.State, error) {
	price, err := u256At(slot0, 0)
	if err != nil {
		return uniswapv3.State{}, err
	}
	tick, err := int24At(slot0, 1)
	if err != nil {
		return uniswapv3.State{}, err
	}
	liquidity, err := u256At(liq, 0)
	if err != nil {
		return uniswapv3.State{}, err
	}

	ts, err := f.loadTicks(ctx, spacing, tick, word, net)
	if err != nil {
		return uniswapv3.State{}, err
	}
	st := uniswapv3.NewState(price, liquidity, tick)
	st.Ticks = ts
	return st, nil
}

// loadTicks reads the bitmap words around current, then the liquidity net of
// every initialized tick they mark. A side of the window with no initialized
// tick is widened a word at a time, up to maxWiden words.
func (f *RPCFetcher) loadTicks(ctx context.Context, spacing, current int32, word wordReader, net netReader) (ticks.Ticks, error) {
	pw, err := tickbitmap.NewPoolWords(spacing)
	if err != nil {
		return ticks.Ticks{}, err
	}

	minWord := int(tickbitmap.PosFromTick(tickmath.MIN_TICK, spacing))
	maxWord := int(tickbitmap.PosFromTick(tickmath.MAX_TICK, spacing))
	center := int(tickbitmap.PosFromTick(current, spacing))
	lo := max(center-f.wordRadius, minWord)
	hi := min(center+f.wordRadius, maxWord)

	words := make([]*uint256.Int, hi-lo+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := range words {
		idx := int16(lo + i)
		g.Go(func() error {
			w, err := word(gctx, idx)
			if err != nil {
				return fmt.Errorf("bitmap word %d: %w", idx, err)
			}
			words[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ticks.Ticks{}, err
	}
	for i, w := range words {
		pw.SetWord(int16(lo+i), w)
	}

	widen := func(idx int) error {
		w, err := word(ctx, int16(idx))
		if err != nil {
			return fmt.Errorf("bitmap word %d: %w", idx, err)
		}
		pw.SetWord(int16(idx), w)
		return nil
	}
	for n := 0; n < f.maxWiden && lo > minWord; n++ {
		if _, ok := pw.NextInitializedTick(current-1, true); ok {
			break
		}
		lo--
		if err := widen(lo); err != nil {
			return ticks.Ticks{}, err
		}
	}
	for n := 0; n < f.maxWiden && hi < maxWord; n++ {
		if _, ok := pw.NextInitializedTick(current, false); ok {
			break
		}
		hi++
		if err := widen(hi); err != nil {
			return ticks.Ticks{}, err
		}
	}

	initialized := pw.Ticks().Slice()
	nets := make([]*big.Int, len(initialized))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, t := range initialized {
		g.Go(func() error {
			n, err := net(gctx, t.Index)
			if err != nil {
				return fmt.Errorf("tick %d: %w", t.Index, err)
			}
			nets[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ticks.Ticks{}, err
	}
	for i, t := range initialized {
		pw.SetLiquidityNet(t.Index, nets[i])
	}
	return pw.Ticks(), nil
}

func callMethod(ctx context.Context, client ContractCaller, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func bigAt(values []any, i int) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("%w: missing output %d", ErrBadResponse, i)
	}
	v, ok := values[i].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: output %d is %T", ErrBadResponse, i, values[i])
	}
	return v, nil
}

func u256At(values []any, i int) (*uint256.Int, error) {
	v, err := bigAt(values, i)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: output %d is negative", ErrBadResponse, i)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: output %d overflows 256 bits", ErrBadResponse, i)
	}
	return out, nil
}

func int24At(values []any, i int) (int32, error) {
	v, err := bigAt(values, i)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() || v.Int64() < -(1<<23) || v.Int64() >= 1<<23 {
		return 0, fmt.Errorf("%w: output %d out of int24 range", ErrBadResponse, i)
	}
	return int32(v.Int64()), nil
}

func addressAt(values []any, i int) (common.Address, error) {
	if i >= len(values) {
		return common.Address{}, fmt.Errorf("%w: missing output %d", ErrBadResponse, i)
	}
	a, ok := values[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: output %d is %T", ErrBadResponse, i, values[i])
	}
	return a, nil
}

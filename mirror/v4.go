package mirror

import (
	"github.com/defistate/defistate-mirror-go/events"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/holiman/uint256"
)

const protocolV4 = "uniswapv4"

// HandleV4Initialize records a new pool. Its config comes from the pool key
// and its state starts with no liquidity.
func (m *Mirror) HandleV4Initialize(chainID uint64, ev events.V4Initialize) {
	key := registry.PoolIDKey{ChainID: chainID, PoolID: ev.PoolID}
	cfg := ev.Key.Config()
	m.V4.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		e.Config = &cfg
		st := uniswapv3.NewState(&ev.SqrtPriceX96, new(uint256.Int), ev.Tick)
		e.State = &st
		m.V4NotFound.Resolve(key)
	})
	m.applied(protocolV4, "initialize")
}

// HandleV4Swap overwrites price, liquidity and tick of a known pool.
func (m *Mirror) HandleV4Swap(chainID uint64, ev events.V4Swap) {
	key := registry.PoolIDKey{ChainID: chainID, PoolID: ev.PoolID}
	m.V4.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.State == nil {
			push(m, m.V4NotFound, QueueV4NotFound, key)
			return
		}
		e.State.ApplySwap(&ev.SqrtPriceX96, &ev.Liquidity, ev.Tick)
		m.applied(protocolV4, "swap")
	})
}

// HandleV4ModifyLiquidity applies a signed liquidity delta to a tick range.
func (m *Mirror) HandleV4ModifyLiquidity(chainID uint64, ev events.V4ModifyLiquidity) {
	key := registry.PoolIDKey{ChainID: chainID, PoolID: ev.PoolID}
	m.V4.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.State == nil {
			push(m, m.V4NotFound, QueueV4NotFound, key)
			return
		}
		if err := e.State.ModifyLiquidity(ev.TickLower, ev.TickUpper, ev.LiquidityDelta); err != nil {
			m.logger.Warn("Dropping diverged pool state",
				"chain_id", chainID,
				"pool", ev.PoolID.Hex(),
				"event", "modify_liquidity",
				"error", err,
			)
			e.State = nil
			m.metrics.StateDropped.WithLabelValues(protocolV4).Inc()
			push(m, m.V4NotFound, QueueV4NotFound, key)
			return
		}
		m.applied(protocolV4, "modify_liquidity")
	})
}

// SetV4State stores a state loaded from chain and resolves the pool. A pool
// that Initialize already resolved keeps its event-built state.
func (m *Mirror) SetV4State(key registry.PoolIDKey, st uniswapv3.State) bool {
	var written bool
	m.V4.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.State != nil && !m.V4NotFound.Contains(key) {
			return
		}
		e.State = mergeState(e.State, st)
		m.V4NotFound.Resolve(key)
		written = true
	})
	if !written {
		m.superseded(protocolV4, key.String())
	}
	return written
}

// V4Pool returns a snapshot of a V4 pool.
func (m *Mirror) V4Pool(key registry.PoolIDKey) (registry.Entry[uniswapv3.State], bool) {
	return m.V4.Snapshot(key)
}

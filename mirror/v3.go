package mirror

import (
	"math/big"

	"github.com/defistate/defistate-mirror-go/events"
	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/ethereum/go-ethereum/common"
)

const protocolV3 = "uniswapv3"

// HandleV3Swap overwrites price, liquidity and tick with the values carried by
// the event. A pool seen for the first time gets a state built from the event;
// it has no ticks yet, so it is also queued for a full state load.
func (m *Mirror) HandleV3Swap(chainID uint64, pool common.Address, ev events.V3Swap) {
	key := registry.AddressKey{ChainID: chainID, Address: pool}
	m.V3.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.State == nil {
			st := uniswapv3.NewState(&ev.SqrtPriceX96, &ev.Liquidity, ev.Tick)
			e.State = &st
			push(m, m.V3Stale, QueueV3Stale, key)
		} else {
			e.State.ApplySwap(&ev.SqrtPriceX96, &ev.Liquidity, ev.Tick)
		}
		if e.Config == nil {
			push(m, m.V3Config, QueueV3Config, key)
		}
	})
	m.applied(protocolV3, "swap")
}

// HandleV3Mint adds liquidity to a tick range.
func (m *Mirror) HandleV3Mint(chainID uint64, pool common.Address, ev events.V3Mint) {
	m.modifyV3(chainID, pool, "mint", ev.TickLower, ev.TickUpper, ev.Amount)
}

// HandleV3Burn removes liquidity from a tick range.
func (m *Mirror) HandleV3Burn(chainID uint64, pool common.Address, ev events.V3Burn) {
	var delta *big.Int
	if ev.Amount != nil {
		delta = new(big.Int).Neg(ev.Amount)
	}
	m.modifyV3(chainID, pool, "burn", ev.TickLower, ev.TickUpper, delta)
}

func (m *Mirror) modifyV3(chainID uint64, pool common.Address, event string, lower, upper int32, delta *big.Int) {
	key := registry.AddressKey{ChainID: chainID, Address: pool}
	m.V3.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.Config == nil {
			push(m, m.V3Config, QueueV3Config, key)
		}
		if e.State == nil {
			push(m, m.V3Stale, QueueV3Stale, key)
			return
		}
		if err := e.State.ModifyLiquidity(lower, upper, delta); err != nil {
			m.logger.Warn("Dropping diverged pool state",
				"chain_id", chainID,
				"pool", pool.Hex(),
				"event", event,
				"error", err,
			)
			e.State = nil
			m.metrics.StateDropped.WithLabelValues(protocolV3).Inc()
			push(m, m.V3Stale, QueueV3Stale, key)
			return
		}
		m.applied(protocolV3, event)
	})
}

// SetV3Config stores a config loaded from chain and resolves the pool's config queue entry.
func (m *Mirror) SetV3Config(key registry.AddressKey, cfg protocols.PoolConfig) {
	m.V3.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		c := cfg.Clone()
		e.Config = &c
		m.V3Config.Resolve(key)
	})
}

// SetV3State stores a state loaded from chain. Ticks already known are merged
// with the loaded ones, the loaded ones winning on collision. Like
// SetV2State it only writes while the pool has no state or is still queued,
// and reports whether it wrote.
func (m *Mirror) SetV3State(key registry.AddressKey, st uniswapv3.State) bool {
	var written bool
	m.V3.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.State != nil && !m.V3Stale.Contains(key) {
			return
		}
		e.State = mergeState(e.State, st)
		m.V3Stale.Resolve(key)
		written = true
	})
	if !written {
		m.superseded(protocolV3, key.String())
	}
	return written
}

// V3Pool returns a snapshot of a concentrated-liquidity pool.
func (m *Mirror) V3Pool(key registry.AddressKey) (registry.Entry[uniswapv3.State], bool) {
	return m.V3.Snapshot(key)
}

func mergeState(prev *uniswapv3.State, loaded uniswapv3.State) *uniswapv3.State {
	next := loaded.Clone()
	if prev != nil {
		next.Ticks = prev.Ticks.Insert(loaded.Ticks)
	}
	return &next
}

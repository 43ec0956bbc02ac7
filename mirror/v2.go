package mirror

import (
	"github.com/defistate/defistate-mirror-go/events"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv2"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const protocolV2 = "uniswapv2"

// HandleV2Swap applies the swap amounts to the reserves as signed deltas.
func (m *Mirror) HandleV2Swap(chainID uint64, pool common.Address, ev events.V2Swap) {
	m.updateV2(chainID, pool, "swap", func(s *uniswapv2.State) error {
		return s.ApplySwap(&ev.Amount0In, &ev.Amount1In, &ev.Amount0Out, &ev.Amount1Out)
	})
}

// HandleV2Mint adds the deposited amounts to the reserves.
func (m *Mirror) HandleV2Mint(chainID uint64, pool common.Address, ev events.V2Mint) {
	m.updateV2(chainID, pool, "mint", func(s *uniswapv2.State) error {
		return s.ApplyMint(&ev.Amount0, &ev.Amount1)
	})
}

// HandleV2Burn removes the withdrawn amounts from the reserves.
func (m *Mirror) HandleV2Burn(chainID uint64, pool common.Address, ev events.V2Burn) {
	m.updateV2(chainID, pool, "burn", func(s *uniswapv2.State) error {
		return s.ApplyBurn(&ev.Amount0, &ev.Amount1)
	})
}

// HandleV2Sync overwrites the reserves. Sync carries absolute values, so it
// also resolves a pool that was waiting for a refresh.
func (m *Mirror) HandleV2Sync(chainID uint64, pool common.Address, ev events.V2Sync) {
	key := registry.AddressKey{ChainID: chainID, Address: pool}
	m.V2.Update(key, func(e *registry.Entry[uniswapv2.State]) {
		if e.State == nil {
			st := uniswapv2.NewState(&ev.Reserve0, &ev.Reserve1)
			e.State = &st
		} else {
			e.State.Sync(&ev.Reserve0, &ev.Reserve1)
		}
		m.V2Stale.Resolve(key)
	})
	m.applied(protocolV2, "sync")
}

// updateV2 runs apply against the pool's reserves. A pool without reserves is
// queued. A delta that cannot be applied means the mirror has diverged from
// chain, so the reserves are dropped and the pool is queued for a reload.
func (m *Mirror) updateV2(chainID uint64, pool common.Address, event string, apply func(*uniswapv2.State) error) {
	key := registry.AddressKey{ChainID: chainID, Address: pool}
	m.V2.Update(key, func(e *registry.Entry[uniswapv2.State]) {
		if e.State == nil {
			push(m, m.V2Stale, QueueV2Stale, key)
			return
		}
		if err := apply(e.State); err != nil {
			m.logger.Warn("Dropping diverged reserves",
				"chain_id", chainID,
				"pool", pool.Hex(),
				"event", event,
				"error", err,
			)
			e.State = nil
			m.metrics.StateDropped.WithLabelValues(protocolV2).Inc()
			push(m, m.V2Stale, QueueV2Stale, key)
			return
		}
		m.applied(protocolV2, event)
	})
}

// SetV2State stores reserves loaded from chain and resolves the pool. The
// reserves are only written while the pool has none or is still queued: once
// a Sync has resolved it, the event data is newer than any call that was in
// flight, and later deltas build on it. It reports whether it wrote.
func (m *Mirror) SetV2State(key registry.AddressKey, reserve0, reserve1 *uint256.Int) bool {
	var written bool
	m.V2.Update(key, func(e *registry.Entry[uniswapv2.State]) {
		if e.State != nil && !m.V2Stale.Contains(key) {
			return
		}
		st := uniswapv2.NewState(reserve0, reserve1)
		e.State = &st
		m.V2Stale.Resolve(key)
		written = true
	})
	if !written {
		m.superseded(protocolV2, key.String())
	}
	return written
}

// V2Pool returns a snapshot of a constant-product pool.
func (m *Mirror) V2Pool(key registry.AddressKey) (registry.Entry[uniswapv2.State], bool) {
	return m.V2.Snapshot(key)
}

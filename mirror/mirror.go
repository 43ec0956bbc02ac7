// Package mirror applies decoded pool events to in-memory pool entries and
// tracks which entries need an external refresh.
//
// Handlers never fail: an event for a pool whose state is unknown queues the
// pool for refresh instead. Each queue has a matching setter that the refresh
// worker calls once it has loaded the missing data.
package mirror

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv2"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv4"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrInvalidConfig = errors.New("mirror: invalid config")

// Config holds the dependencies of a Mirror.
type Config struct {
	Logger   Logger
	Registry prometheus.Registerer
	// Shards is the shard count of each store. Zero uses registry.DefaultShards.
	Shards int
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return fmt.Errorf("%w: Logger is required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: Registry is required", ErrInvalidConfig)
	}
	if c.Shards < 0 {
		return fmt.Errorf("%w: Shards must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Mirror owns the pool stores of every protocol and their pending queues.
// V4 pools reuse the concentrated-liquidity state.
type Mirror struct {
	V2 *registry.Store[registry.AddressKey, uniswapv2.State]
	V3 *registry.Store[registry.AddressKey, uniswapv3.State]
	V4 *registry.Store[registry.PoolIDKey, uniswapv3.State]

	// V2Stale holds constant-product pools without reserves.
	V2Stale *registry.PendingQueue[registry.AddressKey]
	// V3Config holds concentrated-liquidity pools without fee or tick spacing.
	V3Config *registry.PendingQueue[registry.AddressKey]
	// V3Stale holds concentrated-liquidity pools without state or ticks.
	V3Stale *registry.PendingQueue[registry.AddressKey]
	// V4NotFound holds V4 pools referenced before they were seen.
	V4NotFound *registry.PendingQueue[registry.PoolIDKey]

	logger  Logger
	metrics *Metrics
}

// New builds an empty mirror.
func New(cfg Config) (*Mirror, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []registry.StoreOption
	if cfg.Shards > 0 {
		opts = append(opts, registry.WithShards(cfg.Shards))
	}

	m := &Mirror{
		V2:         registry.New[registry.AddressKey, uniswapv2.State](opts...),
		V3:         registry.New[registry.AddressKey, uniswapv3.State](opts...),
		V4:         registry.New[registry.PoolIDKey, uniswapv3.State](opts...),
		V2Stale:    registry.NewPendingQueue[registry.AddressKey](),
		V3Config:   registry.NewPendingQueue[registry.AddressKey](),
		V3Stale:    registry.NewPendingQueue[registry.AddressKey](),
		V4NotFound: registry.NewPendingQueue[registry.PoolIDKey](),
		logger:     cfg.Logger,
		metrics:    NewMetrics(cfg.Registry),
	}
	registerPending(cfg.Registry, map[string]func() int{
		QueueV2Stale:    m.V2Stale.Len,
		QueueV3Config:   m.V3Config.Len,
		QueueV3Stale:    m.V3Stale.Len,
		QueueV4NotFound: m.V4NotFound.Len,
	})
	return m, nil
}

// push enqueues key and records the metric when it was newly added.
func push[K comparable](m *Mirror, q *registry.PendingQueue[K], name string, key K) {
	if q.Push(key) {
		m.metrics.Enqueued.WithLabelValues(name).Inc()
	}
}

func (m *Mirror) applied(protocol, event string) {
	m.metrics.EventsApplied.WithLabelValues(protocol, event).Inc()
}

func (m *Mirror) superseded(protocol, pool string) {
	m.metrics.Superseded.WithLabelValues(protocol).Inc()
	m.logger.Debug("Discarding loaded state, events resolved the pool first", "protocol", protocol, "pool", pool)
}

// WatchV2 registers a constant-product pool so that its reserves get loaded.
func (m *Mirror) WatchV2(key registry.AddressKey) {
	m.V2.Update(key, func(e *registry.Entry[uniswapv2.State]) {
		if e.State == nil {
			push(m, m.V2Stale, QueueV2Stale, key)
		}
	})
}

// WatchV3 registers a concentrated-liquidity pool so that its config and state get loaded.
func (m *Mirror) WatchV3(key registry.AddressKey) {
	m.V3.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.Config == nil {
			push(m, m.V3Config, QueueV3Config, key)
		}
		if e.State == nil {
			push(m, m.V3Stale, QueueV3Stale, key)
		}
	})
}

// WatchV4 registers a V4 pool by its key. The key supplies the config, which
// the chain only reveals in the pool's Initialize event.
func (m *Mirror) WatchV4(chainID uint64, poolKey uniswapv4.PoolKey) (registry.PoolIDKey, error) {
	id, err := poolKey.ID()
	if err != nil {
		return registry.PoolIDKey{}, err
	}
	key := registry.PoolIDKey{ChainID: chainID, PoolID: id}
	cfg := poolKey.Config()
	m.V4.Update(key, func(e *registry.Entry[uniswapv3.State]) {
		if e.Config == nil {
			e.Config = &cfg
		}
		if e.State == nil {
			push(m, m.V4NotFound, QueueV4NotFound, key)
		}
	})
	return key, nil
}

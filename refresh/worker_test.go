package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/defistate/defistate-mirror-go/events"
	"github.com/defistate/defistate-mirror-go/mirror"
	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv4"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	mu      sync.Mutex
	v2Err   error
	onV2    func()
	v3Calls []int32
	v4Calls []common.Hash

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeFetcher) enter() func() {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeFetcher) V2Reserves(context.Context, uint64, common.Address) (*uint256.Int, *uint256.Int, error) {
	defer f.enter()()
	f.mu.Lock()
	err := f.v2Err
	f.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	if f.onV2 != nil {
		f.onV2()
	}
	return uint256.NewInt(1000), uint256.NewInt(2000), nil
}

func (f *fakeFetcher) V3Config(context.Context, uint64, common.Address) (protocols.PoolConfig, error) {
	return protocols.PoolConfig{Fee: 500, TickSpacing: 10}, nil
}

func (f *fakeFetcher) V3State(_ context.Context, _ uint64, _ common.Address, spacing int32) (uniswapv3.State, error) {
	f.mu.Lock()
	f.v3Calls = append(f.v3Calls, spacing)
	f.mu.Unlock()
	return uniswapv3.NewState(uint256.NewInt(1<<40), uint256.NewInt(5), 3), nil
}

func (f *fakeFetcher) V4State(_ context.Context, _ uint64, id common.Hash, _ int32) (uniswapv3.State, error) {
	f.mu.Lock()
	f.v4Calls = append(f.v4Calls, id)
	f.mu.Unlock()
	return uniswapv3.NewState(uint256.NewInt(1<<40), uint256.NewInt(9), -4), nil
}

func newTestWorker(t *testing.T, f Fetcher, batch int) (*Worker, *mirror.Mirror) {
	t.Helper()
	m, err := mirror.New(mirror.Config{Logger: testLogger(), Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	w, err := New(Config{
		Mirror:    m,
		Fetcher:   f,
		Interval:  10 * time.Millisecond,
		BatchSize: batch,
		Logger:    testLogger(),
		Registry:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return w, m
}

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestNew_Validation(t *testing.T) {
	m, err := mirror.New(mirror.Config{Logger: testLogger(), Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	valid := Config{Mirror: m, Fetcher: &fakeFetcher{}, Logger: testLogger(), Registry: prometheus.NewRegistry()}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no mirror", func(c *Config) { c.Mirror = nil }},
		{"no fetcher", func(c *Config) { c.Fetcher = nil }},
		{"no logger", func(c *Config) { c.Logger = nil }},
		{"no registry", func(c *Config) { c.Registry = nil }},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	w, err := New(valid)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, w.interval)
	assert.Equal(t, DefaultBatchSize, w.batchSize)
}

func TestWorker_SyncDuringFetchSupersedesLoad(t *testing.T) {
	f := &fakeFetcher{}
	w, m := newTestWorker(t, f, 1)
	key := registry.AddressKey{ChainID: 1, Address: addr(0x07)}
	m.WatchV2(key)
	f.onV2 = func() {
		m.HandleV2Sync(1, key.Address, events.V2Sync{Reserve0: *uint256.NewInt(1100), Reserve1: *uint256.NewInt(905)})
	}

	require.NoError(t, w.RunOnce(context.Background()))

	e, _ := m.V2Pool(key)
	require.NotNil(t, e.State)
	assert.Equal(t, uint64(1100), e.State.Reserve0.Uint64())
	assert.Equal(t, uint64(905), e.State.Reserve1.Uint64())
	assert.Zero(t, m.V2Stale.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV2Stale, resultSuperseded)))
	assert.Zero(t, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV2Stale, resultOK)))
}

func TestWorker_RunOnceResolvesQueues(t *testing.T) {
	f := &fakeFetcher{}
	w, m := newTestWorker(t, f, 4)

	v2 := registry.AddressKey{ChainID: 1, Address: addr(0x02)}
	v3 := registry.AddressKey{ChainID: 1, Address: addr(0x03)}
	m.WatchV2(v2)
	m.WatchV3(v3)
	v4, err := m.WatchV4(1, uniswapv4.PoolKey{Currency0: addr(0x10), Currency1: addr(0x11), Fee: 3000, TickSpacing: 60})
	require.NoError(t, err)

	// Seen only through a swap: no pool key, so it cannot be fetched.
	orphan := common.HexToHash("0xbeef")
	m.HandleV4Swap(1, events.V4Swap{PoolID: orphan})
	require.True(t, m.V4NotFound.Contains(registry.PoolIDKey{ChainID: 1, PoolID: orphan}))

	require.NoError(t, w.RunOnce(context.Background()))

	assert.Zero(t, m.V2Stale.Len())
	assert.Zero(t, m.V3Config.Len())
	assert.Zero(t, m.V3Stale.Len())
	assert.Equal(t, []registry.PoolIDKey{{ChainID: 1, PoolID: orphan}}, m.V4NotFound.Pending())

	e2, ok := m.V2Pool(v2)
	require.True(t, ok)
	assert.Equal(t, uint64(2000), e2.State.Reserve1.Uint64())

	e3, ok := m.V3Pool(v3)
	require.True(t, ok)
	require.NotNil(t, e3.Config)
	assert.Equal(t, uint32(500), e3.Config.Fee)
	require.NotNil(t, e3.State)
	assert.Equal(t, int32(3), e3.State.Tick)
	assert.Equal(t, []int32{10}, f.v3Calls)

	e4, ok := m.V4Pool(v4)
	require.True(t, ok)
	require.NotNil(t, e4.State)
	assert.Equal(t, int32(-4), e4.State.Tick)
	assert.Equal(t, []common.Hash{v4.PoolID}, f.v4Calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV2Stale, resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV4NotFound, resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV4NotFound, resultDeferred)))
}

func TestWorker_V3StateWaitsForConfig(t *testing.T) {
	f := &fakeFetcher{}
	w, m := newTestWorker(t, f, 4)

	key := registry.AddressKey{ChainID: 1, Address: addr(0x03)}
	m.WatchV3(key)
	// Config resolved out of band, state still missing.
	m.V3Config.Resolve(key)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.True(t, m.V3Stale.Contains(key))
	assert.Empty(t, f.v3Calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV3Stale, resultDeferred)))

	m.SetV3Config(key, protocols.PoolConfig{Fee: 100, TickSpacing: 1})
	require.NoError(t, w.RunOnce(context.Background()))
	assert.False(t, m.V3Stale.Contains(key))
	assert.Equal(t, []int32{1}, f.v3Calls)
}

func TestWorker_FailuresStayQueued(t *testing.T) {
	f := &fakeFetcher{v2Err: errors.New("connection refused")}
	w, m := newTestWorker(t, f, 4)

	key := registry.AddressKey{ChainID: 1, Address: addr(0x02)}
	m.WatchV2(key)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.True(t, m.V2Stale.Contains(key))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV2Stale, resultError)))

	f.mu.Lock()
	f.v2Err = nil
	f.mu.Unlock()
	require.NoError(t, w.RunOnce(context.Background()))
	assert.False(t, m.V2Stale.Contains(key))
}

func TestWorker_BatchSizeBoundsConcurrency(t *testing.T) {
	f := &fakeFetcher{delay: time.Millisecond}
	w, m := newTestWorker(t, f, 8)

	for i := 0; i < 70; i++ {
		m.WatchV2(registry.AddressKey{ChainID: 1, Address: addr(byte(i + 1))})
	}
	require.NoError(t, w.RunOnce(context.Background()))

	assert.Zero(t, m.V2Stale.Len())
	assert.LessOrEqual(t, f.maxInFlight.Load(), int32(8))
	assert.Equal(t, 70.0, testutil.ToFloat64(w.metrics.Refreshes.WithLabelValues(mirror.QueueV2Stale, resultOK)))
}

func TestWorker_Run(t *testing.T) {
	f := &fakeFetcher{}
	w, m := newTestWorker(t, f, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	key := registry.AddressKey{ChainID: 1, Address: addr(0x02)}
	m.WatchV2(key)
	require.Eventually(t, func() bool { return !m.V2Stale.Contains(key) }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

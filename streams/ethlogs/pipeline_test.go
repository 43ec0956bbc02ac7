package ethlogs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource chan ChainLog

func (c chanSource) Logs() <-chan ChainLog { return c }

type fakeDispatcher struct {
	mu   sync.Mutex
	seen map[uint64][]uint
	fail map[uint]bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, chainID uint64, log types.Log) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[log.Index] {
		return errors.New("decode failed")
	}
	f.seen[chainID] = append(f.seen[chainID], log.Index)
	return nil
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(context.Background(), PipelineConfig{Logger: testLogger(), Registry: prometheus.NewRegistry()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPipeline_DispatchesPerChainInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := &fakeDispatcher{seen: map[uint64][]uint{}, fail: map[uint]bool{3: true}}
	reg := prometheus.NewRegistry()
	p, err := NewPipeline(ctx, PipelineConfig{Dispatcher: disp, Logger: testLogger(), Registry: reg})
	require.NoError(t, err)

	eth, base := make(chanSource), make(chanSource)
	idEth, err := p.AddListener(ctx, eth)
	require.NoError(t, err)
	idBase, err := p.AddListener(ctx, base)
	require.NoError(t, err)
	assert.NotEqual(t, idEth, idBase)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	const n = 50
	var wg sync.WaitGroup
	for _, src := range []struct {
		ch    chanSource
		chain uint64
	}{{eth, 1}, {base, 8453}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				src.ch <- ChainLog{ChainID: src.chain, Log: types.Log{Index: uint(i)}}
			}
			close(src.ch)
		}()
	}
	wg.Wait()
	p.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not drain")
	}

	want := make([]uint, 0, n-1)
	for i := 0; i < n; i++ {
		if i != 3 {
			want = append(want, uint(i))
		}
	}
	assert.Equal(t, want, disp.seen[1])
	assert.Equal(t, want, disp.seen[8453])

	m := NewMetrics(reg)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched.WithLabelValues("1", "error")))
	assert.Equal(t, float64(n-1), testutil.ToFloat64(m.Dispatched.WithLabelValues("8453", "ok")))
}

func TestPipeline_RemoveListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := &fakeDispatcher{seen: map[uint64][]uint{}}
	p, err := NewPipeline(ctx, PipelineConfig{Dispatcher: disp, Logger: testLogger(), Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	src := make(chanSource)
	id, err := p.AddListener(ctx, src)
	require.NoError(t, err)

	ok, err := p.RemoveListener(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.RemoveListener(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPipeline_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	disp := &fakeDispatcher{seen: map[uint64][]uint{}}
	p, err := NewPipeline(ctx, PipelineConfig{Dispatcher: disp, Logger: testLogger(), Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

package funnel

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, out <-chan T, n int) []T {
	t.Helper()
	got := make([]T, 0, n)
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case v, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d items", len(got), n)
		}
	}
	return got
}

func waitClosed[T any](t *testing.T, out <-chan T) {
	t.Helper()
	select {
	case _, ok := <-out:
		require.False(t, ok, "expected output to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("output was not closed")
	}
}

func TestFunnel_MergesSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[int](ctx)

	a := make(chan int)
	b := make(chan int)
	idA, err := ctrl.AddSubscription(ctx, a)
	require.NoError(t, err)
	idB, err := ctrl.AddSubscription(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idA)
	assert.Equal(t, uint32(1), idB)

	go func() {
		for i := 0; i < 5; i++ {
			a <- i
		}
		close(a)
	}()
	go func() {
		for i := 100; i < 105; i++ {
			b <- i
		}
		close(b)
	}()

	got := collect(t, out, 10)
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 100, 101, 102, 103, 104}, got)
}

func TestFunnel_PreservesPerSourceOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[int](ctx)
	src := make(chan int, 100)
	for i := 0; i < 100; i++ {
		src <- i
	}
	close(src)
	_, err := ctrl.AddSubscription(ctx, src)
	require.NoError(t, err)

	got := collect(t, out, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestFunnel_ReusesSmallestFreeID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, _ := Start[int](ctx)
	for want := uint32(0); want < 3; want++ {
		id, err := ctrl.AddSubscription(ctx, make(chan int))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	ok, err := ctrl.RemoveSubscription(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	id, err := ctrl.AddSubscription(ctx, make(chan int))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	id, err = ctrl.AddSubscription(ctx, make(chan int))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), id)
}

func TestFunnel_RemoveUnknownID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, _ := Start[int](ctx)
	ok, err := ctrl.RemoveSubscription(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFunnel_RemovedSourceStopsForwarding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[int](ctx)
	src := make(chan int)
	id, err := ctrl.AddSubscription(ctx, src)
	require.NoError(t, err)

	src <- 1
	assert.Equal(t, []int{1}, collect(t, out, 1))

	ok, err := ctrl.RemoveSubscription(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		select {
		case src <- 2:
		case <-time.After(100 * time.Millisecond):
		}
	}()
	select {
	case v := <-out:
		t.Fatalf("received %d from a removed source", v)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestFunnel_NoIDAvailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, _ := Start[int](ctx, withIDLimit(2))
	_, err := ctrl.AddSubscription(ctx, make(chan int))
	require.NoError(t, err)
	_, err = ctrl.AddSubscription(ctx, make(chan int))
	require.NoError(t, err)

	_, err = ctrl.AddSubscription(ctx, make(chan int))
	assert.ErrorIs(t, err, ErrNoIDAvailable)
}

func TestFunnel_CloseDrainsThenClosesOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[string](ctx)
	src := make(chan string, 2)
	src <- "a"
	src <- "b"
	_, err := ctrl.AddSubscription(ctx, src)
	require.NoError(t, err)

	ctrl.Close()
	_, err = ctrl.AddSubscription(ctx, make(chan string))
	assert.ErrorIs(t, err, ErrClosed)

	close(src)
	assert.Equal(t, []string{"a", "b"}, collect(t, out, 2))
	waitClosed(t, out)

	<-ctrl.Done()
	_, err = ctrl.AddSubscription(ctx, make(chan string))
	assert.ErrorIs(t, err, ErrClosed)
	ctrl.Close()
}

func TestFunnel_CloseWithoutSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[int](ctx)
	ctrl.Close()
	waitClosed(t, out)
}

func TestFunnel_ContextCancelClosesOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ctrl, out := Start[int](ctx)
	_, err := ctrl.AddSubscription(ctx, make(chan int))
	require.NoError(t, err)

	cancel()
	waitClosed(t, out)
	<-ctrl.Done()

	_, err = ctrl.RemoveSubscription(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFunnel_UnboundedOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, out := Start[int](ctx)
	src := make(chan int)
	_, err := ctrl.AddSubscription(ctx, src)
	require.NoError(t, err)

	// Nobody reads out while the source pushes; sends must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			src <- i
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("source blocked on a slow consumer")
	}

	got := collect(t, out, 1000)
	assert.Equal(t, 999, got[len(got)-1])
}

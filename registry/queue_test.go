package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingQueue_PushIsIdempotent(t *testing.T) {
	q := NewPendingQueue[AddressKey]()
	k := addrKey(1, 0x01)

	assert.True(t, q.Push(k))
	assert.False(t, q.Push(k))
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains(k))
}

func TestPendingQueue_FIFOAndResolve(t *testing.T) {
	q := NewPendingQueue[AddressKey]()
	a, b, c := addrKey(1, 0x0a), addrKey(1, 0x0b), addrKey(1, 0x0c)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	assert.Equal(t, []AddressKey{a, b, c}, q.Pending())

	assert.True(t, q.Resolve(b))
	assert.False(t, q.Resolve(b))
	assert.False(t, q.Contains(b))
	assert.Equal(t, []AddressKey{a, c}, q.Pending())

	// A resolved key can be queued again and goes to the back.
	assert.True(t, q.Push(b))
	assert.Equal(t, []AddressKey{a, c, b}, q.Pending())
}

func TestPendingQueue_PendingIsSnapshot(t *testing.T) {
	q := NewPendingQueue[AddressKey]()
	a := addrKey(1, 0x0a)
	q.Push(a)

	snap := q.Pending()
	q.Resolve(a)
	assert.Equal(t, []AddressKey{a}, snap)
	assert.Empty(t, q.Pending())
}

func TestPendingQueue_ConcurrentPush(t *testing.T) {
	q := NewPendingQueue[AddressKey]()
	k := addrKey(1, 0x01)

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Push(k) {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, added)
	assert.Equal(t, 1, q.Len())
}

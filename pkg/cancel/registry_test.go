package cancel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIsCancelledClear(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsCancelled(7))

	r.Request(7)
	assert.True(t, r.IsCancelled(7))
	assert.False(t, r.IsCancelled(8))

	// idempotent
	r.Request(7)
	assert.True(t, r.IsCancelled(7))

	r.Clear(7)
	assert.False(t, r.IsCancelled(7))
	// clearing an absent id is a no-op
	r.Clear(7)
	assert.False(t, r.IsCancelled(7))
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.Request(1)
	r.Request(2)
	r.Request(3)

	r.Reset()

	assert.False(t, r.IsCancelled(1))
	assert.False(t, r.IsCancelled(2))
	assert.False(t, r.IsCancelled(3))
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			r.Request(id)
			r.IsCancelled(id)
			r.Clear(id)
		}(uint(i % 10))
	}
	wg.Wait()
	for i := uint(0); i < 10; i++ {
		assert.False(t, r.IsCancelled(i))
	}
}

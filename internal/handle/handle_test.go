package handle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValueDelete(t *testing.T) {
	h := New("blue")
	require.NotZero(t, h)

	v, ok := Value(h)
	require.True(t, ok)
	assert.Equal(t, "blue", v)

	Delete(h)
	_, ok = Value(h)
	assert.False(t, ok)
}

func TestNew_DistinctHandles(t *testing.T) {
	a := New(1)
	b := New(1)
	defer Delete(a)
	defer Delete(b)

	assert.NotEqual(t, a, b)
}

func TestValue_Zero(t *testing.T) {
	_, ok := Value(0)
	assert.False(t, ok)
}

func TestDelete_Idempotent(t *testing.T) {
	h := New(struct{}{})
	Delete(h)
	Delete(h)
	Delete(0)
}

func TestConcurrency(t *testing.T) {
	before := Live()

	var wg sync.WaitGroup
	iterations := 100
	wg.Add(iterations)
	for i := 0; i < iterations; i++ {
		go func(i int) {
			defer wg.Done()
			h := New(i)
			v, ok := Value(h)
			assert.True(t, ok)
			assert.Equal(t, i, v)
			Delete(h)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, before, Live())
}

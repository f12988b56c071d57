package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinItems: 2}

	var counter int64
	n := 1000
	seen := make([]int, n)

	err := For(n, cfg, func(_, lo, hi int) error {
		for i := lo; i < hi; i++ {
			atomic.AddInt64(&counter, 1)
			seen[i]++
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(n), counter)
	for i, v := range seen {
		assert.Equal(t, 1, v, "index %d", i)
	}
}

func TestForChunksAreContiguousAndOrdered(t *testing.T) {
	tests := []struct {
		n, workers, want int
	}{
		{10, 4, 4},
		{3, 8, 3},
		{7, 7, 7},
		{1000, 3, 3},
	}
	for _, tt := range tests {
		cfg := Config{Enabled: true, NumWorkers: tt.workers, MinItems: 1}
		k := Chunks(tt.n, cfg)
		require.Equal(t, tt.want, k)

		lows := make([]int, k)
		highs := make([]int, k)
		err := For(tt.n, cfg, func(chunk, lo, hi int) error {
			lows[chunk], highs[chunk] = lo, hi
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, 0, lows[0])
		assert.Equal(t, tt.n, highs[k-1])
		for c := 0; c < k; c++ {
			assert.Less(t, lows[c], highs[c], "chunk %d is empty", c)
			if c > 0 {
				assert.Equal(t, highs[c-1], lows[c], "chunk %d is not contiguous", c)
			}
		}
	}
}

func TestForSequentialFallback(t *testing.T) {
	var order []int
	collect := func(chunk, lo, hi int) error {
		assert.Equal(t, 0, chunk)
		for i := lo; i < hi; i++ {
			order = append(order, i)
		}
		return nil
	}

	require.NoError(t, For(5, Sequential(), collect))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 1, Chunks(5, Sequential()))

	// Below MinItems the loop stays on the calling goroutine.
	order = order[:0]
	cfg := Config{Enabled: true, NumWorkers: 8, MinItems: 10}
	require.NoError(t, For(3, cfg, collect))
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 1, Chunks(3, cfg))
}

func TestForZeroItems(t *testing.T) {
	called := false
	err := For(0, DefaultConfig(), func(int, int, int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Zero(t, Chunks(0, DefaultConfig()))
}

func TestForReturnsChunkError(t *testing.T) {
	boom := errors.New("boom")
	var finished int64
	err := For(8, Config{Enabled: true, NumWorkers: 4, MinItems: 1}, func(chunk, _, _ int) error {
		defer atomic.AddInt64(&finished, 1)
		if chunk == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(4), finished)
}

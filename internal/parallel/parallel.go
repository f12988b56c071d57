// Package parallel fans independent loop iterations out to a bounded number
// of goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Maximum goroutines in flight.
	MinItems   int  // Below this many items the loop runs sequentially.
}

// DefaultConfig returns defaults based on GOMAXPROCS.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinItems:   2,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

// Chunks returns how many contiguous ranges For splits n items into: 0 for
// no items, 1 when the loop runs on the calling goroutine, otherwise at most
// NumWorkers.
func Chunks(n int, cfg Config) int {
	switch {
	case n <= 0:
		return 0
	case !cfg.Enabled || cfg.NumWorkers < 2 || n < max(cfg.MinItems, 2):
		return 1
	default:
		return min(cfg.NumWorkers, n)
	}
}

// For splits [0, n) into Chunks(n, cfg) contiguous, non-empty ranges and
// calls fn(chunk, lo, hi) once per range, on its own goroutine when there is
// more than one range. Chunk k always covers lower indices than chunk k+1, so
// callers can keep one accumulator per chunk and reduce them in chunk order.
// fn may only write state owned by its range or its chunk. The first error
// returned by fn is returned once every chunk has finished.
func For(n int, cfg Config, fn func(chunk, lo, hi int) error) error {
	k := Chunks(n, cfg)
	switch k {
	case 0:
		return nil
	case 1:
		return fn(0, 0, n)
	}

	var g errgroup.Group
	for c := 0; c < k; c++ {
		lo, hi := c*n/k, (c+1)*n/k
		g.Go(func() error {
			return fn(c, lo, hi)
		})
	}
	return g.Wait()
}

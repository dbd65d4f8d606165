// Package parallel splits index ranges across goroutines for the CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how Range splits work.
type Config struct {
	Enabled    bool // Whether to use more than one goroutine at all.
	NumWorkers int  // Upper bound on goroutines per call.
	MinChunk   int  // Smallest number of indices handed to one goroutine.
}

// DefaultConfig uses one worker per available CPU.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinChunk:   1 << 12,
	}
}

// Range calls fn over consecutive sub-ranges [start, end) covering [0, n) and
// returns once all calls are done. Small ranges run on the calling goroutine.
// fn must not panic when it runs concurrently.
func Range(n int, cfg Config, fn func(start, end int)) {
	chunk := chunkSize(n, cfg)
	if chunk >= n {
		if n > 0 {
			fn(0, n)
		}
		return
	}
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}

// chunkSize returns the number of indices per goroutine; n or more means serial.
func chunkSize(n int, cfg Config) int {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunk {
		return n
	}
	return max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunk)
}

package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeCoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunk: 10}
	for _, n := range []int{0, 1, 19, 20, 101, 1000} {
		hits := make([]int32, n)
		var calls atomic.Int32
		Range(n, cfg, func(start, end int) {
			calls.Add(1)
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "n=%d index %d", n, i)
		}
		if n < 20 {
			assert.LessOrEqual(t, calls.Load(), int32(1), "n=%d runs serially", n)
		}
	}
}

func TestChunkSize(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunk: 10}
	assert.Equal(t, 19, chunkSize(19, cfg))
	assert.Equal(t, 10, chunkSize(20, cfg))
	assert.Equal(t, 250, chunkSize(1000, cfg))

	cfg.Enabled = false
	assert.Equal(t, 1000, chunkSize(1000, cfg))
	assert.Equal(t, 1000, chunkSize(1000, Config{Enabled: true, NumWorkers: 1}))
}

func BenchmarkRange(b *testing.B) {
	const n = 1 << 20
	data := make([]float64, n)
	for _, cfg := range []Config{DefaultConfig(), {}} {
		name := "serial"
		if cfg.Enabled {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			for range b.N {
				Range(n, cfg, func(start, end int) {
					for i := start; i < end; i++ {
						data[i] = data[i]*0.5 + 1
					}
				})
			}
		})
	}
}

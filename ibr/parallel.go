package ibr

import (
	"runtime"
	"sync"
)

// ParallelConfig sets how Render and Recolor split a frame into row bands.
type ParallelConfig struct {
	// NumWorkers caps the number of bands processed at once. Zero or less
	// uses one band per available CPU.
	NumWorkers int

	// GrainSize is the fewest rows a band may hold. Frames too short to
	// give every worker that many rows are processed on the caller's
	// goroutine.
	GrainSize int
}

// DefaultParallelConfig uses every CPU with bands of at least 16 rows.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{GrainSize: 16}
}

var (
	parallelMu     sync.RWMutex
	parallelConfig = DefaultParallelConfig()
)

// SetParallelConfig replaces the row-band configuration for all later renders.
func SetParallelConfig(config ParallelConfig) {
	parallelMu.Lock()
	parallelConfig = config
	parallelMu.Unlock()
}

// GetParallelConfig returns the row-band configuration in effect.
func GetParallelConfig() ParallelConfig {
	parallelMu.RLock()
	defer parallelMu.RUnlock()
	return parallelConfig
}

func (c ParallelConfig) workers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// ParallelFor calls fn once for every row in [0, n). Rows are grouped into
// contiguous bands, one goroutine per band, and fn may only write output
// that belongs to its own row.
func ParallelFor(n int, fn func(row int)) {
	config := GetParallelConfig()
	workers := config.workers()
	if workers == 1 || n <= config.GrainSize*workers {
		for row := range n {
			fn(row)
		}
		return
	}

	band := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += band {
		end := min(start+band, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := start; row < end; row++ {
				fn(row)
			}
		}()
	}
	wg.Wait()
}

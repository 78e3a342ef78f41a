package ibr

import (
	"sync/atomic"
	"testing"
)

func TestParallelFor(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())

	configs := []ParallelConfig{
		DefaultParallelConfig(),
		{NumWorkers: 1},
		{NumWorkers: 4, GrainSize: 1},
		{NumWorkers: 64, GrainSize: 1},
	}
	for _, config := range configs {
		SetParallelConfig(config)
		for _, n := range []int{0, 1, 7, 100} {
			hits := make([]int32, n)
			ParallelFor(n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("config %+v, n=%d: index %d visited %d times", config, n, i, h)
				}
			}
		}
	}
}

func TestSetParallelConfig(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())

	want := ParallelConfig{NumWorkers: 3, GrainSize: 5}
	SetParallelConfig(want)
	if got := GetParallelConfig(); got != want {
		t.Errorf("GetParallelConfig() = %+v, want %+v", got, want)
	}
	if got := ParallelConfig{}.workers(); got < 1 {
		t.Errorf("ParallelConfig{}.workers() = %d", got)
	}
}

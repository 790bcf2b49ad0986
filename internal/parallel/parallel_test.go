package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3}

	n := 257
	hits := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d ran %d times", i, h)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, Sequential())

	for i, got := range order {
		if got != i {
			t.Fatalf("Expected in-order execution, got %v", order)
		}
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForErr(t *testing.T) {
	boom := errors.New("boom")

	for _, cfg := range []Config{Sequential(), {Enabled: true, NumWorkers: 8, MinChunkSize: 2}} {
		err := ForErr(100, func(i int) error {
			if i == 37 {
				return boom
			}
			return nil
		}, cfg)
		if !errors.Is(err, boom) {
			t.Errorf("cfg %+v: expected boom, got %v", cfg, err)
		}
	}

	if err := ForErr(0, func(int) error { return boom }, DefaultConfig()); err != nil {
		t.Errorf("Expected nil for empty range, got %v", err)
	}
}

func BenchmarkFor(b *testing.B) {
	data := make([]float32, 10000)
	for _, cfg := range []struct {
		name string
		cfg  Config
	}{{"parallel", DefaultConfig()}, {"sequential", Sequential()}} {
		b.Run(cfg.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				For(len(data), func(j int) {
					data[j] += 1
				}, cfg.cfg)
			}
		})
	}
}

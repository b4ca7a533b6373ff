package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFanOutPreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	results, errs := fanOut(context.Background(), items, 8, func(_ context.Context, idx int, item int) (string, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return fmt.Sprintf("r%d", item), nil
	})
	for i := range items {
		if errs[i] != nil {
			t.Fatalf("errs[%d] = %v", i, errs[i])
		}
		if results[i] != fmt.Sprintf("r%d", i) {
			t.Fatalf("results[%d] = %q", i, results[i])
		}
	}
}

func TestFanOutRespectsLimit(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex

	items := make([]int, 30)
	fanOut(context.Background(), items, 3, func(_ context.Context, idx int, _ int) (struct{}, error) {
		n := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})
	if peak > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestFanOutKeepsFailuresInPosition(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3}
	results, errs := fanOut(context.Background(), items, 2, func(_ context.Context, idx int, item int) (int, error) {
		if item%2 == 1 {
			return 0, boom
		}
		return item * 10, nil
	})
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !errors.Is(errs[1], boom) || !errors.Is(errs[3], boom) {
		t.Fatalf("missing errors: %v", errs)
	}
	if results[0] != 0 || results[2] != 20 {
		t.Fatalf("results = %v", results)
	}
}

func TestFanOutCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := make([]int, 5)
	_, errs := fanOut(ctx, items, 1, func(ctx context.Context, idx int, _ int) (int, error) {
		return idx, ctx.Err()
	})
	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == 0 {
		t.Fatal("expected failures under cancelled context")
	}
}

func TestFanOutEmpty(t *testing.T) {
	results, errs := fanOut(context.Background(), nil, 4, func(_ context.Context, idx int, _ struct{}) (int, error) {
		return 0, nil
	})
	if len(results) != 0 || len(errs) != 0 {
		t.Fatalf("results = %v, errs = %v", results, errs)
	}
}

package trial_test

import (
	"context"
	"sync"
	"testing"

	"github.com/astroviz/navbench/internal/trial"
)

func TestRunPoolProcessesAllJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	trial.RunPool(context.Background(), 3, 20, func(worker int, jobs <-chan int) {
		for j := range jobs {
			mu.Lock()
			seen[j] = true
			mu.Unlock()
		}
	})
	if len(seen) != 20 {
		t.Fatalf("processed %d jobs, want 20", len(seen))
	}
}

func TestRunPoolWorkerStateIsPerWorker(t *testing.T) {
	var (
		mu      sync.Mutex
		workers = map[int]int{}
	)
	trial.RunPool(context.Background(), 4, 40, func(worker int, jobs <-chan int) {
		count := 0
		for range jobs {
			count++
		}
		mu.Lock()
		workers[worker] = count
		mu.Unlock()
	})
	total := 0
	for _, c := range workers {
		total += c
	}
	if total != 40 {
		t.Fatalf("workers processed %d jobs total, want 40", total)
	}
	if len(workers) != 4 {
		t.Fatalf("expected 4 workers to report, got %d", len(workers))
	}
}

func TestRunPoolCancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		done int
	)
	trial.RunPool(ctx, 2, 1000, func(worker int, jobs <-chan int) {
		for range jobs {
			mu.Lock()
			done++
			if done == 5 {
				cancel()
			}
			mu.Unlock()
		}
	})
	if done >= 1000 {
		t.Fatal("cancellation did not stop dispatch")
	}
	if done < 5 {
		t.Fatalf("only %d jobs ran before cancellation took effect", done)
	}
}

func TestRunPoolZeroWorkersClamped(t *testing.T) {
	ran := false
	trial.RunPool(context.Background(), 0, 1, func(worker int, jobs <-chan int) {
		for range jobs {
			ran = true
		}
	})
	if !ran {
		t.Fatal("job did not run with clamped worker count")
	}
}

package trial

import (
	"context"
	"sync"
)

// RunPool dispatches trial indices [0, trials) to a fixed set of
// workers. Each worker goroutine calls fn with its worker number, so
// per-worker state (a renderer, an estimator) is built once and reused.
// Cancellation stops dispatch; trials already picked up run to
// completion.
func RunPool(ctx context.Context, maxWorkers, trials int, fn func(worker int, jobs <-chan int)) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			fn(worker, jobs)
		}(w)
	}

	for i := 0; i < trials; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}

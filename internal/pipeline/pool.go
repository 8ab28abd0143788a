package pipeline

import (
	"sync"
)

// runOrdered executes n index-addressed tasks with at most workers running
// concurrently and returns results keyed by ordinal, ready for deterministic
// reassembly regardless of completion order.
//
// The first failure aborts the batch: tasks not yet started are skipped,
// in-flight tasks run to completion but their results are discarded with the
// rest, and the originating error is returned. onDone, when non-nil, is
// called with the running completed count after each successful task;
// completion order is non-deterministic, which callers accept.
func runOrdered(workers, n int, run func(i int) (string, error), onDone func(completed int)) ([]string, error) {
	if n == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	results := make([]string, n)
	indices := make(chan int)

	var mu sync.Mutex
	var firstErr error
	completed := 0

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				text, err := run(i)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				results[i] = text
				completed++
				done := completed
				mu.Unlock()

				if onDone != nil {
					onDone(done)
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

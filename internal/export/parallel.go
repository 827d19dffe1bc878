package export

import "sync"

// runOrdered applies fn to every item with bounded concurrency and returns
// the results in input order.
func runOrdered[T any, R any](items []T, concurrency int, fn func(int, T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	sem := make(chan struct{}, concurrency)
	results := make([]R, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = fn(i, item)
		}(i, item)
	}
	wg.Wait()
	return results
}

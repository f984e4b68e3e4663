// Package parallel splits an index range into contiguous chunks and runs
// them on a bounded number of goroutines. Each chunk owns its [start, end)
// range exclusively, so callers can write results to disjoint slices or
// matrix columns without locking.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/connectome/pkg/errors"
)

// Workers normalizes a requested worker count: n <= 0 means one worker per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Chunks returns the [start, end) ranges that ParallelizeErr hands to
// workers for the given item and worker counts.
func Chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	numWorkers := Workers(workers)
	if numWorkers > items {
		numWorkers = items // No need for more workers than items
	}

	// Ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	chunks := make([][2]int, 0, numWorkers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// ParallelizeErr runs fn over disjoint chunks of [0, items) on at most
// workers goroutines and returns the error of the lowest-indexed failing
// chunk. A panic inside fn is recovered and returned as *errors.PanicError.
func ParallelizeErr(items, workers int, fn func(start, end int) error) error {
	chunks := Chunks(items, workers)
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) == 1 {
		return errors.SafeExecute("parallel chunk", func() error {
			return fn(chunks[0][0], chunks[0][1])
		})
	}

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i, s, e int) {
			defer wg.Done()
			errs[i] = errors.SafeExecute("parallel chunk", func() error {
				return fn(s, e)
			})
		}(i, c[0], c[1])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

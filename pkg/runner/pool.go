package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Pool runs test cases on a fixed number of workers named worker-1..N.
// Each worker runs one test at a time.
type Pool struct {
	coordinator *Coordinator
	workers     int
}

// NewPool creates a pool. workers below 1 is treated as 1.
func NewPool(c *Coordinator, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{coordinator: c, workers: workers}
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

type job struct {
	index int
	tc    TestCase
}

// Run runs every case and returns the results in input order. Cancelling
// ctx stops workers from picking up new tests; tests already running
// finish, and only their results are returned along with ctx's error.
func (p *Pool) Run(ctx context.Context, cases []TestCase) ([]Result, error) {
	results := make([]Result, len(cases))
	ran := make([]bool, len(cases))

	jobs := make(chan job)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, tc := range cases {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- job{index: i, tc: tc}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// In-flight tests are not cut short; the session must still be released
	runCtx := context.WithoutCancel(ctx)

	for w := 1; w <= p.workers; w++ {
		workerID := fmt.Sprintf("worker-%d", w)
		g.Go(func() error {
			for j := range jobs {
				results[j.index] = p.coordinator.Run(runCtx, workerID, j.tc)
				ran[j.index] = true
			}
			return nil
		})
	}

	err := g.Wait()

	completed := make([]Result, 0, len(results))
	for i, r := range results {
		if ran[i] {
			completed = append(completed, r)
		}
	}
	return completed, err
}

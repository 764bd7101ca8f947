package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher is the part of Orchestrator the worker needs.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Outcome, error)
}

// Result is one finished request, in completion order.
type Result struct {
	// Index is the position of the request in the slice passed to Start.
	Index   int
	Request Request
	Outcome Outcome
	Err     error
}

// Worker runs fetches in the background with bounded concurrency and hands
// results back on a single channel.
type Worker struct {
	fetcher     Fetcher
	concurrency int
	results     chan Result
	once        sync.Once
}

// NewWorker returns a Worker running at most concurrency fetches at a time.
func NewWorker(fetcher Fetcher, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		fetcher:     fetcher,
		concurrency: concurrency,
		results:     make(chan Result, concurrency),
	}
}

// Start schedules reqs and returns immediately. The results channel is closed
// once every request has finished. Only the first call has an effect.
func (w *Worker) Start(ctx context.Context, reqs []Request) {
	w.once.Do(func() {
		go w.run(ctx, reqs)
	})
}

// Results returns the channel of finished requests.
func (w *Worker) Results() <-chan Result {
	return w.results
}

func (w *Worker) run(ctx context.Context, reqs []Request) {
	defer close(w.results)

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, req := range reqs {
		if ctx.Err() != nil {
			w.results <- Result{Index: i, Request: req, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			out, err := w.fetcher.Fetch(ctx, req)
			w.results <- Result{Index: i, Request: req, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
}

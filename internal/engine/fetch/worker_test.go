package fetch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/fetch"
)

type fetcherFunc func(ctx context.Context, req fetch.Request) (fetch.Outcome, error)

func (f fetcherFunc) Fetch(ctx context.Context, req fetch.Request) (fetch.Outcome, error) {
	return f(ctx, req)
}

func requests(names ...string) []fetch.Request {
	reqs := make([]fetch.Request, len(names))
	for i, name := range names {
		reqs[i] = fetch.Request{Key: domain.CacheKey{Dataset: name}}
	}
	return reqs
}

func collect(w *fetch.Worker) []fetch.Result {
	var out []fetch.Result
	for res := range w.Results() {
		out = append(out, res)
	}
	return out
}

func TestWorker_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	fetcher := fetcherFunc(func(_ context.Context, req fetch.Request) (fetch.Outcome, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return fetch.Outcome{Key: req.Key, Source: "test"}, nil
	})

	w := fetch.NewWorker(fetcher, 2)
	w.Start(t.Context(), requests("a", "b", "c", "d", "e"))
	results := collect(w)

	require.Len(t, results, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	seen := make(map[int]bool)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, res.Request.Key, res.Outcome.Key)
		seen[res.Index] = true
	}
	assert.Len(t, seen, 5)
}

func TestWorker_ReportsErrorsPerRequest(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fetcher := fetcherFunc(func(_ context.Context, req fetch.Request) (fetch.Outcome, error) {
		if req.Key.Dataset == "bad" {
			return fetch.Outcome{}, boom
		}
		return fetch.Outcome{Key: req.Key}, nil
	})

	w := fetch.NewWorker(fetcher, 4)
	w.Start(t.Context(), requests("good", "bad", "fine"))

	failed := 0
	for _, res := range collect(w) {
		if res.Err != nil {
			failed++
			require.ErrorIs(t, res.Err, boom)
			assert.Equal(t, 1, res.Index)
		}
	}
	assert.Equal(t, 1, failed, "one failure does not stop the others")
}

func TestWorker_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var calls atomic.Int32
	fetcher := fetcherFunc(func(context.Context, fetch.Request) (fetch.Outcome, error) {
		calls.Add(1)
		return fetch.Outcome{}, nil
	})

	w := fetch.NewWorker(fetcher, 1)
	w.Start(ctx, requests("a", "b"))
	results := collect(w)

	require.Len(t, results, 2)
	for _, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}

func TestWorker_StartOnce(t *testing.T) {
	t.Parallel()

	fetcher := fetcherFunc(func(_ context.Context, req fetch.Request) (fetch.Outcome, error) {
		return fetch.Outcome{Key: req.Key}, nil
	})

	w := fetch.NewWorker(fetcher, 0)
	w.Start(t.Context(), requests("a"))
	w.Start(t.Context(), requests("b", "c"))
	assert.Len(t, collect(w), 1)
}

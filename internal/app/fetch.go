package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.trai.ch/orrery/internal/adapters/render" //nolint:depguard // output formatting
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/orrery/internal/engine/fetch"
	"go.trai.ch/zerr"
)

// FetchOptions configuration for the Fetch method.
type FetchOptions struct {
	// Force refetches even when the cache is fresh.
	Force bool
	// Slice restricts every dataset to a year range such as "1990-2000".
	Slice string
}

// Fetch refreshes the given datasets, or every configured dataset when none
// are named, and prints one line per dataset.
func (a *App) Fetch(ctx context.Context, datasets []string, opts FetchOptions) error {
	if len(datasets) == 0 {
		datasets = a.settings.DatasetNames()
	}

	reqs, attributions, err := a.fetchRequests(datasets, opts)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	orch := fetch.NewOrchestrator(store, a.logger,
		fetch.WithRetry(fetch.RetryPolicyFromSettings(a.settings.Fetch)),
		fetch.WithTracer(a.tracer),
	)

	worker := fetch.NewWorker(orch, a.settings.Fetch.Concurrency)
	worker.Start(ctx, reqs)

	results := make([]fetch.Result, len(reqs))
	done := 0
	for res := range worker.Results() {
		results[res.Index] = res
		done++
		if a.interactive() {
			_, _ = fmt.Fprintf(a.stdout, "\r\x1b[K[%d/%d] %s", done, len(reqs), res.Request.Key)
		}
	}
	if a.interactive() {
		_, _ = fmt.Fprint(a.stdout, "\r\x1b[K")
	}

	var errs []error
	tbl := render.NewTable(a.interactive(), "DATASET", "STATUS", "SOURCE", "RECORDS", "ATTEMPTS", "FETCHED")
	for _, res := range results {
		key := res.Request.Key.String()
		if res.Err != nil {
			errs = append(errs, res.Err)
			tbl.Row(key, "failed", "-", "-", "-", "-")
			continue
		}
		out := res.Outcome
		tbl.Row(
			key,
			fetchStatus(out),
			out.Source,
			strconv.Itoa(len(out.Records)),
			strconv.Itoa(out.Attempts),
			formatTime(out.Metadata.FetchedAt),
		)
	}
	if err := tbl.Render(a.stdout); err != nil {
		return err
	}

	for _, name := range datasets {
		if attr := attributions[name]; attr != "" {
			_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", name, attr)
		}
	}

	return errors.Join(errs...)
}

func (a *App) fetchRequests(datasets []string, opts FetchOptions) ([]fetch.Request, map[string]string, error) {
	reqs := make([]fetch.Request, 0, len(datasets))
	attributions := make(map[string]string, len(datasets))

	for _, name := range datasets {
		spec, err := a.settings.Dataset(name)
		if err != nil {
			return nil, nil, err
		}
		key, err := domain.NewCacheKey(name, opts.Slice)
		if err != nil {
			return nil, nil, err
		}

		sources := make([]ports.Source, 0, len(spec.Sources))
		for _, src := range spec.Sources {
			s, err := a.sources.New(src, spec.Attribution)
			if err != nil {
				return nil, nil, zerr.With(err, "dataset", name)
			}
			sources = append(sources, s)
		}

		attributions[name] = spec.Attribution
		reqs = append(reqs, fetch.Request{
			Key:     key,
			Sources: sources,
			MaxAge:  spec.MaxAge,
			Force:   opts.Force,
		})
	}
	return reqs, attributions, nil
}

func fetchStatus(out fetch.Outcome) string {
	switch {
	case out.Stale:
		return "stale"
	case out.FromCache:
		return "cached"
	default:
		return "fetched"
	}
}

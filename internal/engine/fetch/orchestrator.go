// Package fetch coordinates dataset sources and the record store: cache-first
// reads, ordered fallback across sources, per-source retries and stale
// fallback when every source fails.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/orrery/internal/adapters/telemetry" //nolint:depguard // default tracer
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Request asks for the record set of one key.
type Request struct {
	Key domain.CacheKey
	// Sources are tried in order; the first success wins.
	Sources []ports.Source
	// MaxAge is how long a cached record set stays fresh. Zero never expires.
	MaxAge time.Duration
	// Force skips the freshness check and always goes to the sources.
	Force bool
}

// Outcome is the result of a fetch. Records are shared between coalesced
// callers and must be treated as read-only.
type Outcome struct {
	Key         domain.CacheKey
	Source      string
	Attribution string
	Records     []domain.Observation
	Metadata    domain.Metadata
	// FromCache is set when the records were read from the store.
	FromCache bool
	// Stale is set when every source failed and an expired cache was served.
	Stale bool
	// Attempts counts source calls made for this outcome.
	Attempts int
}

// Orchestrator fetches datasets through an ordered list of sources and
// persists every successful result exactly once. Concurrent requests for the
// same key are coalesced, and all work on a key is serialized.
type Orchestrator struct {
	store  ports.RecordStore
	logger ports.Logger
	tracer ports.Tracer
	retry  RetryPolicy
	now    func() time.Time

	group singleflight.Group
	locks keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetry sets the per-source retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithTracer wraps fetches and source attempts in spans.
func WithTracer(t ports.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithClock replaces the clock used for freshness and fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator returns an Orchestrator writing to store.
func NewOrchestrator(store ports.RecordStore, logger ports.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		logger: logger,
		tracer: telemetry.NewNoOpTracer(),
		retry:  DefaultRetryPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Fetch returns the record set for req.Key, from the cache when it is fresh
// and from the first working source otherwise.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Key.Validate(); err != nil {
		return Outcome{}, err
	}
	if len(req.Sources) == 0 {
		return Outcome{}, zerr.With(zerr.Wrap(domain.ErrNoSources, "nothing to fetch from"), "key", req.Key.String())
	}

	ctx, span := o.tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttribute("key", req.Key.String())

	ch := o.group.DoChan(flightKey(req), func() (any, error) {
		return o.fetch(ctx, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			return Outcome{}, res.Err
		}
		out, _ := res.Val.(Outcome)
		span.SetAttribute("source", out.Source)
		span.SetAttribute("from_cache", out.FromCache)
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// flightKey coalesces requests for the same key and force setting. A forced
// request never shares a flight that may answer from the cache.
func flightKey(req Request) string {
	if req.Force {
		return req.Key.String() + "#force"
	}
	return req.Key.String()
}

// Exclusive runs fn while holding the lock for key, so it never overlaps a
// fetch of the same key.
func (o *Orchestrator) Exclusive(key domain.CacheKey, fn func() error) error {
	unlock := o.locks.Lock(key.String())
	defer unlock()
	return fn()
}

func (o *Orchestrator) fetch(ctx context.Context, req Request) (Outcome, error) {
	unlock := o.locks.Lock(req.Key.String())
	defer unlock()

	cached, err := o.store.Load(ctx, req.Key)
	haveCache := err == nil
	if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		o.logger.Warn(fmt.Sprintf("cache for %s is unusable, fetching again: %v", req.Key, err))
	}

	if haveCache && !req.Force && o.fresh(cached.Metadata, req.MaxAge) {
		return fromCache(cached, false), nil
	}

	var (
		errs     []error
		attempts int
	)
	for _, src := range req.Sources {
		result, n, err := o.try(ctx, src, req.Key)
		attempts += n
		if err == nil {
			return o.persist(ctx, req.Key, result, attempts)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		errs = append(errs, zerr.With(err, "source", src.Name()))
		o.logger.Warn(fmt.Sprintf("source %s failed for %s after %d attempt(s): %v", src.Name(), req.Key, n, err))
	}

	if haveCache {
		age := o.now().Sub(cached.Metadata.FetchedAt).Round(time.Second)
		o.logger.Warn(fmt.Sprintf("every source failed for %s; serving cached data from %s ago", req.Key, age))
		out := fromCache(cached, true)
		out.Attempts = attempts
		return out, nil
	}

	failed := zerr.With(zerr.Wrap(domain.ErrFetch, "every source failed"), "key", req.Key.String())
	return Outcome{}, errors.Join(zerr.With(failed, "sources", len(req.Sources)), errors.Join(errs...))
}

// try calls one source under the retry policy and returns the number of calls made.
func (o *Orchestrator) try(ctx context.Context, src ports.Source, key domain.CacheKey) (domain.FetchResult, int, error) {
	attempts := 0
	op := func() (domain.FetchResult, error) {
		attempts++
		ctx, span := o.tracer.Start(ctx, "fetch.attempt")
		defer span.End()
		span.SetAttribute("source", src.Name())
		span.SetAttribute("attempt", attempts)

		if o.retry.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.retry.Timeout)
			defer cancel()
		}

		result, err := src.Fetch(ctx, key)
		if err == nil && len(result.Records) == 0 {
			err = zerr.Wrap(domain.ErrSourceRejected, "source returned no records")
		}
		if err != nil {
			span.RecordError(err)
			if !retryable(err) {
				return domain.FetchResult{}, backoff.Permanent(err)
			}
			return domain.FetchResult{}, err
		}
		if result.Source == "" {
			result.Source = src.Name()
		}
		return result, nil
	}

	notify := func(err error, next time.Duration) {
		o.logger.Info(fmt.Sprintf("retrying %s in %s: %v", src.Name(), next.Round(time.Millisecond), err))
	}
	result, err := backoff.RetryNotifyWithData(op, o.retry.backOff(ctx), notify)
	return result, attempts, err
}

func (o *Orchestrator) persist(
	ctx context.Context,
	key domain.CacheKey,
	result domain.FetchResult,
	attempts int,
) (Outcome, error) {
	fetchedAt := o.now()
	meta, err := o.store.Save(ctx, key, result.Records, func([]domain.Observation) domain.Metadata {
		return domain.Metadata{Source: result.Source, FetchedAt: fetchedAt}
	})
	if err != nil {
		return Outcome{}, zerr.With(err, "source", result.Source)
	}
	return Outcome{
		Key:         key,
		Source:      result.Source,
		Attribution: result.Attribution,
		Records:     result.Records,
		Metadata:    meta,
		Attempts:    attempts,
	}, nil
}

func (o *Orchestrator) fresh(meta domain.Metadata, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return o.now().Sub(meta.FetchedAt) < maxAge
}

func fromCache(rec domain.CacheRecord, stale bool) Outcome {
	return Outcome{
		Key:       rec.Key,
		Source:    rec.Metadata.Source,
		Records:   rec.Records,
		Metadata:  rec.Metadata,
		FromCache: true,
		Stale:     stale,
	}
}

package fetch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/orrery/internal/core/ports/mocks"
	"go.trai.ch/orrery/internal/engine/fetch"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

var (
	now    = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	co2Key = domain.CacheKey{Dataset: "co2-mauna-loa"}
)

func fastRetry() fetch.RetryPolicy {
	return fetch.RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func records(n int) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := range out {
		out[i] = domain.Observation{Time: now.AddDate(0, -n+i, 0), Value: 400 + float64(i)}
	}
	return out
}

func cached(fetchedAt time.Time) domain.CacheRecord {
	return domain.CacheRecord{
		Key:     co2Key,
		Records: records(2),
		Metadata: domain.Metadata{
			Source:      "noaa-gml",
			FetchedAt:   fetchedAt,
			RecordCount: 2,
		},
	}
}

func newSource(ctrl *gomock.Controller, name string) *mocks.MockSource {
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Name().Return(name).AnyTimes()
	return src
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	return log
}

func newOrchestrator(store ports.RecordStore, log ports.Logger) *fetch.Orchestrator {
	return fetch.NewOrchestrator(store, log,
		fetch.WithRetry(fastRetry()),
		fetch.WithClock(func() time.Time { return now }),
	)
}

func expectSave(store *mocks.MockRecordStore, source string) *gomock.Call {
	return store.EXPECT().Save(gomock.Any(), co2Key, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.CacheKey, recs []domain.Observation,
			fn domain.MetadataFunc,
		) (domain.Metadata, error) {
			meta := fn(recs)
			if meta.Source != source {
				return domain.Metadata{}, errors.New("unexpected source " + meta.Source)
			}
			meta.RecordCount = len(recs)
			return meta, nil
		})
}

func TestOrchestrator_FreshCacheSkipsSources(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(cached(now.Add(-time.Hour)), nil)

	out, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
		MaxAge:  24 * time.Hour,
	})
	require.NoError(t, err)
	assert.True(t, out.FromCache)
	assert.False(t, out.Stale)
	assert.Equal(t, "noaa-gml", out.Source)
	assert.Zero(t, out.Attempts)
}

func TestOrchestrator_RetriesThenSaves(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	transient := zerr.Wrap(domain.ErrSourceFailed, "unexpected status")
	gomock.InOrder(
		src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{}, transient),
		src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{}, transient),
		src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{
			Source: "noaa-gml", Attribution: "NOAA", Records: records(3),
		}, nil),
	)
	expectSave(store, "noaa-gml").Times(1)

	out, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
	})
	require.NoError(t, err)
	assert.False(t, out.FromCache)
	assert.Equal(t, "noaa-gml", out.Source)
	assert.Equal(t, "NOAA", out.Attribution)
	assert.Equal(t, 3, out.Attempts)
	assert.Len(t, out.Records, 3)
	assert.Equal(t, 3, out.Metadata.RecordCount)
	assert.True(t, now.Equal(out.Metadata.FetchedAt))
}

func TestOrchestrator_FallsBackInOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	primary := newSource(ctrl, "noaa-gml")
	mirror := newSource(ctrl, "scripps-mirror")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	primary.EXPECT().Fetch(gomock.Any(), co2Key).
		Return(domain.FetchResult{}, zerr.Wrap(domain.ErrSourceRejected, "unexpected status")).Times(1)
	mirror.EXPECT().Fetch(gomock.Any(), co2Key).
		Return(domain.FetchResult{Records: records(2)}, nil).Times(1)
	expectSave(store, "scripps-mirror").Times(1)

	out, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{primary, mirror},
	})
	require.NoError(t, err)
	assert.Equal(t, "scripps-mirror", out.Source, "an empty source name falls back to the source's own name")
	assert.Equal(t, 2, out.Attempts, "a rejected request is not retried")
}

func TestOrchestrator_AllSourcesFail(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	primary := newSource(ctrl, "noaa-gml")
	mirror := newSource(ctrl, "scripps-mirror")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	primary.EXPECT().Fetch(gomock.Any(), co2Key).
		Return(domain.FetchResult{}, zerr.Wrap(domain.ErrSourceFailed, "request failed")).Times(3)
	mirror.EXPECT().Fetch(gomock.Any(), co2Key).
		Return(domain.FetchResult{}, zerr.Wrap(domain.ErrSourceParseFailed, "malformed csv")).Times(1)

	_, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{primary, mirror},
	})
	require.ErrorIs(t, err, domain.ErrFetch)
	require.ErrorIs(t, err, domain.ErrSourceFailed)
	require.ErrorIs(t, err, domain.ErrSourceParseFailed)
}

func TestOrchestrator_StaleFallback(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).MinTimes(2)

	store.EXPECT().Load(gomock.Any(), co2Key).Return(cached(now.Add(-30*24*time.Hour)), nil)
	src.EXPECT().Fetch(gomock.Any(), co2Key).
		Return(domain.FetchResult{}, zerr.Wrap(domain.ErrSourceRejected, "unexpected status"))

	out, err := newOrchestrator(store, log).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
		MaxAge:  7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	assert.True(t, out.FromCache)
	assert.True(t, out.Stale)
	assert.Len(t, out.Records, 2)
	assert.Equal(t, 1, out.Attempts)
}

func TestOrchestrator_ForceBypassesFreshCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(cached(now), nil)
	src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{Records: records(4)}, nil)
	expectSave(store, "noaa-gml").Times(1)

	out, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
		Force:   true,
	})
	require.NoError(t, err)
	assert.False(t, out.FromCache)
	assert.Len(t, out.Records, 4)
}

func TestOrchestrator_ForceDoesNotJoinCachedFlight(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	loading := make(chan struct{}, 2)
	release := make(chan struct{})
	store.EXPECT().Load(gomock.Any(), co2Key).
		DoAndReturn(func(context.Context, domain.CacheKey) (domain.CacheRecord, error) {
			loading <- struct{}{}
			<-release
			return cached(now), nil
		}).Times(2)
	src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{Records: records(4)}, nil).Times(1)
	expectSave(store, "noaa-gml").Times(1)

	orch := newOrchestrator(store, quietLogger(ctrl))
	plain := fetch.Request{Key: co2Key, Sources: []ports.Source{src}, MaxAge: time.Hour}
	forced := plain
	forced.Force = true

	var (
		wg                  sync.WaitGroup
		plainOut, forcedOut fetch.Outcome
		plainErr, forcedErr error
	)
	wg.Go(func() { plainOut, plainErr = orch.Fetch(t.Context(), plain) })
	<-loading
	wg.Go(func() { forcedOut, forcedErr = orch.Fetch(t.Context(), forced) })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, plainErr)
	require.NoError(t, forcedErr)
	assert.True(t, plainOut.FromCache)
	assert.False(t, forcedOut.FromCache, "a forced fetch goes to the sources")
	assert.Len(t, forcedOut.Records, 4)
}

func TestOrchestrator_CorruptCacheIsRefetched(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).Times(1)

	store.EXPECT().Load(gomock.Any(), co2Key).
		Return(domain.CacheRecord{}, zerr.Wrap(domain.ErrCacheUnavailable, "no valid backup to restore"))
	src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{Records: records(1)}, nil)
	expectSave(store, "noaa-gml").Times(1)

	_, err := newOrchestrator(store, log).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
	})
	require.NoError(t, err)
}

func TestOrchestrator_SaveFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{Records: records(1)}, nil)
	store.EXPECT().Save(gomock.Any(), co2Key, gomock.Any(), gomock.Any()).
		Return(domain.Metadata{}, zerr.Wrap(domain.ErrCacheSelfCheckFailed, "temp file does not parse back")).Times(1)

	_, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
	})
	require.ErrorIs(t, err, domain.ErrCacheSelfCheckFailed)
}

func TestOrchestrator_EmptyResultIsRejected(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	src.EXPECT().Fetch(gomock.Any(), co2Key).Return(domain.FetchResult{}, nil).Times(1)

	_, err := newOrchestrator(store, quietLogger(ctrl)).Fetch(t.Context(), fetch.Request{
		Key:     co2Key,
		Sources: []ports.Source{src},
	})
	require.ErrorIs(t, err, domain.ErrFetch)
}

func TestOrchestrator_AttemptTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	store.EXPECT().Load(gomock.Any(), co2Key).Return(domain.CacheRecord{}, domain.ErrCacheMiss)
	src.EXPECT().Fetch(gomock.Any(), co2Key).
		DoAndReturn(func(ctx context.Context, _ domain.CacheKey) (domain.FetchResult, error) {
			<-ctx.Done()
			return domain.FetchResult{}, ctx.Err()
		}).Times(2)

	policy := fastRetry()
	policy.Attempts = 2
	policy.Timeout = 10 * time.Millisecond
	orch := fetch.NewOrchestrator(store, quietLogger(ctrl), fetch.WithRetry(policy))

	_, err := orch.Fetch(t.Context(), fetch.Request{Key: co2Key, Sources: []ports.Source{src}})
	require.ErrorIs(t, err, domain.ErrFetch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	orch := newOrchestrator(mocks.NewMockRecordStore(ctrl), quietLogger(ctrl))

	_, err := orch.Fetch(t.Context(), fetch.Request{Key: co2Key})
	require.ErrorIs(t, err, domain.ErrNoSources)

	_, err = orch.Fetch(t.Context(), fetch.Request{
		Key:     domain.CacheKey{Dataset: "Bad Name"},
		Sources: []ports.Source{newSource(ctrl, "x")},
	})
	require.ErrorIs(t, err, domain.ErrInvalidCacheKey)
}

func TestOrchestrator_CoalescesConcurrentRequests(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	src := newSource(ctrl, "noaa-gml")

	var (
		mu    sync.Mutex
		saved *domain.CacheRecord
	)
	store.EXPECT().Load(gomock.Any(), co2Key).
		DoAndReturn(func(context.Context, domain.CacheKey) (domain.CacheRecord, error) {
			mu.Lock()
			defer mu.Unlock()
			if saved == nil {
				return domain.CacheRecord{}, domain.ErrCacheMiss
			}
			return *saved, nil
		}).AnyTimes()
	store.EXPECT().Save(gomock.Any(), co2Key, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key domain.CacheKey, recs []domain.Observation,
			fn domain.MetadataFunc,
		) (domain.Metadata, error) {
			mu.Lock()
			defer mu.Unlock()
			meta := fn(recs)
			saved = &domain.CacheRecord{Key: key, Records: recs, Metadata: meta}
			return meta, nil
		}).Times(1)

	release := make(chan struct{})
	var calls atomic.Int32
	src.EXPECT().Fetch(gomock.Any(), co2Key).
		DoAndReturn(func(context.Context, domain.CacheKey) (domain.FetchResult, error) {
			calls.Add(1)
			<-release
			return domain.FetchResult{Records: records(5)}, nil
		}).Times(1)

	orch := newOrchestrator(store, quietLogger(ctrl))
	req := fetch.Request{Key: co2Key, Sources: []ports.Source{src}, MaxAge: time.Hour}

	const callers = 8
	var wg sync.WaitGroup
	outcomes := make([]fetch.Outcome, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Go(func() {
			outcomes[i], errs[i] = orch.Fetch(t.Context(), req)
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, outcomes[i].Records, 5)
	}
}

func TestOrchestrator_Exclusive(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	orch := newOrchestrator(mocks.NewMockRecordStore(ctrl), quietLogger(ctrl))

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_ = orch.Exclusive(co2Key, func() error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())

	sentinel := errors.New("boom")
	require.ErrorIs(t, orch.Exclusive(co2Key, func() error { return sentinel }), sentinel)
}

func TestRetryPolicyFromSettings(t *testing.T) {
	t.Parallel()

	settings := domain.DefaultSettings().Fetch
	policy := fetch.RetryPolicyFromSettings(settings)
	assert.Equal(t, settings.Attempts, policy.Attempts)
	assert.Equal(t, settings.Timeout, policy.Timeout)
	assert.Equal(t, policy, fetch.DefaultRetryPolicy())
}

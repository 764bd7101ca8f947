package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/orrery/internal/core/domain"
)

// RetryPolicy controls how often a single source is retried before the
// orchestrator falls back to the next one.
type RetryPolicy struct {
	// Attempts is the total number of tries per source, including the first.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the time spent retrying one source. Zero means no bound.
	MaxElapsed time.Duration
	// Timeout bounds each attempt. Zero means no bound.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the policy derived from the default settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicyFromSettings(domain.DefaultSettings().Fetch)
}

// RetryPolicyFromSettings converts the fetch configuration.
func RetryPolicyFromSettings(s domain.FetchSettings) RetryPolicy {
	return RetryPolicy{
		Attempts:        s.Attempts,
		InitialInterval: s.InitialInterval,
		MaxInterval:     s.MaxInterval,
		MaxElapsed:      s.MaxElapsed,
		Timeout:         s.Timeout,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	opts := []backoff.ExponentialBackOffOpts{backoff.WithMaxElapsedTime(p.MaxElapsed)}
	if p.InitialInterval > 0 {
		opts = append(opts, backoff.WithInitialInterval(p.InitialInterval))
	}
	if p.MaxInterval > 0 {
		opts = append(opts, backoff.WithMaxInterval(p.MaxInterval))
	}

	var b backoff.BackOff = backoff.NewExponentialBackOff(opts...)
	if p.Attempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.Attempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// retryable reports whether another attempt at the same source can succeed.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrSourceRejected),
		errors.Is(err, domain.ErrSourceParseFailed),
		errors.Is(err, domain.ErrInvalidCacheKey),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

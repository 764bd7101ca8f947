package ports

import (
	"context"

	"go.trai.ch/orrery/internal/core/domain"
)

// Source retrieves one dataset from an external provider.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type Source interface {
	// Name identifies the source in logs and in fetch outcomes.
	Name() string

	// Fetch returns a fully materialized record set. An empty result is an error.
	Fetch(ctx context.Context, key domain.CacheKey) (domain.FetchResult, error)
}

// SourceFactory builds a Source from its configuration.
type SourceFactory interface {
	// New returns the source described by spec.
	New(spec domain.SourceSpec, attribution string) (Source, error)
}

package domain

import "go.trai.ch/zerr"

var (
	// ErrNumericConvergence is returned when an iterative solver does not converge
	// within its iteration budget or produces a non-finite value.
	ErrNumericConvergence = zerr.New("numeric convergence failure")

	// ErrInvalidElements is returned when orbital elements are outside physical bounds.
	ErrInvalidElements = zerr.New("invalid orbital elements")

	// ErrCacheCorruption is returned when a cache file fails validation.
	ErrCacheCorruption = zerr.New("cache record is corrupt")

	// ErrCacheUnavailable is returned when a cache key has no valid data and no valid backup.
	ErrCacheUnavailable = zerr.New("cache record unavailable")

	// ErrFetch is returned when no configured source could produce a dataset.
	ErrFetch = zerr.New("fetch failed")

	// ErrCacheMiss is returned when no cache file exists for a key.
	ErrCacheMiss = zerr.New("cache miss")

	// ErrCacheSchemaUnsupported is returned when a cache file was written by a newer schema.
	ErrCacheSchemaUnsupported = zerr.New("cache schema version not supported")

	// ErrCacheEmptyPayload is returned when a save is attempted with no records.
	ErrCacheEmptyPayload = zerr.New("refusing to save an empty record set")

	// ErrCacheMetadataMismatch is returned when computed metadata disagrees with the payload.
	ErrCacheMetadataMismatch = zerr.New("metadata does not match records")

	// ErrCacheSelfCheckFailed is returned when a freshly written temp file does not parse back.
	ErrCacheSelfCheckFailed = zerr.New("cache self-check failed")

	// ErrInvalidCacheKey is returned when a cache key cannot be used as a storage path.
	ErrInvalidCacheKey = zerr.New("invalid cache key")

	// ErrStoreCreateFailed is returned when the record store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create record store directory")

	// ErrStoreReadFailed is returned when a cache file cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read cache file")

	// ErrStoreWriteFailed is returned when a cache file cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache file")

	// ErrStoreMarshalFailed is returned when records cannot be encoded.
	ErrStoreMarshalFailed = zerr.New("failed to marshal cache file")

	// ErrStoreRemoveFailed is returned when clearing a cache key fails.
	ErrStoreRemoveFailed = zerr.New("failed to remove cache file")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidConfig is returned when configuration values are out of range.
	ErrInvalidConfig = zerr.New("invalid configuration")

	// ErrUnknownBody is returned when a body is not present in the catalog.
	ErrUnknownBody = zerr.New("unknown body")

	// ErrUnknownCentralBody is returned when a body references an undefined central mass.
	ErrUnknownCentralBody = zerr.New("unknown central body")

	// ErrUnknownDataset is returned when a dataset has no configured sources.
	ErrUnknownDataset = zerr.New("unknown dataset")

	// ErrNoSources is returned when an orchestrator is asked to fetch with an empty source list.
	ErrNoSources = zerr.New("no sources configured")

	// ErrSourceFailed is returned when a single source fails to deliver a dataset.
	ErrSourceFailed = zerr.New("source failed")

	// ErrSourceRejected is returned when a source answers with a client error that
	// retrying cannot fix.
	ErrSourceRejected = zerr.New("source rejected the request")

	// ErrSourceParseFailed is returned when a source payload cannot be parsed into observations.
	ErrSourceParseFailed = zerr.New("failed to parse source payload")

	// ErrPrecessionOutOfRange is returned in strict mode when the first-order
	// precession approximation is no longer meaningful.
	ErrPrecessionOutOfRange = zerr.New("precession outside first-order validity")

	// ErrInvalidStep is returned when a time stepper is configured with a non-positive step.
	ErrInvalidStep = zerr.New("invalid mean anomaly step")

	// ErrMissingField is returned when an observation lacks a field needed to build elements.
	ErrMissingField = zerr.New("observation is missing a required field")

	// ErrExportFailed is returned when samples cannot be written to the export stream.
	ErrExportFailed = zerr.New("failed to write export stream")
)

package ports

import (
	"context"

	"go.trai.ch/orrery/internal/core/domain"
)

// RecordStore persists validated record sets, one active file plus rotating
// backups per key. It performs no multi-writer arbitration: callers must not
// issue concurrent writes for the same key. Reads may run concurrently.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RecordStore interface {
	// Save atomically replaces the record set for key. The prior version is
	// kept as a backup. The store never exposes a partially written file.
	Save(ctx context.Context, key domain.CacheKey, records []domain.Observation, metadataFn domain.MetadataFunc) (domain.Metadata, error)

	// Load returns the validated record set for key, restoring once from the
	// newest valid backup when the active file is corrupt.
	// Returns domain.ErrCacheMiss when nothing was ever stored.
	Load(ctx context.Context, key domain.CacheKey) (domain.CacheRecord, error)

	// Validate inspects key without modifying anything on disk.
	Validate(ctx context.Context, key domain.CacheKey) (domain.ValidationReport, error)

	// Repair restores the newest valid backup, preserving the current file
	// as a forensic copy.
	Repair(ctx context.Context, key domain.CacheKey, opts domain.RepairOptions) (domain.RepairResult, error)

	// Clear removes every file stored for key.
	Clear(ctx context.Context, key domain.CacheKey) error

	// ClearAll removes every file the store wrote.
	ClearAll(ctx context.Context) error

	// Keys lists the keys that have an active file or backups.
	Keys(ctx context.Context) ([]domain.CacheKey, error)

	// Unidentified reports stored files whose key cannot be read back, as
	// corrupt reports without a key.
	Unidentified(ctx context.Context) ([]domain.ValidationReport, error)
}

// StoreOpener opens the record store described by the cache settings.
type StoreOpener interface {
	// Open returns a store rooted at settings.Dir.
	Open(settings domain.CacheSettings) (RecordStore, error)
}

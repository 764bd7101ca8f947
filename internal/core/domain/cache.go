package domain

import (
	"regexp"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// CurrentSchemaVersion is the cache file schema written by this build.
const CurrentSchemaVersion = 3

var validDatasetRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// CacheKey identifies one cached record set: a dataset and an optional slice
// (time range, source variant, query parameters).
type CacheKey struct {
	Dataset string
	Slice   string
}

// NewCacheKey validates and returns a key.
func NewCacheKey(dataset, slice string) (CacheKey, error) {
	k := CacheKey{Dataset: dataset, Slice: slice}
	if err := k.Validate(); err != nil {
		return CacheKey{}, err
	}
	return k, nil
}

// ParseCacheKey parses "dataset" or "dataset/slice".
func ParseCacheKey(s string) (CacheKey, error) {
	dataset, slice, _ := strings.Cut(s, "/")
	return NewCacheKey(dataset, slice)
}

// Validate checks that the dataset name is usable as a directory name.
func (k CacheKey) Validate() error {
	if !validDatasetRegex.MatchString(k.Dataset) {
		return zerr.With(zerr.Wrap(ErrInvalidCacheKey,
			"dataset must be lowercase alphanumerics, dots, hyphens or underscores"), "dataset", k.Dataset)
	}
	if strings.ContainsAny(k.Slice, "\n\r\x00") {
		return zerr.With(zerr.Wrap(ErrInvalidCacheKey, "slice contains control characters"), "slice", k.Slice)
	}
	return nil
}

// String returns the canonical form parsed by ParseCacheKey.
func (k CacheKey) String() string {
	if k.Slice == "" {
		return k.Dataset
	}
	return k.Dataset + "/" + k.Slice
}

// Observation is one typed record of a dataset.
type Observation struct {
	Time   time.Time          `json:"time"`
	Value  float64            `json:"value"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

// Metadata describes a persisted record set.
type Metadata struct {
	Source        string
	FetchedAt     time.Time
	SchemaVersion int
	RecordCount   int
	Digest        string
}

// MetadataFunc derives metadata from a fully materialized record set.
type MetadataFunc func(records []Observation) Metadata

// CacheRecord is a validated record set returned by the store.
type CacheRecord struct {
	Key      CacheKey
	Records  []Observation
	Metadata Metadata
}

// CacheState is the observed state of a cache key.
type CacheState string

const (
	// CacheAbsent means no file exists for the key.
	CacheAbsent CacheState = "absent"
	// CacheValid means the active file passed validation.
	CacheValid CacheState = "valid"
	// CacheCorrupt means the active file exists but failed validation.
	CacheCorrupt CacheState = "corrupt"
	// CacheUnsupported means the file was written by a newer schema.
	CacheUnsupported CacheState = "unsupported"
)

// ValidationReport is the read-only diagnosis of one cache key.
type ValidationReport struct {
	Key           CacheKey
	Path          string
	State         CacheState
	SchemaVersion int
	RecordCount   int
	Source        string
	FetchedAt     time.Time
	Problems      []string
	Backups       int
	ValidBackups  int
	Forensics     int
}

// Healthy reports whether the key can be loaded without intervention.
func (r ValidationReport) Healthy() bool {
	return r.State == CacheValid
}

// RepairOptions controls Repair.
type RepairOptions struct {
	// Force restores the newest valid backup even if the active file is valid.
	Force bool
}

// RepairResult describes what Repair did.
type RepairResult struct {
	Key          CacheKey
	Restored     bool
	Generation   int
	ForensicPath string
	RecordCount  int
}

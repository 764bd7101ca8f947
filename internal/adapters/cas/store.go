// Package cas implements the crash-safe record store: one validated JSON
// envelope per cache key with rotating backups and forensic copies.
package cas

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"go.trai.ch/orrery/internal/adapters/telemetry"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultBackups is the number of backup generations kept per key.
const DefaultBackups = 3

// Store implements ports.RecordStore on the local filesystem.
type Store struct {
	root    string
	backups int
	tracer  ports.Tracer
	logger  ports.Logger
	now     func() time.Time
	rename  func(oldpath, newpath string) error
}

// Option configures a Store.
type Option func(*Store)

// WithBackups sets the number of backup generations. Values below 1 are ignored.
func WithBackups(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.backups = n
		}
	}
}

// WithTracer wraps Save, Load and Repair in spans.
func WithTracer(t ports.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithLogger reports automatic restores.
func WithLogger(l ports.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store rooted at root. The directory is created lazily.
func NewStore(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, zerr.Wrap(domain.ErrStoreCreateFailed, "store root is empty")
	}
	s := &Store{
		root:    root,
		backups: DefaultBackups,
		tracer:  telemetry.NewNoOpTracer(),
		now:     time.Now,
		rename:  os.Rename,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Save atomically replaces the record set for key.
func (s *Store) Save(
	ctx context.Context,
	key domain.CacheKey,
	records []domain.Observation,
	metadataFn domain.MetadataFunc,
) (domain.Metadata, error) {
	_, span := s.tracer.Start(ctx, "cache.save")
	defer span.End()
	span.SetAttribute("key", key.String())
	span.SetAttribute("records", len(records))

	meta, err := s.save(ctx, key, records, metadataFn)
	span.RecordError(err)
	return meta, err
}

func (s *Store) save(
	ctx context.Context,
	key domain.CacheKey,
	records []domain.Observation,
	metadataFn domain.MetadataFunc,
) (domain.Metadata, error) {
	if err := key.Validate(); err != nil {
		return domain.Metadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Metadata{}, err
	}
	if len(records) == 0 {
		return domain.Metadata{}, zerr.With(zerr.Wrap(domain.ErrCacheEmptyPayload, "no records"), "key", key.String())
	}

	var meta domain.Metadata
	if metadataFn != nil {
		meta = metadataFn(records)
	}
	if meta.FetchedAt.IsZero() {
		meta.FetchedAt = s.now()
	}

	data, meta, err := encode(key, records, meta)
	if err != nil {
		return domain.Metadata{}, zerr.With(err, "key", key.String())
	}

	files, err := s.files(key)
	if err != nil {
		return domain.Metadata{}, err
	}
	if err := os.MkdirAll(files.dir, domain.DirPerm); err != nil {
		return domain.Metadata{}, zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	tmp, err := writeTemp(files.dir, filepath.Base(files.active), data)
	if err != nil {
		return domain.Metadata{}, err
	}
	var staged string
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
			if staged != "" {
				_ = os.Remove(staged)
			}
		}
	}()

	if err := selfCheck(tmp, key, meta); err != nil {
		return domain.Metadata{}, err
	}
	if staged, err = s.preserveCurrent(key, files); err != nil {
		return domain.Metadata{}, err
	}

	if err := s.rename(tmp, files.active); err != nil {
		return domain.Metadata{}, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "key", key.String())
	}
	committed = true

	if staged != "" {
		if err := s.rotate(files, staged); err != nil {
			return domain.Metadata{}, zerr.With(err, "key", key.String())
		}
	}
	if err := syncDir(files.dir); err != nil {
		return domain.Metadata{}, err
	}
	return meta, nil
}

// selfCheck parses the temp file back and compares it with what was encoded.
func selfCheck(path string, key domain.CacheKey, meta domain.Metadata) error {
	//nolint:gosec // path is a temp file created by the store
	data, err := os.ReadFile(path)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	dec, err := decode(data, key)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheSelfCheckFailed, "temp file does not parse back"), "cause", err.Error())
	}
	got := dec.record.Metadata
	if got.RecordCount != meta.RecordCount || got.Digest != meta.Digest {
		err := zerr.With(zerr.Wrap(domain.ErrCacheSelfCheckFailed, "temp file differs from payload"), "expected", meta.Digest)
		return zerr.With(err, "actual", got.Digest)
	}
	return nil
}

// preserveCurrent keeps the file about to be replaced. A corrupt file is kept
// as a forensic copy right away. A valid file is staged in a temp file and
// only enters the backup rotation once the new file is committed, so a failed
// save leaves the existing generations untouched.
func (s *Store) preserveCurrent(key domain.CacheKey, files keyFiles) (string, error) {
	current, err := readOptional(files.active)
	if err != nil || current == nil {
		return "", err
	}
	if _, err := decode(current, key); err != nil {
		_, err := s.keepForensic(files, current)
		return "", err
	}
	return writeTemp(files.dir, filepath.Base(files.backupPath(1)), current)
}

// rotate shifts .bak.N up by one, dropping generations beyond the limit, and
// moves the staged file in as generation 1.
func (s *Store) rotate(files keyFiles, staged string) error {
	for _, gen := range files.backups {
		if gen >= s.backups {
			if err := removeIfExists(files.backupPath(gen)); err != nil {
				return err
			}
		}
	}
	for gen := s.backups - 1; gen >= 1; gen-- {
		if !slices.Contains(files.backups, gen) {
			continue
		}
		if err := os.Rename(files.backupPath(gen), files.backupPath(gen+1)); err != nil {
			return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
		}
	}
	if err := os.Rename(staged, files.backupPath(1)); err != nil {
		_ = os.Remove(staged)
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

// keepForensic writes data next to the active file under a timestamped name.
func (s *Store) keepForensic(files keyFiles, data []byte) (string, error) {
	stamp := s.now().UTC().Format("20060102T150405.000000000Z")
	path := files.active + domain.CorruptInfix + stamp
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			break
		}
		path = files.active + domain.CorruptInfix + stamp + "-" + strconv.Itoa(i)
	}
	if err := writeAtomic(path, data, os.Rename); err != nil {
		return "", err
	}
	return path, nil
}

// Load returns the validated record set for key.
func (s *Store) Load(ctx context.Context, key domain.CacheKey) (domain.CacheRecord, error) {
	_, span := s.tracer.Start(ctx, "cache.load")
	defer span.End()
	span.SetAttribute("key", key.String())

	rec, err := s.load(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		span.RecordError(err)
	}
	return rec, err
}

func (s *Store) load(ctx context.Context, key domain.CacheKey) (domain.CacheRecord, error) {
	if err := key.Validate(); err != nil {
		return domain.CacheRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.CacheRecord{}, err
	}

	files, err := s.files(key)
	if err != nil {
		return domain.CacheRecord{}, err
	}

	current, err := readOptional(files.active)
	if err != nil {
		return domain.CacheRecord{}, err
	}

	var cause error
	if current == nil {
		if len(files.backups) == 0 {
			return domain.CacheRecord{}, zerr.With(zerr.Wrap(domain.ErrCacheMiss, "nothing stored"), "key", key.String())
		}
		cause = zerr.Wrap(domain.ErrCacheCorruption, "active file is missing")
	} else {
		dec, err := decode(current, key)
		if err == nil {
			return dec.record, nil
		}
		if errors.Is(err, domain.ErrCacheSchemaUnsupported) {
			return domain.CacheRecord{}, zerr.With(err, "key", key.String())
		}
		cause = err
	}

	result, rec, err := s.restore(key, files, current)
	if err != nil {
		return domain.CacheRecord{}, zerr.With(err, "cause", cause.Error())
	}
	if s.logger != nil {
		msg := fmt.Sprintf("cache %s was corrupt (%s); restored backup generation %d", key, cause, result.Generation)
		if result.ForensicPath != "" {
			msg += ", original kept at " + result.ForensicPath
		}
		s.logger.Warn(msg)
	}
	return rec, nil
}

// restore replaces the active file with the newest valid backup. current, when
// non-nil, is preserved as a forensic copy first.
func (s *Store) restore(key domain.CacheKey, files keyFiles, current []byte) (domain.RepairResult, domain.CacheRecord, error) {
	gen, data, rec, ok := s.newestValidBackup(key, files)
	if !ok {
		return domain.RepairResult{}, domain.CacheRecord{},
			zerr.With(zerr.Wrap(domain.ErrCacheUnavailable, "no valid backup to restore"), "key", key.String())
	}

	result := domain.RepairResult{Key: key, Generation: gen, RecordCount: len(rec.Records)}
	if current != nil {
		path, err := s.keepForensic(files, current)
		if err != nil {
			return domain.RepairResult{}, domain.CacheRecord{}, err
		}
		result.ForensicPath = path
	}

	if err := writeAtomic(files.active, data, s.rename); err != nil {
		return domain.RepairResult{}, domain.CacheRecord{}, err
	}
	result.Restored = true
	return result, rec, nil
}

func (s *Store) newestValidBackup(key domain.CacheKey, files keyFiles) (int, []byte, domain.CacheRecord, bool) {
	for _, gen := range files.backups {
		data, err := readOptional(files.backupPath(gen))
		if err != nil || data == nil {
			continue
		}
		dec, err := decode(data, key)
		if err != nil {
			continue
		}
		return gen, data, dec.record, true
	}
	return 0, nil, domain.CacheRecord{}, false
}

// Validate inspects key without modifying anything on disk.
func (s *Store) Validate(ctx context.Context, key domain.CacheKey) (domain.ValidationReport, error) {
	if err := key.Validate(); err != nil {
		return domain.ValidationReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ValidationReport{}, err
	}

	files, err := s.files(key)
	if err != nil {
		return domain.ValidationReport{}, err
	}

	report := domain.ValidationReport{
		Key:       key,
		Path:      files.active,
		Backups:   len(files.backups),
		Forensics: len(files.forensics),
	}
	for _, gen := range files.backups {
		data, err := readOptional(files.backupPath(gen))
		if err != nil || data == nil {
			continue
		}
		if _, err := decode(data, key); err == nil {
			report.ValidBackups++
		}
	}

	current, err := readOptional(files.active)
	if err != nil {
		return domain.ValidationReport{}, err
	}
	if current == nil {
		report.State = domain.CacheAbsent
		if report.Backups > 0 {
			report.State = domain.CacheCorrupt
			report.Problems = append(report.Problems, "active file is missing but backups exist")
		}
		return report, nil
	}

	if version, err := readVersion(current); err == nil {
		report.SchemaVersion = version
	}

	dec, err := decode(current, key)
	switch {
	case err == nil:
		report.State = domain.CacheValid
		report.RecordCount = dec.record.Metadata.RecordCount
		report.Source = dec.record.Metadata.Source
		report.FetchedAt = dec.record.Metadata.FetchedAt
		if dec.original < domain.CurrentSchemaVersion {
			report.Problems = append(report.Problems,
				fmt.Sprintf("schema version %d is migrated on read", dec.original))
		}
	case errors.Is(err, domain.ErrCacheSchemaUnsupported):
		report.State = domain.CacheUnsupported
		report.Problems = append(report.Problems, err.Error())
	default:
		report.State = domain.CacheCorrupt
		report.Problems = append(report.Problems, err.Error())
	}
	return report, nil
}

// Repair restores the newest valid backup, preserving the current file as a
// forensic copy. A valid file is left alone unless opts.Force is set. A file
// from a newer schema also requires Force.
func (s *Store) Repair(ctx context.Context, key domain.CacheKey, opts domain.RepairOptions) (domain.RepairResult, error) {
	_, span := s.tracer.Start(ctx, "cache.repair")
	defer span.End()
	span.SetAttribute("key", key.String())

	result, err := s.repair(ctx, key, opts)
	span.RecordError(err)
	span.SetAttribute("restored", result.Restored)
	return result, err
}

func (s *Store) repair(ctx context.Context, key domain.CacheKey, opts domain.RepairOptions) (domain.RepairResult, error) {
	if err := key.Validate(); err != nil {
		return domain.RepairResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.RepairResult{}, err
	}

	files, err := s.files(key)
	if err != nil {
		return domain.RepairResult{}, err
	}
	current, err := readOptional(files.active)
	if err != nil {
		return domain.RepairResult{}, err
	}

	if current != nil && !opts.Force {
		dec, err := decode(current, key)
		switch {
		case err == nil:
			return domain.RepairResult{Key: key, RecordCount: len(dec.record.Records)}, nil
		case errors.Is(err, domain.ErrCacheSchemaUnsupported):
			return domain.RepairResult{}, zerr.With(zerr.Wrap(err, "refusing to replace a newer file without force"), "key", key.String())
		}
	}

	result, _, err := s.restore(key, files, current)
	return result, err
}

// Clear removes the active file, backups, forensic copies and leftover temp
// files for key.
func (s *Store) Clear(ctx context.Context, key domain.CacheKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := s.files(key)
	if err != nil {
		return err
	}

	paths := []string{files.active}
	for _, gen := range files.backups {
		paths = append(paths, files.backupPath(gen))
	}
	paths = append(paths, files.forensics...)
	paths = append(paths, files.temps...)
	for _, p := range paths {
		if err := removeIfExists(p); err != nil {
			return err
		}
	}

	// Leaves the dataset directory in place when other keys still use it.
	_ = os.Remove(files.dir)
	return nil
}

// ClearAll removes every file the store wrote, across all datasets.
func (s *Store) ClearAll(ctx context.Context) error {
	dirs, err := s.datasetDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
		}
		for _, e := range entries {
			if e.IsDir() || !isStoreFile(e.Name()) {
				continue
			}
			if err := removeIfExists(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
		_ = os.Remove(dir)
	}
	return nil
}

// Keys lists the keys that have an active file or backups, sorted by name.
// The key is read from the newest readable envelope of each file group.
func (s *Store) Keys(ctx context.Context) ([]domain.CacheKey, error) {
	keys, _, err := s.scan(ctx)
	return keys, err
}

// Unidentified reports file groups whose key cannot be read from the active
// file or any backup. Such a group cannot be loaded or repaired by key.
func (s *Store) Unidentified(ctx context.Context) ([]domain.ValidationReport, error) {
	_, reports, err := s.scan(ctx)
	return reports, err
}

func (s *Store) scan(ctx context.Context) ([]domain.CacheKey, []domain.ValidationReport, error) {
	dirs, err := s.datasetDirs()
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[domain.CacheKey]bool)
	var unknown []domain.ValidationReport
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
		}

		// Active files sort before their backups, so the first readable
		// envelope of a group wins.
		var groups []string
		backups := make(map[string]int)
		found := make(map[string]bool)
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !isStoreFile(name) || isTempOrForensic(name) {
				continue
			}
			group := name[:sha256.Size*2]
			if len(groups) == 0 || groups[len(groups)-1] != group {
				groups = append(groups, group)
			}
			if name != group+domain.CacheFileExt {
				backups[group]++
			}
			if found[group] {
				continue
			}
			data, err := readOptional(filepath.Join(dir, name))
			if err != nil || data == nil {
				continue
			}
			key, ok := peekKey(data)
			if !ok || baseName(key) != group+domain.CacheFileExt {
				continue
			}
			found[group] = true
			seen[key] = true
		}

		for _, group := range groups {
			if found[group] {
				continue
			}
			unknown = append(unknown, domain.ValidationReport{
				Path:     filepath.Join(dir, group+domain.CacheFileExt),
				State:    domain.CacheCorrupt,
				Problems: []string{"cache key cannot be read from the file or its backups"},
				Backups:  backups[group],
			})
		}
	}

	keys := make([]domain.CacheKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b domain.CacheKey) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	return keys, unknown, nil
}

func (s *Store) datasetDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(s.root, e.Name()))
		}
	}
	return dirs, nil
}

func readOptional(path string) ([]byte, error) {
	//nolint:gosec // path is derived from a validated key
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", path)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

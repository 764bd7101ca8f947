package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.trai.ch/orrery/internal/adapters/render" //nolint:depguard // output formatting
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/orrery/internal/engine/fetch"
	"go.trai.ch/zerr"
)

// RepairOptions configuration for the CacheRepair method.
type RepairOptions struct {
	// Force restores the newest valid backup even over a valid file.
	Force bool
}

// ClearOptions configuration for the CacheClear method.
type ClearOptions struct {
	// All removes every file the store wrote.
	All bool
}

// CacheList prints the state of every stored key.
func (a *App) CacheList(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	unknown, err := store.Unidentified(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 && len(unknown) == 0 {
		_, err := fmt.Fprintf(a.stdout, "cache at %s is empty\n", a.settings.Cache.Dir)
		return err
	}

	reports, err := validateAll(ctx, store, keys)
	if err != nil {
		return err
	}
	return a.printReports(append(reports, unknown...))
}

// CacheValidate checks the named keys, or every stored file when none are
// named, without modifying anything. It fails when a key is not loadable.
func (a *App) CacheValidate(ctx context.Context, keys []string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	parsed, err := a.resolveKeys(ctx, store, keys)
	if err != nil {
		return err
	}
	var unknown []domain.ValidationReport
	if len(keys) == 0 {
		if unknown, err = store.Unidentified(ctx); err != nil {
			return err
		}
	}
	if len(parsed) == 0 && len(unknown) == 0 {
		_, err := fmt.Fprintf(a.stdout, "cache at %s is empty\n", a.settings.Cache.Dir)
		return err
	}

	reports, err := validateAll(ctx, store, parsed)
	if err != nil {
		return err
	}
	if err := a.printReports(append(reports, unknown...)); err != nil {
		return err
	}

	var errs []error
	for _, r := range unknown {
		errs = append(errs, zerr.With(zerr.Wrap(domain.ErrCacheUnavailable, strings.Join(r.Problems, "; ")), "path", r.Path))
	}
	for _, r := range reports {
		switch r.State {
		case domain.CacheCorrupt:
			errs = append(errs, zerr.With(zerr.Wrap(domain.ErrCacheCorruption, strings.Join(r.Problems, "; ")), "key", r.Key.String()))
		case domain.CacheUnsupported:
			errs = append(errs, zerr.With(zerr.Wrap(domain.ErrCacheSchemaUnsupported, "written by a newer version"),
				"key", r.Key.String()))
		case domain.CacheAbsent, domain.CacheValid:
		}
	}
	return errors.Join(errs...)
}

// CacheRepair restores the newest valid backup of the named keys, or checks
// every stored key when none are named. Valid keys are left alone unless forced.
func (a *App) CacheRepair(ctx context.Context, keys []string, opts RepairOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	parsed, err := a.resolveKeys(ctx, store, keys)
	if err != nil {
		return err
	}

	orch := fetch.NewOrchestrator(store, a.logger, fetch.WithTracer(a.tracer))
	var errs []error
	for _, key := range parsed {
		if err := orch.Exclusive(key, func() error { return a.repairOne(ctx, store, key, opts) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) repairOne(ctx context.Context, store ports.RecordStore, key domain.CacheKey, opts RepairOptions) error {
	res, err := store.Repair(ctx, key, domain.RepairOptions{Force: opts.Force})
	if err != nil {
		return zerr.With(err, "key", key.String())
	}
	if !res.Restored {
		_, err = fmt.Fprintf(a.stdout, "%s: valid, nothing to repair\n", key)
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "%s: restored backup generation %d (%d records)", key, res.Generation, res.RecordCount)
	if err == nil && res.ForensicPath != "" {
		_, err = fmt.Fprintf(a.stdout, ", previous file kept as %s", res.ForensicPath)
	}
	if err == nil {
		_, err = fmt.Fprintln(a.stdout)
	}
	return err
}

// CacheClear removes the named keys, or the whole cache with All.
func (a *App) CacheClear(ctx context.Context, keys []string, opts ClearOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	if opts.All {
		if err := store.ClearAll(ctx); err != nil {
			return err
		}
		a.logger.Info(fmt.Sprintf("cleared cache at %s", a.settings.Cache.Dir))
		return nil
	}
	if len(keys) == 0 {
		return zerr.Wrap(domain.ErrInvalidCacheKey, "name the keys to clear or pass --all")
	}

	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	orch := fetch.NewOrchestrator(store, a.logger, fetch.WithTracer(a.tracer))
	for _, key := range parsed {
		if err := orch.Exclusive(key, func() error { return store.Clear(ctx, key) }); err != nil {
			return zerr.With(err, "key", key.String())
		}
		a.logger.Info(fmt.Sprintf("cleared %s", key))
	}
	return nil
}

// resolveKeys parses keys, defaulting to every stored key.
func (a *App) resolveKeys(ctx context.Context, store ports.RecordStore, keys []string) ([]domain.CacheKey, error) {
	if len(keys) == 0 {
		return store.Keys(ctx)
	}
	return parseKeys(keys)
}

func parseKeys(keys []string) ([]domain.CacheKey, error) {
	parsed := make([]domain.CacheKey, 0, len(keys))
	for _, k := range keys {
		key, err := domain.ParseCacheKey(k)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, key)
	}
	return parsed, nil
}

func validateAll(ctx context.Context, store ports.RecordStore, keys []domain.CacheKey) ([]domain.ValidationReport, error) {
	reports := make([]domain.ValidationReport, 0, len(keys))
	for _, key := range keys {
		r, err := store.Validate(ctx, key)
		if err != nil {
			return nil, zerr.With(err, "key", key.String())
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (a *App) printReports(reports []domain.ValidationReport) error {
	tbl := render.NewTable(a.interactive(), "KEY", "STATE", "SCHEMA", "RECORDS", "SOURCE", "FETCHED", "BACKUPS", "PROBLEMS")
	for _, r := range reports {
		name := r.Key.String()
		if r.Key.Dataset == "" {
			name = r.Path
		}
		schema := "-"
		if r.SchemaVersion > 0 {
			schema = "v" + strconv.Itoa(r.SchemaVersion)
		}
		source := r.Source
		if source == "" {
			source = "-"
		}
		tbl.Row(
			name,
			string(r.State),
			schema,
			strconv.Itoa(r.RecordCount),
			source,
			formatTime(r.FetchedAt),
			fmt.Sprintf("%d/%d", r.ValidBackups, r.Backups),
			strings.Join(r.Problems, "; "),
		)
	}
	return tbl.Render(a.stdout)
}

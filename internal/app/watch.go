package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/orrery/internal/adapters/watcher" //nolint:depguard // debouncing is an app concern
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/orrery/internal/engine/fetch"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// WatchOptions configuration for the Watch method.
type WatchOptions struct {
	// Debounce is the quiet period before a batch of changes is revalidated.
	Debounce time.Duration
	// Repair restores corrupt keys from backup as soon as they are detected.
	Repair bool
}

// Watch revalidates cache keys whenever files in their dataset directory
// change, until ctx is cancelled.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = watcher.DefaultDebounceWindow
	}

	root := a.settings.Cache.Dir
	if err := os.MkdirAll(root, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", root)
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	orch := fetch.NewOrchestrator(store, a.logger, fetch.WithTracer(a.tracer))

	if err := a.watcher.Start(ctx, root); err != nil {
		return err
	}
	defer func() { _ = a.watcher.Stop() }()
	a.logger.Info(fmt.Sprintf("watching %s", root))

	deb := watcher.NewDebouncer(opts.Debounce)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer deb.Close()
		for ev := range a.watcher.Events() {
			deb.Add(ev.Path)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case batch, ok := <-deb.Batches():
				if !ok {
					return nil
				}
				if err := a.revalidate(ctx, store, orch, datasetsOf(root, batch), opts); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					a.logger.Error(err)
				}
			}
		}
	})

	return g.Wait()
}

// datasetsOf maps changed paths to the dataset directories they live in.
func datasetsOf(root string, paths []string) map[string]bool {
	datasets := make(map[string]bool)
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		datasets[first] = true
	}
	return datasets
}

func (a *App) revalidate(
	ctx context.Context,
	store ports.RecordStore,
	orch *fetch.Orchestrator,
	datasets map[string]bool,
	opts WatchOptions,
) error {
	if len(datasets) == 0 {
		return nil
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if !datasets[key.Dataset] {
			continue
		}
		err := orch.Exclusive(key, func() error {
			report, err := store.Validate(ctx, key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "%s  %-28s %s\n", time.Now().UTC().Format(time.TimeOnly), key, report.State)

			if report.State != domain.CacheCorrupt {
				return nil
			}
			if !opts.Repair {
				a.logger.Warn(fmt.Sprintf("%s is corrupt: %s", key, strings.Join(report.Problems, "; ")))
				return nil
			}
			return a.repairOne(ctx, store, key, RepairOptions{})
		})
		if err != nil {
			return zerr.With(err, "key", key.String())
		}
	}
	return nil
}

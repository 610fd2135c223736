package annex

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/annex/internal/extract"
	"github.com/jward/annex/internal/store"
)

// workItem holds everything a parallel extraction worker needs.
type workItem struct {
	src   extract.Source
	batch *store.Batch
	stats extract.Stats
	err   error
}

// IndexFilesParallel indexes files using a three-step pipeline:
//
//	Step A (serial):   Hash check, delete old data, insert file records.
//	Step B (parallel): Parse and extract into one Batch per file.
//	Step C (serial):   Commit batches to SQLite, remapping fake IDs.
//
// Extraction failures are per file; a cancelled ctx stops the pool.
func (e *Engine) IndexFilesParallel(ctx context.Context, paths []string, archived bool) (*IndexStats, error) {
	stats := &IndexStats{}

	// ---- Step A: Serial file preparation ----
	var items []*workItem
	for _, path := range paths {
		src, skip, err := e.prepareFile(path, archived)
		if err != nil {
			return stats, fmt.Errorf("annex: prepare %s: %w", path, err)
		}
		if skip {
			stats.Skipped++
			continue
		}
		items = append(items, &workItem{src: src, batch: store.NewBatch()})
	}
	if len(items) == 0 {
		return stats, nil
	}

	// ---- Step B: Parallel extraction ----
	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(workers, len(items))))
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item.stats, item.err = extract.Java(gctx, item.batch, item.src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, item := range items {
			e.forgetFile(item.src.FileID)
		}
		return stats, err
	}

	// ---- Step C: Serial commit ----
	var errs []error
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", item.src.Path, item.err))
			e.forgetFile(item.src.FileID)
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.src.Path, err))
			e.forgetFile(item.src.FileID)
			continue
		}
		stats.add(item.stats)
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("annex: parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

package annex

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/annex/internal/extract"
	"github.com/jward/annex/internal/logging"
	"github.com/jward/annex/internal/store"
)

// Engine ties the pipeline to its persistent side: it indexes Java sources
// into a SQLite store, snapshots the store into an Index for each build,
// runs registered extensions and records every run's frozen view.
type Engine struct {
	store    *store.Store
	registry *Registry

	scriptsDir string
	scriptsFS  fs.FS

	buildOpts []BuildOption

	// useParallel enables the parallel extraction pipeline.
	useParallel bool
	workers     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel extraction. When true (default), indexing
// parses files on a worker pool and commits their batches serially. Set to
// false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the parallel extraction pool. Zero means one worker per
// CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithScriptsDir sets the base directory script extensions are loaded from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads script extensions from fsys instead of disk. When
// set, the scripts directory is ignored.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithBuildOptions applies opts to every build the Engine creates.
func WithBuildOptions(opts ...BuildOption) Option {
	return func(e *Engine) {
		e.buildOpts = append(e.buildOpts, opts...)
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("annex: create database directory: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("annex: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("annex: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		registry:    NewRegistry(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Registry returns the callbacks every Run executes.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Register adds callbacks to the Engine's registry.
func (e *Engine) Register(cbs ...*Callback) {
	e.registry.Register(cbs...)
}

// IndexStats summarizes one indexing pass.
type IndexStats struct {
	Files       int
	Skipped     int
	Classes     int
	Methods     int
	Fields      int
	Annotations int
}

func (s *IndexStats) add(x extract.Stats) {
	s.Files++
	s.Classes += x.Classes
	s.Methods += x.Methods
	s.Fields += x.Fields
	s.Annotations += x.Annotations
}

// IndexFiles indexes the given Java files. Archived files are application
// sources; the rest are library sources that only serve hierarchy lookups.
//
// For each file:
//  1. Skip unsupported extensions
//  2. Skip unchanged files (same content hash and archive flag)
//  3. Delete the previous declarations of the file
//  4. Extract declarations into the store
//
// Errors on individual files are collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string, archived bool) (*IndexStats, error) {
	if e.useParallel {
		return e.IndexFilesParallel(ctx, paths, archived)
	}
	return e.indexFilesSerial(ctx, paths, archived)
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string, archived bool) (*IndexStats, error) {
	stats := &IndexStats{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.indexFile(ctx, path, archived, stats); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("annex: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

func (e *Engine) indexFile(ctx context.Context, path string, archived bool, stats *IndexStats) error {
	src, skip, err := e.prepareFile(path, archived)
	if err != nil {
		return err
	}
	if skip {
		stats.Skipped++
		return nil
	}
	x, err := extract.Java(ctx, e.store, src)
	if err != nil {
		e.forgetFile(src.FileID)
		return err
	}
	stats.add(x)
	return nil
}

// forgetFile drops a file whose extraction failed so the next pass retries
// it instead of skipping it as unchanged.
func (e *Engine) forgetFile(fileID int64) {
	if err := e.store.DeleteFileData(fileID); err != nil {
		logging.Warn("drop failed file", "file_id", fileID, "err", err)
	}
}

// prepareFile reads path, compares its hash with the stored file record and
// replaces a stale record. skip reports an unchanged or unsupported file.
func (e *Engine) prepareFile(path string, archived bool) (extract.Source, bool, error) {
	if _, ok := extract.LanguageForFile(path); !ok {
		return extract.Source{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return extract.Source{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return extract.Source{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && existing.Archived == archived {
		return extract.Source{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return extract.Source{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Hash:        hash,
		Archived:    archived,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return extract.Source{}, false, fmt.Errorf("insert file: %w", err)
	}
	return extract.Source{Path: path, FileID: fileID, Content: content, Archived: archived}, false, nil
}

// skipDirs are excluded from directory walks.
var skipDirs = map[string]bool{
	"build":        true,
	"target":       true,
	"out":          true,
	"node_modules": true,
}

// IndexDirectory finds every Java file under root and indexes it. Inside a
// git repository it uses git ls-files to respect .gitignore, otherwise it
// walks the filesystem skipping hidden and build output directories.
func (e *Engine) IndexDirectory(ctx context.Context, root string, archived bool) (*IndexStats, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	logging.Debug("indexing directory", "root", root, "files", len(paths), "archived", archived)
	return e.IndexFiles(ctx, paths, archived)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Java files under root.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := extract.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers Java files by walking the filesystem.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := extract.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Snapshot loads the current store contents into an in-memory Index.
func (e *Engine) Snapshot() (*Index, error) {
	return LoadIndex(e.store)
}

// NewBuild creates a build over a fresh snapshot with the Engine's build
// options followed by opts.
func (e *Engine) NewBuild(opts ...BuildOption) (*Build, error) {
	idx, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	all := append(append([]BuildOption{}, e.buildOpts...), opts...)
	return NewBuild(idx, all...), nil
}

// Run executes the registered extensions over a fresh snapshot and
// persists the frozen annotation view and diagnostics, also when the run
// fails after it started. Registration errors are not persisted since no
// phase ran.
func (e *Engine) Run(ctx context.Context, opts ...BuildOption) (*Result, error) {
	b, err := e.NewBuild(opts...)
	if err != nil {
		return nil, err
	}
	res, runErr := b.Run(ctx, e.registry)
	if res == nil || (len(res.Invocations) == 0 && runErr != nil) {
		return res, runErr
	}
	if err := e.saveRun(b, res, runErr != nil); err != nil {
		if runErr != nil {
			return res, runErr
		}
		return res, err
	}
	logging.Debug("run saved", "build", b.ID, "failed", runErr != nil)
	return res, runErr
}

func (e *Engine) saveRun(b *Build, res *Result, failed bool) error {
	idx := b.Index()
	var effective []store.EffectiveAnnotation
	for _, kind := range []Kind{KindPackage, KindClass, KindMethod, KindField} {
		for _, d := range idx.All(kind) {
			for i, a := range b.Overlay().Effective(d) {
				effective = append(effective, store.EffectiveAnnotation{
					TargetName: d.Name(),
					TargetKind: d.Kind().String(),
					Name:       a.Name,
					Attributes: a.Attributes,
					Ordinal:    i,
				})
			}
		}
	}

	items := res.Diagnostics.Items()
	diags := make([]store.DiagnosticRecord, len(items))
	for i, d := range items {
		diags[i] = store.DiagnosticRecord{
			Severity: d.Severity.String(),
			Phase:    d.Phase.String(),
			Callback: d.Callback,
			Target:   d.Target,
			Message:  d.Message,
		}
	}

	run := &store.Run{
		ID:         res.BuildID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Failed:     failed || res.Failed(),
	}
	if err := e.store.SaveRun(run, effective, diags); err != nil {
		return fmt.Errorf("annex: save run: %w", err)
	}
	return nil
}

// LastRun returns the most recent persisted run, or nil when none exist.
func (e *Engine) LastRun() (*store.Run, error) {
	run, err := e.store.LatestRun()
	if err != nil {
		return nil, fmt.Errorf("annex: last run: %w", err)
	}
	return run, nil
}

// EffectiveAnnotations returns the persisted frozen annotations of the named
// declaration in the most recent run. It returns nil when no run exists.
func (e *Engine) EffectiveAnnotations(name string) ([]Annotation, error) {
	run, err := e.LastRun()
	if err != nil || run == nil {
		return nil, err
	}
	rows, err := e.store.EffectiveAnnotations(run.ID, name)
	if err != nil {
		return nil, fmt.Errorf("annex: effective annotations: %w", err)
	}
	out := make([]Annotation, len(rows))
	for i, r := range rows {
		out[i] = Annotation{Name: r.Name, Attributes: r.Attributes}
	}
	return out, nil
}

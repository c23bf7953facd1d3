package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"metacat/internal/config"
	"metacat/internal/document"
	"metacat/internal/sources"
	"metacat/internal/store"
)

// ── Builder ────────────────────────────────────────────────
// Walks the source tree, normalizes every matching file into flat records
// and upserts them into the configured store. One bad file never aborts
// the run; only store connectivity and a missing source directory do.

// Progress observes per-file completion. The builder has no opinion on
// presentation; the CLI installs a terminal printer.
type Progress func(done, total int, path string)

// Options tunes one builder instance.
type Options struct {
	// Workers bounds the parse/flatten concurrency. Store admission stays
	// serialized regardless. Zero means 1.
	Workers int
	// RecursionLimit caps flattening depth; zero uses the package default.
	RecursionLimit int
	// DryRun parses, flattens and checks but skips store writes.
	DryRun bool
	// Progress, when set, is invoked after each file.
	Progress Progress
}

// Builder runs builds against one store binding.
type Builder struct {
	cfg   *config.Config
	store store.Store
	log   *zap.Logger
	opts  Options
}

// New creates a Builder. The store binding is fixed for the builder's
// lifetime.
func New(cfg *config.Config, st store.Store, log *zap.Logger, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = cfg.Build.Workers
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RecursionLimit == 0 {
		opts.RecursionLimit = cfg.Build.RecursionLimit
	}
	return &Builder{cfg: cfg, store: st, log: log, opts: opts}
}

// Run performs one build and returns its summary. Records for files that
// vanished since the last run are deliberately left in place.
func (b *Builder) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	files, err := b.findFiles()
	if err != nil {
		return nil, err
	}

	parser, err := sources.ForExtension(b.cfg.RawMetadata.FileType)
	if err != nil {
		return nil, err
	}

	// Seed the path registry from what the collection already holds, so a
	// new record cannot silently disagree with prior runs.
	existing, err := b.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read existing collection: %w", err)
	}
	registry := document.NewPathRegistry()
	registry.Seed(existing)

	summary := &Summary{FilesFound: len(files)}
	b.log.Info("build started",
		zap.String("directory", b.cfg.SourceDir()),
		zap.String("file_type", b.cfg.RawMetadata.FileType),
		zap.Int("files", len(files)),
		zap.Int("workers", b.opts.Workers))

	// Parsing is embarrassingly parallel; registry admission and store
	// writes are serialized behind one mutex.
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, file := range files {
		g.Go(func() error {
			recs, diags, ferr := b.processFile(gctx, parser, file)

			mu.Lock()
			defer mu.Unlock()

			summary.Diagnostics = append(summary.Diagnostics, diags...)
			if ferr != nil {
				summary.FilesFailed++
				summary.Diagnostics = append(summary.Diagnostics, Diag{
					Kind: DiagParse, File: file, Reason: ferr.Error(),
				})
				b.log.Warn("file skipped", zap.String("file", file), zap.Error(ferr))
			} else {
				for i := range recs {
					for _, c := range registry.Admit(&recs[i]) {
						summary.FieldsDropped++
						summary.Diagnostics = append(summary.Diagnostics, Diag{
							Kind: DiagConflict, File: file, Path: c.Path, Reason: c.Msg,
						})
					}
				}
				if !b.opts.DryRun {
					replaced, uerr := b.store.UpsertMany(gctx, recs)
					if uerr != nil {
						// Store failures are fatal for the whole run.
						return uerr
					}
					summary.RecordsUpserted += len(recs)
					summary.RecordsReplaced += replaced
					summary.RecordsNew += len(recs) - replaced
				}
				summary.FilesProcessed++
			}

			done++
			if b.opts.Progress != nil {
				b.opts.Progress(done, len(files), file)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range summary.Diagnostics {
		if d.Kind != DiagParse { // parse failures were logged above
			b.log.Warn(d.String())
		}
	}

	summary.Duration = time.Since(start)
	b.log.Info("build finished",
		zap.Int("processed", summary.FilesProcessed),
		zap.Int("failed", summary.FilesFailed),
		zap.Int("new", summary.RecordsNew),
		zap.Int("replaced", summary.RecordsReplaced),
		zap.Int("fields_dropped", summary.FieldsDropped),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// findFiles recursively collects files with the configured extension. The
// match is case-insensitive, so Session.JSON is picked up alongside
// session.json.
func (b *Builder) findFiles() ([]string, error) {
	dir := b.cfg.SourceDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("metadata directory %s not found", dir)
	}

	wantExt := strings.ToLower(b.cfg.RawMetadata.FileType)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.ToLower(filepath.Ext(path)) == wantExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// processFile parses one file into flat records. Returned diagnostics
// cover dropped fields and skipped rows; the error means the whole file
// was unusable.
func (b *Builder) processFile(ctx context.Context, parser sources.Parser, path string) ([]document.Record, []Diag, error) {
	var docs []sources.Doc
	var diags []Diag

	if rr, ok := parser.(sources.RowReporter); ok {
		parsed, skipped, err := rr.ParseRows(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		for _, rowErr := range skipped {
			diags = append(diags, Diag{Kind: DiagMalformedRow, File: path, Reason: rowErr.Error()})
		}
		docs = parsed
	} else {
		parsed, err := parser.Parse(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		docs = parsed
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	flattenOpts := document.FlattenOptions{MaxDepth: b.opts.RecursionLimit}

	recs := make([]document.Record, 0, len(docs))
	for _, doc := range docs {
		fields, warnings := document.Flatten(doc.Root, flattenOpts)
		for _, w := range warnings {
			diags = append(diags, Diag{Kind: DiagDroppedField, File: path, Path: w.Path, Reason: w.Msg})
		}

		id, overridden := document.TakeIDOverride(fields)
		if !overridden {
			id = document.RecordID(base, doc.Index, doc.Count)
		}
		recs = append(recs, document.Record{ID: id, Fields: fields})
	}
	return recs, diags, nil
}

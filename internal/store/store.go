package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"metacat/internal/config"
	"metacat/internal/document"
)

// ── Store ──────────────────────────────────────────────────
// One narrow contract over both persistence backends. The build writes
// through it; the dashboard side only ever reads (GetAll/Query).

// Store is the upsert/query contract shared by the embedded file backend
// and the networked document server backend.
type Store interface {
	// Upsert inserts or wholesale-replaces the record with the same ID.
	// Field sets are never merged. The bool reports whether an existing
	// record was replaced.
	Upsert(ctx context.Context, rec document.Record) (bool, error)

	// UpsertMany upserts records in order and returns how many replaced an
	// existing record.
	UpsertMany(ctx context.Context, recs []document.Record) (int, error)

	// GetAll returns every record in the collection, fields flattened to
	// dotted paths.
	GetAll(ctx context.Context) ([]document.Record, error)

	// Query returns the records whose value at the dotted path equals
	// value. Multi-valued fields match when any element equals value.
	Query(ctx context.Context, path string, value any) ([]document.Record, error)

	// Close releases the backend connection, flushing pending state.
	Close(ctx context.Context) error
}

// Open creates the backend named by the configuration. Connection
// parameters are fixed for the lifetime of the run; failure to reach a
// networked backend is fatal and reported with the parameters that failed.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Database.Type {
	case config.BackendFile:
		return OpenFileStore(cfg.StorePath(), log)
	case config.BackendMongo:
		return OpenMongoStore(ctx, cfg.Database, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Database.Type)
	}
}

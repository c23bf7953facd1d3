package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"metacat/internal/document"
)

// ── Embedded file backend ──────────────────────────────────
// The whole collection lives in memory as nested documents and is
// serialized to a single JSON file after every mutating operation. No
// external process, suitable for small collections.

// FileStore is the embedded single-file backend.
type FileStore struct {
	path string
	log  *zap.Logger

	mu   sync.Mutex
	docs map[string]map[string]any // id → nested document (without _id)
}

// fileFormat is the on-disk shape: one object keyed by record ID. Each
// document additionally carries its _id so the file is usable standalone.
type fileFormat struct {
	Records map[string]map[string]any `json:"records"`
}

// OpenFileStore loads (or prepares to create) the collection file at path.
func OpenFileStore(path string, log *zap.Logger) (*FileStore, error) {
	s := &FileStore{
		path: path,
		log:  log,
		docs: make(map[string]map[string]any),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store %s: %w", path, err)
	}

	var persisted fileFormat
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("file store %s: corrupt collection file: %w", path, err)
	}
	for id, doc := range persisted.Records {
		delete(doc, document.IDField)
		s.docs[id] = doc
	}
	log.Debug("file store loaded", zap.String("path", path), zap.Int("records", len(s.docs)))
	return s, nil
}

func (s *FileStore) Upsert(ctx context.Context, rec document.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.docs[rec.ID]
	s.docs[rec.ID] = document.Unflatten(rec.Fields)
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return replaced, nil
}

func (s *FileStore) UpsertMany(ctx context.Context, recs []document.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := 0
	for _, rec := range recs {
		if _, ok := s.docs[rec.ID]; ok {
			replaced++
		}
		s.docs[rec.ID] = document.Unflatten(rec.Fields)
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	return replaced, nil
}

func (s *FileStore) GetAll(ctx context.Context) ([]document.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]document.Record, 0, len(s.docs))
	for _, id := range s.sortedIDsLocked() {
		fields, _ := document.Flatten(document.FromValue(s.docs[id]), document.FlattenOptions{})
		recs = append(recs, document.Record{ID: id, Fields: fields})
	}
	return recs, nil
}

func (s *FileStore) Query(ctx context.Context, path string, value any) ([]document.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []document.Record
	for _, id := range s.sortedIDsLocked() {
		doc := s.docs[id]
		if matchAt(doc, path, value) {
			fields, _ := document.Flatten(document.FromValue(doc), document.FlattenOptions{})
			recs = append(recs, document.Record{ID: id, Fields: fields})
		}
	}
	return recs, nil
}

// Close persists the collection one last time.
func (s *FileStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Len reports the number of records held.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// saveLocked writes the collection atomically: temp file, then rename.
func (s *FileStore) saveLocked() error {
	out := fileFormat{Records: make(map[string]map[string]any, len(s.docs))}
	for id, doc := range s.docs {
		withID := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID[document.IDField] = id
		out.Records[id] = withID
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("file store %s: encode: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("file store %s: %w", s.path, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".metacat-*")
	if err != nil {
		return fmt.Errorf("file store %s: %w", s.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file store %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// matchAt walks the dotted path into a nested document and compares the
// value found there. Multi-valued fields match on any element.
func matchAt(doc map[string]any, path string, value any) bool {
	var cursor any = doc
	for _, seg := range strings.Split(path, document.PathSeparator) {
		m, ok := cursor.(map[string]any)
		if !ok {
			return false
		}
		cursor, ok = m[seg]
		if !ok {
			return false
		}
	}

	if list, ok := cursor.([]any); ok {
		for _, item := range list {
			if looseEqual(item, value) {
				return true
			}
		}
		return false
	}
	return looseEqual(cursor, value)
}

// looseEqual compares scalars across numeric representations, so int64(3)
// from a fresh build matches float64(3) round-tripped through JSON.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"metacat/internal/document"
)

// ── Parser registry ────────────────────────────────────────
// One parser per file format, registered at init() time and looked up by
// extension. Implementations live in this package, one file per format.

// Doc is one ingestible unit parsed out of a file: the whole file for
// hierarchical formats, or a single row/element for tabular and array
// sources. Index and Count drive record ID derivation.
type Doc struct {
	Index int
	Count int
	Root  *document.Node
}

// Parser turns one on-disk file into Doc units.
type Parser interface {
	// Extensions lists the lowercase extensions (with dot) this parser
	// handles.
	Extensions() []string

	// Parse reads the file at path and returns its units. A parse failure
	// is an error for that file only; the caller decides whether the run
	// continues.
	Parse(ctx context.Context, path string) ([]Doc, error)
}

// RowReporter is implemented by tabular parsers that can additionally
// report which malformed rows were skipped. The builder records those as
// warnings instead of failing the file.
type RowReporter interface {
	ParseRows(ctx context.Context, path string) ([]Doc, []*RowError, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Parser{}
)

// Register makes a parser available for its extensions. Called from init()
// in each format file.
func Register(p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range p.Extensions() {
		registry[ext] = p
	}
}

// ForExtension returns the parser for ext (case-insensitive, leading dot
// required), or an error naming the supported set.
func ForExtension(ext string) (Parser, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q (supported: %s)", ext, strings.Join(supportedLocked(), ", "))
	}
	return p, nil
}

// Supported returns the sorted list of registered extensions.
func Supported() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return supportedLocked()
}

func supportedLocked() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

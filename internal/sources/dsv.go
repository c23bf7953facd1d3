package sources

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"metacat/internal/document"
)

// ── Delimiter-separated values parser ──────────────────────
// Header row + N data rows, one record per row. Column names become
// top-level field names directly; cells are coerced to numbers or booleans
// when they parse unambiguously, otherwise kept as text.

type dsvParser struct{}

func init() { Register(&dsvParser{}) }

func (p *dsvParser) Extensions() []string { return []string{".csv", ".tsv", ".dsv"} }

// RowError reports a data row skipped because its column count did not
// match the header. The file's remaining rows are still ingested.
type RowError struct {
	Row  int // 1-based data row number
	Cols int
	Want int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d has %d columns, header has %d", e.Row, e.Cols, e.Want)
}

func (p *dsvParser) Parse(ctx context.Context, path string) ([]Doc, error) {
	docs, _, err := p.parseRows(path)
	return docs, err
}

// ParseRows is the full-fidelity entry point: it additionally returns the
// malformed rows that were skipped.
func (p *dsvParser) ParseRows(ctx context.Context, path string) ([]Doc, []*RowError, error) {
	return p.parseRows(path)
}

func (p *dsvParser) parseRows(path string) ([]Doc, []*RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	delim, err := delimiterFor(path, f)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(f)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	// Column-count mismatches are handled per row, not as a file error.
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", strings.TrimPrefix(filepath.Ext(path), "."), err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty file, expected a header row")
	}

	header := rows[0]
	data := rows[1:]

	var docs []Doc
	var skipped []*RowError
	for i, row := range data {
		if len(row) != len(header) {
			skipped = append(skipped, &RowError{Row: i + 1, Cols: len(row), Want: len(header)})
			continue
		}
		obj := document.Object()
		for j, col := range header {
			if v, ok := coerceCell(row[j]); ok {
				obj.Set(col, document.Scalar(v))
			}
		}
		docs = append(docs, Doc{Root: obj})
	}

	// Indexes and counts are assigned over the rows that survived, keeping
	// the padded IDs dense.
	for i := range docs {
		docs[i].Index = i
		docs[i].Count = len(docs)
	}
	return docs, skipped, nil
}

// delimiterFor picks the column delimiter: comma for .csv, tab for .tsv,
// and for .dsv a sniff over the header line. The file offset is rewound
// before returning.
func delimiterFor(path string, f *os.File) (rune, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ',', nil
	case ".tsv":
		return '\t', nil
	}

	header, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && header == "" {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return 0, fmt.Errorf("rewind: %w", err)
	}

	best, bestCount := ',', 0
	for _, cand := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(header, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	if bestCount == 0 {
		return 0, fmt.Errorf("cannot detect delimiter in header %q", strings.TrimSpace(header))
	}
	return best, nil
}

// coerceCell turns a cell into a typed scalar. Empty cells report ok=false
// and the field is omitted from the record. Values that merely look like
// dates stay text.
func coerceCell(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return s, true
}

package builder

import (
	"fmt"
	"time"
)

// ── Diagnostics ────────────────────────────────────────────
// A run-scoped collector instead of a global logger: every warning the
// build produces is attached to the summary the caller receives, and the
// CLI decides how to present it.

// DiagKind classifies a run warning.
type DiagKind string

const (
	// DiagParse marks a file skipped because its content was unreadable.
	DiagParse DiagKind = "parse"
	// DiagConflict marks a field dropped for a schema-path conflict.
	DiagConflict DiagKind = "conflict"
	// DiagMalformedRow marks a tabular row skipped for a column mismatch.
	DiagMalformedRow DiagKind = "malformed_row"
	// DiagDroppedField marks a field lost during flattening.
	DiagDroppedField DiagKind = "dropped_field"
)

// Diag is one warning attached to a file or record.
type Diag struct {
	Kind   DiagKind
	File   string
	Path   string // dotted field path, when applicable
	Reason string
}

func (d Diag) String() string {
	if d.Path != "" {
		return fmt.Sprintf("%s: %s: field %s: %s", d.Kind, d.File, d.Path, d.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.File, d.Reason)
}

// Summary is the outcome of one build run.
type Summary struct {
	FilesFound      int
	FilesProcessed  int
	FilesFailed     int
	RecordsUpserted int
	RecordsNew      int
	RecordsReplaced int
	FieldsDropped   int
	Diagnostics     []Diag
	Duration        time.Duration
}

// Failed reports whether any file was skipped.
func (s *Summary) Failed() bool { return s.FilesFailed > 0 }

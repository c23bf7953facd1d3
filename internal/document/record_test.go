package document_test

import (
	"sort"
	"testing"

	"metacat/internal/document"
)

func TestRecordID_WholeFile(t *testing.T) {
	if got := document.RecordID("session42", 0, 1); got != "session42" {
		t.Fatalf("RecordID = %q, want base name", got)
	}
	if got := document.RecordID("session42", 0, 0); got != "session42" {
		t.Fatalf("RecordID with count 0 = %q, want base name", got)
	}
}

func TestRecordID_PaddingWidth(t *testing.T) {
	cases := []struct {
		index, count int
		want         string
	}{
		{0, 3, "rows_0"},
		{2, 3, "rows_2"},
		{0, 10, "rows_0"},
		{0, 11, "rows_00"},
		{10, 11, "rows_10"},
		{0, 100, "rows_00"},
		{0, 101, "rows_000"},
		{99, 100, "rows_99"},
	}
	for _, c := range cases {
		if got := document.RecordID("rows", c.index, c.count); got != c.want {
			t.Fatalf("RecordID(rows, %d, %d) = %q, want %q", c.index, c.count, got, c.want)
		}
	}
}

func TestRecordID_LexicalOrderMatchesRowOrder(t *testing.T) {
	const n = 100
	ids := make([]string, n)
	for i := range ids {
		ids[i] = document.RecordID("base", i, n)
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("ID order diverges at %d: %q vs %q", i, ids[i], sorted[i])
		}
	}

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
	}
}

func TestTakeIDOverride(t *testing.T) {
	fields := map[string]any{"_id": "custom", "a": 1}
	id, ok := document.TakeIDOverride(fields)
	if !ok || id != "custom" {
		t.Fatalf("override = %q, %v", id, ok)
	}
	if _, present := fields["_id"]; present {
		t.Fatal("_id should be removed from fields")
	}

	fields = map[string]any{"_id": int64(7)}
	id, ok = document.TakeIDOverride(fields)
	if !ok || id != "7" {
		t.Fatalf("numeric override = %q, %v", id, ok)
	}

	if _, ok := document.TakeIDOverride(map[string]any{"a": 1}); ok {
		t.Fatal("no override expected without _id")
	}
}

package sources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"metacat/internal/document"
	"metacat/internal/sources"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func flattenDoc(t *testing.T, doc sources.Doc) map[string]any {
	t.Helper()
	fields, warnings := document.Flatten(doc.Root, document.FlattenOptions{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return fields
}

func TestJSONParser_SingleObject(t *testing.T) {
	path := writeFile(t, "a.json", `{"x": {"y": 1}}`)

	parser, err := sources.ForExtension(".json")
	if err != nil {
		t.Fatal(err)
	}
	docs, err := parser.Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Count != 1 {
		t.Fatalf("docs = %v", docs)
	}

	fields := flattenDoc(t, docs[0])
	if fields["x.y"] != float64(1) {
		t.Fatalf("x.y = %v", fields["x.y"])
	}
}

func TestJSONParser_ArrayExpandsPerElement(t *testing.T) {
	path := writeFile(t, "arr.json", `[{"n": 1}, {"n": 2}, {"n": 3}]`)

	parser, _ := sources.ForExtension(".json")
	docs, err := parser.Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	for i, doc := range docs {
		if doc.Index != i || doc.Count != 3 {
			t.Fatalf("doc %d has index=%d count=%d", i, doc.Index, doc.Count)
		}
	}
}

func TestJSONParser_MalformedFails(t *testing.T) {
	path := writeFile(t, "bad.json", `{"x": `)

	parser, _ := sources.ForExtension(".json")
	if _, err := parser.Parse(context.Background(), path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestForExtension_Unknown(t *testing.T) {
	if _, err := sources.ForExtension(".yaml"); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}

func TestForExtension_CaseInsensitive(t *testing.T) {
	if _, err := sources.ForExtension(".JSON"); err != nil {
		t.Fatalf("uppercase extension should resolve: %v", err)
	}
}

package document_test

import (
	"reflect"
	"testing"

	"metacat/internal/document"
)

func TestFlatten_NestedObjects(t *testing.T) {
	root := document.FromValue(map[string]any{
		"subject": map[string]any{
			"name": "mouse-17",
			"age":  float64(12),
		},
		"session": "s01",
	})

	fields, warnings := document.Flatten(root, document.FlattenOptions{})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	want := map[string]any{
		"subject.name": "mouse-17",
		"subject.age":  float64(12),
		"session":      "s01",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
}

func TestFlatten_IdempotentOnFlatMapping(t *testing.T) {
	flat := map[string]any{"a": "x", "b": float64(2), "c": true}

	fields, warnings := document.Flatten(document.FromValue(flat), document.FlattenOptions{})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if !reflect.DeepEqual(fields, flat) {
		t.Fatalf("flattening a flat mapping changed it: %v", fields)
	}
}

func TestFlatten_ScalarListSingleField(t *testing.T) {
	root := document.FromValue(map[string]any{
		"tags": []any{"a", "b", "c"},
	})

	fields, _ := document.Flatten(root, document.FlattenOptions{})
	got, ok := fields["tags"].([]any)
	if !ok {
		t.Fatalf("tags stored as %T, want []any", fields["tags"])
	}
	if !reflect.DeepEqual(got, []any{"a", "b", "c"}) {
		t.Fatalf("tags = %v", got)
	}
}

func TestFlatten_ListOfObjectsIsTransparent(t *testing.T) {
	root := document.FromValue(map[string]any{
		"trials": []any{
			map[string]any{"first": float64(1)},
			map[string]any{"second": float64(2)},
		},
	})

	fields, warnings := document.Flatten(root, document.FlattenOptions{})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	want := map[string]any{
		"trials.first":  float64(1),
		"trials.second": float64(2),
	}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
}

func TestFlatten_DuplicateLeafAcrossListSiblingsWarns(t *testing.T) {
	root := document.FromValue(map[string]any{
		"trials": []any{
			map[string]any{"n": float64(1)},
			map[string]any{"n": float64(2)},
		},
	})

	fields, warnings := document.Flatten(root, document.FlattenOptions{})
	if fields["trials.n"] != float64(2) {
		t.Fatalf("trials.n = %v, want the last occurrence", fields["trials.n"])
	}
	if len(warnings) != 1 || warnings[0].Kind != document.WarnDuplicateLeaf {
		t.Fatalf("warnings = %v, want one duplicate_leaf", warnings)
	}
}

func TestFlatten_SegmentWithSeparatorDropped(t *testing.T) {
	root := document.FromValue(map[string]any{
		"ok":      "kept",
		"bad.key": "dropped",
	})

	fields, warnings := document.Flatten(root, document.FlattenOptions{})
	if _, present := fields["bad.key"]; present {
		t.Fatal("field with separator in segment should be dropped")
	}
	if fields["ok"] != "kept" {
		t.Fatal("unrelated field lost")
	}
	if len(warnings) != 1 || warnings[0].Kind != document.WarnSeparatorInSegment {
		t.Fatalf("warnings = %v, want one separator_in_segment", warnings)
	}
}

func TestFlatten_RecursionCeiling(t *testing.T) {
	deep := map[string]any{"leaf": "v"}
	for i := 0; i < 10; i++ {
		deep = map[string]any{"next": deep}
	}

	_, warnings := document.Flatten(document.FromValue(deep), document.FlattenOptions{MaxDepth: 3})
	if len(warnings) == 0 {
		t.Fatal("expected a depth_exceeded warning")
	}
	if warnings[0].Kind != document.WarnDepthExceeded {
		t.Fatalf("warning kind = %v", warnings[0].Kind)
	}
}

func TestUnflatten_RoundTripsStructure(t *testing.T) {
	original := map[string]any{
		"x": map[string]any{
			"y": float64(1),
			"z": map[string]any{"w": "deep"},
		},
		"top": "value",
	}

	fields, _ := document.Flatten(document.FromValue(original), document.FlattenOptions{})
	rebuilt := document.Unflatten(fields)
	if !reflect.DeepEqual(rebuilt, original) {
		t.Fatalf("round trip lost structure:\n got %v\nwant %v", rebuilt, original)
	}
}

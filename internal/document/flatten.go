package document

import (
	"fmt"
	"strings"
)

// ── Flattening ─────────────────────────────────────────────
// Turns a Node tree into a flat map of dotted-path → scalar.
// Pure: problems are reported as Warnings, never as errors.

// PathSeparator joins path segments in flattened field names.
const PathSeparator = "."

// DefaultMaxDepth bounds recursion when FlattenOptions.MaxDepth is zero.
const DefaultMaxDepth = 64

// WarnKind classifies a flattening warning.
type WarnKind string

const (
	// WarnSeparatorInSegment marks a field dropped because a key contains
	// the path separator.
	WarnSeparatorInSegment WarnKind = "separator_in_segment"
	// WarnDuplicateLeaf marks a leaf overwritten by a later list sibling.
	WarnDuplicateLeaf WarnKind = "duplicate_leaf"
	// WarnDepthExceeded marks a subtree dropped at the recursion ceiling.
	WarnDepthExceeded WarnKind = "depth_exceeded"
)

// Warning describes one field dropped or rewritten during flattening.
type Warning struct {
	Kind WarnKind
	Path string
	Msg  string
}

// FlattenOptions tunes the flattener.
type FlattenOptions struct {
	// MaxDepth guards against pathological nesting; 0 means DefaultMaxDepth.
	MaxDepth int
}

type flattener struct {
	maxDepth int
	fields   map[string]any
	warnings []Warning
}

// Flatten converts a Node tree into a flat dotted-path mapping.
//
// Objects contribute one path segment per key. Lists of objects are
// transparent: their children inherit the parent path. Lists of scalars
// become a single multi-valued field. A key containing the separator drops
// that field with a warning rather than producing an ambiguous path.
func Flatten(root *Node, opts FlattenOptions) (map[string]any, []Warning) {
	f := &flattener{
		maxDepth: opts.MaxDepth,
		fields:   make(map[string]any),
	}
	if f.maxDepth <= 0 {
		f.maxDepth = DefaultMaxDepth
	}
	if root != nil {
		f.walk(root, "", 0)
	}
	return f.fields, f.warnings
}

func (f *flattener) walk(n *Node, prefix string, depth int) {
	if depth > f.maxDepth {
		f.warn(WarnDepthExceeded, prefix, fmt.Sprintf("nesting deeper than %d levels, subtree dropped", f.maxDepth))
		return
	}

	switch n.Kind {
	case KindScalar:
		f.emit(prefix, n.Value)

	case KindObject:
		for _, key := range n.Keys() {
			if strings.Contains(key, PathSeparator) {
				f.warn(WarnSeparatorInSegment, joinPath(prefix, key),
					fmt.Sprintf("segment %q contains %q, field dropped", key, PathSeparator))
				continue
			}
			f.walk(n.Get(key), joinPath(prefix, key), depth+1)
		}

	case KindList:
		if n.scalarsOnly() {
			values := make([]any, len(n.Items))
			for i, item := range n.Items {
				values[i] = item.Value
			}
			f.emit(prefix, values)
			return
		}
		// Lists of containers are transparent: children inherit prefix.
		for _, item := range n.Items {
			f.walk(item, prefix, depth+1)
		}
	}
}

// emit records a leaf value, warning when a later list sibling overwrites
// an earlier one at the same path.
func (f *flattener) emit(path string, value any) {
	if path == "" {
		// A bare scalar document has no addressable path.
		f.warn(WarnSeparatorInSegment, path, "top-level scalar has no field name, dropped")
		return
	}
	if _, exists := f.fields[path]; exists {
		f.warn(WarnDuplicateLeaf, path, "duplicate leaf, keeping the last occurrence")
	}
	f.fields[path] = value
}

func (f *flattener) warn(kind WarnKind, path, msg string) {
	f.warnings = append(f.warnings, Warning{Kind: kind, Path: path, Msg: msg})
}

func (n *Node) scalarsOnly() bool {
	for _, item := range n.Items {
		if item.Kind != KindScalar {
			return false
		}
	}
	return true
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + PathSeparator + key
}

// Unflatten rebuilds a nested document from a flat dotted-path mapping.
// Both store backends persist the nested shape; the dashboard queries it
// with the same dotted paths the flattener produced.
func Unflatten(fields map[string]any) map[string]any {
	doc := make(map[string]any)
	for path, value := range fields {
		segments := strings.Split(path, PathSeparator)
		cursor := doc
		for i, seg := range segments {
			if i == len(segments)-1 {
				cursor[seg] = value
				break
			}
			next, ok := cursor[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cursor[seg] = next
			}
			cursor = next
		}
	}
	return doc
}

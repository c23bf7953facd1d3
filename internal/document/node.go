package document

import "sort"

// ── Node ───────────────────────────────────────────────────
// Common intermediate form for every parsed metadata file.
// All sources emit Node trees, the flattener consumes them.

// Kind discriminates the three shapes a node can take.
type Kind int

const (
	// KindScalar is a leaf value: text, number, boolean or nil.
	KindScalar Kind = iota
	// KindObject is a mapping of key → child node, insertion-ordered.
	KindObject
	// KindList is an ordered sequence of child nodes.
	KindList
)

// Node is one position in a parsed metadata document.
type Node struct {
	Kind Kind

	// Value holds the scalar payload when Kind == KindScalar.
	Value any

	// keys preserves insertion order for KindObject.
	keys     []string
	children map[string]*Node

	// Items holds the elements when Kind == KindList.
	Items []*Node
}

// Scalar returns a leaf node holding v.
func Scalar(v any) *Node {
	return &Node{Kind: KindScalar, Value: v}
}

// Object returns an empty object node.
func Object() *Node {
	return &Node{Kind: KindObject, children: map[string]*Node{}}
}

// List returns a list node over items.
func List(items ...*Node) *Node {
	return &Node{Kind: KindList, Items: items}
}

// Set adds or replaces the child under key, keeping first-insertion order.
func (n *Node) Set(key string, child *Node) {
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
}

// Get returns the child under key, or nil.
func (n *Node) Get(key string) *Node {
	return n.children[key]
}

// Keys returns the object keys in insertion order.
func (n *Node) Keys() []string {
	return n.keys
}

// Len returns the number of children (object) or items (list).
func (n *Node) Len() int {
	switch n.Kind {
	case KindObject:
		return len(n.keys)
	case KindList:
		return len(n.Items)
	default:
		return 0
	}
}

// FromValue converts a decoded JSON value (map[string]any, []any, scalars)
// into a Node tree.
func FromValue(v any) *Node {
	switch val := v.(type) {
	case map[string]any:
		obj := Object()
		// Decoded JSON maps have no stable order; sort for determinism.
		for _, k := range sortedKeys(val) {
			obj.Set(k, FromValue(val[k]))
		}
		return obj
	case []any:
		items := make([]*Node, len(val))
		for i, item := range val {
			items[i] = FromValue(item)
		}
		return List(items...)
	default:
		return Scalar(val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package document

import (
	"fmt"
	"sort"
	"strings"
)

// ── Path registry ──────────────────────────────────────────
// The stores persist records as nested documents, so a dotted path must
// occupy the same structural position in every record of a collection: a
// path cannot be a leaf in one record and a container prefix in another.
// The registry surfaces violations before the store misplaces data.

type pathRole int

const (
	roleLeaf pathRole = iota
	roleContainer
)

// Conflict describes one field dropped because its path disagreed with the
// position already established by an earlier record.
type Conflict struct {
	Path string
	Msg  string
}

// PathRegistry tracks the structural role of every dotted path seen in a
// collection. Not safe for concurrent use; the builder serializes
// admissions.
type PathRegistry struct {
	roles map[string]pathRole
}

// NewPathRegistry returns an empty registry.
func NewPathRegistry() *PathRegistry {
	return &PathRegistry{roles: make(map[string]pathRole)}
}

// Seed registers the paths of records already present in the collection,
// so conflicts with prior build runs are caught too.
func (r *PathRegistry) Seed(records []Record) {
	for _, rec := range records {
		for path := range rec.Fields {
			r.register(path)
		}
	}
}

// Admit checks every field of rec against the registered roles. Conflicting
// fields are deleted from rec (that record only) and reported; compatible
// fields are registered for subsequent records.
func (r *PathRegistry) Admit(rec *Record) []Conflict {
	var conflicts []Conflict
	for _, path := range sortedFieldPaths(rec.Fields) {
		if c := r.check(path); c != nil {
			conflicts = append(conflicts, *c)
			delete(rec.Fields, path)
			continue
		}
		r.register(path)
	}
	return conflicts
}

// check returns a conflict when path or one of its prefixes already holds
// an incompatible role.
func (r *PathRegistry) check(path string) *Conflict {
	if role, seen := r.roles[path]; seen && role != roleLeaf {
		return &Conflict{
			Path: path,
			Msg:  fmt.Sprintf("%q is a container prefix in earlier records, cannot also be a value", path),
		}
	}
	for _, prefix := range prefixes(path) {
		if role, seen := r.roles[prefix]; seen && role != roleContainer {
			return &Conflict{
				Path: path,
				Msg:  fmt.Sprintf("%q is a value in earlier records, cannot contain %q", prefix, path),
			}
		}
	}
	return nil
}

func (r *PathRegistry) register(path string) {
	r.roles[path] = roleLeaf
	for _, prefix := range prefixes(path) {
		r.roles[prefix] = roleContainer
	}
}

// prefixes returns every proper dotted prefix of path.
func prefixes(path string) []string {
	var out []string
	for i := strings.Index(path, PathSeparator); i >= 0; {
		out = append(out, path[:i])
		next := strings.Index(path[i+1:], PathSeparator)
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return out
}

func sortedFieldPaths(fields map[string]any) []string {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	// Deterministic admission order keeps conflict reports stable.
	sort.Strings(paths)
	return paths
}

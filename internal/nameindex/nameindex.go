// Package nameindex implements the symbol-name search capability the
// token database consumes: a name maps to the set of arena indices
// declared under it, queryable by exact match or by prefix, with or
// without case sensitivity.
package nameindex

import (
	"sort"
	"strings"

	"github.com/tidwall/btree"
)

type idxSet map[int]struct{}

// Index is not safe for concurrent use; the owning tree serializes
// access the same way it serializes its own state.
type Index struct {
	exact  btree.Map[string, idxSet]
	folded btree.Map[string, idxSet]
}

func New() *Index {
	return &Index{}
}

// Insert maps name to idx. Duplicate pairs are a no-op.
func (ix *Index) Insert(name string, idx int) {
	if name == "" || idx < 0 {
		return
	}
	insertInto(&ix.exact, name, idx)
	insertInto(&ix.folded, strings.ToLower(name), idx)
}

// Remove unmaps a (name, idx) pair. Unknown pairs are a no-op.
func (ix *Index) Remove(name string, idx int) {
	if name == "" {
		return
	}
	removeFrom(&ix.exact, name, idx)
	removeFrom(&ix.folded, strings.ToLower(name), idx)
}

// Find returns the indices registered under name, sorted ascending.
// With prefix set, every name beginning with the query matches.
func (ix *Index) Find(name string, prefix, caseSensitive bool) []int {
	if name == "" {
		return nil
	}

	tree := &ix.exact
	key := name
	if !caseSensitive {
		tree = &ix.folded
		key = strings.ToLower(name)
	}

	var out []int
	if !prefix {
		if set, ok := tree.Get(key); ok {
			out = collect(out, set)
		}
	} else {
		tree.Ascend(key, func(k string, set idxSet) bool {
			if !strings.HasPrefix(k, key) {
				return false
			}
			out = collect(out, set)
			return true
		})
	}

	sort.Ints(out)

	// An index registered under several names (aliases) can match twice
	// in prefix mode.
	dedup := out[:0]
	for i, idx := range out {
		if i == 0 || idx != out[i-1] {
			dedup = append(dedup, idx)
		}
	}
	return dedup
}

// Len reports the number of distinct exact names held.
func (ix *Index) Len() int {
	return ix.exact.Len()
}

// Clear drops every entry.
func (ix *Index) Clear() {
	ix.exact = btree.Map[string, idxSet]{}
	ix.folded = btree.Map[string, idxSet]{}
}

func insertInto(tree *btree.Map[string, idxSet], key string, idx int) {
	set, ok := tree.Get(key)
	if !ok {
		set = make(idxSet)
		tree.Set(key, set)
	}
	set[idx] = struct{}{}
}

func removeFrom(tree *btree.Map[string, idxSet], key string, idx int) {
	set, ok := tree.Get(key)
	if !ok {
		return
	}
	delete(set, idx)
	if len(set) == 0 {
		tree.Delete(key)
	}
}

func collect(out []int, set idxSet) []int {
	for idx := range set {
		out = append(out, idx)
	}
	return out
}

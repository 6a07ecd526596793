package tokens

import (
	"fmt"
	"sort"
)

// TokenExists looks up an exact name scoped to a parent (-1 for the
// root) and filtered by kind mask, returning the first match's index
// or -1. This is how the parser decides between updating an existing
// declaration and inserting a new one.
func (t *Tree) TokenExists(name string, parent int, kindMask Kind) int {
	for _, idx := range t.names.Find(name, false, true) {
		tok := t.At(idx)
		if tok == nil {
			continue
		}
		if tok.ParentIndex == parent && tok.Kind&kindMask != 0 {
			return idx
		}
	}
	return -1
}

// TokenExistsWithArgs disambiguates overloaded functions: same name,
// parent and kind, matched on the default-value-stripped signature.
func (t *Tree) TokenExistsWithArgs(name, baseArgs string, parent int, kind Kind) int {
	for _, idx := range t.names.Find(name, false, true) {
		tok := t.At(idx)
		if tok == nil {
			continue
		}
		if tok.ParentIndex == parent && tok.Kind == kind && tok.BaseArgs == baseArgs {
			return idx
		}
	}
	return -1
}

// FindMatches queries the name index (exact or prefix, with or without
// case) and filters candidates by kind mask. Results are sorted arena
// indices. Prefix mode backs incremental code-completion typing; exact
// mode backs go-to-definition. Repeated queries against an unchanged
// tree are served from an LRU keyed by the mutation generation.
func (t *Tree) FindMatches(query string, caseSensitive, prefix bool, kindMask Kind) []int {
	if query == "" {
		return nil
	}

	key := fmt.Sprintf("%d\x00%t\x00%t\x00%04x\x00%s", t.generation, caseSensitive, prefix, kindMask, query)
	if cached, ok := t.matches.Get(key); ok {
		return cached
	}

	candidates := t.names.Find(query, prefix, caseSensitive)
	result := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		tok := t.At(idx)
		if tok == nil {
			continue
		}
		if kindMask == KindUndefined || tok.Kind&kindMask != 0 {
			result = append(result, idx)
		}
	}

	t.matches.Add(key, result)
	return result
}

// FindTokensInFile intersects a file's owned-token set with a kind
// mask. Unknown files yield nil.
func (t *Tree) FindTokensInFile(filename string, kindMask Kind) []int {
	fileIdx := t.files.Find(normalizeFilename(filename))
	if fileIdx == 0 {
		return nil
	}

	var result []int
	for idx := range t.fileTokens[fileIdx] {
		tok := t.At(idx)
		if tok == nil {
			continue
		}
		if kindMask == KindUndefined || tok.Kind&kindMask != 0 {
			result = append(result, idx)
		}
	}
	sort.Ints(result)
	return result
}

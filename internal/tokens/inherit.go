package tokens

import "strings"

// Ancestor/descendant sets are caches of the directAncestors relation,
// never sources of truth. They are recomputed either one token at a
// time (RecalcInheritanceChain, as the parser discovers base clauses)
// or wholesale (RecalcData, after bulk loads); nothing mutates them ad
// hoc.

// RecalcData rebuilds every derived structure: direct-ancestor
// resolution for all tokens, both transitive closures, and the
// top-level namespace sets. This is the expensive full-consistency
// pass run after a reload or bulk reparse.
func (t *Tree) RecalcData() {
	for _, tok := range t.tokens {
		if tok == nil {
			continue
		}
		tok.DirectAncestors = make(IdxSet)
		tok.Ancestors = make(IdxSet)
		tok.Descendants = make(IdxSet)
	}

	// Direct ancestors must all be resolved before any closure is
	// computed, otherwise a closure could read a not-yet-parsed base
	// list.
	for _, tok := range t.tokens {
		if tok != nil {
			t.resolveDirectAncestors(tok)
		}
	}
	for _, tok := range t.tokens {
		if tok != nil {
			t.closeInheritance(tok)
		}
	}

	t.TopNamespaces = make(IdxSet)
	t.GlobalNamespace = make(IdxSet)
	for idx, tok := range t.tokens {
		if tok == nil || tok.ParentIndex >= 0 {
			continue
		}
		t.GlobalNamespace[idx] = struct{}{}
		if tok.Kind == KindNamespace {
			t.TopNamespaces[idx] = struct{}{}
		}
	}
	t.touch()
}

// RecalcInheritanceChain recomputes a single token's ancestor and
// descendant links from its ancestors string. Called incrementally as
// tokens gain base classes during parsing, so a full RecalcData is not
// needed per token.
func (t *Tree) RecalcInheritanceChain(tok *Token) {
	if tok == nil || tok.tree != t {
		return
	}

	// Drop the old upward links before recomputing.
	for a := range tok.Ancestors {
		if at := t.At(a); at != nil {
			delete(at.Descendants, tok.self)
		}
	}
	tok.DirectAncestors = make(IdxSet)
	tok.Ancestors = make(IdxSet)

	t.resolveDirectAncestors(tok)
	t.closeInheritance(tok)
	t.touch()
}

// resolveDirectAncestors parses the comma-joined ancestors string and
// resolves each name to a container token.
func (t *Tree) resolveDirectAncestors(tok *Token) {
	if tok.AncestorsString == "" {
		return
	}
	for _, name := range strings.Split(tok.AncestorsString, ",") {
		name = strings.TrimSpace(name)
		if !tok.IsValidAncestor(name) {
			continue
		}
		idx := t.findAncestorToken(name, tok.self)
		if idx < 0 {
			continue
		}
		tok.DirectAncestors[idx] = struct{}{}
	}
}

// closeInheritance fills tok.Ancestors with the reflexive-free
// transitive closure of its direct ancestors and registers tok in each
// ancestor's descendant set. Already-computed ancestor closures are
// unioned directly instead of re-traversed.
func (t *Tree) closeInheritance(tok *Token) {
	visited := NewIdxSet(tok.self)
	for a := range tok.DirectAncestors {
		tok.Ancestors[a] = struct{}{}
		t.collectAncestors(a, tok.Ancestors, visited)
	}
	delete(tok.Ancestors, tok.self)

	for a := range tok.Ancestors {
		if at := t.At(a); at != nil {
			at.Descendants[tok.self] = struct{}{}
		}
	}
}

func (t *Tree) collectAncestors(idx int, result, visited IdxSet) {
	if visited.Has(idx) {
		return
	}
	visited[idx] = struct{}{}

	tok := t.At(idx)
	if tok == nil {
		return
	}
	if len(tok.Ancestors) > 0 {
		// Memoized sub-result: this token's own closure is complete.
		for a := range tok.Ancestors {
			result[a] = struct{}{}
		}
		return
	}
	for a := range tok.DirectAncestors {
		result[a] = struct{}{}
		t.collectAncestors(a, result, visited)
	}
}

// findAncestorToken resolves an ancestor name to a container token,
// never the inheriting token itself.
func (t *Tree) findAncestorToken(name string, selfIdx int) int {
	for _, idx := range t.names.Find(name, false, true) {
		if idx == selfIdx {
			continue
		}
		tok := t.At(idx)
		if tok != nil && tok.Kind&KindAnyContainer != 0 {
			return idx
		}
	}
	return -1
}

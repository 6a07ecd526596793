// Package tokens is the in-memory symbol database: an arena of Token
// records with index-stable identity, per-file membership and parse
// status, cached inheritance closures, name search, and a compact
// binary cache format.
package tokens

import (
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codequarry/symdb/internal/interner"
	"github.com/codequarry/symdb/internal/nameindex"
)

// NameIndex is the search capability the tree drives: a symbol name
// maps to the set of arena indices declared under it.
type NameIndex interface {
	Insert(name string, idx int)
	Remove(name string, idx int)
	Find(name string, prefix, caseSensitive bool) []int
	Clear()
}

const matchCacheSize = 512

// Tree owns the token arena and every secondary index. It is a
// synchronous data structure: a single advisory mutex (Lock/Unlock)
// guards compound operations, and callers hold it across multi-step
// sequences such as reserve-file-then-insert-tokens. Tickets let a
// caller detect slot reuse instead of relying on reference identity.
type Tree struct {
	mu sync.Mutex

	tokens []*Token // nil entries are free slots
	free   []int

	names NameIndex
	files *interner.Interner

	fileTokens map[int]IdxSet
	fileStatus map[int]ParseStatus
	reparse    map[int]struct{}

	// Roots of the containment forest, rebuilt by RecalcData.
	TopNamespaces   IdxSet
	GlobalNamespace IdxSet

	modified    bool
	ticketCount int

	unnamedStructCount int
	unnamedEnumCount   int

	// generation keys the match cache; every mutation bumps it so
	// cached search results can never go stale.
	generation uint64
	matches    *lru.Cache[string, []int]
}

// NewTree builds an empty tree backed by the default name index.
func NewTree() *Tree {
	return NewTreeWithIndex(nameindex.New())
}

// NewTreeWithIndex lets the caller supply the name-search capability.
func NewTreeWithIndex(names NameIndex) *Tree {
	cache, _ := lru.New[string, []int](matchCacheSize)
	return &Tree{
		names:           names,
		files:           interner.New(),
		fileTokens:      make(map[int]IdxSet),
		fileStatus:      make(map[int]ParseStatus),
		reparse:         make(map[int]struct{}),
		TopNamespaces:   make(IdxSet),
		GlobalNamespace: make(IdxSet),
		matches:         cache,
	}
}

// Lock acquires the tree's advisory mutex. The tree never locks
// internally; callers bracket compound operations themselves so no one
// observes a half-updated tree.
func (t *Tree) Lock() { t.mu.Lock() }

// Unlock releases the advisory mutex.
func (t *Tree) Unlock() { t.mu.Unlock() }

// At returns the token at idx, nil for free or out-of-range slots.
func (t *Tree) At(idx int) *Token {
	if idx < 0 || idx >= len(t.tokens) {
		return nil
	}
	return t.tokens[idx]
}

// Size counts all arena slots, nulled ones included.
func (t *Tree) Size() int { return len(t.tokens) }

// RealSize counts live tokens only.
func (t *Tree) RealSize() int { return len(t.tokens) - len(t.free) }

func (t *Tree) Empty() bool { return len(t.tokens) == 0 }

// Modified reports whether the tree changed since ClearModified.
func (t *Tree) Modified() bool { return t.modified }

func (t *Tree) ClearModified() { t.modified = false }

// TicketCount is the running ticket counter; the next insert gets a
// strictly greater ticket.
func (t *Tree) TicketCount() int { return t.ticketCount }

// NextUnnamedStructName synthesizes a name for an anonymous
// struct/union declaration.
func (t *Tree) NextUnnamedStructName() string {
	t.unnamedStructCount++
	return unnamedName("Struct", t.unnamedStructCount)
}

// NextUnnamedEnumName synthesizes a name for an anonymous enum.
func (t *Tree) NextUnnamedEnumName() string {
	t.unnamedEnumCount++
	return unnamedName("Enum", t.unnamedEnumCount)
}

// Clear resets the tree to empty. The ticket counter is deliberately
// kept: tickets are unique across the tree's whole lifetime.
func (t *Tree) Clear() {
	t.tokens = nil
	t.free = nil
	t.names.Clear()
	t.files.Clear()
	t.fileTokens = make(map[int]IdxSet)
	t.fileStatus = make(map[int]ParseStatus)
	t.reparse = make(map[int]struct{})
	t.TopNamespaces = make(IdxSet)
	t.GlobalNamespace = make(IdxSet)
	t.unnamedStructCount = 0
	t.unnamedEnumCount = 0
	t.touch()
}

// Insert places tok into a free slot (or grows the arena) and returns
// the assigned index.
func (t *Tree) Insert(tok *Token) int {
	return t.addToken(tok, -1)
}

// InsertAt places tok into a specific slot. The slot must be free (or
// beyond the current arena, which grows to reach it); ticket
// assignment still occurs. Returns -1 when the slot is occupied.
func (t *Tree) InsertAt(loc int, tok *Token) int {
	return t.addToken(tok, loc)
}

// Erase unlinks the token at idx from every index and frees its slot.
// It does not erase children; that is DeleteAllChildren's job, invoked
// by higher-level removal paths such as RemoveFile.
func (t *Tree) Erase(idx int) bool {
	return t.eraseToken(idx)
}

// EraseToken is Erase addressed by token.
func (t *Tree) EraseToken(tok *Token) bool {
	if tok == nil || tok.tree != t {
		return false
	}
	return t.eraseToken(tok.self)
}

// EachToken visits every live token in ascending index order. Return
// false to stop early.
func (t *Tree) EachToken(fn func(idx int, tok *Token) bool) {
	for idx, tok := range t.tokens {
		if tok == nil {
			continue
		}
		if !fn(idx, tok) {
			return
		}
	}
}

// RecalcFreeList rebuilds the free list by scanning for null slots,
// trimming trailing ones first so a fully emptied arena reports
// Size()==0. Used after bulk loads where the list was not maintained
// incrementally.
func (t *Tree) RecalcFreeList() {
	for len(t.tokens) > 0 && t.tokens[len(t.tokens)-1] == nil {
		t.tokens = t.tokens[:len(t.tokens)-1]
	}
	t.free = t.free[:0]
	for idx := len(t.tokens) - 1; idx >= 0; idx-- {
		if t.tokens[idx] == nil {
			t.free = append(t.free, idx)
		}
	}
}

func (t *Tree) addToken(tok *Token, forceIdx int) int {
	if tok == nil {
		return -1
	}
	idx := t.addTokenToList(tok, forceIdx)
	if idx < 0 {
		return -1
	}

	t.names.Insert(tok.Name, idx)
	for _, alias := range tok.Aliases {
		t.names.Insert(alias, idx)
	}
	t.addFileMembership(tok, idx)

	// Keep the parent/child link bidirectional from the start; the
	// parent may legitimately not exist yet during a bulk load, in
	// which case its own serialized children set carries the link.
	if parent := t.At(tok.ParentIndex); parent != nil {
		parent.AddChild(idx)
	}

	t.touch()
	return idx
}

func (t *Tree) addTokenToList(tok *Token, forceIdx int) int {
	var idx int
	switch {
	case forceIdx >= 0:
		for len(t.tokens) <= forceIdx {
			t.tokens = append(t.tokens, nil)
			t.free = append(t.free, len(t.tokens)-1)
		}
		if t.tokens[forceIdx] != nil {
			return -1
		}
		idx = forceIdx
		t.dropFromFreeList(idx)
		t.tokens[idx] = tok
	case len(t.free) > 0:
		idx = t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.tokens[idx] = tok
	default:
		idx = len(t.tokens)
		t.tokens = append(t.tokens, tok)
	}

	t.ticketCount++
	tok.tree = t
	tok.self = idx
	tok.ticket = t.ticketCount
	return idx
}

func (t *Tree) dropFromFreeList(idx int) {
	for i, v := range t.free {
		if v == idx {
			t.free = append(t.free[:i], t.free[i+1:]...)
			return
		}
	}
}

func (t *Tree) removeTokenFromList(idx int) {
	if idx < 0 || idx >= len(t.tokens) {
		return
	}
	t.tokens[idx] = nil
	t.free = append(t.free, idx)
}

// eraseToken unlinks a single token: parent link, inheritance links in
// both directions, name and file indices. Children are orphaned to the
// root rather than deleted, keeping the parent-pointer invariant.
func (t *Tree) eraseToken(idx int) bool {
	tok := t.At(idx)
	if tok == nil {
		return false
	}

	if parent := t.At(tok.ParentIndex); parent != nil {
		delete(parent.Children, idx)
	}
	for child := range tok.Children {
		if c := t.At(child); c != nil && c.ParentIndex == idx {
			c.ParentIndex = -1
		}
	}
	for a := range tok.Ancestors {
		if at := t.At(a); at != nil {
			delete(at.Descendants, idx)
		}
	}
	for d := range tok.Descendants {
		if dt := t.At(d); dt != nil {
			delete(dt.Ancestors, idx)
			delete(dt.DirectAncestors, idx)
		}
	}

	t.names.Remove(tok.Name, idx)
	for _, alias := range tok.Aliases {
		t.names.Remove(alias, idx)
	}
	t.removeFileMembership(tok, idx)
	delete(t.TopNamespaces, idx)
	delete(t.GlobalNamespace, idx)

	tok.tree = nil
	tok.self = -1
	t.removeTokenFromList(idx)
	t.touch()
	return true
}

// removeSubtree erases idx after deleting its children recursively.
func (t *Tree) removeSubtree(idx int) {
	tok := t.At(idx)
	if tok == nil {
		return
	}
	tok.DeleteAllChildren()
	t.eraseToken(idx)
}

func (t *Tree) addFileMembership(tok *Token, idx int) {
	for _, file := range []int{tok.FileIdx, tok.ImplFileIdx} {
		if file <= 0 {
			continue
		}
		set, ok := t.fileTokens[file]
		if !ok {
			set = make(IdxSet)
			t.fileTokens[file] = set
		}
		set[idx] = struct{}{}
	}
}

func (t *Tree) removeFileMembership(tok *Token, idx int) {
	for _, file := range []int{tok.FileIdx, tok.ImplFileIdx} {
		if set, ok := t.fileTokens[file]; ok {
			delete(set, idx)
		}
	}
}

func (t *Tree) touch() {
	t.modified = true
	t.generation++
}

func unnamedName(base string, n int) string {
	// Matches how anonymous declarations are surfaced to the browser.
	return "Unnamed" + base + strconv.Itoa(n)
}

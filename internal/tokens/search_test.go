package tokens

import "testing"

func seedSearchTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()
	file := tree.GetFileIndex("s.h")

	for _, tc := range []struct {
		name string
		kind Kind
	}{
		{"Window", KindClass},
		{"WindowManager", KindClass},
		{"window_count", KindVariable},
		{"Draw", KindFunction},
	} {
		tok := NewToken(tc.name, file, 1)
		tok.Kind = tc.kind
		tree.Insert(tok)
	}
	return tree
}

func TestFindMatchesExactAndPrefix(t *testing.T) {
	tree := seedSearchTree(t)

	if got := tree.FindMatches("Window", true, false, KindUndefined); len(got) != 1 {
		t.Errorf("exact match = %v, want one hit", got)
	}
	if got := tree.FindMatches("Window", true, true, KindUndefined); len(got) != 2 {
		t.Errorf("prefix match = %v, want Window and WindowManager", got)
	}
	if got := tree.FindMatches("window", false, true, KindUndefined); len(got) != 3 {
		t.Errorf("case-folded prefix match = %v, want 3 hits", got)
	}
	if got := tree.FindMatches("window", true, false, KindUndefined); len(got) != 0 {
		t.Errorf("case-sensitive exact = %v, want none", got)
	}
	if got := tree.FindMatches("", true, true, KindUndefined); got != nil {
		t.Errorf("empty query = %v, want nil", got)
	}
}

func TestFindMatchesKindMask(t *testing.T) {
	tree := seedSearchTree(t)

	got := tree.FindMatches("Window", true, true, KindClass)
	if len(got) != 2 {
		t.Errorf("class mask = %v", got)
	}
	got = tree.FindMatches("window", false, true, KindVariable)
	if len(got) != 1 {
		t.Errorf("variable mask = %v", got)
	}
	got = tree.FindMatches("Window", true, true, KindFunction)
	if len(got) != 0 {
		t.Errorf("function mask = %v, want none", got)
	}
}

// Every inserted token must be findable by exact name and by prefix.
func TestSearchConsistency(t *testing.T) {
	tree := seedSearchTree(t)

	for idx := 0; idx < tree.Size(); idx++ {
		tok := tree.At(idx)
		if tok == nil {
			continue
		}
		found := false
		for _, hit := range tree.FindMatches(tok.Name, true, false, KindUndefined) {
			if hit == idx {
				found = true
			}
		}
		if !found {
			t.Errorf("exact search missed token %d (%s)", idx, tok.Name)
		}

		found = false
		for _, hit := range tree.FindMatches(tok.Name[:1], true, true, KindUndefined) {
			if hit == idx {
				found = true
			}
		}
		if !found {
			t.Errorf("prefix search missed token %d (%s)", idx, tok.Name)
		}
	}
}

func TestFindMatchesCacheInvalidation(t *testing.T) {
	tree := seedSearchTree(t)

	before := tree.FindMatches("Window", true, true, KindUndefined)
	if len(before) != 2 {
		t.Fatalf("setup: %v", before)
	}
	// Same query again hits the cache and must agree.
	if again := tree.FindMatches("Window", true, true, KindUndefined); len(again) != len(before) {
		t.Fatalf("cached result differs: %v", again)
	}

	tok := NewToken("WindowStyle", tree.GetFileIndex("s.h"), 9)
	tok.Kind = KindClass
	tree.Insert(tok)

	after := tree.FindMatches("Window", true, true, KindUndefined)
	if len(after) != 3 {
		t.Errorf("mutation did not invalidate the match cache: %v", after)
	}
}

func TestTokenExists(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("e.h")

	cls := NewToken("Shape", file, 1)
	cls.Kind = KindClass
	clsIdx := tree.Insert(cls)

	fn := NewToken("area", file, 2)
	fn.Kind = KindFunction
	fn.ParentIndex = clsIdx
	fnIdx := tree.Insert(fn)

	if got := tree.TokenExists("Shape", -1, KindAnyContainer); got != clsIdx {
		t.Errorf("TokenExists(Shape) = %d, want %d", got, clsIdx)
	}
	if got := tree.TokenExists("area", clsIdx, KindAnyFunction); got != fnIdx {
		t.Errorf("TokenExists(area) = %d, want %d", got, fnIdx)
	}
	if got := tree.TokenExists("area", -1, KindAnyFunction); got != -1 {
		t.Errorf("wrong parent should miss, got %d", got)
	}
	if got := tree.TokenExists("Shape", -1, KindVariable); got != -1 {
		t.Errorf("wrong kind should miss, got %d", got)
	}
	if got := tree.TokenExists("nope", -1, KindUndefined); got != -1 {
		t.Errorf("unknown name should miss, got %d", got)
	}
}

func TestTokenExistsWithArgs(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("o.h")

	a := NewToken("draw", file, 1)
	a.Kind = KindFunction
	a.Args = "(int x)"
	a.BaseArgs = "(int x)"
	aIdx := tree.Insert(a)

	b := NewToken("draw", file, 2)
	b.Kind = KindFunction
	b.Args = "(int x, int y = 0)"
	b.BaseArgs = b.GetStrippedArgs()
	bIdx := tree.Insert(b)

	if got := tree.TokenExistsWithArgs("draw", "(int x)", -1, KindFunction); got != aIdx {
		t.Errorf("one-arg overload = %d, want %d", got, aIdx)
	}
	if got := tree.TokenExistsWithArgs("draw", "(int x, int y )", -1, KindFunction); got != bIdx {
		t.Errorf("two-arg overload = %d, want %d", got, bIdx)
	}
	if got := tree.TokenExistsWithArgs("draw", "(float z)", -1, KindFunction); got != -1 {
		t.Errorf("unknown signature = %d, want -1", got)
	}
}

func TestFindTokensInFileKindMask(t *testing.T) {
	tree := seedSearchTree(t)

	all := tree.FindTokensInFile("s.h", KindUndefined)
	if len(all) != 4 {
		t.Fatalf("all = %v", all)
	}
	classes := tree.FindTokensInFile("s.h", KindClass)
	if len(classes) != 2 {
		t.Errorf("classes = %v", classes)
	}
	if got := tree.FindTokensInFile("unknown.h", KindUndefined); got != nil {
		t.Errorf("unknown file = %v, want nil", got)
	}
}

func TestStrippedArgs(t *testing.T) {
	tok := NewToken("f", 0, 1)
	tok.Args = "(int a = 5,\n float b = 1.0)"

	if got := tok.GetFormattedArgs(); got != "(int a = 5, float b = 1.0)" {
		t.Errorf("formatted = %q", got)
	}
	if got := tok.GetStrippedArgs(); got != "(int a , float b )" {
		t.Errorf("stripped = %q", got)
	}
}

package tokens

import "testing"

func insertClass(t *testing.T, tree *Tree, name, ancestors string, file int) int {
	t.Helper()
	tok := NewToken(name, file, 1)
	tok.Kind = KindClass
	tok.AncestorsString = ancestors
	idx := tree.Insert(tok)
	if idx < 0 {
		t.Fatalf("insert %s failed", name)
	}
	return idx
}

func TestRecalcDataComputesClosures(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("shapes.h")

	base := insertClass(t, tree, "Base", "", file)
	mid := insertClass(t, tree, "Mid", "Base", file)
	leaf := insertClass(t, tree, "Leaf", "Mid", file)
	other := insertClass(t, tree, "Other", "", file)

	tree.RecalcData()

	leafTok := tree.At(leaf)
	if !leafTok.Ancestors.Has(mid) || !leafTok.Ancestors.Has(base) {
		t.Errorf("leaf ancestors = %v, want mid and base", leafTok.Ancestors)
	}
	if leafTok.Ancestors.Has(leaf) {
		t.Error("closure must be reflexive-free")
	}
	if leafTok.Ancestors.Has(other) {
		t.Error("unrelated token leaked into the closure")
	}

	baseTok := tree.At(base)
	if !baseTok.Descendants.Has(mid) || !baseTok.Descendants.Has(leaf) {
		t.Errorf("base descendants = %v, want mid and leaf", baseTok.Descendants)
	}

	// descendants is the exact inverse of ancestors.
	for idx := 0; idx < tree.Size(); idx++ {
		tok := tree.At(idx)
		if tok == nil {
			continue
		}
		for a := range tok.Ancestors {
			if !tree.At(a).Descendants.Has(idx) {
				t.Errorf("token %d in ancestors of %d but inverse missing", a, idx)
			}
		}
		for d := range tok.Descendants {
			if !tree.At(d).Ancestors.Has(idx) {
				t.Errorf("token %d in descendants of %d but inverse missing", d, idx)
			}
		}
	}

	if !leafTok.InheritsFrom(base) {
		t.Error("InheritsFrom should use the cached closure")
	}
}

func TestRecalcDataMultipleBases(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("multi.h")

	a := insertClass(t, tree, "A", "", file)
	b := insertClass(t, tree, "B", "", file)
	c := insertClass(t, tree, "C", "A, B", file)

	tree.RecalcData()

	cTok := tree.At(c)
	if !cTok.DirectAncestors.Has(a) || !cTok.DirectAncestors.Has(b) {
		t.Errorf("direct ancestors = %v, want A and B", cTok.DirectAncestors)
	}
	if len(cTok.Ancestors) != 2 {
		t.Errorf("ancestors = %v, want exactly A and B", cTok.Ancestors)
	}
}

func TestRecalcDataToleratesCycles(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("cycle.h")

	a := insertClass(t, tree, "A", "B", file)
	b := insertClass(t, tree, "B", "A", file)

	tree.RecalcData() // must terminate

	if !tree.At(a).Ancestors.Has(b) {
		t.Error("A should still see B as ancestor")
	}
	if tree.At(a).Ancestors.Has(a) {
		t.Error("cycle must not make the closure reflexive")
	}
}

func TestRecalcInheritanceChainIncremental(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("inc.h")

	base := insertClass(t, tree, "Base", "", file)
	tree.RecalcData()

	derived := insertClass(t, tree, "Derived", "Base", file)
	tree.RecalcInheritanceChain(tree.At(derived))

	if !tree.At(derived).Ancestors.Has(base) {
		t.Error("incremental recompute missed the new base")
	}
	if !tree.At(base).Descendants.Has(derived) {
		t.Error("incremental recompute must register the descendant link")
	}

	// Rewriting the base clause drops the old links.
	other := insertClass(t, tree, "Other", "", file)
	dTok := tree.At(derived)
	dTok.AncestorsString = "Other"
	tree.RecalcInheritanceChain(dTok)

	if dTok.Ancestors.Has(base) {
		t.Error("stale ancestor survived the recompute")
	}
	if tree.At(base).Descendants.Has(derived) {
		t.Error("stale descendant link survived the recompute")
	}
	if !dTok.Ancestors.Has(other) {
		t.Error("new ancestor missing")
	}
}

func TestRecalcDataNamespaceSets(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("ns.h")

	ns := NewToken("std", file, 1)
	ns.Kind = KindNamespace
	nsIdx := tree.Insert(ns)

	global := NewToken("g_count", file, 2)
	global.Kind = KindVariable
	gIdx := tree.Insert(global)

	member := NewToken("string", file, 3)
	member.Kind = KindClass
	member.ParentIndex = nsIdx
	tree.Insert(member)

	tree.RecalcData()

	if !tree.TopNamespaces.Has(nsIdx) {
		t.Error("root namespace missing from top set")
	}
	if tree.TopNamespaces.Has(gIdx) {
		t.Error("variable must not be a top namespace")
	}
	if !tree.GlobalNamespace.Has(nsIdx) || !tree.GlobalNamespace.Has(gIdx) {
		t.Error("all root tokens belong to the global namespace set")
	}
	if len(tree.GlobalNamespace) != 2 {
		t.Errorf("global namespace = %v, want the two roots", tree.GlobalNamespace)
	}
}

func TestIsValidAncestor(t *testing.T) {
	tok := NewToken("Foo", 0, 1)
	tok.TemplateType = []string{"Alloc"}

	cases := []struct {
		name string
		want bool
	}{
		{"", false},
		{"Foo", false},  // self
		{"T", false},    // template parameter heuristic
		{"Alloc", false},
		{"Base", true},
		{"ns::Base", true},
	}
	for _, c := range cases {
		if got := tok.IsValidAncestor(c.name); got != c.want {
			t.Errorf("IsValidAncestor(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

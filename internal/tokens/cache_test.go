package tokens

import (
	"bytes"
	"testing"
)

func buildProjectTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()

	header := tree.ReserveFileForParsing("gfx/shape.h", false)

	base := NewToken("Shape", header, 10)
	base.Kind = KindClass
	baseIdx := tree.Insert(base)

	circle := NewToken("Circle", header, 30)
	circle.Kind = KindClass
	circle.AncestorsString = "Shape"
	tree.Insert(circle)

	area := NewToken("area", header, 31)
	area.Kind = KindFunction
	area.Args = "()"
	area.ParentIndex = baseIdx
	tree.Insert(area)

	tree.FlagFileAsParsed("gfx/shape.h")
	tree.RecalcData()
	return tree
}

func TestTreeCacheRoundTrip(t *testing.T) {
	src := buildProjectTree(t)

	var buf bytes.Buffer
	if err := src.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	dst := NewTree()
	if err := dst.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}

	if dst.RealSize() != src.RealSize() {
		t.Fatalf("realsize = %d, want %d", dst.RealSize(), src.RealSize())
	}
	if !dst.IsFileParsed("gfx/shape.h") {
		t.Error("file status lost")
	}

	circleIdx := dst.TokenExists("Circle", -1, KindClass)
	if circleIdx < 0 {
		t.Fatal("Circle not searchable after reload")
	}
	shapeIdx := dst.TokenExists("Shape", -1, KindClass)
	if shapeIdx < 0 {
		t.Fatal("Shape not searchable after reload")
	}
	if !dst.At(circleIdx).InheritsFrom(shapeIdx) {
		t.Error("closures not recomputed on load")
	}

	areaIdx := dst.TokenExists("area", shapeIdx, KindFunction)
	if areaIdx < 0 {
		t.Fatal("member lost its parent link")
	}
	if !dst.At(shapeIdx).Children.Has(areaIdx) {
		t.Error("parent/child back-reference broken after reload")
	}

	if got := dst.FindTokensInFile("gfx/shape.h", KindUndefined); len(got) != 3 {
		t.Errorf("file membership = %v, want 3 tokens", got)
	}
}

func TestTreeCachePreservesSparseIndices(t *testing.T) {
	src := buildProjectTree(t)
	// Punch a hole so indices are sparse.
	victim := src.TokenExists("area", src.TokenExists("Shape", -1, KindClass), KindFunction)
	src.Erase(victim)

	var buf bytes.Buffer
	if err := src.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	dst := NewTree()
	if err := dst.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}

	if got := dst.TokenExists("Circle", -1, KindClass); got != src.TokenExists("Circle", -1, KindClass) {
		t.Errorf("arena index not preserved: %d", got)
	}
	// The punched slot must be free and reusable.
	tok := NewToken("fresh", dst.GetFileIndex("gfx/shape.h"), 1)
	if idx := dst.Insert(tok); idx != victim {
		t.Errorf("freed slot %d not reused, got %d", victim, idx)
	}
}

func TestTreeCacheRejectsCorruptStream(t *testing.T) {
	src := buildProjectTree(t)
	var buf bytes.Buffer
	if err := src.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	full := buf.Bytes()
	for _, data := range [][]byte{
		nil,
		[]byte("NOPE"),
		full[:len(full)/3],
		full[:len(full)-2],
	} {
		dst := NewTree()
		if err := dst.ReadFrom(bytes.NewReader(data)); err == nil {
			t.Errorf("corrupt stream of %d bytes must fail", len(data))
		} else if !dst.Empty() {
			t.Error("failed load must leave the tree cleared")
		}
	}
}

package tokens

import "testing"

func TestParseStatusMachine(t *testing.T) {
	tree := NewTree()

	if tree.FileStatus("a.cpp") != StatusNotParsed {
		t.Error("unseen file should be not-parsed")
	}

	idx := tree.ReserveFileForParsing("a.cpp", true)
	if idx == 0 {
		t.Fatal("reservation of an unseen file must succeed")
	}
	if tree.FileStatus("a.cpp") != StatusAssigned {
		t.Errorf("status = %v, want assigned", tree.FileStatus("a.cpp"))
	}

	// A second preliminary reservation must not hand the file to
	// another worker.
	if tree.ReserveFileForParsing("a.cpp", true) != 0 {
		t.Error("double reservation should fail")
	}

	// The assigned worker upgrades to being-parsed.
	if tree.ReserveFileForParsing("a.cpp", false) != idx {
		t.Error("assigned worker should be able to start parsing")
	}
	if tree.FileStatus("a.cpp") != StatusBeingParsed {
		t.Errorf("status = %v, want being-parsed", tree.FileStatus("a.cpp"))
	}
	if tree.ReserveFileForParsing("a.cpp", false) != 0 {
		t.Error("a file being parsed cannot be reserved again")
	}

	tree.FlagFileAsParsed("a.cpp")
	if !tree.IsFileParsed("a.cpp") {
		t.Error("IsFileParsed should be true once done")
	}
	if tree.FileStatus("a.cpp") != StatusDone {
		t.Errorf("status = %v, want done", tree.FileStatus("a.cpp"))
	}
}

func TestReparseFlagOverlay(t *testing.T) {
	tree := NewTree()

	// Flagging an unparsed file is a no-op.
	tree.FlagFileForReparsing("b.cpp")
	if tree.IsFileFlaggedForReparse("b.cpp") {
		t.Error("unparsed file must not be flagged")
	}

	tree.ReserveFileForParsing("b.cpp", false)
	tree.FlagFileAsParsed("b.cpp")

	tree.FlagFileForReparsing("b.cpp")
	if !tree.IsFileFlaggedForReparse("b.cpp") {
		t.Error("done file should accept the reparse flag")
	}
	// Direct status read: the file is still parsed, just stale.
	if !tree.IsFileParsed("b.cpp") {
		t.Error("IsFileParsed reads status, not the overlay")
	}

	tree.FlagFileAsParsed("b.cpp")
	if tree.IsFileFlaggedForReparse("b.cpp") {
		t.Error("FlagFileAsParsed must clear the reparse flag")
	}
}

func TestReserveAfterReparseFlagDiscardsTokens(t *testing.T) {
	tree := NewTree()

	idx := tree.ReserveFileForParsing("c.cpp", false)
	tok := NewToken("old", idx, 1)
	tok.Kind = KindFunction
	tree.Insert(tok)
	tree.FlagFileAsParsed("c.cpp")

	tree.FlagFileForReparsing("c.cpp")
	newIdx := tree.ReserveFileForParsing("c.cpp", false)
	if newIdx == 0 {
		t.Fatal("flagged file must be reservable again")
	}
	if tree.RealSize() != 0 {
		t.Errorf("stale tokens should be discarded, realsize=%d", tree.RealSize())
	}
	if len(tree.FindMatches("old", true, false, KindUndefined)) != 0 {
		t.Error("stale token still searchable")
	}
}

func TestRemoveFileRoundTrip(t *testing.T) {
	tree := NewTree()

	build := func() {
		file := tree.ReserveFileForParsing("x.h", false)
		cls := NewToken("Widget", file, 1)
		cls.Kind = KindClass
		clsIdx := tree.Insert(cls)

		m := NewToken("draw", file, 2)
		m.Kind = KindFunction
		m.ParentIndex = clsIdx
		tree.Insert(m)
		tree.FlagFileAsParsed("x.h")
	}

	build()
	before := tree.FindTokensInFile("x.h", KindUndefined)
	if len(before) != 2 {
		t.Fatalf("setup: got %d tokens", len(before))
	}

	tree.RemoveFile("x.h")
	if got := tree.FindTokensInFile("x.h", KindUndefined); len(got) != 0 {
		t.Fatalf("tokens survived removal: %v", got)
	}
	if tree.RealSize() != 0 {
		t.Fatalf("realsize = %d after removal", tree.RealSize())
	}

	build()
	names := map[string]Kind{}
	for _, idx := range tree.FindTokensInFile("x.h", KindUndefined) {
		tok := tree.At(idx)
		names[tok.Name] = tok.Kind
	}
	if names["Widget"] != KindClass || names["draw"] != KindFunction {
		t.Errorf("re-added declarations differ: %v", names)
	}
}

func TestRemoveFileUnknownIsNoop(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("known.h")
	tree.Insert(NewToken("keep", file, 1))

	tree.RemoveFile("never-seen.h")
	if tree.RealSize() != 1 {
		t.Error("removing an unknown file must not touch other tokens")
	}
}

func TestRemoveFileKeepsCrossFileContainers(t *testing.T) {
	tree := NewTree()
	header := tree.GetFileIndex("api.h")
	impl := tree.GetFileIndex("impl.cpp")

	cls := NewToken("Api", header, 1)
	cls.Kind = KindClass
	clsIdx := tree.Insert(cls)

	m := NewToken("helper", impl, 10)
	m.Kind = KindFunction
	m.ParentIndex = clsIdx
	tree.Insert(m)

	// The class has a child living in impl.cpp, so removing api.h must
	// keep the container alive.
	tree.RemoveFile("api.h")
	if tree.At(clsIdx) == nil {
		t.Error("container with cross-file children must survive")
	}
}

func TestMarkFileTokensAsLocal(t *testing.T) {
	tree := NewTree()
	file := tree.GetFileIndex("p.h")

	a := NewToken("a", file, 1)
	b := NewToken("b", file, 2)
	tree.Insert(a)
	tree.Insert(b)

	payload := &struct{ name string }{"project"}
	tree.MarkFileTokensAsLocal("p.h", true, payload)

	for _, tok := range []*Token{a, b} {
		if !tok.IsLocal {
			t.Errorf("token %s not marked local", tok.Name)
		}
		if tok.UserData != payload {
			t.Errorf("token %s missing user data", tok.Name)
		}
	}

	tree.MarkFileTokensAsLocal("p.h", false, nil)
	if a.IsLocal || a.UserData != nil {
		t.Error("unmark failed")
	}
}

func TestMatchesFiles(t *testing.T) {
	tree := NewTree()
	header := tree.GetFileIndex("m.h")
	impl := tree.GetFileIndex("m.cpp")

	tok := NewToken("f", header, 1)
	tok.ImplFileIdx = impl
	tree.Insert(tok)

	if !tok.MatchesFiles(NewIdxSet()) {
		t.Error("empty working set matches everything")
	}
	if !tok.MatchesFiles(NewIdxSet(header)) {
		t.Error("declaration file should match")
	}
	if !tok.MatchesFiles(NewIdxSet(impl)) {
		t.Error("implementation file should match")
	}
	if tok.MatchesFiles(NewIdxSet(tree.GetFileIndex("other.h"))) {
		t.Error("unrelated file must not match")
	}
}

func TestFilenameNormalization(t *testing.T) {
	tree := NewTree()
	a := tree.GetFileIndex("dir/./file.h")
	b := tree.GetFileIndex("dir/file.h")
	if a != b {
		t.Errorf("equivalent paths interned separately: %d vs %d", a, b)
	}
	if tree.GetFilename(a) != "dir/file.h" {
		t.Errorf("lookup = %q", tree.GetFilename(a))
	}
}

package tokens

import "path/filepath"

// GetFileIndex interns filename (normalized) and returns its id,
// creating one if the file is new. Id 0 means "no file".
func (t *Tree) GetFileIndex(filename string) int {
	if filename == "" {
		return 0
	}
	return t.files.Intern(normalizeFilename(filename))
}

// GetFilename resolves an interned file id back to its name.
func (t *Tree) GetFilename(idx int) string {
	return t.files.Lookup(idx)
}

// ReserveFileForParsing claims a file for a parsing worker so two
// workers never parse the same file concurrently. A new file is
// assigned an id and moves not-parsed -> assigned (preliminary) or
// being-parsed. A file flagged for reparsing that already finished is
// torn down first and re-reserved. Returns 0 when the file is already
// claimed or parsed and nothing needs doing.
func (t *Tree) ReserveFileForParsing(filename string, preliminary bool) int {
	idx := t.GetFileIndex(filename)
	if idx == 0 {
		return 0
	}

	status, known := t.fileStatus[idx]
	if _, flagged := t.reparse[idx]; flagged && (!known || status == StatusDone) {
		t.RemoveFileByIndex(idx)
		idx = t.GetFileIndex(filename)
		delete(t.reparse, idx)
		t.fileStatus[idx] = StatusNotParsed
		status = StatusNotParsed
	}

	if preliminary {
		if status >= StatusAssigned {
			return 0
		}
	} else {
		if status > StatusAssigned {
			return 0
		}
	}

	delete(t.reparse, idx)
	if preliminary {
		t.fileStatus[idx] = StatusAssigned
	} else {
		t.fileStatus[idx] = StatusBeingParsed
	}
	if _, ok := t.fileTokens[idx]; !ok {
		t.fileTokens[idx] = make(IdxSet)
	}
	return idx
}

// FlagFileForReparsing marks a finished file dirty. Its tokens stay in
// place until the reparse actually happens; a later reservation or
// RemoveFile discards them.
func (t *Tree) FlagFileForReparsing(filename string) {
	idx := t.GetFileIndex(filename)
	if idx == 0 {
		return
	}
	if t.fileStatus[idx] == StatusDone {
		t.reparse[idx] = struct{}{}
	}
}

// FlagFileAsParsed moves the file to done and clears any pending
// reparse flag.
func (t *Tree) FlagFileAsParsed(filename string) {
	idx := t.GetFileIndex(filename)
	if idx == 0 {
		return
	}
	t.fileStatus[idx] = StatusDone
	delete(t.reparse, idx)
}

// IsFileParsed is a direct status read: true iff the file is done.
func (t *Tree) IsFileParsed(filename string) bool {
	return t.FileStatus(filename) == StatusDone
}

// IsFileFlaggedForReparse reports the dirty overlay, distinguishing
// "parsed but stale" from "never parsed".
func (t *Tree) IsFileFlaggedForReparse(filename string) bool {
	idx := t.files.Find(normalizeFilename(filename))
	_, flagged := t.reparse[idx]
	return flagged && idx != 0
}

// FileStatus returns the parse status without interning unknown names.
func (t *Tree) FileStatus(filename string) ParseStatus {
	idx := t.files.Find(normalizeFilename(filename))
	if idx == 0 {
		return StatusNotParsed
	}
	return t.fileStatus[idx]
}

// RemoveFile erases every token owned by the named file. Unknown files
// are a no-op.
func (t *Tree) RemoveFile(filename string) {
	t.RemoveFileByIndex(t.files.Find(normalizeFilename(filename)))
}

// RemoveFileByIndex erases the file's tokens, recursing into children
// of removed containers, and drops the file from every table. A
// container whose children span other files survives with only its
// membership in this file cleared.
func (t *Tree) RemoveFileByIndex(fileIdx int) {
	if fileIdx <= 0 {
		return
	}
	set, ok := t.fileTokens[fileIdx]
	if !ok {
		if t.files.Lookup(fileIdx) == "" {
			return
		}
		set = make(IdxSet)
	}

	idxs := make([]int, 0, len(set))
	for idx := range set {
		idxs = append(idxs, idx)
	}
	for _, idx := range idxs {
		tok := t.At(idx)
		if tok == nil {
			continue
		}
		if t.checkChildRemove(tok, fileIdx) {
			t.removeSubtree(idx)
		}
	}

	delete(t.fileTokens, fileIdx)
	delete(t.fileStatus, fileIdx)
	delete(t.reparse, fileIdx)
	t.files.Remove(fileIdx)
	t.touch()
}

// checkChildRemove validates that a container can be torn down with
// its file: every live, non-temporary child must belong to the same
// file. Tolerates stale child indices without failing.
func (t *Tree) checkChildRemove(tok *Token, fileIdx int) bool {
	for childIdx := range tok.Children {
		child := t.At(childIdx)
		if child == nil || child.IsTemp {
			continue
		}
		if child.FileIdx != fileIdx && child.ImplFileIdx != fileIdx {
			return false
		}
	}
	return true
}

// MarkFileTokensAsLocal bulk-flags every token in a file as local or
// not and stamps the caller's opaque payload. Used when a file moves
// between projects without a reparse.
func (t *Tree) MarkFileTokensAsLocal(filename string, local bool, userData any) {
	t.MarkFileTokensAsLocalByIndex(t.files.Find(normalizeFilename(filename)), local, userData)
}

// MarkFileTokensAsLocalByIndex is MarkFileTokensAsLocal by file id.
func (t *Tree) MarkFileTokensAsLocalByIndex(fileIdx int, local bool, userData any) {
	if fileIdx <= 0 {
		return
	}
	for idx := range t.fileTokens[fileIdx] {
		if tok := t.At(idx); tok != nil {
			tok.IsLocal = local
			tok.UserData = userData
		}
	}
}

// FileCount reports the number of interned files.
func (t *Tree) FileCount() int {
	return t.files.Len()
}

// EachFile visits every interned file in ascending id order together
// with its parse status and reparse flag. Return false to stop early.
// Snapshot exporters iterate the file table through this.
func (t *Tree) EachFile(fn func(id int, name string, status ParseStatus, flagged bool) bool) {
	t.files.Each(func(id int, name string) bool {
		_, flagged := t.reparse[id]
		return fn(id, name, t.fileStatus[id], flagged)
	})
}

// RestoreFile reinstates a file table entry under its original id
// during a bulk load. Token records reference file ids, so the ids
// must survive a save/load cycle byte for byte.
func (t *Tree) RestoreFile(id int, name string, status ParseStatus, flagged bool) {
	if id <= 0 || name == "" {
		return
	}
	t.files.Restore(id, normalizeFilename(name))
	t.fileStatus[id] = status
	if flagged {
		t.reparse[id] = struct{}{}
	}
	if _, ok := t.fileTokens[id]; !ok {
		t.fileTokens[id] = make(IdxSet)
	}
}

// ReparseSet returns the ids of files flagged dirty since their last
// parse, for a scheduler to drain.
func (t *Tree) ReparseSet() []int {
	out := make([]int, 0, len(t.reparse))
	for idx := range t.reparse {
		out = append(out, idx)
	}
	return out
}

func normalizeFilename(filename string) string {
	if filename == "" {
		return ""
	}
	return filepath.Clean(filename)
}

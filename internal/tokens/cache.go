package tokens

import (
	"fmt"
	"io"
	"sort"
)

// Whole-tree cache stream. The layout is a header, the interned
// filename table, the per-file status table, then each live token
// addressed by its arena index. Loading rebuilds the free list and all
// derived closures, so only authoritative data travels.

const (
	cacheMagic   = "SYDB"
	cacheVersion = 1
)

// WriteTo serializes the whole tree.
func (t *Tree) WriteTo(w io.Writer) error {
	if _, err := io.WriteString(w, cacheMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := WriteInt(w, cacheVersion); err != nil {
		return err
	}

	// Filename table.
	if err := WriteInt(w, t.files.Len()); err != nil {
		return err
	}
	var ferr error
	t.files.Each(func(id int, name string) bool {
		if ferr = WriteInt(w, id); ferr != nil {
			return false
		}
		ferr = WriteString(w, name)
		return ferr == nil
	})
	if ferr != nil {
		return ferr
	}

	// Status table, with the reparse overlay.
	statusIds := make([]int, 0, len(t.fileStatus))
	for id := range t.fileStatus {
		statusIds = append(statusIds, id)
	}
	sort.Ints(statusIds)
	if err := WriteInt(w, len(statusIds)); err != nil {
		return err
	}
	for _, id := range statusIds {
		if err := WriteInt(w, id); err != nil {
			return err
		}
		if err := WriteInt(w, int(t.fileStatus[id])); err != nil {
			return err
		}
		_, flagged := t.reparse[id]
		if err := writeBool(w, flagged); err != nil {
			return err
		}
	}

	// Tokens, live slots only, addressed by index.
	if err := WriteInt(w, t.RealSize()); err != nil {
		return err
	}
	for idx, tok := range t.tokens {
		if tok == nil {
			continue
		}
		if err := WriteInt(w, idx); err != nil {
			return err
		}
		if err := tok.SerializeOut(w); err != nil {
			return fmt.Errorf("token %d: %w", idx, err)
		}
	}
	return nil
}

// ReadFrom replaces the tree's contents from a stream written by
// WriteTo. On any decode error the tree is cleared so the caller never
// observes a partially populated database; the expected recovery is a
// full reparse.
func (t *Tree) ReadFrom(r io.Reader) error {
	t.Clear()
	if err := t.readFrom(r); err != nil {
		t.Clear()
		return err
	}
	t.RecalcFreeList()
	t.RecalcData()
	return nil
}

func (t *Tree) readFrom(r io.Reader) error {
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != cacheMagic {
		return fmt.Errorf("bad cache magic %q", magic)
	}
	version, err := ReadInt(r)
	if err != nil {
		return err
	}
	if version != cacheVersion {
		return fmt.Errorf("unsupported cache version %d", version)
	}

	nFiles, err := ReadInt(r)
	if err != nil {
		return err
	}
	if nFiles < 0 || nFiles > maxSetLen {
		return fmt.Errorf("file table count %d out of range", nFiles)
	}
	for i := 0; i < nFiles; i++ {
		id, err := ReadInt(r)
		if err != nil {
			return err
		}
		name, err := ReadString(r)
		if err != nil {
			return err
		}
		t.files.Restore(id, name)
	}

	nStatus, err := ReadInt(r)
	if err != nil {
		return err
	}
	if nStatus < 0 || nStatus > maxSetLen {
		return fmt.Errorf("status table count %d out of range", nStatus)
	}
	for i := 0; i < nStatus; i++ {
		id, err := ReadInt(r)
		if err != nil {
			return err
		}
		status, err := ReadInt(r)
		if err != nil {
			return err
		}
		flagged, err := readBool(r)
		if err != nil {
			return err
		}
		t.fileStatus[id] = ParseStatus(status)
		if flagged {
			t.reparse[id] = struct{}{}
		}
	}

	nTokens, err := ReadInt(r)
	if err != nil {
		return err
	}
	if nTokens < 0 || nTokens > maxSetLen {
		return fmt.Errorf("token count %d out of range", nTokens)
	}
	for i := 0; i < nTokens; i++ {
		idx, err := ReadInt(r)
		if err != nil {
			return err
		}
		if idx < 0 || idx > maxSetLen {
			return fmt.Errorf("token index %d out of range", idx)
		}
		tok := NewToken("", 0, 0)
		if err := tok.SerializeIn(r); err != nil {
			return fmt.Errorf("token %d: %w", idx, err)
		}
		if t.InsertAt(idx, tok) < 0 {
			return fmt.Errorf("token index %d occupied", idx)
		}
	}
	return nil
}

package tokens

import (
	"fmt"
	"io"
	"sort"
)

// Wire format: integers are 4 bytes little-endian written byte by byte,
// never a native-width memory dump, so caches stay portable across
// platforms. Strings are UTF-8 bytes preceded by their length; lengths
// are clamped to MaxStringLen on write, and a length outside [1,
// MaxStringLen] on read yields an empty string while the stream is
// advanced past the record, tolerating oversized entries without
// aborting the whole load.

// MaxStringLen is the longest string the wire format carries.
const MaxStringLen = 32767

// maxSetLen bounds relationship-set and list counts on read so a
// corrupt stream cannot demand an absurd allocation.
const maxSetLen = 1 << 24

// WriteInt writes v as 4 little-endian bytes.
func WriteInt(w io.Writer, v int) error {
	u := uint32(int32(v))
	b := [4]byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("write int: %w", err)
	}
	return nil
}

// ReadInt reads 4 little-endian bytes; short reads are errors.
func ReadInt(r io.Reader) (int, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read int: %w", err)
	}
	u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return int(int32(u)), nil
}

// WriteString writes the length then the UTF-8 bytes, truncating
// anything longer than MaxStringLen.
func WriteString(w io.Writer, s string) error {
	b := []byte(s)
	if len(b) > MaxStringLen {
		b = b[:MaxStringLen]
	}
	if err := WriteInt(w, len(b)); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// ReadString reads a length-prefixed string. A length outside
// [1, MaxStringLen] is recovered locally: the result is empty and the
// stream is advanced by length&0xFFFFFF bytes to stay positioned.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadInt(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n < 0 || n > MaxStringLen {
		skip := int64(n & 0xFFFFFF)
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return "", fmt.Errorf("skip oversized string: %w", err)
		}
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(buf), nil
}

func writeBool(w io.Writer, v bool) error {
	if v {
		return WriteInt(w, 1)
	}
	return WriteInt(w, 0)
}

func readBool(r io.Reader) (bool, error) {
	v, err := ReadInt(r)
	return v != 0, err
}

func writeIdxSet(w io.Writer, set IdxSet) error {
	if err := WriteInt(w, len(set)); err != nil {
		return err
	}
	idxs := make([]int, 0, len(set))
	for idx := range set {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for _, idx := range idxs {
		if err := WriteInt(w, idx); err != nil {
			return err
		}
	}
	return nil
}

func readIdxSet(r io.Reader) (IdxSet, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxSetLen {
		return nil, fmt.Errorf("index set count %d out of range", n)
	}
	set := make(IdxSet, n)
	for i := 0; i < n; i++ {
		idx, err := ReadInt(r)
		if err != nil {
			return nil, err
		}
		set[idx] = struct{}{}
	}
	return set, nil
}

func writeStrings(w io.Writer, ss []string) error {
	if err := WriteInt(w, len(ss)); err != nil {
		return err
	}
	for _, s := range ss {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxSetLen {
		return nil, fmt.Errorf("string list count %d out of range", n)
	}
	if n == 0 {
		return nil, nil
	}
	ss := make([]string, n)
	for i := range ss {
		if ss[i], err = ReadString(r); err != nil {
			return nil, err
		}
	}
	return ss, nil
}

// SerializeOut writes every persistent field of the token. Identity
// (self, ticket) and UserData are intentionally not part of the record:
// both are reassigned by the tree that loads it.
func (t *Token) SerializeOut(w io.Writer) error {
	for _, s := range []string{
		t.Name, t.Type, t.ActualType, t.Args, t.BaseArgs,
		t.AncestorsString, t.TemplateArgument, t.TemplateAlias,
	} {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	for _, v := range []int{
		t.FileIdx, t.Line, t.ImplFileIdx, t.ImplLine,
		t.ImplLineStart, t.ImplLineEnd, int(t.Scope), int(t.Kind),
	} {
		if err := WriteInt(w, v); err != nil {
			return err
		}
	}
	for _, b := range []bool{t.IsOperator, t.IsLocal, t.IsTemp, t.IsConst} {
		if err := writeBool(w, b); err != nil {
			return err
		}
	}
	if err := WriteInt(w, t.ParentIndex); err != nil {
		return err
	}
	for _, set := range []IdxSet{t.DirectAncestors, t.Ancestors, t.Descendants, t.Children} {
		if err := writeIdxSet(w, set); err != nil {
			return err
		}
	}
	if err := writeStrings(w, t.Aliases); err != nil {
		return err
	}
	if err := writeStrings(w, t.TemplateType); err != nil {
		return err
	}

	keys := make([]string, 0, len(t.TemplateMap))
	for k := range t.TemplateMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := WriteInt(w, len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := WriteString(w, k); err != nil {
			return err
		}
		if err := WriteString(w, t.TemplateMap[k]); err != nil {
			return err
		}
	}
	return nil
}

// SerializeIn replaces the token's fields from a record written by
// SerializeOut. Any short read fails the whole token so the caller can
// abort the load instead of trusting a partial record.
func (t *Token) SerializeIn(r io.Reader) error {
	var err error
	for _, dst := range []*string{
		&t.Name, &t.Type, &t.ActualType, &t.Args, &t.BaseArgs,
		&t.AncestorsString, &t.TemplateArgument, &t.TemplateAlias,
	} {
		if *dst, err = ReadString(r); err != nil {
			return fmt.Errorf("token strings: %w", err)
		}
	}
	for _, dst := range []*int{
		&t.FileIdx, &t.Line, &t.ImplFileIdx, &t.ImplLine,
		&t.ImplLineStart, &t.ImplLineEnd,
	} {
		if *dst, err = ReadInt(r); err != nil {
			return fmt.Errorf("token locations: %w", err)
		}
	}
	scope, err := ReadInt(r)
	if err != nil {
		return fmt.Errorf("token scope: %w", err)
	}
	t.Scope = Scope(scope)
	kind, err := ReadInt(r)
	if err != nil {
		return fmt.Errorf("token kind: %w", err)
	}
	t.Kind = Kind(kind)

	for _, dst := range []*bool{&t.IsOperator, &t.IsLocal, &t.IsTemp, &t.IsConst} {
		if *dst, err = readBool(r); err != nil {
			return fmt.Errorf("token flags: %w", err)
		}
	}
	if t.ParentIndex, err = ReadInt(r); err != nil {
		return fmt.Errorf("token parent: %w", err)
	}
	for _, dst := range []*IdxSet{&t.DirectAncestors, &t.Ancestors, &t.Descendants, &t.Children} {
		if *dst, err = readIdxSet(r); err != nil {
			return fmt.Errorf("token relations: %w", err)
		}
	}
	if t.Aliases, err = readStrings(r); err != nil {
		return fmt.Errorf("token aliases: %w", err)
	}
	if t.TemplateType, err = readStrings(r); err != nil {
		return fmt.Errorf("token template types: %w", err)
	}

	n, err := ReadInt(r)
	if err != nil {
		return fmt.Errorf("token template map: %w", err)
	}
	if n < 0 || n > maxSetLen {
		return fmt.Errorf("token template map count %d out of range", n)
	}
	t.TemplateMap = make(map[string]string, n)
	for i := 0; i < n; i++ {
		k, err := ReadString(r)
		if err != nil {
			return fmt.Errorf("token template map: %w", err)
		}
		v, err := ReadString(r)
		if err != nil {
			return fmt.Errorf("token template map: %w", err)
		}
		t.TemplateMap[k] = v
	}
	return nil
}

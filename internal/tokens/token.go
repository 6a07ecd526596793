package tokens

import "strings"

// Token is one declared or referenced symbol. It is a plain relational
// record: every link to another token is an arena index into the owning
// tree, and the ticket distinguishes the logical token from the slot it
// happens to occupy.
type Token struct {
	Name       string
	Type       string // declared type as written, e.g. "const string&"
	ActualType string // what the parser resolved it to, e.g. "string"
	Args       string
	BaseArgs   string // args with default values stripped, for overload matching

	// All ancestors as a comma-joined display string; the authoritative
	// relation lives in DirectAncestors once resolved.
	AncestorsString string

	TemplateArgument string
	TemplateAlias    string
	TemplateType     []string
	TemplateMap      map[string]string

	Aliases []string // namespace aliases

	FileIdx       int
	Line          int
	ImplFileIdx   int
	ImplLine      int
	ImplLineStart int // opening brace line when the token is a body
	ImplLineEnd   int

	Scope Scope
	Kind  Kind

	IsOperator bool
	IsLocal    bool // declared in a locally owned file
	IsTemp     bool // local variable
	IsConst    bool

	ParentIndex     int
	Children        IdxSet
	DirectAncestors IdxSet
	Ancestors       IdxSet // cached transitive closure, see RecalcInheritanceChain
	Descendants     IdxSet // cached inverse closure

	// UserData is an opaque caller-owned payload; the store never
	// interprets it.
	UserData any

	tree   *Tree
	self   int
	ticket int
}

// NewToken builds a detached token; it gains a slot and a ticket when
// inserted into a tree.
func NewToken(name string, fileIdx, line int) *Token {
	return &Token{
		Name:            name,
		FileIdx:         fileIdx,
		Line:            line,
		TemplateMap:     make(map[string]string),
		ParentIndex:     -1,
		Children:        make(IdxSet),
		DirectAncestors: make(IdxSet),
		Ancestors:       make(IdxSet),
		Descendants:     make(IdxSet),
		self:            -1,
	}
}

// Self is the token's current arena index, or -1 when detached.
func (t *Token) Self() int { return t.self }

// Ticket is the monotonically increasing stamp assigned at insertion.
// Comparing a cached ticket against it detects a recycled slot.
func (t *Token) Ticket() int { return t.ticket }

// Tree returns the owning tree, nil when detached.
func (t *Token) Tree() *Tree { return t.tree }

// AddChild records childIdx as a direct member. It deliberately does
// not set the child's parent index: the tree sets both sides together
// when it inserts a token, and a lone caller doing half the link would
// otherwise go unnoticed. Returns false for invalid or already present
// indices.
func (t *Token) AddChild(childIdx int) bool {
	if childIdx < 0 || t.Children.Has(childIdx) {
		return false
	}
	t.Children[childIdx] = struct{}{}
	return true
}

// DeleteAllChildren removes every child (and their subtrees) through
// the owning tree. Used when a container is torn down.
func (t *Token) DeleteAllChildren() bool {
	if t.tree == nil {
		return false
	}
	for len(t.Children) > 0 {
		var idx int
		for idx = range t.Children {
			break
		}
		// removeSubtree detaches idx from t.Children; guard against an
		// inconsistent back-reference leaving the entry behind.
		before := len(t.Children)
		t.tree.removeSubtree(idx)
		if len(t.Children) == before {
			delete(t.Children, idx)
		}
	}
	return true
}

func (t *Token) HasChildren() bool { return len(t.Children) > 0 }

// GetNamespace reconstructs the scoped path ("A::B::") by walking the
// parent chain to the root.
func (t *Token) GetNamespace() string {
	if t.tree == nil {
		return ""
	}
	const sep = "::"
	var ns string
	idx := t.ParentIndex
	for idx >= 0 {
		parent := t.tree.At(idx)
		if parent == nil {
			break
		}
		ns = parent.Name + sep + ns
		idx = parent.ParentIndex
	}
	return ns
}

// InheritsFrom tests the cached ancestor closure; it does not walk the
// inheritance graph.
func (t *Token) InheritsFrom(idx int) bool {
	return t.Ancestors.Has(idx)
}

// IsValidAncestor filters base-class names that cannot resolve to a
// real token: empty names, self-inheritance, and template parameters.
func (t *Token) IsValidAncestor(ancestor string) bool {
	if ancestor == "" || ancestor == t.Name {
		return false
	}
	for _, tp := range t.TemplateType {
		if tp == ancestor {
			return false
		}
	}
	// Single capital letters are almost always template parameters.
	if len(ancestor) == 1 && ancestor[0] >= 'A' && ancestor[0] <= 'Z' {
		return false
	}
	return true
}

func (t *Token) GetParentToken() *Token {
	if t.tree == nil {
		return nil
	}
	return t.tree.At(t.ParentIndex)
}

func (t *Token) GetParentName() string {
	if parent := t.GetParentToken(); parent != nil {
		return parent.Name
	}
	return ""
}

// GetFilename returns the interned declaration filename, "" if unset.
func (t *Token) GetFilename() string {
	if t.tree == nil {
		return ""
	}
	return t.tree.GetFilename(t.FileIdx)
}

func (t *Token) GetImplFilename() string {
	if t.tree == nil {
		return ""
	}
	return t.tree.GetFilename(t.ImplFileIdx)
}

// GetFormattedArgs renders the argument list on a single line.
func (t *Token) GetFormattedArgs() string {
	return strings.ReplaceAll(t.Args, "\n", "")
}

// GetStrippedArgs additionally drops default-value clauses so that
// signatures match regardless of defaults.
func (t *Token) GetStrippedArgs() string {
	var b strings.Builder
	b.Grow(len(t.Args))
	skip := false
	for _, r := range t.Args {
		switch {
		case r == '\n':
			continue
		case skip && (r == ',' || r == ')'):
			skip = false
		case !skip && r == '=':
			skip = true
			continue
		}
		if !skip {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchesFiles reports whether the token's declaration or
// implementation file is in the working set. An empty set matches
// everything.
func (t *Token) MatchesFiles(files IdxSet) bool {
	if len(files) == 0 {
		return true
	}
	return files.Has(t.FileIdx) || (t.ImplFileIdx != 0 && files.Has(t.ImplFileIdx))
}

func (t *Token) GetTokenKindString() string  { return t.Kind.String() }
func (t *Token) GetTokenScopeString() string { return t.Scope.String() }

// DisplayName formats the token the way a symbol browser lists it.
func (t *Token) DisplayName() string {
	switch t.Kind {
	case KindClass:
		return "class " + t.Name + " {...}"
	case KindNamespace:
		return "namespace " + t.Name + " {...}"
	case KindEnum:
		return "enum " + t.Name + " {...}"
	case KindTypedef:
		return strings.TrimSpace("typedef " + t.Type + " " + t.Name)
	case KindPreprocessor, KindMacro:
		return strings.TrimSpace("#define " + t.Name + t.GetFormattedArgs())
	}
	name := t.GetNamespace() + t.Name + t.GetFormattedArgs()
	if t.Type == "" {
		return name
	}
	return t.Type + " " + name
}

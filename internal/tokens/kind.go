package tokens

// Kind classifies a token. Values are bit flags so grouped filters
// ("any container", "any function") are cheap mask tests, and a search
// can be scoped by OR-ing kinds together.
type Kind uint16

const (
	KindNamespace Kind = 1 << iota
	KindClass
	KindEnum
	// Typedefs are stored as classes inheriting from the aliased type,
	// reusing the inheritance machinery.
	KindTypedef
	KindConstructor
	KindDestructor
	KindFunction
	KindVariable
	KindEnumerator
	KindPreprocessor
	KindMacro

	KindAnyContainer = KindClass | KindNamespace | KindTypedef
	KindAnyFunction  = KindFunction | KindConstructor | KindDestructor

	// KindUndefined doubles as "match everything" in kind masks.
	KindUndefined Kind = 0xFFFF
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindClass:
		return "class"
	case KindEnum:
		return "enum"
	case KindTypedef:
		return "typedef"
	case KindConstructor:
		return "constructor"
	case KindDestructor:
		return "destructor"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindEnumerator:
		return "enumerator"
	case KindPreprocessor:
		return "preprocessor"
	case KindMacro:
		return "macro"
	default:
		return "undefined"
	}
}

// Scope is the access level a declaration was found under.
type Scope int

const (
	ScopeUndefined Scope = iota
	ScopePrivate
	ScopeProtected
	ScopePublic
)

func (s Scope) String() string {
	switch s {
	case ScopePrivate:
		return "private"
	case ScopeProtected:
		return "protected"
	case ScopePublic:
		return "public"
	default:
		return ""
	}
}

// ParseStatus tracks how far a file has progressed through parsing.
// The "flagged for reparse" bit is kept separately as an overlay on
// StatusDone.
type ParseStatus int

const (
	StatusNotParsed ParseStatus = iota
	StatusAssigned
	StatusBeingParsed
	StatusDone
)

func (s ParseStatus) String() string {
	switch s {
	case StatusAssigned:
		return "assigned"
	case StatusBeingParsed:
		return "being-parsed"
	case StatusDone:
		return "done"
	default:
		return "not-parsed"
	}
}

// IdxSet is an unordered set of arena indices. Relationships between
// tokens are always held as indices, never as pointers, so slot reuse
// and serialization cannot invalidate them.
type IdxSet map[int]struct{}

func NewIdxSet(idxs ...int) IdxSet {
	s := make(IdxSet, len(idxs))
	for _, i := range idxs {
		s[i] = struct{}{}
	}
	return s
}

func (s IdxSet) Has(idx int) bool {
	_, ok := s[idx]
	return ok
}

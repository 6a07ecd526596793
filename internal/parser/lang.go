package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codequarry/symdb/internal/tokens"
)

// decl is one symbol pulled out of a source line, before it is turned
// into a database token.
type decl struct {
	name      string
	kind      tokens.Kind
	bases     string // raw base-class clause, comma separated
	args      string
	typ       string
	kw        string // declaring keyword for containers (class/struct/union)
	scope     tokens.Scope
	container bool
	anonymous bool
}

// LanguageFor maps a path to the extraction rule set it needs, or ""
// for files the indexer does not understand.
func LanguageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".c":
		return "c"
	case ".h", ".hpp", ".hh", ".hxx", ".cpp", ".cc", ".cxx", ".inl":
		return "cpp"
	default:
		return ""
	}
}

type rule struct {
	kind      tokens.Kind
	re        *regexp.Regexp
	container bool
	anonymous bool
}

var (
	cppRules = []rule{
		{tokens.KindNamespace, regexp.MustCompile(`^namespace\s+(?P<name>[A-Za-z_]\w*)\s*\{?`), true, false},
		{tokens.KindClass, regexp.MustCompile(`^(?:template\s*<[^>]*>\s*)?(?P<kw>class|struct|union)\s+(?P<name>[A-Za-z_]\w*)(?:\s+final)?\s*(?::\s*(?P<bases>[^{;]+?))?\s*(?P<tail>\{|;)?$`), true, false},
		{tokens.KindEnum, regexp.MustCompile(`^enum\s+(?:class\s+|struct\s+)?(?P<name>[A-Za-z_]\w*)`), true, false},
		{tokens.KindEnum, regexp.MustCompile(`^enum\s*\{`), true, true},
		{tokens.KindClass, regexp.MustCompile(`^(?:struct|union)\s*\{`), true, true},
		{tokens.KindTypedef, regexp.MustCompile(`^typedef\s+(?P<type>.+?)\s+(?P<name>[A-Za-z_]\w*)\s*;`), false, false},
		{tokens.KindTypedef, regexp.MustCompile(`^using\s+(?P<name>[A-Za-z_]\w*)\s*=\s*(?P<type>[^;]+);`), false, false},
		{tokens.KindMacro, regexp.MustCompile(`^#\s*define\s+(?P<name>[A-Za-z_]\w*)(?P<args>\([^)]*\))?`), false, false},
		{tokens.KindFunction, regexp.MustCompile(`^(?:(?P<type>(?:[A-Za-z_][\w:<>,*&\s]*?)?[\w>*&])\s+)?(?P<name>~?[A-Za-z_]\w*)\s*(?P<args>\([^;{}]*\))\s*(?:const\s*)?(?:noexcept\s*)?(?:override\s*)?(?:\{|;|=\s*(?:0|default|delete)\s*;)`), false, false},
		{tokens.KindVariable, regexp.MustCompile(`^(?P<type>(?:static\s+|const\s+|constexpr\s+|mutable\s+)*[A-Za-z_][\w:<>,*&\s]*?[\w>*&])\s+(?P<name>[A-Za-z_]\w*)(?:\s*=[^;]*|\s*\[[^\]]*\])?\s*;`), false, false},
	}

	goRules = []rule{
		{tokens.KindClass, regexp.MustCompile(`^type\s+(?P<name>[A-Za-z_]\w*)\s+(?:struct|interface)\s*\{`), true, false},
		{tokens.KindTypedef, regexp.MustCompile(`^type\s+(?P<name>[A-Za-z_]\w*)\s+(?:=\s+)?(?P<type>\S.*)$`), false, false},
		{tokens.KindFunction, regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?(?P<name>[A-Za-z_]\w*)\s*(?P<args>\([^)]*\))`), false, false},
		{tokens.KindVariable, regexp.MustCompile(`^(?:var|const)\s+(?P<name>[A-Za-z_]\w*)`), false, false},
	}

	accessRe = regexp.MustCompile(`^(public|protected|private)\s*:`)

	// Keywords that the loose C++ function/variable rules would
	// otherwise swallow: control flow, declaration introducers that
	// have their own rules, and friend declarations.
	cppKeywords = map[string]struct{}{
		"if": {}, "else": {}, "for": {}, "while": {}, "do": {},
		"switch": {}, "case": {}, "return": {}, "break": {},
		"continue": {}, "goto": {}, "sizeof": {}, "new": {},
		"delete": {}, "throw": {}, "catch": {}, "try": {},
		"static_assert": {}, "operator": {},
		"class": {}, "struct": {}, "union": {}, "enum": {},
		"namespace": {}, "typedef": {}, "using": {}, "template": {},
		"friend": {}, "public": {}, "protected": {}, "private": {},
	}
)

func rulesFor(lang string) []rule {
	switch lang {
	case "go":
		return goRules
	case "c", "cpp":
		return cppRules
	default:
		return nil
	}
}

// matchLine runs the rule set against one already-trimmed line and
// returns the first declaration found.
func matchLine(rules []rule, line string) (decl, bool) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := decl{kind: r.kind, container: r.container, anonymous: r.anonymous, scope: tokens.ScopeUndefined}
		for gi, gname := range r.re.SubexpNames() {
			if gi == 0 || gi >= len(m) {
				continue
			}
			switch gname {
			case "name":
				d.name = m[gi]
			case "bases":
				d.bases = cleanBaseClause(m[gi])
			case "args":
				d.args = m[gi]
			case "type":
				d.typ = strings.TrimSpace(m[gi])
			case "kw":
				d.kw = m[gi]
			case "tail":
				// A bare "class Foo;" is a forward declaration, not
				// a definition.
				if m[gi] == ";" && d.bases == "" {
					d.name = ""
				}
			}
		}
		if !d.anonymous {
			if d.name == "" {
				continue
			}
			if _, kw := cppKeywords[d.name]; kw {
				continue
			}
			if _, kw := cppKeywords[strings.Fields(d.typ + " x")[0]]; kw && d.typ != "" {
				continue
			}
		}
		return d, true
	}
	return decl{}, false
}

// cleanBaseClause strips inheritance access specifiers so only the
// base type names remain: "public A, private B" -> "A, B".
func cleanBaseClause(clause string) string {
	parts := strings.Split(clause, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		for {
			stripped := false
			for _, prefix := range []string{"virtual ", "public ", "protected ", "private "} {
				if strings.HasPrefix(part, prefix) {
					part = strings.TrimSpace(strings.TrimPrefix(part, prefix))
					stripped = true
				}
			}
			if !stripped {
				break
			}
		}
		parts[i] = part
	}
	return strings.Join(parts, ", ")
}

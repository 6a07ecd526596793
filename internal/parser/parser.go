// Package parser feeds the symbol database: it reads source files,
// extracts declarations line by line, and records them as tokens with
// containment, access scope, and inheritance information.
package parser

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/codequarry/symdb/internal/logger"
	"github.com/codequarry/symdb/internal/tokens"
)

type Parser struct {
	tree *tokens.Tree
	log  *slog.Logger
}

func New(tree *tokens.Tree) *Parser {
	return &Parser{
		tree: tree,
		log:  logger.ForComponent("parser"),
	}
}

// ParseFile reads and indexes one file. Files in languages the
// extractor does not know are skipped silently; a file already claimed
// by another worker parses zero symbols.
func (p *Parser) ParseFile(path string) (int, error) {
	lang := LanguageFor(path)
	if lang == "" {
		return 0, nil
	}

	content, enc, err := ReadSourceFile(path)
	if err != nil {
		return 0, err
	}
	p.log.Debug("parsing file", "path", path, "language", lang, "encoding", enc.Name)

	return p.Parse(path, content, lang)
}

// Parse indexes already-loaded content under the given path. The whole
// file is processed under one tree lock so readers never observe a
// half-parsed file.
func (p *Parser) Parse(path, content, lang string) (int, error) {
	rules := rulesFor(lang)
	if rules == nil {
		return 0, nil
	}

	p.tree.Lock()
	defer p.tree.Unlock()

	fileIdx := p.tree.ReserveFileForParsing(path, false)
	if fileIdx == 0 {
		p.log.Debug("file already claimed or parsed", "path", path)
		return 0, nil
	}

	st := newScanState()
	count := 0
	var withBases []*tokens.Token

	for lineNo, raw := range strings.Split(content, "\n") {
		line := st.clean(raw)
		trimmed := strings.TrimSpace(line)

		if trimmed != "" {
			if lang != "go" {
				if m := accessRe.FindStringSubmatch(trimmed); m != nil {
					st.setAccess(parseAccess(m[1]))
					continue
				}
			}

			if d, ok := matchLine(rules, trimmed); ok {
				tok := p.recordDecl(d, fileIdx, lineNo+1, lang, st)
				if tok != nil {
					count++
					if d.container {
						st.setPending(tok.Self(), d)
					}
					if tok.AncestorsString != "" {
						withBases = append(withBases, tok)
					}
				}
			}
		}

		st.trackBraces(line)
	}

	for _, tok := range withBases {
		p.tree.RecalcInheritanceChain(tok)
	}

	p.tree.FlagFileAsParsed(path)
	p.log.Debug("file parsed", "path", path, "symbols", count)
	return count, nil
}

// recordDecl turns one matched declaration into a token, reusing an
// existing record when the same symbol was already seen in this file
// (header re-scan, redeclaration).
func (p *Parser) recordDecl(d decl, fileIdx, line int, lang string, st *scanState) *tokens.Token {
	name := d.name
	if d.anonymous {
		if d.kind == tokens.KindEnum {
			name = p.tree.NextUnnamedEnumName()
		} else {
			name = p.tree.NextUnnamedStructName()
		}
	}

	parent := st.parent()

	tok := tokens.NewToken(name, fileIdx, line)
	tok.Kind = d.kind
	tok.Type = d.typ
	tok.ActualType = d.typ
	tok.Args = d.args
	tok.AncestorsString = d.bases
	tok.ParentIndex = parent
	tok.BaseArgs = tok.GetStrippedArgs()
	tok.Scope = declScope(d, lang, st)

	var existing int
	if d.kind == tokens.KindFunction {
		existing = p.tree.TokenExistsWithArgs(name, tok.BaseArgs, parent, d.kind)
	} else {
		existing = p.tree.TokenExists(name, parent, d.kind)
	}

	if existing >= 0 {
		prev := p.tree.At(existing)
		if prev.FileIdx == fileIdx {
			prev.Line = line
			if d.args != "" {
				prev.Args = d.args
				prev.BaseArgs = tok.BaseArgs
			}
			if d.typ != "" {
				prev.Type = d.typ
				prev.ActualType = d.typ
			}
			if d.bases != "" {
				prev.AncestorsString = d.bases
			}
			return prev
		}
	}

	if p.tree.Insert(tok) < 0 {
		return nil
	}
	return tok
}

func declScope(d decl, lang string, st *scanState) tokens.Scope {
	if lang == "go" {
		if d.name != "" && unicode.IsUpper(rune(d.name[0])) {
			return tokens.ScopePublic
		}
		return tokens.ScopePrivate
	}
	if top := st.top(); top != nil && top.isClass {
		return top.access
	}
	return tokens.ScopeUndefined
}

func parseAccess(word string) tokens.Scope {
	switch word {
	case "public":
		return tokens.ScopePublic
	case "protected":
		return tokens.ScopeProtected
	default:
		return tokens.ScopePrivate
	}
}

// scanState tracks brace depth, the container stack, and multi-line
// comment state while a file streams through the extractor.
type scanState struct {
	inComment bool
	depth     int
	frames    []frame

	// A container whose opening brace has not arrived yet sits in
	// pending until trackBraces sees the brace, or a semicolon kills
	// the declaration.
	pending      frame
	hasPending   bool
	pendingDepth int
}

type frame struct {
	idx     int
	depth   int // brace depth inside the container body
	isClass bool
	access  tokens.Scope
}

func newScanState() *scanState {
	return &scanState{}
}

func (s *scanState) parent() int {
	if top := s.top(); top != nil {
		return top.idx
	}
	return -1
}

func (s *scanState) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

func (s *scanState) setAccess(scope tokens.Scope) {
	if top := s.top(); top != nil && top.isClass {
		top.access = scope
	}
}

func (s *scanState) setPending(idx int, d decl) {
	access := tokens.ScopePublic
	if d.kw == "class" {
		access = tokens.ScopePrivate
	}
	s.pending = frame{
		idx:     idx,
		isClass: d.kind&(tokens.KindClass|tokens.KindEnum) != 0,
		access:  access,
	}
	s.hasPending = true
	s.pendingDepth = s.depth
}

// trackBraces walks a comment-stripped line, maintaining depth and the
// container stack. String and char literals were already blanked by
// clean, so every brace counts.
func (s *scanState) trackBraces(line string) {
	for _, c := range line {
		switch c {
		case '{':
			s.depth++
			if s.hasPending {
				f := s.pending
				f.depth = s.depth
				s.frames = append(s.frames, f)
				s.hasPending = false
			}
		case '}':
			s.depth--
			for top := s.top(); top != nil && s.depth < top.depth; top = s.top() {
				s.frames = s.frames[:len(s.frames)-1]
			}
		case ';':
			// The declaration ended before any brace arrived, e.g.
			// "enum Color : int;".
			if s.hasPending && s.depth <= s.pendingDepth {
				s.hasPending = false
			}
		}
	}
}

// clean removes comments and blanks string/char literal bodies so the
// regex rules and brace tracking never trip over them. Block comment
// state carries across lines.
func (s *scanState) clean(raw string) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		if s.inComment {
			j := strings.Index(raw[i:], "*/")
			if j < 0 {
				return b.String()
			}
			i += j + 2
			s.inComment = false
			continue
		}
		c := raw[i]
		switch {
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			return b.String()
		case c == '/' && i+1 < len(raw) && raw[i+1] == '*':
			s.inComment = true
			i += 2
		case c == '"' || c == '\'':
			quote := c
			b.WriteByte(quote)
			i++
			for i < len(raw) {
				if raw[i] == '\\' && i+1 < len(raw) {
					i += 2
					continue
				}
				if raw[i] == quote {
					i++
					break
				}
				i++
			}
			b.WriteByte(quote)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

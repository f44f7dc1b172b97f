// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

type node interface {
	position() Position
}

type ruleset struct {
	selector  []token
	body      []node
	pos       Position
	mixinName string // ".name" or "#name" if the ruleset can be called as a mixin
	mixinOnly bool   // declared as ".name() { }"
	reference bool
}

type declaration struct {
	prop  string
	value []token
	pos   Position
}

type variable struct {
	name  string
	value []token
	pos   Position
}

type mixinCall struct {
	name      string
	important bool
	pos       Position
}

type atRule struct {
	name      string
	prelude   []token
	body      []node
	block     bool
	reference bool
	pos       Position
}

type comment struct {
	text      string
	reference bool
	pos       Position
}

// cssImport is an @import left for the browser to resolve.
type cssImport struct {
	prelude []token
	pos     Position
}

// rawCSS is the contents of a file imported with the inline option.
type rawCSS struct {
	text string
	pos  Position
}

func (n *ruleset) position() Position     { return n.pos }
func (n *declaration) position() Position { return n.pos }
func (n *variable) position() Position    { return n.pos }
func (n *mixinCall) position() Position   { return n.pos }
func (n *atRule) position() Position      { return n.pos }
func (n *comment) position() Position     { return n.pos }
func (n *cssImport) position() Position   { return n.pos }
func (n *rawCSS) position() Position      { return n.pos }

type parser struct {
	c         *compilation
	file      string
	toks      []token
	i         int
	reference bool
}

// parseBlock parses statements until the closing brace of the block opened
// at open, or until the end of input for the top level.
func (p *parser) parseBlock(top bool, open Position) ([]node, error) {
	var nodes []node
	for {
		// Comments between statements are kept.
		for p.i < len(p.toks) && p.toks[p.i].space() {
			if t := p.toks[p.i]; t.tt == css.CommentToken {
				nodes = append(nodes, &comment{text: t.data, reference: p.reference, pos: t.pos})
			}
			p.i++
		}
		if p.i >= len(p.toks) {
			if !top {
				return nil, errorf(open, "missing closing `}`")
			}
			return nodes, nil
		}

		switch t := p.toks[p.i]; t.tt {
		case css.RightBraceToken:
			if top {
				return nil, errorf(t.pos, "unexpected `}`")
			}
			p.i++
			return nodes, nil
		case css.SemicolonToken:
			p.i++
			continue
		}

		start := p.i
		end, term := p.scanStatement()
		prefix := trim(p.toks[start:end])

		var (
			stmt []node
			err  error
		)
		if term == css.LeftBraceToken {
			p.i = end + 1
			body, err := p.parseBlock(false, p.toks[end].pos)
			if err != nil {
				return nil, err
			}
			stmt, err = p.blockStatement(prefix, body, p.toks[end].pos)
			if err != nil {
				return nil, err
			}
		} else {
			// Leave a closing brace for the loop to consume.
			p.i = end
			if term == css.SemicolonToken {
				p.i++
			}
			stmt, err = p.statement(prefix)
			if err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, stmt...)
	}
}

// scanStatement finds the token that terminates the statement starting at
// p.i: a semicolon, an opening brace or a closing brace outside of
// parentheses. term is css.ErrorToken if input ends first.
func (p *parser) scanStatement() (end int, term css.TokenType) {
	depth := 0
	for j := p.i; j < len(p.toks); j++ {
		switch t := p.toks[j]; t.tt {
		case css.LeftParenthesisToken, css.FunctionToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.SemicolonToken:
			if depth <= 0 {
				return j, t.tt
			}
		case css.LeftBraceToken, css.RightBraceToken:
			return j, t.tt
		}
	}
	return len(p.toks), css.ErrorToken
}

func (p *parser) blockStatement(prefix []token, body []node, open Position) ([]node, error) {
	if len(prefix) == 0 {
		return nil, errorf(open, "missing selector before `{`")
	}
	first := prefix[0]
	if first.tt == css.AtKeywordToken {
		return []node{&atRule{
			name:      strings.ToLower(first.data),
			prelude:   trim(prefix[1:]),
			body:      body,
			block:     true,
			reference: p.reference,
			pos:       first.pos,
		}}, nil
	}

	if err := checkSelector(prefix); err != nil {
		return nil, err
	}
	r := &ruleset{
		selector:  prefix,
		body:      body,
		pos:       first.pos,
		reference: p.reference,
	}
	switch {
	case isMixinDefinition(prefix):
		r.mixinName = "." + strings.TrimSuffix(prefix[1].data, "(")
		r.mixinOnly = true
	case len(prefix) == 2 && prefix[0].is(css.DelimToken, ".") && prefix[1].tt == css.IdentToken:
		r.mixinName = "." + prefix[1].data
	case len(prefix) == 1 && prefix[0].tt == css.HashToken:
		r.mixinName = prefix[0].data
	}
	return []node{r}, nil
}

// checkSelector rejects the selector features that aren't implemented:
// guards, :extend and mixin parameters.
func checkSelector(toks []token) error {
	for i, t := range toks {
		switch {
		case t.tt == css.IdentToken && strings.EqualFold(t.data, "when") && i > 0 && toks[i-1].space():
			return errorf(t.pos, "guards are not supported")
		case t.tt == css.AtKeywordToken:
			return errorf(t.pos, "variables in selectors are not supported")
		}
		if err := checkExtend(toks[:i], t); err != nil {
			return err
		}
	}
	return nil
}

// checkExtend rejects ":extend(", t being the token after prev.
func checkExtend(prev []token, t token) error {
	if t.tt == css.FunctionToken && strings.EqualFold(t.data, "extend(") &&
		len(prev) > 0 && prev[len(prev)-1].tt == css.ColonToken {
		return errorf(prev[len(prev)-1].pos, ":extend is not supported")
	}
	return nil
}

// isMixinDefinition reports whether toks are ".name()".
func isMixinDefinition(toks []token) bool {
	return len(toks) == 3 &&
		toks[0].is(css.DelimToken, ".") &&
		toks[1].tt == css.FunctionToken &&
		toks[2].tt == css.RightParenthesisToken
}

// mixinCallName returns the name of the mixin called by toks, which are
// ".name", ".name()", "#name" or "#name()".
func mixinCallName(toks []token) (string, bool) {
	switch {
	case len(toks) == 2 && toks[0].is(css.DelimToken, ".") && toks[1].tt == css.IdentToken:
		return "." + toks[1].data, true
	case isMixinDefinition(toks):
		return "." + strings.TrimSuffix(toks[1].data, "("), true
	case len(toks) == 1 && toks[0].tt == css.HashToken:
		return toks[0].data, true
	case len(toks) == 3 && toks[0].tt == css.HashToken &&
		toks[1].tt == css.LeftParenthesisToken && toks[2].tt == css.RightParenthesisToken:
		return toks[0].data, true
	}
	return "", false
}

// statement parses a statement terminated by a semicolon or the end of the
// enclosing block.
func (p *parser) statement(prefix []token) ([]node, error) {
	if len(prefix) == 0 {
		return nil, nil
	}
	first := prefix[0]

	if first.tt == css.AtKeywordToken {
		if strings.EqualFold(first.data, "@import") {
			return p.importRule(first.pos, trim(prefix[1:]))
		}
		rest := trim(prefix[1:])
		if len(rest) > 0 && rest[0].tt == css.ColonToken {
			return []node{&variable{
				name:  first.data[1:],
				value: trim(rest[1:]),
				pos:   first.pos,
			}}, nil
		}
		return []node{&atRule{
			name:      strings.ToLower(first.data),
			prelude:   rest,
			reference: p.reference,
			pos:       first.pos,
		}}, nil
	}

	for i, t := range prefix {
		if err := checkExtend(prefix[:i], t); err != nil {
			return nil, err
		}
	}

	body, important := stripImportant(prefix)
	if name, ok := mixinCallName(body); ok {
		return []node{&mixinCall{name: name, important: important, pos: first.pos}}, nil
	}

	colon := -1
	for i, t := range prefix {
		if t.tt == css.ColonToken {
			colon = i
			break
		}
	}
	if colon < 0 {
		return nil, errorf(first.pos, "unrecognised input %q", stringify(prefix))
	}
	prop := stringify(prefix[:colon])
	if prop == "" {
		return nil, errorf(first.pos, "missing property name")
	}
	prop = strings.ReplaceAll(prop, " ", "")
	value := trim(prefix[colon+1:])
	if len(value) == 0 {
		return nil, errorf(prefix[colon].pos, "missing value for property %s", prop)
	}
	return []node{&declaration{prop: prop, value: value, pos: first.pos}}, nil
}

// stripImportant removes a trailing "!important" from toks.
func stripImportant(toks []token) ([]token, bool) {
	toks = trim(toks)
	n := len(toks)
	if n < 2 || toks[n-1].tt != css.IdentToken || !strings.EqualFold(toks[n-1].data, "important") {
		return toks, false
	}
	rest := trim(toks[:n-1])
	if len(rest) == 0 || !rest[len(rest)-1].is(css.DelimToken, "!") {
		return toks, false
	}
	return trim(rest[:len(rest)-1]), true
}

type importOptions struct {
	less, css, reference, inline, optional, multiple bool
}

func (p *parser) importRule(pos Position, toks []token) ([]node, error) {
	var opts importOptions
	if len(toks) > 0 && toks[0].tt == css.LeftParenthesisToken {
		i := 1
		for ; i < len(toks) && toks[i].tt != css.RightParenthesisToken; i++ {
			t := toks[i]
			if t.tt != css.IdentToken {
				continue
			}
			switch strings.ToLower(t.data) {
			case "less":
				opts.less = true
			case "css":
				opts.css = true
			case "reference":
				opts.reference = true
			case "inline":
				opts.inline = true
			case "optional":
				opts.optional = true
			case "multiple":
				opts.multiple = true
			case "once":
				opts.multiple = false
			default:
				return nil, errorf(t.pos, "unknown import option %q", t.data)
			}
		}
		if i == len(toks) {
			return nil, errorf(pos, "missing closing `)` in import options")
		}
		toks = trim(toks[i+1:])
	}
	if len(toks) == 0 {
		return nil, errorf(pos, "missing import target")
	}

	target := toks[0]
	media := trim(toks[1:])
	if target.tt != css.StringToken {
		// url(...) imports are always CSS.
		return []node{&cssImport{prelude: toks, pos: pos}}, nil
	}
	name := unquote(target.data)
	if opts.css || (!opts.less && (path.Ext(name) == ".css" || len(media) > 0 || isURL(name))) {
		return []node{&cssImport{prelude: toks, pos: pos}}, nil
	}
	if path.Ext(name) == "" {
		name += ".less"
	}

	resolved, src, err := p.resolve(name)
	if errors.Is(err, fs.ErrNotExist) {
		if opts.optional {
			return nil, nil
		}
		return nil, errorf(target.pos, "'%s' wasn't found", name)
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	} else if err != nil {
		return nil, errorf(target.pos, "%v", err)
	}

	if opts.inline {
		return []node{&rawCSS{text: string(src), pos: pos}}, nil
	}
	if p.c.imported[resolved] && !opts.multiple {
		return nil, nil
	}
	p.c.imported[resolved] = true
	return p.c.parseFile(resolved, src, p.reference || opts.reference)
}

// resolve finds name relative to the current file, then relative to the
// root of the file system.
func (p *parser) resolve(name string) (string, []byte, error) {
	candidates := []string{
		path.Join(path.Dir(p.file), name),
		path.Clean(name),
	}
	var lastErr error = fs.ErrNotExist
	for _, c := range candidates {
		if !fs.ValidPath(c) {
			continue
		}
		b, err := p.c.read(c)
		if err == nil {
			return c, b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
		lastErr = err
	}
	return "", nil, lastErr
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

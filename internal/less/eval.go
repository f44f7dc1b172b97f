// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import (
	"context"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Evaluated output.
type (
	cssNode interface{}

	cssRule struct {
		selectors []string // empty for declarations directly inside an at-rule
		items     []cssNode
		pos       Position
	}

	cssDecl struct {
		prop, value string
		pos         Position
	}

	cssAtRule struct {
		name, prelude string
		block         bool
		children      []cssNode
		pos           Position
	}

	cssComment struct {
		text string
		pos  Position
	}
)

// maxMixinDepth limits mixin calls nested in mixins.
const maxMixinDepth = 64

type scope struct {
	parent *scope
	vars   map[string]*variable
	mixins map[string][]*ruleset
}

func newScope(parent *scope, nodes []node) *scope {
	s := &scope{
		parent: parent,
		vars:   make(map[string]*variable),
		mixins: make(map[string][]*ruleset),
	}
	for _, n := range nodes {
		switch n := n.(type) {
		case *variable:
			// The last definition wins, even if used before it.
			s.vars[n.name] = n
		case *ruleset:
			if n.mixinName != "" {
				s.mixins[n.mixinName] = append(s.mixins[n.mixinName], n)
			}
		}
	}
	return s
}

func (s *scope) lookupVar(name string) (*variable, *scope) {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, s
		}
	}
	return nil, nil
}

func (s *scope) lookupMixin(name string) []*ruleset {
	for ; s != nil; s = s.parent {
		if m, ok := s.mixins[name]; ok {
			return m
		}
	}
	return nil
}

type evaluator struct {
	ctx        context.Context
	active     map[*variable]bool // variables being evaluated
	mixinDepth int
	important  int // > 0 while inside a mixin called with !important
	imports    []string
}

func newEvaluator(ctx context.Context) *evaluator {
	return &evaluator{
		ctx:    ctx,
		active: make(map[*variable]bool),
	}
}

func (e *evaluator) eval(root []node) ([]cssNode, error) {
	var out []cssNode
	if err := e.evalBody(root, newScope(nil, root), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// evalBody evaluates nodes of a block whose selectors are sels.
// Declarations go into rule; nested rules and at-rules go into out, after
// rule.
func (e *evaluator) evalBody(nodes []node, s *scope, sels []string, rule *cssRule, out *[]cssNode) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	for _, n := range nodes {
		switch n := n.(type) {
		case *variable:
			// Looked up lazily.
		case *comment:
			if n.reference {
				continue
			}
			if rule != nil {
				rule.items = append(rule.items, &cssComment{text: n.text, pos: n.pos})
			} else {
				*out = append(*out, &cssComment{text: n.text, pos: n.pos})
			}
		case *declaration:
			if rule == nil {
				return errorf(n.pos, "properties must be inside selector blocks")
			}
			d, err := e.declaration(n, s)
			if err != nil {
				return err
			}
			rule.items = append(rule.items, d)
		case *ruleset:
			if n.mixinOnly || n.reference {
				continue
			}
			if err := e.ruleset(n, s, sels, out); err != nil {
				return err
			}
		case *mixinCall:
			if err := e.mixin(n, s, sels, rule, out); err != nil {
				return err
			}
		case *atRule:
			if n.reference {
				continue
			}
			if err := e.atRule(n, s, sels, out); err != nil {
				return err
			}
		case *cssImport:
			e.imports = append(e.imports, "@import "+stringify(n.prelude)+";")
		case *rawCSS:
			*out = append(*out, n)
		}
	}
	return nil
}

func (e *evaluator) ruleset(r *ruleset, s *scope, parent []string, out *[]cssNode) error {
	sels := combineSelectors(parent, splitSelectors(r.selector))
	rule := &cssRule{selectors: sels, pos: r.pos}
	var nested []cssNode
	if err := e.evalBody(r.body, newScope(s, r.body), sels, rule, &nested); err != nil {
		return err
	}
	if len(rule.items) > 0 {
		*out = append(*out, rule)
	}
	*out = append(*out, nested...)
	return nil
}

func (e *evaluator) mixin(call *mixinCall, s *scope, sels []string, rule *cssRule, out *[]cssNode) error {
	mixins := s.lookupMixin(call.name)
	if len(mixins) == 0 {
		return errorf(call.pos, "%s is undefined", call.name)
	}
	if e.mixinDepth >= maxMixinDepth {
		return errorf(call.pos, "too many nested mixin calls for %s", call.name)
	}
	e.mixinDepth++
	if call.important {
		e.important++
	}
	defer func() {
		e.mixinDepth--
		if call.important {
			e.important--
		}
	}()

	for _, m := range mixins {
		if err := e.evalBody(m.body, newScope(s, m.body), sels, rule, out); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator) atRule(a *atRule, s *scope, sels []string, out *[]cssNode) error {
	prelude, err := e.prelude(a.prelude, s)
	if err != nil {
		return err
	}
	at := &cssAtRule{name: a.name, prelude: prelude, block: a.block, pos: a.pos}
	if !a.block {
		*out = append(*out, at)
		return nil
	}

	child := newScope(s, a.body)
	if strings.HasSuffix(a.name, "keyframes") {
		// Keyframe selectors never combine with the enclosing rule.
		if err := e.evalBody(a.body, child, nil, nil, &at.children); err != nil {
			return err
		}
	} else {
		// Declarations go into a rule with the enclosing selectors, or
		// straight into the at-rule (@font-face, @page) at the top level.
		inner := &cssRule{selectors: sels, pos: a.pos}
		var nested []cssNode
		if err := e.evalBody(a.body, child, sels, inner, &nested); err != nil {
			return err
		}
		if len(inner.items) > 0 {
			at.children = append(at.children, inner)
		}
		at.children = append(at.children, nested...)
	}
	if len(at.children) > 0 {
		*out = append(*out, at)
	}
	return nil
}

func (e *evaluator) declaration(d *declaration, s *scope) (*cssDecl, error) {
	toks, important := stripImportant(d.value)
	value, err := e.value(toks, s)
	if err != nil {
		return nil, err
	}
	if important || e.important > 0 {
		value += " !important"
	}
	return &cssDecl{prop: d.prop, value: value, pos: d.pos}, nil
}

// prelude evaluates an at-rule prelude. Only variables and escaped strings
// are substituted.
func (e *evaluator) prelude(toks []token, s *scope) (string, error) {
	expanded, err := e.substitute(toks, s)
	if err != nil {
		return "", err
	}
	var out []token
	for i := 0; i < len(expanded); i++ {
		t := expanded[i]
		if t.is(css.DelimToken, "~") && i+1 < len(expanded) && expanded[i+1].tt == css.StringToken {
			i++
			t = token{tt: css.IdentToken, data: unquote(expanded[i].data), pos: t.pos}
		}
		out = append(out, t)
	}
	return stringify(out), nil
}

// substitute replaces variable references in toks with their values.
func (e *evaluator) substitute(toks []token, s *scope) ([]token, error) {
	var out []token
	for _, t := range toks {
		if t.tt != css.AtKeywordToken {
			out = append(out, t)
			continue
		}
		name := t.data[1:]
		v, defScope := s.lookupVar(name)
		if v == nil {
			return nil, errorf(t.pos, "variable %s is undefined", t.data)
		}
		if e.active[v] {
			return nil, errorf(t.pos, "recursive variable definition for %s", t.data)
		}
		e.active[v] = true
		val, err := e.substitute(v.value, defScope)
		delete(e.active, v)
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return out, nil
}

// splitSelectors splits selector tokens on top-level commas and normalizes
// each selector. The parent selector & is replaced with a NUL byte so it
// can't be confused with an & inside strings.
func splitSelectors(toks []token) []string {
	var (
		sels  []string
		cur   strings.Builder
		space bool
		depth int
	)
	flush := func() {
		sels = append(sels, strings.TrimSpace(cur.String()))
		cur.Reset()
		space = false
	}
	for _, t := range trim(toks) {
		switch {
		case t.tt == css.CommaToken && depth == 0:
			flush()
			continue
		case t.space():
			space = cur.Len() > 0
			continue
		case t.tt == css.FunctionToken || t.tt == css.LeftParenthesisToken || t.tt == css.LeftBracketToken:
			depth++
		case t.tt == css.RightParenthesisToken || t.tt == css.RightBracketToken:
			depth--
		}
		if t.tt == css.DelimToken && depth == 0 && (t.data == ">" || t.data == "+" || t.data == "~") {
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(t.data)
			cur.WriteByte(' ')
			space = false
			continue
		}
		if space && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		space = false
		if t.is(css.DelimToken, "&") {
			cur.WriteByte(0)
		} else {
			cur.WriteString(t.data)
		}
	}
	flush()
	return sels
}

// combineSelectors nests child selectors in parent selectors.
func combineSelectors(parent, child []string) []string {
	if len(parent) == 0 {
		out := make([]string, 0, len(child))
		for _, c := range child {
			out = append(out, strings.TrimSpace(strings.ReplaceAll(c, "\x00", "")))
		}
		return out
	}
	var out []string
	for _, p := range parent {
		for _, c := range child {
			if strings.Contains(c, "\x00") {
				out = append(out, strings.ReplaceAll(c, "\x00", p))
			} else {
				out = append(out, p+" "+c)
			}
		}
	}
	return out
}

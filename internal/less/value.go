// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// value evaluates a property value: variables, arithmetic and functions.
func (e *evaluator) value(toks []token, s *scope) (string, error) {
	expanded, err := e.substitute(toks, s)
	if err != nil {
		return "", err
	}
	p := &valueParser{toks: trim(expanded)}
	items, err := p.sequence(css.ErrorToken)
	if err != nil {
		return "", err
	}
	if !p.done() {
		t := p.peek()
		return "", errorf(t.pos, "unexpected %q", t.data)
	}
	return join(items), nil
}

type operandKind int

const (
	rawOperand operandKind = iota
	numberOperand
	colorOperand
)

type operand struct {
	kind operandKind
	num  float64
	unit string
	rgba [4]float64 // 0-255 channels, alpha in [0, 1]
	text string
}

func (o operand) numeric() bool { return o.kind == numberOperand }

func number(n float64, unit string) operand {
	return operand{kind: numberOperand, num: n, unit: unit, text: formatNumber(n) + unit}
}

func color(rgba [4]float64) operand {
	return operand{kind: colorOperand, rgba: rgba, text: formatColor(rgba)}
}

func raw(s string) operand { return operand{text: s} }

// item is an operand with the separator that precedes it.
type item struct {
	op  operand
	sep string // "", " " or ","
}

func join(items []item) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			switch it.sep {
			case ",":
				sb.WriteString(", ")
			case " ":
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(it.op.text)
	}
	return sb.String()
}

type valueParser struct {
	toks   []token
	i      int
	parens int // depth of math parentheses; division only happens inside
}

func (p *valueParser) done() bool  { return p.i >= len(p.toks) }
func (p *valueParser) peek() token { return p.toks[p.i] }

func (p *valueParser) skipSpace() bool {
	skipped := false
	for !p.done() && p.peek().space() {
		p.i++
		skipped = true
	}
	return skipped
}

// sequence parses space and comma separated operands up to closer, which
// is not consumed.
func (p *valueParser) sequence(closer css.TokenType) ([]item, error) {
	var (
		items []item
		sep   string
	)
	for {
		space := p.skipSpace()
		if p.done() || p.peek().tt == closer {
			return items, nil
		}
		if p.peek().tt == css.CommaToken {
			p.i++
			sep = ","
			continue
		}
		if sep == "" && space {
			sep = " "
		}
		op, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, item{op: op, sep: sep})
		sep = ""
	}
}

// binary parses left-associative operations of one precedence level.
// A minus with space before it but not after, as in "0 -@x", is a sign.
func (p *valueParser) binary(next func() (operand, error), ops func(string) bool) (operand, error) {
	left, err := next()
	if err != nil {
		return operand{}, err
	}
	for {
		save := p.i
		spaceBefore := p.skipSpace()
		if p.done() || p.peek().tt != css.DelimToken || !ops(p.peek().data) {
			p.i = save
			return left, nil
		}
		op := p.peek()
		p.i++
		spaceAfter := p.skipSpace()
		if p.done() || (op.data == "-" && spaceBefore && !spaceAfter) {
			p.i = save
			return left, nil
		}
		right, err := next()
		if err != nil {
			return operand{}, err
		}
		if !left.numeric() || !right.numeric() {
			return operand{}, errorf(op.pos, "cannot apply %s to %s and %s", op.data, left.text, right.text)
		}
		if left, err = arith(left, op, right); err != nil {
			return operand{}, err
		}
	}
}

func (p *valueParser) expr() (operand, error) {
	return p.binary(p.term, func(op string) bool { return op == "+" || op == "-" })
}

func (p *valueParser) term() (operand, error) {
	return p.binary(p.factor, func(op string) bool {
		return op == "*" || (op == "/" && p.parens > 0)
	})
}

func (p *valueParser) factor() (operand, error) {
	t := p.peek()
	p.i++
	switch t.tt {
	case css.NumberToken, css.PercentageToken, css.DimensionToken:
		n, unit, ok := parseNumber(t.data)
		if !ok {
			return raw(t.data), nil
		}
		return operand{kind: numberOperand, num: n, unit: unit, text: t.data}, nil
	case css.HashToken:
		if rgba, ok := parseHex(t.data); ok {
			return operand{kind: colorOperand, rgba: rgba, text: t.data}, nil
		}
		return raw(t.data), nil
	case css.IdentToken:
		if rgba, ok := namedColors[strings.ToLower(t.data)]; ok {
			return operand{kind: colorOperand, rgba: rgba, text: t.data}, nil
		}
		return raw(t.data), nil
	case css.DelimToken:
		if !p.done() {
			next := p.peek()
			if t.data == "~" && next.tt == css.StringToken {
				p.i++
				return raw(unquote(next.data)), nil
			}
			if t.data == "-" && (next.tt == css.NumberToken || next.tt == css.DimensionToken ||
				next.tt == css.PercentageToken || next.tt == css.LeftParenthesisToken) {
				o, err := p.factor()
				if err != nil {
					return operand{}, err
				}
				if o.numeric() {
					return number(-o.num, o.unit), nil
				}
				return raw("-" + o.text), nil
			}
		}
		return raw(t.data), nil
	case css.LeftParenthesisToken:
		p.parens++
		items, err := p.sequence(css.RightParenthesisToken)
		p.parens--
		if err != nil {
			return operand{}, err
		}
		if p.done() {
			return operand{}, errorf(t.pos, "missing closing `)`")
		}
		p.i++
		if len(items) == 1 && items[0].op.kind != rawOperand {
			return items[0].op, nil
		}
		return raw("(" + join(items) + ")"), nil
	case css.FunctionToken:
		return p.function(t)
	}
	return raw(t.data), nil
}

func (p *valueParser) function(t token) (operand, error) {
	name := strings.ToLower(strings.TrimSuffix(t.data, "("))
	if name == "calc" || name == "var" || name == "url" || strings.HasSuffix(name, "-calc") {
		return p.verbatim(t)
	}

	items, err := p.sequence(css.RightParenthesisToken)
	if err != nil {
		return operand{}, err
	}
	if p.done() {
		return operand{}, errorf(t.pos, "missing closing `)` for %s", t.data)
	}
	p.i++

	fn, ok := functions[name]
	if !ok {
		text := t.data + join(items) + ")"
		if rgba, ok := colorFunction(name, items); ok {
			return operand{kind: colorOperand, rgba: rgba, text: text}, nil
		}
		return raw(text), nil
	}
	args, err := splitArgs(t, items)
	if err != nil {
		return operand{}, err
	}
	return fn(t, args)
}

// verbatim copies a function call up to its closing parenthesis.
func (p *valueParser) verbatim(t token) (operand, error) {
	start := p.i
	depth := 1
	for ; !p.done(); p.i++ {
		switch p.peek().tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		}
		if depth == 0 {
			inner := stringify(p.toks[start:p.i])
			p.i++
			return raw(t.data + inner + ")"), nil
		}
	}
	return operand{}, errorf(t.pos, "missing closing `)` for %s", t.data)
}

// splitArgs turns comma separated items into one operand per argument.
func splitArgs(fn token, items []item) ([]operand, error) {
	var (
		args []operand
		cur  []item
	)
	flush := func() error {
		switch len(cur) {
		case 0:
			return errorf(fn.pos, "empty argument in %s)", fn.data)
		case 1:
			args = append(args, cur[0].op)
		default:
			args = append(args, raw(join(cur)))
		}
		cur = cur[:0]
		return nil
	}
	for _, it := range items {
		if it.sep == "," {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		cur = append(cur, it)
	}
	if len(items) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func arith(left operand, op token, right operand) (operand, error) {
	unit := left.unit
	if unit == "" {
		unit = right.unit
	}
	var n float64
	switch op.data {
	case "+":
		n = left.num + right.num
	case "-":
		n = left.num - right.num
	case "*":
		n = left.num * right.num
	case "/":
		if right.num == 0 {
			return operand{}, errorf(op.pos, "division by zero")
		}
		n = left.num / right.num
	}
	return number(n, unit), nil
}

// parseNumber splits a number, percentage or dimension into its value and
// unit.
func parseNumber(s string) (float64, string, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	// Exponent, but not the start of a unit like "em".
	if i+1 < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if s[j] == '+' || s[j] == '-' {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	n, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, "", false
	}
	return n, s[i:], true
}

func formatNumber(n float64) string {
	n = math.Round(n*1e8) / 1e8
	if n == 0 {
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func parseHex(s string) ([4]float64, bool) {
	s = strings.TrimPrefix(s, "#")
	var digits []float64
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, float64(c-'0'))
		case c >= 'a' && c <= 'f':
			digits = append(digits, float64(c-'a'+10))
		default:
			return [4]float64{}, false
		}
	}
	rgba := [4]float64{0, 0, 0, 1}
	switch len(digits) {
	case 3, 4:
		for i, d := range digits {
			rgba[i] = d*16 + d
		}
	case 6, 8:
		for i := 0; i < len(digits); i += 2 {
			rgba[i/2] = digits[i]*16 + digits[i+1]
		}
	default:
		return [4]float64{}, false
	}
	if len(digits) == 4 || len(digits) == 8 {
		rgba[3] /= 255
	}
	return rgba, true
}

func formatColor(rgba [4]float64) string {
	ch := func(v float64) int { return int(math.Round(math.Max(0, math.Min(255, v)))) }
	if rgba[3] >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", ch(rgba[0]), ch(rgba[1]), ch(rgba[2]))
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", ch(rgba[0]), ch(rgba[1]), ch(rgba[2]), formatNumber(math.Max(0, rgba[3])))
}

// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import (
	"bytes"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type token struct {
	tt   css.TokenType
	data string
	pos  Position
}

func (t token) is(tt css.TokenType, data string) bool {
	return t.tt == tt && t.data == data
}

func (t token) space() bool {
	return t.tt == css.WhitespaceToken || t.tt == css.CommentToken
}

// tokenize splits src into CSS tokens. The CSS lexer knows nothing about
// line comments, so they are blanked out first; positions stay intact.
//
// Variable interpolation ("@{name}") is rejected here, both in strings and
// outside of them.
func tokenize(file string, src []byte) ([]token, error) {
	buf := stripLineComments(src)
	l := css.NewLexer(parse.NewInputBytes(buf))

	var (
		toks []token
		line = 1
		col  = 1
	)
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, errorf(Position{file, line, col}, "%v", err)
			}
			return toks, nil
		}
		t := token{tt: tt, data: string(data), pos: Position{file, line, col}}
		if err := interpolation(toks, t); err != nil {
			return nil, err
		}
		toks = append(toks, t)
		for _, c := range data {
			if c == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
	}
}

func interpolation(prev []token, t token) error {
	if t.tt == css.LeftBraceToken && len(prev) > 0 && prev[len(prev)-1].is(css.DelimToken, "@") {
		return errorf(prev[len(prev)-1].pos, "variable interpolation is not supported")
	}
	if t.tt == css.CommentToken {
		return nil
	}
	if i := strings.Index(t.data, "@{"); i >= 0 {
		pos := t.pos
		if !strings.Contains(t.data[:i], "\n") {
			pos.Column += i
		}
		return errorf(pos, "variable interpolation is not supported")
	}
	return nil
}

// stripLineComments returns a copy of src with "//" comments replaced by
// spaces. Strings, block comments and unquoted url() arguments are left
// alone.
func stripLineComments(src []byte) []byte {
	b := make([]byte, len(src), len(src)+1)
	copy(b, src)
	for i := 0; i < len(b); i++ {
		switch c := b[i]; {
		case c == '"' || c == '\'':
			i++
			for i < len(b) && b[i] != c && b[i] != '\n' {
				if b[i] == '\\' {
					i++
				}
				i++
			}
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			end := bytes.Index(b[i+2:], []byte("*/"))
			if end < 0 {
				return b
			}
			i += end + 3
		case c == '/' && i+1 < len(b) && b[i+1] == '/':
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		case (c == 'u' || c == 'U') && hasPrefixFold(b[i:], "url("):
			end := bytes.IndexByte(b[i:], ')')
			if end < 0 {
				return b
			}
			i += end
		}
	}
	return b
}

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], []byte(prefix))
}

// trim drops leading and trailing whitespace and comments.
func trim(toks []token) []token {
	for len(toks) > 0 && toks[0].space() {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].space() {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// stringify joins tokens, collapsing whitespace into single spaces and
// dropping comments.
func stringify(toks []token) string {
	var (
		sb    bytes.Buffer
		space bool
	)
	for _, t := range trim(toks) {
		if t.space() {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteString(t.data)
	}
	return sb.String()
}

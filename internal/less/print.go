// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import (
	"bytes"
	"strings"

	"github.com/datagovau/ckanext-datagovau/internal/sourcemap"
)

const indentUnit = "  "

// printer writes evaluated CSS, tracking the output position for source
// maps. Lines and columns are zero-based.
type printer struct {
	buf        bytes.Buffer
	line, col  int
	gen        *sourcemap.Generator
	sourceName func(string) string
}

func (p *printer) write(s string) {
	p.buf.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.line += strings.Count(s, "\n")
		p.col = len(s) - i - 1
	} else {
		p.col += len(s)
	}
}

// mark maps the current output position to pos.
func (p *printer) mark(pos Position) {
	if p.gen == nil || pos.File == "" {
		return
	}
	p.gen.Add(sourcemap.Mapping{
		GenLine:   p.line,
		GenColumn: p.col,
		Source:    p.gen.AddSource(p.sourceName(pos.File), nil),
		Line:      pos.Line - 1,
		Column:    pos.Column - 1,
	})
}

func (p *printer) print(imports []string, nodes []cssNode) {
	for _, imp := range imports {
		p.write(imp + "\n")
	}
	p.nodes(nodes, "")
}

func (p *printer) nodes(nodes []cssNode, indent string) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *cssRule:
			p.rule(n, indent)
		case *cssDecl:
			p.write(indent)
			p.mark(n.pos)
			p.write(n.prop + ": " + n.value + ";\n")
		case *cssComment:
			p.write(indent)
			p.mark(n.pos)
			p.write(n.text + "\n")
		case *cssAtRule:
			p.atRule(n, indent)
		case *rawCSS:
			p.mark(n.pos)
			p.write(n.text)
			if !strings.HasSuffix(n.text, "\n") {
				p.write("\n")
			}
		}
	}
}

func (p *printer) rule(r *cssRule, indent string) {
	if len(r.selectors) == 0 {
		p.nodes(r.items, indent)
		return
	}
	p.write(indent)
	p.mark(r.pos)
	p.write(strings.Join(r.selectors, ",\n"+indent))
	p.write(" {\n")
	p.nodes(r.items, indent+indentUnit)
	p.write(indent + "}\n")
}

func (p *printer) atRule(a *cssAtRule, indent string) {
	p.write(indent)
	p.mark(a.pos)
	p.write(a.name)
	if a.prelude != "" {
		p.write(" " + a.prelude)
	}
	if !a.block {
		p.write(";\n")
		return
	}
	p.write(" {\n")
	p.nodes(a.children, indent+indentUnit)
	p.write(indent + "}\n")
}

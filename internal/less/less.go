// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package less compiles the subset of LESS used by the theme into CSS.

# Language

The compiler understands:

	// comments      Dropped. Block comments are kept.
	@var: value;     Block-scoped, lazily evaluated variables.
	.a { .b { } }    Nested rules and the parent selector &.
	.m; .m();        Calls of non-parametric mixins. A ruleset declared
	                 as ".m() { }" is a mixin that is not output.
	@import "x";     Imports resolved relative to the importing file,
	                 then to the root of the file system. Options:
	                 less, css, reference, inline, optional, once,
	                 multiple.
	@a * 2           Arithmetic on numbers and dimensions. Division is
	                 only performed inside parentheses.
	lighten(c, 10%)  Also darken, fade and percentage. Colors are hex,
	                 named, rgb(), rgba(), hsl() or hsla(). Unknown
	                 functions are passed through.
	~"raw"           Escaped strings.

Media queries nested in rules bubble up to the top level.

Guards, :extend, parametric mixins, "@{name}" interpolation and
operations on anything but numbers are reported as errors. Other CSS is
passed through.
*/
package less

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"github.com/datagovau/ckanext-datagovau/internal/sourcemap"
)

// Compiler compiles LESS files.
type Compiler struct {
	// FS is the file system imports are resolved in.
	FS fs.FS
	// SourceMap determines if a source map should be generated.
	SourceMap bool
	// OutputFile is the name of the generated CSS file, recorded in the
	// source map.
	OutputFile string
	// SourceMapRoot is prepended to file names from FS in the source map
	// sources list, e.g. "../theme".
	SourceMapRoot string
}

// Result is the outcome of a compilation.
type Result struct {
	// CSS is the compiled stylesheet.
	CSS []byte
	// Map is the source map, if requested.
	Map *sourcemap.Map
	// Imports lists the files that were imported, in order.
	Imports []string
}

// Compile compiles src, the contents of the file name in c.FS.
func (c *Compiler) Compile(ctx context.Context, name string, src []byte) (*Result, error) {
	cmp := &compilation{
		ctx:      ctx,
		fsys:     c.FS,
		imported: map[string]bool{name: true},
		contents: map[string][]byte{name: src},
		order:    []string{name},
	}

	root, err := cmp.parseFile(name, src, false)
	if err != nil {
		return nil, err
	}

	e := newEvaluator(ctx)
	out, err := e.eval(root)
	if err != nil {
		return nil, err
	}

	var gen *sourcemap.Generator
	if c.SourceMap {
		gen = sourcemap.New(c.OutputFile)
		for _, f := range cmp.order {
			gen.AddSource(c.sourceName(f), cmp.contents[f])
		}
	}
	p := &printer{gen: gen, sourceName: c.sourceName}
	p.print(e.imports, out)

	res := &Result{
		CSS:     p.buf.Bytes(),
		Imports: cmp.order[1:],
	}
	if gen != nil {
		res.Map = gen.Map()
	}
	return res, nil
}

func (c *Compiler) sourceName(file string) string {
	if c.SourceMapRoot == "" {
		return file
	}
	return path.Join(c.SourceMapRoot, file)
}

// compilation holds the state of a single Compile call.
type compilation struct {
	ctx      context.Context
	fsys     fs.FS
	imported map[string]bool
	contents map[string][]byte
	order    []string // files in the order they were read, entry first
}

func (c *compilation) parseFile(name string, src []byte, reference bool) ([]node, error) {
	toks, err := tokenize(name, src)
	if err != nil {
		return nil, err
	}
	p := &parser{c: c, file: name, toks: toks, reference: reference}
	return p.parseBlock(true, Position{File: name, Line: 1, Column: 1})
}

func (c *compilation) read(name string) ([]byte, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	if c.fsys == nil {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	b, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, err
	}
	if _, ok := c.contents[name]; !ok {
		c.contents[name] = b
		c.order = append(c.order, name)
	}
	return b, nil
}

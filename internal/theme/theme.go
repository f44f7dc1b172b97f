// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package theme builds the stylesheet of the data.gov.au CKAN theme.

# Directory Structure

	ckanext/datagovau/theme   LESS sources. dga.less is the entry point,
	                          other files are pulled in with @import.
	ckanext/datagovau/assets  Build output: dga.css and, in development
	                          mode, dga.css.map.

# Modes

In the development mode (see [env.Dev]) the CSS is left readable and a
source map pointing back at the LESS sources is written next to it. In the
production mode (see [env.Prod]) the CSS is minified and no source map is
produced; a source map left over from a development build is removed.

Either way, the output files are replaced atomically and their
modification time is updated, so the asset bundler notices the change even
if the content is the same.
*/
package theme

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datagovau/ckanext-datagovau/internal/env"
	"github.com/datagovau/ckanext-datagovau/internal/less"

	"github.com/google/renameio/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// Errors returned by Build. Use errors.Is to check for them; a compilation
// error also unwraps to *less.Error, which carries the location.
var (
	ErrCompile = errors.New("compilation failed")
	ErrIO      = errors.New("I/O failed")
)

// Config represents a build configuration.
type Config struct {
	// ThemeDir is the directory with the LESS sources. If empty, uses
	// ckanext/datagovau/theme.
	ThemeDir string
	// AssetsDir is the directory where to write the CSS. If empty, uses
	// ckanext/datagovau/assets.
	AssetsDir string
	// Entry is the name of the entry stylesheet inside ThemeDir. If empty,
	// uses dga.less.
	Entry string
	// Mode is the mode to build in. If empty, uses env.Prod.
	Mode env.Mode
	// ModeFunc, if set, is called at the start of each build and overrides
	// Mode. Watch uses it to pick up a changed environment between builds.
	ModeFunc func() env.Mode

	now func() time.Time // used in tests
}

func (c *Config) setDefaults() {
	if c.ThemeDir == "" {
		c.ThemeDir = filepath.Join("ckanext", "datagovau", "theme")
	}
	if c.AssetsDir == "" {
		c.AssetsDir = filepath.Join("ckanext", "datagovau", "assets")
	}
	if c.Entry == "" {
		c.Entry = "dga.less"
	}
	if c.Mode == "" {
		c.Mode = env.Prod
	}
	if c.now == nil {
		c.now = time.Now
	}
}

func (c *Config) mode() env.Mode {
	if c.ModeFunc != nil {
		if m := c.ModeFunc(); m != "" {
			return m
		}
	}
	return c.Mode
}

// CSSPath returns the path of the generated stylesheet.
func (c *Config) CSSPath() string {
	name := filepath.Base(c.Entry)
	return filepath.Join(c.AssetsDir, strings.TrimSuffix(name, filepath.Ext(name))+".css")
}

// MapPath returns the path of the generated source map.
func (c *Config) MapPath() string {
	return c.CSSPath() + ".map"
}

type stage int

const (
	stageRead stage = iota
	stageInitSourceMap
	stageCompile
	stageMinify
	stageEmitSourceMap
	stageWrite
	stageTouch
)

var stageNames = [...]string{
	stageRead:          "read",
	stageInitSourceMap: "init source map",
	stageCompile:       "compile",
	stageMinify:        "minify",
	stageEmitSourceMap: "emit source map",
	stageWrite:         "write",
	stageTouch:         "touch",
}

func (s stage) String() string { return stageNames[s] }

// pipelines lists the stages run in each mode, in order.
var pipelines = map[env.Mode][]stage{
	env.Dev:  {stageRead, stageInitSourceMap, stageCompile, stageEmitSourceMap, stageWrite, stageTouch},
	env.Prod: {stageRead, stageCompile, stageMinify, stageWrite, stageTouch},
}

// Build compiles the theme stylesheet based on the provided [Config].
//
// Nothing is written if any stage before writing fails, so the previous
// output stays in place.
func Build(ctx context.Context, c *Config) error {
	_, err := build(ctx, c)
	return err
}

func build(ctx context.Context, c *Config) (*run, error) {
	c.setDefaults()
	mode := c.mode()
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	r := &run{c: c, mode: mode}
	for _, s := range pipelines[mode] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.do(ctx, s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// run is the state of a single Build call.
type run struct {
	c         *Config
	mode      env.Mode
	src       []byte
	compiler  *less.Compiler
	css       []byte
	sourceMap []byte
	imports   []string // relative to the theme directory
}

func (r *run) do(ctx context.Context, s stage) error {
	switch s {
	case stageRead:
		return r.read()
	case stageInitSourceMap:
		return r.initSourceMap()
	case stageCompile:
		return r.compile(ctx)
	case stageMinify:
		return r.minify()
	case stageEmitSourceMap:
		return r.emitSourceMap()
	case stageWrite:
		return r.write()
	case stageTouch:
		return r.touch()
	}
	return fmt.Errorf("unknown stage %d", s)
}

func (r *run) read() error {
	src, err := os.ReadFile(filepath.Join(r.c.ThemeDir, r.c.Entry))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	r.src = src
	r.compiler = &less.Compiler{FS: os.DirFS(r.c.ThemeDir)}
	return nil
}

func (r *run) initSourceMap() error {
	r.compiler.SourceMap = true
	r.compiler.OutputFile = filepath.Base(r.c.CSSPath())
	r.compiler.SourceMapRoot = sourceMapRoot(r.c.AssetsDir, r.c.ThemeDir)
	return nil
}

// sourceMapRoot returns the theme directory as seen from the assets
// directory, so the browser can find the sources next to the CSS.
func sourceMapRoot(assetsDir, themeDir string) string {
	rel, err := filepath.Rel(assetsDir, themeDir)
	if err != nil {
		if abs, err := filepath.Abs(themeDir); err == nil {
			return filepath.ToSlash(abs)
		}
		return filepath.ToSlash(themeDir)
	}
	return filepath.ToSlash(rel)
}

func (r *run) compile(ctx context.Context) error {
	res, err := r.compiler.Compile(ctx, filepath.ToSlash(r.c.Entry), r.src)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompile, err)
	}
	r.css = res.CSS
	r.imports = res.Imports
	if res.Map != nil {
		b, err := res.Map.Encode()
		if err != nil {
			return fmt.Errorf("%w: encoding source map: %w", ErrCompile, err)
		}
		r.sourceMap = b
	}
	return nil
}

func (r *run) minify() error {
	b, err := newMin().Bytes("text/css", r.css)
	if err != nil {
		return fmt.Errorf("%w: minifying: %w", ErrCompile, err)
	}
	r.css = b
	return nil
}

func (r *run) emitSourceMap() error {
	if r.sourceMap == nil {
		return fmt.Errorf("%w: no source map was generated", ErrCompile)
	}
	r.css = append(r.css, "/*# sourceMappingURL="+filepath.Base(r.c.MapPath())+" */"...)
	return nil
}

// write replaces the output files. Both are staged first and the CSS is
// put in place before the source map, so a failed write never leaves a
// source map newer than the CSS next to it.
func (r *run) write() error {
	if err := os.MkdirAll(r.c.AssetsDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	cssFile, err := newPendingFile(r.c.CSSPath(), r.css)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer cssFile.Cleanup()

	var mapFile *renameio.PendingFile
	if r.mode == env.Dev {
		mapFile, err = newPendingFile(r.c.MapPath(), r.sourceMap)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		defer mapFile.Cleanup()
	}

	if err := cssFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if mapFile != nil {
		if err := mapFile.CloseAtomicallyReplace(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil
	}
	if err := os.Remove(r.c.MapPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing stale source map: %w", ErrIO, err)
	}
	return nil
}

// newPendingFile writes b to a temporary file next to name, to be renamed
// into place later.
func newPendingFile(name string, b []byte) (*renameio.PendingFile, error) {
	f, err := renameio.NewPendingFile(name,
		renameio.WithTempDir(filepath.Dir(name)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(b); err != nil {
		f.Cleanup()
		return nil, err
	}
	return f, nil
}

func (r *run) touch() error {
	now := r.c.now()
	paths := []string{r.c.CSSPath()}
	if r.mode == env.Dev {
		paths = append(paths, r.c.MapPath())
	}
	for _, p := range paths {
		if err := os.Chtimes(p, now, now); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return nil
}

type min struct {
	m *minify.M
}

func newMin() *min {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	return &min{m: m}
}

func (m *min) Bytes(mediaType string, b []byte) ([]byte, error) {
	return m.m.Bytes(mediaType, b)
}

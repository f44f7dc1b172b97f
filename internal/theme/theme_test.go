// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package theme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datagovau/ckanext-datagovau/internal/env"
	"github.com/datagovau/ckanext-datagovau/internal/less"
	"github.com/datagovau/ckanext-datagovau/internal/sourcemap"

	"go.astrophena.name/base/testutil"
)

const simpleLess = "@variable: #fff;\nbody { color: @variable; }\n"

// newTestConfig returns a Config with a theme directory containing files
// and an empty assets directory next to it.
func newTestConfig(t *testing.T, mode env.Mode, files map[string]string) *Config {
	t.Helper()
	root := t.TempDir()
	themeDir := filepath.Join(root, "theme")
	if err := os.MkdirAll(themeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		writeFile(t, filepath.Join(themeDir, name), content)
	}
	return &Config{
		ThemeDir:  themeDir,
		AssetsDir: filepath.Join(root, "assets"),
		Mode:      mode,
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func assertNotExist(t *testing.T, name string) {
	t.Helper()
	if _, err := os.Stat(name); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("%s: want it to not exist, got %v", name, err)
	}
}

func TestBuildProd(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{"dga.less": simpleLess})
	if err := Build(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.AssetsDir, "dga.css")), "body{color:#fff}")
	assertNotExist(t, filepath.Join(c.AssetsDir, "dga.css.map"))
}

func TestBuildDev(t *testing.T) {
	c := newTestConfig(t, env.Dev, map[string]string{
		"dga.less":             "@import \"partials/colors\";\nbody { color: @variable; }\n",
		"partials/colors.less": "@variable: #fff;\n",
	})
	if err := Build(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t,
		readFile(t, filepath.Join(c.AssetsDir, "dga.css")),
		"body {\n  color: #fff;\n}\n/*# sourceMappingURL=dga.css.map */",
	)

	var m sourcemap.Map
	if err := json.Unmarshal([]byte(readFile(t, filepath.Join(c.AssetsDir, "dga.css.map"))), &m); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, m.Version, 3)
	testutil.AssertEqual(t, m.File, "dga.css")
	testutil.AssertEqual(t, strings.Join(m.Sources, " "), "../theme/dga.less ../theme/partials/colors.less")
	testutil.AssertEqual(t, len(m.SourcesContent), 2)
	testutil.AssertEqual(t, m.SourcesContent[0], "@import \"partials/colors\";\nbody { color: @variable; }\n")
	testutil.AssertEqual(t, m.SourcesContent[1], "@variable: #fff;\n")
	if m.Mappings == "" {
		t.Fatal("source map has no mappings")
	}
}

func TestBuildModeFunc(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{"dga.less": simpleLess})
	mode := env.Dev
	c.ModeFunc = func() env.Mode { return mode }

	if err := Build(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(c.AssetsDir, "dga.css.map")); err != nil {
		t.Fatalf("development build didn't write a source map: %v", err)
	}

	// Switching to production removes the source map of the previous build.
	mode = env.Prod
	if err := Build(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.AssetsDir, "dga.css")), "body{color:#fff}")
	assertNotExist(t, filepath.Join(c.AssetsDir, "dga.css.map"))
}

func TestBuildTouchesOutput(t *testing.T) {
	for _, mode := range []env.Mode{env.Dev, env.Prod} {
		t.Run(string(mode), func(t *testing.T) {
			c := newTestConfig(t, mode, map[string]string{"dga.less": simpleLess})
			if err := Build(context.Background(), c); err != nil {
				t.Fatal(err)
			}
			before := readFile(t, c.CSSPath())

			// Same input, so the content doesn't change, but the
			// modification time does.
			now := time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC)
			c.now = func() time.Time { return now }
			if err := Build(context.Background(), c); err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, readFile(t, c.CSSPath()), before)

			fi, err := os.Stat(c.CSSPath())
			if err != nil {
				t.Fatal(err)
			}
			if !fi.ModTime().Equal(now) {
				t.Fatalf("modification time: want %v, got %v", now, fi.ModTime())
			}
		})
	}
}

func TestBuildCompileError(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{
		"dga.less": "@import \"missing\";\nbody { color: red; }\n",
	})
	writeFile(t, c.CSSPath(), "old")

	err := Build(context.Background(), c)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("want ErrCompile, got %v", err)
	}
	var lerr *less.Error
	if !errors.As(err, &lerr) {
		t.Fatalf("want *less.Error in chain, got %v", err)
	}
	testutil.AssertEqual(t, lerr.File, "dga.less")
	testutil.AssertEqual(t, lerr.Line, 1)
	testutil.AssertEqual(t, err.Error(), "compilation failed: dga.less:1:9: 'missing.less' wasn't found")

	// Previous output is left alone.
	testutil.AssertEqual(t, readFile(t, c.CSSPath()), "old")
}

func TestBuildMissingEntry(t *testing.T) {
	c := newTestConfig(t, env.Dev, nil)
	err := Build(context.Background(), c)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("want ErrIO, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want fs.ErrNotExist in chain, got %v", err)
	}
	assertNotExist(t, c.AssetsDir)
}

func TestBuildUnknownMode(t *testing.T) {
	c := newTestConfig(t, env.Mode("staging"), map[string]string{"dga.less": simpleLess})
	if err := Build(context.Background(), c); err == nil {
		t.Fatal("want error, got nil")
	}
	assertNotExist(t, c.AssetsDir)
}

func TestBuildCanceled(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{"dga.less": simpleLess})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Build(ctx, c); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	assertNotExist(t, c.AssetsDir)
}

func TestBuildLeavesNoTempFiles(t *testing.T) {
	c := newTestConfig(t, env.Dev, map[string]string{"dga.less": simpleLess})
	if err := Build(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(c.AssetsDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	testutil.AssertEqual(t, strings.Join(names, " "), "dga.css dga.css.map")
}

func TestConfigDefaults(t *testing.T) {
	c := &Config{}
	c.setDefaults()
	testutil.AssertEqual(t, c.ThemeDir, filepath.Join("ckanext", "datagovau", "theme"))
	testutil.AssertEqual(t, c.AssetsDir, filepath.Join("ckanext", "datagovau", "assets"))
	testutil.AssertEqual(t, c.Entry, "dga.less")
	testutil.AssertEqual(t, c.Mode, env.Prod)
	testutil.AssertEqual(t, c.CSSPath(), filepath.Join("ckanext", "datagovau", "assets", "dga.css"))
	testutil.AssertEqual(t, c.MapPath(), filepath.Join("ckanext", "datagovau", "assets", "dga.css.map"))
	testutil.AssertEqual(t, sourceMapRoot(c.AssetsDir, c.ThemeDir), "../theme")
}

func TestBuildUnwritableAssetsDir(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{"dga.less": simpleLess})
	writeFile(t, c.AssetsDir, "not a directory")
	if err := Build(context.Background(), c); !errors.Is(err, ErrIO) {
		t.Fatalf("want ErrIO, got %v", err)
	}
}

func TestBuildFailedWrite(t *testing.T) {
	for _, mode := range []env.Mode{env.Dev, env.Prod} {
		t.Run(string(mode), func(t *testing.T) {
			c := newTestConfig(t, mode, map[string]string{"dga.less": simpleLess})
			// A directory can't be replaced by the stylesheet.
			writeFile(t, filepath.Join(c.CSSPath(), "keep"), "")
			if mode == env.Prod {
				writeFile(t, c.MapPath(), "stale")
			}

			if err := Build(context.Background(), c); !errors.Is(err, ErrIO) {
				t.Fatalf("want ErrIO, got %v", err)
			}

			entries, err := os.ReadDir(c.AssetsDir)
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			if mode == env.Dev {
				testutil.AssertEqual(t, strings.Join(names, " "), "dga.css")
				return
			}
			// The source map of the previous build stays until the new
			// stylesheet is in place.
			testutil.AssertEqual(t, strings.Join(names, " "), "dga.css dga.css.map")
			testutil.AssertEqual(t, readFile(t, c.MapPath()), "stale")
		})
	}
}

func TestBuildProdSmallerThanDev(t *testing.T) {
	const src = `@primary: #336699;
.button {
  color: @primary;
  padding: 0px 10px;
  &:hover { color: darken(@primary, 10%); }
}
`
	sizes := make(map[env.Mode]int)
	for _, mode := range []env.Mode{env.Dev, env.Prod} {
		c := newTestConfig(t, mode, map[string]string{"dga.less": src})
		if err := Build(context.Background(), c); err != nil {
			t.Fatal(err)
		}
		sizes[mode] = len(readFile(t, c.CSSPath()))
	}
	if sizes[env.Prod] >= sizes[env.Dev] {
		t.Fatalf("production CSS (%d bytes) isn't smaller than development CSS (%d bytes)", sizes[env.Prod], sizes[env.Dev])
	}
}

func TestBuildImports(t *testing.T) {
	c := newTestConfig(t, env.Prod, map[string]string{
		"dga.less":             "@import \"partials/colors\";\nbody { color: @variable; }\n",
		"partials/colors.less": "@variable: #fff;\n",
	})
	r, err := build(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, strings.Join(r.imports, " "), "partials/colors.less")
}

func TestMin(t *testing.T) {
	got, err := newMin().Bytes("text/css", []byte("a {\n  color: #ffffff;\n  margin: 0px;\n}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(got, []byte("\n")) || !strings.HasPrefix(string(got), "a{") {
		t.Fatalf("want minified CSS, got %q", got)
	}
}

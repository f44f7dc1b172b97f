// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Addcopyright adds copyright header to each Go file under internal.
package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/datagovau/ckanext-datagovau/internal/devtools"
)

const (
	header = "// ©"
	tmpl   = `// © %d The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

`
)

// skipDirs are never descended into: test inputs are compared byte for
// byte.
var skipDirs = []string{"testdata", "_examples"}

func main() {
	log.SetFlags(0)
	devtools.EnsureRoot()

	if err := filepath.WalkDir("internal", visit); err != nil {
		log.Fatal(err)
	}
}

func visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() {
		for _, dir := range skipDirs {
			if d.Name() == dir {
				return filepath.SkipDir
			}
		}
		return nil
	}
	if !strings.HasSuffix(path, ".go") {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	updated, ok := addHeader(content, info.ModTime().Year())
	if !ok {
		return nil
	}
	log.Printf("Adding copyright header to %s.", path)
	return os.WriteFile(path, updated, info.Mode().Perm())
}

// addHeader prepends the copyright header for year to content, unless it
// already has one.
func addHeader(content []byte, year int) ([]byte, bool) {
	if bytes.HasPrefix(content, []byte(header)) {
		return content, false
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, tmpl, year)
	buf.Write(content)
	return buf.Bytes(), true
}

// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/base/testutil"
)

func TestAddHeader(t *testing.T) {
	got, ok := addHeader([]byte("package foo\n"), 2026)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, string(got), `// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package foo
`)

	again, ok := addHeader(got, 2030)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, string(again), string(got))
}

// The header points at LICENSE.md at the repository root, which must name
// the same license and copyright holder.
func TestLicenseFile(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "..", "..", "LICENSE.md"))
	if err != nil {
		t.Fatal(err)
	}
	license := string(b)
	for _, want := range []string{"ISC License", "The ckanext-datagovau Authors"} {
		if !strings.Contains(license, want) {
			t.Errorf("LICENSE.md doesn't mention %q", want)
		}
		if !strings.Contains(tmpl, strings.TrimSuffix(want, " License")) {
			t.Errorf("header template doesn't mention %q", want)
		}
	}
}

// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package devtools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datagovau/ckanext-datagovau/internal/env"

	"go.astrophena.name/base/testutil"
)

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	withDebug := filepath.Join(dir, "debug.env")
	if err := os.WriteFile(withDebug, []byte("# Local settings.\nDEBUG=1\nOTHER=x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.env")
	if err := os.WriteFile(empty, []byte("OTHER=x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct {
		env  map[string]string
		path string
		want env.Mode
	}{
		"process env":           {map[string]string{"DEBUG": "true"}, filepath.Join(dir, "missing.env"), env.Dev},
		"no dotenv file":        {nil, filepath.Join(dir, "missing.env"), env.Prod},
		"dotenv file":           {nil, withDebug, env.Dev},
		"dotenv without DEBUG":  {nil, empty, env.Prod},
		"process env wins":      {map[string]string{"DEBUG": "1"}, empty, env.Dev},
		"empty process env var": {map[string]string{"DEBUG": ""}, withDebug, env.Prod},
		"other process env var": {map[string]string{"OTHER": ""}, withDebug, env.Dev},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			lookupEnv := func(key string) (string, bool) {
				v, ok := tc.env[key]
				return v, ok
			}
			getenv := lookup(context.Background(), lookupEnv, tc.path)
			testutil.AssertEqual(t, env.FromGetenv(getenv), tc.want)
		})
	}
}

// The production build in CI runs with DEBUG= to override a .env file.
func TestGetenvEmptyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DEBUG=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEBUG", "")
	testutil.AssertEqual(t, env.FromGetenv(Getenv(context.Background(), path)), env.Prod)

	os.Unsetenv("DEBUG")
	testutil.AssertEqual(t, env.FromGetenv(Getenv(context.Background(), path)), env.Dev)
}

func TestLookupSeesEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	getenv := lookup(context.Background(), func(string) (string, bool) { return "", false }, path)
	testutil.AssertEqual(t, env.FromGetenv(getenv), env.Prod)

	if err := os.WriteFile(path, []byte("DEBUG=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, env.FromGetenv(getenv), env.Dev)
}

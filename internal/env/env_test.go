// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package env

import (
	"testing"

	"go.astrophena.name/base/testutil"
)

func TestFromGetenv(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want Mode
	}{
		"unset":     {map[string]string{}, Prod},
		"empty":     {map[string]string{"DEBUG": ""}, Prod},
		"set":       {map[string]string{"DEBUG": "1"}, Dev},
		"false":     {map[string]string{"DEBUG": "false"}, Dev},
		"other var": {map[string]string{"DEBUGGING": "1"}, Prod},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := FromGetenv(func(key string) string { return tc.env[key] })
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestValid(t *testing.T) {
	testutil.AssertEqual(t, Dev.Valid(), true)
	testutil.AssertEqual(t, Prod.Valid(), true)
	testutil.AssertEqual(t, Mode("staging").Valid(), false)
}

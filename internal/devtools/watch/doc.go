// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Watch rebuilds the theme stylesheet on changes, for local development.

# Usage

	$ go tool watch

Watch performs an initial build, like the build tool, and then rebuilds
the stylesheet each time a .less file in ckanext/datagovau/theme changes.
The DEBUG environment variable is checked before each build. Failed builds
are reported and watching continues. Press Ctrl+C to stop.

Must be run from the repository root.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }

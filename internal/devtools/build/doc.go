// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Build compiles the theme stylesheet.

# Usage

	$ go tool build

Compiles ckanext/datagovau/theme/dga.less into
ckanext/datagovau/assets/dga.css. If the DEBUG environment variable is set
to a non-empty value, either in the environment or in the .env file, the
CSS is left unminified and a source map is written to
ckanext/datagovau/assets/dga.css.map. Otherwise the CSS is minified.

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

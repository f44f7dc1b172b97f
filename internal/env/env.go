// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package env contains definitions for the modes in which the theme assets
// can be built.
package env

// Mode is the mode in which the theme assets are built.
type Mode string

// Available modes.
const (
	// Dev produces readable CSS with a source map next to it.
	Dev = Mode("dev")
	// Prod produces minified CSS without a source map.
	Prod = Mode("prod")
)

// DebugVar is the environment variable that selects the development mode
// when set to a non-empty value.
const DebugVar = "DEBUG"

// FromGetenv resolves the mode using getenv, usually os.Getenv.
func FromGetenv(getenv func(string) string) Mode {
	if getenv(DebugVar) != "" {
		return Dev
	}
	return Prod
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == Dev || m == Prod
}

func (m Mode) String() string { return string(m) }

// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Pre-commit runs the checks that must pass before changes are committed.
//
// In CI it also rebuilds the production stylesheet and fails if the
// committed assets are out of date.
package main

import (
	"bytes"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/datagovau/ckanext-datagovau/internal/devtools"
)

var assetsDir = filepath.Join("ckanext", "datagovau", "assets")

func main() {
	log.SetFlags(0)
	devtools.EnsureRoot()

	isCI := os.Getenv("CI") == "true"

	var w bytes.Buffer

	run(&w, nil, "gofmt", "-l", "internal")
	if files := w.String(); files != "" {
		log.Fatalf("Run gofmt on these files:\n%v", files)
	}

	run(&w, nil, "go", "tool", "staticcheck", "./...")

	if isCI {
		run(&w, nil, "go", "test", "-race", "./...")
	} else {
		run(&w, nil, "go", "test", "./...")
	}

	run(&w, nil, "go", "mod", "tidy", "--diff")

	run(&w, nil, "go", "tool", "addcopyright")
	if isCI {
		// Committed CSS is always the production build.
		run(&w, []string{"DEBUG="}, "go", "tool", "build")
		run(&w, nil, "git", "diff", "--exit-code", "--", assetsDir)
	}
}

func run(buf *bytes.Buffer, env []string, cmd string, args ...string) {
	buf.Reset()
	c := exec.Command(cmd, args...)
	c.Env = append(os.Environ(), env...)
	c.Stdout = buf
	c.Stderr = buf
	if err := c.Run(); err != nil {
		log.Fatalf("%s failed: %v:\n%v", cmd, err, buf.String())
	}
}

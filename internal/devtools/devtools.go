// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package devtools contains common functionality for development tools.
package devtools

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/datagovau/ckanext-datagovau/internal/env"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/base/unwrap"

	"github.com/joho/godotenv"
)

// ThemeDir is the directory with the theme sources, relative to the
// repository root.
var ThemeDir = filepath.Join("ckanext", "datagovau", "theme")

// EnsureRoot checks that the current working directory is at the repository
// root and panics if it doesn't.
func EnsureRoot() {
	wd := unwrap.Value(os.Getwd())
	for _, p := range []string{".git", ThemeDir} {
		if _, err := os.Stat(filepath.Join(wd, p)); os.IsNotExist(err) {
			panic("Are you at repo root?")
		} else if err != nil {
			panic(err)
		}
	}
}

// DotEnv is the file consulted for variables missing from the process
// environment.
const DotEnv = ".env"

// Mode returns the build mode selected by the environment of the running
// tool. If DEBUG isn't set there, it's looked up in the .env file in the
// current directory. DEBUG set to an empty value selects the production
// mode regardless of the .env file.
func Mode(ctx context.Context) env.Mode {
	return env.FromGetenv(Getenv(ctx, DotEnv))
}

// Getenv returns a function that looks up variables in the process
// environment and then, for variables that aren't set at all, in the dotenv
// file at path. The file is read on each lookup, so edits made while a tool
// runs are picked up.
func Getenv(ctx context.Context, path string) func(string) string {
	return lookup(ctx, os.LookupEnv, path)
}

func lookup(ctx context.Context, lookupEnv func(string) (string, bool), path string) func(string) string {
	return func(key string) string {
		if v, ok := lookupEnv(key); ok {
			return v
		}
		vars, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			return ""
		} else if err != nil {
			logger.Error(ctx, "failed to read dotenv file", slog.String("path", path), slog.Any("err", err))
			return ""
		}
		return vars[key]
	}
}

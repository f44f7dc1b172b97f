// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"

	"github.com/datagovau/ckanext-datagovau/internal/devtools"
	"github.com/datagovau/ckanext-datagovau/internal/env"
	"github.com/datagovau/ckanext-datagovau/internal/theme"

	"go.astrophena.name/base/cli"
)

func main() { cli.Main(cli.AppFunc(run)) }

func run(ctx context.Context) error {
	if args := cli.GetEnv(ctx).Args; len(args) > 0 {
		return fmt.Errorf("%w: watch takes no arguments", cli.ErrInvalidArgs)
	}
	devtools.EnsureRoot()

	return theme.Watch(ctx, &theme.Config{
		ModeFunc: func() env.Mode { return devtools.Mode(ctx) },
	})
}

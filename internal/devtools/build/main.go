// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/datagovau/ckanext-datagovau/internal/devtools"
	"github.com/datagovau/ckanext-datagovau/internal/theme"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"
)

func main() { cli.Main(cli.AppFunc(run)) }

func run(ctx context.Context) error {
	if args := cli.GetEnv(ctx).Args; len(args) > 0 {
		return fmt.Errorf("%w: build takes no arguments", cli.ErrInvalidArgs)
	}
	devtools.EnsureRoot()

	c := &theme.Config{Mode: devtools.Mode(ctx)}
	if err := theme.Build(ctx, c); err != nil {
		return err
	}
	logger.Info(ctx, "built theme assets",
		slog.String("mode", c.Mode.String()),
		slog.String("css", c.CSSPath()),
	)
	return nil
}

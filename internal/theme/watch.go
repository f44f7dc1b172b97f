// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package theme

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

var buildDoneHook func(err error) // used in tests, called after each build made by Watch

// debounceDelay is how long Watch waits for the changes to settle down
// before starting a build.
const debounceDelay = 250 * time.Millisecond

// Watch builds the theme stylesheet and then rebuilds it each time a LESS
// file in the theme directory changes, until ctx is canceled. Directories
// of imported files are watched too, as soon as a build finds them.
//
// Failed builds are logged and don't stop watching. Changes made while a
// build is running result in exactly one more build after it finishes.
func Watch(ctx context.Context, c *Config) error {
	c.setDefaults()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(c.ThemeDir); err != nil {
		return fmt.Errorf("%w: watching %s: %w", ErrIO, c.ThemeDir, err)
	}

	queue := make(pending, 1)
	debouncer := newDebouncer(debounceDelay, queue.request)
	defer debouncer.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watched := map[string]bool{filepath.Clean(c.ThemeDir): true}
		runBuild := func() {
			imports, err := rebuild(ctx, c)
			watchImports(ctx, watcher, c, imports, watched)
			if buildDoneHook != nil {
				buildDoneHook(err)
			}
		}

		logger.Info(ctx, "performing an initial build")
		runBuild()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-queue:
				logger.Info(ctx, "triggering build")
				runBuild()
			}
		}
	})

	g.Go(func() error {
		logger.Info(ctx, "started watching for new changes", slog.String("dir", c.ThemeDir))
		for {
			select {
			case <-ctx.Done():
				logger.Info(ctx, "gracefully shutting down")
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !shouldRebuild(event.Name, event.Op) {
					continue
				}
				logger.Info(ctx, "detected change, scheduling build",
					slog.String("name", event.Name),
					slog.Any("op", event.Op),
				)
				debouncer.Do()
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Error(ctx, "watcher failed", slog.Any("err", err))
			}
		}
	})

	return g.Wait()
}

// rebuild runs a build, logs the outcome and returns the files imported by
// the entry stylesheet.
func rebuild(ctx context.Context, c *Config) (imports []string, err error) {
	start := time.Now()
	r, err := build(ctx, c)
	switch {
	case err != nil && ctx.Err() != nil:
		// Interrupted by shutdown.
	case err != nil:
		logger.Error(ctx, "build failed", slog.Any("err", err))
	default:
		logger.Info(ctx, "build finished",
			slog.String("css", c.CSSPath()),
			slog.Int("imports", len(r.imports)),
			slog.Duration("took", time.Since(start)),
		)
		imports = r.imports
	}
	return imports, err
}

// watchImports adds the directories of imports that aren't watched yet to
// watcher.
func watchImports(ctx context.Context, watcher *fsnotify.Watcher, c *Config, imports []string, watched map[string]bool) {
	for _, imp := range imports {
		dir := filepath.Dir(filepath.Join(c.ThemeDir, filepath.FromSlash(imp)))
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.Error(ctx, "failed to watch imported files", slog.String("dir", dir), slog.Any("err", err))
			continue
		}
		watched[dir] = true
		logger.Info(ctx, "started watching for new changes", slog.String("dir", dir))
	}
}

// pending is a queue of build requests that holds at most one request.
// Requests made while one is already queued are merged into it.
type pending chan struct{}

func (p pending) request() {
	select {
	case p <- struct{}{}:
	default:
	}
}

// debouncer delays execution of a function until a specified duration has
// passed without any new events.
type debouncer struct {
	d  time.Duration
	mu sync.Mutex
	f  func()
	t  *time.Timer
}

func newDebouncer(d time.Duration, f func()) *debouncer {
	return &debouncer{
		d: d,
		f: f,
	}
}

// Do schedules a function to be executed.
func (d *debouncer) Do() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}

	d.t = time.AfterFunc(d.d, d.f)
}

// Stop cancels a scheduled execution, if any.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
}

// shouldRebuild reports whether a change to path should trigger a build.
//
// Based on
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRebuild(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Finder metadata and the file Vim creates to check that a directory is
	// writable.
	if base == ".DS_Store" || base == "4913" {
		return false
	}
	// Vim backups.
	if strings.HasSuffix(base, "~") {
		return false
	}
	if filepath.Ext(base) != ".less" {
		return false
	}

	// A file renamed away is gone for the build. Chmod doesn't change the
	// output.
	return op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
}

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/utils"
)

// settle absorbs the burst of events an editor produces for a single save.
const settle = 150 * time.Millisecond

// watch regenerates the output whenever input or one of the files it
// includes changes, until ctx is done. The parent directories are watched,
// not the files themselves.
func watch(ctx context.Context, out io.Writer, input string, cfg config.Config, opts *options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	files := map[string]bool{}
	dirs := map[string]bool{}
	rebuild := func() {
		u, err := generate(ctx, out, input, cfg, opts)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
		}
		watched, err := sourceFiles(input, u)
		if err != nil {
			zap.L().Warn("cannot resolve watched files", zap.Error(err))
			return
		}
		files = watched
		for f := range files {
			dir := filepath.Dir(f)
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				zap.L().Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
				continue
			}
			dirs[dir] = true
		}
	}

	rebuild()
	zap.L().Info("watching for changes", zap.Int("files", len(files)))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			zap.L().Debug("source changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch error", zap.Error(err))
		}
	}
}

// sourceFiles returns the absolute paths of input and every file it
// included on the last run. u may be nil when the run failed before
// preprocessing finished.
func sourceFiles(input string, u *analyze.Unit) (map[string]bool, error) {
	abs, root, _, err := utils.GetPathInfo(input)
	if err != nil {
		return nil, err
	}
	files := map[string]bool{abs: true}
	if u == nil || u.Source == nil {
		return files, nil
	}
	for _, name := range u.Source.Includes {
		files[utils.HostPath(root, name)] = true
	}
	return files, nil
}

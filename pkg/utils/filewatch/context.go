package filewatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type config struct {
	recursive  bool
	extensions []string
	excludes   []string
}

type Option func(*config) *config

// Recursive makes watchers descend into subdirectories of watched directories.
//
// Hidden directories (".git" and so on) are not watched.
func Recursive() Option {
	return func(c *config) *config {
		c.recursive = true
		return c
	}
}

// WithExtensions limits events to files which have one of extensions (like ".go").
//
// Events on directories themselves are always reported.
func WithExtensions(ext ...string) Option {
	return func(c *config) *config {
		c.extensions = append(c.extensions, ext...)
		return c
	}
}

// Excluding ignores events in the directories, and does not descend into them.
func Excluding(dir ...string) Option {
	return func(c *config) *config {
		for _, d := range dir {
			if abs, err := filepath.Abs(d); err == nil {
				c.excludes = append(c.excludes, abs)
			}
		}
		return c
	}
}

// UntilModifyContext returns a context that is canceled
// when one of target files is modified (= written, created, removed, renamed or chmod-ed).
//
// # Args
//
// - ctx: context.Context
//
// - targetFilePath []string: file or directory pathes to be watched.
// When any of them is modified, the context is canceled.
// context.Cause of the context tells which file is modified.
//
// - options ...Option
//
// # Returns
//
// - context.Context: context that is canceled when one of target files is modified.
//
// - func(): cancel function.
//
// - error: error caused when it fails to start watching files.
//
// If error is not nil, both of the the context and the cancel function are nil.
func UntilModifyContext(ctx context.Context, targetFilePath []string, options ...Option) (context.Context, func(), error) {
	conf := &config{}
	for _, o := range options {
		conf = o(conf)
	}

	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	targets, err := conf.expand(targetFilePath)
	if err != nil {
		w.Close()
		cancel(err)
		return nil, nil, err
	}
	for _, f := range targets {
		if err := w.Add(f); err != nil {
			w.Close()
			cancel(err)
			return nil, nil, err
		}
	}

	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !conf.interested(event.Name) {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files: %w", err))
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}

func (c *config) excluded(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, ex := range c.excludes {
		if abs == ex || strings.HasPrefix(abs, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (c *config) interested(name string) bool {
	if c.excluded(name) {
		return false
	}
	if len(c.extensions) == 0 {
		return true
	}
	if slices.Contains(c.extensions, filepath.Ext(name)) {
		return true
	}
	// removed or renamed directories cannot be stat-ed. treat them as files.
	if fi, err := os.Stat(name); err == nil && fi.IsDir() {
		return true
	}
	return false
}

func (c *config) expand(targets []string) ([]string, error) {
	if !c.recursive {
		return targets, nil
	}

	found := []string{}
	for _, t := range targets {
		fi, err := os.Stat(t)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			found = append(found, t)
			continue
		}
		if err := filepath.WalkDir(t, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != t && (strings.HasPrefix(d.Name(), ".") || c.excluded(path)) {
				return filepath.SkipDir
			}
			found = append(found, path)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return found, nil
}

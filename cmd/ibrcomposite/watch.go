package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mrjoshuak/go-ibr/ibrstore"
)

// Kinds of watched file.
const (
	watchConfig   = "config"
	watchLUT      = "lut"
	watchManifest = "manifest"
)

// watchTargets maps the absolute path of every file that affects the frame
// to its kind.
func watchTargets(configPath string, cfg *Config) (map[string]string, error) {
	paths := map[string]string{
		filepath.Join(cfg.Store, ibrstore.ManifestName): watchManifest,
	}
	if configPath != "" {
		paths[configPath] = watchConfig
	}
	if cfg.LUT != "" {
		paths[cfg.LUT] = watchLUT
	}

	targets := make(map[string]string, len(paths))
	for p, kind := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		targets[abs] = kind
	}
	return targets, nil
}

// reload applies a change of the given kind and renders a new frame.
// load rebuilds the config when the config file itself changed. Nothing is
// replaced unless the new store and lookup table open cleanly.
func (r *renderer) reload(ctx context.Context, kind string, load func() (*Config, error)) error {
	cfg := r.cfg
	switch kind {
	case watchConfig:
		next, err := load()
		if err != nil {
			return err
		}
		cfg = next
		fallthrough
	case watchManifest:
		store, lut, err := r.open(cfg)
		if err != nil {
			return err
		}
		r.cfg, r.store, r.lut = cfg, store, lut
	case watchLUT:
		lut, err := r.openLUT(cfg)
		if err != nil {
			return err
		}
		r.lut = lut
	}
	return r.render(ctx)
}

// watch re-renders whenever the config, the LUT file or the store manifest
// changes, until ctx is done. Errors are logged and watching continues.
//
// Directories are watched rather than files because editors often replace
// a file instead of writing it.
func watch(ctx context.Context, r *renderer, configPath string, load func() (*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	targets, err := watchTargets(configPath, r.cfg)
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for p := range targets {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}
	r.logger.Info("watching for changes", "files", len(targets))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			kind, ok := targets[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			r.logger.Debug("file changed", "file", event.Name, "kind", kind, "op", event.Op.String())
			if err := r.reload(ctx, kind, load); err != nil {
				r.logger.Error("re-render failed", "kind", kind, "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watch error", "err", err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/transform"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/mrjoshuak/go-ibr/ibrstore"
)

// renderer produces frames from a config. Watch mode swaps its store and
// lookup table when the files behind them change.
type renderer struct {
	cfg    *Config
	store  *ibrstore.FileStore
	lut    *ibr.LookupTable
	logger *slog.Logger
}

func newRenderer(cfg *Config, logger *slog.Logger) (*renderer, error) {
	r := &renderer{logger: logger}
	store, lut, err := r.open(cfg)
	if err != nil {
		return nil, err
	}
	r.cfg, r.store, r.lut = cfg, store, lut
	return r, nil
}

// open builds the store and lookup table cfg describes. The renderer is
// not modified, so a failed reload leaves the previous state in place.
func (r *renderer) open(cfg *Config) (*ibrstore.FileStore, *ibr.LookupTable, error) {
	if cfg.Store == "" {
		return nil, nil, fmt.Errorf("no store directory given")
	}
	store, err := ibrstore.OpenFileStore(cfg.Store, ibrstore.WithLogger(r.logger))
	if err != nil {
		return nil, nil, err
	}
	lut, err := r.openLUT(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, lut, nil
}

// openLUT imports the configured LUT file, if any, over the built-in
// tables and selects the configured colormap. An unknown colormap selects
// the identity table.
func (r *renderer) openLUT(cfg *Config) (*ibr.LookupTable, error) {
	lut := ibr.NewBuiltinLookupTable()
	if cfg.LUT != "" {
		if err := lut.ReadFile(cfg.LUT); err != nil {
			return nil, err
		}
		r.logger.Debug("loaded lookup tables", "file", cfg.LUT, "tables", len(lut.Names()))
	}
	if _, ok := lut.Entry(cfg.Colormap); !ok {
		r.logger.Warn("unknown colormap, using identity",
			"colormap", cfg.Colormap, "available", strings.Join(lut.Names(), ","))
	}
	lut.Select(cfg.Colormap)
	return lut, nil
}

// render composites one frame and writes it to the configured output.
func (r *renderer) render(ctx context.Context) error {
	start := time.Now()

	frame, err := r.frame(ctx)
	if err != nil {
		return err
	}
	if err := ibrstore.Encode(r.cfg.Out, frame); err != nil {
		return err
	}
	r.logger.Info("wrote frame", "out", r.cfg.Out,
		"size", frame.Bounds().Size().String(), "elapsed", time.Since(start))
	return nil
}

func (r *renderer) frame(ctx context.Context) (image.Image, error) {
	layers, err := r.cfg.buildLayers(r.store)
	if err != nil {
		return nil, err
	}
	for i, l := range layers {
		if err := l.LoadImages(ctx, r.store); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		r.logger.Debug("loaded layer", "layer", i, "query", l.BaseQuery().String())
	}

	bg, err := r.cfg.backgroundColor()
	if err != nil {
		return nil, err
	}
	c := ibr.NewCompositor()
	c.SetLookupTable(r.lut)
	c.SetBackgroundColor(bg)

	out, err := c.Render(layers, r.cfg.Depth)
	if err != nil {
		return nil, err
	}
	return scale(out, r.cfg.Scale), nil
}

// scale resizes img to the given width, keeping its aspect ratio. A
// non-positive width leaves img unchanged.
func scale(img *ibr.RGBImage, width int) image.Image {
	size := img.Bounds().Size()
	if width <= 0 || width == size.X || size.X == 0 {
		return img
	}
	height := max(1, (size.Y*width+size.X/2)/size.X)
	return transform.Resize(img, width, height, transform.Linear)
}

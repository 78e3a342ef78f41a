// ibrcomposite renders one frame from an image-based-rendering store.
//
// Usage:
//
//	ibrcomposite [options]
//
// Options:
//
//	-store DIR      store directory holding store.toml
//	-config FILE    TOML render config (layers, query, colormap)
//	-out FILE       output image, format from extension (default frame.png)
//	-lut FILE       JSON or YAML lookup table file to import
//	-colormap NAME  lookup table used to recolor value layers
//	-bg R,G,B       background color
//	-depth          composite layers with the depth test
//	-scale W        resize the frame to width W
//	-watch          re-render when the config, LUT file or manifest changes
//	-v              verbose output
//
// Flags override the values of the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
)

const version = "1.0.0"

func main() {
	fs := flag.NewFlagSet("ibrcomposite", flag.ExitOnError)
	var (
		storeDir    = fs.String("store", "", "store directory holding store.toml")
		configPath  = fs.String("config", "", "TOML render config")
		out         = fs.String("out", "", "output image (default frame.png)")
		lutPath     = fs.String("lut", "", "lookup table file to import")
		colormap    = fs.String("colormap", "", "lookup table used to recolor value layers")
		bg          = fs.String("bg", "", "background color as R,G,B")
		depth       = fs.Bool("depth", false, "composite layers with the depth test")
		width       = fs.Int("scale", 0, "resize the frame to this width")
		watchFiles  = fs.Bool("watch", false, "re-render on file changes")
		verbose     = fs.Bool("v", false, "verbose output")
		showVersion = fs.Bool("version", false, "show version information")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ibrcomposite [options]\n\n")
		fmt.Fprintf(os.Stderr, "Composite the layers of an image-based-rendering store into one frame.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ibrcomposite version %s\n", version)
		os.Exit(0)
	}
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Only flags given on the command line override the config file.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	load := func() (*Config, error) {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		if set["store"] {
			cfg.Store = *storeDir
		}
		if set["out"] {
			cfg.Out = *out
		}
		if set["lut"] {
			cfg.LUT = *lutPath
		}
		if set["colormap"] {
			cfg.Colormap = *colormap
		}
		if set["bg"] {
			if cfg.Background, err = parseRGB(*bg); err != nil {
				return nil, err
			}
		}
		if set["depth"] {
			cfg.Depth = *depth
		}
		if set["scale"] {
			cfg.Scale = *width
		}
		return cfg, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, load, *configPath, *watchFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, load func() (*Config, error), configPath string, watchFiles bool) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	r, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	if err := r.render(ctx); err != nil {
		if !watchFiles {
			return err
		}
		logger.Error("render failed", "err", err)
	}
	if watchFiles {
		return watch(ctx, r, configPath, load)
	}
	return nil
}

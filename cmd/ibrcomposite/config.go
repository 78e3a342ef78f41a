package main

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mrjoshuak/go-ibr/ibr"
)

// Config is a render description. It is read from TOML:
//
//	store = "cinema"
//	out = "frame.png"
//	colormap = "Spectral"
//	depth = true
//	background = [155, 155, 170]
//
//	[query]
//	time = "0"
//	phi = "30"
//
//	[[layer]]
//	query = { layer = "contour" }
//	fields = [
//	  { name = "field", choice = "temperature", type = "VALUE" },
//	  { name = "field", choice = "depth" },
//	]
type Config struct {
	Store      string            `toml:"store"`
	Out        string            `toml:"out"`
	LUT        string            `toml:"lut"`
	Colormap   string            `toml:"colormap"`
	Background []int             `toml:"background"`
	Depth      bool              `toml:"depth"`
	Scale      int               `toml:"scale"`
	Query      map[string]string `toml:"query"`
	Layers     []LayerConfig     `toml:"layer"`
}

// LayerConfig describes one layer. Its query is merged over the shared one.
type LayerConfig struct {
	Query  map[string]string `toml:"query"`
	Fields []FieldConfig     `toml:"fields"`
}

// FieldConfig selects one image of a layer. An empty Type lets the store
// classify the field.
type FieldConfig struct {
	Type   string `toml:"type"`
	Name   string `toml:"name"`
	Choice string `toml:"choice"`
}

func defaultConfig() *Config {
	return &Config{Out: "frame.png", Colormap: ibr.IdentityTable}
}

// loadConfig reads a TOML config over the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// backgroundColor returns the configured background or the default.
func (c *Config) backgroundColor() (color.RGBA, error) {
	if len(c.Background) == 0 {
		return ibr.DefaultBackground, nil
	}
	if len(c.Background) != 3 {
		return color.RGBA{}, fmt.Errorf("background needs 3 components, got %d", len(c.Background))
	}
	var ch [3]uint8
	for i, v := range c.Background {
		if v < 0 || v > 255 {
			return color.RGBA{}, fmt.Errorf("background component %d out of range: %d", i, v)
		}
		ch[i] = uint8(v)
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 0xff}, nil
}

// parseRGB parses "R,G,B" into background components.
func parseRGB(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid color %q: want R,G,B", s)
	}
	out := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

// buildLayers turns the config into unloaded layers. Without [[layer]]
// tables the shared query alone forms a single layer.
func (c *Config) buildLayers(store ibr.Store) ([]*ibr.LayerSpec, error) {
	base := ibr.NewLayerSpec()
	base.AddToBaseQuery(c.Query)
	if len(c.Layers) == 0 {
		return []*ibr.LayerSpec{base}, nil
	}

	layers := make([]*ibr.LayerSpec, 0, len(c.Layers))
	for i, lc := range c.Layers {
		l := base.Clone()
		l.AddToBaseQuery(lc.Query)
		for _, f := range lc.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("layer %d: field without name", i)
			}
			t := store.DetermineType(f.Name, f.Choice)
			if f.Type != "" {
				var err error
				if t, err = ibr.ParseImageType(f.Type); err != nil {
					return nil, fmt.Errorf("layer %d: %w", i, err)
				}
			}
			l.AddQuery(t, f.Name, f.Choice)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

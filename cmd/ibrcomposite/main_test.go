package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/mrjoshuak/go-ibr/ibrstore"
)

const testConfig = `
depth = true
colormap = "BW"
background = [1, 2, 3]

[query]
time = "0"

[[layer]]
query = { layer = "a" }
fields = [
  { name = "field", choice = "value", type = "value" },
  { name = "field", choice = "depth" },
]

[[layer]]
query = { layer = "b" }
fields = [
  { name = "field", choice = "rgb" },
  { name = "field", choice = "depth" },
]
`

const testLUT = `[{"Name": "BW", "ColorSpace": "RGB", "RGBPoints": [0, 0, 0, 0, 1, 1, 1, 1]}]`

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, ibrstore.Encode(path, img))
}

func solid(w, h int, c color.RGBA) *ibr.RGBImage {
	img := ibr.NewRGBImage(image.Rect(0, 0, w, h))
	img.Fill(c)
	return img
}

// newTestStore builds a two-layer store. Through the BW table layer a maps
// to black and layer b to white; untouched, layer b is white too.
func newTestStore(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ibrstore.ManifestName), `
pattern = "{time}/{layer}/{field}"

[types.field]
depth = "Z"
`)
	writeImage(t, filepath.Join(dir, "0", "a", "value.png"), solid(4, 2, color.RGBA{B: 1}))
	writeImage(t, filepath.Join(dir, "0", "a", "depth.npy"), ibr.DepthFromValues(4, 2, []float64{5, 5, 5, 5, 300, 300, 300, 300}))
	writeImage(t, filepath.Join(dir, "0", "b", "rgb.png"), solid(4, 2, color.RGBA{R: 255, G: 255, B: 255}))
	writeImage(t, filepath.Join(dir, "0", "b", "depth.npy"), ibr.DepthFromValues(4, 2, []float64{9, 1, 9, 1, 400, 400, 400, 400}))
	return dir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	writeFile(t, path, testConfig)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Depth)
	require.Equal(t, "BW", cfg.Colormap)
	require.Equal(t, "frame.png", cfg.Out)
	require.Equal(t, map[string]string{"time": "0"}, cfg.Query)
	require.Len(t, cfg.Layers, 2)
	require.Equal(t, FieldConfig{Type: "value", Name: "field", Choice: "value"}, cfg.Layers[0].Fields[0])

	bg, err := cfg.backgroundColor()
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 0xff}, bg)
}

func TestLoadConfigErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	writeFile(t, path, "colour = \"red\"\n")
	_, err := loadConfig(path)
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestBackground(t *testing.T) {
	bg, err := (&Config{}).backgroundColor()
	require.NoError(t, err)
	require.Equal(t, ibr.DefaultBackground, bg)

	_, err = (&Config{Background: []int{1, 2}}).backgroundColor()
	require.Error(t, err)
	_, err = (&Config{Background: []int{1, 2, 256}}).backgroundColor()
	require.Error(t, err)

	rgb, err := parseRGB("10, 20,30")
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30}, rgb)
	_, err = parseRGB("10,20")
	require.Error(t, err)
	_, err = parseRGB("a,b,c")
	require.Error(t, err)
}

func TestBuildLayers(t *testing.T) {
	store := ibrstore.NewMemStore()
	store.SetType("field", "depth", ibr.ImageDepth)
	store.Add(ibr.Query{"time": "0", "field": "depth"}, ibr.DepthFromValues(1, 1, []float64{1}))
	store.Add(ibr.Query{"time": "0", "field": "temp"}, solid(1, 1, color.RGBA{}))

	cfg := &Config{
		Query: map[string]string{"time": "0"},
		Layers: []LayerConfig{{
			Fields: []FieldConfig{{Name: "field", Choice: "depth"}, {Name: "field", Choice: "temp", Type: "VALUE"}},
		}},
	}
	layers, err := cfg.buildLayers(store)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.NoError(t, layers[0].LoadImages(context.Background(), store))
	_, ok := layers[0].Depth()
	require.True(t, ok)
	require.Len(t, layers[0].Colors(), 1)

	single, err := (&Config{Query: map[string]string{"time": "0"}}).buildLayers(store)
	require.NoError(t, err)
	require.Len(t, single, 1)
	require.False(t, single[0].HasFieldQueries())
	require.Equal(t, ibr.Query{"time": "0"}, single[0].BaseQuery())

	_, err = (&Config{Layers: []LayerConfig{{Fields: []FieldConfig{{Choice: "x"}}}}}).buildLayers(store)
	require.Error(t, err)
	_, err = (&Config{Layers: []LayerConfig{{Fields: []FieldConfig{{Name: "f", Type: "alpha"}}}}}).buildLayers(store)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := newTestStore(t)
	lutPath := filepath.Join(dir, "bw.json")
	writeFile(t, lutPath, testLUT)
	configPath := filepath.Join(dir, "render.toml")
	writeFile(t, configPath, testConfig)

	cfg, err := loadConfig(configPath)
	require.NoError(t, err)
	cfg.Store = dir
	cfg.LUT = lutPath
	cfg.Out = filepath.Join(t.TempDir(), "frame.png")

	r, err := newRenderer(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, r.render(context.Background()))

	img, err := ibrstore.Decode(cfg.Out)
	require.NoError(t, err)
	frame := ibr.ToRGBImage(img)

	black := color.RGBA{A: 0xff}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 0xff}
	bg := color.RGBA{R: 1, G: 2, B: 3, A: 0xff}
	for x, want := range []color.RGBA{black, white, black, white} {
		require.Equal(t, want, frame.At(x, 0), "row 0, column %d", x)
		require.Equal(t, bg, frame.At(x, 1), "row 1, column %d", x)
	}
}

func TestRenderScaled(t *testing.T) {
	dir := newTestStore(t)
	cfg := defaultConfig()
	cfg.Store = dir
	cfg.Query = map[string]string{"time": "0", "layer": "b", "field": "rgb"}
	cfg.Scale = 8
	cfg.Out = filepath.Join(t.TempDir(), "frame.bmp")

	r, err := newRenderer(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, r.render(context.Background()))

	img, err := ibrstore.Decode(cfg.Out)
	require.NoError(t, err)
	require.Equal(t, image.Pt(8, 4), img.Bounds().Size())
	cr, cg, cb, _ := img.At(3, 2).RGBA()
	require.InDelta(t, 255, cr>>8, 1)
	require.InDelta(t, 255, cg>>8, 1)
	require.InDelta(t, 255, cb>>8, 1)
}

func TestRendererErrors(t *testing.T) {
	_, err := newRenderer(defaultConfig(), testLogger())
	require.Error(t, err)

	cfg := defaultConfig()
	cfg.Store = newTestStore(t)
	cfg.Colormap = "Spectral"
	cfg.Query = map[string]string{"time": "7", "layer": "a", "field": "value"}
	cfg.Out = filepath.Join(t.TempDir(), "frame.png")
	r, err := newRenderer(cfg, testLogger())
	require.NoError(t, err)
	var missing *ibr.MissingImageError
	require.ErrorAs(t, r.render(context.Background()), &missing)
}

func TestUnknownColormap(t *testing.T) {
	var logs bytes.Buffer
	cfg := defaultConfig()
	cfg.Store = newTestStore(t)
	cfg.Colormap = "Viridis"
	cfg.Query = map[string]string{"time": "0", "layer": "a", "field": "value"}
	cfg.Out = filepath.Join(t.TempDir(), "frame.png")

	r, err := newRenderer(cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	require.Equal(t, ibr.IdentityTable, r.lut.Active())
	require.Contains(t, logs.String(), "colormap=Viridis")
	require.Contains(t, logs.String(), "Spectral")

	// The identity table leaves the packed value pixels as stored.
	require.NoError(t, r.render(context.Background()))
	img, err := ibrstore.Decode(cfg.Out)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{B: 1, A: 0xff}, color.RGBAModel.Convert(img.At(0, 0)))
}

func TestReload(t *testing.T) {
	dir := newTestStore(t)
	lutPath := filepath.Join(dir, "bw.json")
	writeFile(t, lutPath, testLUT)

	cfg := defaultConfig()
	cfg.Store = dir
	cfg.LUT = lutPath
	cfg.Colormap = "BW"
	cfg.Query = map[string]string{"time": "0", "layer": "a", "field": "value"}
	cfg.Out = filepath.Join(t.TempDir(), "frame.png")
	r, err := newRenderer(cfg, testLogger())
	require.NoError(t, err)

	// BW now runs white to black.
	writeFile(t, lutPath, `[{"Name": "BW", "ColorSpace": "RGB", "RGBPoints": [0, 1, 1, 1, 1, 0, 0, 0]}]`)
	require.NoError(t, r.reload(context.Background(), watchLUT, nil))
	img, err := ibrstore.Decode(cfg.Out)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 0xff}, color.RGBAModel.Convert(img.At(0, 0)))

	next := defaultConfig()
	next.Store = dir
	next.Query = map[string]string{"time": "0", "layer": "b", "field": "rgb"}
	next.Out = cfg.Out
	require.NoError(t, r.reload(context.Background(), watchConfig, func() (*Config, error) { return next, nil }))
	img, err = ibrstore.Decode(cfg.Out)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 0xff}, color.RGBAModel.Convert(img.At(0, 0)))

	require.NoError(t, r.reload(context.Background(), watchManifest, nil))
}

func TestReloadFailureKeepsState(t *testing.T) {
	dir := newTestStore(t)
	cfg := defaultConfig()
	cfg.Store = dir
	cfg.Query = map[string]string{"time": "0", "layer": "b", "field": "rgb"}
	cfg.Out = filepath.Join(t.TempDir(), "frame.png")
	r, err := newRenderer(cfg, testLogger())
	require.NoError(t, err)
	store, lut := r.store, r.lut

	bad := defaultConfig()
	bad.Store = filepath.Join(t.TempDir(), "nowhere")
	require.Error(t, r.reload(context.Background(), watchConfig, func() (*Config, error) { return bad, nil }))
	require.Same(t, cfg, r.cfg)
	require.Same(t, store, r.store)
	require.Same(t, lut, r.lut)

	cfg.LUT = filepath.Join(t.TempDir(), "missing.json")
	require.Error(t, r.reload(context.Background(), watchLUT, nil))
	require.Same(t, lut, r.lut)

	writeFile(t, filepath.Join(dir, ibrstore.ManifestName), "pattern = \"\"\n")
	require.Error(t, r.reload(context.Background(), watchManifest, nil))
	require.Same(t, store, r.store)
}

func TestWatchTargets(t *testing.T) {
	cfg := &Config{Store: "store", LUT: "luts/bw.json"}
	targets, err := watchTargets("render.toml", cfg)
	require.NoError(t, err)
	require.Len(t, targets, 3)

	abs, _ := filepath.Abs(filepath.Join("store", ibrstore.ManifestName))
	require.Equal(t, watchManifest, targets[abs])
	abs, _ = filepath.Abs("luts/bw.json")
	require.Equal(t, watchLUT, targets[abs])
}

// Package ibr composites pre-rendered image layers into a single frame.
//
// An image-based-rendering database stores, for every camera and parameter
// setting, a set of images per layer: a color (or packed scalar value)
// image, a depth image and a luminance image. A LayerSpec collects the
// images of one layer from a Store, a LookupTable recolors packed scalar
// images through a named colormap, and a Compositor merges the layers with
// a per-pixel depth test.
//
// Example usage:
//
//	lut := ibr.NewBuiltinLookupTable()
//	lut.Select("Spectral")
//
//	layer := ibr.NewLayerSpec()
//	layer.AddToBaseQuery(ibr.Query{"time": "0", "phi": "30"})
//	layer.AddQuery(ibr.ImageValue, "field", "temperature")
//	layer.AddQuery(ibr.ImageDepth, "field", "depth")
//	if err := layer.LoadImages(ctx, store); err != nil {
//		return err
//	}
//
//	c := ibr.NewCompositor()
//	c.SetLookupTable(lut)
//	frame, err := c.Render([]*ibr.LayerSpec{layer}, true)
package ibr

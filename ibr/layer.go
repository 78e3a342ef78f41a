package ibr

import (
	"context"
	"fmt"
	"image"
	"maps"
	"slices"
	"strings"
)

// ImageType classifies the role an image plays in a layer.
type ImageType int

const (
	// ImageRGB is a displayable color image (or packed value image).
	ImageRGB ImageType = iota
	// ImageDepth is a per-pixel depth buffer ("Z").
	ImageDepth
	// ImageValue is a packed scalar value image.
	ImageValue
	// ImageLuminance packs ambient, diffuse and specular terms one per channel.
	ImageLuminance

	numImageTypes
)

var imageTypeNames = [numImageTypes]string{"RGB", "Z", "VALUE", "LUMINANCE"}

// String returns the store's name for the image type.
func (t ImageType) String() string {
	if t < 0 || t >= numImageTypes {
		return fmt.Sprintf("ImageType(%d)", int(t))
	}
	return imageTypeNames[t]
}

// ParseImageType parses the names produced by ImageType.String.
func ParseImageType(s string) (ImageType, error) {
	for i, name := range imageTypeNames {
		if strings.EqualFold(s, name) {
			return ImageType(i), nil
		}
	}
	return 0, fmt.Errorf("ibr: unknown image type %q", s)
}

// Query maps store parameter names to the chosen value.
type Query map[string]string

// Clone returns a copy of q.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	maps.Copy(out, q)
	return out
}

// Merge returns a copy of q with the pairs of other added, other winning on
// conflicts.
func (q Query) Merge(other Query) Query {
	out := q.Clone()
	maps.Copy(out, other)
	return out
}

// String formats q with sorted keys.
func (q Query) String() string {
	keys := slices.Sorted(maps.Keys(q))
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", k, q[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Record is one result of a store query.
type Record interface {
	// Image returns the record's image payload.
	Image() (image.Image, error)
}

// Store is the image database a LayerSpec queries.
type Store interface {
	// Find returns the records matching every pair of q. A valid query
	// yields at least one record; only the first one is used.
	Find(ctx context.Context, q Query) ([]Record, error)

	// DetermineType classifies a field/value pair.
	DetermineType(field, value string) ImageType
}

type fieldQuery struct {
	name   string
	choice string
}

// LayerSpec gathers the images (color, depth, luminance and values) that
// make up one compositing layer.
//
// Queries are recorded with AddToBaseQuery and AddQuery and resolved
// against a Store by LoadImages. A LayerSpec is built for one render and
// discarded afterwards.
type LayerSpec struct {
	base   Query
	fields [numImageTypes]*fieldQuery

	colors    []*RGBImage
	depth     *DepthImage
	luminance *RGBImage
	values    []*RGBImage
}

// NewLayerSpec creates an empty layer.
func NewLayerSpec() *LayerSpec {
	return &LayerSpec{base: Query{}}
}

// Clone returns a copy of l's queries and loaded images. Image buffers are
// shared.
func (l *LayerSpec) Clone() *LayerSpec {
	out := &LayerSpec{
		base:      l.base.Clone(),
		colors:    slices.Clone(l.colors),
		depth:     l.depth,
		luminance: l.luminance,
		values:    slices.Clone(l.values),
	}
	for i, f := range l.fields {
		if f != nil {
			fc := *f
			out.fields[i] = &fc
		}
	}
	return out
}

// AddToBaseQuery adds constraints shared by every field of the layer.
func (l *LayerSpec) AddToBaseQuery(q Query) {
	for k, v := range q {
		l.base[k] = v
	}
}

// BaseQuery returns a copy of the layer's shared constraints.
func (l *LayerSpec) BaseQuery() Query {
	return l.base.Clone()
}

// AddQuery records that field should be queried with choice and its image
// classified as t. Only one query per image type is kept; a later call for
// the same type replaces the earlier one.
func (l *LayerSpec) AddQuery(t ImageType, field, choice string) {
	if t < 0 || t >= numImageTypes {
		t = ImageRGB
	}
	l.fields[t] = &fieldQuery{name: field, choice: choice}
}

// HasFieldQueries reports whether any AddQuery call has been made.
func (l *LayerSpec) HasFieldQueries() bool {
	for _, f := range l.fields {
		if f != nil {
			return true
		}
	}
	return false
}

// LoadImages resolves the layer's queries against store.
//
// Without field queries the base query alone is issued and its image is
// used as the layer's color. Otherwise every field query is merged with the
// base query and issued in the order RGB, Z, VALUE, LUMINANCE. VALUE images
// are stored as colors.
//
// If any query fails, the layer is left as it was before the call.
func (l *LayerSpec) LoadImages(ctx context.Context, store Store) error {
	var (
		colors    []*RGBImage
		depth     = l.depth
		luminance = l.luminance
	)

	if !l.HasFieldQueries() {
		img, err := l.fetch(ctx, store, l.base)
		if err != nil {
			return err
		}
		colors = append(colors, ToRGBImage(img))
	} else {
		for t, f := range l.fields {
			if f == nil {
				continue
			}
			img, err := l.fetch(ctx, store, l.base.Merge(Query{f.name: f.choice}))
			if err != nil {
				return err
			}
			switch ImageType(t) {
			case ImageRGB, ImageValue:
				// TODO: route VALUE images to values once Compositor.Render
				// decodes scalars itself instead of going through Color1.
				colors = append(colors, ToRGBImage(img))
			case ImageDepth:
				depth = ToDepthImage(img)
			case ImageLuminance:
				luminance = ToRGBImage(img)
			}
		}
	}

	l.colors = append(l.colors, colors...)
	l.depth = depth
	l.luminance = luminance
	return nil
}

func (l *LayerSpec) fetch(ctx context.Context, store Store, q Query) (image.Image, error) {
	records, err := store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ibr: query %s: %w", q, err)
	}
	if len(records) == 0 {
		return nil, &MissingImageError{Query: q}
	}
	img, err := records[0].Image()
	if err != nil {
		return nil, fmt.Errorf("ibr: load image for %s: %w", q, err)
	}
	return img, nil
}

// Color1 returns the layer's first color image, recolored through lut
// unless lut is nil or its active table is the identity.
func (l *LayerSpec) Color1(lut *LookupTable) (*RGBImage, error) {
	if len(l.colors) == 0 {
		return nil, ErrNoColorImage
	}
	if lut == nil {
		return l.colors[0], nil
	}
	return lut.Recolor(l.colors[0]), nil
}

// Colors returns the layer's color images in load order.
func (l *LayerSpec) Colors() []*RGBImage {
	return l.colors
}

// Values returns the layer's scalar value images.
func (l *LayerSpec) Values() []*RGBImage {
	return l.values
}

// Depth returns the layer's depth image, if any.
func (l *LayerSpec) Depth() (*DepthImage, bool) {
	return l.depth, l.depth != nil
}

// Luminance returns the layer's luminance image, if any.
func (l *LayerSpec) Luminance() (*RGBImage, bool) {
	return l.luminance, l.luminance != nil
}

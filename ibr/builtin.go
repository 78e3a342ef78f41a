package ibr

import (
	"encoding/json"
	"io"
	"math"
)

// BuiltinTables returns the colormaps shipped with the viewer: Spectral,
// Grayscale, Rainbow and Ocean.
func BuiltinTables() []TableDefinition {
	return []TableDefinition{
		spectralTable(),
		grayscaleTable(),
		rainbowTable(),
		oceanTable(),
	}
}

// WriteTables writes defs as an indented JSON lookup table file.
func WriteTables(w io.Writer, defs []TableDefinition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}

func spectralTable() TableDefinition {
	return TableDefinition{
		Name:       "Spectral",
		ColorSpace: "RGB",
		NanColor:   []float64{0.6196078431372549, 0.00392156862745098, 0.2588235294117647},
		RGBPoints: []float64{
			0.0, 0.6196078431372549, 0.00392156862745098, 0.2588235294117647,
			0.1, 0.8352941176470589, 0.2431372549019608, 0.3098039215686275,
			0.2, 0.9568627450980393, 0.4274509803921568, 0.2627450980392157,
			0.3, 0.9921568627450981, 0.6823529411764706, 0.3803921568627451,
			0.4, 0.996078431372549, 0.8784313725490196, 0.5450980392156862,
			0.5, 1, 1, 0.7490196078431373,
			0.6, 0.9019607843137255, 0.9607843137254902, 0.596078431372549,
			0.7, 0.6705882352941176, 0.8666666666666667, 0.6431372549019608,
			0.8, 0.4, 0.7607843137254902, 0.6470588235294118,
			0.9, 0.196078431372549, 0.5333333333333333, 0.7411764705882353,
			1.0, 0.3686274509803922, 0.3098039215686275, 0.635294117647058,
		},
	}
}

// grayscaleTable has 33 evenly spaced gray steps.
func grayscaleTable() TableDefinition {
	const steps = 32.0
	pts := make([]float64, 0, (steps+1)*4)
	for x := 0; x <= steps; x++ {
		v := float64(x) / steps
		pts = append(pts, v, v, v, v)
	}
	return TableDefinition{
		Name:       "Grayscale",
		ColorSpace: "RGB",
		NanColor:   []float64{0, 0, 0},
		RGBPoints:  pts,
	}
}

// rainbowTable runs from red at 0 to blue at 1 in 64 steps.
func rainbowTable() TableDefinition {
	const n = 64
	pts := make([]float64, 0, n*4)
	for x := 0; x < n; x++ {
		a := (1.0 - float64(x)/(n-1)) / 0.25
		band := math.Floor(a)
		f := a - band
		var r, g, b float64
		switch band {
		case 0:
			r, g, b = 1, f, 0
		case 1:
			r, g, b = 1-f, 1, 0
		case 2:
			r, g, b = 0, 1, f
		case 3:
			r, g, b = 0, 1-f, 1
		case 4:
			r, g, b = 0, 0, 1
		}
		pts = append(pts, float64(x)/(n-1), r, g, b)
	}
	return TableDefinition{
		Name:       "Rainbow",
		ColorSpace: "RGB",
		NanColor:   []float64{0, 0, 0},
		RGBPoints:  pts,
	}
}

func oceanTable() TableDefinition {
	return TableDefinition{
		Name:       "Ocean",
		ColorSpace: "RGB",
		NanColor:   []float64{0, 0, 0},
		RGBPoints: []float64{
			0.0, 0.039215, 0.090195, 0.25098,
			0.125, 0.133333, 0.364706, 0.521569,
			0.25, 0.321569, 0.760784, 0.8,
			0.375, 0.690196, 0.960784, 0.894118,
			0.5, 0.552941, 0.921569, 0.552941,
			0.625, 0.329412, 0.6, 0.239216,
			0.75, 0.211765, 0.349020, 0.078435,
			0.875, 0.011765, 0.207843, 0.023525,
			1.0, 0.286275, 0.294118, 0.30196,
		},
	}
}

package ibr

import (
	"errors"
	"fmt"
	"image"
)

// Compositing errors
var (
	ErrNoLayers     = errors.New("ibr: no layers to composite")
	ErrNoColorImage = errors.New("ibr: layer has no color image")
	ErrMissingDepth = errors.New("ibr: layer has no depth image")
)

// MissingImageError is returned by LayerSpec.LoadImages when the store has no
// record matching a required query.
type MissingImageError struct {
	Query Query
}

func (e *MissingImageError) Error() string {
	return fmt.Sprintf("ibr: no image matches query %s", e.Query)
}

// DimensionMismatchError is returned by Compositor.Render when an image of a
// layer does not have the size of the first layer's color image.
type DimensionMismatchError struct {
	Layer int
	Field string
	Want  image.Point
	Got   image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("ibr: layer %d %s image is %dx%d, want %dx%d",
		e.Layer, e.Field, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// InvalidLUTFileError is returned when lookup table definitions cannot be
// imported. The table set is unchanged when this error is returned.
type InvalidLUTFileError struct {
	// Entry is the index of the offending definition, or -1 when the
	// source could not be decoded at all.
	Entry  int
	Name   string
	Reason string
	Err    error
}

func (e *InvalidLUTFileError) Error() string {
	msg := "ibr: invalid lookup table"
	if e.Entry >= 0 {
		msg += fmt.Sprintf(" entry %d", e.Entry)
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidLUTFileError) Unwrap() error {
	return e.Err
}

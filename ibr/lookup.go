package ibr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// IdentityTable is the name of the table that leaves images unchanged.
const IdentityTable = "None"

// Packed value encoding. Zero is reserved for "no data"; valid values are
// 1..maxPackedValue+1 and normalize to [0, 1].
const (
	maxPackedValue = 0xFFFFFE
)

// TableDefinition is one entry of a lookup table file.
//
// RGBPoints is flattened as [pos0, r0, g0, b0, pos1, r1, g1, b1, ...] with
// positions strictly ascending in [0, 1] and channels in [0, 1].
type TableDefinition struct {
	Name       string    `json:"Name" yaml:"Name"`
	ColorSpace string    `json:"ColorSpace" yaml:"ColorSpace"`
	RGBPoints  []float64 `json:"RGBPoints" yaml:"RGBPoints"`
	NanColor   []float64 `json:"NanColor,omitempty" yaml:"NanColor,omitempty"`
}

// LookupTableEntry is a materialized colormap: one color per control point.
type LookupTableEntry struct {
	Name       string
	ColorSpace string
	// Positions are the control point positions, ascending.
	Positions []float64
	// Colors holds one opaque color per position.
	Colors []color.RGBA

	// bins are Positions plus the closing edge used for digitizing.
	bins []float64
}

// IsIdentity reports whether e is the "None" table.
func (e *LookupTableEntry) IsIdentity() bool {
	return len(e.Colors) == 0
}

// Index returns the color index for a normalized value.
//
// The value is placed in the bin [bins[i-1], bins[i]) where bins are the
// control point positions followed by 1.0 (or 1.01 when the last position
// is already 1.0, so that 1.0 gets its own color). Values at or past the
// last edge map to the last color, and so do values below the first
// position.
func (e *LookupTableEntry) Index(v float64) int {
	n := len(e.Colors)
	i := sort.Search(len(e.bins), func(k int) bool { return e.bins[k] > v }) - 1
	if i == n || i < 0 {
		return n - 1
	}
	return i
}

// Color returns the color for a normalized value.
func (e *LookupTableEntry) Color(v float64) color.RGBA {
	return e.Colors[e.Index(v)]
}

// DecodePackedValue reassembles the 24-bit scalar stored in a value pixel.
func DecodePackedValue(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// NormalizePackedValue maps a packed value to [0, 1]. The "no data" value
// 0 maps slightly below zero.
func NormalizePackedValue(v uint32) float64 {
	return float64(int32(v)-1) / maxPackedValue
}

// LookupTable is the set of named colormaps and the active selection.
// A LookupTable is safe for concurrent use.
type LookupTable struct {
	mu      sync.RWMutex
	entries []*LookupTableEntry
	active  string
}

// NewLookupTable returns a set holding only the identity table, which is
// active.
func NewLookupTable() *LookupTable {
	return &LookupTable{
		entries: []*LookupTableEntry{{Name: IdentityTable, ColorSpace: IdentityTable}},
		active:  IdentityTable,
	}
}

// NewBuiltinLookupTable returns a set holding the identity table and the
// tables of BuiltinTables. The identity table is active.
func NewBuiltinLookupTable() *LookupTable {
	t := NewLookupTable()
	if err := t.Import(BuiltinTables()); err != nil {
		panic(err)
	}
	return t
}

// ReadFile imports the tables of a JSON lookup table file. Files ending in
// .yaml or .yml are decoded as YAML with the same schema.
func (t *LookupTable) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var defs []TableDefinition
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return &InvalidLUTFileError{Entry: -1, Err: err}
		}
		return t.Import(defs)
	}
	return t.Read(bytes.NewReader(data))
}

// Read imports the tables of a JSON list of TableDefinition.
func (t *LookupTable) Read(r io.Reader) error {
	var defs []TableDefinition
	if err := json.NewDecoder(r).Decode(&defs); err != nil {
		return &InvalidLUTFileError{Entry: -1, Err: err}
	}
	return t.Import(defs)
}

// Import adds defs to the set, replacing tables with the same name. If any
// definition is malformed nothing is imported.
func (t *LookupTable) Import(defs []TableDefinition) error {
	parsed := make([]*LookupTableEntry, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		e, err := parseDefinition(def)
		if err != nil {
			err.Entry = i
			return err
		}
		if seen[e.Name] {
			return &InvalidLUTFileError{Entry: i, Name: e.Name, Reason: "duplicate name"}
		}
		seen[e.Name] = true
		parsed = append(parsed, e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range parsed {
		if i := t.indexLocked(e.Name); i >= 0 {
			t.entries[i] = e
		} else {
			t.entries = append(t.entries, e)
		}
	}
	return nil
}

func parseDefinition(def TableDefinition) (*LookupTableEntry, *InvalidLUTFileError) {
	invalid := func(format string, args ...any) *InvalidLUTFileError {
		return &InvalidLUTFileError{Name: def.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch def.Name {
	case "":
		return nil, invalid("missing name")
	case IdentityTable:
		return nil, invalid("name is reserved")
	}
	pts := def.RGBPoints
	if len(pts) == 0 || len(pts)%4 != 0 {
		return nil, invalid("RGBPoints has %d values, want a non-zero multiple of 4", len(pts))
	}

	n := len(pts) / 4
	e := &LookupTableEntry{
		Name:       def.Name,
		ColorSpace: def.ColorSpace,
		Positions:  make([]float64, n),
		Colors:     make([]color.RGBA, n),
	}
	for i := 0; i < n; i++ {
		p := pts[i*4 : i*4+4]
		if !in01(p[0]) {
			return nil, invalid("position %d (%v) outside [0, 1]", i, p[0])
		}
		if i > 0 && p[0] <= e.Positions[i-1] {
			return nil, invalid("position %d (%v) not above %v", i, p[0], e.Positions[i-1])
		}
		for c := 1; c < 4; c++ {
			if !in01(p[c]) {
				return nil, invalid("point %d channel %d (%v) outside [0, 1]", i, c-1, p[c])
			}
		}
		e.Positions[i] = p[0]
		e.Colors[i] = color.RGBA{R: uint8(p[1] * 255), G: uint8(p[2] * 255), B: uint8(p[3] * 255), A: 0xff}
	}

	e.bins = append(make([]float64, 0, n+1), e.Positions...)
	if e.Positions[n-1] < 1.0 {
		e.bins = append(e.bins, 1.0)
	} else {
		e.bins = append(e.bins, 1.01)
	}
	return e, nil
}

func in01(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (t *LookupTable) indexLocked(name string) int {
	for i, e := range t.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Select makes the named table active. An unknown name selects the
// identity table.
func (t *LookupTable) Select(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexLocked(name) < 0 {
		name = IdentityTable
	}
	t.active = name
}

// Active returns the name of the active table.
func (t *LookupTable) Active() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// IsIdentity reports whether the active table leaves images unchanged.
func (t *LookupTable) IsIdentity() bool {
	return t.activeEntry().IsIdentity()
}

// Names returns the table names in import order, starting with "None".
func (t *LookupTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Entry returns the named table.
func (t *LookupTable) Entry(name string) (*LookupTableEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexLocked(name); i >= 0 {
		return t.entries[i], true
	}
	return nil, false
}

// activeEntry resolves the active name. Entries are never mutated after
// import, so the returned entry can be used without the lock.
func (t *LookupTable) activeEntry() *LookupTableEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexLocked(t.active); i >= 0 {
		return t.entries[i]
	}
	return t.entries[0]
}

// Recolor maps a packed value image through the active table. With the
// identity table active img itself is returned; otherwise a new image of
// the same bounds is returned.
func (t *LookupTable) Recolor(img *RGBImage) *RGBImage {
	e := t.activeEntry()
	if e.IsIdentity() {
		return img
	}

	out := NewRGBImage(img.Rect)
	ParallelFor(img.Rect.Dy(), func(row int) {
		y := img.Rect.Min.Y + row
		si := img.PixOffset(img.Rect.Min.X, y)
		di := out.PixOffset(img.Rect.Min.X, y)
		for x := 0; x < img.Rect.Dx(); x++ {
			v := DecodePackedValue(img.Pix[si], img.Pix[si+1], img.Pix[si+2])
			c := e.Colors[e.Index(NormalizePackedValue(v))]
			out.Pix[di] = c.R
			out.Pix[di+1] = c.G
			out.Pix[di+2] = c.B
			si += 3
			di += 3
		}
	})
	return out
}

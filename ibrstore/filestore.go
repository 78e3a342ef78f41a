package ibrstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the name of the manifest file at the root of a FileStore.
const ManifestName = "store.toml"

var (
	// ErrNoPattern is returned when a manifest has no file name pattern.
	ErrNoPattern = errors.New("ibrstore: manifest has no pattern")

	// ErrInvalidValue is returned when a query value would escape the store
	// directory.
	ErrInvalidValue = errors.New("ibrstore: invalid query value")
)

// Manifest describes how a FileStore maps queries to files.
//
//	pattern = "{time}/{phi}/{field}.png"
//
//	[parameters]
//	time = ["0", "10"]
//
//	[types.field]
//	depth = "Z"
//	lum = "LUMINANCE"
type Manifest struct {
	// Pattern is a slash-separated path relative to the store directory.
	// Each {name} is replaced by the query value of that parameter. Without
	// an extension every entry of Extensions is tried in order.
	Pattern string `toml:"pattern"`

	// Parameters optionally lists the values of each parameter. A query
	// value missing from a parameter's list matches no file.
	Parameters map[string][]string `toml:"parameters"`

	// Types maps field name, then value, to an image type name.
	Types map[string]map[string]string `toml:"types"`
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// fileRecord decodes its file when the image is requested.
type fileRecord struct {
	path string
}

func (r fileRecord) Image() (image.Image, error) { return Decode(r.path) }

// FileStore is an ibr.Store over a directory of image files.
type FileStore struct {
	dir      string
	manifest Manifest
	types    map[string]ibr.ImageType
	logger   *slog.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger used for per-query debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) { s.logger = l }
}

// OpenFileStore reads dir/store.toml and returns a store over dir.
func OpenFileStore(dir string, opts ...Option) (*FileStore, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("ibrstore: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		dir:      dir,
		manifest: m,
		types:    make(map[string]ibr.ImageType),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for field, values := range m.Types {
		for value, name := range values {
			t, err := ibr.ParseImageType(name)
			if err != nil {
				return nil, fmt.Errorf("ibrstore: types.%s.%s: %w", field, value, err)
			}
			s.types[typeKey(field, value)] = t
		}
	}
	s.logger.Debug("opened file store", "dir", dir, "pattern", m.Pattern)
	return s, nil
}

// ParseManifest decodes a TOML manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("ibrstore: parse manifest: %w", err)
	}
	if m.Pattern == "" {
		return Manifest{}, ErrNoPattern
	}
	return m, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

// Manifest returns the store's manifest.
func (s *FileStore) Manifest() Manifest { return s.manifest }

// Find expands the pattern with q and returns the matching file, if any.
// A pattern placeholder missing from q or a file that does not exist
// yields no records, and so does a value the manifest does not list for its
// parameter. Query parameters the pattern does not name are ignored.
func (s *FileStore) Find(ctx context.Context, q ibr.Query) ([]ibr.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, missing, err := expandPattern(s.manifest.Pattern, q)
	if err != nil {
		return nil, err
	}
	if missing != "" {
		s.logger.Debug("query lacks pattern parameter", "query", q.String(), "parameter", missing)
		return nil, nil
	}
	if name, ok := s.unlisted(q); ok {
		s.logger.Debug("query value not listed in manifest", "query", q.String(), "parameter", name)
		return nil, nil
	}

	candidates := []string{rel}
	if path.Ext(rel) == "" {
		candidates = candidates[:0]
		for _, ext := range Extensions {
			candidates = append(candidates, rel+ext)
		}
	}
	for _, c := range candidates {
		p := filepath.Join(s.dir, filepath.FromSlash(c))
		fi, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ibrstore: %w", err)
		}
		if fi.IsDir() {
			continue
		}
		s.logger.Debug("found image", "query", q.String(), "path", p)
		return []ibr.Record{fileRecord{p}}, nil
	}
	s.logger.Debug("no image for query", "query", q.String(), "path", rel)
	return nil, nil
}

// unlisted returns the first parameter of q, in sorted order, whose value
// is not among the values the manifest lists for it.
func (s *FileStore) unlisted(q ibr.Query) (string, bool) {
	for _, name := range slices.Sorted(maps.Keys(q)) {
		values, ok := s.manifest.Parameters[name]
		if ok && !slices.Contains(values, q[name]) {
			return name, true
		}
	}
	return "", false
}

// DetermineType returns the type given in the manifest, or ibr.ImageRGB.
func (s *FileStore) DetermineType(field, value string) ibr.ImageType {
	if t, ok := s.types[typeKey(field, value)]; ok {
		return t
	}
	return ibr.ImageRGB
}

// expandPattern substitutes q into pattern. It returns the name of the
// first placeholder q does not set, if any.
func expandPattern(pattern string, q ibr.Query) (rel, missing string, err error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		name := pattern[m[2]:m[3]]
		v, ok := q[name]
		if !ok {
			return "", name, nil
		}
		if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
			return "", "", fmt.Errorf("%w: %s=%q", ErrInvalidValue, name, v)
		}
		b.WriteString(pattern[last:m[0]])
		b.WriteString(v)
		last = m[1]
	}
	b.WriteString(pattern[last:])
	return b.String(), "", nil
}

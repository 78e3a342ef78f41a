package ibrstore

import (
	"context"
	"image"
	"sync"

	"github.com/mrjoshuak/go-ibr/ibr"
)

// imageRecord is a record whose payload is already decoded.
type imageRecord struct {
	img image.Image
}

func (r imageRecord) Image() (image.Image, error) { return r.img, nil }

type memEntry struct {
	params ibr.Query
	img    image.Image
}

// MemStore is an in-memory ibr.Store. It is safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	entries []memEntry
	types   map[string]ibr.ImageType
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{types: make(map[string]ibr.ImageType)}
}

// Add stores img under the given parameter values.
func (s *MemStore) Add(params ibr.Query, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, memEntry{params: params.Clone(), img: img})
}

// SetType records the image type of a field/value pair.
func (s *MemStore) SetType(field, value string, t ibr.ImageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[typeKey(field, value)] = t
}

// Len returns the number of stored images.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Find returns the images whose parameters contain every pair of q, in the
// order they were added.
func (s *MemStore) Find(ctx context.Context, q ibr.Query) ([]ibr.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ibr.Record
	for _, e := range s.entries {
		if matches(e.params, q) {
			out = append(out, imageRecord{e.img})
		}
	}
	return out, nil
}

// DetermineType returns the type set with SetType, or ibr.ImageRGB.
func (s *MemStore) DetermineType(field, value string) ibr.ImageType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.types[typeKey(field, value)]; ok {
		return t
	}
	return ibr.ImageRGB
}

func matches(params, q ibr.Query) bool {
	for k, v := range q {
		if pv, ok := params[k]; !ok || pv != v {
			return false
		}
	}
	return true
}

func typeKey(field, value string) string {
	return field + "\x00" + value
}

package npy

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrNameCount is returned by WriteNPZ when names and arrays differ in length.
var ErrNameCount = errors.New("npy: names and arrays differ in length")

// Member is one named array of an .npz archive.
type Member struct {
	Name  string
	Array *Array
}

// ReadNPZ decodes every .npy member of the zip archive in r, in archive
// order. Member names have their .npy suffix removed. Other members are
// skipped.
func ReadNPZ(r io.ReaderAt, size int64) ([]Member, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("npy: open archive: %w", err)
	}

	var out []Member
	for _, f := range zr.File {
		if path.Ext(f.Name) != ".npy" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("npy: member %s: %w", f.Name, err)
		}
		a, err := Decode(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("npy: member %s: %w", f.Name, err)
		}
		out = append(out, Member{Name: strings.TrimSuffix(f.Name, ".npy"), Array: a})
	}
	return out, nil
}

// WriteNPZ writes arrays as a deflate-compressed archive, the layout
// numpy.savez_compressed produces.
func WriteNPZ(w io.Writer, names []string, arrays []*Array) error {
	if len(names) != len(arrays) {
		return ErrNameCount
	}
	zw := zip.NewWriter(w)
	for i, a := range arrays {
		b, err := encode(a)
		if err != nil {
			return fmt.Errorf("npy: member %s: %w", names[i], err)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: names[i] + ".npy", Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := fw.Write(b); err != nil {
			return err
		}
	}
	return zw.Close()
}

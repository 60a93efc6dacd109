// Package archive walks markup documents stored in zip containers (plain
// zip, EPUB).
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/encoding"
)

// WalkFunc is called for every matching file. Name is the entry name decoded
// to UTF-8, file gives access to content. Returning error stops the walk.
type WalkFunc func(archive, name string, file *zip.File) error

// Options controls Walk.
type Options struct {
	// Prefix limits walk to entries under path inside archive.
	Prefix string
	// Match selects entries by decoded name, all files when nil.
	Match func(name string) bool
	// NameEncoding decodes names of entries not flagged as UTF-8.
	NameEncoding encoding.Encoding
}

// Walk calls walkFn for each file in archive selected by options, in archive
// order. Entries with absolute names or ".." components are rejected, so
// callers may safely use names to build paths.
func Walk(archive string, opts Options, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := decodeName(f, opts.NameEncoding)
		if err != nil {
			return fmt.Errorf("zip entry %q: %w", f.Name, err)
		}
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !strings.HasPrefix(name, opts.Prefix) || (opts.Match != nil && !opts.Match(name)) {
			continue
		}
		if err := walkFn(archive, name, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeName(f *zip.File, enc encoding.Encoding) (string, error) {
	if !f.NonUTF8 || enc == nil {
		return f.Name, nil
	}
	return enc.NewDecoder().String(f.Name)
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

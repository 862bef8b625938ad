package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// PathSource reads a manifest directly from a local directory. There is
// nothing to download and nothing to update; version comes from the
// manifest itself.
type PathSource struct {
	Dir string
}

// NewPathSource builds a Source rooted at dir.
func NewPathSource(dir string) *PathSource { return &PathSource{Dir: dir} }

// Update is a no-op for a local path.
func (s *PathSource) Update(ctx context.Context) error { return nil }

// Query loads the manifest at Dir and returns its Summary if its name
// matches; a path source only ever offers the one package it points at.
func (s *PathSource) Query(ctx context.Context, name string) ([]*manifest.Summary, error) {
	m, err := manifest.Load(s.Dir)
	if err != nil {
		return nil, err
	}
	if m.Summary.ID.Name.String() != name {
		return nil, nil
	}
	return []*manifest.Summary{m.Summary}, nil
}

// Download locates the on-disk package directory; there is nothing to
// copy since the sources already live where the caller can read them.
func (s *PathSource) Download(ctx context.Context, id ident.PackageId) (Package, error) {
	return Package{ID: id, Dir: s.Dir}, nil
}

// Fingerprint returns "path:" followed by Dir.
func (s *PathSource) Fingerprint() string { return "path:" + s.Dir }

// TreeHash hashes the max-mtime of tracked files plus their relative
// paths; `target` and `.git` directories are skipped.
func (s *PathSource) TreeHash() (string, error) {
	var files []string
	var maxMtime int64

	err := filepath.WalkDir(s.Dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "target" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.Dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		if info, err := d.Info(); err == nil {
			if mt := info.ModTime().UnixNano(); mt > maxMtime {
				maxMtime = mt
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	h := sha256.New()
	fmt.Fprintf(h, "%d\x00", maxMtime)
	for _, f := range files {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

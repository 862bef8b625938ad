// Package layout builds the deterministic output tree under a target
// directory and the HTML index page `forge doc` emits.
package layout

import "path/filepath"

// Tree is a resolved set of paths under one target directory for one
// (triple, profile) pair.
type Tree struct {
	Root     string
	Deps     string
	Build    string
	Fingerprint string
	Examples string
	Doc      string
}

// Build constructs a Tree rooted at targetDir. triple is empty for the
// host target (no per-triple subdirectory), matching the reference
// implementation's "host build artifacts live directly under
// target/<profile>" behavior.
func Build(targetDir, triple, profile string) Tree {
	root := targetDir
	if triple != "" {
		root = filepath.Join(root, triple)
	}
	root = filepath.Join(root, profile)
	return Tree{
		Root:        root,
		Deps:        filepath.Join(root, "deps"),
		Build:       filepath.Join(root, "build"),
		Fingerprint: filepath.Join(root, ".fingerprint"),
		Examples:    filepath.Join(root, "examples"),
		Doc:         filepath.Join(root, "doc"),
	}
}

// BuildDirFor returns the per-package scratch directory for a custom
// build script's output, keyed by
// a short content hash of the package id so two versions of the same
// name never collide.
func (t Tree) BuildDirFor(pkgHash string) string {
	return filepath.Join(t.Build, pkgHash)
}

// FingerprintDirFor returns the per-package fingerprint cache directory.
func (t Tree) FingerprintDirFor(pkgHash string) string {
	return filepath.Join(t.Fingerprint, pkgHash)
}

// Package source provides a uniform interface over the three places a
// package's content can come from: a registry, a local path, or a
// version-control checkout.
package source

import (
	"context"

	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// Package is a fetched, on-disk package: its resolved id and the directory
// its manifest and sources live in.
type Package struct {
	ID  ident.PackageId
	Dir string
	// Checksum is the content hash of the downloaded tarball for registry
	// sources and the resolved commit for git sources; empty for path
	// sources, which fingerprint by mtime instead.
	Checksum string
}

// Source is the capability set every origin variant implements: update,
// query, download, fingerprint.
type Source interface {
	// Update refreshes the source's local index (a no-op for Path).
	Update(ctx context.Context) error

	// Query returns every Summary this source can offer that might
	// satisfy dep's name (version filtering happens in the resolver).
	Query(ctx context.Context, name string) ([]*manifest.Summary, error)

	// Download fetches (or locates, for Path) the package content for id.
	Download(ctx context.Context, id ident.PackageId) (Package, error)

	// Fingerprint returns a stable identifier of the source
	// ("registry:<url>", "path:<dir>", "git:<url>@<commit>") that the
	// resolver matches dependency origins against.
	Fingerprint() string
}

// SourceTreeHash is the fingerprint input each source kind computes in
// its own way: for Path sources, a hash of tracked-file mtimes and paths;
// for Registry sources, the package checksum; for Git sources, the
// resolved commit. Concrete sources implement this themselves since the
// inputs differ in kind; this alias just documents the contract.
type SourceTreeHash = string

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// GitSource clones (or reuses) a checkout under CheckoutsDir, resolves the
// pinned reference to a commit, and then behaves exactly like a PathSource
// rooted at that checkout.
type GitSource struct {
	RepoURL      string
	Reference    ident.Reference
	CheckoutsDir string

	resolvedCommit string
	inner          *PathSource
}

// NewGitSource builds a git Source cloning/checking out under checkoutsDir.
func NewGitSource(repoURL string, ref ident.Reference, checkoutsDir string) *GitSource {
	return &GitSource{RepoURL: repoURL, Reference: ref, CheckoutsDir: checkoutsDir}
}

func (s *GitSource) checkoutDir() string {
	h := sha256.Sum256([]byte(s.RepoURL))
	return filepath.Join(s.CheckoutsDir, hex.EncodeToString(h[:])[:16])
}

// Update clones the repository if absent, fetches otherwise, then checks
// out the pinned reference and records the resolved commit hash.
func (s *GitSource) Update(ctx context.Context) error {
	dir := s.checkoutDir()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		if err := ensureCacheDir(s.CheckoutsDir); err != nil {
			return &errs.FieldError{Kind: errs.KindSource, Field: s.CheckoutsDir, Detail: "creating checkouts directory", Wrapped: err}
		}
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:        s.RepoURL,
			NoCheckout: false,
		})
		if err != nil {
			return &errs.FieldError{Kind: errs.KindSource, Field: s.RepoURL, Detail: "cloning repository", Wrapped: err}
		}
	} else {
		remote, err := repo.Remote("origin")
		if err == nil {
			_ = remote.FetchContext(ctx, &git.FetchOptions{Force: true})
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return &errs.FieldError{Kind: errs.KindSource, Field: s.RepoURL, Detail: "opening worktree", Wrapped: err}
	}

	hash, err := s.resolveReference(repo)
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		return &errs.FieldError{Kind: errs.KindSource, Field: s.RepoURL, Detail: "checking out reference", Wrapped: err}
	}

	s.resolvedCommit = hash.String()
	s.inner = NewPathSource(dir)
	return nil
}

func (s *GitSource) resolveReference(repo *git.Repository) (plumbing.Hash, error) {
	switch s.Reference.Kind {
	case ident.ReferenceRev:
		return plumbing.NewHash(s.Reference.Value), nil
	case ident.ReferenceTag:
		ref, err := repo.Tag(s.Reference.Value)
		if err != nil {
			return plumbing.ZeroHash, &errs.FieldError{Kind: errs.KindSource, Field: s.Reference.Value, Detail: "resolving tag", Wrapped: err}
		}
		return ref.Hash(), nil
	case ident.ReferenceBranch:
		ref, err := repo.Reference(plumbing.NewBranchReferenceName(s.Reference.Value), true)
		if err != nil {
			return plumbing.ZeroHash, &errs.FieldError{Kind: errs.KindSource, Field: s.Reference.Value, Detail: "resolving branch", Wrapped: err}
		}
		return ref.Hash(), nil
	default:
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, &errs.FieldError{Kind: errs.KindSource, Field: s.RepoURL, Detail: "resolving default branch head", Wrapped: err}
		}
		return head.Hash(), nil
	}
}

func (s *GitSource) ensureUpdated(ctx context.Context) error {
	if s.inner != nil {
		return nil
	}
	return s.Update(ctx)
}

// Query delegates to the checked-out path source once the checkout exists.
func (s *GitSource) Query(ctx context.Context, name string) ([]*manifest.Summary, error) {
	if err := s.ensureUpdated(ctx); err != nil {
		return nil, err
	}
	return s.inner.Query(ctx, name)
}

// Download delegates to the checked-out path source.
func (s *GitSource) Download(ctx context.Context, id ident.PackageId) (Package, error) {
	if err := s.ensureUpdated(ctx); err != nil {
		return Package{}, err
	}
	pkg, err := s.inner.Download(ctx, id)
	if err != nil {
		return Package{}, err
	}
	pkg.Checksum = s.resolvedCommit
	return pkg, nil
}

// Fingerprint returns "git:" + RepoURL + "@" + the resolved commit hash
// (the commit part is empty until Update has run).
func (s *GitSource) Fingerprint() string { return "git:" + s.RepoURL + "@" + s.resolvedCommit }

// ensureCacheDir makes sure CheckoutsDir exists before cloning into it.
func ensureCacheDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

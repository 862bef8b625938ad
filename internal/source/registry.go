package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/archiver/extractor"
	"gopkg.in/yaml.v2"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// indexEntry is one line of a registry's flat-namespace index file.
type indexEntry struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Checksum     string              `json:"cksum"`
	Dependencies []indexDepEntry     `json:"deps"`
	Features     map[string][]string `json:"features"`
	Links        string              `json:"links"`
}

type indexDepEntry struct {
	Name            string   `json:"name"`
	Requirement     string   `json:"req"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Package         string   `json:"package"`
}

// RegistrySource fetches a flat-namespace index over HTTP, serves Summary
// values parsed from it, and downloads+extracts tarballs into a shared
// cache directory keyed by (name, version, checksum).
type RegistrySource struct {
	URL      string
	CacheDir string
	Client   *http.Client
	// Offline, when set, skips the network fetch entirely and serves the
	// last successfully fetched index.yml cache.
	Offline bool

	index map[string][]indexEntry
}

// NewRegistrySource builds a registry Source backed by a local cache dir.
func NewRegistrySource(url, cacheDir string) *RegistrySource {
	return &RegistrySource{URL: url, CacheDir: cacheDir, Client: http.DefaultClient}
}

// indexCachePath is the on-disk mirror of the last fetched index, a
// legacy-sibling format next to the JSON wire format: offline builds and
// registries whose index.json is temporarily unreachable fall back to it.
// Of the three source kinds only RegistrySource has an Offline switch;
// GitSource clones and fetches regardless of it.
func (s *RegistrySource) indexCachePath() string {
	return filepath.Join(s.CacheDir, "index.yml")
}

// Update fetches the index and replaces the in-memory copy. In offline
// mode, or when the fetch fails, it falls back to the on-disk index.yml
// cache written by the last successful fetch.
func (s *RegistrySource) Update(ctx context.Context) error {
	if s.Offline {
		return s.loadCachedIndex()
	}

	entries, err := s.fetchIndex(ctx)
	if err != nil {
		if cacheErr := s.loadCachedIndex(); cacheErr == nil {
			return nil
		}
		return err
	}

	index := make(map[string][]indexEntry)
	for _, e := range entries {
		index[e.Name] = append(index[e.Name], e)
	}
	s.index = index

	return s.writeCachedIndex(entries)
}

func (s *RegistrySource) fetchIndex(ctx context.Context) ([]indexEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/index.json", nil)
	if err != nil {
		return nil, &errs.FieldError{Kind: errs.KindSource, Field: s.URL, Detail: "building index request", Wrapped: err}
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &errs.FieldError{Kind: errs.KindSource, Field: s.URL, Detail: "fetching registry index", Wrapped: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.FieldError{Kind: errs.KindSource, Field: s.URL, Detail: fmt.Sprintf("registry index returned status %d", resp.StatusCode)}
	}

	var entries []indexEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &errs.FieldError{Kind: errs.KindSource, Field: s.URL, Detail: "decoding registry index", Wrapped: err}
	}
	return entries, nil
}

func (s *RegistrySource) loadCachedIndex() error {
	data, err := os.ReadFile(s.indexCachePath())
	if err != nil {
		return &errs.FieldError{Kind: errs.KindSource, Field: s.URL, Detail: "no cached registry index available offline", Wrapped: err}
	}
	var entries []indexEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return &errs.FieldError{Kind: errs.KindSource, Field: s.indexCachePath(), Detail: "decoding cached registry index", Wrapped: err}
	}
	index := make(map[string][]indexEntry)
	for _, e := range entries {
		index[e.Name] = append(index[e.Name], e)
	}
	s.index = index
	return nil
}

func (s *RegistrySource) writeCachedIndex(entries []indexEntry) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.indexCachePath(), data, 0o644)
}

// Query returns every Summary the index offers for name.
func (s *RegistrySource) Query(ctx context.Context, name string) ([]*manifest.Summary, error) {
	if s.index == nil {
		if err := s.Update(ctx); err != nil {
			return nil, err
		}
	}

	var out []*manifest.Summary
	for _, e := range s.index[name] {
		id := ident.NewPackageId(e.Name, e.Version, ident.Registry(s.URL))
		deps := make([]manifest.Dependency, 0, len(e.Dependencies))
		for _, d := range e.Dependencies {
			kind := manifest.KindNormal
			switch d.Kind {
			case "dev":
				kind = manifest.KindDev
			case "build":
				kind = manifest.KindBuild
			}
			req, err := manifest.ParseRequirement(d.Requirement)
			if err != nil {
				return nil, err
			}
			deps = append(deps, manifest.Dependency{
				Name: d.Name, Requirement: req, RequirementText: d.Requirement,
				Origin: ident.Registry(s.URL), Kind: kind, Optional: d.Optional,
				DefaultFeatures: d.DefaultFeatures, FeaturesRequested: d.Features, Rename: d.Package,
			})
		}
		summary, errList := manifest.NewSummary(id, deps, e.Features, e.Links)
		if errList != nil {
			return nil, errList
		}
		out = append(out, summary)
	}
	return out, nil
}

// Download fetches the tarball for id (if not already cached) and
// extracts it, returning the extracted directory and its checksum.
func (s *RegistrySource) Download(ctx context.Context, id ident.PackageId) (Package, error) {
	name, version := id.Name.String(), id.Version
	checksum := s.checksumFor(name, version)

	destDir := filepath.Join(s.CacheDir, "src", fmt.Sprintf("%s-%s-%s", name, version, checksum))
	if info, err := os.Stat(destDir); err == nil && info.IsDir() {
		return Package{ID: id, Dir: destDir, Checksum: checksum}, nil
	}

	tarballPath := filepath.Join(s.CacheDir, "cache", fmt.Sprintf("%s-%s.crate", name, version))
	if err := os.MkdirAll(filepath.Dir(tarballPath), 0o755); err != nil {
		return Package{}, err
	}
	if err := s.fetchTarball(ctx, name, version, tarballPath); err != nil {
		return Package{}, err
	}
	if err := verifyChecksum(tarballPath, checksum); err != nil {
		return Package{}, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Package{}, err
	}
	if err := extractor.NewTgz().Extract(tarballPath, destDir); err != nil {
		return Package{}, &errs.FieldError{Kind: errs.KindSource, Field: tarballPath, Detail: "extracting package tarball", Wrapped: err}
	}

	return Package{ID: id, Dir: destDir, Checksum: checksum}, nil
}

func (s *RegistrySource) fetchTarball(ctx context.Context, name, version, dest string) error {
	url := fmt.Sprintf("%s/api/v1/crates/%s/%s/download", s.URL, name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return &errs.FieldError{Kind: errs.KindSource, Field: url, Detail: "downloading package", Wrapped: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &errs.FieldError{Kind: errs.KindSource, Field: url, Detail: fmt.Sprintf("download returned status %d", resp.StatusCode)}
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func (s *RegistrySource) checksumFor(name, version string) string {
	for _, e := range s.index[name] {
		if e.Version == version {
			return e.Checksum
		}
	}
	return ""
}

func verifyChecksum(path, want string) error {
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return &errs.FieldError{Kind: errs.KindSource, Field: path, Detail: fmt.Sprintf("checksum mismatch: want %s, got %s", want, got)}
	}
	return nil
}

// Fingerprint returns "registry:" followed by URL; it does not change
// when the index contents change.
func (s *RegistrySource) Fingerprint() string { return "registry:" + s.URL }

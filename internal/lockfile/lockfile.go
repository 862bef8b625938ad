// Package lockfile reads and writes forge.lock, the TOML round-trip
// serialization of a resolver.Resolve. Field ordering is
// always sorted so that parse(serialize(r)) reproduces r's packages,
// dependency edges and checksums regardless of the order the resolver
// happened to discover packages in. Feature sets are not stored.
package lockfile

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/resolver"
)

const lockfileVersion = 3

// rawLockfile is the on-disk shape: a version stamp plus a sorted list of
// packages, each naming its own dependency refs and an optional checksum.
type rawLockfile struct {
	Version  int          `toml:"version"`
	Packages []rawPackage `toml:"package"`
}

type rawPackage struct {
	Name         string      `toml:"name"`
	Version      string      `toml:"version"`
	Source       string      `toml:"source,omitempty"`
	Checksum     string      `toml:"checksum,omitempty"`
	Dependencies []rawDepRef `toml:"dependencies,omitempty"`
}

// rawDepRef identifies a dependency by the same triple a PackageId carries,
// so decoding never has to parse the composite display string back apart.
type rawDepRef struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Source  string `toml:"source,omitempty"`
}

// Write serializes r to path, sorting every field so repeated writes of
// an unchanged resolution are byte-identical.
func Write(path string, r *resolver.Resolve) error {
	raw := toRaw(r)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return &errs.FieldError{Kind: errs.KindResolution, Field: path, Detail: "encoding lockfile", Wrapped: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return &errs.FieldError{Kind: errs.KindResolution, Field: path, Detail: "writing lockfile", Wrapped: err}
	}
	return os.Rename(tmp, path)
}

// Read parses path back into a resolver.Resolve. Because every
// serialization sorts its fields, Read(path) after Write(path, r)
// reconstructs r's packages, dependency edges and checksums; the lockfile
// does not store feature sets, so the returned Features map is empty.
func Read(path string) (*resolver.Resolve, error) {
	var raw rawLockfile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, &errs.FieldError{Kind: errs.KindResolution, Field: path, Detail: "parsing lockfile", Wrapped: err}
	}
	return fromRaw(&raw), nil
}

func toRaw(r *resolver.Resolve) *rawLockfile {
	raw := &rawLockfile{Version: lockfileVersion}

	for _, id := range r.Packages {
		depIDs := append([]ident.PackageId(nil), r.Dependencies[id.String()]...)
		sort.Slice(depIDs, func(i, j int) bool { return depIDs[i].Less(depIDs[j]) })

		refs := make([]rawDepRef, 0, len(depIDs))
		for _, d := range depIDs {
			refs = append(refs, rawDepRef{Name: d.Name.String(), Version: d.Version, Source: d.Origin.String()})
		}

		pkg := rawPackage{
			Name:         id.Name.String(),
			Version:      id.Version,
			Source:       id.Origin.String(),
			Checksum:     r.Checksums[id.String()],
			Dependencies: refs,
		}
		raw.Packages = append(raw.Packages, pkg)
	}

	sort.Slice(raw.Packages, func(i, j int) bool {
		if raw.Packages[i].Name != raw.Packages[j].Name {
			return raw.Packages[i].Name < raw.Packages[j].Name
		}
		return raw.Packages[i].Version < raw.Packages[j].Version
	})

	return raw
}

func fromRaw(raw *rawLockfile) *resolver.Resolve {
	r := &resolver.Resolve{
		Dependencies: map[string][]ident.PackageId{},
		Features:     map[string][]string{},
		Checksums:    map[string]string{},
	}

	for _, p := range raw.Packages {
		id := ident.NewPackageId(p.Name, p.Version, originFromString(p.Source))
		r.Packages = append(r.Packages, id)
		if p.Checksum != "" {
			r.Checksums[id.String()] = p.Checksum
		}
	}

	for i, p := range raw.Packages {
		id := r.Packages[i]
		var deps []ident.PackageId
		for _, ref := range p.Dependencies {
			deps = append(deps, ident.NewPackageId(ref.Name, ref.Version, originFromString(ref.Source)))
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i].Less(deps[j]) })
		r.Dependencies[id.String()] = deps
	}

	sort.Slice(r.Packages, func(i, j int) bool { return r.Packages[i].Less(r.Packages[j]) })
	return r
}

// originFromString is the inverse of SourceOrigin.String(): registry, path
// and git origins, including a git origin's pinned reference, all
// round-trip through the lockfile.
func originFromString(s string) ident.SourceOrigin {
	switch {
	case len(s) > len("registry+") && s[:len("registry+")] == "registry+":
		return ident.Registry(s[len("registry+"):])
	case len(s) > len("path+") && s[:len("path+")] == "path+":
		return ident.Path(s[len("path+"):])
	case len(s) > len("git+") && s[:len("git+")] == "git+":
		url, refText, _ := strings.Cut(s[len("git+"):], "?")
		kind, value, _ := strings.Cut(refText, "=")
		ref := ident.Reference{Kind: ident.ReferenceDefaultBranch}
		switch kind {
		case "tag":
			ref = ident.Reference{Kind: ident.ReferenceTag, Value: value}
		case "branch":
			ref = ident.Reference{Kind: ident.ReferenceBranch, Value: value}
		case "rev":
			ref = ident.Reference{Kind: ident.ReferenceRev, Value: value}
		}
		return ident.Git(url, ref)
	default:
		return ident.SourceOrigin{}
	}
}

// Package resolver implements a backtracking dependency resolver: given
// workspace root summaries and a set of sources, it produces a Resolve
// satisfying every dependency's version requirement and feature closure.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
	"github.com/vikramraodp/forge/internal/source"
)

// Resolve is the immutable output of a successful resolution.
type Resolve struct {
	Packages     []ident.PackageId
	Dependencies map[string][]ident.PackageId // keyed by PackageId.String()
	Features     map[string][]string          // keyed by PackageId.String()
	// Checksums holds, keyed by PackageId.String(), the tarball checksum of
	// a registry package or the resolved commit of a git package. Populated
	// once packages are downloaded; path origins have no entry.
	Checksums map[string]string
}

// UpdateMode controls how aggressively re-resolution may disturb a prior
// lock.
type UpdateMode int

// The two update strategies; "precise" (pin an exact version for one or
// more packages) is expressed through Request.Precise rather than as a
// third mode.
const (
	UpdatePreferExisting UpdateMode = iota
	UpdateAggressive
)

// Request bundles the resolver's input.
type Request struct {
	Roots       []*manifest.Summary
	Registries  []source.Source
	Prior       *Resolve
	ForceUpdate map[string]bool
	Precise     map[string]string
	Mode        UpdateMode
}

// ConflictTrace is the layered explanation produced when the search space
// is exhausted without a solution.
type ConflictTrace struct {
	Dependency string
	Path       []ident.PackageId
	Constraint string
}

func (c *ConflictTrace) Error() string {
	parts := make([]string, len(c.Path))
	for i, id := range c.Path {
		parts[i] = id.String()
	}
	return fmt.Sprintf("cannot resolve dependency %q: %s (candidate path: %s)",
		c.Dependency, c.Constraint, strings.Join(parts, " -> "))
}

type node struct {
	id       ident.PackageId
	summary  *manifest.Summary
	features map[string]bool
	deps     []ident.PackageId
}

type resolver struct {
	req        Request
	ctx        context.Context
	summaries  map[string][]*manifest.Summary // cache key: name+"@"+origin
	active     map[string]*node               // key: PackageId.String()
	resolving  map[string]bool                // ids currently on the DFS stack (cycle guard)
	nameSource map[string]ident.PackageId     // key: name+"@"+origin.String(), one source per name+origin
	links      map[string]ident.PackageId     // key: links value, enforces at most one package per native link target
	order      []ident.PackageId
}

// Resolve runs the backtracking DFS algorithm over req and returns the
// resulting dependency graph, or a *ConflictTrace if the search space
// was exhausted.
func Resolve(ctx context.Context, req Request) (*Resolve, error) {
	r := &resolver{
		req:        req,
		ctx:        ctx,
		summaries:  map[string][]*manifest.Summary{},
		active:     map[string]*node{},
		resolving:  map[string]bool{},
		nameSource: map[string]ident.PackageId{},
		links:      map[string]ident.PackageId{},
	}

	for _, root := range req.Roots {
		if err := r.activateRoot(root); err != nil {
			return nil, err
		}
	}

	return r.build(), nil
}

func (r *resolver) activateRoot(summary *manifest.Summary) error {
	id := summary.ID
	key := id.String()
	if _, ok := r.active[key]; ok {
		return nil
	}

	n := &node{id: id, summary: summary, features: map[string]bool{}}
	for _, name := range summary.DefaultActivations() {
		r.activateFeature(summary, name, n.features)
	}

	r.active[key] = n
	r.nameSource[id.Name.String()+"@"+id.Origin.String()] = id
	if summary.Links != "" {
		r.links[summary.Links] = id
	}
	r.order = append(r.order, id)

	r.resolving[key] = true
	defer delete(r.resolving, key)
	return r.resolveDeps(summary, id, true)
}

// resolveDeps resolves every dependency declared by summary, honoring dev
// deps only for root packages and optional deps only when a feature
// has activated them.
func (r *resolver) resolveDeps(summary *manifest.Summary, parentID ident.PackageId, isRoot bool) error {
	n := r.active[parentID.String()]
	for _, dep := range summary.Dependencies {
		if dep.Kind == manifest.KindDev && !isRoot {
			continue
		}
		if dep.Optional && !n.features[dep.PackageName()] {
			continue
		}
		id, err := r.resolveDependency(dep)
		if err != nil {
			return err
		}
		n.deps = append(n.deps, *id)
	}
	return nil
}

// resolveDependency tries each candidate for dep in order, backtracking to
// the next candidate on any conflict.
func (r *resolver) resolveDependency(dep manifest.Dependency) (*ident.PackageId, error) {
	candidates, err := r.candidatesFor(dep)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &ConflictTrace{
			Dependency: dep.PackageName(),
			Constraint: fmt.Sprintf("no candidate satisfies requirement %q", dep.RequirementText),
		}
	}

	var lastErr error
	for _, cand := range candidates {
		id, err := r.tryActivate(dep, cand)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// tryActivate attempts to bind dep to summary. On success the node is left
// in r.active; on failure any partial state is rolled back so the caller
// can try the next candidate.
func (r *resolver) tryActivate(dep manifest.Dependency, summary *manifest.Summary) (*ident.PackageId, error) {
	id := summary.ID
	key := id.String()

	if r.resolving[key] {
		if dep.Kind == manifest.KindDev {
			// Dev edges are non-transitive: a dev-dep cycle
			// back to an in-progress activation is permitted, not an error.
			return &id, nil
		}
		return nil, &ConflictTrace{Dependency: dep.PackageName(), Path: []ident.PackageId{id}, Constraint: "dependency cycle detected"}
	}

	nsKey := id.Name.String() + "@" + id.Origin.String()
	if existing, ok := r.nameSource[nsKey]; ok && existing.Version != id.Version {
		return nil, &ConflictTrace{
			Dependency: dep.PackageName(),
			Path:       []ident.PackageId{existing, id},
			Constraint: "two incompatible versions of the same package from the same source",
		}
	}

	if summary.Links != "" {
		if owner, ok := r.links[summary.Links]; ok && owner.String() != key {
			return nil, &ConflictTrace{
				Dependency: dep.PackageName(),
				Path:       []ident.PackageId{owner, id},
				Constraint: fmt.Sprintf("links key %q already claimed by %s", summary.Links, owner),
			}
		}
	}

	if existing, ok := r.active[key]; ok {
		r.mergeFeatures(existing, dep, summary)
		return &id, nil
	}

	features := r.activationFeatures(dep, summary)
	n := &node{id: id, summary: summary, features: features}
	r.active[key] = n
	r.nameSource[nsKey] = id
	if summary.Links != "" {
		r.links[summary.Links] = id
	}
	r.order = append(r.order, id)
	r.resolving[key] = true

	if err := r.resolveDeps(summary, id, false); err != nil {
		delete(r.resolving, key)
		delete(r.active, key)
		delete(r.nameSource, nsKey)
		if summary.Links != "" {
			delete(r.links, summary.Links)
		}
		r.order = r.order[:len(r.order)-1]
		return nil, err
	}
	delete(r.resolving, key)

	return &id, nil
}

// candidatesFor queries dep's source (caching per name+origin) and orders
// the matches: prior-lock version first unless forced to update (by name
// or by UpdateAggressive), then highest version descending; a precise pin
// narrows the set to exactly one version.
func (r *resolver) candidatesFor(dep manifest.Dependency) ([]*manifest.Summary, error) {
	name := dep.PackageName()
	cacheKey := name + "@" + dep.Origin.String()

	all, ok := r.summaries[cacheKey]
	if !ok {
		src := r.sourceFor(dep.Origin)
		if src == nil {
			return nil, errs.NotFound(name, fmt.Sprintf("no source configured for origin %s", dep.Origin))
		}
		queried, err := src.Query(r.ctx, name)
		if err != nil {
			return nil, err
		}
		all = queried
		r.summaries[cacheKey] = all
	}

	return r.filterAndOrder(dep, all)
}

func (r *resolver) sourceFor(origin ident.SourceOrigin) source.Source {
	for _, src := range r.req.Registries {
		fp := src.Fingerprint()
		switch origin.Kind {
		case ident.OriginPath:
			if fp == "path:"+origin.Dir {
				return src
			}
		case ident.OriginGit:
			if strings.HasPrefix(fp, "git:"+origin.URL) {
				return src
			}
		case ident.OriginRegistry:
			if fp == "registry:"+origin.URL {
				return src
			}
		}
	}
	return nil
}

func (r *resolver) filterAndOrder(dep manifest.Dependency, all []*manifest.Summary) ([]*manifest.Summary, error) {
	name := dep.PackageName()

	var matches []*manifest.Summary
	for _, s := range all {
		ok, err := dep.Matches(s.ID.Version)
		if err != nil {
			return nil, errs.Invalid(fmt.Sprintf("dependencies[%s]", name), s.ID.Version, err.Error())
		}
		if !ok {
			continue
		}
		if pin, pinned := r.req.Precise[name]; pinned && s.ID.Version != pin {
			continue
		}
		matches = append(matches, s)
	}

	priorVersion := ""
	if r.req.Prior != nil && r.req.Mode != UpdateAggressive && !r.req.ForceUpdate[name] {
		for _, id := range r.req.Prior.Packages {
			if id.Name.String() == name {
				priorVersion = id.Version
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		vi, vj := matches[i].ID.Version, matches[j].ID.Version
		if priorVersion != "" {
			if vi == priorVersion {
				return true
			}
			if vj == priorVersion {
				return false
			}
		}
		si, errI := semver.NewVersion(vi)
		sj, errJ := semver.NewVersion(vj)
		if errI == nil && errJ == nil {
			return si.GreaterThan(sj)
		}
		return vi > vj
	})

	return matches, nil
}

// activationFeatures computes the feature set a dependency edge activates:
// its defaults (unless default-features = false) plus any explicitly
// requested features, expanded transitively.
func (r *resolver) activationFeatures(dep manifest.Dependency, summary *manifest.Summary) map[string]bool {
	active := map[string]bool{}
	if dep.DefaultFeatures {
		for _, f := range summary.DefaultActivations() {
			r.activateFeature(summary, f, active)
		}
	}
	for _, f := range dep.FeaturesRequested {
		r.activateFeature(summary, f, active)
	}
	return active
}

func (r *resolver) activateFeature(summary *manifest.Summary, name string, active map[string]bool) {
	if active[name] {
		return
	}
	active[name] = true
	for _, sub := range summary.Features[name] {
		if depName, _, isDepFeat := strings.Cut(sub, "/"); isDepFeat {
			active[depName] = true
			continue
		}
		r.activateFeature(summary, sub, active)
	}
}

func (r *resolver) mergeFeatures(n *node, dep manifest.Dependency, summary *manifest.Summary) {
	extra := r.activationFeatures(dep, summary)
	for f := range extra {
		n.features[f] = true
	}
}

// build assembles the final Resolve from accumulated resolver state,
// sorting everything for deterministic output.
func (r *resolver) build() *Resolve {
	sort.Slice(r.order, func(i, j int) bool { return r.order[i].Less(r.order[j]) })

	deps := make(map[string][]ident.PackageId, len(r.active))
	feats := make(map[string][]string, len(r.active))
	for key, n := range r.active {
		d := append([]ident.PackageId(nil), n.deps...)
		sort.Slice(d, func(i, j int) bool { return d[i].Less(d[j]) })
		deps[key] = d

		names := make([]string, 0, len(n.features))
		for f := range n.features {
			names = append(names, f)
		}
		sort.Strings(names)
		feats[key] = names
	}

	return &Resolve{Packages: r.order, Dependencies: deps, Features: feats, Checksums: map[string]string{}}
}

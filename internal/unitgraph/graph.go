package unitgraph

import (
	"fmt"

	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// PackageEntry is the subset of a resolved package's manifest the graph
// builder needs: its Summary (for dependency kinds) and its Targets (for
// library/build-script lookup).
type PackageEntry struct {
	Summary *manifest.Summary
	Targets []manifest.Target
}

// Request bundles the inputs to Build: the root package and the targets
// and modes requested for it, every resolved package's entry, and the
// dependency/feature maps a resolver.Resolve produces.
type Request struct {
	RootID       ident.PackageId
	RootTargets  []manifest.Target
	Modes        []CompileMode
	Profile      manifest.Profile
	Packages     map[string]PackageEntry      // keyed by PackageId.String()
	Dependencies map[string][]ident.PackageId // keyed by PackageId.String()
	Features     map[string][]string          // keyed by PackageId.String()
}

// Graph is the deduplicated, acyclic set of Units a build plans.
type Graph struct {
	Roots []Unit
	Edges map[string][]Unit // keyed by Unit.Key()

	units map[string]Unit
}

// Lookup returns the Unit stored under key, if any.
func (g *Graph) Lookup(key string) (Unit, bool) {
	u, ok := g.units[key]
	return u, ok
}

// AllUnits returns every Unit in the graph, in no particular order.
func (g *Graph) AllUnits() []Unit {
	out := make([]Unit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	return out
}

type builder struct {
	req   Request
	units map[string]Unit
	edges map[string][]Unit
	color map[string]int // 0 unvisited, 1 in progress, 2 done
}

// Build constructs the unit graph for req, following the dependency rules
// for Build/Check/Test/Bench/Doc/RunCustomBuild Units. It returns an error if the graph would be cyclic (a
// Unit's construction can never legitimately re-enter itself, unlike the
// resolver's permitted dev-edge package cycles).
func Build(req Request) (*Graph, error) {
	b := &builder{
		req:   req,
		units: map[string]Unit{},
		edges: map[string][]Unit{},
		color: map[string]int{},
	}

	var roots []Unit
	for _, mode := range req.Modes {
		for _, target := range req.RootTargets {
			u := Unit{
				Package:  req.RootID,
				Target:   target,
				Mode:     mode,
				Kind:     KindTarget,
				Profile:  req.Profile,
				Features: req.Features[req.RootID.String()],
			}
			if err := b.visit(u); err != nil {
				return nil, err
			}
			roots = append(roots, u)
		}
	}

	return &Graph{Roots: roots, Edges: b.edges, units: b.units}, nil
}

func (b *builder) visit(u Unit) error {
	key := u.Key()
	switch b.color[key] {
	case 2:
		return nil
	case 1:
		return fmt.Errorf("unit graph cycle detected at %s", key)
	}

	b.color[key] = 1
	b.units[key] = u

	deps, err := b.dependenciesOf(u)
	if err != nil {
		return err
	}
	for _, d := range deps {
		if err := b.visit(d); err != nil {
			return err
		}
	}

	b.edges[key] = deps
	b.color[key] = 2
	return nil
}

func (b *builder) dependenciesOf(u Unit) ([]Unit, error) {
	entry, ok := b.req.Packages[u.Package.String()]
	if !ok {
		return nil, fmt.Errorf("unit graph: no package entry resolved for %s", u.Package)
	}

	buildScript, hasCustomBuild := customBuildTargetOf(entry.Targets)

	var deps []Unit
	if hasCustomBuild && u.Mode != RunCustomBuild && u.Target.Kind != manifest.TargetCustomBuild {
		deps = append(deps, Unit{
			Package: u.Package, Target: buildScript, Mode: RunCustomBuild,
			Kind: KindHost, Profile: u.Profile, Features: u.Features,
		})
	}

	switch u.Mode {
	case Build, Check:
		deps = append(deps, b.resolvedDeps(u, wantKinds(manifest.KindNormal, manifest.KindBuild), Build)...)

	case Test, Bench:
		deps = append(deps, b.resolvedDeps(u, wantKinds(manifest.KindNormal, manifest.KindBuild), Build)...)
		if lib, ok := libTargetOf(entry.Targets); ok {
			deps = append(deps, Unit{
				Package: u.Package, Target: lib, Mode: Build,
				Kind: KindTarget, Profile: u.Profile, Features: u.Features,
			})
		}
		deps = append(deps, b.resolvedDeps(u, wantKinds(manifest.KindDev), Build)...)

	case Doc:
		deps = append(deps, b.resolvedDeps(u, wantKinds(manifest.KindNormal), Doc)...)

	case RunCustomBuild:
		deps = append(deps, Unit{
			Package: u.Package, Target: buildScript, Mode: Build,
			Kind: KindHost, Profile: u.Profile, Features: u.Features,
		})
	}

	return deps, nil
}

// resolvedDeps matches u's package's declared dependencies of the wanted
// kinds against the resolved dependency ids, producing a Build/Doc Unit
// for each one's library target. Build-kind dependencies compile for the
// host; normal and dev dependencies compile for the target.
func (b *builder) resolvedDeps(u Unit, wanted map[manifest.DependencyKind]bool, mode CompileMode) []Unit {
	entry := b.req.Packages[u.Package.String()]
	resolvedIDs := b.req.Dependencies[u.Package.String()]

	byName := make(map[string]ident.PackageId, len(resolvedIDs))
	for _, id := range resolvedIDs {
		byName[id.Name.String()] = id
	}

	var deps []Unit
	for _, d := range entry.Summary.Dependencies {
		if !wanted[d.Kind] {
			continue
		}
		depID, ok := byName[d.PackageName()]
		if !ok {
			continue // optional dependency not activated by any feature
		}
		depEntry, ok := b.req.Packages[depID.String()]
		if !ok {
			continue
		}
		lib, hasLib := libTargetOf(depEntry.Targets)
		if !hasLib {
			continue // header-only / bin-only dependency contributes nothing to link against
		}

		kind := KindTarget
		if d.Kind == manifest.KindBuild {
			kind = KindHost
		}
		deps = append(deps, Unit{
			Package: depID, Target: lib, Mode: mode, Kind: kind,
			Profile: u.Profile, Features: b.req.Features[depID.String()],
		})
	}
	return deps
}

func wantKinds(kinds ...manifest.DependencyKind) map[manifest.DependencyKind]bool {
	m := make(map[manifest.DependencyKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func libTargetOf(targets []manifest.Target) (manifest.Target, bool) {
	for _, t := range targets {
		if t.Kind == manifest.TargetLib {
			return t, true
		}
	}
	return manifest.Target{}, false
}

func customBuildTargetOf(targets []manifest.Target) (manifest.Target, bool) {
	for _, t := range targets {
		if t.Kind == manifest.TargetCustomBuild {
			return t, true
		}
	}
	return manifest.Target{}, false
}

package core

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vikramraodp/forge/internal/config"
	"github.com/vikramraodp/forge/internal/fingerprint"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/layout"
	"github.com/vikramraodp/forge/internal/lockfile"
	"github.com/vikramraodp/forge/internal/manifest"
	"github.com/vikramraodp/forge/internal/resolver"
	"github.com/vikramraodp/forge/internal/scheduler"
	"github.com/vikramraodp/forge/internal/source"
	"github.com/vikramraodp/forge/internal/unitgraph"
)

// selectMembers picks which workspace members an invocation targets, per
// the --package/--workspace/--exclude flags.
func selectMembers(ws *manifest.Workspace, opts CommonOptions) ([]*manifest.Manifest, error) {
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, n := range opts.Exclude {
		excluded[n] = true
	}

	if opts.Workspace {
		var out []*manifest.Manifest
		for _, m := range ws.MemberList() {
			if !excluded[m.Summary.ID.Name.String()] {
				out = append(out, m)
			}
		}
		return out, nil
	}

	if opts.Package != "" {
		m, ok := ws.Members[opts.Package]
		if !ok {
			return nil, fmt.Errorf("package %q not found in workspace", opts.Package)
		}
		return []*manifest.Manifest{m}, nil
	}

	cur := ws.Current()
	if cur == nil {
		return nil, fmt.Errorf("no current package; pass --package or --workspace")
	}
	return []*manifest.Manifest{cur}, nil
}

// build is the shared pipeline behind Build/Check/Test/Bench/Doc: resolve,
// lock, download, plan a unit graph per selected member, fingerprint, and
// run the scheduler skipping fresh Units.
func (e *Engine) build(ctx context.Context, manifestPath string, opts CommonOptions, modes []unitgraph.CompileMode) (*Report, error) {
	return e.buildWithFilter(ctx, manifestPath, opts, modes, "")
}

// buildWithFilter is build plus a test-binary filter string, threaded
// through to the executor, which passes it on for Test units only.
func (e *Engine) buildWithFilter(ctx context.Context, manifestPath string, opts CommonOptions, modes []unitgraph.CompileMode, testFilter string) (*Report, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	members, err := selectMembers(ws, opts)
	if err != nil {
		return nil, err
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = e.Config.TargetDirFor(ws.RootDir)
	}
	lock := config.NewTargetLock(targetDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	lockPath := filepath.Join(ws.RootDir, "forge.lock")
	resolved, srcs, err := e.resolveWorkspace(ctx, ws, lockPath, resolver.UpdatePreferExisting, nil, ws.MemberList())
	if err != nil {
		return nil, err
	}
	if !e.Config.Frozen {
		if err := lockfile.Write(lockPath, resolved); err != nil {
			return nil, err
		}
	}

	pkgDirs, entries, err := e.materialize(ctx, ws, resolved, srcs)
	if err != nil {
		return nil, err
	}

	profileName := manifest.ForMode(modeLabel(modes), opts.Release)
	report := &Report{}

	for _, member := range members {
		rootID := member.Summary.ID
		req := unitgraph.Request{
			RootID:       rootID,
			RootTargets:  selectTargets(member.Targets, modes),
			Modes:        modes,
			Profile:      member.Profiles[profileName],
			Packages:     entries,
			Dependencies: resolved.Dependencies,
			Features:     resolved.Features,
		}

		graph, err := unitgraph.Build(req)
		if err != nil {
			return nil, err
		}

		if err := e.runGraph(ctx, graph, targetDir, pkgDirs, resolved.Checksums, opts, testFilter, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

func modeLabel(modes []unitgraph.CompileMode) string {
	for _, m := range modes {
		switch m {
		case unitgraph.Test:
			return "test"
		case unitgraph.Bench:
			return "bench"
		}
	}
	return "build"
}

func selectTargets(targets []manifest.Target, modes []unitgraph.CompileMode) []manifest.Target {
	want := map[manifest.TargetKind]bool{}
	for _, m := range modes {
		switch m {
		case unitgraph.Doc:
			want[manifest.TargetLib] = true
		case unitgraph.Test:
			want[manifest.TargetLib] = true
			want[manifest.TargetTest] = true
		case unitgraph.Bench:
			want[manifest.TargetBench] = true
		default:
			want[manifest.TargetLib] = true
			want[manifest.TargetBin] = true
		}
	}
	var out []manifest.Target
	for _, t := range targets {
		if want[t.Kind] {
			out = append(out, t)
		}
	}
	return out
}

// materialize downloads (or locates) every resolved package and builds
// the unitgraph.PackageEntry map the graph builder needs. Downloads run
// concurrently, bounded by a semaphore, since each package's source
// fetch is independent of every other's.
func (e *Engine) materialize(ctx context.Context, ws *manifest.Workspace, resolved *resolver.Resolve, srcs []source.Source) (map[string]string, map[string]unitgraph.PackageEntry, error) {
	pkgDirs := map[string]string{}
	entries := map[string]unitgraph.PackageEntry{}

	for _, member := range ws.MemberList() {
		id := member.Summary.ID
		pkgDirs[id.String()] = member.RootDir
		entries[id.String()] = unitgraph.PackageEntry{Summary: member.Summary, Targets: member.Targets}
	}

	toFetch := make([]ident.PackageId, 0, len(resolved.Packages))
	for _, id := range resolved.Packages {
		if _, ok := pkgDirs[id.String()]; !ok {
			toFetch = append(toFetch, id)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(e.downloadConcurrency()))

	for _, id := range toFetch {
		id := id
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)

			src := sourceForOrigin(srcs, id.Origin)
			if src == nil {
				return fmt.Errorf("no source configured for %s", id)
			}
			pkg, err := src.Download(gctx, id)
			if err != nil {
				return err
			}
			m, err := manifest.Load(pkg.Dir)
			if err != nil {
				return err
			}

			mu.Lock()
			pkgDirs[id.String()] = pkg.Dir
			entries[id.String()] = unitgraph.PackageEntry{Summary: m.Summary, Targets: m.Targets}
			if pkg.Checksum != "" {
				resolved.Checksums[id.String()] = pkg.Checksum
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return pkgDirs, entries, nil
}

func sourceForOrigin(srcs []source.Source, origin ident.SourceOrigin) source.Source {
	for _, s := range srcs {
		fp := s.Fingerprint()
		switch origin.Kind {
		case ident.OriginPath:
			if fp == "path:"+origin.Dir {
				return s
			}
		case ident.OriginGit:
			if len(fp) >= len("git:"+origin.URL) && fp[:len("git:"+origin.URL)] == "git:"+origin.URL {
				return s
			}
		case ident.OriginRegistry:
			if fp == "registry:"+origin.URL {
				return s
			}
		}
	}
	return nil
}

// runGraph fingerprints every Unit in graph, skips fresh ones, and runs
// the rest through the scheduler.
func (e *Engine) runGraph(ctx context.Context, graph *unitgraph.Graph, targetDir string, pkgDirs map[string]string, checksums map[string]string, opts CommonOptions, testFilter string, report *Report) error {
	if len(graph.Roots) == 0 {
		return nil
	}

	tree := layout.Build(targetDir, opts.Target, string(graph.Roots[0].Profile.Name))

	targetTriple := opts.Target
	if targetTriple == "" {
		targetTriple = e.HostTriple
	}
	fps := map[string]string{}
	for _, root := range graph.Roots {
		rootFPs, err := fingerprint.Tree(root, graph, func(u unitgraph.Unit) (fingerprint.Inputs, error) {
			return e.inputsFor(u, pkgDirs, checksums, targetTriple)
		})
		if err != nil {
			return err
		}
		for key, fp := range rootFPs {
			fps[key] = fp
		}
	}

	stale := map[string]bool{}
	for key, fp := range fps {
		u, _ := graph.Lookup(key)
		path := fingerprint.Path(tree.FingerprintDirFor(hashKey(u.Package.String())), u)
		fresh, err := fingerprint.Fresh(path, fp)
		if err != nil {
			return err
		}
		report.UnitsPlanned++
		if fresh {
			report.UnitsFresh++
			continue
		}
		stale[key] = true
	}

	exec := &processExecutor{compiler: e.Compiler, tree: tree, pkgDirs: pkgDirs, flags: e.Config.Flags, testFilter: testFilter, log: e.Log}
	onlyStale := filterGraph(graph, stale)

	sch := scheduler.New(onlyStale, exec, jobsOf(opts), opts.NoFailFast, e.Metrics, e.Log)
	if err := sch.Run(ctx); err != nil {
		return err
	}

	for key := range stale {
		u, _ := graph.Lookup(key)
		if sch.State(key) != scheduler.Finished {
			if sch.State(key) == scheduler.Skipped {
				report.UnitsSkipped++
			}
			continue
		}
		report.UnitsRun++
		path := fingerprint.Path(tree.FingerprintDirFor(hashKey(u.Package.String())), u)
		outDir := tree.BuildDirFor(hashKey(u.Package.String()))
		_ = fingerprint.Write(path, fps[key], []string{outDir})
	}

	return nil
}

// filterGraph returns a Graph containing only the Units named in keep,
// preserving edges among them (a stale Unit may still depend on a fresh
// one, which simply will not be scheduled as a job of its own).
func filterGraph(graph *unitgraph.Graph, keep map[string]bool) *unitgraph.Graph {
	out := &unitgraph.Graph{Edges: map[string][]unitgraph.Unit{}}
	for _, u := range graph.AllUnits() {
		key := u.Key()
		if !keep[key] {
			continue
		}
		var deps []unitgraph.Unit
		for _, d := range graph.Edges[key] {
			if keep[d.Key()] {
				deps = append(deps, d)
			}
		}
		out.Edges[key] = deps
	}
	for _, r := range graph.Roots {
		if keep[r.Key()] {
			out.Roots = append(out.Roots, r)
		}
	}
	return out
}

func jobsOf(opts CommonOptions) int {
	if opts.Jobs > 0 {
		return opts.Jobs
	}
	return runtime.NumCPU()
}

func (e *Engine) downloadConcurrency() int {
	if e.Config.Jobs > 0 {
		return e.Config.Jobs
	}
	return runtime.NumCPU()
}

func (e *Engine) inputsFor(u unitgraph.Unit, pkgDirs map[string]string, checksums map[string]string, targetTriple string) (fingerprint.Inputs, error) {
	treeHash, err := e.sourceTreeHash(u, pkgDirs, checksums)
	if err != nil {
		return fingerprint.Inputs{}, err
	}
	return fingerprint.Inputs{
		CompilerVersion: e.CompilerVersion,
		HostTriple:      e.HostTriple,
		TargetTriple:    targetTriple,
		SourceTreeHash:  treeHash,
	}, nil
}

// sourceTreeHash answers what to hash a Unit's source against: a Path
// origin has no durable identity beyond its contents, so it is walked
// directly; Registry and Git origins already carry a durable identity
// (the package checksum, the resolved commit) captured by materialize
// into checksums.
func (e *Engine) sourceTreeHash(u unitgraph.Unit, pkgDirs map[string]string, checksums map[string]string) (string, error) {
	if u.Package.Origin.Kind != ident.OriginPath {
		if sum, ok := checksums[u.Package.String()]; ok && sum != "" {
			return sum, nil
		}
	}
	dir, ok := pkgDirs[u.Package.String()]
	if !ok {
		return "", fmt.Errorf("no source directory for %s", u.Package)
	}
	ps := source.NewPathSource(dir)
	return ps.TreeHash()
}

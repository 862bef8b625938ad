// Package core implements the Engine: the single orchestrator tying
// manifest loading, workspace assembly, dependency resolution, lockfile
// persistence, unit-graph construction, fingerprinting and scheduled
// execution into one operation per CLI subcommand. It is a struct
// carrying process-wide config plus one method per subcommand, each
// loading and validating the manifest before doing its actual work.
package core

import (
	"context"
	"fmt"

	"github.com/vikramraodp/forge/internal/config"
	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
	"github.com/vikramraodp/forge/internal/metrics"
	"github.com/vikramraodp/forge/internal/resolver"
	"github.com/vikramraodp/forge/internal/source"
	"github.com/vikramraodp/forge/internal/ui"
)

// Engine is the top-level entry point every CLI subcommand calls through.
type Engine struct {
	Config  config.Config
	Log     *ui.Logger
	Metrics *metrics.Recorder

	// HostTriple/CompilerVersion feed the fingerprint; defaulted by New but overridable for cross-compilation.
	HostTriple      string
	CompilerVersion string

	// Compiler is the subprocess Execute invokes for each Unit; defaulted
	// to "forgec", the project's own compiler front-end binary name.
	Compiler string
}

// New builds an Engine from a loaded Config.
func New(cfg config.Config, log *ui.Logger, rec *metrics.Recorder) *Engine {
	return &Engine{
		Config:          cfg,
		Log:             log,
		Metrics:         rec,
		HostTriple:      defaultHostTriple(),
		CompilerVersion: "unknown",
		Compiler:        "forgec",
	}
}

// LoadManifest loads and validates the manifest/workspace rooted at
// manifestPath, the first step of every operation.
func (e *Engine) LoadManifest(manifestPath string) (*manifest.Workspace, error) {
	ws, err := manifest.LoadWorkspace(manifestPath)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// resolveWorkspace runs dependency resolution with every manifest in
// members as a root, honoring Frozen/Locked/Offline and an
// existing lockfile.
func (e *Engine) resolveWorkspace(ctx context.Context, ws *manifest.Workspace, lockPath string, mode resolver.UpdateMode, forceUpdate map[string]bool, members []*manifest.Manifest) (*resolver.Resolve, []source.Source, error) {
	prior, _ := e.tryReadLock(lockPath)
	if e.Config.Locked && prior == nil {
		return nil, nil, fmt.Errorf("the lockfile needs updating but --locked was passed")
	}

	roots := make([]*manifest.Summary, 0, len(members))
	for _, m := range members {
		roots = append(roots, m.Summary)
	}

	srcs, err := e.collectSources(ctx, members)
	if err != nil {
		return nil, nil, err
	}

	req := resolver.Request{
		Roots:       roots,
		Registries:  srcs,
		Prior:       prior,
		ForceUpdate: forceUpdate,
		Mode:        mode,
	}

	resolved, err := resolver.Resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return resolved, srcs, nil
}

func (e *Engine) tryReadLock(lockPath string) (*resolver.Resolve, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("no lockfile path")
	}
	return readLockIfExists(lockPath)
}

// collectSources discovers every distinct source a resolution might
// touch. The resolver only ever queries a source already present in
// Request.Registries, so path/git origins (whose dependency graphs are
// not known until their manifest is read) must be discovered up front by
// walking the declared dependency graph to a fixpoint — registry origins
// need only one Source per registry URL, since a registry serves its
// entire namespace through one index.
func (e *Engine) collectSources(ctx context.Context, members []*manifest.Manifest) ([]source.Source, error) {
	registries := map[string]source.Source{}
	seen := map[string]bool{}
	var queue []manifest.Dependency

	for _, m := range members {
		seen[ident.Path(m.RootDir).String()] = true
		queue = append(queue, m.Summary.Dependencies...)
	}

	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]

		key := dep.Origin.String()
		switch dep.Origin.Kind {
		case ident.OriginRegistry:
			if _, ok := registries[key]; !ok {
				rs := source.NewRegistrySource(dep.Origin.URL, e.registryCacheDir(dep.Origin.URL))
				rs.Offline = e.Config.Net.Offline
				registries[key] = rs
			}
			continue
		case ident.OriginPath:
			if seen[key] {
				continue
			}
			seen[key] = true
			ps := source.NewPathSource(dep.Origin.Dir)
			registries[key] = ps
			m, err := manifest.Load(dep.Origin.Dir)
			if err != nil {
				return nil, err
			}
			queue = append(queue, m.Summary.Dependencies...)
		case ident.OriginGit:
			if seen[key] {
				continue
			}
			seen[key] = true
			gs := source.NewGitSource(dep.Origin.URL, dep.Origin.Reference, e.gitCheckoutsDir())
			if err := gs.Update(ctx); err != nil {
				return nil, err
			}
			registries[key] = gs
			pkg, err := gs.Download(ctx, ident.PackageId{})
			if err == nil {
				if m, err := manifest.Load(pkg.Dir); err == nil {
					queue = append(queue, m.Summary.Dependencies...)
				}
			}
		}
	}

	out := make([]source.Source, 0, len(registries))
	for _, s := range registries {
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) registryCacheDir(url string) string {
	return joinHome(e.Config.Home, "registry", hashKey(url))
}

func (e *Engine) gitCheckoutsDir() string {
	return joinHome(e.Config.Home, "git", "checkouts")
}

func defaultHostTriple() string {
	return "x86_64-unknown-linux-gnu"
}

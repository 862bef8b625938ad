package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	shutil "github.com/termie/go-shutil"
	"github.com/vikramraodp/forge/internal/config"
	"github.com/vikramraodp/forge/internal/layout"
	"github.com/vikramraodp/forge/internal/lockfile"
	"github.com/vikramraodp/forge/internal/manifest"
	"github.com/vikramraodp/forge/internal/resolver"
	"github.com/vikramraodp/forge/internal/unitgraph"
)

// Build compiles every selected target in its dev or release profile.
func (e *Engine) Build(ctx context.Context, manifestPath string, opts BuildOptions) (*Report, error) {
	return e.build(ctx, manifestPath, opts.CommonOptions, []unitgraph.CompileMode{unitgraph.Build})
}

// Check type-checks every selected target without producing a linkable
// artifact, reusing the same pipeline as Build under a different mode.
func (e *Engine) Check(ctx context.Context, manifestPath string, opts BuildOptions) (*Report, error) {
	return e.build(ctx, manifestPath, opts.CommonOptions, []unitgraph.CompileMode{unitgraph.Check})
}

// Test builds and runs every test target.
func (e *Engine) Test(ctx context.Context, manifestPath string, opts TestOptions) (*Report, error) {
	return e.buildWithFilter(ctx, manifestPath, opts.CommonOptions, []unitgraph.CompileMode{unitgraph.Test}, opts.TestFilter)
}

// Bench builds and runs every benchmark target.
func (e *Engine) Bench(ctx context.Context, manifestPath string, opts TestOptions) (*Report, error) {
	return e.buildWithFilter(ctx, manifestPath, opts.CommonOptions, []unitgraph.CompileMode{unitgraph.Bench}, opts.TestFilter)
}

// Doc builds the Doc units for every selected package and writes an HTML
// index page linking each one's generated page.
func (e *Engine) Doc(ctx context.Context, manifestPath string, opts DocOptions) (*Report, string, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, "", err
	}
	members, err := selectMembers(ws, opts.CommonOptions)
	if err != nil {
		return nil, "", err
	}

	report, err := e.build(ctx, manifestPath, opts.CommonOptions, []unitgraph.CompileMode{unitgraph.Doc})
	if err != nil {
		return report, "", err
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = e.Config.TargetDirFor(ws.RootDir)
	}
	profileName := manifest.ForMode("build", opts.Release)
	tree := layout.Build(targetDir, opts.Target, string(profileName))

	list := layout.NewList()
	for _, m := range members {
		for _, t := range m.Targets {
			if t.Kind != manifest.TargetLib {
				continue
			}
			href := fmt.Sprintf("%s/index.html", t.Name)
			list.Add(layout.Leaf{Label: m.Summary.ID.Name.String(), Href: href})
		}
	}
	page := layout.IndexPage("forge doc", list)

	if err := os.MkdirAll(tree.Doc, 0o755); err != nil {
		return report, "", err
	}
	indexPath := filepath.Join(tree.Doc, "index.html")
	if err := os.WriteFile(indexPath, []byte(page), 0o644); err != nil {
		return report, "", err
	}

	if opts.Open {
		if err := openBrowser(indexPath); err != nil {
			e.Log.Warnf("could not open %s: %v", indexPath, err)
		}
	}

	return report, indexPath, nil
}

func openBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Run()
}

// Run builds the current package's binary targets then executes the
// chosen one as a subprocess, passing through its exit code.
func (e *Engine) Run(ctx context.Context, manifestPath string, opts RunOptions) (int, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return 1, err
	}
	cur := ws.Current()
	if cur == nil {
		return 1, fmt.Errorf("no current package to run; pass --package")
	}

	bin, err := selectBinary(cur.Targets, opts.Bin)
	if err != nil {
		return 1, err
	}

	runOpts := opts.CommonOptions
	runOpts.Package = cur.Summary.ID.Name.String()
	if _, err := e.build(ctx, manifestPath, runOpts, []unitgraph.CompileMode{unitgraph.Build}); err != nil {
		return 1, err
	}

	targetDir := runOpts.TargetDir
	if targetDir == "" {
		targetDir = e.Config.TargetDirFor(ws.RootDir)
	}
	profileName := manifest.ForMode("build", runOpts.Release)
	profile := cur.Profiles[profileName]
	binPath := filepath.Join(targetDir, string(profile.Name), bin.Name)

	cmd := exec.CommandContext(ctx, binPath, opts.Args...)
	cmd.Dir = ws.RootDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

func selectBinary(targets []manifest.Target, want string) (manifest.Target, error) {
	var bins []manifest.Target
	for _, t := range targets {
		if t.Kind == manifest.TargetBin {
			bins = append(bins, t)
		}
	}
	if want != "" {
		for _, b := range bins {
			if b.Name == want {
				return b, nil
			}
		}
		return manifest.Target{}, fmt.Errorf("no binary target named %q", want)
	}
	if len(bins) == 1 {
		return bins[0], nil
	}
	if len(bins) == 0 {
		return manifest.Target{}, fmt.Errorf("no binary targets to run")
	}
	return manifest.Target{}, fmt.Errorf("more than one binary target; pass --bin to disambiguate")
}

// Install builds the named package's binary targets in release mode and
// copies each into the install root (FORGE_HOME/bin), the global
// location the shell PATH is expected to include.
func (e *Engine) Install(ctx context.Context, manifestPath string, opts CommonOptions) ([]string, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	members, err := selectMembers(ws, opts)
	if err != nil {
		return nil, err
	}

	installOpts := opts
	installOpts.Release = true
	if _, err := e.build(ctx, manifestPath, installOpts, []unitgraph.CompileMode{unitgraph.Build}); err != nil {
		return nil, err
	}

	targetDir := installOpts.TargetDir
	if targetDir == "" {
		targetDir = e.Config.TargetDirFor(ws.RootDir)
	}
	profileName := manifest.ForMode("build", true)
	binDir := filepath.Join(targetDir, string(profileName))
	installRoot := filepath.Join(e.Config.Home, "bin")
	if err := os.MkdirAll(installRoot, 0o755); err != nil {
		return nil, err
	}

	var installed []string
	for _, m := range members {
		for _, t := range m.Targets {
			if t.Kind != manifest.TargetBin {
				continue
			}
			src := filepath.Join(binDir, t.Name)
			dst := filepath.Join(installRoot, t.Name)
			_ = os.Remove(dst)
			if err := shutil.Copy(src, dst, false); err != nil {
				return installed, err
			}
			if err := os.Chmod(dst, 0o755); err != nil {
				return installed, err
			}
			installed = append(installed, dst)
		}
	}
	return installed, nil
}

// Clean removes the target directory.
func (e *Engine) Clean(ctx context.Context, manifestPath string, opts CommonOptions) error {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = e.Config.TargetDirFor(ws.RootDir)
	}
	lock := config.NewTargetLock(targetDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()
	return os.RemoveAll(targetDir)
}

// Fetch resolves and downloads every dependency without building anything.
func (e *Engine) Fetch(ctx context.Context, manifestPath string, opts CommonOptions) (*Report, error) {
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
	resolved, srcs, err := e.resolveWorkspace(ctx, ws, lockPath, resolver.UpdatePreferExisting, nil, members)
	if err != nil {
		return nil, err
	}
	if !e.Config.Frozen {
		if err := lockfile.Write(lockPath, resolved); err != nil {
			return nil, err
		}
	}
	if _, _, err := e.materialize(ctx, ws, resolved, srcs); err != nil {
		return nil, err
	}
	return &Report{UnitsPlanned: len(resolved.Packages)}, nil
}

// Update re-resolves the workspace, allowing each named package (or every
// package, if none is named) to move to a newer matching version.
func (e *Engine) Update(ctx context.Context, manifestPath string, opts UpdateOptions) (*resolver.Resolve, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	force := map[string]bool{}
	for _, name := range opts.Package {
		force[name] = true
	}
	mode := resolver.UpdateAggressive
	if len(opts.Package) > 0 {
		mode = resolver.UpdatePreferExisting
	}

	targetDir := e.Config.TargetDirFor(ws.RootDir)
	lock := config.NewTargetLock(targetDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	lockPath := filepath.Join(ws.RootDir, "forge.lock")
	resolved, _, err := e.resolveWorkspace(ctx, ws, lockPath, mode, force, ws.MemberList())
	if err != nil {
		return nil, err
	}
	if err := lockfile.Write(lockPath, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// GenerateLockfile resolves the workspace and writes forge.lock without
// downloading or building anything.
func (e *Engine) GenerateLockfile(ctx context.Context, manifestPath string) (*resolver.Resolve, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(ws.RootDir, "forge.lock")
	resolved, _, err := e.resolveWorkspace(ctx, ws, lockPath, resolver.UpdatePreferExisting, nil, ws.MemberList())
	if err != nil {
		return nil, err
	}
	if err := lockfile.Write(lockPath, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Pkgid resolves name (or the current package, if empty) to its full
// PackageId display string.
func (e *Engine) Pkgid(ctx context.Context, manifestPath, name string) (string, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return "", err
	}
	var m *manifest.Manifest
	if name == "" {
		m = ws.Current()
	} else {
		m = ws.Members[name]
	}
	if m == nil {
		return "", fmt.Errorf("package %q not found", name)
	}
	return m.Summary.ID.String(), nil
}

// PackageMetadata is the JSON shape Metadata renders.
type PackageMetadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ID           string   `json:"id"`
	Dependencies []string `json:"dependencies"`
	Targets      []string `json:"targets"`
}

// WorkspaceMetadata is the project-wide metadata document.
type WorkspaceMetadata struct {
	Root     string            `json:"workspace_root"`
	Packages []PackageMetadata `json:"packages"`
}

// Metadata loads the workspace and renders every member's identity,
// dependency, and target information as a JSON-able value, without
// resolving or touching the network.
func (e *Engine) Metadata(ctx context.Context, manifestPath string) (*WorkspaceMetadata, error) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	out := &WorkspaceMetadata{Root: ws.RootDir}
	for _, m := range ws.MemberList() {
		pm := PackageMetadata{
			Name:    m.Summary.ID.Name.String(),
			Version: m.Summary.ID.Version,
			ID:      m.Summary.ID.String(),
		}
		for _, d := range m.Summary.Dependencies {
			pm.Dependencies = append(pm.Dependencies, d.PackageName())
		}
		for _, t := range m.Targets {
			pm.Targets = append(pm.Targets, fmt.Sprintf("%s(%s)", t.Name, t.Kind))
		}
		out.Packages = append(out.Packages, pm)
	}
	return out, nil
}

// MetadataJSON renders Metadata's result as indented JSON, the shape the
// `metadata` subcommand prints to stdout.
func (e *Engine) MetadataJSON(ctx context.Context, manifestPath string) ([]byte, error) {
	md, err := e.Metadata(ctx, manifestPath)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(md, "", "  ")
}

// ReadManifest loads and returns the manifest at manifestPath without any
// workspace assembly, for the read-manifest subcommand.
func (e *Engine) ReadManifest(manifestPath string) (*manifest.Manifest, error) {
	return manifest.Load(manifestPath)
}

// VerifyProject loads the manifest/workspace rooted at manifestPath and
// reports whether it is well-formed, the verify-project subcommand's
// {"success":"true"} / {"invalid":"reason"} contract. It returns no Go
// error: any load failure, I/O failures included, becomes the reason
// string. Beyond loading, it rejects a package that declares two library
// or two binary targets with the same name.
func (e *Engine) VerifyProject(manifestPath string) (ok bool, reason string) {
	ws, err := e.LoadManifest(manifestPath)
	if err != nil {
		return false, err.Error()
	}
	for _, m := range ws.MemberList() {
		seen := map[string]bool{}
		for _, t := range m.Targets {
			if t.Kind != manifest.TargetLib && t.Kind != manifest.TargetBin {
				continue
			}
			key := fmt.Sprintf("%s:%s", t.Kind, t.Name)
			if seen[key] {
				return false, fmt.Sprintf("package %q declares more than one %s target named %q",
					m.Summary.ID.Name, t.Kind, t.Name)
			}
			seen[key] = true
		}
	}
	return true, ""
}

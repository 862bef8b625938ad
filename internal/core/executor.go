package core

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pborman/uuid"

	"github.com/vikramraodp/forge/internal/layout"
	"github.com/vikramraodp/forge/internal/scheduler"
	"github.com/vikramraodp/forge/internal/unitgraph"
)

// processExecutor runs each Unit as a subprocess invocation of the
// configured compiler front-end.
type processExecutor struct {
	compiler   string
	tree       layout.Tree
	pkgDirs    map[string]string // PackageId.String() -> on-disk source root
	flags      string            // FORGEFLAGS, appended to every invocation
	testFilter string            // substring filter passed to Test-mode binaries
	log        interface {
		Infof(format string, args ...interface{})
		Warnf(format string, args ...interface{})
	}
}

// Execute implements scheduler.Executor. A RunCustomBuild Unit's captured
// stdout is parsed for "forge:"-prefixed directives;
// every other mode simply compiles its target.
func (x *processExecutor) Execute(ctx context.Context, u unitgraph.Unit) (scheduler.Directives, error) {
	pkgDir, ok := x.pkgDirs[u.Package.String()]
	if !ok {
		return scheduler.Directives{}, fmt.Errorf("no source directory known for %s", u.Package)
	}

	var scratchDir string
	if u.Mode == unitgraph.RunCustomBuild {
		scratchDir = filepath.Join(x.tree.Build, "scratch-"+uuid.New())
		if err := os.MkdirAll(scratchDir, 0o755); err != nil {
			return scheduler.Directives{}, err
		}
	}

	args := x.argsFor(u, pkgDir)

	cmd := exec.CommandContext(ctx, x.compiler, args...)
	cmd.Dir = pkgDir
	if scratchDir != "" {
		cmd.Env = append(os.Environ(), "OUT_DIR="+scratchDir)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	for _, w := range scheduler.ParseDirectives(splitLines(stdout.String())).Warnings {
		if x.log != nil {
			x.log.Warnf("%s: %s", u.Package, w)
		}
	}

	if err != nil {
		if scratchDir != "" {
			_ = os.RemoveAll(scratchDir)
		}
		return scheduler.Directives{}, fmt.Errorf("compiling %s: %w\n%s", u.Target.Name, err, stderr.String())
	}

	if u.Mode == unitgraph.RunCustomBuild {
		final := x.tree.BuildDirFor(hashKey(u.Package.String()))
		if err := os.RemoveAll(final); err != nil {
			return scheduler.Directives{}, err
		}
		if err := os.Rename(scratchDir, final); err != nil {
			return scheduler.Directives{}, err
		}
		return scheduler.ParseDirectives(splitLines(stdout.String())), nil
	}
	return scheduler.Directives{}, nil
}

// argsFor derives the subprocess argument list from a Unit's profile,
// target and feature set. The flag names are this project's own (forgec,
// not rustc).
func (x *processExecutor) argsFor(u unitgraph.Unit, pkgDir string) []string {
	out := x.tree.BuildDirFor(hashKey(u.Package.String()))

	args := []string{
		filepath.Join(pkgDir, u.Target.SourcePath),
		"--crate-name", u.Target.Name,
		"--out-dir", out,
		"--opt-level", u.Profile.OptLevel,
	}
	if u.Profile.Debug {
		args = append(args, "--debug")
	}
	if u.Profile.LTO {
		args = append(args, "--lto")
	}
	for _, f := range u.Features {
		args = append(args, "--cfg", "feature=\""+f+"\"")
	}
	if x.flags != "" {
		args = append(args, x.flags)
	}
	if u.Mode == unitgraph.Test && x.testFilter != "" {
		args = append(args, "--test-filter", x.testFilter)
	}
	return args
}

func splitLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewBufferString(s))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

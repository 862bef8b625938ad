// Package unitgraph builds the acyclic graph of compilation Units from a
// resolved dependency graph. A Unit depends on the Units of its package's
// own dependencies, generalized across five compile modes: building a
// binary differs from checking it, testing it, benchmarking it, or
// documenting it, and a build script run is itself a Unit with its own
// host-environment dependencies.
package unitgraph

import (
	"fmt"

	"github.com/vikramraodp/forge/internal/ident"
	"github.com/vikramraodp/forge/internal/manifest"
)

// CompileMode is the kind of artifact a Unit produces.
type CompileMode int

// The compile modes a Unit may be built in.
const (
	Build CompileMode = iota
	Check
	Test
	Bench
	Doc
	RunCustomBuild
)

func (m CompileMode) String() string {
	switch m {
	case Check:
		return "check"
	case Test:
		return "test"
	case Bench:
		return "bench"
	case Doc:
		return "doc"
	case RunCustomBuild:
		return "run-custom-build"
	default:
		return "build"
	}
}

// TargetKind discriminates a Unit's build environment: Target platform
// output vs. a Host-platform tool (a build script, or a build-dependency).
type TargetKind int

// The two target environments a Unit may compile for.
const (
	KindTarget TargetKind = iota
	KindHost
)

func (k TargetKind) String() string {
	if k == KindHost {
		return "host"
	}
	return "target"
}

// Unit is one node of the build graph: a package's target, compiled in a
// given mode, for a given environment, with a frozen profile and feature
// set.
type Unit struct {
	Package  ident.PackageId
	Target   manifest.Target
	Mode     CompileMode
	Kind     TargetKind
	Profile  manifest.Profile
	Features []string
}

// Key is the Unit's identity for deduplication and graph-map lookups.
func (u Unit) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", u.Package.String(), u.Target.Name, u.Mode, u.Kind, u.Profile.Name)
}

package manifest

import (
	"github.com/Masterminds/semver/v3"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
)

// DependencyKind discriminates normal, build and dev dependencies.
type DependencyKind int

// The three dependency kinds. Dev dependencies are non-transitive; build
// dependencies compile for the host platform.
const (
	KindNormal DependencyKind = iota
	KindBuild
	KindDev
)

func (k DependencyKind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindDev:
		return "dev"
	default:
		return "normal"
	}
}

// Dependency is a single dependency declaration inside a manifest.
type Dependency struct {
	Name               string
	Requirement        *semver.Constraints
	RequirementText    string
	Origin             ident.SourceOrigin
	Kind               DependencyKind
	Optional           bool
	DefaultFeatures    bool
	FeaturesRequested  []string
	Rename             string // optional: the `package` key, the real package name when Name is an alias
}

// PackageName is the name used to look the dependency up in the
// feature-activation graph: the rename if present, else Name.
func (d Dependency) PackageName() string {
	if d.Rename != "" {
		return d.Rename
	}
	return d.Name
}

// Matches reports whether version satisfies this dependency's requirement.
func (d Dependency) Matches(version string) (bool, error) {
	if d.Requirement == nil {
		return true, nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	return d.Requirement.Check(v), nil
}

// ParseRequirement compiles a semver constraint string into a Dependency's
// Requirement, storing the original text for display/lockfile purposes.
func ParseRequirement(text string) (*semver.Constraints, error) {
	if text == "" || text == "*" {
		return nil, nil
	}
	return semver.NewConstraint(text)
}

// validateDependency checks the structural invariant that dev dependencies
// cannot be optional.
func validateDependency(field string, d Dependency) *errs.FieldError {
	if d.Kind == KindDev && d.Optional {
		return errs.Forbidden(field, "dev-dependencies cannot be optional")
	}
	return nil
}

package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
)

// Summary is the resolver-relevant subset of a Manifest: id, dependencies,
// and the feature activation map. Constructing one enforces the
// invariants documented on NewSummary.
type Summary struct {
	ID           ident.PackageId
	Dependencies []Dependency
	Features     map[string][]string // name -> activations
	Links        string              // native-library linkage key; unique per workspace
}

// NewSummary validates and constructs a Summary. The invariants enforced:
//   - no feature shares a name with a dependency
//   - dev dependencies cannot be optional
//   - every activation names a declared feature, an optional dependency,
//     or dep/feat where dep is a declared (possibly optional) dependency
func NewSummary(id ident.PackageId, deps []Dependency, features map[string][]string, links string) (*Summary, errs.ErrorList) {
	var allErrs errs.ErrorList

	depsByName := make(map[string]Dependency, len(deps))
	for _, d := range deps {
		depsByName[d.PackageName()] = d
		if fe := validateDependency(fmt.Sprintf("dependencies[%s]", d.PackageName()), d); fe != nil {
			allErrs = append(allErrs, fe)
		}
	}

	for featureName := range features {
		if _, clash := depsByName[featureName]; clash {
			allErrs = append(allErrs, errs.Invalid(
				fmt.Sprintf("features[%s]", featureName), featureName,
				"feature name collides with a dependency name"))
		}
	}

	for featureName, activations := range features {
		for _, activation := range activations {
			if err := validateActivation(featureName, activation, features, depsByName); err != nil {
				allErrs = append(allErrs, err)
			}
		}
	}

	if len(allErrs) != 0 {
		return nil, allErrs
	}

	return &Summary{ID: id, Dependencies: deps, Features: features, Links: links}, nil
}

func validateActivation(owner, activation string, features map[string][]string, deps map[string]Dependency) *errs.FieldError {
	field := fmt.Sprintf("features[%s]", owner)

	if dep, feat, isDepFeat := strings.Cut(activation, "/"); isDepFeat {
		d, ok := deps[dep]
		if !ok {
			return errs.NotFound(field, fmt.Sprintf("Feature `%s` includes `%s/%s`; dependency `%s` is not declared", owner, dep, feat, dep))
		}
		_ = d
		return nil
	}

	if _, ok := features[activation]; ok {
		return nil
	}
	if d, ok := deps[activation]; ok && d.Optional {
		return nil
	}
	return errs.NotFound(field, fmt.Sprintf("Feature `%s` includes `%s` which is neither a dependency nor another feature", owner, activation))
}

// DependencyByName looks a dependency up by its package name (post-rename).
func (s *Summary) DependencyByName(name string) (Dependency, bool) {
	for _, d := range s.Dependencies {
		if d.PackageName() == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// SortedFeatureNames returns feature names in deterministic order, used
// whenever features must be iterated for hashing or display.
func (s *Summary) SortedFeatureNames() []string {
	names := make([]string, 0, len(s.Features))
	for name := range s.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultActivations returns the activation list for the implicit
// "default" feature, or nil if the package declares none.
func (s *Summary) DefaultActivations() []string {
	return s.Features["default"]
}

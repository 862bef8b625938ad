// Package manifest parses a declarative package manifest (forge.toml) into
// an in-memory model, and assembles workspaces of member packages: read the
// file, unmarshal into a raw shape, then validate into the richer
// in-memory model.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/ident"
)

// rawManifest is the direct TOML decoding target; field names follow the
// forge.toml surface as written by hand.
type rawManifest struct {
	Package struct {
		Name        string   `toml:"name"`
		Version     string   `toml:"version"`
		Authors     []string `toml:"authors"`
		Description string   `toml:"description"`
		License     string   `toml:"license"`
		Links       string   `toml:"links"`
	} `toml:"package"`

	Dependencies      map[string]rawDependency `toml:"dependencies"`
	DevDependencies   map[string]rawDependency `toml:"dev-dependencies"`
	BuildDependencies map[string]rawDependency `toml:"build-dependencies"`

	Features map[string][]string `toml:"features"`

	Lib rawTargetDecl   `toml:"lib"`
	Bin []rawTargetDecl `toml:"bin"`

	Profile   map[string]rawProfile `toml:"profile"`
	Workspace *rawWorkspace         `toml:"workspace"`
}

// rawDependency is the table form of a dependency entry. A bare
// version-requirement string (`foo = "1.2"`) is not accepted: it does not
// decode into this struct, and Load reports a parse error.
type rawDependency struct {
	Version         string   `toml:"version"`
	PathDep         string   `toml:"path"`
	Git             string   `toml:"git"`
	Branch          string   `toml:"branch"`
	Tag             string   `toml:"tag"`
	Rev             string   `toml:"rev"`
	Features        []string `toml:"features"`
	DefaultFeatures *bool    `toml:"default-features"`
	Optional        bool     `toml:"optional"`
	Package         string   `toml:"package"`
	// simpleVersion is not set by any decode path.
	simpleVersion string
}

type rawTargetDecl struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type rawProfile struct {
	Inherits        string `toml:"inherits"`
	OptLevel        *string `toml:"opt-level"`
	Debug           *bool   `toml:"debug"`
	DebugAssertions *bool   `toml:"debug-assertions"`
	OverflowChecks  *bool   `toml:"overflow-checks"`
	LTO             *bool   `toml:"lto"`
	Panic           *string `toml:"panic"`
	Incremental     *bool   `toml:"incremental"`
	CodegenUnits    *int    `toml:"codegen-units"`
}

type rawWorkspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

// Manifest is the validated, in-memory model of a package: a Summary plus
// targets, profiles, and workspace-related fields.
type Manifest struct {
	Summary *Summary

	RootDir     string
	ManifestDir string

	Authors     []string
	Description string
	License     string

	Targets  []Target
	Profiles map[ProfileName]Profile

	WorkspaceMembers []string // raw glob/list entries, pre-expansion
	WorkspaceExclude []string
	IsWorkspaceRoot  bool
}

// Load reads and validates the manifest at path (a forge.toml file or its
// containing directory).
func Load(path string) (*Manifest, error) {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	} else {
		path = filepath.Join(path, "forge.toml")
	}

	var raw rawManifest
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, &errs.FieldError{Kind: errs.KindManifest, Field: path, Detail: "failed to parse manifest", Wrapped: err}
	}

	m, errList := fromRaw(dir, &raw)
	if len(errList) != 0 {
		return nil, errList
	}
	return m, nil
}

func fromRaw(dir string, raw *rawManifest) (*Manifest, errs.ErrorList) {
	var allErrs errs.ErrorList

	// A [workspace]-only root manifest (no [package] table) is a virtual
	// workspace and carries neither a name nor a version.
	virtual := raw.Workspace != nil && raw.Package.Name == "" && raw.Package.Version == ""
	if raw.Package.Name == "" && !virtual {
		allErrs = append(allErrs, errs.Required("package.name", "a package must have a name"))
	}
	if raw.Package.Version == "" && !virtual {
		allErrs = append(allErrs, errs.Required("package.version", "a package must have a version"))
	}
	if len(allErrs) != 0 {
		return nil, allErrs
	}

	deps, depErrs := decodeDependencies(raw)
	allErrs = append(allErrs, depErrs...)

	id := ident.NewPackageId(raw.Package.Name, raw.Package.Version, ident.Path(dir))
	summary, sumErrs := NewSummary(id, deps, raw.Features, raw.Package.Links)
	allErrs = append(allErrs, sumErrs...)
	if len(allErrs) != 0 {
		return nil, allErrs
	}

	targets, err := inferTargets(dir, listDir)
	if err != nil {
		allErrs = append(allErrs, errs.InternalError("targets", err))
	}
	if raw.Lib.Path != "" {
		targets = append(targets, Target{Name: raw.Package.Name, Kind: TargetLib, SourcePath: raw.Lib.Path})
	}
	for _, b := range raw.Bin {
		if b.Path != "" {
			targets = append(targets, Target{Name: b.Name, Kind: TargetBin, SourcePath: b.Path})
		}
	}

	if fe := validateNoLibBinNameClash(raw.Package.Name, targets); fe != nil {
		allErrs = append(allErrs, fe)
	}
	if len(allErrs) != 0 {
		return nil, allErrs
	}

	profiles := ResolveProfiles(decodeProfiles(raw.Profile))

	m := &Manifest{
		Summary:     summary,
		RootDir:     dir,
		ManifestDir: dir,
		Authors:     raw.Package.Authors,
		Description: raw.Package.Description,
		License:     raw.Package.License,
		Targets:     targets,
		Profiles:    profiles,
	}
	if raw.Workspace != nil {
		m.IsWorkspaceRoot = true
		m.WorkspaceMembers = raw.Workspace.Members
		m.WorkspaceExclude = raw.Workspace.Exclude
	}

	return m, nil
}

// validateNoLibBinNameClash rejects a manifest where a library and a
// binary target share the crate name.
func validateNoLibBinNameClash(pkgName string, targets []Target) *errs.FieldError {
	hasLib := false
	for _, t := range targets {
		if t.Kind == TargetLib {
			hasLib = true
		}
	}
	if !hasLib {
		return nil
	}
	for _, t := range targets {
		if t.Kind == TargetBin && t.Name == pkgName {
			return errs.Forbidden(fmt.Sprintf("targets[%s]", t.Name),
				fmt.Sprintf("a library and a binary target cannot share the name %q", pkgName))
		}
	}
	return nil
}

func decodeProfiles(raw map[string]rawProfile) map[ProfileName]ProfileOverride {
	out := make(map[ProfileName]ProfileOverride, len(raw))
	for name, p := range raw {
		out[ProfileName(name)] = ProfileOverride{
			Inherits:        ProfileName(p.Inherits),
			OptLevel:        p.OptLevel,
			Debug:           p.Debug,
			DebugAssertions: p.DebugAssertions,
			Overflow:        p.OverflowChecks,
			LTO:             p.LTO,
			Panic:           p.Panic,
			Incremental:     p.Incremental,
			CodegenUnits:    p.CodegenUnits,
		}
	}
	return out
}

func decodeDependencies(raw *rawManifest) ([]Dependency, errs.ErrorList) {
	var deps []Dependency
	var allErrs errs.ErrorList

	add := func(table map[string]rawDependency, kind DependencyKind) {
		for name, rd := range table {
			d, err := rawToDependency(name, rd, kind)
			if err != nil {
				allErrs = append(allErrs, errs.Invalid(fmt.Sprintf("dependencies[%s]", name), name, err.Error()))
				continue
			}
			deps = append(deps, d)
		}
	}
	add(raw.Dependencies, KindNormal)
	add(raw.BuildDependencies, KindBuild)
	add(raw.DevDependencies, KindDev)

	return deps, allErrs
}

func rawToDependency(name string, rd rawDependency, kind DependencyKind) (Dependency, error) {
	origin := ident.Registry("https://registry.forge.dev")
	switch {
	case rd.PathDep != "":
		origin = ident.Path(rd.PathDep)
	case rd.Git != "":
		ref := ident.Reference{Kind: ident.ReferenceDefaultBranch}
		switch {
		case rd.Tag != "":
			ref = ident.Reference{Kind: ident.ReferenceTag, Value: rd.Tag}
		case rd.Branch != "":
			ref = ident.Reference{Kind: ident.ReferenceBranch, Value: rd.Branch}
		case rd.Rev != "":
			ref = ident.Reference{Kind: ident.ReferenceRev, Value: rd.Rev}
		}
		origin = ident.Git(rd.Git, ref)
	}

	req, err := ParseRequirement(rd.Version)
	if err != nil {
		return Dependency{}, err
	}

	defaultFeatures := true
	if rd.DefaultFeatures != nil {
		defaultFeatures = *rd.DefaultFeatures
	}

	return Dependency{
		Name:              name,
		Requirement:       req,
		RequirementText:   rd.Version,
		Origin:            origin,
		Kind:              kind,
		Optional:          rd.Optional,
		DefaultFeatures:   defaultFeatures,
		FeaturesRequested: rd.Features,
		Rename:            rd.Package,
	}, nil
}

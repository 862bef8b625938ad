package ident

import "fmt"

// ReferenceKind tags the kind of pinned git reference.
type ReferenceKind int

// The kinds of git reference a Git source origin may pin.
const (
	ReferenceDefaultBranch ReferenceKind = iota
	ReferenceTag
	ReferenceBranch
	ReferenceRev
)

// Reference is a pinned git reference: a tag, branch, revision, or the
// repository's default branch.
type Reference struct {
	Kind  ReferenceKind
	Value string
}

func (r Reference) String() string {
	switch r.Kind {
	case ReferenceTag:
		return "tag=" + r.Value
	case ReferenceBranch:
		return "branch=" + r.Value
	case ReferenceRev:
		return "rev=" + r.Value
	default:
		return "HEAD"
	}
}

// OriginKind discriminates the three SourceOrigin variants.
type OriginKind int

// The three kinds of source a package may originate from.
const (
	OriginRegistry OriginKind = iota
	OriginPath
	OriginGit
)

// SourceOrigin is a tagged union over {Registry{url}, Path{dir},
// Git{url, reference}}. Ordering is total and deterministic: Registry <
// Path < Git, then lexicographic on the discriminating fields.
type SourceOrigin struct {
	Kind      OriginKind
	URL       string // Registry url, or Git repository url
	Dir       string // Path directory
	Reference Reference
}

// Registry builds a registry SourceOrigin.
func Registry(url string) SourceOrigin { return SourceOrigin{Kind: OriginRegistry, URL: url} }

// Path builds a local-filesystem SourceOrigin.
func Path(dir string) SourceOrigin { return SourceOrigin{Kind: OriginPath, Dir: dir} }

// Git builds a version-control SourceOrigin pinned to ref.
func Git(url string, ref Reference) SourceOrigin {
	return SourceOrigin{Kind: OriginGit, URL: url, Reference: ref}
}

// String renders a stable textual form, used both for display and as the
// canonical key inside a PackageId's string form.
func (o SourceOrigin) String() string {
	switch o.Kind {
	case OriginRegistry:
		return "registry+" + o.URL
	case OriginPath:
		return "path+" + o.Dir
	case OriginGit:
		return fmt.Sprintf("git+%s?%s", o.URL, o.Reference)
	default:
		return "unknown"
	}
}

// Less defines SourceOrigin's total order: by Kind first, then by the
// discriminating field(s) of that kind.
func (o SourceOrigin) Less(other SourceOrigin) bool {
	if o.Kind != other.Kind {
		return o.Kind < other.Kind
	}
	switch o.Kind {
	case OriginRegistry:
		return o.URL < other.URL
	case OriginPath:
		return o.Dir < other.Dir
	case OriginGit:
		if o.URL != other.URL {
			return o.URL < other.URL
		}
		return o.Reference.String() < other.Reference.String()
	default:
		return false
	}
}

// PackageId is the triple (name, version, source origin) that uniquely
// identifies a resolved package. Equality is structural.
type PackageId struct {
	Name    InternedString
	Version string
	Origin  SourceOrigin
}

// NewPackageId interns name and builds a PackageId.
func NewPackageId(name, version string, origin SourceOrigin) PackageId {
	return PackageId{Name: Intern(name), Version: version, Origin: origin}
}

// String is the stable textual form used in the lockfile: "name version
// (origin)" mirroring the reference implementation's pkgid format.
func (id PackageId) String() string {
	return fmt.Sprintf("%s %s (%s)", id.Name.String(), id.Version, id.Origin.String())
}

// Less gives PackageId a total, deterministic order: name, then version,
// then origin. Used for sorted iteration (lockfile, unit-graph tie
// breaking).
func (id PackageId) Less(other PackageId) bool {
	if id.Name.String() != other.Name.String() {
		return id.Name.String() < other.Name.String()
	}
	if id.Version != other.Version {
		return id.Version < other.Version
	}
	return id.Origin.Less(other.Origin)
}

// SameNameSource reports whether id and other share a name and a source
// origin, regardless of version. The resolver does not call it; it keys
// its own name+origin table instead.
func (id PackageId) SameNameSource(other PackageId) bool {
	return id.Name.String() == other.Name.String() && id.Origin == other.Origin
}

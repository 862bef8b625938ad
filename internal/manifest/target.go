package manifest

// TargetKind is the kind of buildable artifact a Target describes.
type TargetKind int

// The target kinds a manifest may declare.
const (
	TargetLib TargetKind = iota
	TargetBin
	TargetExample
	TargetTest
	TargetBench
	TargetCustomBuild
)

func (k TargetKind) String() string {
	switch k {
	case TargetLib:
		return "lib"
	case TargetBin:
		return "bin"
	case TargetExample:
		return "example"
	case TargetTest:
		return "test"
	case TargetBench:
		return "bench"
	case TargetCustomBuild:
		return "custom-build"
	default:
		return "unknown"
	}
}

// Target is a single buildable artifact within a package.
type Target struct {
	Name       string
	Kind       TargetKind
	SourcePath string // path to the entry source file, relative to the package root
}

// inferTargets walks conventional source layout and fills in targets that
// were not explicitly declared: src/lib.* implies a library target, files
// under src/bin/ imply binaries, and analogously for examples/, tests/,
// benches/.
func inferTargets(pkgDir string, lister func(dir string) ([]string, error)) ([]Target, error) {
	var targets []Target

	libCandidates := []string{"src/lib.rs", "src/lib.go"}
	for _, c := range libCandidates {
		if exists, err := fileExists(pkgDir, c); err != nil {
			return nil, err
		} else if exists {
			targets = append(targets, Target{Name: "", Kind: TargetLib, SourcePath: c})
			break
		}
	}

	buildScriptCandidates := []string{"build.rs", "build.go"}
	for _, c := range buildScriptCandidates {
		if exists, err := fileExists(pkgDir, c); err != nil {
			return nil, err
		} else if exists {
			targets = append(targets, Target{Name: "build-script-build", Kind: TargetCustomBuild, SourcePath: c})
			break
		}
	}

	dirKinds := map[string]TargetKind{
		"src/bin":  TargetBin,
		"examples": TargetExample,
		"tests":    TargetTest,
		"benches":  TargetBench,
	}
	for dir, kind := range dirKinds {
		names, err := lister(joinPath(pkgDir, dir))
		if err != nil {
			continue // directory absent is not an error
		}
		for _, name := range names {
			targets = append(targets, Target{
				Name:       stripExt(name),
				Kind:       kind,
				SourcePath: joinPath(dir, name),
			})
		}
	}

	return targets, nil
}

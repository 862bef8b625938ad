package manifest

// ProfileName is one of the fixed named profiles.
type ProfileName string

// The fixed set of build profiles.
const (
	ProfileDev     ProfileName = "dev"
	ProfileRelease ProfileName = "release"
	ProfileTest    ProfileName = "test"
	ProfileBench   ProfileName = "bench"
)

// Profile is a record of the numeric/boolean flags that affect compiled
// output. Every field that participates in a Unit's fingerprint must live
// here.
type Profile struct {
	Name            ProfileName
	OptLevel        string
	Debug           bool
	DebugAssertions bool
	Overflow        bool
	LTO             bool
	Panic           string
	Incremental     bool
	CodegenUnits    int
}

// builtinProfiles are the baseline records before any manifest override is
// applied. test derives from the dev defaults and bench from the release
// defaults, matching the reference tool's own profile defaults.
func builtinProfiles() map[ProfileName]Profile {
	dev := Profile{
		Name: ProfileDev, OptLevel: "0", Debug: true, DebugAssertions: true,
		Overflow: true, LTO: false, Panic: "unwind", Incremental: true, CodegenUnits: 256,
	}
	release := Profile{
		Name: ProfileRelease, OptLevel: "3", Debug: false, DebugAssertions: false,
		Overflow: false, LTO: false, Panic: "unwind", Incremental: false, CodegenUnits: 16,
	}
	test := dev
	test.Name = ProfileTest
	bench := release
	bench.Name = ProfileBench

	return map[ProfileName]Profile{
		ProfileDev: dev, ProfileRelease: release, ProfileTest: test, ProfileBench: bench,
	}
}

// ProfileOverride is the subset of fields a manifest's [profile.<name>]
// table may set; a nil pointer field means "inherit".
type ProfileOverride struct {
	Inherits        ProfileName
	OptLevel        *string
	Debug           *bool
	DebugAssertions *bool
	Overflow        *bool
	LTO             *bool
	Panic           *string
	Incremental     *bool
	CodegenUnits    *int
}

// ResolveProfiles merges manifest overrides onto the builtin profile
// records, honoring per-field inheritance: an override's `inherits` key
// (default: dev for custom names, or the profile's own name for the four
// builtins) supplies defaults for any field left unset.
func ResolveProfiles(overrides map[ProfileName]ProfileOverride) map[ProfileName]Profile {
	profiles := builtinProfiles()

	// Builtin overrides apply to their own baseline.
	for _, name := range []ProfileName{ProfileDev, ProfileRelease, ProfileTest, ProfileBench} {
		if ov, ok := overrides[name]; ok {
			base := profiles[name]
			profiles[name] = applyOverride(base, ov)
		}
	}

	// Custom named profiles inherit from a builtin (or another custom
	// profile already resolved), defaulting to dev.
	for name, ov := range overrides {
		if name == ProfileDev || name == ProfileRelease || name == ProfileTest || name == ProfileBench {
			continue
		}
		base, ok := profiles[ov.Inherits]
		if !ok {
			base = profiles[ProfileDev]
		}
		base.Name = name
		profiles[name] = applyOverride(base, ov)
	}

	return profiles
}

func applyOverride(base Profile, ov ProfileOverride) Profile {
	if ov.OptLevel != nil {
		base.OptLevel = *ov.OptLevel
	}
	if ov.Debug != nil {
		base.Debug = *ov.Debug
	}
	if ov.DebugAssertions != nil {
		base.DebugAssertions = *ov.DebugAssertions
	}
	if ov.Overflow != nil {
		base.Overflow = *ov.Overflow
	}
	if ov.LTO != nil {
		base.LTO = *ov.LTO
	}
	if ov.Panic != nil {
		base.Panic = *ov.Panic
	}
	if ov.Incremental != nil {
		base.Incremental = *ov.Incremental
	}
	if ov.CodegenUnits != nil {
		base.CodegenUnits = *ov.CodegenUnits
	}
	return base
}

// ForMode derives the active ProfileName from a top-level compile mode
// name and the --release override.
func ForMode(mode string, release bool) ProfileName {
	switch mode {
	case "test":
		if release {
			return ProfileRelease
		}
		return ProfileTest
	case "bench":
		return ProfileBench
	default:
		if release {
			return ProfileRelease
		}
		return ProfileDev
	}
}

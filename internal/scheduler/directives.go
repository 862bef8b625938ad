package scheduler

import "strings"

// Directives is the parsed form of a custom build script's structured
// output stream, renamed
// to this project's "forge:" directive prefix.
type Directives struct {
	Cfg               []string
	LinkLib           []string
	RerunIfChanged    []string
	RerunIfEnvChanged []string
	Warnings          []string
}

const directivePrefix = "forge:"

// ParseDirectives scans a custom build script's captured stdout lines for
// "forge:key=value" directives and classifies them. Unrecognized
// "forge:"-prefixed lines are ignored; non-prefixed lines are the
// script's ordinary log output and are not directives at all.
func ParseDirectives(lines []string) Directives {
	var d Directives
	for _, line := range lines {
		if !strings.HasPrefix(line, directivePrefix) {
			continue
		}
		rest := strings.TrimPrefix(line, directivePrefix)
		key, value, ok := strings.Cut(rest, "=")
		if !ok {
			continue
		}
		switch key {
		case "rustc-cfg":
			d.Cfg = append(d.Cfg, value)
		case "rustc-link-lib":
			d.LinkLib = append(d.LinkLib, value)
		case "rerun-if-changed":
			d.RerunIfChanged = append(d.RerunIfChanged, value)
		case "rerun-if-env-changed":
			d.RerunIfEnvChanged = append(d.RerunIfEnvChanged, value)
		case "warning":
			d.Warnings = append(d.Warnings, value)
		}
	}
	return d
}

// Merge folds other's directives into d, used when a RunCustomBuild Unit's
// directives must be combined with those already recorded for its package.
func (d Directives) Merge(other Directives) Directives {
	d.Cfg = append(d.Cfg, other.Cfg...)
	d.LinkLib = append(d.LinkLib, other.LinkLib...)
	d.RerunIfChanged = append(d.RerunIfChanged, other.RerunIfChanged...)
	d.RerunIfEnvChanged = append(d.RerunIfEnvChanged, other.RerunIfEnvChanged...)
	d.Warnings = append(d.Warnings, other.Warnings...)
	return d
}

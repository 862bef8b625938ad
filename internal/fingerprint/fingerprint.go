// Package fingerprint computes and caches the content+metadata hash that
// decides whether a Unit needs rebuilding. A Unit's
// fingerprint is the hash of its own inputs plus the Merkle recursion over
// every direct dependency Unit's fingerprint, so any change anywhere in a
// Unit's dependency subtree invalidates it and everything above it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vikramraodp/forge/internal/errs"
	"github.com/vikramraodp/forge/internal/unitgraph"
)

// Inputs is everything needed to compute a Unit's own fingerprint
// contribution, before recursing into its dependencies.
type Inputs struct {
	CompilerVersion string
	HostTriple      string
	TargetTriple    string
	SourceTreeHash  string            // computed per source kind: checksum, commit, or mtime walk
	RerunEnv        map[string]string // env vars a build script declared as rerun-triggers
	RerunPaths      []string          // rerun-if-changed paths, hashed by content
	readFile        func(path string) ([]byte, error)
}

// Compute hashes a single Unit's own inputs (everything but dependency
// recursion, which Tree handles).
func Compute(u unitgraph.Unit, in Inputs) (string, error) {
	h := sha256.New()

	fmt.Fprintf(h, "compiler=%s\x00host=%s\x00", in.CompilerVersion, in.HostTriple)
	fmt.Fprintf(h, "target=%s\x00kind=%s\x00", in.TargetTriple, u.Kind)
	writeProfile(h, u)

	feats := append([]string(nil), u.Features...)
	sort.Strings(feats)
	for _, f := range feats {
		fmt.Fprintf(h, "feature=%s\x00", f)
	}

	fmt.Fprintf(h, "pkgid=%s\x00", u.Package.String())
	fmt.Fprintf(h, "tree=%s\x00", in.SourceTreeHash)

	if err := writeRerunTriggers(h, in); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeProfile(h interface{ Write([]byte) (int, error) }, u unitgraph.Unit) {
	p := u.Profile
	fmt.Fprintf(h, "profile=%s;opt=%s;debug=%v;debug-assertions=%v;overflow=%v;lto=%v;panic=%s;incremental=%v;codegen-units=%d\x00",
		p.Name, p.OptLevel, p.Debug, p.DebugAssertions, p.Overflow, p.LTO, p.Panic, p.Incremental, p.CodegenUnits)
}

func writeRerunTriggers(h interface{ Write([]byte) (int, error) }, in Inputs) error {
	envNames := make([]string, 0, len(in.RerunEnv))
	for k := range in.RerunEnv {
		envNames = append(envNames, k)
	}
	sort.Strings(envNames)
	for _, k := range envNames {
		// The value is hashed, never written in the clear: env vars are
		// frequently credentials.
		sum := sha256.Sum256([]byte(in.RerunEnv[k]))
		fmt.Fprintf(h, "env=%s:%s\x00", k, hex.EncodeToString(sum[:]))
	}

	paths := append([]string(nil), in.RerunPaths...)
	sort.Strings(paths)
	readFile := in.readFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	for _, p := range paths {
		content, err := readFile(p)
		if err != nil {
			return &errs.FieldError{Kind: errs.KindFingerprint, Field: p, Detail: "reading rerun-if-changed path", Wrapped: err}
		}
		sum := sha256.Sum256(content)
		fmt.Fprintf(h, "rerun-path=%s:%s\x00", p, hex.EncodeToString(sum[:]))
	}
	return nil
}

// Tree computes the full Merkle fingerprint for root, recursing over its
// dependency graph and memoizing per Unit key.
func Tree(root unitgraph.Unit, graph *unitgraph.Graph, inputsOf func(unitgraph.Unit) (Inputs, error)) (map[string]string, error) {
	memo := map[string]string{}
	var visit func(u unitgraph.Unit) (string, error)
	visit = func(u unitgraph.Unit) (string, error) {
		key := u.Key()
		if fp, ok := memo[key]; ok {
			return fp, nil
		}

		in, err := inputsOf(u)
		if err != nil {
			return "", err
		}
		own, err := Compute(u, in)
		if err != nil {
			return "", err
		}

		depFPs := make([]string, 0, len(graph.Edges[key]))
		for _, dep := range graph.Edges[key] {
			fp, err := visit(dep)
			if err != nil {
				return "", err
			}
			depFPs = append(depFPs, fp)
		}
		sort.Strings(depFPs)

		h := sha256.New()
		h.Write([]byte(own))
		for _, fp := range depFPs {
			h.Write([]byte(fp))
		}
		combined := hex.EncodeToString(h.Sum(nil))
		memo[key] = combined
		return combined, nil
	}

	if _, err := visit(root); err != nil {
		return nil, err
	}
	return memo, nil
}

// record is the on-disk shape of a Unit's cached fingerprint: the hash
// itself plus the output paths it promised to produce, so freshness can
// check both without recomputation.
type record struct {
	Fingerprint string   `json:"fingerprint"`
	Outputs     []string `json:"outputs"`
}

// Path returns the on-disk location for a Unit's fingerprint file under
// cacheDir (conventionally the unit's slot inside target/.fingerprint/).
func Path(cacheDir string, u unitgraph.Unit) string {
	return filepath.Join(cacheDir, sanitizeKey(u.Key())+".json")
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch r {
		case '/', '|', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// Fresh reports whether the cached fingerprint at path matches want and
// every output path still exists.
func Fresh(path, want string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &errs.FieldError{Kind: errs.KindFingerprint, Field: path, Detail: "reading fingerprint file", Wrapped: err}
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, nil // a corrupt fingerprint file is treated as absent, not fatal
	}
	if rec.Fingerprint != want {
		return false, nil
	}
	for _, out := range rec.Outputs {
		if _, err := os.Stat(out); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// Write atomically records fingerprint and its declared outputs at path
// (temp file + rename).
func Write(path, fingerprint string, outputs []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errs.FieldError{Kind: errs.KindFingerprint, Field: path, Detail: "creating fingerprint directory", Wrapped: err}
	}

	data, err := json.Marshal(record{Fingerprint: fingerprint, Outputs: outputs})
	if err != nil {
		return &errs.FieldError{Kind: errs.KindFingerprint, Field: path, Detail: "encoding fingerprint record", Wrapped: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &errs.FieldError{Kind: errs.KindFingerprint, Field: path, Detail: "writing fingerprint file", Wrapped: err}
	}
	return os.Rename(tmp, path)
}

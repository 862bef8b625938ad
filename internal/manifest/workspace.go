package manifest

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vikramraodp/forge/internal/errs"
)

// Workspace is a root directory, a set of member package manifests, and
// the chosen current package. A *virtual* workspace has no
// current package.
type Workspace struct {
	RootDir        string
	Members        map[string]*Manifest // keyed by package name
	CurrentPackage string                // "" for a virtual workspace
}

// LoadWorkspace loads the manifest at rootPath and, if it declares
// [workspace], expands its member globs into a full Workspace. A
// non-workspace manifest becomes a single-member workspace whose current
// package is itself.
func LoadWorkspace(rootPath string) (*Workspace, error) {
	root, err := Load(rootPath)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{RootDir: root.RootDir, Members: map[string]*Manifest{}}

	if !root.IsWorkspaceRoot {
		ws.Members[root.Summary.ID.Name.String()] = root
		ws.CurrentPackage = root.Summary.ID.Name.String()
		return ws, nil
	}

	memberDirs, err := expandMembers(root.RootDir, root.WorkspaceMembers, root.WorkspaceExclude)
	if err != nil {
		return nil, err
	}

	var allErrs errs.ErrorList
	for _, dir := range memberDirs {
		m, err := Load(dir)
		if err != nil {
			allErrs = append(allErrs, errs.InternalError(dir, err))
			continue
		}
		if m.IsWorkspaceRoot && m.RootDir != root.RootDir {
			allErrs = append(allErrs, errs.Forbidden(dir, "workspace member declares a conflicting workspace root"))
			continue
		}
		name := m.Summary.ID.Name.String()
		if existing, dup := ws.Members[name]; dup {
			allErrs = append(allErrs, errs.Forbidden(fmt.Sprintf("workspace.members[%s]", name),
				fmt.Sprintf("duplicate package name, also declared at %s", existing.RootDir)))
			continue
		}
		ws.Members[name] = m
	}
	if len(allErrs) != 0 {
		return nil, allErrs
	}

	// Root itself is virtual here: no current package unless
	// the root manifest also declares its own [package], which fromRaw
	// would have populated via the same Summary machinery. A bare
	// [workspace]-only manifest has an empty root.Summary.ID.Name.
	if root.Summary != nil && root.Summary.ID.Name.String() != "" {
		ws.CurrentPackage = root.Summary.ID.Name.String()
		ws.Members[root.Summary.ID.Name.String()] = root
	}

	return ws, nil
}

func expandMembers(root string, members, exclude []string) ([]string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[filepath.Join(root, e)] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, pattern := range members {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if excluded[match] || seen[match] {
				continue
			}
			seen[match] = true
			out = append(out, match)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemberList returns workspace members sorted by package name, for
// deterministic iteration (resolver root ordering, CLI listing).
func (w *Workspace) MemberList() []*Manifest {
	names := make([]string, 0, len(w.Members))
	for name := range w.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Manifest, 0, len(names))
	for _, n := range names {
		out = append(out, w.Members[n])
	}
	return out
}

// Current returns the manifest for the current package, or nil for a
// virtual workspace.
func (w *Workspace) Current() *Manifest {
	if w.CurrentPackage == "" {
		return nil
	}
	return w.Members[w.CurrentPackage]
}

package manifest

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

func fileExists(pkgDir, rel string) (bool, error) {
	info, err := os.Stat(filepath.Join(pkgDir, rel))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func joinPath(parts ...string) string {
	return path.Join(parts...)
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// listDir returns the base names of regular files directly inside dir.
// It is the default lister passed to inferTargets.
func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

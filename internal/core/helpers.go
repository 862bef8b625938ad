package core

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/vikramraodp/forge/internal/lockfile"
	"github.com/vikramraodp/forge/internal/resolver"
)

func joinHome(home string, parts ...string) string {
	return filepath.Join(append([]string{home}, parts...)...)
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func readLockIfExists(path string) (*resolver.Resolve, error) {
	r, err := lockfile.Read(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

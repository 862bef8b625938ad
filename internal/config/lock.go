package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// TargetLock is the process-level advisory lock on a target directory;
// sources and FORGE_HOME caches take no lock. Contention is reported
// immediately with the holder's PID, never retried.
type TargetLock struct {
	path string
	fl   *flock.Flock
}

// NewTargetLock builds a lock file at dir/.forge-lock.
func NewTargetLock(dir string) *TargetLock {
	path := filepath.Join(dir, ".forge-lock")
	return &TargetLock{path: path, fl: flock.New(path)}
}

// ErrLocked is returned by Acquire when another process already holds
// the lock; the message names the holder's PID when it could be read.
type ErrLocked struct {
	Path      string
	HolderPID string
}

func (e *ErrLocked) Error() string {
	if e.HolderPID != "" {
		return fmt.Sprintf("target directory %s is locked by process %s", e.Path, e.HolderPID)
	}
	return fmt.Sprintf("target directory %s is locked by another process", e.Path)
}

// Acquire takes the lock without blocking, returning *ErrLocked if it is
// already held. On success it stamps the lock file with this process's
// PID so a future contending Acquire can report who holds it.
func (l *TargetLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		holder, _ := os.ReadFile(l.path)
		return &ErrLocked{Path: l.path, HolderPID: string(holder)}
	}
	return os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Release drops the lock.
func (l *TargetLock) Release() error {
	return l.fl.Unlock()
}

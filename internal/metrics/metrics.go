// Package metrics wraps SUSE/stampy to record timing stamps for build
// phases ("build::wait::<unit>", "build::run::<unit>" series).
package metrics

import "github.com/SUSE/stampy"

// Recorder stamps named timing events to a metrics file, or does nothing
// when no path was configured.
type Recorder struct {
	path string
}

// New builds a Recorder writing to path; an empty path makes every Stamp
// call a no-op.
func New(path string) *Recorder {
	return &Recorder{path: path}
}

// Stamp records that series reached state (conventionally "start" or
// "done") at the current time. A nil Recorder (or one built with an empty
// path) is a no-op.
func (r *Recorder) Stamp(series, state string) {
	if r == nil || r.path == "" {
		return
	}
	stampy.Stamp(r.path, "forge", series, state)
}

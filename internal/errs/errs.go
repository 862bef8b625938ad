// Package errs implements the field-path validation error list used across
// the manifest, resolver and unit-graph packages: ErrorList plus
// constructors for each error kind.
package errs

import "strings"

// Kind is the closed taxonomy of error kinds from the error-handling
// design.
type Kind int

// The error kinds the core reports.
const (
	KindManifest Kind = iota
	KindResolution
	KindSource
	KindFingerprint
	KindBuild
	KindLockContention
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest error"
	case KindResolution:
		return "resolution error"
	case KindSource:
		return "source error"
	case KindFingerprint:
		return "fingerprint error"
	case KindBuild:
		return "build error"
	case KindLockContention:
		return "lock contention"
	default:
		return "internal error"
	}
}

// FieldError is a single validation failure anchored to a field path.
type FieldError struct {
	Kind    Kind
	Field   string
	Value   interface{}
	Detail  string
	Wrapped error
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Field)
	b.WriteString(": ")
	b.WriteString(e.Detail)
	if e.Value != nil {
		b.WriteString(" (got: ")
		b.WriteString(toText(e.Value))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *FieldError) Unwrap() error { return e.Wrapped }

func toText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "<value>"
}

// Invalid reports that field holds value but fails detail.
func Invalid(field string, value interface{}, detail string) *FieldError {
	return &FieldError{Kind: KindManifest, Field: field, Value: value, Detail: "Invalid value: " + detail}
}

// Required reports that field was required but missing.
func Required(field string, detail string) *FieldError {
	return &FieldError{Kind: KindManifest, Field: field, Detail: "Required value: " + detail}
}

// Forbidden reports that field combination is mutually exclusive.
func Forbidden(field string, detail string) *FieldError {
	return &FieldError{Kind: KindManifest, Field: field, Detail: "Forbidden: " + detail}
}

// NotFound reports that a referenced entity could not be located.
func NotFound(field string, detail string) *FieldError {
	return &FieldError{Kind: KindResolution, Field: field, Detail: "Not found: " + detail}
}

// InternalError wraps a bug-indicating invariant violation; it is never a
// user error.
func InternalError(field string, cause error) *FieldError {
	return &FieldError{Kind: KindInternal, Field: field, Detail: "Internal error", Wrapped: cause}
}

// ErrorList aggregates FieldErrors and implements error itself, so it can
// be returned wherever a single error is expected.
type ErrorList []*FieldError

func (l ErrorList) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Filter drops nil entries, for use after an `allErrs = append(allErrs,
// someCall()...)` accumulation pass.
func (l ErrorList) Filter() ErrorList {
	out := make(ErrorList, 0, len(l))
	for _, e := range l {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Package ident defines the canonical identity of a package (name, version,
// source origin) and a process-wide string interner for hot strings such as
// package and feature names.
package ident

import "sync"

// InternedString is a comparable handle to an interned string. Two
// InternedStrings compare equal iff they were interned from equal text;
// comparison never touches the underlying bytes.
type InternedString struct {
	text *string
}

// String returns the underlying text.
func (s InternedString) String() string {
	if s.text == nil {
		return ""
	}
	return *s.text
}

// IsEmpty reports whether the string was never interned (the zero value).
func (s InternedString) IsEmpty() bool {
	return s.text == nil
}

type interner struct {
	mu    sync.Mutex
	table map[string]*string
}

var global = &interner{table: make(map[string]*string)}

// Intern returns the canonical InternedString for text, allocating a new
// entry the first time text is seen.
func Intern(text string) InternedString {
	global.mu.Lock()
	defer global.mu.Unlock()

	if p, ok := global.table[text]; ok {
		return InternedString{text: p}
	}
	cp := text
	global.table[text] = &cp
	return InternedString{text: &cp}
}

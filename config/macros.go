package config

import "chordmap/scancodes"

// MacroLen is the longest stored macro, in characters.
const MacroLen = 15

// Macros maps a macro name (the key its name character maps to) to the
// characters played back for it.
type Macros struct {
	m [scancodes.MaxKeys]string
	n int
}

// Get returns the macro stored under name, or "".
func (ms *Macros) Get(name scancodes.Code) string {
	return ms.m[name]
}

func (ms *Macros) set(name scancodes.Code, text string) {
	if len(text) > MacroLen {
		text = text[:MacroLen]
	}
	if ms.m[name] == "" && text != "" {
		ms.n++
	}
	ms.m[name] = text
}

// Len is the number of defined macros.
func (ms *Macros) Len() int { return ms.n }

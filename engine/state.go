package engine

import (
	"time"

	"chordmap/scancodes"
)

// Mode is the operating mode cycled by the mode key.
type Mode int32

const (
	ModeOn         Mode = iota // bindings active
	ModeOff                    // passthrough
	ModeDiagnostic             // swallow everything, status keys answer
	ModeReloading              // passthrough until the requested load completes
)

func (m Mode) String() string {
	switch m {
	case ModeOn:
		return "on"
	case ModeOff:
		return "off"
	case ModeDiagnostic:
		return "diagnostic"
	case ModeReloading:
		return "reloading"
	}
	return "unknown"
}

func (m Mode) next() Mode {
	if m == ModeReloading {
		return ModeOn
	}
	return m + 1
}

// hold tracks the chord in progress.
//
//	idle:      !active
//	holding:   active, partner None
//	chorded:   active, partner a real key
//	repeating: active, repeating (primary passes through as native repeat)
type hold struct {
	active    bool
	primary   scancodes.Code
	partner   scancodes.KeyCode
	start     time.Duration
	repeating bool
}

func (h *hold) reset() { *h = hold{} }

// tapped is the key whose tap binding fired last, while it is still down.
type tapped struct {
	active bool
	code   scancodes.Code
	start  time.Duration
}

func isShift(c scancodes.Code) bool {
	return c == scancodes.KeyLShift || c == scancodes.KeyRShift
}

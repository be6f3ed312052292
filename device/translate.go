//go:build linux

// Package device connects the engine to Linux input: keyboards are read
// through evdev, output goes to a virtual keyboard.
package device

import (
	evdev "github.com/gvalkov/golang-evdev"

	"chordmap/engine"
	"chordmap/scancodes"
)

// Below this evdev codes equal Set 1 make codes.
const identityLimit = 0x59

// Keys that only exist behind the E0 prefix in Set 1.
var extended = map[uint16]scancodes.Code{
	evdev.KEY_KPENTER:   0x1c,
	evdev.KEY_RIGHTCTRL: 0x1d,
	evdev.KEY_KPSLASH:   0x35,
	evdev.KEY_SYSRQ:     0x37,
	evdev.KEY_RIGHTALT:  0x38,
	evdev.KEY_HOME:      scancodes.KeyHome,
	evdev.KEY_UP:        0x48,
	evdev.KEY_PAGEUP:    0x49,
	evdev.KEY_LEFT:      0x4b,
	evdev.KEY_RIGHT:     0x4d,
	evdev.KEY_END:       0x4f,
	evdev.KEY_DOWN:      0x50,
	evdev.KEY_PAGEDOWN:  0x51,
	evdev.KEY_INSERT:    0x52,
	evdev.KEY_DELETE:    0x53,
	evdev.KEY_LEFTMETA:  0x5b,
	evdev.KEY_RIGHTMETA: 0x5c,
	evdev.KEY_COMPOSE:   0x5d,
}

var unextended = func() map[scancodes.Code]uint16 {
	m := make(map[scancodes.Code]uint16, len(extended))
	for k, c := range extended {
		m[c] = k
	}
	return m
}()

// FromEvdev converts one EV_KEY event. Auto-repeat (value 2) is a make.
// ok is false for keys with no Set 1 equivalent.
func FromEvdev(code uint16, value int32) (ev engine.Event, ok bool) {
	switch {
	case code > 0 && code < identityLimit:
		ev.Code = scancodes.Code(code)
	default:
		c, found := extended[code]
		if !found {
			return ev, false
		}
		ev.Code, ev.Flags = c, engine.FlagE0
	}
	if value == 0 {
		ev.Flags |= engine.FlagBreak
	}
	return ev, true
}

// ToEvdev converts an engine event back. E0 codes without a dedicated key
// fall back to the plain code.
func ToEvdev(ev engine.Event) (code uint16, value int32, ok bool) {
	value = 1
	if ev.IsBreak() {
		value = 0
	}
	if ev.Flags&engine.FlagE0 != 0 {
		if k, found := unextended[ev.Code]; found {
			return k, value, true
		}
	}
	if ev.Code == 0 || ev.Code >= identityLimit {
		return 0, 0, false
	}
	return uint16(ev.Code), value, true
}

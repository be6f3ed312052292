// Package scancodes holds the Set 1 (IBM PC XT) keyboard make codes the
// remapping engine speaks, the tagged KeyCode used by binding tables, and
// the character map the binding language is written in.
package scancodes

import (
	"strings"
)

// Code is a Set 1 make code. Break codes are not represented here; the
// release is carried by the event flags.
type Code uint8

// MaxKeys is the size of the code domain.
const MaxKeys = 256

// Referrers:
//
//	https://www.win.tue.nl/~aeb/linux/kbd/scancodes-1.html
//	http://www.quadibloc.com/comp/scan.htm
const (
	KeyError      Code = 0x00
	KeyEsc        Code = 0x01
	Key1          Code = 0x02
	Key2          Code = 0x03
	Key3          Code = 0x04
	Key4          Code = 0x05
	Key5          Code = 0x06
	Key6          Code = 0x07
	Key7          Code = 0x08
	Key8          Code = 0x09
	Key9          Code = 0x0a
	Key0          Code = 0x0b
	KeyMinus      Code = 0x0c
	KeyEqual      Code = 0x0d
	KeyBackspace  Code = 0x0e
	KeyTab        Code = 0x0f
	KeyQ          Code = 0x10
	KeyW          Code = 0x11
	KeyE          Code = 0x12
	KeyR          Code = 0x13
	KeyT          Code = 0x14
	KeyY          Code = 0x15
	KeyU          Code = 0x16
	KeyI          Code = 0x17
	KeyO          Code = 0x18
	KeyP          Code = 0x19
	KeyLBrace     Code = 0x1a
	KeyRBrace     Code = 0x1b
	KeyEnter      Code = 0x1c
	KeyLCtrl      Code = 0x1d
	KeyA          Code = 0x1e
	KeyS          Code = 0x1f
	KeyD          Code = 0x20
	KeyF          Code = 0x21
	KeyG          Code = 0x22
	KeyH          Code = 0x23
	KeyJ          Code = 0x24
	KeyK          Code = 0x25
	KeyL          Code = 0x26
	KeySemicolon  Code = 0x27
	KeyQuote      Code = 0x28
	KeyGrave      Code = 0x29
	KeyLShift     Code = 0x2a
	KeyBackslash  Code = 0x2b
	KeyZ          Code = 0x2c
	KeyX          Code = 0x2d
	KeyC          Code = 0x2e
	KeyV          Code = 0x2f
	KeyB          Code = 0x30
	KeyN          Code = 0x31
	KeyM          Code = 0x32
	KeyComma      Code = 0x33
	KeyDot        Code = 0x34
	KeySlash      Code = 0x35
	KeyRShift     Code = 0x36
	KeyKPAsterisk Code = 0x37
	KeyLAlt       Code = 0x38
	KeySpace      Code = 0x39
	KeyCapsLock   Code = 0x3a
	KeyF1         Code = 0x3b
	KeyF2         Code = 0x3c
	KeyF3         Code = 0x3d
	KeyF4         Code = 0x3e
	KeyF5         Code = 0x3f
	KeyF6         Code = 0x40
	KeyF7         Code = 0x41
	KeyF8         Code = 0x42
	KeyF9         Code = 0x43
	KeyF10        Code = 0x44
	KeyNumLock    Code = 0x45
	KeyScrollLock Code = 0x46
	KeyHome       Code = 0x47
	KeyUp         Code = 0x48
	KeyPageUp     Code = 0x49
	KeyKPMinus    Code = 0x4a
	KeyLeft       Code = 0x4b
	KeyKP5        Code = 0x4c
	KeyRight      Code = 0x4d
	KeyKPPlus     Code = 0x4e
	KeyEnd        Code = 0x4f
	KeyDown       Code = 0x50
	KeyPageDown   Code = 0x51
	KeyInsert     Code = 0x52
	KeyDelete     Code = 0x53
	KeyF11        Code = 0x57
	KeyF12        Code = 0x58
	KeyLWin       Code = 0x5b
	KeyRWin       Code = 0x5c
	KeyMenu       Code = 0x5d
)

// Kind tags a KeyCode.
type Kind uint8

const (
	KindNone Kind = iota
	KindReal
	KindEnabled  // primary has at least one binding
	KindSingle   // tap binding, no chord partner
	KindVariable // internal command / variable assignment
	KindCommand  // stored macro invocation
)

// KeyCode is either a real key or one of the binding-table sentinels.
// The zero value is "no key".
type KeyCode struct {
	Kind Kind
	Code Code
}

var (
	None     = KeyCode{}
	Enabled  = KeyCode{Kind: KindEnabled}
	Single   = KeyCode{Kind: KindSingle}
	Variable = KeyCode{Kind: KindVariable}
	Command  = KeyCode{Kind: KindCommand}
)

// Real wraps a physical key code.
func Real(c Code) KeyCode {
	return KeyCode{Kind: KindReal, Code: c}
}

func (k KeyCode) IsReal() bool { return k.Kind == KindReal }

func (k KeyCode) IsNone() bool { return k.Kind == KindNone }

func (k KeyCode) String() string {
	switch k.Kind {
	case KindNone:
		return "none"
	case KindReal:
		return Name(k.Code)
	case KindEnabled:
		return "<enabled>"
	case KindSingle:
		return "<single>"
	case KindVariable:
		return "<variable>"
	case KindCommand:
		return "<command>"
	}
	return "<?>"
}

var byName map[string]Code

func init() {
	byName = make(map[string]Code, len(baseCodes)*2)
	for code, name := range baseCodes {
		if name != "" {
			byName[strings.ToLower(name)] = Code(code)
		}
	}
	for code, name := range numLockCodes {
		if name != "" {
			byName[strings.ToLower(name)] = Code(code)
		}
	}
	for name, seq := range escapeTable {
		byName[strings.ToLower(name)] = Code(seq[1])
	}
}

// Name returns the key name from the Set 1 tables, or the hex code when
// the table has no entry.
func Name(c Code) string {
	if int(c) < len(baseCodes) && baseCodes[c] != "" {
		return baseCodes[c]
	}
	for name, seq := range escapeTable {
		if Code(seq[1]) == c {
			return name
		}
	}
	return "0x" + hexByte(uint8(c))
}

// Lookup resolves a key name ("ScrollLock", "h", "LeftWindow", "Home")
// case-insensitively. A "0x" prefixed hex byte is accepted as a raw code.
func Lookup(name string) (Code, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if c, ok := byName[n]; ok {
		return c, true
	}
	if len(n) == 4 && strings.HasPrefix(n, "0x") {
		hi, ok1 := HexDigit(n[2])
		lo, ok2 := HexDigit(n[3])
		if ok1 && ok2 {
			return Code(hi<<4 | lo), true
		}
	}
	return 0, false
}

// HexDigit decodes one hexadecimal digit.
func HexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func hexByte(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}

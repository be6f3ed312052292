package scancodes

// KeyMap translates the characters of the binding language into key codes.
// It is built once and never changes afterwards.
type KeyMap struct {
	m [MaxKeys]KeyCode
}

// Lookup maps a config character. Unknown characters yield None.
func (km *KeyMap) Lookup(c byte) KeyCode {
	return km.m[c]
}

// Code returns the real code for c, or 0 when c is unmapped or a sentinel.
func (km *KeyMap) Code(c byte) Code {
	if k := km.m[c]; k.Kind == KindReal {
		return k.Code
	}
	return 0
}

// NewKeyMap builds a map from explicit pairs on top of an empty table.
func NewKeyMap(pairs map[byte]KeyCode) *KeyMap {
	km := &KeyMap{}
	for c, k := range pairs {
		km.m[c] = k
	}
	return km
}

// DefaultKeyMap is the stock layout: lower-case letters, digits and
// punctuation are themselves, upper-case letters name the keys that have
// no printable character, and shifted digits are the F keys.
func DefaultKeyMap() *KeyMap {
	km := &KeyMap{}
	set := func(c byte, code Code) { km.m[c] = Real(code) }

	km.m['~'] = Variable
	km.m['Q'] = Command

	set('A', KeyLAlt)
	set('B', KeyBackspace)
	set('C', KeyLCtrl)
	set('D', KeyDelete)
	set('E', KeyEsc)
	set('F', KeyCapsLock)
	set('G', KeyRShift)
	set('H', KeyLeft)
	set('I', KeyLShift)
	set('J', KeyDown)
	set('K', KeyUp)
	set('L', KeyRight)
	set('M', KeyInsert)
	set('N', KeyEnter)
	set('O', KeyHome)
	set('P', KeyEnd)
	set('R', KeyRShift)
	set('S', KeySpace)
	set('T', KeyTab)
	set('U', KeyPageUp)
	set('V', KeyPageDown)
	set('W', KeyLWin)
	set('X', KeyNumLock)
	set('Z', KeyScrollLock)

	for i, c := range []byte("!@#$%^&*()_+") {
		if i < 10 {
			set(c, KeyF1+Code(i))
		} else {
			set(c, KeyF11+Code(i-10))
		}
	}

	for i, c := range []byte("qwertyuiop") {
		set(c, KeyQ+Code(i))
	}
	for i, c := range []byte("asdfghjkl") {
		set(c, KeyA+Code(i))
	}
	for i, c := range []byte("zxcvbnm") {
		set(c, KeyZ+Code(i))
	}
	set('1', Key1)
	for c := byte('2'); c <= '9'; c++ {
		set(c, Key2+Code(c-'2'))
	}
	set('0', Key0)

	set('`', KeyGrave)
	set('-', KeyMinus)
	set('=', KeyEqual)
	set('[', KeyLBrace)
	set(']', KeyRBrace)
	set('\\', KeyBackslash)
	set(';', KeySemicolon)
	set('\'', KeyQuote)
	set(',', KeyComma)
	set('.', KeyDot)
	set('/', KeySlash)

	return km
}

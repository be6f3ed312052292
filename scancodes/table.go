package scancodes

// Tables lifted from:
//     http://www.win.tue.nl/~aeb/linux/kbd/scancodes-1.html#ss1.4

// Unshifted key names, indexed by make code.
var baseCodes = []string{
	"Error",
	"Esc", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "=", "Backspace",
	"Tab", "Q", "W", "E", "R", "T", "Y", "U", "I", "O", "P", "[", "]",
	"Enter",
	"LCtrl",
	"A", "S", "D", "F", "G", "H", "J", "K", "L", ";", "'",
	"`",
	"LShift", "\\",
	"Z", "X", "C", "V", "B", "N", "M", ",", ".", "/", "RShift",
	"Keypad_*",
	"LAlt", "Space",
	"CapsLock",
	"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10",
	"NumLock", "ScrollLock",
	"Keypad_7", "Keypad_8", "Keypad_9",
	"Keypad_-",
	"Keypad_4", "Keypad_5", "Keypad_6", "Keypad_Plus",
	"Keypad_1", "Keypad_2", "Keypad_3",
	"Keypad_0", "Keypad-.",
	"Alt_SysRq",
	"",
	"102nd",
	"F11", "F12",
}

// Names of the keypad codes with NumLock off; with the E0 prefix these are
// the dedicated navigation keys the engine emits.
var numLockCodes = []string{
	0x47: "Home", "Up", "PageUp",
	0x4b: "Left",
	0x4d: "Right",
	0x4f: "End", "Down", "PageDown",
	"Ins", "Del",
}

var escapeTable = map[string][]int{
	"Keypad_Enter":     {0xe0, 0x1c},
	"RCtrl":            {0xe0, 0x1d},
	"Keypad_/":         {0xe0, 0x35},
	"Ctrl_PrintScreen": {0xe0, 0x37},
	"RAlt":             {0xe0, 0x38},
	"Ctrl_Break":       {0xe0, 0x46},
	"LeftWindow":       {0xe0, 0x5b},
	"RightWindow":      {0xe0, 0x5c},
	"Menu":             {0xe0, 0x5d},
	"Power":            {0xe0, 0x5e},
	"Sleep":            {0xe0, 0x5f},
	"Wake":             {0xe0, 0x63},
}

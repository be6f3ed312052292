package engine

import (
	"chordmap/scancodes"
)

// play expands macro name. Each character is looked up as a macro step on
// the active layer; characters without a step are typed as plain taps.
// A step that is itself a macro reference is skipped, so playback always
// terminates.
func (e *Engine) play(name scancodes.Code) {
	text := e.snap.Macros.Get(name)
	if text == "" {
		e.log.Debugf("macro %v is empty", scancodes.Real(name))
		return
	}
	for i := 0; i < len(text); i++ {
		k := e.km.Lookup(text[i])
		if !k.IsReal() {
			continue
		}
		step := e.table().Step(e.layer, k.Code)
		switch step.Out[0].Kind {
		case scancodes.KindNone:
			e.tap(k.Code)
		case scancodes.KindVariable:
			e.command(step)
		case scancodes.KindCommand:
		default:
			e.emit(step)
		}
	}
}

// render types text one tap per character, through the key map.
func (e *Engine) render(text string) {
	for i := 0; i < len(text); i++ {
		if k := e.km.Lookup(text[i]); k.IsReal() {
			e.tap(k.Code)
		}
	}
}

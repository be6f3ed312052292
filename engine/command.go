package engine

import (
	"chordmap/binding"
	"chordmap/scancodes"
)

// Command selectors, the key after `~` in a binding's output.
const (
	CmdLayer  = scancodes.KeyL
	CmdPause  = scancodes.KeyP
	CmdReload = scancodes.KeyR
)

// command executes an internal command. Commands never produce output;
// a reload is only marked here and requested when the batch ends.
func (e *Engine) command(be binding.Entry) {
	sel := be.Out[1]
	if !sel.IsReal() {
		e.log.Warnf("command without selector: %v", be)
		return
	}
	switch sel.Code {
	case CmdLayer:
		e.layer = clampLayer(int(be.Arg))
		e.log.Infof("layer %d", e.layer)
	case CmdPause:
		e.paused = !e.paused
		e.log.Infof("paused %t", e.paused)
	case CmdReload:
		e.pendingReload = true
		e.log.Info("reload requested")
	default:
		e.log.Warnf("unknown command %v", sel)
	}
}

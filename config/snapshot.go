package config

import (
	"fmt"

	"chordmap/binding"
)

// Snapshot is everything one parse produces. It is published to the engine
// as a unit and never modified afterwards.
type Snapshot struct {
	Table    *binding.Table
	Params   Params
	Macros   *Macros
	Warnings []Warning
	Lines    int // non-blank, non-comment lines seen
}

// Warning records a line the parser skipped or only partly applied.
type Warning struct {
	Line int
	Msg  string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
}

// Empty is the snapshot in effect before anything was loaded: no bindings,
// default parameters.
func Empty() *Snapshot {
	t := binding.New()
	t.Freeze()
	return &Snapshot{
		Table:  t,
		Params: DefaultParams(),
		Macros: &Macros{},
	}
}

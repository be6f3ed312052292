// Package binding holds the layered lookup table the engine consults:
// layer x primary key x (single | partner key) -> Entry.
//
// A Table is filled by the config parser, frozen, and then only read.
// Reloads build a new Table; nothing is ever patched in place.
package binding

import (
	"errors"
	"fmt"

	"chordmap/scancodes"
)

// MaxLayers is the fixed number of switchable layers.
const MaxLayers = 5

var (
	ErrBounds = errors.New("binding: layer or key out of range")
	ErrFrozen = errors.New("binding: table is frozen")
	ErrTarget = errors.New("binding: partner must be a real key or Single")
)

// Entry is what a binding resolves to. Out[0] decides the meaning:
// a real key starts a chain of up to three keys, Variable runs the
// internal command named by Out[1], Command plays the macro named by Out[1].
type Entry struct {
	Out  [3]scancodes.KeyCode
	Flag uint8 // scan-code prefix byte for raw bindings
	Arg  uint8 // command argument, e.g. target layer
}

// Bound reports whether the entry holds anything.
func (e Entry) Bound() bool { return !e.Out[0].IsNone() }

// Keys returns the real output keys in press order.
func (e Entry) Keys() []scancodes.Code {
	keys := make([]scancodes.Code, 0, 3)
	for _, k := range e.Out {
		if !k.IsReal() {
			break
		}
		keys = append(keys, k.Code)
	}
	return keys
}

func (e Entry) String() string {
	switch e.Out[0].Kind {
	case scancodes.KindNone:
		return "unbound"
	case scancodes.KindVariable:
		return fmt.Sprintf("cmd(%v,%d)", e.Out[1], e.Arg)
	case scancodes.KindCommand:
		return fmt.Sprintf("macro(%v)", e.Out[1])
	}
	return fmt.Sprintf("keys(%v %v %v) flag=%#x arg=%d", e.Out[0], e.Out[1], e.Out[2], e.Flag, e.Arg)
}

type row struct {
	single Entry
	chord  [scancodes.MaxKeys]Entry
}

type layer struct {
	rows  [scancodes.MaxKeys]*row
	steps [scancodes.MaxKeys]Entry
}

// Table is the binding matrix. Rows are allocated only for primaries that
// carry a binding, so an existing row doubles as the Enabled marker.
type Table struct {
	layers [MaxLayers]layer
	count  int
	frozen bool
}

// New returns an empty, writable table.
func New() *Table {
	return &Table{}
}

func (t *Table) row(l int, primary scancodes.Code) *row {
	r := t.layers[l].rows[primary]
	if r == nil {
		r = &row{}
		t.layers[l].rows[primary] = r
	}
	return r
}

// Set stores e for (layer, primary, partner). partner is Single or a real key.
func (t *Table) Set(l int, primary scancodes.Code, partner scancodes.KeyCode, e Entry) error {
	if t.frozen {
		return ErrFrozen
	}
	if l < 0 || l >= MaxLayers {
		return ErrBounds
	}
	r := t.row(l, primary)
	switch partner.Kind {
	case scancodes.KindSingle:
		r.single = e
	case scancodes.KindReal:
		r.chord[partner.Code] = e
	default:
		return ErrTarget
	}
	t.count++
	return nil
}

// SetStep stores a macro-step binding for the given step key.
func (t *Table) SetStep(l int, step scancodes.Code, e Entry) error {
	if t.frozen {
		return ErrFrozen
	}
	if l < 0 || l >= MaxLayers {
		return ErrBounds
	}
	t.layers[l].steps[step] = e
	t.count++
	return nil
}

// Freeze makes the table read-only. It must be called before the table is
// handed to another goroutine.
func (t *Table) Freeze() { t.frozen = true }

func (t *Table) Frozen() bool { return t.frozen }

// Len is the number of Set/SetStep calls that stored an entry.
func (t *Table) Len() int { return t.count }

func check(l int) {
	if l < 0 || l >= MaxLayers {
		panic(fmt.Sprintf("binding: layer %d outside [0,%d)", l, MaxLayers))
	}
}

// Lookup resolves (layer, primary, partner). For partner Enabled the result
// is bound iff the primary has any binding on that layer.
func (t *Table) Lookup(l int, primary scancodes.Code, partner scancodes.KeyCode) Entry {
	check(l)
	r := t.layers[l].rows[primary]
	if r == nil {
		return Entry{}
	}
	switch partner.Kind {
	case scancodes.KindEnabled:
		return Entry{Out: [3]scancodes.KeyCode{scancodes.Enabled}}
	case scancodes.KindSingle:
		return r.single
	case scancodes.KindReal:
		return r.chord[partner.Code]
	}
	return Entry{}
}

// Enabled reports whether primary starts any binding on layer l.
func (t *Table) Enabled(l int, primary scancodes.Code) bool {
	check(l)
	return t.layers[l].rows[primary] != nil
}

func (t *Table) Single(l int, primary scancodes.Code) Entry {
	return t.Lookup(l, primary, scancodes.Single)
}

func (t *Table) Chord(l int, primary, partner scancodes.Code) Entry {
	return t.Lookup(l, primary, scancodes.Real(partner))
}

// LongHold is the binding of a key paired with itself.
func (t *Table) LongHold(l int, primary scancodes.Code) Entry {
	return t.Lookup(l, primary, scancodes.Real(primary))
}

// Step returns the macro-step binding for step on layer l.
func (t *Table) Step(l int, step scancodes.Code) Entry {
	check(l)
	return t.layers[l].steps[step]
}

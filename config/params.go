package config

import (
	"fmt"
	"time"
)

// Params are the global timing and mode knobs set by `~` lines.
type Params struct {
	BindWindow      time.Duration // minimum gap before a second key counts as a chord
	LongHold        time.Duration
	RepeatThreshold time.Duration
	ChordTimeout    time.Duration // 0 disables
	SafeMode        bool          // pass everything through while a load is running
	CapsLockAsShift bool
}

const (
	DefaultBindWindow      = 150 * time.Millisecond
	DefaultLongHold        = 150 * time.Millisecond
	DefaultRepeatThreshold = 450 * time.Millisecond
	DefaultChordTimeout    = 750 * time.Millisecond
)

// DefaultParams is what a file without `~` lines gets.
func DefaultParams() Params {
	return Params{
		BindWindow:      DefaultBindWindow,
		LongHold:        DefaultLongHold,
		RepeatThreshold: DefaultRepeatThreshold,
		ChordTimeout:    DefaultChordTimeout,
		SafeMode:        true,
	}
}

func (p Params) String() string {
	return fmt.Sprintf("bind=%v long=%v repeat=%v timeout=%v safe=%t caps=%t",
		p.BindWindow, p.LongHold, p.RepeatThreshold, p.ChordTimeout, p.SafeMode, p.CapsLockAsShift)
}

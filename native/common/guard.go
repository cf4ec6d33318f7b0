package common

import "errors"

// ErrModulePaused is returned by every mutator entry point while the module's
// pause flag is set.
var ErrModulePaused = errors.New("module paused")

// PauseView answers whether a named module is currently paused. The access
// book implements it; engines only ever read the flag.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty module
// name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

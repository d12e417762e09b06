package common

import "errors"

// ErrModulePaused is returned when an operation is blocked by the
// administrative pause switch.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module is administratively paused. The platform
// engine flips the flag; the escrow engine consults it before taking custody
// of new funds. Settlement and refunds never consult it, so escrowed value
// stays recoverable under a pause.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation with ErrModulePaused while the module is
// paused. A nil view or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

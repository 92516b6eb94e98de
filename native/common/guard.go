package common

import (
	"fmt"

	coreerrors "blockmarket/core/errors"
)

// PauseView exposes the read side of the circuit breaker to module engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, coreerrors.ErrPaused)
	}
	return nil
}

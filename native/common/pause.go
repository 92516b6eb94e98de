package common

import (
	"fmt"
	"sync"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/types"
)

// PauseRegistry is the module-scoped circuit breaker. Only the administrator
// configured at construction (the platform deployer) may toggle a module.
// Pausing never rolls back admitted operations; it only blocks admission of
// the guarded operations going forward.
type PauseRegistry struct {
	mu     sync.RWMutex
	admin  types.Address
	paused map[string]bool
}

// NewPauseRegistry creates a registry administered by the given address.
func NewPauseRegistry(admin types.Address) *PauseRegistry {
	return &PauseRegistry{
		admin:  admin,
		paused: make(map[string]bool),
	}
}

// Pause marks the module paused.
func (r *PauseRegistry) Pause(caller types.Address, module string) error {
	return r.set(caller, module, true)
}

// Unpause clears the module's paused flag.
func (r *PauseRegistry) Unpause(caller types.Address, module string) error {
	return r.set(caller, module, false)
}

func (r *PauseRegistry) set(caller types.Address, module string, paused bool) error {
	if module == "" {
		return fmt.Errorf("pause: empty module name: %w", coreerrors.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return fmt.Errorf("pause: caller %s is not the administrator: %w", caller.Hex(), coreerrors.ErrUnauthorized)
	}
	r.paused[module] = paused
	return nil
}

// IsPaused implements PauseView.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[module]
}

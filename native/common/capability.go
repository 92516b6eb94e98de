package common

import (
	"sync"

	"blockmarket/core/types"
)

// Capability is an explicit allow-list of module addresses permitted to call
// a privileged operation. Grants are made once at wiring time; cross-module
// trust is never implied by package visibility.
type Capability struct {
	mu      sync.RWMutex
	allowed map[types.Address]struct{}
}

// NewCapability creates an empty allow-list.
func NewCapability() *Capability {
	return &Capability{allowed: make(map[types.Address]struct{})}
}

// Grant adds the address to the allow-list. Granting the zero address is a
// no-op so an unset module address can never be used as a capability.
func (c *Capability) Grant(addr types.Address) {
	if c == nil || addr.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowed[addr] = struct{}{}
}

// Allowed reports whether the address holds the capability.
func (c *Capability) Allowed(addr types.Address) bool {
	if c == nil || addr.IsZero() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.allowed[addr]
	return ok
}

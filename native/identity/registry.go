package identity

import (
	"fmt"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/events"
	"blockmarket/core/types"
)

var (
	errNilState     = fmt.Errorf("identity registry: state not configured")
	errValidation   = coreerrors.ErrValidation
	errUnauthorized = coreerrors.ErrUnauthorized
)

type registryState interface {
	IdentityOwner() (types.Address, bool)
	GetUser(addr types.Address) (*User, bool)
	PutUser(u *User) error
	AdminAddresses() ([]types.Address, error)
	AppendAdmin(addr types.Address) error
	StoreOwnerAddresses() ([]types.Address, error)
	AppendStoreOwner(addr types.Address) error
}

// Registry manages the owner singleton and the append-only Admin and
// StoreOwner membership lists. Indices assigned at registration are permanent;
// there is no removal operation.
type Registry struct {
	st      registryState
	emitter events.Emitter
}

// NewRegistry creates a registry backed by the provided state manager.
func NewRegistry(st registryState) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used to broadcast registrations.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt registryEvent) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

// Owner returns the platform owner singleton.
func (r *Registry) Owner() (types.Address, bool) {
	if r == nil || r.st == nil {
		return types.Address{}, false
	}
	return r.st.IdentityOwner()
}

// IsOwner reports whether the address is the platform owner.
func (r *Registry) IsOwner(addr types.Address) bool {
	owner, ok := r.Owner()
	return ok && owner == addr
}

// RegisterAdmin appends addr to the Admin list and records its profile. Only
// the platform owner may register admins; an address already holding any role
// (or the owner itself) is rejected.
func (r *Registry) RegisterAdmin(caller, addr types.Address, name, email string) (*User, error) {
	if r == nil || r.st == nil {
		return nil, errNilState
	}
	owner, ok := r.st.IdentityOwner()
	if !ok {
		return nil, fmt.Errorf("identity: owner not configured")
	}
	if caller != owner {
		return nil, fmt.Errorf("identity: only the platform owner may register admins: %w", errUnauthorized)
	}
	if err := r.checkUnassigned(addr, owner); err != nil {
		return nil, err
	}
	user, err := SanitizeUser(&User{Address: addr, Name: name, Email: email, Role: RoleAdmin})
	if err != nil {
		return nil, err
	}
	if err := r.st.PutUser(user); err != nil {
		return nil, err
	}
	if err := r.st.AppendAdmin(addr); err != nil {
		return nil, err
	}
	index := uint64(0)
	if admins, err := r.st.AdminAddresses(); err == nil && len(admins) > 0 {
		index = uint64(len(admins) - 1)
	}
	r.emit(newAdminRegisteredEvent(user, index))
	return user.Clone(), nil
}

// RegisterStoreOwner appends addr to the StoreOwner list and records its
// profile. Only an active admin may register store owners. The platform owner
// and active admins are rejected as store owners so an arbiter can never sit
// on both sides of an escrow.
func (r *Registry) RegisterStoreOwner(caller, addr types.Address, name, email string) (*User, error) {
	if r == nil || r.st == nil {
		return nil, errNilState
	}
	if !r.IsActiveAdmin(caller) {
		return nil, fmt.Errorf("identity: only an active admin may register store owners: %w", errUnauthorized)
	}
	owner, ok := r.st.IdentityOwner()
	if !ok {
		return nil, fmt.Errorf("identity: owner not configured")
	}
	if err := r.checkUnassigned(addr, owner); err != nil {
		return nil, err
	}
	user, err := SanitizeUser(&User{Address: addr, Name: name, Email: email, Role: RoleStoreOwner})
	if err != nil {
		return nil, err
	}
	if err := r.st.PutUser(user); err != nil {
		return nil, err
	}
	if err := r.st.AppendStoreOwner(addr); err != nil {
		return nil, err
	}
	index := uint64(0)
	if owners, err := r.st.StoreOwnerAddresses(); err == nil && len(owners) > 0 {
		index = uint64(len(owners) - 1)
	}
	r.emit(newStoreOwnerRegisteredEvent(user, index))
	return user.Clone(), nil
}

func (r *Registry) checkUnassigned(addr, owner types.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("identity: zero address: %w", errValidation)
	}
	if addr == owner {
		return fmt.Errorf("identity: address %s is the platform owner: %w", addr.Hex(), errValidation)
	}
	if user, ok := r.st.GetUser(addr); ok && user.Role != RoleNone {
		return fmt.Errorf("identity: address %s already registered as %s: %w", addr.Hex(), user.Role, errValidation)
	}
	return nil
}

// IsActiveAdmin is a pure membership query; it never fails.
func (r *Registry) IsActiveAdmin(addr types.Address) bool {
	if r == nil || r.st == nil {
		return false
	}
	user, ok := r.st.GetUser(addr)
	return ok && user.Role == RoleAdmin
}

// IsActiveStoreOwner is a pure membership query; it never fails.
func (r *Registry) IsActiveStoreOwner(addr types.Address) bool {
	if r == nil || r.st == nil {
		return false
	}
	user, ok := r.st.GetUser(addr)
	return ok && user.Role == RoleStoreOwner
}

// GetUser returns the registered profile for the address.
func (r *Registry) GetUser(addr types.Address) (*User, error) {
	if r == nil || r.st == nil {
		return nil, errNilState
	}
	user, ok := r.st.GetUser(addr)
	if !ok {
		return nil, fmt.Errorf("identity: unknown address %s: %w", addr.Hex(), coreerrors.ErrNotFound)
	}
	return user.Clone(), nil
}

// TotalAdmins returns the length of the append-only admin list.
func (r *Registry) TotalAdmins() uint64 {
	if r == nil || r.st == nil {
		return 0
	}
	admins, err := r.st.AdminAddresses()
	if err != nil {
		return 0
	}
	return uint64(len(admins))
}

// AdminAddress returns the admin registered at index i.
func (r *Registry) AdminAddress(i uint64) (types.Address, error) {
	if r == nil || r.st == nil {
		return types.Address{}, errNilState
	}
	admins, err := r.st.AdminAddresses()
	if err != nil {
		return types.Address{}, err
	}
	if i >= uint64(len(admins)) {
		return types.Address{}, fmt.Errorf("identity: admin index %d out of range: %w", i, coreerrors.ErrNotFound)
	}
	return admins[i], nil
}

// TotalStoreOwners returns the length of the append-only store-owner list.
func (r *Registry) TotalStoreOwners() uint64 {
	if r == nil || r.st == nil {
		return 0
	}
	owners, err := r.st.StoreOwnerAddresses()
	if err != nil {
		return 0
	}
	return uint64(len(owners))
}

// StoreOwnerAddress returns the store owner registered at index i.
func (r *Registry) StoreOwnerAddress(i uint64) (types.Address, error) {
	if r == nil || r.st == nil {
		return types.Address{}, errNilState
	}
	owners, err := r.st.StoreOwnerAddresses()
	if err != nil {
		return types.Address{}, err
	}
	if i >= uint64(len(owners)) {
		return types.Address{}, fmt.Errorf("identity: store owner index %d out of range: %w", i, coreerrors.ErrNotFound)
	}
	return owners[i], nil
}

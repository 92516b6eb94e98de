package catalog

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/events"
	"blockmarket/core/types"
	nativecommon "blockmarket/native/common"
)

const moduleName = "catalog"

var errNilState = fmt.Errorf("catalog engine: state not configured")

type engineState interface {
	GetStore(id uint64) (*Store, bool)
	PutStore(s *Store) error
	StoreCount() (uint64, error)
	SetStoreCount(n uint64) error
	StoreIDsOfOwner(addr types.Address) ([]uint64, error)
	AppendStoreOfOwner(addr types.Address, id uint64) error
	GetProduct(id uint64) (*Product, bool)
	PutProduct(p *Product) error
	ProductCount() (uint64, error)
	SetProductCount(n uint64) error
	ProductIDsOfStore(storeID uint64) ([]uint64, error)
	AppendProductOfStore(storeID, id uint64) error
}

type roleView interface {
	IsActiveStoreOwner(addr types.Address) bool
}

// Engine owns the store and product catalog. Creation is gated on the
// StoreOwner role and the module pause flag; the status mutator is privileged
// behind an explicit capability so only the escrow module can flip product
// lifecycle states.
type Engine struct {
	st            engineState
	roles         roleView
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	pauseRegistry *nativecommon.PauseRegistry
	statusCallers *nativecommon.Capability
}

// NewEngine creates a catalog engine backed by the provided state manager.
func NewEngine(st engineState) *Engine {
	return &Engine{
		st:            st,
		emitter:       events.NoopEmitter{},
		statusCallers: nativecommon.NewCapability(),
	}
}

// SetRoles configures the identity view used for StoreOwner checks.
func (e *Engine) SetRoles(roles roleView) { e.roles = roles }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the circuit breaker consulted before mutations.
func (e *Engine) SetPauses(reg *nativecommon.PauseRegistry) {
	if e == nil {
		return
	}
	e.pauseRegistry = reg
	e.pauses = reg
}

// GrantStatusCapability allows the given module address to call
// SetProductStatus. Intended to be called once at wiring time for the escrow
// module.
func (e *Engine) GrantStatusCapability(addr types.Address) {
	if e == nil {
		return
	}
	e.statusCallers.Grant(addr)
}

func (e *Engine) emit(evt catalogEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) isActiveStoreOwner(addr types.Address) bool {
	return e.roles != nil && e.roles.IsActiveStoreOwner(addr)
}

// CreateStore registers a new storefront owned by the caller. The caller must
// hold the StoreOwner role and the catalog must not be paused.
func (e *Engine) CreateStore(caller types.Address, name, email, imageHash, descHash string) (*Store, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.isActiveStoreOwner(caller) {
		return nil, fmt.Errorf("catalog: caller %s is not an active store owner: %w", caller.Hex(), coreerrors.ErrUnauthorized)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("catalog: empty store name: %w", coreerrors.ErrValidation)
	}
	id, err := e.st.StoreCount()
	if err != nil {
		return nil, err
	}
	store := &Store{
		ID:        id,
		Owner:     caller,
		Name:      name,
		Email:     strings.TrimSpace(email),
		ImageHash: imageHash,
		DescHash:  descHash,
	}
	if err := e.st.PutStore(store); err != nil {
		return nil, err
	}
	if err := e.st.SetStoreCount(id + 1); err != nil {
		return nil, err
	}
	if err := e.st.AppendStoreOfOwner(caller, id); err != nil {
		return nil, err
	}
	e.emit(newStoreCreatedEvent(store))
	return store.Clone(), nil
}

// AddProduct lists a product under storeID with an initial status of Sale and
// no buyer. The caller must be the active store owner that owns the store, and
// storeOwner must match the store's recorded owner.
func (e *Engine) AddProduct(caller types.Address, storeID uint64, storeOwner types.Address, name string, price *big.Int, imageHash, descHash string) (*Product, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.isActiveStoreOwner(caller) {
		return nil, fmt.Errorf("catalog: caller %s is not an active store owner: %w", caller.Hex(), coreerrors.ErrUnauthorized)
	}
	store, ok := e.st.GetStore(storeID)
	if !ok {
		return nil, fmt.Errorf("catalog: unknown store %d: %w", storeID, coreerrors.ErrNotFound)
	}
	if store.Owner != caller {
		return nil, fmt.Errorf("catalog: caller %s does not own store %d: %w", caller.Hex(), storeID, coreerrors.ErrUnauthorized)
	}
	if storeOwner != store.Owner {
		return nil, fmt.Errorf("catalog: store owner argument %s does not match store %d: %w", storeOwner.Hex(), storeID, coreerrors.ErrValidation)
	}
	id, err := e.st.ProductCount()
	if err != nil {
		return nil, err
	}
	product, err := SanitizeProduct(&Product{
		ID:        id,
		StoreID:   storeID,
		Owner:     store.Owner,
		Name:      name,
		Price:     price,
		ImageHash: imageHash,
		DescHash:  descHash,
		Status:    StatusSale,
		Buyer:     types.ZeroAddress,
	})
	if err != nil {
		return nil, err
	}
	if err := e.st.PutProduct(product); err != nil {
		return nil, err
	}
	if err := e.st.SetProductCount(id + 1); err != nil {
		return nil, err
	}
	if err := e.st.AppendProductOfStore(storeID, id); err != nil {
		return nil, err
	}
	e.emit(newProductAddedEvent(product))
	return product.Clone(), nil
}

// GetStore returns the store registered under id.
func (e *Engine) GetStore(id uint64) (*Store, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	store, ok := e.st.GetStore(id)
	if !ok {
		return nil, fmt.Errorf("catalog: unknown store %d: %w", id, coreerrors.ErrNotFound)
	}
	return store.Clone(), nil
}

// GetProduct returns the product registered under id.
func (e *Engine) GetProduct(id uint64) (*Product, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	product, ok := e.st.GetProduct(id)
	if !ok {
		return nil, fmt.Errorf("catalog: unknown product %d: %w", id, coreerrors.ErrNotFound)
	}
	return product.Clone(), nil
}

// IsActiveStore reports whether a store exists under id. Pure query; never
// fails.
func (e *Engine) IsActiveStore(id uint64) bool {
	if e == nil || e.st == nil {
		return false
	}
	_, ok := e.st.GetStore(id)
	return ok
}

// ProductsOfStore returns the permanent product ids listed under storeID.
func (e *Engine) ProductsOfStore(storeID uint64) ([]uint64, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	if _, ok := e.st.GetStore(storeID); !ok {
		return nil, fmt.Errorf("catalog: unknown store %d: %w", storeID, coreerrors.ErrNotFound)
	}
	return e.st.ProductIDsOfStore(storeID)
}

// StoresOfOwner returns the store ids created by addr.
func (e *Engine) StoresOfOwner(addr types.Address) ([]uint64, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	return e.st.StoreIDsOfOwner(addr)
}

// StoresCount returns the total number of stores ever created.
func (e *Engine) StoresCount() (uint64, error) {
	if e == nil || e.st == nil {
		return 0, errNilState
	}
	return e.st.StoreCount()
}

// ProductsCount returns the total number of products ever listed.
func (e *Engine) ProductsCount() (uint64, error) {
	if e == nil || e.st == nil {
		return 0, errNilState
	}
	return e.st.ProductCount()
}

// SetProductStatus is the privileged lifecycle mutator. The caller must hold
// the status capability (granted to the escrow module at wiring time);
// ordinary callers can never reach it. Transitions are restricted to
// Sale -> Reserved (recording the buyer) and Reserved -> Sold | Refunded.
func (e *Engine) SetProductStatus(caller types.Address, productID uint64, status Status, buyer types.Address) error {
	if e == nil || e.st == nil {
		return errNilState
	}
	if !e.statusCallers.Allowed(caller) {
		return fmt.Errorf("catalog: caller %s lacks the status capability: %w", caller.Hex(), coreerrors.ErrUnauthorized)
	}
	product, ok := e.st.GetProduct(productID)
	if !ok {
		return fmt.Errorf("catalog: unknown product %d: %w", productID, coreerrors.ErrNotFound)
	}
	switch {
	case product.Status == StatusSale && status == StatusReserved:
		if buyer.IsZero() {
			return fmt.Errorf("catalog: reserve requires a buyer: %w", coreerrors.ErrValidation)
		}
		product.Buyer = buyer
	case product.Status == StatusReserved && (status == StatusSold || status == StatusRefunded):
		// Buyer is already recorded; resolution keeps it.
	default:
		return fmt.Errorf("catalog: illegal transition %s -> %s for product %d: %w", product.Status, status, productID, coreerrors.ErrInvalidState)
	}
	product.Status = status
	if err := e.st.PutProduct(product); err != nil {
		return err
	}
	e.emit(newProductStatusEvent(product))
	return nil
}

// Pause stops createStore and addProduct until Unpause. Only the catalog
// administrator configured on the pause registry may toggle it. Reads stay
// available while paused.
func (e *Engine) Pause(caller types.Address) error {
	if e == nil || e.pauseRegistry == nil {
		return fmt.Errorf("catalog engine: pauses not configured")
	}
	if err := e.pauseRegistry.Pause(caller, moduleName); err != nil {
		return err
	}
	e.emit(newPauseEvent(true))
	return nil
}

// Unpause re-enables createStore and addProduct.
func (e *Engine) Unpause(caller types.Address) error {
	if e == nil || e.pauseRegistry == nil {
		return fmt.Errorf("catalog engine: pauses not configured")
	}
	if err := e.pauseRegistry.Unpause(caller, moduleName); err != nil {
		return err
	}
	e.emit(newPauseEvent(false))
	return nil
}

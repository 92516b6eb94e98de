package core

import (
	"fmt"
	"math/big"
	"sync"

	"blockmarket/core/events"
	"blockmarket/core/state"
	"blockmarket/core/types"
	"blockmarket/native/catalog"
	"blockmarket/native/common"
	"blockmarket/native/escrow"
	"blockmarket/native/identity"
	"blockmarket/storage"
)

// GenesisAccount is a one-time balance credit applied to a fresh database.
type GenesisAccount struct {
	Address types.Address
	Balance *big.Int
}

// Market is the central controller wiring the identity, catalog, and escrow
// modules over one state database. All mutating operations are admitted in a
// single total order behind the write lock; reads share the read lock. No
// operation ever observes a partial effect of another.
type Market struct {
	mu       sync.RWMutex
	db       storage.Database
	state    *state.Manager
	pauses   *common.PauseRegistry
	identity *identity.Registry
	catalog  *catalog.Engine
	escrow   *escrow.Engine
	bus      *events.Bus
	owner    types.Address
}

// NewMarket opens the ledger over db with owner as the platform owner
// singleton and the administrator of both circuit breakers. The owner is
// persisted on first start; a mismatch on a later start is rejected.
func NewMarket(db storage.Database, owner types.Address) (*Market, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("market: owner address required")
	}
	manager := state.NewManager(db)
	if stored, ok := manager.IdentityOwner(); ok {
		if stored != owner {
			return nil, fmt.Errorf("market: database belongs to owner %s, got %s", stored.Hex(), owner.Hex())
		}
	} else if err := manager.SetIdentityOwner(owner); err != nil {
		return nil, err
	}

	bus := events.NewBus(256)
	pauses := common.NewPauseRegistry(owner)

	identityReg := identity.NewRegistry(manager)
	identityReg.SetEmitter(bus)

	catalogEngine := catalog.NewEngine(manager)
	catalogEngine.SetRoles(identityReg)
	catalogEngine.SetPauses(pauses)
	catalogEngine.SetEmitter(bus)
	catalogEngine.GrantStatusCapability(escrow.ModuleAddress)

	escrowEngine := escrow.NewEngine(manager)
	escrowEngine.SetCatalog(catalogEngine)
	escrowEngine.SetIdentity(identityReg)
	escrowEngine.SetAdmin(owner)
	escrowEngine.SetPauses(pauses)
	escrowEngine.SetEmitter(bus)

	return &Market{
		db:       db,
		state:    manager,
		pauses:   pauses,
		identity: identityReg,
		catalog:  catalogEngine,
		escrow:   escrowEngine,
		bus:      bus,
		owner:    owner,
	}, nil
}

// Bus exposes the event bus for RPC subscribers.
func (m *Market) Bus() *events.Bus { return m.bus }

// Owner returns the platform owner singleton.
func (m *Market) Owner() types.Address { return m.owner }

// ApplyGenesis credits the configured accounts exactly once per database.
func (m *Market) ApplyGenesis(accounts []GenesisAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.GenesisApplied() {
		return nil
	}
	for _, entry := range accounts {
		if entry.Address.IsZero() || entry.Balance == nil || entry.Balance.Sign() <= 0 {
			return fmt.Errorf("market: invalid genesis credit for %s", entry.Address.Hex())
		}
		acc, err := m.state.GetAccount(entry.Address)
		if err != nil {
			return err
		}
		acc.Balance = new(big.Int).Add(acc.Balance, entry.Balance)
		if err := m.state.PutAccount(entry.Address, acc); err != nil {
			return err
		}
	}
	return m.state.SetGenesisApplied()
}

// Balance returns the spendable funds held by addr.
func (m *Market) Balance(addr types.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, err := m.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// --- identity operations ---

func (m *Market) RegisterAdmin(caller, addr types.Address, name, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.RegisterAdmin(caller, addr, name, email)
}

func (m *Market) RegisterStoreOwner(caller, addr types.Address, name, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.RegisterStoreOwner(caller, addr, name, email)
}

func (m *Market) IsActiveAdmin(addr types.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.IsActiveAdmin(addr)
}

func (m *Market) IsActiveStoreOwner(addr types.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.IsActiveStoreOwner(addr)
}

func (m *Market) GetUser(addr types.Address) (*identity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.GetUser(addr)
}

func (m *Market) TotalAdmins() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.TotalAdmins()
}

func (m *Market) AdminAddress(i uint64) (types.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.AdminAddress(i)
}

func (m *Market) TotalStoreOwners() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.TotalStoreOwners()
}

func (m *Market) StoreOwnerAddress(i uint64) (types.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.StoreOwnerAddress(i)
}

// --- catalog operations ---

func (m *Market) CreateStore(caller types.Address, name, email, imageHash, descHash string) (*catalog.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.CreateStore(caller, name, email, imageHash, descHash)
}

func (m *Market) AddProduct(caller types.Address, storeID uint64, storeOwner types.Address, name string, price *big.Int, imageHash, descHash string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.AddProduct(caller, storeID, storeOwner, name, price, imageHash, descHash)
}

func (m *Market) GetStore(id uint64) (*catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.GetStore(id)
}

func (m *Market) GetProduct(id uint64) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.GetProduct(id)
}

func (m *Market) IsActiveStore(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.IsActiveStore(id)
}

func (m *Market) ProductsOfStore(storeID uint64) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.ProductsOfStore(storeID)
}

func (m *Market) StoresOfOwner(addr types.Address) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.StoresOfOwner(addr)
}

func (m *Market) StoresCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.StoresCount()
}

func (m *Market) ProductsCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.ProductsCount()
}

func (m *Market) CatalogPause(caller types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.Pause(caller)
}

func (m *Market) CatalogUnpause(caller types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.Unpause(caller)
}

// --- escrow operations ---

func (m *Market) Buy(caller types.Address, productID uint64, payment *big.Int) (*escrow.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.Buy(caller, productID, payment)
}

func (m *Market) ReleaseAmountToStoreOwner(caller types.Address, productID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.ReleaseAmountToStoreOwner(caller, productID)
}

func (m *Market) RefundAmountToBuyer(caller types.Address, productID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.RefundAmountToBuyer(caller, productID)
}

func (m *Market) GetEscrowInfo(productID uint64) (*escrow.Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.escrow.GetEscrowInfo(productID)
}

func (m *Market) ReleaseRefundCounts(productID uint64) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.escrow.ReleaseRefundCounts(productID)
}

func (m *Market) EscrowPause(caller types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.Pause(caller)
}

func (m *Market) EscrowUnpause(caller types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.Unpause(caller)
}

func (m *Market) AllowBuyerWithdrawal(caller types.Address, allow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.AllowBuyerWithdrawal(caller, allow)
}

func (m *Market) BuyerWithdraw(caller types.Address, productID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow.BuyerWithdraw(caller, productID)
}

package state

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"blockmarket/core/types"
	"blockmarket/native/catalog"
	"blockmarket/native/escrow"
	"blockmarket/native/identity"
	"blockmarket/storage"
)

// Manager provides the persistence layer for the ledger modules. Every value
// is RLP-encoded and stored under a keccak256-hashed, prefix-partitioned key;
// each module writes only inside its own prefix. Manager is not safe for
// concurrent use: the Market aggregate serialises access.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	ownerKey          = ethcrypto.Keccak256([]byte("identity/owner"))
	adminListKey      = ethcrypto.Keccak256([]byte("identity/admins"))
	storeOwnerListKey = ethcrypto.Keccak256([]byte("identity/storeowners"))
	storeCountKey     = ethcrypto.Keccak256([]byte("catalog/store-count"))
	productCountKey   = ethcrypto.Keccak256([]byte("catalog/product-count"))
	withdrawalsKey    = ethcrypto.Keccak256([]byte("escrow/withdrawals-allowed"))
	genesisKey        = ethcrypto.Keccak256([]byte("genesis-applied"))

	userPrefix          = []byte("identity/user:")
	storePrefix         = []byte("catalog/store:")
	ownerStoresPrefix   = []byte("catalog/owner-stores:")
	productPrefix       = []byte("catalog/product:")
	storeProductsPrefix = []byte("catalog/store-products:")
	escrowPrefix        = []byte("escrow/record:")
	accountPrefix       = []byte("account:")
)

func addrKey(prefix []byte, addr types.Address) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func idKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return ethcrypto.Keccak256(buf)
}

// load decodes the value stored under key into out, reporting whether the key
// existed.
func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) store(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) loadUint(key []byte) (uint64, error) {
	var n uint64
	if _, err := m.load(key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Manager) loadIDList(key []byte) ([]uint64, error) {
	var list []uint64
	if _, err := m.load(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) appendID(key []byte, id uint64) error {
	list, err := m.loadIDList(key)
	if err != nil {
		return err
	}
	return m.store(key, append(list, id))
}

func (m *Manager) loadAddressList(key []byte) ([]types.Address, error) {
	var list []types.Address
	if _, err := m.load(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// --- identity partition ---

// SetIdentityOwner records the platform owner singleton. It may be set once.
func (m *Manager) SetIdentityOwner(addr types.Address) error {
	return m.store(ownerKey, addr)
}

// IdentityOwner returns the platform owner singleton.
func (m *Manager) IdentityOwner() (types.Address, bool) {
	var addr types.Address
	ok, err := m.load(ownerKey, &addr)
	if err != nil || !ok || addr.IsZero() {
		return types.Address{}, false
	}
	return addr, true
}

// PutUser persists a registered profile.
func (m *Manager) PutUser(u *identity.User) error {
	sanitized, err := identity.SanitizeUser(u)
	if err != nil {
		return err
	}
	return m.store(addrKey(userPrefix, sanitized.Address), sanitized)
}

// GetUser returns the profile registered for addr. Read errors report as
// absent, matching the best-effort semantics the membership checks need.
func (m *Manager) GetUser(addr types.Address) (*identity.User, bool) {
	user := new(identity.User)
	ok, err := m.load(addrKey(userPrefix, addr), user)
	if err != nil || !ok {
		return nil, false
	}
	return user, true
}

// AdminAddresses returns the append-only admin list in registration order.
func (m *Manager) AdminAddresses() ([]types.Address, error) {
	return m.loadAddressList(adminListKey)
}

// AppendAdmin appends addr to the admin list at the next permanent index.
func (m *Manager) AppendAdmin(addr types.Address) error {
	list, err := m.loadAddressList(adminListKey)
	if err != nil {
		return err
	}
	return m.store(adminListKey, append(list, addr))
}

// StoreOwnerAddresses returns the append-only store-owner list in
// registration order.
func (m *Manager) StoreOwnerAddresses() ([]types.Address, error) {
	return m.loadAddressList(storeOwnerListKey)
}

// AppendStoreOwner appends addr to the store-owner list.
func (m *Manager) AppendStoreOwner(addr types.Address) error {
	list, err := m.loadAddressList(storeOwnerListKey)
	if err != nil {
		return err
	}
	return m.store(storeOwnerListKey, append(list, addr))
}

// --- catalog partition ---

// PutStore persists a storefront record.
func (m *Manager) PutStore(s *catalog.Store) error {
	if s == nil {
		return errors.New("state: nil store")
	}
	return m.store(idKey(storePrefix, s.ID), s)
}

// GetStore returns the store registered under id.
func (m *Manager) GetStore(id uint64) (*catalog.Store, bool) {
	store := new(catalog.Store)
	ok, err := m.load(idKey(storePrefix, id), store)
	if err != nil || !ok {
		return nil, false
	}
	return store, true
}

// StoreCount returns the number of stores ever created.
func (m *Manager) StoreCount() (uint64, error) {
	return m.loadUint(storeCountKey)
}

// SetStoreCount records the next store id.
func (m *Manager) SetStoreCount(n uint64) error {
	return m.store(storeCountKey, n)
}

// StoreIDsOfOwner returns the ids of stores created by addr.
func (m *Manager) StoreIDsOfOwner(addr types.Address) ([]uint64, error) {
	return m.loadIDList(addrKey(ownerStoresPrefix, addr))
}

// AppendStoreOfOwner indexes a new store under its owner.
func (m *Manager) AppendStoreOfOwner(addr types.Address, id uint64) error {
	return m.appendID(addrKey(ownerStoresPrefix, addr), id)
}

// PutProduct persists a product record.
func (m *Manager) PutProduct(p *catalog.Product) error {
	sanitized, err := catalog.SanitizeProduct(p)
	if err != nil {
		return err
	}
	return m.store(idKey(productPrefix, sanitized.ID), sanitized)
}

// GetProduct returns the product registered under id.
func (m *Manager) GetProduct(id uint64) (*catalog.Product, bool) {
	product := new(catalog.Product)
	ok, err := m.load(idKey(productPrefix, id), product)
	if err != nil || !ok {
		return nil, false
	}
	return product, true
}

// ProductCount returns the number of products ever listed.
func (m *Manager) ProductCount() (uint64, error) {
	return m.loadUint(productCountKey)
}

// SetProductCount records the next global product id.
func (m *Manager) SetProductCount(n uint64) error {
	return m.store(productCountKey, n)
}

// ProductIDsOfStore returns the ids of products listed under storeID.
func (m *Manager) ProductIDsOfStore(storeID uint64) ([]uint64, error) {
	return m.loadIDList(idKey(storeProductsPrefix, storeID))
}

// AppendProductOfStore indexes a new product under its store.
func (m *Manager) AppendProductOfStore(storeID, id uint64) error {
	return m.appendID(idKey(storeProductsPrefix, storeID), id)
}

// --- escrow partition ---

// PutEscrow persists an escrow record keyed by its product id.
func (m *Manager) PutEscrow(e *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	return m.store(idKey(escrowPrefix, sanitized.ProductID), sanitized)
}

// GetEscrow returns the escrow opened for productID.
func (m *Manager) GetEscrow(productID uint64) (*escrow.Escrow, bool) {
	esc := new(escrow.Escrow)
	ok, err := m.load(idKey(escrowPrefix, productID), esc)
	if err != nil || !ok {
		return nil, false
	}
	return esc, true
}

// WithdrawalsAllowed reports the emergency buyer-withdrawal flag.
func (m *Manager) WithdrawalsAllowed() bool {
	var allowed bool
	ok, err := m.load(withdrawalsKey, &allowed)
	return err == nil && ok && allowed
}

// SetWithdrawalsAllowed persists the emergency buyer-withdrawal flag.
func (m *Manager) SetWithdrawalsAllowed(allowed bool) error {
	return m.store(withdrawalsKey, allowed)
}

// --- account ledger ---

// GetAccount returns the funds ledger entry for addr. Unknown addresses read
// as empty accounts.
func (m *Manager) GetAccount(addr types.Address) (*types.Account, error) {
	acc := new(types.Account)
	ok, err := m.load(addrKey(accountPrefix, addr), acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.EnsureAccount(nil), nil
	}
	return types.EnsureAccount(acc), nil
}

// PutAccount persists the funds ledger entry for addr.
func (m *Manager) PutAccount(addr types.Address, acc *types.Account) error {
	return m.store(addrKey(accountPrefix, addr), types.EnsureAccount(acc))
}

// --- genesis ---

// GenesisApplied reports whether the one-time genesis credits have been
// written to this database.
func (m *Manager) GenesisApplied() bool {
	var applied bool
	ok, err := m.load(genesisKey, &applied)
	return err == nil && ok && applied
}

// SetGenesisApplied marks the genesis credits as written.
func (m *Manager) SetGenesisApplied() error {
	return m.store(genesisKey, true)
}

package catalog

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/types"
	nativecommon "blockmarket/native/common"
)

type mockState struct {
	stores        map[uint64]*Store
	products      map[uint64]*Product
	storeCount    uint64
	productCount  uint64
	storesOfOwner map[types.Address][]uint64
	productsOf    map[uint64][]uint64
}

func newMockState() *mockState {
	return &mockState{
		stores:        make(map[uint64]*Store),
		products:      make(map[uint64]*Product),
		storesOfOwner: make(map[types.Address][]uint64),
		productsOf:    make(map[uint64][]uint64),
	}
}

func (m *mockState) GetStore(id uint64) (*Store, bool) {
	s, ok := m.stores[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *mockState) PutStore(s *Store) error {
	m.stores[s.ID] = s.Clone()
	return nil
}

func (m *mockState) StoreCount() (uint64, error)   { return m.storeCount, nil }
func (m *mockState) SetStoreCount(n uint64) error  { m.storeCount = n; return nil }
func (m *mockState) ProductCount() (uint64, error) { return m.productCount, nil }
func (m *mockState) SetProductCount(n uint64) error {
	m.productCount = n
	return nil
}

func (m *mockState) StoreIDsOfOwner(addr types.Address) ([]uint64, error) {
	return append([]uint64(nil), m.storesOfOwner[addr]...), nil
}

func (m *mockState) AppendStoreOfOwner(addr types.Address, id uint64) error {
	m.storesOfOwner[addr] = append(m.storesOfOwner[addr], id)
	return nil
}

func (m *mockState) GetProduct(id uint64) (*Product, bool) {
	p, ok := m.products[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (m *mockState) PutProduct(p *Product) error {
	sanitized, err := SanitizeProduct(p)
	if err != nil {
		return err
	}
	m.products[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) ProductIDsOfStore(storeID uint64) ([]uint64, error) {
	return append([]uint64(nil), m.productsOf[storeID]...), nil
}

func (m *mockState) AppendProductOfStore(storeID, id uint64) error {
	m.productsOf[storeID] = append(m.productsOf[storeID], id)
	return nil
}

type stubRoles struct {
	storeOwners map[types.Address]bool
}

func (s stubRoles) IsActiveStoreOwner(addr types.Address) bool {
	return s.storeOwners[addr]
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, len(addr)))
	return addr
}

func newTestEngine(owner types.Address) (*Engine, *mockState, *nativecommon.PauseRegistry) {
	st := newMockState()
	engine := NewEngine(st)
	engine.SetRoles(stubRoles{storeOwners: map[types.Address]bool{owner: true}})
	pauses := nativecommon.NewPauseRegistry(newTestAddress(0x01))
	engine.SetPauses(pauses)
	return engine, st, pauses
}

func TestCreateStore(t *testing.T) {
	owner := newTestAddress(0x03)
	engine, _, _ := newTestEngine(owner)

	store, err := engine.CreateStore(owner, "Store A", "a@example.com", "imageHash", "descHash")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if store.ID != 0 || store.Owner != owner {
		t.Fatalf("unexpected store %+v", store)
	}
	if !engine.IsActiveStore(0) {
		t.Fatal("store 0 not active")
	}
	second, err := engine.CreateStore(owner, "Store B", "b@example.com", "", "")
	if err != nil {
		t.Fatalf("create second store: %v", err)
	}
	if second.ID != 1 {
		t.Fatalf("store ids not monotonic: %d", second.ID)
	}
	ids, err := engine.StoresOfOwner(owner)
	if err != nil {
		t.Fatalf("stores of owner: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("unexpected owner index %v", ids)
	}
	count, err := engine.StoresCount()
	if err != nil || count != 2 {
		t.Fatalf("stores count = %d, %v", count, err)
	}
}

func TestCreateStoreRequiresStoreOwner(t *testing.T) {
	owner := newTestAddress(0x03)
	engine, _, _ := newTestEngine(owner)

	_, err := engine.CreateStore(newTestAddress(0x04), "Store A", "a@example.com", "", "")
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAddProduct(t *testing.T) {
	owner := newTestAddress(0x03)
	engine, _, _ := newTestEngine(owner)
	if _, err := engine.CreateStore(owner, "Store A", "a@example.com", "", ""); err != nil {
		t.Fatalf("create store: %v", err)
	}

	product, err := engine.AddProduct(owner, 0, owner, "Vita Plus 500ml", big.NewInt(1000), "imageHash", "descHash")
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if product.ID != 0 || product.Status != StatusSale || !product.Buyer.IsZero() {
		t.Fatalf("unexpected product %+v", product)
	}
	ids, err := engine.ProductsOfStore(0)
	if err != nil {
		t.Fatalf("products of store: %v", err)
	}
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("unexpected store index %v", ids)
	}
}

func TestAddProductValidation(t *testing.T) {
	owner := newTestAddress(0x03)
	other := newTestAddress(0x04)
	engine, _, _ := newTestEngine(owner)
	engine.SetRoles(stubRoles{storeOwners: map[types.Address]bool{owner: true, other: true}})
	if _, err := engine.CreateStore(owner, "Store A", "a@example.com", "", ""); err != nil {
		t.Fatalf("create store: %v", err)
	}

	// Non-positive price.
	if _, err := engine.AddProduct(owner, 0, owner, "Freebie", big.NewInt(0), "", ""); !errors.Is(err, coreerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero price, got %v", err)
	}
	if _, err := engine.AddProduct(owner, 0, owner, "Negative", big.NewInt(-5), "", ""); !errors.Is(err, coreerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative price, got %v", err)
	}
	// Unknown store.
	if _, err := engine.AddProduct(owner, 9, owner, "Orphan", big.NewInt(10), "", ""); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown store, got %v", err)
	}
	// A store owner that does not own this store.
	if _, err := engine.AddProduct(other, 0, other, "Poach", big.NewInt(10), "", ""); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign store, got %v", err)
	}
	// Mismatched owner argument.
	if _, err := engine.AddProduct(owner, 0, other, "Mismatch", big.NewInt(10), "", ""); !errors.Is(err, coreerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for owner mismatch, got %v", err)
	}
}

func TestPauseGatesMutations(t *testing.T) {
	owner := newTestAddress(0x03)
	admin := newTestAddress(0x01)
	engine, _, _ := newTestEngine(owner)
	if _, err := engine.CreateStore(owner, "Store A", "a@example.com", "", ""); err != nil {
		t.Fatalf("create store: %v", err)
	}

	if err := engine.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := engine.AddProduct(owner, 0, owner, "Blocked", big.NewInt(10), "", ""); !errors.Is(err, coreerrors.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if _, err := engine.CreateStore(owner, "Store B", "b@example.com", "", ""); !errors.Is(err, coreerrors.ErrPaused) {
		t.Fatalf("expected ErrPaused for createStore, got %v", err)
	}
	// Reads stay available while paused.
	if _, err := engine.GetStore(0); err != nil {
		t.Fatalf("read while paused: %v", err)
	}
	if err := engine.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := engine.AddProduct(owner, 0, owner, "Allowed", big.NewInt(10), "", ""); err != nil {
		t.Fatalf("add product after unpause: %v", err)
	}
	// Only the administrator may toggle.
	if err := engine.Pause(owner); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin pause, got %v", err)
	}
}

func TestSetProductStatusCapability(t *testing.T) {
	owner := newTestAddress(0x03)
	buyer := newTestAddress(0x04)
	module := newTestAddress(0xEE)
	engine, _, _ := newTestEngine(owner)
	if _, err := engine.CreateStore(owner, "Store A", "a@example.com", "", ""); err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := engine.AddProduct(owner, 0, owner, "Vita Plus 500ml", big.NewInt(1000), "", ""); err != nil {
		t.Fatalf("add product: %v", err)
	}

	// Without a grant nobody may flip status, not even the store owner.
	if err := engine.SetProductStatus(owner, 0, StatusReserved, buyer); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	engine.GrantStatusCapability(module)
	if err := engine.SetProductStatus(module, 0, StatusReserved, buyer); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	product, err := engine.GetProduct(0)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Status != StatusReserved || product.Buyer != buyer {
		t.Fatalf("unexpected product after reserve %+v", product)
	}
}

func TestSetProductStatusTransitions(t *testing.T) {
	owner := newTestAddress(0x03)
	buyer := newTestAddress(0x04)
	module := newTestAddress(0xEE)
	engine, _, _ := newTestEngine(owner)
	engine.GrantStatusCapability(module)
	if _, err := engine.CreateStore(owner, "Store A", "a@example.com", "", ""); err != nil {
		t.Fatalf("create store: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := engine.AddProduct(owner, 0, owner, "Item", big.NewInt(1000), "", ""); err != nil {
			t.Fatalf("add product: %v", err)
		}
	}

	// Sale -> Sold skips Reserved and must fail.
	if err := engine.SetProductStatus(module, 0, StatusSold, buyer); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for Sale->Sold, got %v", err)
	}
	// Reserve requires a buyer.
	if err := engine.SetProductStatus(module, 0, StatusReserved, types.ZeroAddress); !errors.Is(err, coreerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero buyer, got %v", err)
	}
	if err := engine.SetProductStatus(module, 0, StatusReserved, buyer); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Reserved -> Sale is not a legal transition.
	if err := engine.SetProductStatus(module, 0, StatusSale, buyer); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for Reserved->Sale, got %v", err)
	}
	if err := engine.SetProductStatus(module, 0, StatusSold, buyer); err != nil {
		t.Fatalf("resolve sold: %v", err)
	}
	// Terminal states accept no further transitions.
	if err := engine.SetProductStatus(module, 0, StatusRefunded, buyer); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after Sold, got %v", err)
	}

	if err := engine.SetProductStatus(module, 1, StatusReserved, buyer); err != nil {
		t.Fatalf("reserve second: %v", err)
	}
	if err := engine.SetProductStatus(module, 1, StatusRefunded, buyer); err != nil {
		t.Fatalf("resolve refunded: %v", err)
	}
	product, err := engine.GetProduct(1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Status != StatusRefunded || product.Buyer != buyer {
		t.Fatalf("unexpected refunded product %+v", product)
	}
}

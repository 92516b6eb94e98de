package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockmarket/core/types"
	"blockmarket/native/catalog"
	"blockmarket/native/escrow"
	"blockmarket/native/identity"
	"blockmarket/storage"
)

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, len(addr)))
	return addr
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestIdentityOwnerRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok := m.IdentityOwner()
	require.False(t, ok)

	owner := newTestAddress(0x01)
	require.NoError(t, m.SetIdentityOwner(owner))
	got, ok := m.IdentityOwner()
	require.True(t, ok)
	require.Equal(t, owner, got)
}

func TestUserRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := newTestAddress(0x02)

	_, ok := m.GetUser(addr)
	require.False(t, ok)

	user := &identity.User{Address: addr, Name: "Fia", Email: "fia@example.com", Role: identity.RoleAdmin}
	require.NoError(t, m.PutUser(user))
	got, ok := m.GetUser(addr)
	require.True(t, ok)
	require.Equal(t, user, got)
}

func TestAppendOnlyLists(t *testing.T) {
	m := newTestManager(t)
	a := newTestAddress(0x02)
	b := newTestAddress(0x03)

	require.NoError(t, m.AppendAdmin(a))
	require.NoError(t, m.AppendAdmin(b))
	admins, err := m.AdminAddresses()
	require.NoError(t, err)
	require.Equal(t, []types.Address{a, b}, admins)

	require.NoError(t, m.AppendStoreOwner(b))
	owners, err := m.StoreOwnerAddresses()
	require.NoError(t, err)
	require.Equal(t, []types.Address{b}, owners)
}

func TestStoreAndProductRoundTrip(t *testing.T) {
	m := newTestManager(t)
	owner := newTestAddress(0x03)

	store := &catalog.Store{ID: 0, Owner: owner, Name: "Store A", Email: "a@example.com"}
	require.NoError(t, m.PutStore(store))
	require.NoError(t, m.SetStoreCount(1))
	require.NoError(t, m.AppendStoreOfOwner(owner, 0))

	got, ok := m.GetStore(0)
	require.True(t, ok)
	require.Equal(t, store, got)
	count, err := m.StoreCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
	ids, err := m.StoreIDsOfOwner(owner)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, ids)

	product := &catalog.Product{
		ID:      0,
		StoreID: 0,
		Owner:   owner,
		Name:    "Vita Plus 500ml",
		Price:   big.NewInt(1000),
		Status:  catalog.StatusSale,
	}
	require.NoError(t, m.PutProduct(product))
	require.NoError(t, m.SetProductCount(1))
	require.NoError(t, m.AppendProductOfStore(0, 0))

	gotProduct, ok := m.GetProduct(0)
	require.True(t, ok)
	require.Equal(t, product.Name, gotProduct.Name)
	require.Zero(t, product.Price.Cmp(gotProduct.Price))
	require.Equal(t, catalog.StatusSale, gotProduct.Status)
	require.True(t, gotProduct.Buyer.IsZero())
	pids, err := m.ProductIDsOfStore(0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, pids)
}

func TestPutProductValidates(t *testing.T) {
	m := newTestManager(t)
	owner := newTestAddress(0x03)

	err := m.PutProduct(&catalog.Product{ID: 0, Owner: owner, Name: "Freebie", Price: big.NewInt(0), Status: catalog.StatusSale})
	require.Error(t, err)
	_, ok := m.GetProduct(0)
	require.False(t, ok)
}

func TestEscrowRoundTrip(t *testing.T) {
	m := newTestManager(t)
	esc := &escrow.Escrow{
		ProductID:    4,
		ProductName:  "Vita Plus 500ml",
		Buyer:        newTestAddress(0x04),
		Seller:       newTestAddress(0x03),
		Arbiter:      newTestAddress(0x02),
		Amount:       big.NewInt(1000),
		ReleaseVotes: []types.Address{newTestAddress(0x02)},
	}
	require.NoError(t, m.PutEscrow(esc))

	got, ok := m.GetEscrow(4)
	require.True(t, ok)
	require.Equal(t, esc.Buyer, got.Buyer)
	require.Equal(t, esc.Seller, got.Seller)
	require.Equal(t, esc.Arbiter, got.Arbiter)
	require.Zero(t, esc.Amount.Cmp(got.Amount))
	require.Len(t, got.ReleaseVotes, 1)
	require.Empty(t, got.RefundVotes)
	require.False(t, got.Disbursed)

	got.Disbursed = true
	got.ReleaseVotes = append(got.ReleaseVotes, newTestAddress(0x04))
	require.NoError(t, m.PutEscrow(got))
	final, ok := m.GetEscrow(4)
	require.True(t, ok)
	require.True(t, final.Disbursed)
	require.Len(t, final.ReleaseVotes, 2)
}

func TestWithdrawalsFlag(t *testing.T) {
	m := newTestManager(t)
	require.False(t, m.WithdrawalsAllowed())
	require.NoError(t, m.SetWithdrawalsAllowed(true))
	require.True(t, m.WithdrawalsAllowed())
	require.NoError(t, m.SetWithdrawalsAllowed(false))
	require.False(t, m.WithdrawalsAllowed())
}

func TestAccountsDefaultEmpty(t *testing.T) {
	m := newTestManager(t)
	addr := newTestAddress(0x05)

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Sign())

	acc.Balance = big.NewInt(5000)
	acc.Nonce = 2
	require.NoError(t, m.PutAccount(addr, acc))
	got, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, got.Balance.Cmp(big.NewInt(5000)))
	require.Equal(t, uint64(2), got.Nonce)
}

func TestGenesisFlag(t *testing.T) {
	m := newTestManager(t)
	require.False(t, m.GenesisApplied())
	require.NoError(t, m.SetGenesisApplied())
	require.True(t, m.GenesisApplied())
}

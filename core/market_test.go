package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	marketerrors "blockmarket/core/errors"
	"blockmarket/core/types"
	"blockmarket/native/catalog"
	"blockmarket/storage"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func newTestMarket(t *testing.T) *Market {
	t.Helper()
	m, err := NewMarket(storage.NewMemDB(), addr(0x01))
	require.NoError(t, err)
	return m
}

func TestNewMarketRequiresOwner(t *testing.T) {
	_, err := NewMarket(storage.NewMemDB(), types.ZeroAddress)
	require.Error(t, err)
}

func TestNewMarketRejectsOwnerMismatch(t *testing.T) {
	db := storage.NewMemDB()
	_, err := NewMarket(db, addr(0x01))
	require.NoError(t, err)

	_, err = NewMarket(db, addr(0x02))
	require.Error(t, err)

	_, err = NewMarket(db, addr(0x01))
	require.NoError(t, err)
}

func TestApplyGenesisOnce(t *testing.T) {
	m := newTestMarket(t)
	buyer := addr(0x10)
	credits := []GenesisAccount{{Address: buyer, Balance: big.NewInt(5000)}}

	require.NoError(t, m.ApplyGenesis(credits))
	bal, err := m.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), bal.Int64())

	// A second application is a no-op, no double credit.
	require.NoError(t, m.ApplyGenesis(credits))
	bal, err = m.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), bal.Int64())
}

func TestApplyGenesisRejectsInvalidCredit(t *testing.T) {
	m := newTestMarket(t)
	err := m.ApplyGenesis([]GenesisAccount{{Address: types.ZeroAddress, Balance: big.NewInt(1)}})
	require.Error(t, err)
	err = m.ApplyGenesis([]GenesisAccount{{Address: addr(0x10), Balance: big.NewInt(0)}})
	require.Error(t, err)
}

// TestMarketPurchaseLifecycle walks the happy path end to end: the owner
// seats an admin, the admin seats a store owner, the store owner lists a
// product, a buyer purchases it, and two release votes disburse the escrow.
func TestMarketPurchaseLifecycle(t *testing.T) {
	owner := addr(0x01)
	admin := addr(0x02)
	seller := addr(0x03)
	buyer := addr(0x04)

	m, err := NewMarket(storage.NewMemDB(), owner)
	require.NoError(t, err)
	require.NoError(t, m.ApplyGenesis([]GenesisAccount{
		{Address: buyer, Balance: big.NewInt(5000)},
	}))

	_, err = m.RegisterAdmin(owner, admin, "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = m.RegisterStoreOwner(admin, seller, "Sam", "sam@example.com")
	require.NoError(t, err)
	require.True(t, m.IsActiveAdmin(admin))
	require.True(t, m.IsActiveStoreOwner(seller))

	store, err := m.CreateStore(seller, "Books", "shop@example.com", "img", "desc")
	require.NoError(t, err)
	require.Equal(t, uint64(0), store.ID)
	require.True(t, m.IsActiveStore(store.ID))

	product, err := m.AddProduct(seller, store.ID, seller, "Atlas", big.NewInt(1000), "img", "desc")
	require.NoError(t, err)
	require.Equal(t, uint64(0), product.ID)
	require.Equal(t, catalog.StatusSale, product.Status)

	esc, err := m.Buy(buyer, product.ID, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, buyer, esc.Buyer)
	require.Equal(t, seller, esc.Seller)
	require.Equal(t, admin, esc.Arbiter)
	require.False(t, esc.Disbursed)

	product, err = m.GetProduct(product.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusReserved, product.Status)
	require.Equal(t, buyer, product.Buyer)

	bal, err := m.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(4000), bal.Int64())

	require.NoError(t, m.ReleaseAmountToStoreOwner(admin, product.ID))
	releases, refunds, err := m.ReleaseRefundCounts(product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, releases)
	require.Equal(t, 0, refunds)

	require.NoError(t, m.ReleaseAmountToStoreOwner(buyer, product.ID))

	esc, err = m.GetEscrowInfo(product.ID)
	require.NoError(t, err)
	require.True(t, esc.Disbursed)

	bal, err = m.Balance(seller)
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())

	product, err = m.GetProduct(product.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusSold, product.Status)

	// Voting after disbursement is rejected.
	err = m.ReleaseAmountToStoreOwner(seller, product.ID)
	require.True(t, errors.Is(err, marketerrors.ErrInvalidState))
}

func TestMarketPauseBlocksPurchases(t *testing.T) {
	owner := addr(0x01)
	admin := addr(0x02)
	seller := addr(0x03)
	buyer := addr(0x04)

	m, err := NewMarket(storage.NewMemDB(), owner)
	require.NoError(t, err)
	require.NoError(t, m.ApplyGenesis([]GenesisAccount{
		{Address: buyer, Balance: big.NewInt(5000)},
	}))
	_, err = m.RegisterAdmin(owner, admin, "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = m.RegisterStoreOwner(admin, seller, "Sam", "sam@example.com")
	require.NoError(t, err)
	store, err := m.CreateStore(seller, "Books", "shop@example.com", "img", "desc")
	require.NoError(t, err)
	product, err := m.AddProduct(seller, store.ID, seller, "Atlas", big.NewInt(1000), "img", "desc")
	require.NoError(t, err)

	require.NoError(t, m.EscrowPause(owner))
	_, err = m.Buy(buyer, product.ID, big.NewInt(1000))
	require.True(t, errors.Is(err, marketerrors.ErrPaused))

	require.NoError(t, m.EscrowUnpause(owner))
	_, err = m.Buy(buyer, product.ID, big.NewInt(1000))
	require.NoError(t, err)
}

func TestMarketBuyerWithdrawFlow(t *testing.T) {
	owner := addr(0x01)
	admin := addr(0x02)
	seller := addr(0x03)
	buyer := addr(0x04)

	m, err := NewMarket(storage.NewMemDB(), owner)
	require.NoError(t, err)
	require.NoError(t, m.ApplyGenesis([]GenesisAccount{
		{Address: buyer, Balance: big.NewInt(1000)},
	}))
	_, err = m.RegisterAdmin(owner, admin, "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = m.RegisterStoreOwner(admin, seller, "Sam", "sam@example.com")
	require.NoError(t, err)
	store, err := m.CreateStore(seller, "Books", "shop@example.com", "img", "desc")
	require.NoError(t, err)
	product, err := m.AddProduct(seller, store.ID, seller, "Atlas", big.NewInt(1000), "img", "desc")
	require.NoError(t, err)
	_, err = m.Buy(buyer, product.ID, big.NewInt(1000))
	require.NoError(t, err)

	// Withdrawal needs the escrow module paused and the flag raised.
	err = m.BuyerWithdraw(buyer, product.ID)
	require.True(t, errors.Is(err, marketerrors.ErrInvalidState))

	require.NoError(t, m.EscrowPause(owner))
	err = m.AllowBuyerWithdrawal(admin, true)
	require.True(t, errors.Is(err, marketerrors.ErrUnauthorized))
	require.NoError(t, m.AllowBuyerWithdrawal(owner, true))
	require.NoError(t, m.BuyerWithdraw(buyer, product.ID))

	bal, err := m.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())

	esc, err := m.GetEscrowInfo(product.ID)
	require.NoError(t, err)
	require.True(t, esc.Disbursed)
}

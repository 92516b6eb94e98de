package types

import "math/big"

// Account holds the spendable funds ledger entry for one address. The ledger
// is internal: callers arrive with pre-funded accounts (genesis credits), the
// escrow vault is just another account.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// EnsureAccount returns a usable account, replacing nil values so callers can
// mutate balances without nil checks.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

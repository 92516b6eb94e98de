package escrow

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/types"
)

// Quorum is the number of matching votes among the three escrow parties
// required to trigger disbursement.
const Quorum = 2

// ModuleAddress identifies the escrow module when it exercises the catalog's
// privileged status capability. VaultAddress is the internal account that
// custodies all undisbursed escrow funds.
var (
	ModuleAddress = deriveAddress("blockmarket/native/escrow")
	VaultAddress  = deriveAddress("blockmarket/escrow-vault")
)

func deriveAddress(label string) types.Address {
	var addr types.Address
	copy(addr[:], ethcrypto.Keccak256([]byte(label))[12:])
	return addr
}

// Escrow binds a buyer, a seller, and an admin arbiter to one product sale.
// It is keyed 1:1 by product id, created on purchase, and mutates only via
// vote registration and the single disbursed transition. Amount is an
// immutable snapshot of the price paid.
type Escrow struct {
	ProductID    uint64
	ProductName  string
	Buyer        types.Address
	Seller       types.Address
	Arbiter      types.Address
	Amount       *big.Int
	ReleaseVotes []types.Address
	RefundVotes  []types.Address
	Disbursed    bool
}

// Clone returns a deep copy of the escrow record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	clone.ReleaseVotes = append([]types.Address(nil), e.ReleaseVotes...)
	clone.RefundVotes = append([]types.Address(nil), e.RefundVotes...)
	return &clone
}

// HasVoted reports whether addr appears in the given vote set.
func hasVoted(votes []types.Address, addr types.Address) bool {
	for _, v := range votes {
		if v == addr {
			return true
		}
	}
	return false
}

// IsParty reports whether addr is one of the escrow's three members.
func (e *Escrow) IsParty(addr types.Address) bool {
	if e == nil {
		return false
	}
	return addr == e.Buyer || addr == e.Seller || addr == e.Arbiter
}

// SanitizeEscrow validates an escrow record, returning a cloned instance with
// a non-nil amount. The original value is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil record: %w", coreerrors.ErrValidation)
	}
	clone := e.Clone()
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive: %w", coreerrors.ErrValidation)
	}
	if clone.Buyer.IsZero() || clone.Seller.IsZero() || clone.Arbiter.IsZero() {
		return nil, fmt.Errorf("escrow: missing party address: %w", coreerrors.ErrValidation)
	}
	if len(clone.ReleaseVotes) > 3 || len(clone.RefundVotes) > 3 {
		return nil, fmt.Errorf("escrow: vote set overflow: %w", coreerrors.ErrValidation)
	}
	return clone, nil
}

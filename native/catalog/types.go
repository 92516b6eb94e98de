package catalog

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/types"
)

// Status is the product lifecycle state. Transitions are monotonic:
// Sale -> Reserved on purchase, then Reserved -> Sold or Reserved -> Refunded
// on escrow resolution.
type Status uint8

const (
	StatusSale Status = iota
	StatusReserved
	StatusSold
	StatusRefunded
)

// String renders the status for events and RPC projections.
func (s Status) String() string {
	switch s {
	case StatusSale:
		return "sale"
	case StatusReserved:
		return "reserved"
	case StatusSold:
		return "sold"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusSale, StatusReserved, StatusSold, StatusRefunded:
		return true
	default:
		return false
	}
}

// Store is a registered storefront. Stores are created once and never
// deleted; the id is permanent.
type Store struct {
	ID        uint64
	Owner     types.Address
	Name      string
	Email     string
	ImageHash string
	DescHash  string
}

// Clone returns a copy callers can mutate safely.
func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Product is a listed item. The id is global across stores and permanent.
// ImageHash and DescHash are opaque content-addressable handles resolved by
// the presentation layer, never interpreted here.
type Product struct {
	ID        uint64
	StoreID   uint64
	Owner     types.Address
	Name      string
	Price     *big.Int
	ImageHash string
	DescHash  string
	Status    Status
	Buyer     types.Address
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeProduct validates and normalises a product definition, returning a
// cloned instance with a trimmed name and non-nil price. The original value is
// not mutated.
func SanitizeProduct(p *Product) (*Product, error) {
	if p == nil {
		return nil, fmt.Errorf("catalog: nil product: %w", coreerrors.ErrValidation)
	}
	clone := p.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	if clone.Name == "" {
		return nil, fmt.Errorf("catalog: empty product name: %w", coreerrors.ErrValidation)
	}
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("catalog: price must be positive: %w", coreerrors.ErrValidation)
	}
	if clone.Owner.IsZero() {
		return nil, fmt.Errorf("catalog: zero store owner: %w", coreerrors.ErrValidation)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("catalog: invalid status %d: %w", clone.Status, coreerrors.ErrValidation)
	}
	return clone, nil
}

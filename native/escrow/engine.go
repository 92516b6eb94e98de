package escrow

import (
	"fmt"
	"math/big"

	coreerrors "blockmarket/core/errors"
	"blockmarket/core/events"
	coretypes "blockmarket/core/types"
	"blockmarket/native/catalog"
	nativecommon "blockmarket/native/common"
)

const moduleName = "escrow"

var (
	errNilState    = fmt.Errorf("escrow engine: state not configured")
	errNilCatalog  = fmt.Errorf("escrow engine: catalog not configured")
	errNilIdentity = fmt.Errorf("escrow engine: identity not configured")
)

type engineState interface {
	GetEscrow(productID uint64) (*Escrow, bool)
	PutEscrow(e *Escrow) error
	WithdrawalsAllowed() bool
	SetWithdrawalsAllowed(allowed bool) error
	GetAccount(addr coretypes.Address) (*coretypes.Account, error)
	PutAccount(addr coretypes.Address, acc *coretypes.Account) error
}

type catalogAccess interface {
	GetProduct(id uint64) (*catalog.Product, error)
	SetProductStatus(caller coretypes.Address, productID uint64, status catalog.Status, buyer coretypes.Address) error
}

type identityView interface {
	IsOwner(addr coretypes.Address) bool
	IsActiveAdmin(addr coretypes.Address) bool
	TotalAdmins() uint64
	AdminAddress(i uint64) (coretypes.Address, error)
}

type voteKind uint8

const (
	voteRelease voteKind = iota
	voteRefund
)

func (k voteKind) String() string {
	if k == voteRefund {
		return "refund"
	}
	return "release"
}

// Engine custodies escrowed funds and drives the three-party quorum vote. It
// reads the catalog (price, owner) and the identity registry (admin pool) when
// opening an escrow, then calls back into the catalog's privileged mutator on
// resolution. Trust is one-directional: catalog and identity never call in.
type Engine struct {
	st            engineState
	catalog       catalogAccess
	identity      identityView
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	pauseRegistry *nativecommon.PauseRegistry
	admin         coretypes.Address
}

// NewEngine creates an escrow engine backed by the provided state manager.
func NewEngine(st engineState) *Engine {
	return &Engine{st: st, emitter: events.NoopEmitter{}}
}

// SetCatalog configures the catalog collaborator.
func (e *Engine) SetCatalog(c catalogAccess) { e.catalog = c }

// SetIdentity configures the identity view used for arbiter selection and
// buyer exclusion checks.
func (e *Engine) SetIdentity(v identityView) { e.identity = v }

// SetAdmin configures the administrator allowed to toggle the emergency
// buyer-withdrawal flag (the platform deployer).
func (e *Engine) SetAdmin(addr coretypes.Address) { e.admin = addr }

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

func (e *Engine) emit(evt escrowEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.st == nil:
		return errNilState
	case e.catalog == nil:
		return errNilCatalog
	case e.identity == nil:
		return errNilIdentity
	}
	return nil
}

// transfer moves amount between internal accounts. The caller must have
// verified the source balance beforehand when a cleaner error is wanted;
// transfer itself still refuses to overdraw.
func (e *Engine) transfer(from, to coretypes.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("escrow: non-positive transfer amount: %w", coreerrors.ErrValidation)
	}
	fromAcc, err := e.st.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.st.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = coretypes.EnsureAccount(fromAcc)
	toAcc = coretypes.EnsureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("escrow: insufficient balance in %s: %w", from.Hex(), coreerrors.ErrValidation)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.st.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.st.PutAccount(to, toAcc)
}

// selectArbiter picks the arbiter for a new escrow deterministically from the
// active admin pool: the admin registered at index productID mod pool size.
// The registration index is permanent, so the choice is reproducible.
func (e *Engine) selectArbiter(productID uint64) (coretypes.Address, error) {
	total := e.identity.TotalAdmins()
	if total == 0 {
		return coretypes.Address{}, fmt.Errorf("escrow: no active admins to arbitrate: %w", coreerrors.ErrInvalidState)
	}
	return e.identity.AdminAddress(productID % total)
}

// Buy purchases the product, moving the payment into the vault and opening
// the escrow. The product must be on sale, the payment must equal the listed
// price, and the caller must be neither the platform owner nor an active
// admin (both are excluded to remove the arbiter self-dealing incentive).
func (e *Engine) Buy(caller coretypes.Address, productID uint64, payment *big.Int) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if payment == nil || payment.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: payment must be positive: %w", coreerrors.ErrValidation)
	}
	if e.identity.IsOwner(caller) {
		return nil, fmt.Errorf("escrow: the platform owner may not buy: %w", coreerrors.ErrUnauthorized)
	}
	if e.identity.IsActiveAdmin(caller) {
		return nil, fmt.Errorf("escrow: an active admin may not buy: %w", coreerrors.ErrUnauthorized)
	}
	product, err := e.catalog.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if product.Status != catalog.StatusSale {
		return nil, fmt.Errorf("escrow: product %d is not on sale: %w", productID, coreerrors.ErrInvalidState)
	}
	if _, exists := e.st.GetEscrow(productID); exists {
		return nil, fmt.Errorf("escrow: escrow already open for product %d: %w", productID, coreerrors.ErrInvalidState)
	}
	if payment.Cmp(product.Price) != 0 {
		return nil, fmt.Errorf("escrow: payment %s does not match price %s: %w", payment, product.Price, coreerrors.ErrValidation)
	}
	arbiter, err := e.selectArbiter(productID)
	if err != nil {
		return nil, err
	}
	// All preconditions hold; no failure below is caller-correctable.
	if err := e.transfer(caller, VaultAddress, payment); err != nil {
		return nil, err
	}
	esc := &Escrow{
		ProductID:   productID,
		ProductName: product.Name,
		Buyer:       caller,
		Seller:      product.Owner,
		Arbiter:     arbiter,
		Amount:      new(big.Int).Set(payment),
	}
	if err := e.st.PutEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.catalog.SetProductStatus(ModuleAddress, productID, catalog.StatusReserved, caller); err != nil {
		return nil, err
	}
	e.emit(newPurchasedEvent(esc))
	return esc.Clone(), nil
}

// ReleaseAmountToStoreOwner registers a release vote from the caller. The
// second distinct release vote disburses the amount to the seller and marks
// the product Sold.
func (e *Engine) ReleaseAmountToStoreOwner(caller coretypes.Address, productID uint64) error {
	return e.vote(caller, productID, voteRelease)
}

// RefundAmountToBuyer registers a refund vote from the caller. The second
// distinct refund vote disburses the amount back to the buyer and marks the
// product Refunded.
func (e *Engine) RefundAmountToBuyer(caller coretypes.Address, productID uint64) error {
	return e.vote(caller, productID, voteRefund)
}

func (e *Engine) vote(caller coretypes.Address, productID uint64, kind voteKind) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	esc, ok := e.st.GetEscrow(productID)
	if !ok {
		return fmt.Errorf("escrow: no escrow for product %d: %w", productID, coreerrors.ErrNotFound)
	}
	if esc.Disbursed {
		return fmt.Errorf("escrow: product %d already disbursed: %w", productID, coreerrors.ErrInvalidState)
	}
	if !esc.IsParty(caller) {
		return fmt.Errorf("escrow: caller %s is not a party to product %d: %w", caller.Hex(), productID, coreerrors.ErrUnauthorized)
	}
	votes, opposite := esc.ReleaseVotes, esc.RefundVotes
	if kind == voteRefund {
		votes, opposite = esc.RefundVotes, esc.ReleaseVotes
	}
	// Idempotent: a repeated vote of the same kind is a no-op.
	if hasVoted(votes, caller) {
		return nil
	}
	// A party appears at most once across the union of both vote sets, so a
	// cast vote cannot be switched to the other side.
	if hasVoted(opposite, caller) {
		return fmt.Errorf("escrow: caller %s already voted %s on product %d: %w", caller.Hex(), otherKind(kind), productID, coreerrors.ErrValidation)
	}
	votes = append(votes, caller)
	if kind == voteRefund {
		esc.RefundVotes = votes
	} else {
		esc.ReleaseVotes = votes
	}
	if len(votes) < Quorum {
		if err := e.st.PutEscrow(esc); err != nil {
			return err
		}
		e.emit(newVoteCastEvent(esc, caller, kind.String()))
		return nil
	}
	// Quorum reached: flip the disbursed flag and persist it before the fund
	// transfer so a re-entrant call observes a terminal escrow.
	esc.Disbursed = true
	if err := e.st.PutEscrow(esc); err != nil {
		return err
	}
	recipient, status := esc.Seller, catalog.StatusSold
	if kind == voteRefund {
		recipient, status = esc.Buyer, catalog.StatusRefunded
	}
	if err := e.transfer(VaultAddress, recipient, esc.Amount); err != nil {
		return err
	}
	if err := e.catalog.SetProductStatus(ModuleAddress, productID, status, esc.Buyer); err != nil {
		return err
	}
	if kind == voteRefund {
		e.emit(newRefundedEvent(esc))
	} else {
		e.emit(newReleasedEvent(esc))
	}
	return nil
}

func otherKind(k voteKind) voteKind {
	if k == voteRelease {
		return voteRefund
	}
	return voteRelease
}

// GetEscrowInfo returns the escrow record opened for the product.
func (e *Engine) GetEscrowInfo(productID uint64) (*Escrow, error) {
	if e == nil || e.st == nil {
		return nil, errNilState
	}
	esc, ok := e.st.GetEscrow(productID)
	if !ok {
		return nil, fmt.Errorf("escrow: no escrow for product %d: %w", productID, coreerrors.ErrNotFound)
	}
	return esc.Clone(), nil
}

// ReleaseRefundCounts returns the sizes of the two vote sets.
func (e *Engine) ReleaseRefundCounts(productID uint64) (int, int, error) {
	esc, err := e.GetEscrowInfo(productID)
	if err != nil {
		return 0, 0, err
	}
	return len(esc.ReleaseVotes), len(esc.RefundVotes), nil
}

// Pause stops buy and vote admission until Unpause. Only the administrator
// may toggle it; the emergency withdrawal path requires the paused state.
func (e *Engine) Pause(caller coretypes.Address) error {
	if e == nil || e.pauseRegistry == nil {
		return fmt.Errorf("escrow engine: pauses not configured")
	}
	if err := e.pauseRegistry.Pause(caller, moduleName); err != nil {
		return err
	}
	e.emit(newPauseEvent(true))
	return nil
}

// Unpause re-enables buy and vote admission.
func (e *Engine) Unpause(caller coretypes.Address) error {
	if e == nil || e.pauseRegistry == nil {
		return fmt.Errorf("escrow engine: pauses not configured")
	}
	if err := e.pauseRegistry.Unpause(caller, moduleName); err != nil {
		return err
	}
	e.emit(newPauseEvent(false))
	return nil
}

// AllowBuyerWithdrawal toggles the emergency withdrawal flag. Administrator
// only; the flag has no effect unless the module is also paused.
func (e *Engine) AllowBuyerWithdrawal(caller coretypes.Address, allow bool) error {
	if e == nil || e.st == nil {
		return errNilState
	}
	if caller != e.admin {
		return fmt.Errorf("escrow: caller %s is not the administrator: %w", caller.Hex(), coreerrors.ErrUnauthorized)
	}
	return e.st.SetWithdrawalsAllowed(allow)
}

// BuyerWithdraw is the emergency-only path: while the module is paused and
// withdrawals are enabled, the escrow's buyer may reclaim the full amount,
// bypassing the quorum. The escrow becomes terminal; the product stays
// Reserved since the emergency path deliberately does not touch the catalog.
func (e *Engine) BuyerWithdraw(caller coretypes.Address, productID uint64) error {
	if e == nil || e.st == nil {
		return errNilState
	}
	esc, ok := e.st.GetEscrow(productID)
	if !ok {
		return fmt.Errorf("escrow: no escrow for product %d: %w", productID, coreerrors.ErrNotFound)
	}
	if e.pauses == nil || !e.pauses.IsPaused(moduleName) {
		return fmt.Errorf("escrow: withdrawal requires the module to be paused: %w", coreerrors.ErrInvalidState)
	}
	if !e.st.WithdrawalsAllowed() {
		return fmt.Errorf("escrow: buyer withdrawal not enabled: %w", coreerrors.ErrInvalidState)
	}
	if caller != esc.Buyer {
		return fmt.Errorf("escrow: only the buyer may withdraw: %w", coreerrors.ErrUnauthorized)
	}
	if esc.Disbursed {
		return fmt.Errorf("escrow: product %d already disbursed: %w", productID, coreerrors.ErrInvalidState)
	}
	esc.Disbursed = true
	if err := e.st.PutEscrow(esc); err != nil {
		return err
	}
	if err := e.transfer(VaultAddress, esc.Buyer, esc.Amount); err != nil {
		return err
	}
	e.emit(newWithdrawnEvent(esc))
	return nil
}

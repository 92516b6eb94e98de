package errors

import stderrors "errors"

// The ledger reports every failure as one of these kinds. Modules wrap the
// sentinels with context (fmt.Errorf + %w); callers classify with errors.Is
// and the RPC layer maps each kind to its own error code.
var (
	// ErrUnauthorized: the caller lacks the role or ownership required for
	// the target entity.
	ErrUnauthorized = stderrors.New("caller not authorized")
	// ErrInvalidState: the operation is invalid given the entity's current
	// status, e.g. buying a non-Sale product or voting on a disbursed escrow.
	ErrInvalidState = stderrors.New("invalid entity state")
	// ErrPaused: a mutating operation was attempted while the owning module
	// is paused.
	ErrPaused = stderrors.New("module paused")
	// ErrValidation: malformed input, duplicate registration, or a
	// conflicting role assignment.
	ErrValidation = stderrors.New("validation failed")
	// ErrNotFound: an unknown entity id. A validation-class failure kept
	// distinct so lookups can be told apart from bad input.
	ErrNotFound = stderrors.New("entity not found")
)

package token

import (
	"errors"
	"fmt"

	"taxledger/native/access"
	"taxledger/native/upgrade"
)

// Error categories. Every error returned by the engine matches exactly one of
// these with errors.Is.
var (
	ErrInvalidInput       = errors.New("token: invalid input")
	ErrUnauthorized       = access.ErrUnauthorized
	ErrInvariantViolation = errors.New("token: invariant violation")
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrExternalCallFailed = errors.New("token: external call failed")
)

var (
	ErrZeroAddress           = fmt.Errorf("%w: zero address", ErrInvalidInput)
	ErrZeroRecipient         = fmt.Errorf("%w: zero recipient", ErrInvalidInput)
	ErrZeroAmount            = fmt.Errorf("%w: zero amount", ErrInvalidInput)
	ErrInvalidAmount         = fmt.Errorf("%w: amount must be a non-negative integer", ErrInvalidInput)
	ErrInvalidContext        = fmt.Errorf("%w: activity context must be 32 bytes", ErrInvalidInput)
	ErrSelfRescue            = fmt.Errorf("%w: asset refers to this ledger", ErrInvalidInput)
	ErrUnknownAsset          = fmt.Errorf("%w: foreign asset not resolvable", ErrInvalidInput)
	ErrUnknownLogic          = fmt.Errorf("%w: %w", ErrInvalidInput, upgrade.ErrUnknownLogic)
	ErrInvalidMetadata       = fmt.Errorf("%w: name and symbol required", ErrInvalidInput)
	ErrPoolTransfer          = fmt.Errorf("%w: reward pool can only be spent through distribution", ErrUnauthorized)
	ErrPoolDeposit           = fmt.Errorf("%w: reward pool can only be credited through funding", ErrUnauthorized)
	ErrPoolReservoir         = fmt.Errorf("%w: reservoir and reward pool must differ", ErrInvalidInput)
	ErrTaxRateTooHigh        = fmt.Errorf("%w: tax rate exceeds maximum", ErrInvariantViolation)
	ErrSupplyChanged         = fmt.Errorf("%w: operation would change total supply", ErrInvariantViolation)
	ErrAlreadyInitialized    = fmt.Errorf("%w: ledger already initialized", ErrInvariantViolation)
	ErrNotInitialized        = fmt.Errorf("%w: ledger not initialized", ErrInvariantViolation)
	ErrLastRootAdmin         = fmt.Errorf("%w: %w", ErrInvariantViolation, access.ErrLastRootAdmin)
	ErrIncompatibleUpgrade   = fmt.Errorf("%w: %w", ErrInvariantViolation, upgrade.ErrIncompatibleLayout)
	ErrInsufficientBalance   = fmt.Errorf("%w: insufficient balance", ErrInsufficientFunds)
	ErrInsufficientPool      = fmt.Errorf("%w: insufficient reward pool balance", ErrInsufficientFunds)
	ErrInsufficientAllowance = fmt.Errorf("%w: insufficient allowance", ErrInsufficientFunds)
)

// classifyAccess maps access control failures onto the engine categories.
func classifyAccess(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, access.ErrUnauthorized):
		return err
	case errors.Is(err, access.ErrOwnerNotDefined):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case errors.Is(err, access.ErrLastRootAdmin):
		return ErrLastRootAdmin
	case errors.Is(err, access.ErrZeroAccount):
		return ErrZeroAddress
	case errors.Is(err, access.ErrUnknownRole):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}

// Category names the error class of err for receipts, metrics and RPC
// responses. Unclassified errors report "internal".
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrExternalCallFailed):
		return "external_call_failed"
	default:
		return "internal"
	}
}

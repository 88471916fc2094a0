package vesting

import (
	"errors"
	"fmt"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("vesting: not found")
	ErrAlreadyExists = errors.New("vesting: already exists")
	ErrInvalidInput  = errors.New("vesting: invalid input")
	ErrInvalidAmount = errors.New("vesting: invalid amount")
	ErrUnauthorized  = errors.New("vesting: unauthorized")

	// Schedule errors
	ErrInvalidVestingParams        = schedule.ErrInvalidParams
	ErrCliffNotReached             = schedule.ErrCliffNotReached
	ErrScheduleNotFound            = errors.New("vesting: schedule not found")
	ErrScheduleNotActive           = errors.New("vesting: schedule not active")
	ErrFixedScheduleNotCancellable = errors.New("vesting: fixed schedule cannot be cancelled")
	ErrNotClaimable                = errors.New("vesting: schedule not claimable")

	// Asset ledger errors
	ErrAssetNotFound              = errors.New("vesting: asset not registered")
	ErrAssetExists                = errors.New("vesting: asset already registered")
	ErrInsufficientUnlockedSupply = asset.ErrInsufficientUnlocked
	ErrLockUnderflow              = asset.ErrLockUnderflow

	// Purchase and swap errors
	ErrUnapprovedExchangeAsset = pricing.ErrUnapprovedAsset
	ErrUnauthorizedSwapAsset   = swap.ErrUnauthorizedAsset
	ErrPriceNotSet             = errors.New("vesting: no price set for asset")

	// Kill switches
	ErrVestingInactive  = errors.New("vesting: vesting not active")
	ErrPurchaseInactive = errors.New("vesting: purchase not active")
	ErrSwappingInactive = errors.New("vesting: swapping not active")

	// Collaborator errors
	ErrTransferFailed     = errors.New("vesting: transfer failed")
	ErrUnsettledTransfers = errors.New("vesting: unsettled transfers")

	// Store errors
	ErrStoreNotReady     = errors.New("vesting: store not ready")
	ErrStoreClosed       = errors.New("vesting: store is closed")
	ErrTransactionFailed = errors.New("vesting: transaction failed")
	ErrMigrationFailed   = errors.New("vesting: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("vesting: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ValidationError against ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "vesting: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("vesting: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the wrapped errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrAssetNotFound)
}

// IsConfigError returns true if the error comes from a kill switch or an
// allow-list rather than from the request itself.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrVestingInactive) ||
		errors.Is(err, ErrPurchaseInactive) ||
		errors.Is(err, ErrSwappingInactive) ||
		errors.Is(err, ErrUnapprovedExchangeAsset) ||
		errors.Is(err, ErrUnauthorizedSwapAsset) ||
		errors.Is(err, ErrPriceNotSet)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}

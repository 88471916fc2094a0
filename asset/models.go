// Package asset defines the per-asset custody ledger.
//
// A Balance tracks how much of an asset the engine holds in custody and how
// much of that is committed to vesting schedules. Every mutation preserves
// TotalLocked <= TotalHeld; operations that would break it fail and leave the
// balance untouched.
package asset

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/vesting/types"
)

// Errors produced by balance mutations.
var (
	ErrInsufficientUnlocked = errors.New("vesting: insufficient unlocked supply")
	ErrLockUnderflow        = errors.New("vesting: release exceeds locked amount")
	ErrInvalidDecimals      = errors.New("vesting: invalid asset decimals")
)

// Balance is the ledger entry for one asset.
type Balance struct {
	types.Entity

	Asset       string       `json:"asset"`
	Decimals    uint8        `json:"decimals"`
	TotalHeld   types.Amount `json:"total_held"`
	TotalLocked types.Amount `json:"total_locked"`
}

// NewBalance creates an empty ledger entry for an asset.
func NewBalance(asset string, decimals uint8, now time.Time) (*Balance, error) {
	if decimals > types.MaxDecimals {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	return &Balance{
		Entity:   types.NewEntity(now),
		Asset:    asset,
		Decimals: decimals,
	}, nil
}

// Available returns TotalHeld - TotalLocked.
func (b *Balance) Available() types.Amount {
	return b.TotalHeld.SaturatingSub(b.TotalLocked)
}

// Deposit raises TotalHeld.
func (b *Balance) Deposit(amount types.Amount) error {
	held, err := b.TotalHeld.Add(amount)
	if err != nil {
		return fmt.Errorf("deposit %s %s: %w", amount, b.Asset, err)
	}
	b.TotalHeld = held
	return nil
}

// Reserve commits amount of the unlocked pool to a schedule.
func (b *Balance) Reserve(amount types.Amount) error {
	if amount.GreaterThan(b.Available()) {
		return fmt.Errorf("%w: %s requested %s, available %s",
			ErrInsufficientUnlocked, b.Asset, amount, b.Available())
	}
	locked, err := b.TotalLocked.Add(amount)
	if err != nil {
		return err
	}
	b.TotalLocked = locked
	return nil
}

// Release returns amount from the locked pool to the unlocked pool.
func (b *Balance) Release(amount types.Amount) error {
	locked, err := b.TotalLocked.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s release %s, locked %s", ErrLockUnderflow, b.Asset, amount, b.TotalLocked)
	}
	b.TotalLocked = locked
	return nil
}

// Settle removes amount from both pools. It is used when vested funds leave
// custody on claim.
func (b *Balance) Settle(amount types.Amount) error {
	locked, err := b.TotalLocked.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s settle %s, locked %s", ErrLockUnderflow, b.Asset, amount, b.TotalLocked)
	}
	held, err := b.TotalHeld.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s settle %s, held %s", ErrLockUnderflow, b.Asset, amount, b.TotalHeld)
	}
	b.TotalLocked = locked
	b.TotalHeld = held
	return nil
}

// Withdraw removes amount from the unlocked pool and from custody.
func (b *Balance) Withdraw(amount types.Amount) error {
	if amount.GreaterThan(b.Available()) {
		return fmt.Errorf("%w: %s withdraw %s, available %s",
			ErrInsufficientUnlocked, b.Asset, amount, b.Available())
	}
	held, err := b.TotalHeld.Sub(amount)
	if err != nil {
		return err
	}
	b.TotalHeld = held
	return nil
}

// Clone returns a copy of the balance.
func (b *Balance) Clone() *Balance {
	c := *b
	return &c
}

package asset

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/vesting/types"
)

func newFunded(t *testing.T, held uint64) *Balance {
	t.Helper()
	b, err := NewBalance("EEFI", 18, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Deposit(types.NewAmount(held)); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNewBalanceRejectsDecimals(t *testing.T) {
	if _, err := NewBalance("X", types.MaxDecimals+1, time.Unix(0, 0)); !errors.Is(err, ErrInvalidDecimals) {
		t.Errorf("got %v", err)
	}
}

func TestReserveRelease(t *testing.T) {
	b := newFunded(t, 5000)

	if err := b.Reserve(types.NewAmount(2500)); err != nil {
		t.Fatal(err)
	}
	if err := b.Reserve(types.NewAmount(2501)); !errors.Is(err, ErrInsufficientUnlocked) {
		t.Fatalf("over-reserve: got %v", err)
	}
	if b.TotalLocked.String() != "2500" {
		t.Errorf("failed reserve mutated locked: %s", b.TotalLocked)
	}
	if err := b.Reserve(types.NewAmount(2500)); err != nil {
		t.Fatalf("exact reserve: %v", err)
	}
	if !b.Available().IsZero() {
		t.Errorf("available: got %s", b.Available())
	}

	if err := b.Release(types.NewAmount(1000)); err != nil {
		t.Fatal(err)
	}
	if b.Available().String() != "1000" {
		t.Errorf("available after release: got %s", b.Available())
	}
	if err := b.Release(types.NewAmount(5000)); !errors.Is(err, ErrLockUnderflow) {
		t.Errorf("over-release: got %v", err)
	}
}

func TestSettle(t *testing.T) {
	b := newFunded(t, 1000)
	if err := b.Reserve(types.NewAmount(600)); err != nil {
		t.Fatal(err)
	}
	if err := b.Settle(types.NewAmount(200)); err != nil {
		t.Fatal(err)
	}
	if b.TotalHeld.String() != "800" || b.TotalLocked.String() != "400" {
		t.Errorf("held %s locked %s", b.TotalHeld, b.TotalLocked)
	}
	if err := b.Settle(types.NewAmount(401)); !errors.Is(err, ErrLockUnderflow) {
		t.Errorf("over-settle: got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	b := newFunded(t, 1000)
	if err := b.Reserve(types.NewAmount(700)); err != nil {
		t.Fatal(err)
	}
	if err := b.Withdraw(types.NewAmount(301)); !errors.Is(err, ErrInsufficientUnlocked) {
		t.Fatalf("withdraw locked funds: got %v", err)
	}
	if err := b.Withdraw(types.NewAmount(300)); err != nil {
		t.Fatal(err)
	}
	if b.TotalHeld.String() != "700" || b.TotalLocked.String() != "700" {
		t.Errorf("held %s locked %s", b.TotalHeld, b.TotalLocked)
	}
}

func TestInvariantHolds(t *testing.T) {
	b := newFunded(t, 100)
	ops := []func() error{
		func() error { return b.Reserve(types.NewAmount(60)) },
		func() error { return b.Reserve(types.NewAmount(60)) },
		func() error { return b.Withdraw(types.NewAmount(50)) },
		func() error { return b.Settle(types.NewAmount(10)) },
		func() error { return b.Release(types.NewAmount(100)) },
		func() error { return b.Withdraw(types.NewAmount(30)) },
	}
	for i, op := range ops {
		_ = op()
		if b.TotalLocked.GreaterThan(b.TotalHeld) {
			t.Fatalf("op %d broke invariant: held %s locked %s", i, b.TotalHeld, b.TotalLocked)
		}
	}
}

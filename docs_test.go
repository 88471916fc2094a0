package vesting_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/store/memory"
	"github.com/xraph/vesting/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		e := vesting.New(store,
			vesting.WithLogger(slog.Default()),
			vesting.WithAuthorizer(vesting.NewAdminSet("admin")),
			vesting.WithClock(func() time.Time { return now }),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		adm := vesting.WithCaller(ctx, "admin")
		if _, err := e.RegisterAsset(adm, "TKN", 18); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Deposit(adm, "TKN", "treasury", vesting.Units(1_000_000, 18)); err != nil {
			t.Fatal(err)
		}

		s, err := e.Grant(adm, vesting.GrantRequest{
			Beneficiary: "alice",
			Amount:      vesting.Units(1000, 18),
			Params: vesting.Params{
				Asset:           "TKN",
				CliffDuration:   vesting.Weeks(4),
				VestingDuration: vesting.Weeks(52),
				StartTime:       now,
			},
		}, now)
		if err != nil {
			t.Fatal(err)
		}

		// Half way through, half has vested.
		res, err := e.Claim(ctx, "alice", s.Index, now.Add(vesting.Weeks(26)))
		if err != nil {
			t.Fatal(err)
		}
		if got := res.Amount.Format(18); got != "500" {
			t.Fatalf("claimed %s, want 500", got)
		}

		unlocked, err := e.UnlockedAmount(ctx, "TKN")
		if err != nil {
			t.Fatal(err)
		}
		if !unlocked.Equal(vesting.Units(999_000, 18)) {
			t.Fatalf("unlocked %s", unlocked)
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		a := types.Units(3, 18) // 3 whole tokens
		b := types.MustParseUnits("1.5", 18)

		sum, err := a.Add(b)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Format(18) != "4.5" {
			t.Fatalf("sum %s", sum.Format(18))
		}

		// Subtraction never wraps.
		if _, err := b.Sub(a); err == nil {
			t.Fatal("expected underflow")
		}
		if !b.SaturatingSub(a).IsZero() {
			t.Fatal("expected zero")
		}
	})
}

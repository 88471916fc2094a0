// Package plugin provides an extensible plugin system for Vesting.
// Plugins can hook into lifecycle events to extend functionality.
// Hooks run after the state change they describe has been committed; a
// failing hook is logged and never undoes the change.
package plugin

import (
	"context"

	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Schedule hooks
// ──────────────────────────────────────────────────

// OnScheduleCreated is called when a schedule is created by any path.
type OnScheduleCreated interface {
	Plugin
	OnScheduleCreated(ctx context.Context, s *schedule.Schedule) error
}

// OnScheduleClaimed is called after a claim pays out a positive amount.
type OnScheduleClaimed interface {
	Plugin
	OnScheduleClaimed(ctx context.Context, s *schedule.Schedule, amount types.Amount) error
}

// OnScheduleExhausted is called when a claim pays out the final remainder.
type OnScheduleExhausted interface {
	Plugin
	OnScheduleExhausted(ctx context.Context, s *schedule.Schedule) error
}

// OnScheduleCancelled is called when a schedule is cancelled.
type OnScheduleCancelled interface {
	Plugin
	OnScheduleCancelled(ctx context.Context, s *schedule.Schedule, released types.Amount) error
}

// ──────────────────────────────────────────────────
// Purchase and swap hooks
// ──────────────────────────────────────────────────

// OnPurchaseCompleted is called after a purchase created its schedule.
type OnPurchaseCompleted interface {
	Plugin
	OnPurchaseCompleted(ctx context.Context, s *schedule.Schedule, q pricing.Quote) error
}

// OnSwapCompleted is called after a swap created its schedule.
type OnSwapCompleted interface {
	Plugin
	OnSwapCompleted(ctx context.Context, s *schedule.Schedule, c swap.Conversion) error
}

// ──────────────────────────────────────────────────
// Asset ledger hooks
// ──────────────────────────────────────────────────

// OnAssetDeposited is called after assets entered custody through Deposit.
type OnAssetDeposited interface {
	Plugin
	OnAssetDeposited(ctx context.Context, asset, from string, amount types.Amount) error
}

// OnAssetWithdrawn is called after unlocked assets left custody through Withdraw.
type OnAssetWithdrawn interface {
	Plugin
	OnAssetWithdrawn(ctx context.Context, asset, to string, amount types.Amount) error
}

// OnSupplyInsufficient is called when an operation is refused because the
// unlocked pool of an asset is too small.
type OnSupplyInsufficient interface {
	Plugin
	OnSupplyInsufficient(ctx context.Context, asset string, requested, available types.Amount) error
}

// ──────────────────────────────────────────────────
// Collaborator and admin hooks
// ──────────────────────────────────────────────────

// OnTransferFailed is called when the transfer collaborator rejects a movement.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, req transfer.Request, err error) error
}

// OnConfigChanged is called after a privileged setter changed the configuration.
type OnConfigChanged interface {
	Plugin
	OnConfigChanged(ctx context.Context, caller, setting string) error
}

package vesting

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// GetSchedule returns the schedule at index for a beneficiary.
func (e *Engine) GetSchedule(ctx context.Context, beneficiary string, index uint64) (*schedule.Schedule, error) {
	return e.store.GetSchedule(ctx, beneficiary, index)
}

// ListSchedules returns every schedule of a beneficiary in creation order.
// Indexes are assigned sequentially per beneficiary, so this is also index
// order. For the vested state of one schedule use ScheduleInfo.
func (e *Engine) ListSchedules(ctx context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	return e.store.ListSchedules(ctx, beneficiary, opts)
}

// ScheduleInfo is a point-in-time view of a schedule.
type ScheduleInfo struct {
	Schedule  *schedule.Schedule `json:"schedule"`
	At        time.Time          `json:"at"`
	Vested    types.Amount       `json:"vested"`
	Claimable types.Amount       `json:"claimable"`
	// Locked is the part of the total still reserved in the ledger.
	Locked      types.Amount `json:"locked"`
	CliffPassed bool         `json:"cliff_passed"`
}

// ScheduleInfo reports how much of a single schedule has vested at now. To
// enumerate a beneficiary's schedules use ListSchedules.
func (e *Engine) ScheduleInfo(ctx context.Context, beneficiary string, index uint64, now time.Time) (*ScheduleInfo, error) {
	s, err := e.store.GetSchedule(ctx, beneficiary, index)
	if err != nil {
		return nil, err
	}

	vested, err := schedule.VestedAt(s, now)
	if err != nil {
		return nil, err
	}

	info := &ScheduleInfo{
		Schedule:    s,
		At:          now,
		Vested:      vested,
		Claimable:   types.Zero(),
		Locked:      types.Zero(),
		CliffPassed: !now.Before(s.CliffTime()),
	}
	if s.Status == schedule.StatusActive {
		info.Locked = s.Remaining()
		if info.CliffPassed {
			info.Claimable = vested.SaturatingSub(s.ClaimedAmount)
		}
	}
	return info, nil
}

// VestedAmount returns how much of a schedule has vested at now. Before the
// cliff it fails with ErrCliffNotReached.
func (e *Engine) VestedAmount(ctx context.Context, beneficiary string, index uint64, now time.Time) (types.Amount, error) {
	s, err := e.store.GetSchedule(ctx, beneficiary, index)
	if err != nil {
		return types.Zero(), err
	}
	return schedule.VestedAmount(s, now)
}

// ClaimableAmount returns what Claim would release at now; zero before the
// cliff and for terminal schedules.
func (e *Engine) ClaimableAmount(ctx context.Context, beneficiary string, index uint64, now time.Time) (types.Amount, error) {
	s, err := e.store.GetSchedule(ctx, beneficiary, index)
	if err != nil {
		return types.Zero(), err
	}
	if s.Status.IsTerminal() {
		return types.Zero(), nil
	}
	amount, err := schedule.Claimable(s, now)
	if errors.Is(err, schedule.ErrCliffNotReached) {
		return types.Zero(), nil
	}
	return amount, err
}

// Balance returns the ledger entry for an asset.
func (e *Engine) Balance(ctx context.Context, assetID string) (*asset.Balance, error) {
	return e.store.GetBalance(ctx, assetID)
}

// Balances returns every ledger entry ordered by asset.
func (e *Engine) Balances(ctx context.Context) ([]*asset.Balance, error) {
	return e.store.ListBalances(ctx)
}

// LockedAmount returns the supply of an asset committed to active schedules.
func (e *Engine) LockedAmount(ctx context.Context, assetID string) (types.Amount, error) {
	b, err := e.store.GetBalance(ctx, assetID)
	if err != nil {
		return types.Zero(), err
	}
	return b.TotalLocked, nil
}

// UnlockedAmount returns the supply of an asset available for new schedules
// and withdrawal.
func (e *Engine) UnlockedAmount(ctx context.Context, assetID string) (types.Amount, error) {
	b, err := e.store.GetBalance(ctx, assetID)
	if err != nil {
		return types.Zero(), err
	}
	return b.Available(), nil
}

// Transfers lists the recorded asset movements.
func (e *Engine) Transfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Record, error) {
	return e.store.ListTransfers(ctx, opts)
}

package store

import (
	"context"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transfer"
)

// Store is the unified storage interface for all Vesting entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Schedule methods
	CreateSchedule(ctx context.Context, s *schedule.Schedule) error
	GetSchedule(ctx context.Context, beneficiary string, index uint64) (*schedule.Schedule, error)
	UpdateSchedule(ctx context.Context, s *schedule.Schedule) error
	ListSchedules(ctx context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error)
	NextScheduleIndex(ctx context.Context, beneficiary string) (uint64, error)

	// Asset ledger methods
	CreateBalance(ctx context.Context, b *asset.Balance) error
	GetBalance(ctx context.Context, asset string) (*asset.Balance, error)
	UpdateBalance(ctx context.Context, b *asset.Balance) error
	ListBalances(ctx context.Context) ([]*asset.Balance, error)

	// Transfer record methods
	CreateTransfer(ctx context.Context, r *transfer.Record) error
	ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Record, error)

	// Commit persists every entity of a changeset.
	Commit(ctx context.Context, cs *Changeset) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Changeset is the complete set of writes produced by one engine operation.
// Backends persist it as a unit where they can.
type Changeset struct {
	NewSchedules     []*schedule.Schedule
	UpdatedSchedules []*schedule.Schedule
	NewBalances      []*asset.Balance
	UpdatedBalances  []*asset.Balance
	Transfers        []*transfer.Record
	// UpdatedTransfers rewrites the status of existing transfer records.
	UpdatedTransfers []*transfer.Record
}

// IsEmpty reports whether the changeset contains no writes.
func (cs *Changeset) IsEmpty() bool {
	return len(cs.NewSchedules) == 0 &&
		len(cs.UpdatedSchedules) == 0 &&
		len(cs.NewBalances) == 0 &&
		len(cs.UpdatedBalances) == 0 &&
		len(cs.Transfers) == 0 &&
		len(cs.UpdatedTransfers) == 0
}

// Page applies offset/limit to an already filtered slice.
func Page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	if start < 0 {
		start = 0
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

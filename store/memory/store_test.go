package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/store/memory"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newSchedule(beneficiary string, index uint64) *schedule.Schedule {
	return schedule.New(beneficiary, index, types.NewAmount(100), schedule.Params{
		Asset:           "TKN",
		CliffDuration:   time.Hour,
		VestingDuration: 2 * time.Hour,
		StartTime:       now,
	}, schedule.OriginGrant, now)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBalance(ctx, bal))

	bal.TotalHeld = types.NewAmount(500)
	cs := &store.Changeset{
		UpdatedBalances:  []*asset.Balance{bal},
		NewSchedules:     []*schedule.Schedule{newSchedule("alice", 0)},
		UpdatedSchedules: []*schedule.Schedule{newSchedule("bob", 3)},
	}
	require.ErrorIs(t, s.Commit(ctx, cs), vesting.ErrScheduleNotFound)

	got, err := s.GetBalance(ctx, "TKN")
	require.NoError(t, err)
	assert.True(t, got.TotalHeld.IsZero())

	next, err := s.NextScheduleIndex(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), next)

	cs.UpdatedSchedules = nil
	cs.Transfers = []*transfer.Record{transfer.NewRecord(id.NewOperationID(), cs.NewSchedules[0].ID, transfer.Request{
		Direction: transfer.DirectionPull,
		Asset:     "TKN",
		Account:   "alice",
		Amount:    types.NewAmount(5),
		Reason:    transfer.ReasonDeposit,
	}, now)}
	require.NoError(t, s.Commit(ctx, cs))

	got, err = s.GetBalance(ctx, "TKN")
	require.NoError(t, err)
	assert.Equal(t, "500", got.TotalHeld.String())

	recs, err := s.ListTransfers(ctx, transfer.ListOpts{Account: "alice"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSchedulesAreIndexedPerBeneficiary(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, s.CreateSchedule(ctx, newSchedule("alice", i)))
	}
	require.ErrorIs(t, s.CreateSchedule(ctx, newSchedule("alice", 1)), vesting.ErrAlreadyExists)
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("bob", 0)))

	_, err := s.GetSchedule(ctx, "alice", 3)
	require.ErrorIs(t, err, vesting.ErrScheduleNotFound)

	page, err := s.ListSchedules(ctx, "alice", schedule.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(1), page[0].Index)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("alice", 0)))

	got, err := s.GetSchedule(ctx, "alice", 0)
	require.NoError(t, err)
	got.Status = schedule.StatusCancelled
	got.ClaimedAmount = types.NewAmount(7)

	again, err := s.GetSchedule(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusActive, again.Status)
	assert.True(t, again.ClaimedAmount.IsZero())
}

func TestClosedStoreRejectsCommit(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Ping(ctx), vesting.ErrStoreClosed)
	require.ErrorIs(t, s.Commit(ctx, &store.Changeset{}), vesting.ErrStoreClosed)
}

func TestCommitUpdatesTransferStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	rec := transfer.NewRecord(id.NewOperationID(), id.Nil, transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     "TKN",
		Account:   "alice",
		Amount:    types.NewAmount(5),
		Reason:    transfer.ReasonClaim,
	}, now)
	rec.Status = transfer.StatusUnsettled
	require.NoError(t, s.Commit(ctx, &store.Changeset{Transfers: []*transfer.Record{rec}}))

	open, err := s.ListTransfers(ctx, transfer.ListOpts{Status: transfer.StatusUnsettled})
	require.NoError(t, err)
	require.Len(t, open, 1)

	settled := *rec
	settled.Status = transfer.StatusSettled
	require.NoError(t, s.Commit(ctx, &store.Changeset{UpdatedTransfers: []*transfer.Record{&settled}}))

	open, err = s.ListTransfers(ctx, transfer.ListOpts{Status: transfer.StatusUnsettled})
	require.NoError(t, err)
	assert.Empty(t, open)

	unknown := *rec
	unknown.ID = id.NewTransferID()
	require.ErrorIs(t, s.Commit(ctx, &store.Changeset{UpdatedTransfers: []*transfer.Record{&unknown}}), vesting.ErrNotFound)
}

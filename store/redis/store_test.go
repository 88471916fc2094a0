package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store"
	redisstore "github.com/xraph/vesting/store/redis"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redisstore.New(client, redisstore.WithPrefix("test"))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func newSchedule(beneficiary string, index uint64) *schedule.Schedule {
	return schedule.New(beneficiary, index, types.NewAmount(100), schedule.Params{
		Asset:           "TKN",
		CliffDuration:   time.Hour,
		VestingDuration: 2 * time.Hour,
		StartTime:       now,
	}, schedule.OriginGrant, now)
}

func TestScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := setupStore(t)

	sch := newSchedule("alice", 0)
	sch.TotalAmount = types.MustParseUnits("123456789012345678901234567890.5", 18)
	sch.ClaimedAmount = types.NewAmount(42)
	cancelled := now.Add(90 * time.Minute)
	sch.CancelledAt = &cancelled
	sch.Status = schedule.StatusCancelled
	sch.Metadata = map[string]string{"round": "seed"}
	require.NoError(t, s.CreateSchedule(ctx, sch))
	assert.True(t, mr.Exists("test:schedule:alice:0"))

	got, err := s.GetSchedule(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, sch.ID.String(), got.ID.String())
	assert.Equal(t, sch.TotalAmount.String(), got.TotalAmount.String())
	assert.Equal(t, "42", got.ClaimedAmount.String())
	assert.Equal(t, schedule.StatusCancelled, got.Status)
	assert.Equal(t, time.Hour, got.CliffDuration)
	assert.True(t, got.StartTime.Equal(now))
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(cancelled))
	assert.Equal(t, "seed", got.Metadata["round"])

	_, err = s.GetSchedule(ctx, "alice", 1)
	require.ErrorIs(t, err, vesting.ErrScheduleNotFound)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBalance(ctx, bal))
	require.ErrorIs(t, s.CreateBalance(ctx, bal), vesting.ErrAssetExists)

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
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonDeposit,
	}, now)}
	require.NoError(t, s.Commit(ctx, cs))

	got, err = s.GetBalance(ctx, "TKN")
	require.NoError(t, err)
	assert.Equal(t, "500", got.TotalHeld.String())

	next, err = s.NextScheduleIndex(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	recs, err := s.ListTransfers(ctx, transfer.ListOpts{Account: "alice"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, cs.NewSchedules[0].ID.String(), recs[0].ScheduleID.String())
	assert.Equal(t, transfer.ReasonDeposit, recs[0].Reason)
	assert.Equal(t, transfer.StatusCompleted, recs[0].Status)
}

func TestCommitUpdatesTransferStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	rec := transfer.NewRecord(id.NewOperationID(), id.Nil, transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     "TKN",
		Account:   "alice",
		Amount:    types.NewAmount(5),
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonClaim,
	}, now)
	rec.Status = transfer.StatusUnsettled
	require.NoError(t, s.CreateTransfer(ctx, rec))

	settled := *rec
	settled.Status = transfer.StatusSettled
	require.NoError(t, s.Commit(ctx, &store.Changeset{UpdatedTransfers: []*transfer.Record{&settled}}))

	recs, err := s.ListTransfers(ctx, transfer.ListOpts{Account: "alice"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, transfer.StatusSettled, recs[0].Status)

	unknown := *rec
	unknown.ID = id.NewTransferID()
	require.ErrorIs(t, s.Commit(ctx, &store.Changeset{UpdatedTransfers: []*transfer.Record{&unknown}}), vesting.ErrNotFound)
}

func TestSchedulesAreIndexedPerBeneficiary(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, s.CreateSchedule(ctx, newSchedule("alice", i)))
	}
	require.ErrorIs(t, s.CreateSchedule(ctx, newSchedule("alice", 1)), vesting.ErrAlreadyExists)
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("bob", 0)))

	page, err := s.ListSchedules(ctx, "alice", schedule.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(1), page[0].Index)

	all, err := s.ListSchedules(ctx, "bob", schedule.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListBalancesIsSorted(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	for _, a := range []string{"USDC", "TKN", "ALT"} {
		b, err := asset.NewBalance(a, 6, now)
		require.NoError(t, err)
		require.NoError(t, s.CreateBalance(ctx, b))
	}

	bals, err := s.ListBalances(ctx)
	require.NoError(t, err)
	require.Len(t, bals, 3)
	assert.Equal(t, []string{"ALT", "TKN", "USDC"}, []string{bals[0].Asset, bals[1].Asset, bals[2].Asset})
}

func TestEngineOnRedis(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	e := vesting.New(s,
		vesting.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vesting.WithAuthorizer(vesting.NewAdminSet("admin")),
		vesting.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, e.Start(ctx))

	adm := vesting.WithCaller(ctx, "admin")
	_, err := e.RegisterAsset(adm, "TKN", 0)
	require.NoError(t, err)
	_, err = e.Deposit(adm, "TKN", "treasury", types.NewAmount(1000))
	require.NoError(t, err)

	_, err = e.Grant(adm, vesting.GrantRequest{
		Beneficiary: "alice",
		Amount:      types.NewAmount(1000),
		Params: schedule.Params{
			Asset:           "TKN",
			CliffDuration:   schedule.Weeks(52),
			VestingDuration: schedule.Weeks(55),
			StartTime:       now,
		},
	}, now)
	require.NoError(t, err)

	res, err := e.Claim(ctx, "alice", 0, now.Add(schedule.Weeks(52)))
	require.NoError(t, err)
	assert.Equal(t, "945", res.Amount.String())

	bal, err := e.Balance(ctx, "TKN")
	require.NoError(t, err)
	assert.Equal(t, "55", bal.TotalHeld.String())
	assert.Equal(t, "55", bal.TotalLocked.String())
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	vestingstore "github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// openStore returns a Store whose write path runs on a fresh in-memory
// database. Reads go through grove and are not exercised here.
func openStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	for _, ddl := range []string{createBalances, createSchedules, createTransfers} {
		for _, stmt := range strings.Split(ddl, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			_, err := conn.Exec(stmt)
			require.NoError(t, err)
		}
	}
	return &Store{conn: conn}, conn
}

func newSchedule(beneficiary string, index uint64) *schedule.Schedule {
	return schedule.New(beneficiary, index, types.NewAmount(100), schedule.Params{
		Asset:           "TKN",
		CliffDuration:   time.Hour,
		VestingDuration: 2 * time.Hour,
		StartTime:       now,
	}, schedule.OriginGrant, now)
}

func queryString(t *testing.T, conn *sql.DB, query string, args ...any) string {
	t.Helper()
	var out string
	require.NoError(t, conn.QueryRow(query, args...).Scan(&out))
	return out
}

func countRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestCommitRollsBackEarlierWrites(t *testing.T) {
	ctx := context.Background()
	s, conn := openStore(t)

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBalance(ctx, bal))
	require.ErrorIs(t, s.CreateBalance(ctx, bal), vesting.ErrAssetExists)

	// The balance update and schedule insert succeed before the missing
	// schedule update fails.
	bal.TotalHeld = types.NewAmount(500)
	cs := &vestingstore.Changeset{
		UpdatedBalances:  []*asset.Balance{bal},
		NewSchedules:     []*schedule.Schedule{newSchedule("alice", 0)},
		UpdatedSchedules: []*schedule.Schedule{newSchedule("bob", 3)},
	}
	require.ErrorIs(t, s.Commit(ctx, cs), vesting.ErrScheduleNotFound)

	assert.Equal(t, "0", queryString(t, conn, "SELECT total_held FROM vesting_balances WHERE asset = ?", "TKN"))
	assert.Zero(t, countRows(t, conn, "vesting_schedules"))

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

	assert.Equal(t, "500", queryString(t, conn, "SELECT total_held FROM vesting_balances WHERE asset = ?", "TKN"))
	assert.Equal(t, 1, countRows(t, conn, "vesting_schedules"))
	assert.Equal(t, 1, countRows(t, conn, "vesting_transfers"))
}

func TestCommitRollsBackOnDuplicateSchedule(t *testing.T) {
	ctx := context.Background()
	s, conn := openStore(t)

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBalance(ctx, bal))
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("alice", 0)))

	bal.TotalLocked = types.NewAmount(100)
	err = s.Commit(ctx, &vestingstore.Changeset{
		UpdatedBalances: []*asset.Balance{bal},
		NewSchedules:    []*schedule.Schedule{newSchedule("alice", 0)},
	})
	require.ErrorIs(t, err, vesting.ErrAlreadyExists)

	assert.Equal(t, "0", queryString(t, conn, "SELECT total_locked FROM vesting_balances WHERE asset = ?", "TKN"))
	assert.Equal(t, 1, countRows(t, conn, "vesting_schedules"))
}

func TestCommitUpdatesScheduleAndTransferStatus(t *testing.T) {
	ctx := context.Background()
	s, conn := openStore(t)

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBalance(ctx, bal))

	sch := newSchedule("alice", 0)
	require.NoError(t, s.CreateSchedule(ctx, sch))

	rec := transfer.NewRecord(id.NewOperationID(), sch.ID, transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     "TKN",
		Account:   "alice",
		Amount:    types.NewAmount(40),
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonClaim,
	}, now)
	rec.Status = transfer.StatusUnsettled
	require.NoError(t, s.CreateTransfer(ctx, rec))

	sch.ClaimedAmount = types.NewAmount(40)
	sch.Touch(now.Add(time.Hour))
	settled := *rec
	settled.Status = transfer.StatusSettled
	require.NoError(t, s.Commit(ctx, &vestingstore.Changeset{
		UpdatedSchedules: []*schedule.Schedule{sch},
		UpdatedTransfers: []*transfer.Record{&settled},
	}))

	assert.Equal(t, "40", queryString(t, conn, "SELECT claimed_amount FROM vesting_schedules WHERE id = ?", sch.ID.String()))
	assert.Equal(t, "settled", queryString(t, conn, "SELECT status FROM vesting_transfers WHERE id = ?", rec.ID.String()))

	unknown := *rec
	unknown.ID = id.NewTransferID()
	require.ErrorIs(t, s.Commit(ctx, &vestingstore.Changeset{UpdatedTransfers: []*transfer.Record{&unknown}}), vesting.ErrNotFound)
}

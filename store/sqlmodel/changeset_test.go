package sqlmodel

import (
	"context"
	"errors"
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

type execLog struct {
	queries []string
	args    [][]any
	rows    func(query string) int64
	fail    func(query string) error
}

func (l *execLog) exec(_ context.Context, query string, args ...any) (int64, error) {
	l.queries = append(l.queries, query)
	l.args = append(l.args, args)
	if l.fail != nil {
		if err := l.fail(query); err != nil {
			return 0, err
		}
	}
	if l.rows != nil {
		return l.rows(query), nil
	}
	return 1, nil
}

func testChangeset(t *testing.T) *vestingstore.Changeset {
	t.Helper()

	bal, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	sch := schedule.New("alice", 0, types.NewAmount(100), schedule.Params{
		Asset:           "TKN",
		CliffDuration:   schedule.Weeks(1),
		VestingDuration: schedule.Weeks(4),
		StartTime:       now,
	}, schedule.OriginGrant, now)
	rec := transfer.NewRecord(id.NewOperationID(), sch.ID, transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     "TKN",
		Account:   "alice",
		Amount:    types.NewAmount(5),
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonClaim,
	}, now)

	return &vestingstore.Changeset{
		NewBalances:      []*asset.Balance{bal},
		UpdatedBalances:  []*asset.Balance{bal},
		NewSchedules:     []*schedule.Schedule{sch},
		UpdatedSchedules: []*schedule.Schedule{sch},
		Transfers:        []*transfer.Record{rec},
		UpdatedTransfers: []*transfer.Record{rec},
	}
}

func TestWriteChangesetOrder(t *testing.T) {
	log := &execLog{}
	d := Dialect{Bind: NumberedBind}

	require.NoError(t, WriteChangeset(context.Background(), log.exec, d, testChangeset(t)))

	require.Len(t, log.queries, 6)
	prefixes := []string{
		"INSERT INTO vesting_balances",
		"UPDATE vesting_balances",
		"INSERT INTO vesting_schedules",
		"UPDATE vesting_schedules",
		"INSERT INTO vesting_transfers",
		"UPDATE vesting_transfers",
	}
	for i, p := range prefixes {
		assert.True(t, strings.HasPrefix(log.queries[i], p), "statement %d: %s", i, log.queries[i])
	}

	assert.Equal(t, "UPDATE vesting_transfers SET status = $1 WHERE id = $2", log.queries[5])
	assert.Equal(t, []any{"completed", log.args[4][0]}, log.args[5])
	assert.Len(t, log.args[2], len(scheduleColumns))
	assert.Contains(t, log.queries[2], "$17")
}

func TestWriteChangesetPositionalBinds(t *testing.T) {
	log := &execLog{}
	d := Dialect{Bind: PositionalBind, Time: func(ts time.Time) any { return ts.Format(time.RFC3339) }}

	cs := testChangeset(t)
	require.NoError(t, WriteChangeset(context.Background(), log.exec, d, &vestingstore.Changeset{
		UpdatedBalances: cs.UpdatedBalances,
	}))

	require.Len(t, log.queries, 1)
	assert.Equal(t, "UPDATE vesting_balances SET total_held = ?, total_locked = ?, updated_at = ? WHERE asset = ?", log.queries[0])
	assert.Equal(t, now.Format(time.RFC3339), log.args[0][2])
}

func TestWriteChangesetMapsMissingRows(t *testing.T) {
	cs := testChangeset(t)
	log := &execLog{rows: func(q string) int64 {
		if strings.HasPrefix(q, "UPDATE vesting_schedules") {
			return 0
		}
		return 1
	}}

	err := WriteChangeset(context.Background(), log.exec, Dialect{Bind: NumberedBind}, cs)
	require.ErrorIs(t, err, vesting.ErrScheduleNotFound)
	// Nothing after the failing statement is issued.
	assert.Len(t, log.queries, 4)
}

func TestWriteChangesetMapsConflicts(t *testing.T) {
	conflict := errors.New("duplicate key")
	d := Dialect{
		Bind:              NumberedBind,
		IsUniqueViolation: func(err error) bool { return errors.Is(err, conflict) },
	}
	cs := testChangeset(t)

	log := &execLog{fail: func(q string) error {
		if strings.HasPrefix(q, "INSERT INTO vesting_balances") {
			return conflict
		}
		return nil
	}}
	require.ErrorIs(t, WriteChangeset(context.Background(), log.exec, d, cs), vesting.ErrAssetExists)

	log = &execLog{fail: func(q string) error {
		if strings.HasPrefix(q, "INSERT INTO vesting_schedules") {
			return conflict
		}
		return nil
	}}
	require.ErrorIs(t, WriteChangeset(context.Background(), log.exec, d, cs), vesting.ErrAlreadyExists)

	other := errors.New("connection reset")
	log = &execLog{fail: func(string) error { return other }}
	err := WriteChangeset(context.Background(), log.exec, d, cs)
	require.ErrorIs(t, err, other)
	assert.False(t, errors.Is(err, vesting.ErrAssetExists))
}

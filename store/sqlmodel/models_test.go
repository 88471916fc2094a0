package sqlmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestScheduleModelRoundTrip(t *testing.T) {
	s := schedule.New("alice", 7, types.MustParseUnits("98765432109876543210.123456789", 18), schedule.Params{
		Asset:           "TKN",
		IsFixed:         true,
		CliffDuration:   schedule.Weeks(4),
		VestingDuration: schedule.Weeks(10),
		StartTime:       now,
	}, schedule.OriginPurchase, now)
	cancelled := now.Add(time.Hour)
	s.CancelledAt = &cancelled
	s.Metadata = map[string]string{"note": "a \"quoted\" value"}

	m := ToScheduleModel(s)
	assert.Equal(t, int64(7), m.Index)
	assert.Equal(t, int64(schedule.Weeks(4)), m.CliffDuration)

	got, err := FromScheduleModel(m)
	require.NoError(t, err)
	assert.Equal(t, s.ID.String(), got.ID.String())
	assert.Equal(t, s.TotalAmount.String(), got.TotalAmount.String())
	assert.Equal(t, schedule.OriginPurchase, got.Origin)
	assert.True(t, got.IsFixed)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(cancelled))
	assert.Equal(t, s.Metadata, got.Metadata)
}

func TestEmptyMetadataIsStoredAsObject(t *testing.T) {
	assert.Equal(t, "{}", encodeMetadata(nil))
	assert.Nil(t, decodeMetadata("{}"))
	assert.Nil(t, decodeMetadata(""))
}

func TestBalanceModelRejectsCorruptAmounts(t *testing.T) {
	b, err := asset.NewBalance("TKN", 18, now)
	require.NoError(t, err)
	b.TotalHeld = types.NewAmount(10)

	m := ToBalanceModel(b)
	assert.Equal(t, 18, m.Decimals)
	got, err := FromBalanceModel(m)
	require.NoError(t, err)
	assert.Equal(t, "10", got.TotalHeld.String())

	m.TotalLocked = "not-a-number"
	_, err = FromBalanceModel(m)
	require.Error(t, err)
}

func TestTransferModelWithoutSchedule(t *testing.T) {
	r := transfer.NewRecord(id.NewOperationID(), id.Nil, transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     "TKN",
		Account:   "treasury",
		Amount:    types.NewAmount(3),
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonWithdrawal,
	}, now)

	m := ToTransferModel(r)
	assert.Empty(t, m.ScheduleID)

	got, err := FromTransferModel(m)
	require.NoError(t, err)
	assert.Equal(t, r.ID.String(), got.ID.String())
	assert.Empty(t, got.ScheduleID.String())
	assert.Equal(t, transfer.ReasonWithdrawal, got.Reason)
}

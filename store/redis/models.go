package redis

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// Records are the msgpack documents stored under each key. Amounts travel as
// base-10 strings so the full 256-bit range survives the round trip.

type scheduleRecord struct {
	ID              string            `msgpack:"id"`
	Beneficiary     string            `msgpack:"beneficiary"`
	Index           uint64            `msgpack:"idx"`
	Asset           string            `msgpack:"asset"`
	Origin          string            `msgpack:"origin"`
	TotalAmount     string            `msgpack:"total"`
	ClaimedAmount   string            `msgpack:"claimed"`
	StartTime       time.Time         `msgpack:"start"`
	CliffDuration   int64             `msgpack:"cliff"`
	VestingDuration int64             `msgpack:"vesting"`
	IsFixed         bool              `msgpack:"fixed"`
	Status          string            `msgpack:"status"`
	ReleasedAmount  string            `msgpack:"released"`
	CancelledAt     *time.Time        `msgpack:"cancelled_at,omitempty"`
	Metadata        map[string]string `msgpack:"metadata,omitempty"`
	CreatedAt       time.Time         `msgpack:"created_at"`
	UpdatedAt       time.Time         `msgpack:"updated_at"`
}

type balanceRecord struct {
	Asset       string    `msgpack:"asset"`
	Decimals    uint8     `msgpack:"decimals"`
	TotalHeld   string    `msgpack:"held"`
	TotalLocked string    `msgpack:"locked"`
	CreatedAt   time.Time `msgpack:"created_at"`
	UpdatedAt   time.Time `msgpack:"updated_at"`
}

type transferRecord struct {
	ID          string    `msgpack:"id"`
	OperationID string    `msgpack:"op"`
	ScheduleID  string    `msgpack:"schedule,omitempty"`
	Direction   string    `msgpack:"direction"`
	Asset       string    `msgpack:"asset"`
	Account     string    `msgpack:"account"`
	Amount      string    `msgpack:"amount"`
	Custody     string    `msgpack:"custody"`
	Reason      string    `msgpack:"reason"`
	Status      string    `msgpack:"status,omitempty"`
	CreatedAt   time.Time `msgpack:"created_at"`
}

func encodeSchedule(s *schedule.Schedule) ([]byte, error) {
	return msgpack.Marshal(&scheduleRecord{
		ID:              s.ID.String(),
		Beneficiary:     s.Beneficiary,
		Index:           s.Index,
		Asset:           s.Asset,
		Origin:          string(s.Origin),
		TotalAmount:     s.TotalAmount.String(),
		ClaimedAmount:   s.ClaimedAmount.String(),
		StartTime:       s.StartTime,
		CliffDuration:   int64(s.CliffDuration),
		VestingDuration: int64(s.VestingDuration),
		IsFixed:         s.IsFixed,
		Status:          string(s.Status),
		ReleasedAmount:  s.ReleasedAmount.String(),
		CancelledAt:     s.CancelledAt,
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	})
}

func decodeSchedule(data []byte) (*schedule.Schedule, error) {
	var r scheduleRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("vesting/redis: decode schedule: %w", err)
	}
	scheduleID, err := id.ParseScheduleID(r.ID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(r.ID, r.TotalAmount, r.ClaimedAmount, r.ReleasedAmount)
	if err != nil {
		return nil, err
	}
	var cancelledAt *time.Time
	if r.CancelledAt != nil {
		at := r.CancelledAt.UTC()
		cancelledAt = &at
	}
	return &schedule.Schedule{
		Entity: types.Entity{
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
		},
		ID:              scheduleID,
		Beneficiary:     r.Beneficiary,
		Index:           r.Index,
		Asset:           r.Asset,
		Origin:          schedule.Origin(r.Origin),
		TotalAmount:     amounts[0],
		ClaimedAmount:   amounts[1],
		StartTime:       r.StartTime.UTC(),
		CliffDuration:   time.Duration(r.CliffDuration),
		VestingDuration: time.Duration(r.VestingDuration),
		IsFixed:         r.IsFixed,
		Status:          schedule.Status(r.Status),
		ReleasedAmount:  amounts[2],
		CancelledAt:     cancelledAt,
		Metadata:        r.Metadata,
	}, nil
}

func encodeBalance(b *asset.Balance) ([]byte, error) {
	return msgpack.Marshal(&balanceRecord{
		Asset:       b.Asset,
		Decimals:    b.Decimals,
		TotalHeld:   b.TotalHeld.String(),
		TotalLocked: b.TotalLocked.String(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	})
}

func decodeBalance(data []byte) (*asset.Balance, error) {
	var r balanceRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("vesting/redis: decode balance: %w", err)
	}
	amounts, err := parseAmounts(r.Asset, r.TotalHeld, r.TotalLocked)
	if err != nil {
		return nil, err
	}
	return &asset.Balance{
		Entity: types.Entity{
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
		},
		Asset:       r.Asset,
		Decimals:    r.Decimals,
		TotalHeld:   amounts[0],
		TotalLocked: amounts[1],
	}, nil
}

func encodeTransfer(t *transfer.Record) ([]byte, error) {
	return msgpack.Marshal(&transferRecord{
		ID:          t.ID.String(),
		OperationID: t.OperationID.String(),
		ScheduleID:  t.ScheduleID.String(),
		Direction:   string(t.Direction),
		Asset:       t.Asset,
		Account:     t.Account,
		Amount:      t.Amount.String(),
		Custody:     string(t.Custody),
		Reason:      string(t.Reason),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	})
}

func decodeTransfer(data []byte) (*transfer.Record, error) {
	var r transferRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("vesting/redis: decode transfer: %w", err)
	}
	transferID, err := id.ParseTransferID(r.ID)
	if err != nil {
		return nil, err
	}
	opID, err := id.ParseOperationID(r.OperationID)
	if err != nil {
		return nil, err
	}
	var scheduleID id.ScheduleID
	if r.ScheduleID != "" {
		if scheduleID, err = id.ParseScheduleID(r.ScheduleID); err != nil {
			return nil, err
		}
	}
	amounts, err := parseAmounts(r.ID, r.Amount)
	if err != nil {
		return nil, err
	}
	return &transfer.Record{
		ID:          transferID,
		OperationID: opID,
		ScheduleID:  scheduleID,
		Request: transfer.Request{
			Direction: transfer.Direction(r.Direction),
			Asset:     r.Asset,
			Account:   r.Account,
			Amount:    amounts[0],
			Custody:   transfer.Custody(r.Custody),
			Reason:    transfer.Reason(r.Reason),
		},
		Status:    transferStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

// transferStatus defaults records written before statuses existed to completed.
func transferStatus(s string) transfer.Status {
	if s == "" {
		return transfer.StatusCompleted
	}
	return transfer.Status(s)
}

func parseAmounts(owner string, values ...string) ([]types.Amount, error) {
	out := make([]types.Amount, len(values))
	for i, v := range values {
		a, err := types.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("vesting/redis: %s amount %q: %w", owner, v, err)
		}
		out[i] = a
	}
	return out, nil
}

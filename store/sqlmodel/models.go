// Package sqlmodel holds the grove models and the changeset writer shared by
// the PostgreSQL and SQLite backends. Amounts are stored as base-10 TEXT, durations as
// nanosecond integers and metadata as a JSON document in TEXT.
package sqlmodel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// ==================== Schedule models ====================

type ScheduleModel struct {
	grove.BaseModel `grove:"table:vesting_schedules"`

	ID              string     `grove:"id,pk"`
	Beneficiary     string     `grove:"beneficiary"`
	Index           int64      `grove:"idx"`
	Asset           string     `grove:"asset"`
	Origin          string     `grove:"origin"`
	TotalAmount     string     `grove:"total_amount"`
	ClaimedAmount   string     `grove:"claimed_amount"`
	StartTime       time.Time  `grove:"start_time"`
	CliffDuration   int64      `grove:"cliff_duration"`
	VestingDuration int64      `grove:"vesting_duration"`
	IsFixed         bool       `grove:"is_fixed"`
	Status          string     `grove:"status"`
	ReleasedAmount  string     `grove:"released_amount"`
	CancelledAt     *time.Time `grove:"cancelled_at"`
	Metadata        string     `grove:"metadata"`
	CreatedAt       time.Time  `grove:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at"`
}

func ToScheduleModel(s *schedule.Schedule) *ScheduleModel {
	return &ScheduleModel{
		ID:              s.ID.String(),
		Beneficiary:     s.Beneficiary,
		Index:           int64(s.Index), //nolint:gosec // indices are assigned sequentially from zero
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
		Metadata:        encodeMetadata(s.Metadata),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func FromScheduleModel(m *ScheduleModel) (*schedule.Schedule, error) {
	scheduleID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, err
	}
	total, err := types.ParseAmount(m.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("schedule %s total: %w", m.ID, err)
	}
	claimed, err := types.ParseAmount(m.ClaimedAmount)
	if err != nil {
		return nil, fmt.Errorf("schedule %s claimed: %w", m.ID, err)
	}
	released, err := types.ParseAmount(m.ReleasedAmount)
	if err != nil {
		return nil, fmt.Errorf("schedule %s released: %w", m.ID, err)
	}

	var cancelledAt *time.Time
	if m.CancelledAt != nil {
		at := m.CancelledAt.UTC()
		cancelledAt = &at
	}

	return &schedule.Schedule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              scheduleID,
		Beneficiary:     m.Beneficiary,
		Index:           uint64(m.Index), //nolint:gosec // never negative
		Asset:           m.Asset,
		Origin:          schedule.Origin(m.Origin),
		TotalAmount:     total,
		ClaimedAmount:   claimed,
		StartTime:       m.StartTime.UTC(),
		CliffDuration:   time.Duration(m.CliffDuration),
		VestingDuration: time.Duration(m.VestingDuration),
		IsFixed:         m.IsFixed,
		Status:          schedule.Status(m.Status),
		ReleasedAmount:  released,
		CancelledAt:     cancelledAt,
		Metadata:        decodeMetadata(m.Metadata),
	}, nil
}

// ==================== Balance models ====================

type BalanceModel struct {
	grove.BaseModel `grove:"table:vesting_balances"`

	Asset       string    `grove:"asset,pk"`
	Decimals    int       `grove:"decimals"`
	TotalHeld   string    `grove:"total_held"`
	TotalLocked string    `grove:"total_locked"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func ToBalanceModel(b *asset.Balance) *BalanceModel {
	return &BalanceModel{
		Asset:       b.Asset,
		Decimals:    int(b.Decimals),
		TotalHeld:   b.TotalHeld.String(),
		TotalLocked: b.TotalLocked.String(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func FromBalanceModel(m *BalanceModel) (*asset.Balance, error) {
	held, err := types.ParseAmount(m.TotalHeld)
	if err != nil {
		return nil, fmt.Errorf("balance %s held: %w", m.Asset, err)
	}
	locked, err := types.ParseAmount(m.TotalLocked)
	if err != nil {
		return nil, fmt.Errorf("balance %s locked: %w", m.Asset, err)
	}
	return &asset.Balance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Asset:       m.Asset,
		Decimals:    uint8(m.Decimals), //nolint:gosec // bounded by types.MaxDecimals on write
		TotalHeld:   held,
		TotalLocked: locked,
	}, nil
}

// ==================== Transfer models ====================

type TransferModel struct {
	grove.BaseModel `grove:"table:vesting_transfers"`

	ID          string    `grove:"id,pk"`
	OperationID string    `grove:"operation_id"`
	ScheduleID  string    `grove:"schedule_id"`
	Direction   string    `grove:"direction"`
	Asset       string    `grove:"asset"`
	Account     string    `grove:"account"`
	Amount      string    `grove:"amount"`
	Custody     string    `grove:"custody"`
	Reason      string    `grove:"reason"`
	Status      string    `grove:"status"`
	CreatedAt   time.Time `grove:"created_at"`
}

func ToTransferModel(r *transfer.Record) *TransferModel {
	return &TransferModel{
		ID:          r.ID.String(),
		OperationID: r.OperationID.String(),
		ScheduleID:  r.ScheduleID.String(),
		Direction:   string(r.Direction),
		Asset:       r.Asset,
		Account:     r.Account,
		Amount:      r.Amount.String(),
		Custody:     string(r.Custody),
		Reason:      string(r.Reason),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func FromTransferModel(m *TransferModel) (*transfer.Record, error) {
	transferID, err := id.ParseTransferID(m.ID)
	if err != nil {
		return nil, err
	}
	opID, err := id.ParseOperationID(m.OperationID)
	if err != nil {
		return nil, err
	}
	var scheduleID id.ScheduleID
	if m.ScheduleID != "" {
		if scheduleID, err = id.ParseScheduleID(m.ScheduleID); err != nil {
			return nil, err
		}
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("transfer %s amount: %w", m.ID, err)
	}
	return &transfer.Record{
		ID:          transferID,
		OperationID: opID,
		ScheduleID:  scheduleID,
		Request: transfer.Request{
			Direction: transfer.Direction(m.Direction),
			Asset:     m.Asset,
			Account:   m.Account,
			Amount:    amount,
			Custody:   transfer.Custody(m.Custody),
			Reason:    transfer.Reason(m.Reason),
		},
		Status:    TransferStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

// TransferStatus defaults rows written before statuses existed to completed.
func TransferStatus(s string) transfer.Status {
	if s == "" {
		return transfer.StatusCompleted
	}
	return transfer.Status(s)
}

// ==================== Helpers ====================

func encodeMetadata(md map[string]string) string {
	if len(md) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(md) //nolint:errcheck // string maps always marshal
	return string(b)
}

func decodeMetadata(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var md map[string]string
	_ = json.Unmarshal([]byte(s), &md) //nolint:errcheck // best-effort
	return md
}

package mongo

import (
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

type scheduleModel struct {
	grove.BaseModel `grove:"table:vesting_schedules" bson:"-"`

	ID              string            `grove:"id,pk"            bson:"_id"`
	Beneficiary     string            `grove:"beneficiary"      bson:"beneficiary"`
	Index           int64             `grove:"idx"              bson:"idx"`
	Asset           string            `grove:"asset"            bson:"asset"`
	Origin          string            `grove:"origin"           bson:"origin"`
	TotalAmount     string            `grove:"total_amount"     bson:"total_amount"`
	ClaimedAmount   string            `grove:"claimed_amount"   bson:"claimed_amount"`
	StartTime       time.Time         `grove:"start_time"       bson:"start_time"`
	CliffDuration   int64             `grove:"cliff_duration"   bson:"cliff_duration"`
	VestingDuration int64             `grove:"vesting_duration" bson:"vesting_duration"`
	IsFixed         bool              `grove:"is_fixed"         bson:"is_fixed"`
	Status          string            `grove:"status"           bson:"status"`
	ReleasedAmount  string            `grove:"released_amount"  bson:"released_amount"`
	CancelledAt     *time.Time        `grove:"cancelled_at"     bson:"cancelled_at,omitempty"`
	Metadata        map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"       bson:"updated_at"`
}

func toScheduleModel(s *schedule.Schedule) *scheduleModel {
	return &scheduleModel{
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
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromScheduleModel(m *scheduleModel) (*schedule.Schedule, error) {
	scheduleID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.ID, m.TotalAmount, m.ClaimedAmount, m.ReleasedAmount)
	if err != nil {
		return nil, err
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
		TotalAmount:     amounts[0],
		ClaimedAmount:   amounts[1],
		StartTime:       m.StartTime.UTC(),
		CliffDuration:   time.Duration(m.CliffDuration),
		VestingDuration: time.Duration(m.VestingDuration),
		IsFixed:         m.IsFixed,
		Status:          schedule.Status(m.Status),
		ReleasedAmount:  amounts[2],
		CancelledAt:     cancelledAt,
		Metadata:        m.Metadata,
	}, nil
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:vesting_balances" bson:"-"`

	Asset       string    `grove:"asset,pk"     bson:"_id"`
	Decimals    int       `grove:"decimals"     bson:"decimals"`
	TotalHeld   string    `grove:"total_held"   bson:"total_held"`
	TotalLocked string    `grove:"total_locked" bson:"total_locked"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
}

func toBalanceModel(b *asset.Balance) *balanceModel {
	return &balanceModel{
		Asset:       b.Asset,
		Decimals:    int(b.Decimals),
		TotalHeld:   b.TotalHeld.String(),
		TotalLocked: b.TotalLocked.String(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) (*asset.Balance, error) {
	amounts, err := parseAmounts(m.Asset, m.TotalHeld, m.TotalLocked)
	if err != nil {
		return nil, err
	}
	return &asset.Balance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Asset:       m.Asset,
		Decimals:    uint8(m.Decimals), //nolint:gosec // bounded by types.MaxDecimals on write
		TotalHeld:   amounts[0],
		TotalLocked: amounts[1],
	}, nil
}

// ==================== Transfer models ====================

type transferModel struct {
	grove.BaseModel `grove:"table:vesting_transfers" bson:"-"`

	ID          string    `grove:"id,pk"        bson:"_id"`
	OperationID string    `grove:"operation_id" bson:"operation_id"`
	ScheduleID  string    `grove:"schedule_id"  bson:"schedule_id,omitempty"`
	Direction   string    `grove:"direction"    bson:"direction"`
	Asset       string    `grove:"asset"        bson:"asset"`
	Account     string    `grove:"account"      bson:"account"`
	Amount      string    `grove:"amount"       bson:"amount"`
	Custody     string    `grove:"custody"      bson:"custody"`
	Reason      string    `grove:"reason"       bson:"reason"`
	Status      string    `grove:"status"       bson:"status"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
}

func toTransferModel(r *transfer.Record) *transferModel {
	return &transferModel{
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

func fromTransferModel(m *transferModel) (*transfer.Record, error) {
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
	amounts, err := parseAmounts(m.ID, m.Amount)
	if err != nil {
		return nil, err
	}
	return &transfer.Record{
		ID:          transferID,
		OperationID: opID,
		ScheduleID:  scheduleID,
		Request: transfer.Request{
			Direction: transfer.Direction(m.Direction),
			Asset:     m.Asset,
			Account:   m.Account,
			Amount:    amounts[0],
			Custody:   transfer.Custody(m.Custody),
			Reason:    transfer.Reason(m.Reason),
		},
		Status:    transferStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

// transferStatus defaults documents written before statuses existed to completed.
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
			return nil, fmt.Errorf("vesting/mongo: %s amount %q: %w", owner, v, err)
		}
		out[i] = a
	}
	return out, nil
}

package sqlmodel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/vesting"
	vestingstore "github.com/xraph/vesting/store"
)

// ExecFunc runs one statement inside the caller's transaction and reports
// how many rows it affected.
type ExecFunc func(ctx context.Context, query string, args ...any) (int64, error)

// Dialect adapts the changeset statements to one SQL flavour.
type Dialect struct {
	// Bind returns the n-th bind parameter, counting from 1.
	Bind func(n int) string
	// Time converts a timestamp into the driver's bind value. Nil passes
	// time.Time through.
	Time func(t time.Time) any
	// IsUniqueViolation reports whether err is a unique or primary key conflict.
	IsUniqueViolation func(err error) bool
}

// NumberedBind binds $1, $2 and so on.
func NumberedBind(n int) string { return "$" + strconv.Itoa(n) }

// PositionalBind binds ? for every parameter.
func PositionalBind(int) string { return "?" }

var (
	balanceColumns = []string{
		"asset", "decimals", "total_held", "total_locked", "created_at", "updated_at",
	}
	scheduleColumns = []string{
		"id", "beneficiary", "idx", "asset", "origin", "total_amount", "claimed_amount",
		"start_time", "cliff_duration", "vesting_duration", "is_fixed", "status",
		"released_amount", "cancelled_at", "metadata", "created_at", "updated_at",
	}
	transferColumns = []string{
		"id", "operation_id", "schedule_id", "direction", "asset", "account",
		"amount", "custody", "reason", "status", "created_at",
	}
)

// WriteChangeset issues every write of cs through exec in dependency order:
// balances, schedules, then transfer records. It stops at the first failure
// and leaves rollback to the caller's transaction.
func WriteChangeset(ctx context.Context, exec ExecFunc, d Dialect, cs *vestingstore.Changeset) error {
	w := changesetWriter{exec: exec, d: d}

	insertBalance := w.insert("vesting_balances", balanceColumns)
	for _, b := range cs.NewBalances {
		m := ToBalanceModel(b)
		_, err := exec(ctx, insertBalance,
			m.Asset, m.Decimals, m.TotalHeld, m.TotalLocked, w.time(m.CreatedAt), w.time(m.UpdatedAt))
		if err != nil {
			return w.conflict(err, vesting.ErrAssetExists, "balance %s", b.Asset)
		}
	}

	updateBalance := w.update("vesting_balances", "asset", "total_held", "total_locked", "updated_at")
	for _, b := range cs.UpdatedBalances {
		m := ToBalanceModel(b)
		if err := w.mustTouch(ctx, updateBalance, vesting.ErrAssetNotFound, b.Asset,
			m.TotalHeld, m.TotalLocked, w.time(m.UpdatedAt), m.Asset); err != nil {
			return err
		}
	}

	insertSchedule := w.insert("vesting_schedules", scheduleColumns)
	for _, sch := range cs.NewSchedules {
		m := ToScheduleModel(sch)
		_, err := exec(ctx, insertSchedule,
			m.ID, m.Beneficiary, m.Index, m.Asset, m.Origin, m.TotalAmount, m.ClaimedAmount,
			w.time(m.StartTime), m.CliffDuration, m.VestingDuration, m.IsFixed, m.Status,
			m.ReleasedAmount, w.timePtr(m.CancelledAt), m.Metadata, w.time(m.CreatedAt), w.time(m.UpdatedAt))
		if err != nil {
			return w.conflict(err, vesting.ErrAlreadyExists, "schedule %s/%d", sch.Beneficiary, sch.Index)
		}
	}

	updateSchedule := w.update("vesting_schedules", "id",
		"claimed_amount", "status", "released_amount", "cancelled_at", "metadata", "updated_at")
	for _, sch := range cs.UpdatedSchedules {
		m := ToScheduleModel(sch)
		if err := w.mustTouch(ctx, updateSchedule, vesting.ErrScheduleNotFound,
			fmt.Sprintf("%s/%d", sch.Beneficiary, sch.Index),
			m.ClaimedAmount, m.Status, m.ReleasedAmount, w.timePtr(m.CancelledAt), m.Metadata,
			w.time(m.UpdatedAt), m.ID); err != nil {
			return err
		}
	}

	insertTransfer := w.insert("vesting_transfers", transferColumns)
	for _, r := range cs.Transfers {
		m := ToTransferModel(r)
		_, err := exec(ctx, insertTransfer,
			m.ID, m.OperationID, m.ScheduleID, m.Direction, m.Asset, m.Account,
			m.Amount, m.Custody, m.Reason, m.Status, w.time(m.CreatedAt))
		if err != nil {
			return w.conflict(err, vesting.ErrAlreadyExists, "transfer %s", m.ID)
		}
	}

	updateTransfer := w.update("vesting_transfers", "id", "status")
	for _, r := range cs.UpdatedTransfers {
		id := r.ID.String()
		if err := w.mustTouch(ctx, updateTransfer, vesting.ErrNotFound, "transfer "+id,
			string(r.Status), id); err != nil {
			return err
		}
	}
	return nil
}

type changesetWriter struct {
	exec ExecFunc
	d    Dialect
}

func (w changesetWriter) insert(table string, cols []string) string {
	binds := make([]string, len(cols))
	for i := range cols {
		binds[i] = w.d.Bind(i + 1)
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(binds, ", ") + ")"
}

func (w changesetWriter) update(table, key string, cols ...string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + w.d.Bind(i+1)
	}
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + key + " = " + w.d.Bind(len(cols)+1)
}

// mustTouch runs an update and maps zero affected rows to missing.
func (w changesetWriter) mustTouch(ctx context.Context, query string, missing error, what string, args ...any) error {
	rows, err := w.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", missing, what)
	}
	return nil
}

func (w changesetWriter) conflict(err, sentinel error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if w.d.IsUniqueViolation != nil && w.d.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", sentinel, what)
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

func (w changesetWriter) time(t time.Time) any {
	if w.d.Time == nil {
		return t
	}
	return w.d.Time(t)
}

func (w changesetWriter) timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return w.time(*t)
}

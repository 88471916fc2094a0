package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	vestingstore "github.com/xraph/vesting/store"
	"github.com/xraph/vesting/store/sqlmodel"
	"github.com/xraph/vesting/transfer"
)

// compile-time interface check
var _ vestingstore.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE of a unique or primary key conflict.
const uniqueViolation = "23505"

var dialect = sqlmodel.Dialect{
	Bind: sqlmodel.NumberedBind,
	IsUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
	},
}

// Store implements store.Store using PostgreSQL. Reads and migrations run
// through Grove ORM; every write runs in a pgx transaction.
type Store struct {
	db   *grove.DB
	pg   *pgdriver.PgDB
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store. pool must connect to the same
// database as db.
func New(db *grove.DB, pool *pgxpool.Pool) *Store {
	return &Store{
		db:   db,
		pg:   pgdriver.Unwrap(db),
		pool: pool,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("vesting/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("vesting/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return err
	}
	return s.db.Ping(ctx)
}

// Close closes the database connections.
func (s *Store) Close() error {
	s.pool.Close()
	return s.db.Close()
}

// Commit writes the whole changeset in one transaction. Any failure rolls
// back every write of the changeset.
func (s *Store) Commit(ctx context.Context, cs *vestingstore.Changeset) error {
	if cs == nil || cs.IsEmpty() {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", vesting.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	exec := func(ctx context.Context, query string, args ...any) (int64, error) {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	if err := sqlmodel.WriteChangeset(ctx, exec, dialect, cs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", vesting.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) GetSchedule(ctx context.Context, beneficiary string, index uint64) (*schedule.Schedule, error) {
	m := new(sqlmodel.ScheduleModel)
	err := s.pg.NewSelect(m).
		Where("beneficiary = $1", beneficiary).
		Where("idx = $2", int64(index)). //nolint:gosec // indices are small
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vesting.ErrScheduleNotFound
		}
		return nil, err
	}
	return sqlmodel.FromScheduleModel(m)
}

func (s *Store) UpdateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) ListSchedules(ctx context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	var models []sqlmodel.ScheduleModel
	q := s.pg.NewSelect(&models).Where("beneficiary = $1", beneficiary)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Asset != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("asset = $%d", argIdx), opts.Asset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("idx ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schedule.Schedule, len(models))
	for i := range models {
		sch, err := sqlmodel.FromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sch
	}
	return result, nil
}

func (s *Store) NextScheduleIndex(ctx context.Context, beneficiary string) (uint64, error) {
	var models []sqlmodel.ScheduleModel
	err := s.pg.NewSelect(&models).
		Where("beneficiary = $1", beneficiary).
		OrderExpr("idx DESC").
		Limit(1).
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return 0, err
	}
	if len(models) == 0 {
		return 0, nil
	}
	return uint64(models[0].Index) + 1, nil //nolint:gosec // never negative
}

// ==================== Asset Ledger Store ====================

func (s *Store) CreateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewBalances: []*asset.Balance{b}})
}

func (s *Store) GetBalance(ctx context.Context, assetID string) (*asset.Balance, error) {
	m := new(sqlmodel.BalanceModel)
	err := s.pg.NewSelect(m).
		Where("asset = $1", assetID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vesting.ErrAssetNotFound
		}
		return nil, err
	}
	return sqlmodel.FromBalanceModel(m)
}

func (s *Store) UpdateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedBalances: []*asset.Balance{b}})
}

func (s *Store) ListBalances(ctx context.Context) ([]*asset.Balance, error) {
	var models []sqlmodel.BalanceModel
	if err := s.pg.NewSelect(&models).OrderExpr("asset ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*asset.Balance, len(models))
	for i := range models {
		b, err := sqlmodel.FromBalanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Transfer Store ====================

func (s *Store) CreateTransfer(ctx context.Context, r *transfer.Record) error {
	return s.Commit(ctx, &vestingstore.Changeset{Transfers: []*transfer.Record{r}})
}

func (s *Store) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Record, error) {
	var models []sqlmodel.TransferModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Asset != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("asset = $%d", argIdx), opts.Asset)
	}
	if opts.Account != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("account = $%d", argIdx), opts.Account)
	}
	if opts.Reason != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("reason = $%d", argIdx), string(opts.Reason))
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*transfer.Record, len(models))
	for i := range models {
		r, err := sqlmodel.FromTransferModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

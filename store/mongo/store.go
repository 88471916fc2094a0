package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	vestingstore "github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
)

// Collection name constants.
const (
	colSchedules = "vesting_schedules"
	colBalances  = "vesting_balances"
	colTransfers = "vesting_transfers"
)

// compile-time interface check
var _ vestingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Writes run in
// multi-document transactions, so the server must be a replica set or a
// sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all vesting collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("vesting/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Commit writes the whole changeset in one session transaction. Any failure
// aborts every write of the changeset.
func (s *Store) Commit(ctx context.Context, cs *vestingstore.Changeset) error {
	if cs == nil || cs.IsEmpty() {
		return nil
	}

	client := s.mdb.Collection(colSchedules).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %w", vesting.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.write(ctx, cs)
	})
	return err
}

// write issues every document write of cs. ctx carries the session, so the
// writes join its transaction.
func (s *Store) write(ctx context.Context, cs *vestingstore.Changeset) error {
	balances := s.mdb.Collection(colBalances)
	schedules := s.mdb.Collection(colSchedules)
	transfers := s.mdb.Collection(colTransfers)

	for _, b := range cs.NewBalances {
		if _, err := balances.InsertOne(ctx, toBalanceModel(b)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", vesting.ErrAssetExists, b.Asset)
			}
			return fmt.Errorf("vesting/mongo: create balance: %w", err)
		}
	}
	for _, b := range cs.UpdatedBalances {
		res, err := balances.UpdateOne(ctx, bson.M{"_id": b.Asset}, bson.M{"$set": bson.M{
			"total_held":   b.TotalHeld.String(),
			"total_locked": b.TotalLocked.String(),
			"updated_at":   b.UpdatedAt,
		}})
		if err != nil {
			return fmt.Errorf("vesting/mongo: update balance: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s", vesting.ErrAssetNotFound, b.Asset)
		}
	}
	for _, sch := range cs.NewSchedules {
		if _, err := schedules.InsertOne(ctx, toScheduleModel(sch)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: schedule %s/%d", vesting.ErrAlreadyExists, sch.Beneficiary, sch.Index)
			}
			return fmt.Errorf("vesting/mongo: create schedule: %w", err)
		}
	}
	for _, sch := range cs.UpdatedSchedules {
		m := toScheduleModel(sch)
		res, err := schedules.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
		if err != nil {
			return fmt.Errorf("vesting/mongo: update schedule: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s/%d", vesting.ErrScheduleNotFound, sch.Beneficiary, sch.Index)
		}
	}
	for _, r := range cs.Transfers {
		if _, err := transfers.InsertOne(ctx, toTransferModel(r)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: transfer %s", vesting.ErrAlreadyExists, r.ID)
			}
			return fmt.Errorf("vesting/mongo: create transfer: %w", err)
		}
	}
	for _, r := range cs.UpdatedTransfers {
		res, err := transfers.UpdateOne(ctx, bson.M{"_id": r.ID.String()}, bson.M{"$set": bson.M{
			"status": string(r.Status),
		}})
		if err != nil {
			return fmt.Errorf("vesting/mongo: update transfer: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: transfer %s", vesting.ErrNotFound, r.ID)
		}
	}
	return nil
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) GetSchedule(ctx context.Context, beneficiary string, index uint64) (*schedule.Schedule, error) {
	var m scheduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"beneficiary": beneficiary, "idx": int64(index)}). //nolint:gosec // indices are small
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vesting.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("vesting/mongo: get schedule: %w", err)
	}
	return fromScheduleModel(&m)
}

func (s *Store) UpdateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) ListSchedules(ctx context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	var models []scheduleModel

	filter := bson.M{"beneficiary": beneficiary}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Asset != "" {
		filter["asset"] = opts.Asset
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "idx", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vesting/mongo: list schedules: %w", err)
	}

	result := make([]*schedule.Schedule, len(models))
	for i := range models {
		sch, err := fromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sch
	}
	return result, nil
}

func (s *Store) NextScheduleIndex(ctx context.Context, beneficiary string) (uint64, error) {
	var m scheduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"beneficiary": beneficiary}).
		Sort(bson.D{{Key: "idx", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("vesting/mongo: next schedule index: %w", err)
	}
	return uint64(m.Index) + 1, nil //nolint:gosec // never negative
}

// ==================== Asset Ledger Store ====================

func (s *Store) CreateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewBalances: []*asset.Balance{b}})
}

func (s *Store) GetBalance(ctx context.Context, assetID string) (*asset.Balance, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": assetID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vesting.ErrAssetNotFound
		}
		return nil, fmt.Errorf("vesting/mongo: get balance: %w", err)
	}
	return fromBalanceModel(&m)
}

func (s *Store) UpdateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedBalances: []*asset.Balance{b}})
}

func (s *Store) ListBalances(ctx context.Context) ([]*asset.Balance, error) {
	var models []balanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("vesting/mongo: list balances: %w", err)
	}

	result := make([]*asset.Balance, len(models))
	for i := range models {
		b, err := fromBalanceModel(&models[i])
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
	var models []transferModel

	filter := bson.M{}
	if opts.Asset != "" {
		filter["asset"] = opts.Asset
	}
	if opts.Account != "" {
		filter["account"] = opts.Account
	}
	if opts.Reason != "" {
		filter["reason"] = string(opts.Reason)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vesting/mongo: list transfers: %w", err)
	}

	result := make([]*transfer.Record, len(models))
	for i := range models {
		r, err := fromTransferModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all vesting collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSchedules: {
			{
				Keys:    bson.D{{Key: "beneficiary", Value: 1}, {Key: "idx", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "status", Value: 1}}},
		},
		colBalances: {},
		colTransfers: {
			{Keys: bson.D{{Key: "operation_id", Value: 1}}},
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
}

// Package redis implements the vesting store on Redis.
//
// Entities are msgpack documents under plain keys. Per-beneficiary schedule
// indexes live in sorted sets scored by schedule index, the asset list in a
// set and the transfer log in a list. Commit runs as a single MULTI/EXEC
// guarded by WATCH on every key it touches, so a changeset lands whole or
// not at all.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	vestingstore "github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "vesting"

// compile-time interface check
var _ vestingstore.Store = (*Store)(nil)

// Store implements store.Store on a Redis client.
type Store struct {
	client *goredis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace. An empty prefix writes bare keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store on client.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() *goredis.Client { return s.client }

// ==================== Keys ====================

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		if k == "" {
			k = p
			continue
		}
		k += ":" + p
	}
	return k
}

func (s *Store) scheduleKey(beneficiary string, index uint64) string {
	return s.key("schedule", beneficiary, strconv.FormatUint(index, 10))
}

func (s *Store) scheduleIndexKey(beneficiary string) string {
	return s.key("schedules", beneficiary)
}

func (s *Store) balanceKey(assetID string) string { return s.key("balance", assetID) }
func (s *Store) balancesKey() string              { return s.key("balances") }
func (s *Store) transferKey(id string) string      { return s.key("transfer", id) }
func (s *Store) transfersKey() string              { return s.key("transfers") }

// ==================== Core ====================

// Migrate is a no-op: Redis needs no schema.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Commit applies a changeset atomically. If a watched key changes between
// validation and EXEC the commit fails with vesting.ErrTransactionFailed and
// nothing is written.
func (s *Store) Commit(ctx context.Context, cs *vestingstore.Changeset) error {
	if cs == nil || cs.IsEmpty() {
		return nil
	}

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		if err := s.validate(ctx, tx, cs); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return s.write(ctx, pipe, cs)
		})
		return err
	}, s.watchKeys(cs)...)

	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("%w: %w", vesting.ErrTransactionFailed, err)
	}
	return err
}

func (s *Store) watchKeys(cs *vestingstore.Changeset) []string {
	var keys []string
	for _, sch := range cs.NewSchedules {
		keys = append(keys, s.scheduleKey(sch.Beneficiary, sch.Index), s.scheduleIndexKey(sch.Beneficiary))
	}
	for _, sch := range cs.UpdatedSchedules {
		keys = append(keys, s.scheduleKey(sch.Beneficiary, sch.Index))
	}
	for _, b := range cs.NewBalances {
		keys = append(keys, s.balanceKey(b.Asset))
	}
	for _, b := range cs.UpdatedBalances {
		keys = append(keys, s.balanceKey(b.Asset))
	}
	for _, r := range cs.UpdatedTransfers {
		keys = append(keys, s.transferKey(r.ID.String()))
	}
	return keys
}

// validate checks every precondition of the changeset against the watched
// keys. Nothing is written when it fails.
func (s *Store) validate(ctx context.Context, tx *goredis.Tx, cs *vestingstore.Changeset) error {
	exists := func(key string) (bool, error) {
		n, err := tx.Exists(ctx, key).Result()
		return n > 0, err
	}

	next := map[string]uint64{}
	for _, sch := range cs.NewSchedules {
		want, ok := next[sch.Beneficiary]
		if !ok {
			n, err := tx.ZCard(ctx, s.scheduleIndexKey(sch.Beneficiary)).Result()
			if err != nil {
				return fmt.Errorf("vesting/redis: count schedules: %w", err)
			}
			want = uint64(n) //nolint:gosec // ZCARD is never negative
		}
		if sch.Index != want {
			return fmt.Errorf("%w: schedule %s/%d, next index is %d",
				vesting.ErrAlreadyExists, sch.Beneficiary, sch.Index, want)
		}
		next[sch.Beneficiary] = want + 1
	}
	for _, sch := range cs.UpdatedSchedules {
		ok, err := exists(s.scheduleKey(sch.Beneficiary, sch.Index))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%d", vesting.ErrScheduleNotFound, sch.Beneficiary, sch.Index)
		}
	}
	for _, b := range cs.NewBalances {
		ok, err := exists(s.balanceKey(b.Asset))
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", vesting.ErrAssetExists, b.Asset)
		}
	}
	for _, b := range cs.UpdatedBalances {
		ok, err := exists(s.balanceKey(b.Asset))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", vesting.ErrAssetNotFound, b.Asset)
		}
	}
	for _, r := range cs.UpdatedTransfers {
		ok, err := exists(s.transferKey(r.ID.String()))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: transfer %s", vesting.ErrNotFound, r.ID)
		}
	}
	return nil
}

func (s *Store) write(ctx context.Context, pipe goredis.Pipeliner, cs *vestingstore.Changeset) error {
	for _, b := range append(append([]*asset.Balance{}, cs.NewBalances...), cs.UpdatedBalances...) {
		data, err := encodeBalance(b)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.balanceKey(b.Asset), data, 0)
		pipe.SAdd(ctx, s.balancesKey(), b.Asset)
	}
	for _, sch := range cs.NewSchedules {
		data, err := encodeSchedule(sch)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.scheduleKey(sch.Beneficiary, sch.Index), data, 0)
		pipe.ZAdd(ctx, s.scheduleIndexKey(sch.Beneficiary), goredis.Z{
			Score:  float64(sch.Index),
			Member: strconv.FormatUint(sch.Index, 10),
		})
	}
	for _, sch := range cs.UpdatedSchedules {
		data, err := encodeSchedule(sch)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.scheduleKey(sch.Beneficiary, sch.Index), data, 0)
	}
	for _, r := range cs.Transfers {
		data, err := encodeTransfer(r)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.transferKey(r.ID.String()), data, 0)
		pipe.RPush(ctx, s.transfersKey(), r.ID.String())
	}
	for _, r := range cs.UpdatedTransfers {
		data, err := encodeTransfer(r)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.transferKey(r.ID.String()), data, 0)
	}
	return nil
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) GetSchedule(ctx context.Context, beneficiary string, index uint64) (*schedule.Schedule, error) {
	data, err := s.client.Get(ctx, s.scheduleKey(beneficiary, index)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, vesting.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("vesting/redis: get schedule: %w", err)
	}
	return decodeSchedule(data)
}

func (s *Store) UpdateSchedule(ctx context.Context, sch *schedule.Schedule) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedSchedules: []*schedule.Schedule{sch}})
}

func (s *Store) ListSchedules(ctx context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	members, err := s.client.ZRange(ctx, s.scheduleIndexKey(beneficiary), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("vesting/redis: list schedules: %w", err)
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.key("schedule", beneficiary, m)
	}
	docs, err := s.mget(ctx, keys)
	if err != nil {
		return nil, err
	}

	var result []*schedule.Schedule
	for _, data := range docs {
		sch, err := decodeSchedule(data)
		if err != nil {
			return nil, err
		}
		if opts.Matches(sch) {
			result = append(result, sch)
		}
	}
	return vestingstore.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) NextScheduleIndex(ctx context.Context, beneficiary string) (uint64, error) {
	n, err := s.client.ZCard(ctx, s.scheduleIndexKey(beneficiary)).Result()
	if err != nil {
		return 0, fmt.Errorf("vesting/redis: next schedule index: %w", err)
	}
	return uint64(n), nil //nolint:gosec // ZCARD is never negative
}

// ==================== Asset Ledger Store ====================

func (s *Store) CreateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{NewBalances: []*asset.Balance{b}})
}

func (s *Store) GetBalance(ctx context.Context, assetID string) (*asset.Balance, error) {
	data, err := s.client.Get(ctx, s.balanceKey(assetID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, vesting.ErrAssetNotFound
		}
		return nil, fmt.Errorf("vesting/redis: get balance: %w", err)
	}
	return decodeBalance(data)
}

func (s *Store) UpdateBalance(ctx context.Context, b *asset.Balance) error {
	return s.Commit(ctx, &vestingstore.Changeset{UpdatedBalances: []*asset.Balance{b}})
}

func (s *Store) ListBalances(ctx context.Context) ([]*asset.Balance, error) {
	assets, err := s.client.SMembers(ctx, s.balancesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("vesting/redis: list balances: %w", err)
	}
	sort.Strings(assets)

	keys := make([]string, len(assets))
	for i, a := range assets {
		keys[i] = s.balanceKey(a)
	}
	docs, err := s.mget(ctx, keys)
	if err != nil {
		return nil, err
	}

	result := make([]*asset.Balance, 0, len(docs))
	for _, data := range docs {
		b, err := decodeBalance(data)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// ==================== Transfer Store ====================

func (s *Store) CreateTransfer(ctx context.Context, r *transfer.Record) error {
	return s.Commit(ctx, &vestingstore.Changeset{Transfers: []*transfer.Record{r}})
}

func (s *Store) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Record, error) {
	ids, err := s.client.LRange(ctx, s.transfersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("vesting/redis: list transfers: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.transferKey(id)
	}
	docs, err := s.mget(ctx, keys)
	if err != nil {
		return nil, err
	}

	var result []*transfer.Record
	for _, data := range docs {
		r, err := decodeTransfer(data)
		if err != nil {
			return nil, err
		}
		if opts.Matches(r) {
			result = append(result, r)
		}
	}
	return vestingstore.Page(result, opts.Offset, opts.Limit), nil
}

// mget fetches keys in order, skipping missing ones.
func (s *Store) mget(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("vesting/redis: mget: %w", err)
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, []byte(str))
		}
	}
	return out, nil
}

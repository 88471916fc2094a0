// Package memory provides an in-process Store. It keeps copies of every
// entity it is given and hands out copies on read, so callers never share
// state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Schedules per beneficiary, indexed by schedule index.
	schedules map[string][]*schedule.Schedule

	// Asset ledger entries by asset.
	balances map[string]*asset.Balance

	// Transfer records in commit order.
	transfers []*transfer.Record

	closed bool
}

func New() *Store {
	return &Store{
		schedules: make(map[string][]*schedule.Schedule),
		balances:  make(map[string]*asset.Balance),
		transfers: make([]*transfer.Record, 0),
	}
}

// ──────────────────────────────────────────────────
// Schedule store
// ──────────────────────────────────────────────────

func (s *Store) CreateSchedule(_ context.Context, sch *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCreateSchedule(sch); err != nil {
		return err
	}
	s.putSchedule(sch)
	return nil
}

func (s *Store) GetSchedule(_ context.Context, beneficiary string, index uint64) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.schedules[beneficiary]
	if index >= uint64(len(list)) {
		return nil, vesting.ErrScheduleNotFound
	}
	return list[index].Clone(), nil
}

func (s *Store) UpdateSchedule(_ context.Context, sch *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUpdateSchedule(sch); err != nil {
		return err
	}
	s.schedules[sch.Beneficiary][sch.Index] = sch.Clone()
	return nil
}

func (s *Store) ListSchedules(_ context.Context, beneficiary string, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*schedule.Schedule, 0)
	for _, sch := range s.schedules[beneficiary] {
		if opts.Matches(sch) {
			result = append(result, sch.Clone())
		}
	}
	return store.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) NextScheduleIndex(_ context.Context, beneficiary string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.schedules[beneficiary])), nil
}

func (s *Store) checkCreateSchedule(sch *schedule.Schedule) error {
	if next := uint64(len(s.schedules[sch.Beneficiary])); sch.Index != next {
		return fmt.Errorf("%w: schedule %s/%d (next index %d)", vesting.ErrAlreadyExists, sch.Beneficiary, sch.Index, next)
	}
	return nil
}

func (s *Store) checkUpdateSchedule(sch *schedule.Schedule) error {
	if sch.Index >= uint64(len(s.schedules[sch.Beneficiary])) {
		return vesting.ErrScheduleNotFound
	}
	return nil
}

func (s *Store) putSchedule(sch *schedule.Schedule) {
	s.schedules[sch.Beneficiary] = append(s.schedules[sch.Beneficiary], sch.Clone())
}

// ──────────────────────────────────────────────────
// Asset ledger store
// ──────────────────────────────────────────────────

func (s *Store) CreateBalance(_ context.Context, b *asset.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[b.Asset]; exists {
		return vesting.ErrAssetExists
	}
	s.balances[b.Asset] = b.Clone()
	return nil
}

func (s *Store) GetBalance(_ context.Context, assetID string) (*asset.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[assetID]; ok {
		return b.Clone(), nil
	}
	return nil, vesting.ErrAssetNotFound
}

func (s *Store) UpdateBalance(_ context.Context, b *asset.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[b.Asset]; !exists {
		return vesting.ErrAssetNotFound
	}
	s.balances[b.Asset] = b.Clone()
	return nil
}

func (s *Store) ListBalances(_ context.Context) ([]*asset.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*asset.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		result = append(result, b.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

// ──────────────────────────────────────────────────
// Transfer store
// ──────────────────────────────────────────────────

func (s *Store) CreateTransfer(_ context.Context, r *transfer.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *r
	s.transfers = append(s.transfers, &c)
	return nil
}

func (s *Store) ListTransfers(_ context.Context, opts transfer.ListOpts) ([]*transfer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transfer.Record, 0)
	for _, r := range s.transfers {
		if opts.Matches(r) {
			c := *r
			result = append(result, &c)
		}
	}
	return store.Page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Unit of work
// ──────────────────────────────────────────────────

// Commit validates the whole changeset before writing any of it, so either
// every entity is stored or none is.
func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vesting.ErrStoreClosed
	}

	for _, b := range cs.NewBalances {
		if _, exists := s.balances[b.Asset]; exists {
			return fmt.Errorf("%w: %s", vesting.ErrAssetExists, b.Asset)
		}
	}
	created := make(map[string]bool, len(cs.NewBalances))
	for _, b := range cs.NewBalances {
		created[b.Asset] = true
	}
	for _, b := range cs.UpdatedBalances {
		if _, exists := s.balances[b.Asset]; !exists && !created[b.Asset] {
			return fmt.Errorf("%w: %s", vesting.ErrAssetNotFound, b.Asset)
		}
	}
	pending := make(map[string]uint64)
	for _, sch := range cs.NewSchedules {
		next := uint64(len(s.schedules[sch.Beneficiary])) + pending[sch.Beneficiary]
		if sch.Index != next {
			return fmt.Errorf("%w: schedule %s/%d (next index %d)", vesting.ErrAlreadyExists, sch.Beneficiary, sch.Index, next)
		}
		pending[sch.Beneficiary]++
	}
	for _, sch := range cs.UpdatedSchedules {
		if err := s.checkUpdateSchedule(sch); err != nil {
			return err
		}
	}
	positions := make([]int, len(cs.UpdatedTransfers))
	for i, r := range cs.UpdatedTransfers {
		pos := s.transferPosition(r)
		if pos < 0 {
			return fmt.Errorf("%w: transfer %s", vesting.ErrNotFound, r.ID)
		}
		positions[i] = pos
	}

	for _, b := range cs.NewBalances {
		s.balances[b.Asset] = b.Clone()
	}
	for _, b := range cs.UpdatedBalances {
		s.balances[b.Asset] = b.Clone()
	}
	for _, sch := range cs.NewSchedules {
		s.putSchedule(sch)
	}
	for _, sch := range cs.UpdatedSchedules {
		s.schedules[sch.Beneficiary][sch.Index] = sch.Clone()
	}
	for _, r := range cs.Transfers {
		c := *r
		s.transfers = append(s.transfers, &c)
	}
	for i, r := range cs.UpdatedTransfers {
		c := *r
		s.transfers[positions[i]] = &c
	}
	return nil
}

func (s *Store) transferPosition(r *transfer.Record) int {
	for i, existing := range s.transfers {
		if existing.ID.String() == r.ID.String() {
			return i
		}
	}
	return -1
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return vesting.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

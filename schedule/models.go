// Package schedule defines the vesting schedule domain entity and the pure
// arithmetic that decides how much of a schedule has vested.
package schedule

import (
	"time"

	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// Status represents the lifecycle state of a schedule.
type Status string

const (
	// StatusActive schedules may still vest and be claimed.
	StatusActive Status = "active"
	// StatusCancelled schedules were revoked; their unclaimed remainder was released.
	StatusCancelled Status = "cancelled"
	// StatusExhausted schedules have been claimed in full.
	StatusExhausted Status = "exhausted"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExhausted
}

// Origin records which engine path created a schedule.
type Origin string

const (
	OriginGrant    Origin = "grant"
	OriginPurchase Origin = "purchase"
	OriginSwap     Origin = "swap"
)

// Params are the caller-supplied terms of a new schedule.
type Params struct {
	Asset           string        `json:"asset"`
	IsFixed         bool          `json:"is_fixed"`
	CliffDuration   time.Duration `json:"cliff_duration"`
	VestingDuration time.Duration `json:"vesting_duration"`
	StartTime       time.Time     `json:"start_time"`
}

// Schedule is a time-based release of a fixed quantity of an asset to a
// beneficiary.
//
// Invariant: ClaimedAmount <= TotalAmount. Status moves only from Active to
// Cancelled or Exhausted.
type Schedule struct {
	types.Entity

	ID          id.ScheduleID `json:"id"`
	Beneficiary string        `json:"beneficiary"`
	// Index is the position of this schedule among the beneficiary's
	// schedules, starting at 0, assigned in creation order.
	Index  uint64 `json:"index"`
	Asset  string `json:"asset"`
	Origin Origin `json:"origin"`

	TotalAmount   types.Amount `json:"total_amount"`
	ClaimedAmount types.Amount `json:"claimed_amount"`

	StartTime       time.Time     `json:"start_time"`
	CliffDuration   time.Duration `json:"cliff_duration"`
	VestingDuration time.Duration `json:"vesting_duration"`
	IsFixed         bool          `json:"is_fixed"`

	Status Status `json:"status"`
	// ReleasedAmount is the unclaimed remainder returned to the unlocked
	// pool when the schedule was cancelled.
	ReleasedAmount types.Amount `json:"released_amount"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// New builds an Active schedule from params.
func New(beneficiary string, index uint64, total types.Amount, p Params, origin Origin, now time.Time) *Schedule {
	return &Schedule{
		Entity:          types.NewEntity(now),
		ID:              id.NewScheduleID(),
		Beneficiary:     beneficiary,
		Index:           index,
		Asset:           p.Asset,
		Origin:          origin,
		TotalAmount:     total,
		StartTime:       p.StartTime.UTC(),
		CliffDuration:   p.CliffDuration,
		VestingDuration: p.VestingDuration,
		IsFixed:         p.IsFixed,
		Status:          StatusActive,
	}
}

// CliffTime returns the instant from which vesting becomes claimable.
func (s *Schedule) CliffTime() time.Time {
	return s.StartTime.Add(s.CliffDuration)
}

// EndTime returns the instant at which the full amount has vested.
func (s *Schedule) EndTime() time.Time {
	return s.StartTime.Add(s.VestingDuration)
}

// Remaining returns the part of the total not yet claimed.
func (s *Schedule) Remaining() types.Amount {
	return s.TotalAmount.SaturatingSub(s.ClaimedAmount)
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	c := *s
	if s.CancelledAt != nil {
		at := *s.CancelledAt
		c.CancelledAt = &at
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ListOpts configures schedule listing.
type ListOpts struct {
	Status Status
	Asset  string
	Limit  int
	Offset int
}

// Matches reports whether s satisfies the filter parts of opts.
func (o ListOpts) Matches(s *Schedule) bool {
	if o.Status != "" && s.Status != o.Status {
		return false
	}
	if o.Asset != "" && s.Asset != o.Asset {
		return false
	}
	return true
}

package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/vesting/types"
)

// Errors produced by schedule arithmetic and validation.
var (
	ErrInvalidParams   = errors.New("vesting: invalid vesting params")
	ErrCliffNotReached = errors.New("vesting: cliff not reached")
)

// Bounds are optional per-path limits on cliff and vesting durations.
// They are only enforced when Enabled is set.
type Bounds struct {
	Enabled    bool          `json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	MinCliff   time.Duration `json:"min_cliff" yaml:"min_cliff" toml:"min_cliff" mapstructure:"min_cliff"`
	MaxCliff   time.Duration `json:"max_cliff" yaml:"max_cliff" toml:"max_cliff" mapstructure:"max_cliff"`
	MinVesting time.Duration `json:"min_vesting" yaml:"min_vesting" toml:"min_vesting" mapstructure:"min_vesting"`
	MaxVesting time.Duration `json:"max_vesting" yaml:"max_vesting" toml:"max_vesting" mapstructure:"max_vesting"`
}

// Check validates a cliff/vesting pair against the bounds.
func (b Bounds) Check(cliff, vesting time.Duration) error {
	if !b.Enabled {
		return nil
	}
	if cliff < b.MinCliff || (b.MaxCliff > 0 && cliff > b.MaxCliff) {
		return fmt.Errorf("%w: cliff %s outside [%s, %s]", ErrInvalidParams, cliff, b.MinCliff, b.MaxCliff)
	}
	if vesting < b.MinVesting || (b.MaxVesting > 0 && vesting > b.MaxVesting) {
		return fmt.Errorf("%w: vesting %s outside [%s, %s]", ErrInvalidParams, vesting, b.MinVesting, b.MaxVesting)
	}
	return nil
}

// ValidateParams checks schedule terms at creation time:
//
//	0 < cliff <= vesting
//	|start - now| <= tolerance
//	cliff and vesting within bounds (when enabled)
func ValidateParams(p Params, now time.Time, tolerance time.Duration, b Bounds) error {
	if p.Asset == "" {
		return fmt.Errorf("%w: asset is required", ErrInvalidParams)
	}
	if p.CliffDuration <= 0 {
		return fmt.Errorf("%w: cliff must be positive", ErrInvalidParams)
	}
	if p.CliffDuration > p.VestingDuration {
		return fmt.Errorf("%w: cliff %s exceeds vesting %s", ErrInvalidParams, p.CliffDuration, p.VestingDuration)
	}
	drift := p.StartTime.Sub(now)
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return fmt.Errorf("%w: start time drifts %s from now (tolerance %s)", ErrInvalidParams, drift, tolerance)
	}
	return b.Check(p.CliffDuration, p.VestingDuration)
}

// VestedAmount returns how much of the schedule has vested at now.
//
// Before the cliff it fails with ErrCliffNotReached. From the cliff onwards
// the amount grows linearly from the start time and is truncated toward
// zero; at or after the end it equals the total. A cancelled schedule is
// frozen at what was already claimed.
func VestedAmount(s *Schedule, now time.Time) (types.Amount, error) {
	switch s.Status {
	case StatusCancelled:
		return s.ClaimedAmount, nil
	case StatusExhausted:
		return s.TotalAmount, nil
	}

	if now.Before(s.CliffTime()) {
		return types.Zero(), ErrCliffNotReached
	}
	if !now.Before(s.EndTime()) {
		return s.TotalAmount, nil
	}

	elapsed := now.Sub(s.StartTime)
	return s.TotalAmount.MulDiv(
		types.NewAmount(uint64(elapsed)),
		types.NewAmount(uint64(s.VestingDuration)),
	)
}

// VestedAt is like VestedAmount but reports zero before the cliff.
func VestedAt(s *Schedule, now time.Time) (types.Amount, error) {
	v, err := VestedAmount(s, now)
	if errors.Is(err, ErrCliffNotReached) {
		return types.Zero(), nil
	}
	return v, err
}

// Claimable returns vested minus already claimed at now.
func Claimable(s *Schedule, now time.Time) (types.Amount, error) {
	v, err := VestedAmount(s, now)
	if err != nil {
		return types.Zero(), err
	}
	return v.SaturatingSub(s.ClaimedAmount), nil
}

// Weeks returns n weeks as a duration.
func Weeks(n int) time.Duration {
	return time.Duration(n) * 7 * 24 * time.Hour
}

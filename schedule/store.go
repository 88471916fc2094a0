package schedule

import "context"

// Store defines persistence operations for vesting schedules.
type Store interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, beneficiary string, index uint64) (*Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	ListSchedules(ctx context.Context, beneficiary string, opts ListOpts) ([]*Schedule, error)
	// NextScheduleIndex returns the index the beneficiary's next schedule receives.
	NextScheduleIndex(ctx context.Context, beneficiary string) (uint64, error)
}

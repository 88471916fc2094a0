package types

import "time"

// Entity is the base type for all Vesting entities with timestamps.
// Timestamps are supplied by the caller; the engine never reads the wall clock.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity stamped at the given time.
func NewEntity(at time.Time) Entity {
	at = at.UTC()
	return Entity{
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Touch updates the UpdatedAt timestamp.
func (e *Entity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// IsStale returns true if the entity hasn't been updated within staleDuration of now.
func (e Entity) IsStale(now time.Time, staleDuration time.Duration) bool {
	return now.Sub(e.UpdatedAt) > staleDuration
}

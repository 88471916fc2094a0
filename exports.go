package vesting

import (
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Schedule is re-exported from schedule package.
type Schedule = schedule.Schedule

// Params is re-exported from schedule package.
type Params = schedule.Params

// Re-export Amount constructors
var (
	NewAmount      = types.NewAmount
	Units          = types.Units
	ParseAmount    = types.ParseAmount
	ParseUnits     = types.ParseUnits
	MustParseUnits = types.MustParseUnits
	Zero           = types.Zero
)

// Re-export schedule helpers
var Weeks = schedule.Weeks

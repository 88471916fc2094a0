// Package transfer defines the external asset-movement collaborator and the
// records the engine keeps of every movement it performed.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// Direction of an asset movement relative to custody.
type Direction string

const (
	// DirectionPull moves assets from an external account into custody.
	DirectionPull Direction = "pull"
	// DirectionPush moves assets from custody to an external account.
	DirectionPush Direction = "push"
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == DirectionPull {
		return DirectionPush
	}
	return DirectionPull
}

// Custody names the internal side of a movement.
type Custody string

const (
	CustodyLedger   Custody = "ledger"
	CustodyLockbox  Custody = "lockbox"
	CustodyTreasury Custody = "treasury"
)

// Reason records which engine operation caused a movement.
type Reason string

const (
	ReasonDeposit      Reason = "deposit"
	ReasonPurchase     Reason = "purchase"
	ReasonBonus        Reason = "bonus"
	ReasonSwap         Reason = "swap"
	ReasonClaim        Reason = "claim"
	ReasonWithdrawal   Reason = "withdrawal"
	ReasonCompensation Reason = "compensation"
)

// Status tracks whether a recorded movement still matches the ledger.
type Status string

const (
	// StatusCompleted is a movement persisted with the state change it belongs to.
	StatusCompleted Status = "completed"
	// StatusUnsettled is a movement that happened although its operation
	// failed, and whose reversal has not succeeded yet.
	StatusUnsettled Status = "unsettled"
	// StatusSettled is a formerly unsettled movement that has been reversed.
	StatusSettled Status = "settled"
)

// Request describes one movement handed to a Transferer.
type Request struct {
	Direction Direction    `json:"direction"`
	Asset     string       `json:"asset"`
	Account   string       `json:"account"`
	Amount    types.Amount `json:"amount"`
	Custody   Custody      `json:"custody"`
	Reason    Reason       `json:"reason"`
}

// Reversed returns the request that undoes r.
func (r Request) Reversed() Request {
	out := r
	out.Direction = r.Direction.Reverse()
	out.Reason = ReasonCompensation
	return out
}

// Transferer moves assets between external accounts and custody. A non-nil
// error means the movement did not happen.
type Transferer interface {
	Pull(ctx context.Context, req Request) error
	Push(ctx context.Context, req Request) error
}

// Execute dispatches req to Pull or Push by direction.
func Execute(ctx context.Context, t Transferer, req Request) error {
	if req.Direction == DirectionPull {
		return t.Pull(ctx, req)
	}
	return t.Push(ctx, req)
}

// Nop is a Transferer that accepts every movement without doing anything.
// It suits deployments where the engine only books movements that an outer
// system performs.
type Nop struct{}

// Pull implements Transferer.
func (Nop) Pull(context.Context, Request) error { return nil }

// Push implements Transferer.
func (Nop) Push(context.Context, Request) error { return nil }

// Func adapts a single function to the Transferer interface.
type Func func(ctx context.Context, req Request) error

// Pull implements Transferer.
func (f Func) Pull(ctx context.Context, req Request) error { return f(ctx, req) }

// Push implements Transferer.
func (f Func) Push(ctx context.Context, req Request) error { return f(ctx, req) }

// ErrRejected may be returned by Transferer implementations that refuse a movement.
var ErrRejected = errors.New("transfer: rejected")

// Record is a movement the engine performed. Completed records are persisted
// together with the state change they belong to; unsettled ones are written
// on their own when that state change could not be saved.
type Record struct {
	ID          id.TransferID  `json:"id"`
	OperationID id.OperationID `json:"operation_id"`
	ScheduleID  id.ScheduleID  `json:"schedule_id,omitempty"`
	Request
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord creates a record for req.
func NewRecord(op id.OperationID, scheduleID id.ScheduleID, req Request, now time.Time) *Record {
	return &Record{
		ID:          id.NewTransferID(),
		OperationID: op,
		ScheduleID:  scheduleID,
		Request:     req,
		Status:      StatusCompleted,
		CreatedAt:   now.UTC(),
	}
}

// ListOpts configures transfer listing.
type ListOpts struct {
	Asset   string
	Account string
	Reason  Reason
	Status  Status
	Limit   int
	Offset  int
}

// Matches reports whether r satisfies the filter parts of opts.
func (o ListOpts) Matches(r *Record) bool {
	if o.Asset != "" && r.Asset != o.Asset {
		return false
	}
	if o.Account != "" && r.Account != o.Account {
		return false
	}
	if o.Reason != "" && r.Reason != o.Reason {
		return false
	}
	if o.Status != "" && r.Status != o.Status {
		return false
	}
	return true
}

// Store defines persistence operations for transfer records.
type Store interface {
	CreateTransfer(ctx context.Context, r *Record) error
	ListTransfers(ctx context.Context, opts ListOpts) ([]*Record, error)
}

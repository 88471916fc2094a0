// Package audithook bridges vesting lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/xraph/vesting/plugin"
	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnScheduleCreated    = (*Extension)(nil)
	_ plugin.OnScheduleClaimed    = (*Extension)(nil)
	_ plugin.OnScheduleExhausted  = (*Extension)(nil)
	_ plugin.OnScheduleCancelled  = (*Extension)(nil)
	_ plugin.OnPurchaseCompleted  = (*Extension)(nil)
	_ plugin.OnSwapCompleted      = (*Extension)(nil)
	_ plugin.OnAssetDeposited     = (*Extension)(nil)
	_ plugin.OnAssetWithdrawn     = (*Extension)(nil)
	_ plugin.OnSupplyInsufficient = (*Extension)(nil)
	_ plugin.OnTransferFailed     = (*Extension)(nil)
	_ plugin.OnConfigChanged      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges vesting lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  mapset.Set[string] // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Schedule lifecycle hooks
// ──────────────────────────────────────────────────

// OnScheduleCreated implements plugin.OnScheduleCreated.
func (e *Extension) OnScheduleCreated(ctx context.Context, s *schedule.Schedule) error {
	return e.record(ctx, ActionScheduleCreated, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryVesting, nil,
		"schedule_id", s.ID.String(),
		"asset", s.Asset,
		"origin", string(s.Origin),
		"total", s.TotalAmount.String(),
		"fixed", s.IsFixed,
		"cliff", s.CliffDuration.String(),
		"duration", s.VestingDuration.String(),
	)
}

// OnScheduleClaimed implements plugin.OnScheduleClaimed.
func (e *Extension) OnScheduleClaimed(ctx context.Context, s *schedule.Schedule, amount types.Amount) error {
	return e.record(ctx, ActionScheduleClaimed, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryVesting, nil,
		"asset", s.Asset,
		"amount", amount.String(),
		"claimed", s.ClaimedAmount.String(),
	)
}

// OnScheduleExhausted implements plugin.OnScheduleExhausted.
func (e *Extension) OnScheduleExhausted(ctx context.Context, s *schedule.Schedule) error {
	return e.record(ctx, ActionScheduleExhausted, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryVesting, nil,
		"asset", s.Asset,
		"total", s.TotalAmount.String(),
	)
}

// OnScheduleCancelled implements plugin.OnScheduleCancelled.
func (e *Extension) OnScheduleCancelled(ctx context.Context, s *schedule.Schedule, released types.Amount) error {
	return e.record(ctx, ActionScheduleCancelled, SeverityWarning, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryVesting, nil,
		"asset", s.Asset,
		"released", released.String(),
		"claimed", s.ClaimedAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Acquisition hooks
// ──────────────────────────────────────────────────

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (e *Extension) OnPurchaseCompleted(ctx context.Context, s *schedule.Schedule, q pricing.Quote) error {
	return e.record(ctx, ActionPurchaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryTreasury, nil,
		"payment_asset", q.PaymentAsset,
		"payment_amount", q.PaymentAmount.String(),
		"desired", q.Desired.String(),
		"vested", q.Vested.String(),
		"bonus", q.Bonus.String(),
	)
}

// OnSwapCompleted implements plugin.OnSwapCompleted.
func (e *Extension) OnSwapCompleted(ctx context.Context, s *schedule.Schedule, c swap.Conversion) error {
	return e.record(ctx, ActionSwapCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, scheduleRef(s), CategoryTreasury, nil,
		"swap_asset", c.SwapAsset,
		"swap_amount", c.SwapAmount.String(),
		"target_amount", c.TargetAmount.String(),
		"ratio", c.Ratio.String(),
		"custody", string(c.Custody),
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnAssetDeposited implements plugin.OnAssetDeposited.
func (e *Extension) OnAssetDeposited(ctx context.Context, asset, from string, amount types.Amount) error {
	return e.record(ctx, ActionAssetDeposited, SeverityInfo, OutcomeSuccess,
		ResourceAsset, asset, CategoryTreasury, nil,
		"from", from,
		"amount", amount.String(),
	)
}

// OnAssetWithdrawn implements plugin.OnAssetWithdrawn.
func (e *Extension) OnAssetWithdrawn(ctx context.Context, asset, to string, amount types.Amount) error {
	return e.record(ctx, ActionAssetWithdrawn, SeverityWarning, OutcomeSuccess,
		ResourceAsset, asset, CategoryTreasury, nil,
		"to", to,
		"amount", amount.String(),
	)
}

// OnSupplyInsufficient implements plugin.OnSupplyInsufficient.
func (e *Extension) OnSupplyInsufficient(ctx context.Context, asset string, requested, available types.Amount) error {
	return e.record(ctx, ActionSupplyInsufficient, SeverityWarning, OutcomeFailure,
		ResourceAsset, asset, CategoryTreasury, nil,
		"requested", requested.String(),
		"available", available.String(),
	)
}

// ──────────────────────────────────────────────────
// Collaborator and admin hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, req transfer.Request, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityError, OutcomeFailure,
		ResourceTransfer, req.Account, CategoryIntegration, err,
		"direction", string(req.Direction),
		"asset", req.Asset,
		"amount", req.Amount.String(),
		"reason", string(req.Reason),
	)
}

// OnConfigChanged implements plugin.OnConfigChanged.
func (e *Extension) OnConfigChanged(ctx context.Context, caller, setting string) error {
	return e.record(ctx, ActionConfigChanged, SeverityWarning, OutcomeSuccess,
		ResourceConfig, setting, CategoryAdmin, nil,
		"caller", caller,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func scheduleRef(s *schedule.Schedule) string {
	return s.Beneficiary + "/" + strconv.FormatUint(s.Index, 10)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled.Contains(action) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

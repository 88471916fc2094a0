// Package observability provides a metrics extension for the vesting engine
// that records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/vesting/plugin"
	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnScheduleCreated    = (*MetricsExtension)(nil)
	_ plugin.OnScheduleClaimed    = (*MetricsExtension)(nil)
	_ plugin.OnScheduleExhausted  = (*MetricsExtension)(nil)
	_ plugin.OnScheduleCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseCompleted  = (*MetricsExtension)(nil)
	_ plugin.OnSwapCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnAssetDeposited     = (*MetricsExtension)(nil)
	_ plugin.OnAssetWithdrawn     = (*MetricsExtension)(nil)
	_ plugin.OnSupplyInsufficient = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed     = (*MetricsExtension)(nil)
	_ plugin.OnConfigChanged      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track vesting activity.
type MetricsExtension struct {
	factory MetricFactory

	// Schedule metrics
	ScheduleGranted     Counter
	SchedulePurchased   Counter
	ScheduleSwapped     Counter
	ScheduleClaims      Counter
	ScheduleExhausted   Counter
	ScheduleCancelled   Counter
	ScheduleCliffWeeks  Histogram
	ScheduleVestedWeeks Histogram

	// Purchase and swap metrics
	PurchaseCompleted Counter
	PurchaseBonus     Counter
	SwapCompleted     Counter
	SwapLocked        Counter

	// Ledger metrics
	AssetDeposits      Counter
	AssetWithdrawals   Counter
	SupplyInsufficient Counter

	// Error and admin metrics
	TransferFailures Counter
	ConfigChanges    Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ScheduleGranted:     factory.Counter("vesting.schedule.granted"),
		SchedulePurchased:   factory.Counter("vesting.schedule.purchased"),
		ScheduleSwapped:     factory.Counter("vesting.schedule.swapped"),
		ScheduleClaims:      factory.Counter("vesting.schedule.claims"),
		ScheduleExhausted:   factory.Counter("vesting.schedule.exhausted"),
		ScheduleCancelled:   factory.Counter("vesting.schedule.cancelled"),
		ScheduleCliffWeeks:  factory.Histogram("vesting.schedule.cliff_weeks"),
		ScheduleVestedWeeks: factory.Histogram("vesting.schedule.vesting_weeks"),

		PurchaseCompleted: factory.Counter("vesting.purchase.completed"),
		PurchaseBonus:     factory.Counter("vesting.purchase.bonus_released"),
		SwapCompleted:     factory.Counter("vesting.swap.completed"),
		SwapLocked:        factory.Counter("vesting.swap.lockbox"),

		AssetDeposits:      factory.Counter("vesting.asset.deposits"),
		AssetWithdrawals:   factory.Counter("vesting.asset.withdrawals"),
		SupplyInsufficient: factory.Counter("vesting.asset.supply_insufficient"),

		TransferFailures: factory.Counter("vesting.transfer.failures"),
		ConfigChanges:    factory.Counter("vesting.config.changes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Schedule lifecycle hooks
// ──────────────────────────────────────────────────

// OnScheduleCreated implements plugin.OnScheduleCreated.
func (m *MetricsExtension) OnScheduleCreated(_ context.Context, s *schedule.Schedule) error {
	switch s.Origin {
	case schedule.OriginPurchase:
		m.SchedulePurchased.Inc()
	case schedule.OriginSwap:
		m.ScheduleSwapped.Inc()
	default:
		m.ScheduleGranted.Inc()
	}
	m.ScheduleCliffWeeks.Observe(float64(s.CliffDuration) / float64(schedule.Weeks(1)))
	m.ScheduleVestedWeeks.Observe(float64(s.VestingDuration) / float64(schedule.Weeks(1)))
	return nil
}

// OnScheduleClaimed implements plugin.OnScheduleClaimed.
func (m *MetricsExtension) OnScheduleClaimed(_ context.Context, _ *schedule.Schedule, _ types.Amount) error {
	m.ScheduleClaims.Inc()
	return nil
}

// OnScheduleExhausted implements plugin.OnScheduleExhausted.
func (m *MetricsExtension) OnScheduleExhausted(_ context.Context, _ *schedule.Schedule) error {
	m.ScheduleExhausted.Inc()
	return nil
}

// OnScheduleCancelled implements plugin.OnScheduleCancelled.
func (m *MetricsExtension) OnScheduleCancelled(_ context.Context, _ *schedule.Schedule, _ types.Amount) error {
	m.ScheduleCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Purchase and swap hooks
// ──────────────────────────────────────────────────

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (m *MetricsExtension) OnPurchaseCompleted(_ context.Context, _ *schedule.Schedule, q pricing.Quote) error {
	m.PurchaseCompleted.Inc()
	if !q.Bonus.IsZero() {
		m.PurchaseBonus.Inc()
	}
	return nil
}

// OnSwapCompleted implements plugin.OnSwapCompleted.
func (m *MetricsExtension) OnSwapCompleted(_ context.Context, _ *schedule.Schedule, c swap.Conversion) error {
	m.SwapCompleted.Inc()
	if c.Custody == transfer.CustodyLockbox {
		m.SwapLocked.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnAssetDeposited implements plugin.OnAssetDeposited.
func (m *MetricsExtension) OnAssetDeposited(_ context.Context, _, _ string, _ types.Amount) error {
	m.AssetDeposits.Inc()
	return nil
}

// OnAssetWithdrawn implements plugin.OnAssetWithdrawn.
func (m *MetricsExtension) OnAssetWithdrawn(_ context.Context, _, _ string, _ types.Amount) error {
	m.AssetWithdrawals.Inc()
	return nil
}

// OnSupplyInsufficient implements plugin.OnSupplyInsufficient.
func (m *MetricsExtension) OnSupplyInsufficient(_ context.Context, _ string, _, _ types.Amount) error {
	m.SupplyInsufficient.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Collaborator and admin hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ transfer.Request, _ error) error {
	m.TransferFailures.Inc()
	return nil
}

// OnConfigChanged implements plugin.OnConfigChanged.
func (m *MetricsExtension) OnConfigChanged(_ context.Context, _, _ string) error {
	m.ConfigChanges.Inc()
	return nil
}

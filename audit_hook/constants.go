package audithook

// Action constants for audit events.
const (
	// Schedule actions
	ActionScheduleCreated   = "schedule.created"
	ActionScheduleClaimed   = "schedule.claimed"
	ActionScheduleExhausted = "schedule.exhausted"
	ActionScheduleCancelled = "schedule.cancelled"

	// Acquisition actions
	ActionPurchaseCompleted = "purchase.completed"
	ActionSwapCompleted     = "swap.completed"

	// Ledger actions
	ActionAssetDeposited     = "asset.deposited"
	ActionAssetWithdrawn     = "asset.withdrawn"
	ActionSupplyInsufficient = "supply.insufficient"

	// Collaborator and admin actions
	ActionTransferFailed = "transfer.failed"
	ActionConfigChanged  = "config.changed"
)

// Resource constants for audit events.
const (
	ResourceSchedule = "schedule"
	ResourceAsset    = "asset"
	ResourceTransfer = "transfer"
	ResourceConfig   = "config"
)

// Category constants for audit events.
const (
	CategoryVesting     = "vesting"
	CategoryTreasury    = "treasury"
	CategoryIntegration = "integration"
	CategoryAdmin       = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionScheduleCreated,
		ActionScheduleClaimed,
		ActionScheduleExhausted,
		ActionScheduleCancelled,
		ActionPurchaseCompleted,
		ActionSwapCompleted,
		ActionAssetDeposited,
		ActionAssetWithdrawn,
		ActionSupplyInsufficient,
		ActionTransferFailed,
		ActionConfigChanged,
	}
}

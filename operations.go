package vesting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// ──────────────────────────────────────────────────
// Asset ledger operations
// ──────────────────────────────────────────────────

// RegisterAsset creates an empty ledger entry for an asset. Requires a
// privileged caller.
func (e *Engine) RegisterAsset(ctx context.Context, assetID string, decimals uint8) (bal *asset.Balance, err error) {
	ctx, end := e.span(ctx, "register_asset", attribute.String("asset", assetID))
	defer end(&err)

	if _, err = e.authorize(ctx, "register asset"); err != nil {
		return nil, err
	}
	if err = requireAccount("asset", assetID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(assetID))
	defer unlock()

	if _, err = e.store.GetBalance(ctx, assetID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetExists, assetID)
	} else if !errors.Is(err, ErrAssetNotFound) {
		return nil, err
	}

	bal, err = asset.NewBalance(assetID, decimals, e.clock())
	if err != nil {
		return nil, err
	}

	op := newOperation()
	op.changes.NewBalances = append(op.changes.NewBalances, bal)
	if err = e.commit(ctx, op, e.clock()); err != nil {
		return nil, err
	}

	e.logger.Debug("asset registered", "asset", assetID, "decimals", decimals)
	return bal.Clone(), nil
}

// Deposit pulls amount of a registered asset from an external account into
// custody, raising the ledger's held total.
func (e *Engine) Deposit(ctx context.Context, assetID, from string, amount types.Amount) (bal *asset.Balance, err error) {
	ctx, end := e.span(ctx, "deposit",
		attribute.String("asset", assetID),
		attribute.String("account", from),
		attribute.String("amount", amount.String()),
	)
	defer end(&err)

	if err = requireAccount("from", from); err != nil {
		return nil, err
	}
	if err = requirePositive("amount", amount); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(assetID))
	defer unlock()

	bal, err = e.stageBalance(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err = bal.Deposit(amount); err != nil {
		return nil, err
	}
	now := e.clock()
	bal.Touch(now)

	op := newOperation()
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)
	op.move(transfer.Request{
		Direction: transfer.DirectionPull,
		Asset:     assetID,
		Account:   from,
		Amount:    amount,
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonDeposit,
	}, id.Nil)
	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("asset deposited", "asset", assetID, "from", from, "amount", amount.String())
	e.plugins.EmitAssetDeposited(ctx, assetID, from, amount)
	return bal.Clone(), nil
}

// Withdraw pushes amount of the unlocked pool of an asset to an external
// account. Requires a privileged caller.
func (e *Engine) Withdraw(ctx context.Context, assetID, to string, amount types.Amount) (bal *asset.Balance, err error) {
	ctx, end := e.span(ctx, "withdraw",
		attribute.String("asset", assetID),
		attribute.String("account", to),
		attribute.String("amount", amount.String()),
	)
	defer end(&err)

	if _, err = e.authorize(ctx, "withdraw"); err != nil {
		return nil, err
	}
	if err = requireAccount("to", to); err != nil {
		return nil, err
	}
	if err = requirePositive("amount", amount); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(assetID))
	defer unlock()

	bal, err = e.stageBalance(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(bal.Available()) {
		e.plugins.EmitSupplyInsufficient(ctx, assetID, amount, bal.Available())
	}
	if err = bal.Withdraw(amount); err != nil {
		return nil, err
	}
	now := e.clock()
	bal.Touch(now)

	op := newOperation()
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)
	op.move(transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     assetID,
		Account:   to,
		Amount:    amount,
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonWithdrawal,
	}, id.Nil)
	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("asset withdrawn", "asset", assetID, "to", to, "amount", amount.String())
	e.plugins.EmitAssetWithdrawn(ctx, assetID, to, amount)
	return bal.Clone(), nil
}

// ──────────────────────────────────────────────────
// Schedule origination
// ──────────────────────────────────────────────────

// GrantRequest holds the parameters for Grant.
type GrantRequest struct {
	Beneficiary string
	Amount      types.Amount
	Params      schedule.Params
	Metadata    map[string]string
}

// Grant creates a schedule funded from the asset's unlocked pool. Requires a
// privileged caller.
func (e *Engine) Grant(ctx context.Context, req GrantRequest, now time.Time) (s *schedule.Schedule, err error) {
	ctx, end := e.span(ctx, "grant",
		attribute.String("asset", req.Params.Asset),
		attribute.String("beneficiary", req.Beneficiary),
		attribute.String("amount", req.Amount.String()),
	)
	defer end(&err)

	if _, err = e.authorize(ctx, "grant"); err != nil {
		return nil, err
	}

	cfg, err := e.activeConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.VestingActive {
		return nil, ErrVestingInactive
	}
	if err = requireAccount("beneficiary", req.Beneficiary); err != nil {
		return nil, err
	}
	if err = requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if err = schedule.ValidateParams(req.Params, now, cfg.StartTolerance, schedule.Bounds{}); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(req.Params.Asset), beneficiaryKey(req.Beneficiary))
	defer unlock()

	bal, err := e.stageBalance(ctx, req.Params.Asset)
	if err != nil {
		return nil, err
	}

	op := newOperation()
	s, err = e.stageSchedule(ctx, op, bal, req.Beneficiary, req.Amount, req.Params, schedule.OriginGrant, now)
	if err != nil {
		return nil, err
	}
	if len(req.Metadata) > 0 {
		s.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			s.Metadata[k] = v
		}
	}
	bal.Touch(now)
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)

	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("schedule created",
		"id", s.ID.String(),
		"origin", string(s.Origin),
		"beneficiary", s.Beneficiary,
		"index", s.Index,
		"asset", s.Asset,
		"amount", s.TotalAmount.String(),
	)
	e.plugins.EmitScheduleCreated(ctx, s.Clone())
	return s.Clone(), nil
}

// PurchaseRequest holds the parameters for Purchase.
type PurchaseRequest struct {
	// Purchaser pays and becomes the beneficiary. Defaults to the context caller.
	Purchaser     string
	PaymentAsset  string
	PaymentAmount types.Amount
	// Params.Asset is the asset being bought.
	Params schedule.Params
}

// PurchaseResult is the outcome of a purchase.
type PurchaseResult struct {
	Schedule *schedule.Schedule
	Quote    pricing.Quote
}

// Purchase sells a vesting schedule of the target asset for an approved
// payment asset at the configured price. Above the purchase threshold a
// bonus share is paid out immediately and the schedule covers the rest.
func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest, now time.Time) (res *PurchaseResult, err error) {
	if req.Purchaser == "" {
		req.Purchaser = CallerFrom(ctx)
	}
	target := req.Params.Asset

	ctx, end := e.span(ctx, "purchase",
		attribute.String("asset", target),
		attribute.String("payment_asset", req.PaymentAsset),
		attribute.String("beneficiary", req.Purchaser),
		attribute.String("amount", req.PaymentAmount.String()),
	)
	defer end(&err)

	cfg, err := e.activeConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.PurchaseActive {
		return nil, ErrPurchaseInactive
	}
	if err = requireAccount("purchaser", req.Purchaser); err != nil {
		return nil, err
	}
	if err = requirePositive("payment_amount", req.PaymentAmount); err != nil {
		return nil, err
	}
	if err = schedule.ValidateParams(req.Params, now, cfg.StartTolerance, cfg.PurchaseBounds); err != nil {
		return nil, err
	}
	if req.PaymentAsset == target {
		return nil, ValidationError{Field: "payment_asset", Message: "must differ from the purchased asset"}
	}
	entry, ok := cfg.Prices[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceNotSet, target)
	}
	paymentDecimals, ok := entry.Approved(req.PaymentAsset)
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnapprovedExchangeAsset, req.PaymentAsset, target)
	}

	unlock := e.locks.Lock(assetKey(target), assetKey(req.PaymentAsset), beneficiaryKey(req.Purchaser))
	defer unlock()

	bal, err := e.stageBalance(ctx, target)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.NewQuote(entry, target, bal.Decimals, req.PaymentAsset, req.PaymentAmount, cfg.bonus())
	if err != nil {
		return nil, err
	}

	// The whole desired amount must be covered before the bonus leaves custody.
	if quote.Desired.GreaterThan(bal.Available()) {
		e.plugins.EmitSupplyInsufficient(ctx, target, quote.Desired, bal.Available())
		return nil, fmt.Errorf("%w: %s requested %s, available %s",
			ErrInsufficientUnlockedSupply, target, quote.Desired, bal.Available())
	}

	op := newOperation()
	s, err := e.stageSchedule(ctx, op, bal, req.Purchaser, quote.Vested, req.Params, schedule.OriginPurchase, now)
	if err != nil {
		return nil, err
	}
	if !quote.Bonus.IsZero() {
		if err = bal.Withdraw(quote.Bonus); err != nil {
			return nil, err
		}
	}
	bal.Touch(now)
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)

	if err = e.stageProceeds(ctx, op, req.PaymentAsset, paymentDecimals, req.PaymentAmount, now); err != nil {
		return nil, err
	}

	op.move(transfer.Request{
		Direction: transfer.DirectionPull,
		Asset:     req.PaymentAsset,
		Account:   req.Purchaser,
		Amount:    req.PaymentAmount,
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonPurchase,
	}, s.ID)
	op.move(transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     target,
		Account:   req.Purchaser,
		Amount:    quote.Bonus,
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonBonus,
	}, s.ID)

	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("schedule purchased",
		"id", s.ID.String(),
		"beneficiary", s.Beneficiary,
		"index", s.Index,
		"asset", target,
		"payment_asset", req.PaymentAsset,
		"payment_amount", req.PaymentAmount.String(),
		"vested", quote.Vested.String(),
		"bonus", quote.Bonus.String(),
	)
	e.plugins.EmitScheduleCreated(ctx, s.Clone())
	e.plugins.EmitPurchaseCompleted(ctx, s.Clone(), quote)
	return &PurchaseResult{Schedule: s.Clone(), Quote: quote}, nil
}

// stageProceeds credits a purchase payment to the payment asset's ledger
// entry, creating the entry on first use.
func (e *Engine) stageProceeds(ctx context.Context, op *operation, paymentAsset string, decimals uint8, amount types.Amount, now time.Time) error {
	pay, err := e.stageBalance(ctx, paymentAsset)
	switch {
	case errors.Is(err, ErrAssetNotFound):
		pay, err = asset.NewBalance(paymentAsset, decimals, now)
		if err != nil {
			return err
		}
		if err = pay.Deposit(amount); err != nil {
			return err
		}
		op.changes.NewBalances = append(op.changes.NewBalances, pay)
		return nil
	case err != nil:
		return err
	}

	if err = pay.Deposit(amount); err != nil {
		return err
	}
	pay.Touch(now)
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, pay)
	return nil
}

// SwapRequest holds the parameters for Swap.
type SwapRequest struct {
	// Account supplies the swap asset. Defaults to the context caller.
	Account string
	// Beneficiary receives the schedule. Defaults to Account.
	Beneficiary string
	SwapAsset   string
	Amount      types.Amount
	// Params.Asset is the asset being vested.
	Params schedule.Params
}

// SwapResult is the outcome of a swap.
type SwapResult struct {
	Schedule   *schedule.Schedule
	Conversion swap.Conversion
}

// Swap converts an authorized asset into a vesting schedule at the
// configured ratio. The swap asset is pulled into the lockbox when lock mode
// is on and into the treasury otherwise.
func (e *Engine) Swap(ctx context.Context, req SwapRequest, now time.Time) (res *SwapResult, err error) {
	if req.Account == "" {
		req.Account = CallerFrom(ctx)
	}
	if req.Beneficiary == "" {
		req.Beneficiary = req.Account
	}
	target := req.Params.Asset

	ctx, end := e.span(ctx, "swap",
		attribute.String("asset", target),
		attribute.String("swap_asset", req.SwapAsset),
		attribute.String("beneficiary", req.Beneficiary),
		attribute.String("amount", req.Amount.String()),
	)
	defer end(&err)

	cfg, err := e.activeConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.SwapActive {
		return nil, ErrSwappingInactive
	}
	if err = requireAccount("account", req.Account); err != nil {
		return nil, err
	}
	if err = requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if err = schedule.ValidateParams(req.Params, now, cfg.StartTolerance, cfg.SwapBounds); err != nil {
		return nil, err
	}
	if req.SwapAsset == target {
		return nil, ValidationError{Field: "swap_asset", Message: "must differ from the vested asset"}
	}
	if _, ok := cfg.Swap.Authorized(req.SwapAsset); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedSwapAsset, req.SwapAsset)
	}

	unlock := e.locks.Lock(assetKey(target), beneficiaryKey(req.Beneficiary))
	defer unlock()

	bal, err := e.stageBalance(ctx, target)
	if err != nil {
		return nil, err
	}

	conv, err := cfg.Swap.Quote(req.SwapAsset, req.Amount, target, bal.Decimals)
	if err != nil {
		return nil, err
	}

	op := newOperation()
	s, err := e.stageSchedule(ctx, op, bal, req.Beneficiary, conv.TargetAmount, req.Params, schedule.OriginSwap, now)
	if err != nil {
		return nil, err
	}
	bal.Touch(now)
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)

	op.move(transfer.Request{
		Direction: transfer.DirectionPull,
		Asset:     req.SwapAsset,
		Account:   req.Account,
		Amount:    req.Amount,
		Custody:   conv.Custody,
		Reason:    transfer.ReasonSwap,
	}, s.ID)

	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("schedule swapped",
		"id", s.ID.String(),
		"beneficiary", s.Beneficiary,
		"index", s.Index,
		"asset", target,
		"swap_asset", req.SwapAsset,
		"swap_amount", req.Amount.String(),
		"amount", conv.TargetAmount.String(),
		"custody", string(conv.Custody),
	)
	e.plugins.EmitScheduleCreated(ctx, s.Clone())
	e.plugins.EmitSwapCompleted(ctx, s.Clone(), conv)
	return &SwapResult{Schedule: s.Clone(), Conversion: conv}, nil
}

// ──────────────────────────────────────────────────
// Schedule transitions
// ──────────────────────────────────────────────────

// ClaimResult is the outcome of a claim.
type ClaimResult struct {
	Schedule *schedule.Schedule
	// Amount is what was released by this call; zero for a no-op.
	Amount types.Amount
}

// Claim releases everything vested and not yet claimed to the schedule's
// beneficiary. Any caller may trigger it; funds always go to the beneficiary.
// Claiming twice at the same instant releases nothing the second time.
func (e *Engine) Claim(ctx context.Context, beneficiary string, index uint64, now time.Time) (res *ClaimResult, err error) {
	ctx, end := e.span(ctx, "claim",
		attribute.String("beneficiary", beneficiary),
		attribute.Int64("index", int64(index)),
	)
	defer end(&err)

	peek, err := e.lookupSchedule(ctx, beneficiary, index, ErrNotClaimable)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(peek.Asset), beneficiaryKey(beneficiary))
	defer unlock()

	s, err := e.lookupSchedule(ctx, beneficiary, index, ErrNotClaimable)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return &ClaimResult{Schedule: s, Amount: types.Zero()}, nil
	}

	amount, err := schedule.Claimable(s, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d until %s", err, beneficiary, index, s.CliffTime().Format(time.RFC3339))
	}
	if amount.IsZero() {
		return &ClaimResult{Schedule: s, Amount: amount}, nil
	}

	bal, err := e.stageBalance(ctx, s.Asset)
	if err != nil {
		return nil, err
	}
	if err = bal.Settle(amount); err != nil {
		return nil, err
	}
	bal.Touch(now)

	if s.ClaimedAmount, err = s.ClaimedAmount.Add(amount); err != nil {
		return nil, err
	}
	if s.ClaimedAmount.Equal(s.TotalAmount) {
		s.Status = schedule.StatusExhausted
	}
	s.Touch(now)

	op := newOperation()
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)
	op.changes.UpdatedSchedules = append(op.changes.UpdatedSchedules, s)
	op.move(transfer.Request{
		Direction: transfer.DirectionPush,
		Asset:     s.Asset,
		Account:   s.Beneficiary,
		Amount:    amount,
		Custody:   transfer.CustodyLedger,
		Reason:    transfer.ReasonClaim,
	}, s.ID)

	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("schedule claimed",
		"id", s.ID.String(),
		"beneficiary", s.Beneficiary,
		"index", s.Index,
		"amount", amount.String(),
		"claimed", s.ClaimedAmount.String(),
		"status", string(s.Status),
	)
	e.plugins.EmitScheduleClaimed(ctx, s.Clone(), amount)
	if s.Status == schedule.StatusExhausted {
		e.plugins.EmitScheduleExhausted(ctx, s.Clone())
	}
	return &ClaimResult{Schedule: s.Clone(), Amount: amount}, nil
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Schedule *schedule.Schedule
	// Released is the unclaimed remainder returned to the unlocked pool.
	Released types.Amount
}

// Cancel revokes a non-fixed active schedule. The unclaimed remainder goes
// back to the asset's unlocked pool, not to the beneficiary. Requires a
// privileged caller.
func (e *Engine) Cancel(ctx context.Context, beneficiary string, index uint64, now time.Time) (res *CancelResult, err error) {
	ctx, end := e.span(ctx, "cancel",
		attribute.String("beneficiary", beneficiary),
		attribute.Int64("index", int64(index)),
	)
	defer end(&err)

	if _, err = e.authorize(ctx, "cancel"); err != nil {
		return nil, err
	}

	peek, err := e.lookupSchedule(ctx, beneficiary, index, ErrScheduleNotFound)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(assetKey(peek.Asset), beneficiaryKey(beneficiary))
	defer unlock()

	s, err := e.lookupSchedule(ctx, beneficiary, index, ErrScheduleNotFound)
	if err != nil {
		return nil, err
	}
	if s.IsFixed {
		return nil, fmt.Errorf("%w: %s/%d", ErrFixedScheduleNotCancellable, beneficiary, index)
	}
	if s.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s/%d is %s", ErrScheduleNotActive, beneficiary, index, s.Status)
	}

	remainder := s.Remaining()

	bal, err := e.stageBalance(ctx, s.Asset)
	if err != nil {
		return nil, err
	}
	if err = bal.Release(remainder); err != nil {
		return nil, err
	}
	bal.Touch(now)

	at := now.UTC()
	s.Status = schedule.StatusCancelled
	s.ReleasedAmount = remainder
	s.CancelledAt = &at
	s.Touch(now)

	op := newOperation()
	op.changes.UpdatedBalances = append(op.changes.UpdatedBalances, bal)
	op.changes.UpdatedSchedules = append(op.changes.UpdatedSchedules, s)
	if err = e.commit(ctx, op, now); err != nil {
		return nil, err
	}

	e.logger.Debug("schedule cancelled",
		"id", s.ID.String(),
		"beneficiary", s.Beneficiary,
		"index", s.Index,
		"released", remainder.String(),
	)
	e.plugins.EmitScheduleCancelled(ctx, s.Clone(), remainder)
	return &CancelResult{Schedule: s.Clone(), Released: remainder}, nil
}

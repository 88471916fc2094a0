package vesting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/vesting/asset"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/plugin"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// TracerName is the instrumentation name used for engine spans.
const TracerName = "github.com/xraph/vesting"

// Engine is the vesting schedule engine. It validates requests against the
// configuration, mutates the asset ledger and schedules, and hands asset
// movements to the transfer collaborator.
//
// Mutating operations are serialized per asset and per beneficiary, so the
// engine is safe for concurrent use.
type Engine struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
	transferer transfer.Transferer
	authorizer Authorizer
	clock      func() time.Time

	cfgMu  sync.RWMutex
	cfg    Config
	cfgErr error

	locks     *lockSet
	unsettled *unsettledSet
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		tracer:     otel.Tracer(TracerName),
		transferer: transfer.Nop{},
		authorizer: DenyAll,
		clock:      time.Now,
		cfg:        DefaultConfig(),
		locks:      newLockSet(),
		unsettled:  newUnsettledSet(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithTracer sets the OpenTelemetry tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithTransferer sets the collaborator that moves assets.
func WithTransferer(t transfer.Transferer) Option {
	return func(e *Engine) { e.transferer = t }
}

// WithAuthorizer sets the access-control collaborator.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) { e.authorizer = a }
}

// WithConfig sets the initial configuration. An invalid configuration makes
// Start and every configuration-driven operation fail until it is replaced.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.Clone()
		e.cfgErr = cfg.Validate()
	}
}

// WithClock sets the time source used for record timestamps of operations
// that take no explicit time. Vesting arithmetic always uses the time passed
// to the operation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// Start validates the configuration, migrates the store, picks up unsettled
// transfers and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if _, err := e.activeConfig(); err != nil {
		return err
	}

	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if err := e.loadUnsettled(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	cfg := e.Config()
	e.logger.Info("vesting engine started",
		"vesting_active", cfg.VestingActive,
		"purchase_active", cfg.PurchaseActive,
		"swap_active", cfg.SwapActive,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.Clone()
}

// activeConfig returns a copy of the configuration, or the reason it was
// rejected.
func (e *Engine) activeConfig() (Config, error) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	if e.cfgErr != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", e.cfgErr)
	}
	return e.cfg.Clone(), nil
}

// ──────────────────────────────────────────────────
// Operation plumbing
// ──────────────────────────────────────────────────

// operation accumulates the staged writes and asset movements of one call.
type operation struct {
	id        id.OperationID
	changes   store.Changeset
	transfers []plannedTransfer
}

type plannedTransfer struct {
	req        transfer.Request
	scheduleID id.ScheduleID
}

func newOperation() *operation {
	return &operation{id: id.NewOperationID()}
}

func (op *operation) move(req transfer.Request, scheduleID id.ScheduleID) {
	if req.Amount.IsZero() {
		return
	}
	op.transfers = append(op.transfers, plannedTransfer{req: req, scheduleID: scheduleID})
}

// commit runs the planned movements in order and then persists the staged
// writes together with a record of each movement. If a movement or the
// write fails, movements already performed are reversed and nothing is
// persisted. A movement whose reversal fails is kept as unsettled.
func (e *Engine) commit(ctx context.Context, op *operation, now time.Time) error {
	done := make([]*transfer.Record, 0, len(op.transfers))

	for _, pt := range op.transfers {
		if err := transfer.Execute(ctx, e.transferer, pt.req); err != nil {
			e.logger.Warn("transfer failed",
				"operation", op.id.String(),
				"direction", string(pt.req.Direction),
				"asset", pt.req.Asset,
				"account", pt.req.Account,
				"amount", pt.req.Amount.String(),
				"error", err,
			)
			e.plugins.EmitTransferFailed(ctx, pt.req, err)
			return e.abort(ctx, op, done,
				fmt.Errorf("%w: %s %s %s: %w", ErrTransferFailed, pt.req.Direction, pt.req.Amount, pt.req.Asset, err))
		}
		done = append(done, transfer.NewRecord(op.id, pt.scheduleID, pt.req, now))
	}
	op.changes.Transfers = append(op.changes.Transfers, done...)

	if err := e.store.Commit(ctx, &op.changes); err != nil {
		e.logger.Error("commit failed",
			"operation", op.id.String(),
			"transfers", len(done),
			"error", err,
		)
		return e.abort(ctx, op, done, fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	return nil
}

// abort reverses the completed movements of a failed operation and returns
// cause, noting any movement left unsettled.
func (e *Engine) abort(ctx context.Context, op *operation, done []*transfer.Record, cause error) error {
	stranded := e.compensate(ctx, op.id, done)
	if len(stranded) == 0 {
		return cause
	}
	e.strand(ctx, stranded)
	return fmt.Errorf("%w; %d movements left unsettled: %w", cause, len(stranded), ErrUnsettledTransfers)
}

// compensate reverses completed movements, newest first, and returns the
// ones it could not reverse.
func (e *Engine) compensate(ctx context.Context, opID id.OperationID, done []*transfer.Record) []*transfer.Record {
	var (
		errs     MultiError
		stranded []*transfer.Record
	)
	for i := len(done) - 1; i >= 0; i-- {
		rev := done[i].Request.Reversed()
		if err := transfer.Execute(ctx, e.transferer, rev); err != nil {
			errs.Add(fmt.Errorf("reverse %s %s %s: %w", done[i].Direction, done[i].Amount, done[i].Asset, err))
			e.plugins.EmitTransferFailed(ctx, rev, err)
			stranded = append(stranded, done[i])
		}
	}
	if errs.HasErrors() {
		e.logger.Error("transfer compensation incomplete",
			"operation", opID.String(),
			"error", errs,
		)
	}
	return stranded
}

// authorize fails with ErrUnauthorized unless the context caller is privileged.
func (e *Engine) authorize(ctx context.Context, action string) (string, error) {
	caller := CallerFrom(ctx)
	if !e.authorizer.IsPrivileged(ctx, caller) {
		return caller, fmt.Errorf("%w: %s by %q", ErrUnauthorized, action, caller)
	}
	return caller, nil
}

// stageBalance loads a copy of an asset's ledger entry for modification.
// It first settles the asset's unsettled movements and fails while any
// remain.
func (e *Engine) stageBalance(ctx context.Context, assetID string) (*asset.Balance, error) {
	if err := e.settleAsset(ctx, assetID); err != nil {
		return nil, err
	}
	b, err := e.store.GetBalance(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// stageSchedule reserves total from bal and stages a new schedule for it.
func (e *Engine) stageSchedule(ctx context.Context, op *operation, bal *asset.Balance, beneficiary string, total types.Amount, p schedule.Params, origin schedule.Origin, now time.Time) (*schedule.Schedule, error) {
	if err := e.reserve(ctx, bal, total); err != nil {
		return nil, err
	}

	idx, err := e.store.NextScheduleIndex(ctx, beneficiary)
	if err != nil {
		return nil, err
	}

	s := schedule.New(beneficiary, idx, total, p, origin, now)
	op.changes.NewSchedules = append(op.changes.NewSchedules, s)
	return s, nil
}

func (e *Engine) reserve(ctx context.Context, bal *asset.Balance, amount types.Amount) error {
	if amount.GreaterThan(bal.Available()) {
		e.plugins.EmitSupplyInsufficient(ctx, bal.Asset, amount, bal.Available())
	}
	return bal.Reserve(amount)
}

// lookupSchedule loads a schedule and maps a missing one to notFound.
func (e *Engine) lookupSchedule(ctx context.Context, beneficiary string, index uint64, notFound error) (*schedule.Schedule, error) {
	s, err := e.store.GetSchedule(ctx, beneficiary, index)
	if errors.Is(err, ErrScheduleNotFound) {
		return nil, fmt.Errorf("%w: %s/%d", notFound, beneficiary, index)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// span starts a tracing span and returns a function that ends it, recording
// the error the operation returned.
func (e *Engine) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, sp := e.tracer.Start(ctx, "vesting."+name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			sp.RecordError(*errp)
			sp.SetStatus(codes.Error, (*errp).Error())
		}
		sp.End()
	}
}

func requirePositive(field string, a types.Amount) error {
	if a.IsZero() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, field)
	}
	return nil
}

func requireAccount(field, account string) error {
	if account == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// DefaultTimeout bounds how long a single hook may run.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onScheduleCreated    []OnScheduleCreated
	onScheduleClaimed    []OnScheduleClaimed
	onScheduleExhausted  []OnScheduleExhausted
	onScheduleCancelled  []OnScheduleCancelled
	onPurchaseCompleted  []OnPurchaseCompleted
	onSwapCompleted      []OnSwapCompleted
	onAssetDeposited     []OnAssetDeposited
	onAssetWithdrawn     []OnAssetWithdrawn
	onSupplyInsufficient []OnSupplyInsufficient
	onTransferFailed     []OnTransferFailed
	onConfigChanged      []OnConfigChanged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnScheduleCreated); ok {
		r.onScheduleCreated = append(r.onScheduleCreated, v)
	}
	if v, ok := p.(OnScheduleClaimed); ok {
		r.onScheduleClaimed = append(r.onScheduleClaimed, v)
	}
	if v, ok := p.(OnScheduleExhausted); ok {
		r.onScheduleExhausted = append(r.onScheduleExhausted, v)
	}
	if v, ok := p.(OnScheduleCancelled); ok {
		r.onScheduleCancelled = append(r.onScheduleCancelled, v)
	}
	if v, ok := p.(OnPurchaseCompleted); ok {
		r.onPurchaseCompleted = append(r.onPurchaseCompleted, v)
	}
	if v, ok := p.(OnSwapCompleted); ok {
		r.onSwapCompleted = append(r.onSwapCompleted, v)
	}
	if v, ok := p.(OnAssetDeposited); ok {
		r.onAssetDeposited = append(r.onAssetDeposited, v)
	}
	if v, ok := p.(OnAssetWithdrawn); ok {
		r.onAssetWithdrawn = append(r.onAssetWithdrawn, v)
	}
	if v, ok := p.(OnSupplyInsufficient); ok {
		r.onSupplyInsufficient = append(r.onSupplyInsufficient, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnConfigChanged); ok {
		r.onConfigChanged = append(r.onConfigChanged, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnScheduleCreated", reflect.TypeOf((*OnScheduleCreated)(nil)).Elem()},
	{"OnScheduleClaimed", reflect.TypeOf((*OnScheduleClaimed)(nil)).Elem()},
	{"OnScheduleExhausted", reflect.TypeOf((*OnScheduleExhausted)(nil)).Elem()},
	{"OnScheduleCancelled", reflect.TypeOf((*OnScheduleCancelled)(nil)).Elem()},
	{"OnPurchaseCompleted", reflect.TypeOf((*OnPurchaseCompleted)(nil)).Elem()},
	{"OnSwapCompleted", reflect.TypeOf((*OnSwapCompleted)(nil)).Elem()},
	{"OnAssetDeposited", reflect.TypeOf((*OnAssetDeposited)(nil)).Elem()},
	{"OnAssetWithdrawn", reflect.TypeOf((*OnAssetWithdrawn)(nil)).Elem()},
	{"OnSupplyInsufficient", reflect.TypeOf((*OnSupplyInsufficient)(nil)).Elem()},
	{"OnTransferFailed", reflect.TypeOf((*OnTransferFailed)(nil)).Elem()},
	{"OnConfigChanged", reflect.TypeOf((*OnConfigChanged)(nil)).Elem()},
}

// implementedInterfaces returns the hook interfaces implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs fn for every plugin in hooks, logging failures under hook.
func emit[T Plugin](ctx context.Context, r *Registry, hooks func(*Registry) []T, hook string, fn func(T) error) {
	r.mu.RLock()
	plugins := hooks(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, func(r *Registry) []OnInit { return r.onInit }, "OnInit",
		func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, func(r *Registry) []OnShutdown { return r.onShutdown }, "OnShutdown",
		func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitScheduleCreated emits a schedule created event.
func (r *Registry) EmitScheduleCreated(ctx context.Context, s *schedule.Schedule) {
	emit(ctx, r, func(r *Registry) []OnScheduleCreated { return r.onScheduleCreated }, "OnScheduleCreated",
		func(p OnScheduleCreated) error { return p.OnScheduleCreated(ctx, s) })
}

// EmitScheduleClaimed emits a schedule claimed event.
func (r *Registry) EmitScheduleClaimed(ctx context.Context, s *schedule.Schedule, amount types.Amount) {
	emit(ctx, r, func(r *Registry) []OnScheduleClaimed { return r.onScheduleClaimed }, "OnScheduleClaimed",
		func(p OnScheduleClaimed) error { return p.OnScheduleClaimed(ctx, s, amount) })
}

// EmitScheduleExhausted emits a schedule exhausted event.
func (r *Registry) EmitScheduleExhausted(ctx context.Context, s *schedule.Schedule) {
	emit(ctx, r, func(r *Registry) []OnScheduleExhausted { return r.onScheduleExhausted }, "OnScheduleExhausted",
		func(p OnScheduleExhausted) error { return p.OnScheduleExhausted(ctx, s) })
}

// EmitScheduleCancelled emits a schedule cancelled event.
func (r *Registry) EmitScheduleCancelled(ctx context.Context, s *schedule.Schedule, released types.Amount) {
	emit(ctx, r, func(r *Registry) []OnScheduleCancelled { return r.onScheduleCancelled }, "OnScheduleCancelled",
		func(p OnScheduleCancelled) error { return p.OnScheduleCancelled(ctx, s, released) })
}

// EmitPurchaseCompleted emits a purchase completed event.
func (r *Registry) EmitPurchaseCompleted(ctx context.Context, s *schedule.Schedule, q pricing.Quote) {
	emit(ctx, r, func(r *Registry) []OnPurchaseCompleted { return r.onPurchaseCompleted }, "OnPurchaseCompleted",
		func(p OnPurchaseCompleted) error { return p.OnPurchaseCompleted(ctx, s, q) })
}

// EmitSwapCompleted emits a swap completed event.
func (r *Registry) EmitSwapCompleted(ctx context.Context, s *schedule.Schedule, c swap.Conversion) {
	emit(ctx, r, func(r *Registry) []OnSwapCompleted { return r.onSwapCompleted }, "OnSwapCompleted",
		func(p OnSwapCompleted) error { return p.OnSwapCompleted(ctx, s, c) })
}

// EmitAssetDeposited emits an asset deposited event.
func (r *Registry) EmitAssetDeposited(ctx context.Context, asset, from string, amount types.Amount) {
	emit(ctx, r, func(r *Registry) []OnAssetDeposited { return r.onAssetDeposited }, "OnAssetDeposited",
		func(p OnAssetDeposited) error { return p.OnAssetDeposited(ctx, asset, from, amount) })
}

// EmitAssetWithdrawn emits an asset withdrawn event.
func (r *Registry) EmitAssetWithdrawn(ctx context.Context, asset, to string, amount types.Amount) {
	emit(ctx, r, func(r *Registry) []OnAssetWithdrawn { return r.onAssetWithdrawn }, "OnAssetWithdrawn",
		func(p OnAssetWithdrawn) error { return p.OnAssetWithdrawn(ctx, asset, to, amount) })
}

// EmitSupplyInsufficient emits an insufficient supply event.
func (r *Registry) EmitSupplyInsufficient(ctx context.Context, asset string, requested, available types.Amount) {
	emit(ctx, r, func(r *Registry) []OnSupplyInsufficient { return r.onSupplyInsufficient }, "OnSupplyInsufficient",
		func(p OnSupplyInsufficient) error { return p.OnSupplyInsufficient(ctx, asset, requested, available) })
}

// EmitTransferFailed emits a transfer failed event.
func (r *Registry) EmitTransferFailed(ctx context.Context, req transfer.Request, cause error) {
	emit(ctx, r, func(r *Registry) []OnTransferFailed { return r.onTransferFailed }, "OnTransferFailed",
		func(p OnTransferFailed) error { return p.OnTransferFailed(ctx, req, cause) })
}

// EmitConfigChanged emits a configuration changed event.
func (r *Registry) EmitConfigChanged(ctx context.Context, caller, setting string) {
	emit(ctx, r, func(r *Registry) []OnConfigChanged { return r.onConfigChanged }, "OnConfigChanged",
		func(p OnConfigChanged) error { return p.OnConfigChanged(ctx, caller, setting) })
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the vesting pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

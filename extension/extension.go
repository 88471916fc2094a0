// Package extension provides the Forge extension adapter for the vesting engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.vesting" or "vesting" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "vesting"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Token vesting schedules with a custody ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the vesting engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	configSet  bool
	engine     *vesting.Engine
	store      store.Store
	engineOpts []vesting.Option
}

// New creates a new vesting Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *vesting.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the vesting engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = vesting.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*vesting.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension]. The engine validates its
// configuration even when migrations are disabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("vesting: extension not initialized")
	}

	if e.config.DisableMigrate {
		if err := e.engine.Config().Validate(); err != nil {
			return err
		}
	} else if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("vesting: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs vesting.Option values from the resolved config.
// Pass-through options come last so they win over config-derived ones.
func (e *Extension) buildEngineOpts() []vesting.Option {
	opts := make([]vesting.Option, 0, len(e.engineOpts)+2)

	opts = append(opts, vesting.WithConfig(e.config.Config))
	if len(e.config.Admins) > 0 {
		opts = append(opts, vesting.WithAuthorizer(vesting.NewAdminSet(e.config.Admins...)))
	}

	return append(opts, e.engineOpts...)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("vesting: configuration is required but not found in config files; " +
				"ensure 'extensions.vesting' or 'vesting' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("vesting: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("admins", len(e.config.Admins)),
		forge.F("vesting_active", e.config.VestingActive),
		forge.F("purchase_active", e.config.PurchaseActive),
		forge.F("swap_active", e.config.SwapActive),
		forge.F("start_tolerance", e.config.StartTolerance),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files. Keys absent
// from the file keep their defaults.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.vesting", "vesting"} {
		if !cm.IsSet(key) {
			continue
		}
		cfg := DefaultConfig()
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("vesting: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("vesting: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults returns the defaults unless a full configuration was set
// programmatically. Extension flags always carry over.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	if e.configSet {
		return cfg
	}
	out := DefaultConfig()
	out.DisableMigrate = cfg.DisableMigrate
	out.Admins = cfg.Admins
	out.RequireConfig = cfg.RequireConfig
	return out
}

// mergeConfigurations merges file config with programmatic options. The file
// owns the engine settings; programmatic flags and admins are added on top.
func (e *Extension) mergeConfigurations(fileConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		fileConfig.DisableMigrate = true
	}
	fileConfig.Admins = append(fileConfig.Admins, programmaticConfig.Admins...)
	fileConfig.RequireConfig = programmaticConfig.RequireConfig
	return fileConfig
}

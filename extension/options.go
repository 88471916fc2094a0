package extension

import (
	"github.com/xraph/vesting"
	"github.com/xraph/vesting/plugin"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
)

// Option configures the vesting Forge extension.
type Option func(*Extension)

// WithStore sets the store for the vesting engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a vesting.Option through to the underlying engine.
func WithEngineOption(opt vesting.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a vesting plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, vesting.WithPlugin(p))
	}
}

// WithTransferer sets the collaborator that moves assets.
func WithTransferer(t transfer.Transferer) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, vesting.WithTransferer(t))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) {
		e.config = cfg
		e.configSet = true
	}
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithAdmins grants privileged access to the given callers.
func WithAdmins(callers ...string) Option {
	return func(e *Extension) { e.config.Admins = append(e.config.Admins, callers...) }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

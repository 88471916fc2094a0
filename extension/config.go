package extension

import "github.com/xraph/vesting"

// Config holds the vesting extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.vesting" or "vesting" keys).
// The engine settings are embedded, so a file lists them at the same level
// as the extension flags.
type Config struct {
	vesting.Config `json:",inline" mapstructure:",squash" yaml:",inline"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admins are the callers granted privileged access. When empty the
	// engine keeps its default authorizer, which denies every caller, unless
	// one was passed with WithEngineOption.
	Admins []string `json:"admins" mapstructure:"admins" yaml:"admins"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Config: vesting.DefaultConfig()}
}

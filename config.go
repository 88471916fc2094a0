package vesting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/types"
)

// DefaultStartTolerance is how far a schedule start time may drift from now.
const DefaultStartTolerance = 10 * time.Minute

// Config holds the administrative state read by every engine operation.
// Mutate it at runtime only through the engine's privileged setters.
type Config struct {
	// VestingActive gates grants.
	VestingActive bool `json:"vesting_active" yaml:"vesting_active" toml:"vesting_active" mapstructure:"vesting_active"`
	// PurchaseActive gates purchases.
	PurchaseActive bool `json:"purchase_active" yaml:"purchase_active" toml:"purchase_active" mapstructure:"purchase_active"`
	// SwapActive gates swaps.
	SwapActive bool `json:"swap_active" yaml:"swap_active" toml:"swap_active" mapstructure:"swap_active"`

	StartTolerance time.Duration `json:"start_tolerance" yaml:"start_tolerance" toml:"start_tolerance" mapstructure:"start_tolerance"`

	// PurchaseThreshold is the desired amount (target base units) from which
	// ReleasePercentage of a purchase is released immediately.
	PurchaseThreshold types.Amount `json:"purchase_threshold" yaml:"purchase_threshold" toml:"purchase_threshold" mapstructure:"purchase_threshold"`
	ReleasePercentage uint8        `json:"release_percentage" yaml:"release_percentage" toml:"release_percentage" mapstructure:"release_percentage"`

	// Prices is keyed by target asset.
	Prices map[string]pricing.PriceEntry `json:"prices" yaml:"prices" toml:"prices" mapstructure:"prices"`
	Swap   swap.Config                   `json:"swap" yaml:"swap" toml:"swap" mapstructure:"swap"`

	PurchaseBounds schedule.Bounds `json:"purchase_bounds" yaml:"purchase_bounds" toml:"purchase_bounds" mapstructure:"purchase_bounds"`
	SwapBounds     schedule.Bounds `json:"swap_bounds" yaml:"swap_bounds" toml:"swap_bounds" mapstructure:"swap_bounds"`
}

// DefaultConfig returns the default engine configuration: grants and
// purchases enabled, swaps disabled until a ratio and assets are configured.
func DefaultConfig() Config {
	return Config{
		VestingActive:  true,
		PurchaseActive: true,
		SwapActive:     false,
		StartTolerance: DefaultStartTolerance,
		Prices:         map[string]pricing.PriceEntry{},
		Swap: swap.Config{
			Ratio:            swap.Ratio{Numerator: 1, Denominator: 1},
			AuthorizedAssets: map[string]uint8{},
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.StartTolerance < 0 {
		return ValidationError{Field: "start_tolerance", Message: "must not be negative"}
	}
	if c.ReleasePercentage >= 100 {
		return ValidationError{Field: "release_percentage", Message: "must be below 100"}
	}
	if err := c.Swap.Ratio.Validate(); err != nil {
		return ValidationError{Field: "swap.ratio", Message: err.Error()}
	}
	for asset, p := range c.Prices {
		if p.Price == 0 {
			return ValidationError{Field: "prices." + asset, Message: "price must be positive"}
		}
		for payment, d := range p.PaymentAssets {
			if d > types.MaxDecimals {
				return ValidationError{Field: "prices." + asset + "." + payment, Message: "decimals out of range"}
			}
		}
	}
	for a, d := range c.Swap.AuthorizedAssets {
		if d > types.MaxDecimals {
			return ValidationError{Field: "swap.authorized_assets." + a, Message: "decimals out of range"}
		}
	}
	for name, b := range map[string]schedule.Bounds{"purchase_bounds": c.PurchaseBounds, "swap_bounds": c.SwapBounds} {
		if b.MaxCliff > 0 && b.MinCliff > b.MaxCliff {
			return ValidationError{Field: name, Message: "min_cliff exceeds max_cliff"}
		}
		if b.MaxVesting > 0 && b.MinVesting > b.MaxVesting {
			return ValidationError{Field: name, Message: "min_vesting exceeds max_vesting"}
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	out.Prices = make(map[string]pricing.PriceEntry, len(c.Prices))
	for k, v := range c.Prices {
		out.Prices[k] = v.Clone()
	}
	out.Swap = c.Swap.Clone()
	return out
}

func (c Config) bonus() pricing.Bonus {
	return pricing.Bonus{Threshold: c.PurchaseThreshold, ReleasePercentage: c.ReleasePercentage}
}

// LoadConfig reads a configuration file and merges it over DefaultConfig.
// The format is chosen by extension: .yaml/.yml, .toml or .json.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("vesting: read config: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("vesting: unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("vesting: parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Package swap converts authorized swap assets into vesting assets at a
// configured ratio and decides where the swapped-in asset is sent.
package swap

import (
	"errors"
	"fmt"

	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

// Errors produced by swap conversion.
var (
	ErrUnauthorizedAsset = errors.New("vesting: unauthorized swap asset")
	ErrInvalidRatio      = errors.New("vesting: invalid swap ratio")
	ErrZeroOutput        = errors.New("vesting: swap converts to zero")
)

// Ratio is the number of target units received per Denominator swap units,
// scaled by Numerator.
type Ratio struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator" toml:"numerator" mapstructure:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator" toml:"denominator" mapstructure:"denominator"`
}

// Validate checks that the ratio can be applied.
func (r Ratio) Validate() error {
	if r.Numerator == 0 || r.Denominator == 0 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRatio, r.Numerator, r.Denominator)
	}
	return nil
}

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator) }

// Config is the swap module state.
type Config struct {
	Ratio Ratio `json:"ratio" yaml:"ratio" toml:"ratio" mapstructure:"ratio"`
	// AuthorizedAssets maps each swappable asset to its decimal exponent.
	AuthorizedAssets map[string]uint8 `json:"authorized_assets" yaml:"authorized_assets" toml:"authorized_assets" mapstructure:"authorized_assets"`
	// LockMode routes swapped-in assets to the lockbox collaborator instead
	// of the treasury.
	LockMode bool `json:"lock_mode" yaml:"lock_mode" toml:"lock_mode" mapstructure:"lock_mode"`
}

// Authorized reports whether asset may be swapped, and its decimals.
func (c Config) Authorized(asset string) (uint8, bool) {
	d, ok := c.AuthorizedAssets[asset]
	return d, ok
}

// Custody returns where swapped-in assets go.
func (c Config) Custody() transfer.Custody {
	if c.LockMode {
		return transfer.CustodyLockbox
	}
	return transfer.CustodyTreasury
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c
	out.AuthorizedAssets = make(map[string]uint8, len(c.AuthorizedAssets))
	for k, v := range c.AuthorizedAssets {
		out.AuthorizedAssets[k] = v
	}
	return out
}

// Convert returns the target base units for amount swap base units:
//
//	floor(amount * Numerator * 10^targetDecimals / (Denominator * 10^swapDecimals))
func Convert(amount types.Amount, r Ratio, swapDecimals, targetDecimals uint8) (types.Amount, error) {
	if err := r.Validate(); err != nil {
		return types.Zero(), err
	}
	scale, err := types.Pow10(targetDecimals)
	if err != nil {
		return types.Zero(), err
	}
	num, err := scale.Mul(types.NewAmount(r.Numerator))
	if err != nil {
		return types.Zero(), err
	}
	scale, err = types.Pow10(swapDecimals)
	if err != nil {
		return types.Zero(), err
	}
	den, err := scale.Mul(types.NewAmount(r.Denominator))
	if err != nil {
		return types.Zero(), err
	}
	return amount.MulDiv(num, den)
}

// Conversion is the outcome of pricing a swap.
type Conversion struct {
	SwapAsset    string           `json:"swap_asset"`
	SwapAmount   types.Amount     `json:"swap_amount"`
	TargetAsset  string           `json:"target_asset"`
	TargetAmount types.Amount     `json:"target_amount"`
	Ratio        Ratio            `json:"ratio"`
	Custody      transfer.Custody `json:"custody"`
}

// Quote prices swapping amount of swapAsset into target.
func (c Config) Quote(swapAsset string, amount types.Amount, target string, targetDecimals uint8) (Conversion, error) {
	swapDecimals, ok := c.Authorized(swapAsset)
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %s", ErrUnauthorizedAsset, swapAsset)
	}
	out, err := Convert(amount, c.Ratio, swapDecimals, targetDecimals)
	if err != nil {
		return Conversion{}, err
	}
	if out.IsZero() {
		return Conversion{}, fmt.Errorf("%w: %s %s", ErrZeroOutput, amount, swapAsset)
	}
	return Conversion{
		SwapAsset:    swapAsset,
		SwapAmount:   amount,
		TargetAsset:  target,
		TargetAmount: out,
		Ratio:        c.Ratio,
		Custody:      c.Custody(),
	}, nil
}

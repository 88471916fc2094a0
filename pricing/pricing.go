// Package pricing converts purchase payments into target-asset quantities and
// splits off the immediate bonus for large purchases.
package pricing

import (
	"errors"
	"fmt"

	"github.com/xraph/vesting/types"
)

// PriceScale is the fixed-point scale of PriceEntry.Price: a price of 12
// payment units per target unit is stored as 120000.
const PriceScale = 10_000

// Errors produced by price conversion.
var (
	ErrUnapprovedAsset = errors.New("vesting: unapproved exchange asset")
	ErrInvalidPrice    = errors.New("vesting: invalid price")
	ErrZeroOutput      = errors.New("vesting: payment converts to zero")
	ErrInvalidRelease  = errors.New("vesting: release percentage out of range")
)

// PriceEntry prices one target asset.
type PriceEntry struct {
	// Price of one whole target unit in whole payment units, scaled by PriceScale.
	Price uint64 `json:"price" yaml:"price" toml:"price" mapstructure:"price"`
	// PaymentAssets maps each approved payment asset to its decimal exponent.
	PaymentAssets map[string]uint8 `json:"payment_assets" yaml:"payment_assets" toml:"payment_assets" mapstructure:"payment_assets"`
}

// Approved reports whether asset may be used to pay, and its decimals.
func (e PriceEntry) Approved(asset string) (uint8, bool) {
	d, ok := e.PaymentAssets[asset]
	return d, ok
}

// Clone returns a deep copy of the entry.
func (e PriceEntry) Clone() PriceEntry {
	c := PriceEntry{Price: e.Price, PaymentAssets: make(map[string]uint8, len(e.PaymentAssets))}
	for k, v := range e.PaymentAssets {
		c.PaymentAssets[k] = v
	}
	return c
}

// Convert returns how many target base units paymentAmount buys:
//
//	floor(paymentAmount * 10^targetDecimals * PriceScale / (Price * 10^paymentDecimals))
func (e PriceEntry) Convert(paymentAmount types.Amount, paymentDecimals, targetDecimals uint8) (types.Amount, error) {
	if e.Price == 0 {
		return types.Zero(), ErrInvalidPrice
	}
	scale, err := types.Pow10(targetDecimals)
	if err != nil {
		return types.Zero(), err
	}
	num, err := scale.Mul(types.NewAmount(PriceScale))
	if err != nil {
		return types.Zero(), err
	}
	scale, err = types.Pow10(paymentDecimals)
	if err != nil {
		return types.Zero(), err
	}
	den, err := scale.Mul(types.NewAmount(e.Price))
	if err != nil {
		return types.Zero(), err
	}
	return paymentAmount.MulDiv(num, den)
}

// Bonus configures the immediate release for purchases at or above a threshold.
type Bonus struct {
	Threshold         types.Amount
	ReleasePercentage uint8
}

// Split divides desired into the part that vests and the part released
// immediately. Below the threshold nothing is released.
func (b Bonus) Split(desired types.Amount) (vested, bonus types.Amount, err error) {
	if b.ReleasePercentage >= 100 {
		return types.Zero(), types.Zero(), fmt.Errorf("%w: %d", ErrInvalidRelease, b.ReleasePercentage)
	}
	if desired.LessThan(b.Threshold) || b.ReleasePercentage == 0 {
		return desired, types.Zero(), nil
	}
	bonus, err = desired.Percent(uint64(b.ReleasePercentage))
	if err != nil {
		return types.Zero(), types.Zero(), err
	}
	vested, err = desired.Sub(bonus)
	return vested, bonus, err
}

// Quote is the outcome of pricing a purchase.
type Quote struct {
	TargetAsset   string       `json:"target_asset"`
	PaymentAsset  string       `json:"payment_asset"`
	PaymentAmount types.Amount `json:"payment_amount"`
	Desired       types.Amount `json:"desired"`
	Vested        types.Amount `json:"vested"`
	Bonus         types.Amount `json:"bonus"`
}

// NewQuote prices a purchase of target paid with paymentAsset.
func NewQuote(e PriceEntry, target string, targetDecimals uint8, paymentAsset string, paymentAmount types.Amount, b Bonus) (Quote, error) {
	paymentDecimals, ok := e.Approved(paymentAsset)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s for %s", ErrUnapprovedAsset, paymentAsset, target)
	}
	desired, err := e.Convert(paymentAmount, paymentDecimals, targetDecimals)
	if err != nil {
		return Quote{}, err
	}
	if desired.IsZero() {
		return Quote{}, fmt.Errorf("%w: %s %s", ErrZeroOutput, paymentAmount, paymentAsset)
	}
	vested, bonus, err := b.Split(desired)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		TargetAsset:   target,
		PaymentAsset:  paymentAsset,
		PaymentAmount: paymentAmount,
		Desired:       desired,
		Vested:        vested,
		Bonus:         bonus,
	}, nil
}

package vesting

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/vesting/pricing"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/swap"
	"github.com/xraph/vesting/types"
)

// updateConfig applies fn to a copy of the configuration and installs the
// copy if it still validates. Requires a privileged caller.
func (e *Engine) updateConfig(ctx context.Context, setting string, fn func(*Config) error) (err error) {
	ctx, end := e.span(ctx, "config."+setting)
	defer end(&err)

	caller, err := e.authorize(ctx, "set "+setting)
	if err != nil {
		return err
	}

	e.cfgMu.Lock()
	next := e.cfg.Clone()
	if err = fn(&next); err != nil {
		e.cfgMu.Unlock()
		return err
	}
	if err = next.Validate(); err != nil {
		e.cfgMu.Unlock()
		return err
	}
	e.cfg = next
	e.cfgErr = nil
	e.cfgMu.Unlock()

	e.logger.Info("vesting config changed", "setting", setting, "caller", caller)
	e.plugins.EmitConfigChanged(ctx, caller, setting)
	return nil
}

// SetVestingActive toggles grants.
func (e *Engine) SetVestingActive(ctx context.Context, active bool) error {
	return e.updateConfig(ctx, "vesting_active", func(c *Config) error {
		c.VestingActive = active
		return nil
	})
}

// SetPurchaseActive toggles purchases.
func (e *Engine) SetPurchaseActive(ctx context.Context, active bool) error {
	return e.updateConfig(ctx, "purchase_active", func(c *Config) error {
		c.PurchaseActive = active
		return nil
	})
}

// SetSwapActive toggles swaps.
func (e *Engine) SetSwapActive(ctx context.Context, active bool) error {
	return e.updateConfig(ctx, "swap_active", func(c *Config) error {
		c.SwapActive = active
		return nil
	})
}

// SetPurchaseThreshold sets the desired amount from which purchases earn a bonus.
func (e *Engine) SetPurchaseThreshold(ctx context.Context, threshold types.Amount) error {
	return e.updateConfig(ctx, "purchase_threshold", func(c *Config) error {
		c.PurchaseThreshold = threshold
		return nil
	})
}

// SetReleasePercentage sets the share of a qualifying purchase paid out
// immediately. It must be below 100.
func (e *Engine) SetReleasePercentage(ctx context.Context, pct uint8) error {
	return e.updateConfig(ctx, "release_percentage", func(c *Config) error {
		c.ReleasePercentage = pct
		return nil
	})
}

// SetPrice sets the price of a target asset, keeping its approved payment assets.
func (e *Engine) SetPrice(ctx context.Context, assetID string, price uint64) error {
	return e.updateConfig(ctx, "price", func(c *Config) error {
		if price == 0 {
			return fmt.Errorf("%w: zero price for %s", pricing.ErrInvalidPrice, assetID)
		}
		entry := c.Prices[assetID].Clone()
		entry.Price = price
		c.Prices[assetID] = entry
		return nil
	})
}

// AddPaymentAsset approves a payment asset, with its decimals, for
// purchases of a priced target asset.
func (e *Engine) AddPaymentAsset(ctx context.Context, assetID, paymentAsset string, decimals uint8) error {
	return e.updateConfig(ctx, "payment_assets", func(c *Config) error {
		entry, ok := c.Prices[assetID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPriceNotSet, assetID)
		}
		entry = entry.Clone()
		entry.PaymentAssets[paymentAsset] = decimals
		c.Prices[assetID] = entry
		return nil
	})
}

// RemovePaymentAsset withdraws a payment asset's approval.
func (e *Engine) RemovePaymentAsset(ctx context.Context, assetID, paymentAsset string) error {
	return e.updateConfig(ctx, "payment_assets", func(c *Config) error {
		entry, ok := c.Prices[assetID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPriceNotSet, assetID)
		}
		entry = entry.Clone()
		delete(entry.PaymentAssets, paymentAsset)
		c.Prices[assetID] = entry
		return nil
	})
}

// SetSwapRatio sets the swap conversion ratio.
func (e *Engine) SetSwapRatio(ctx context.Context, numerator, denominator uint64) error {
	return e.updateConfig(ctx, "swap_ratio", func(c *Config) error {
		r := swap.Ratio{Numerator: numerator, Denominator: denominator}
		if err := r.Validate(); err != nil {
			return err
		}
		c.Swap.Ratio = r
		return nil
	})
}

// AddAuthorizedSwapAsset authorizes an asset, with its decimals, for swaps.
func (e *Engine) AddAuthorizedSwapAsset(ctx context.Context, assetID string, decimals uint8) error {
	return e.updateConfig(ctx, "swap_assets", func(c *Config) error {
		c.Swap.AuthorizedAssets[assetID] = decimals
		return nil
	})
}

// RemoveAuthorizedSwapAsset revokes a swap asset.
func (e *Engine) RemoveAuthorizedSwapAsset(ctx context.Context, assetID string) error {
	return e.updateConfig(ctx, "swap_assets", func(c *Config) error {
		delete(c.Swap.AuthorizedAssets, assetID)
		return nil
	})
}

// SetSwapLockMode chooses where swapped assets go: the lockbox when on,
// the treasury when off.
func (e *Engine) SetSwapLockMode(ctx context.Context, lock bool) error {
	return e.updateConfig(ctx, "swap_lock_mode", func(c *Config) error {
		c.Swap.LockMode = lock
		return nil
	})
}

// SetPurchaseBounds sets the cliff and vesting limits for purchases.
func (e *Engine) SetPurchaseBounds(ctx context.Context, b schedule.Bounds) error {
	return e.updateConfig(ctx, "purchase_bounds", func(c *Config) error {
		c.PurchaseBounds = b
		return nil
	})
}

// SetSwapBounds sets the cliff and vesting limits for swaps.
func (e *Engine) SetSwapBounds(ctx context.Context, b schedule.Bounds) error {
	return e.updateConfig(ctx, "swap_bounds", func(c *Config) error {
		c.SwapBounds = b
		return nil
	})
}

// SetStartTolerance sets how far a schedule start time may drift from now.
func (e *Engine) SetStartTolerance(ctx context.Context, d time.Duration) error {
	return e.updateConfig(ctx, "start_tolerance", func(c *Config) error {
		c.StartTolerance = d
		return nil
	})
}

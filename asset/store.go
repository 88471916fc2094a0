package asset

import "context"

// Store defines persistence operations for asset ledger entries.
type Store interface {
	CreateBalance(ctx context.Context, b *Balance) error
	GetBalance(ctx context.Context, asset string) (*Balance, error)
	UpdateBalance(ctx context.Context, b *Balance) error
	ListBalances(ctx context.Context) ([]*Balance, error)
}
